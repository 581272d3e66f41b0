package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// PGStore is the Postgres Store. Schema: nurture_enrollments and
// engagement_events (see migrations in deploy/).
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func ensureJSON(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return raw
}

func scanEnrollment(row rowScanner) (models.ContactSequenceEnrollment, error) {
	var (
		enrollment models.ContactSequenceEnrollment
		completion []byte
	)
	if err := row.Scan(
		&enrollment.EnrollmentID,
		&enrollment.ContactID,
		&enrollment.SequenceID,
		&enrollment.EnrolledAt,
		&enrollment.CurrentActionIndex,
		&enrollment.NextActionDue,
		&enrollment.Status,
		&completion,
	); err != nil {
		return models.ContactSequenceEnrollment{}, err
	}
	enrollment.CompletionData = append(json.RawMessage(nil), completion...)
	return enrollment, nil
}

func (s *PGStore) Put(ctx context.Context, enrollment models.ContactSequenceEnrollment) error {
	query := `
		INSERT INTO nurture_enrollments (id, contact_id, sequence_id, enrolled_date, current_action_index, next_action_due, status, completion_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (contact_id, sequence_id) DO UPDATE
		SET current_action_index=EXCLUDED.current_action_index,
		    next_action_due=EXCLUDED.next_action_due,
		    status=EXCLUDED.status,
		    completion_data=EXCLUDED.completion_data
	`
	_, err := s.db.ExecContext(ctx, query,
		enrollment.EnrollmentID,
		enrollment.ContactID,
		enrollment.SequenceID,
		enrollment.EnrolledAt,
		enrollment.CurrentActionIndex,
		enrollment.NextActionDue,
		enrollment.Status,
		ensureJSON(enrollment.CompletionData, "{}"),
	)
	if err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, contactID, sequenceID string) (models.ContactSequenceEnrollment, error) {
	const query = `
		SELECT id, contact_id, sequence_id, enrolled_date, current_action_index, next_action_due, status, completion_data
		FROM nurture_enrollments
		WHERE contact_id=$1 AND sequence_id=$2
	`
	enrollment, err := scanEnrollment(s.db.QueryRowContext(ctx, query, contactID, sequenceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ContactSequenceEnrollment{}, ErrNotFound
		}
		return models.ContactSequenceEnrollment{}, fmt.Errorf("get enrollment: %w", err)
	}
	return enrollment, nil
}

func (s *PGStore) ListDue(ctx context.Context, due time.Time) ([]models.ContactSequenceEnrollment, error) {
	const query = `
		SELECT id, contact_id, sequence_id, enrolled_date, current_action_index, next_action_due, status, completion_data
		FROM nurture_enrollments
		WHERE status='active' AND next_action_due <= $1
		ORDER BY enrolled_date
	`
	rows, err := s.db.QueryContext(ctx, query, due)
	if err != nil {
		return nil, fmt.Errorf("list due enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []models.ContactSequenceEnrollment
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return enrollments, nil
}

func (s *PGStore) ListBySequence(ctx context.Context, sequenceID string) ([]models.ContactSequenceEnrollment, error) {
	const query = `
		SELECT id, contact_id, sequence_id, enrolled_date, current_action_index, next_action_due, status, completion_data
		FROM nurture_enrollments
		WHERE sequence_id=$1
		ORDER BY enrolled_date
	`
	rows, err := s.db.QueryContext(ctx, query, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []models.ContactSequenceEnrollment
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, enrollment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return enrollments, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, enrollmentID string, status models.SequenceStatus) error {
	const query = `UPDATE nurture_enrollments SET status=$2 WHERE id=$1`
	res, err := s.db.ExecContext(ctx, query, enrollmentID, status)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) InsertEvent(ctx context.Context, event models.EngagementEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	query := `
		INSERT INTO engagement_events (id, contact_id, company_id, event_type, timestamp, content_id, duration_seconds, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	var contentID *string
	if event.ContentID != "" {
		contentID = &event.ContentID
	}
	_, err = s.db.ExecContext(ctx, query,
		event.EventID,
		event.ContactID,
		event.CompanyID,
		event.EventType,
		event.Timestamp,
		contentID,
		event.DurationSeconds,
		ensureJSON(metadata, "{}"),
	)
	if err != nil {
		return fmt.Errorf("insert engagement event: %w", err)
	}
	return nil
}

func scanEvent(row rowScanner) (models.EngagementEvent, error) {
	var (
		event     models.EngagementEvent
		contentID sql.NullString
		duration  sql.NullInt64
		metadata  []byte
	)
	if err := row.Scan(
		&event.EventID,
		&event.ContactID,
		&event.CompanyID,
		&event.EventType,
		&event.Timestamp,
		&contentID,
		&duration,
		&metadata,
	); err != nil {
		return models.EngagementEvent{}, err
	}
	if contentID.Valid {
		event.ContentID = contentID.String
	}
	if duration.Valid {
		event.DurationSeconds = int(duration.Int64)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
			return models.EngagementEvent{}, fmt.Errorf("unmarshal event metadata: %w", err)
		}
	}
	return event, nil
}

func (s *PGStore) ListContactEvents(ctx context.Context, contactID string, since time.Time) ([]models.EngagementEvent, error) {
	const query = `
		SELECT id, contact_id, company_id, event_type, timestamp, content_id, duration_seconds, metadata
		FROM engagement_events
		WHERE contact_id=$1 AND timestamp >= $2
		ORDER BY timestamp
	`
	return s.queryEvents(ctx, query, contactID, since)
}

func (s *PGStore) ListAccountEvents(ctx context.Context, companyID string, since time.Time) ([]models.EngagementEvent, error) {
	const query = `
		SELECT id, contact_id, company_id, event_type, timestamp, content_id, duration_seconds, metadata
		FROM engagement_events
		WHERE company_id=$1 AND timestamp >= $2
		ORDER BY timestamp
	`
	return s.queryEvents(ctx, query, companyID, since)
}

func (s *PGStore) queryEvents(ctx context.Context, query string, args ...interface{}) ([]models.EngagementEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.EngagementEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
