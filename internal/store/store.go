package store

import (
	"context"
	"errors"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

var ErrNotFound = errors.New("not found")

// EnrollmentStore is the persistence boundary for sequence enrollments. The
// nurture engine is the only writer; implementations must be safe for
// concurrent use so a host that overlaps sweeps and enrollments cannot
// corrupt state.
type EnrollmentStore interface {
	// Put inserts or replaces an enrollment by its (contact, sequence) key.
	Put(ctx context.Context, enrollment models.ContactSequenceEnrollment) error

	// Get returns the enrollment for (contactID, sequenceID), or ErrNotFound.
	Get(ctx context.Context, contactID, sequenceID string) (models.ContactSequenceEnrollment, error)

	// ListDue returns active enrollments whose next action is due at or
	// before the given time.
	ListDue(ctx context.Context, due time.Time) ([]models.ContactSequenceEnrollment, error)

	// ListBySequence returns every enrollment for a sequence, any status.
	ListBySequence(ctx context.Context, sequenceID string) ([]models.ContactSequenceEnrollment, error)

	// UpdateStatus sets the status of an enrollment by id, or ErrNotFound.
	UpdateStatus(ctx context.Context, enrollmentID string, status models.SequenceStatus) error
}

// EventStore persists engagement events and serves windowed reads for the
// analytics engine.
type EventStore interface {
	InsertEvent(ctx context.Context, event models.EngagementEvent) error
	ListContactEvents(ctx context.Context, contactID string, since time.Time) ([]models.EngagementEvent, error)
	ListAccountEvents(ctx context.Context, companyID string, since time.Time) ([]models.EngagementEvent, error)
}

// Store combines both boundaries plus a liveness probe.
type Store interface {
	EnrollmentStore
	EventStore
	Ping(ctx context.Context) error
}
