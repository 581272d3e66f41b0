package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ILLUVRSE/abm-engine/internal/analytics"
	"github.com/ILLUVRSE/abm-engine/internal/content"
	"github.com/ILLUVRSE/abm-engine/internal/models"
	"github.com/ILLUVRSE/abm-engine/internal/nurture"
	"github.com/ILLUVRSE/abm-engine/internal/store"
)

const defaultWindowDays = 30

// Publisher is the slice of the stream producer the service needs. It is
// optional; a nil publisher disables event streaming.
type Publisher interface {
	PublishEvent(ctx context.Context, event models.EngagementEvent) error
}

// Service wires the engines, store, and outbound adapters behind a single
// API used by the HTTP layer.
type Service struct {
	store     store.Store
	content   *content.Engine
	analytics *analytics.Engine
	nurture   *nurture.Engine
	publisher Publisher
	nowFn     func() time.Time
}

func New(st store.Store, contentEngine *content.Engine, analyticsEngine *analytics.Engine, nurtureEngine *nurture.Engine, publisher Publisher) *Service {
	return &Service{
		store:     st,
		content:   contentEngine,
		analytics: analyticsEngine,
		nurture:   nurtureEngine,
		publisher: publisher,
		nowFn:     time.Now,
	}
}

// RecordEngagement persists an event, publishes it to the stream, and
// returns the contact's recomputed score. Stream publication is
// best-effort; a broker outage never loses the event from the store.
func (s *Service) RecordEngagement(ctx context.Context, event models.EngagementEvent) (models.EngagementScore, error) {
	if event.ContactID == "" || event.EventType == "" {
		return models.EngagementScore{}, fmt.Errorf("contactId and eventType required")
	}
	if !validEventType(event.EventType) {
		return models.EngagementScore{}, fmt.Errorf("unknown eventType %q", event.EventType)
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.nowFn()
	}

	if err := s.store.InsertEvent(ctx, event); err != nil {
		return models.EngagementScore{}, fmt.Errorf("persist event: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, event); err != nil {
			log.Printf("[service] publish event %s: %v", event.EventID, err)
		}
	}

	return s.ScoreContact(ctx, event.ContactID, defaultWindowDays)
}

// ScoreContact recomputes a contact's composite engagement score over the
// trailing window.
func (s *Service) ScoreContact(ctx context.Context, contactID string, windowDays int) (models.EngagementScore, error) {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	since := s.nowFn().AddDate(0, 0, -windowDays)
	events, err := s.store.ListContactEvents(ctx, contactID, since)
	if err != nil {
		return models.EngagementScore{}, fmt.Errorf("load events: %w", err)
	}
	return s.analytics.ScoreContact(contactID, events, windowDays), nil
}

// AnalyzeAccount scores every contact seen for the company in the window
// and rolls them up into an account view.
func (s *Service) AnalyzeAccount(ctx context.Context, companyID string, windowDays int) (models.AccountAnalysis, error) {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	since := s.nowFn().AddDate(0, 0, -windowDays)
	events, err := s.store.ListAccountEvents(ctx, companyID, since)
	if err != nil {
		return models.AccountAnalysis{}, fmt.Errorf("load account events: %w", err)
	}

	byContact := make(map[string][]models.EngagementEvent)
	for _, event := range events {
		byContact[event.ContactID] = append(byContact[event.ContactID], event)
	}
	scores := make([]models.EngagementScore, 0, len(byContact))
	for contactID, contactEvents := range byContact {
		scores = append(scores, s.analytics.ScoreContact(contactID, contactEvents, windowDays))
	}
	return s.analytics.AnalyzeAccount(companyID, scores, events), nil
}

// Recommend returns ranked content for a profile. Engagement history stored
// locally is merged in when the caller's profile omits it.
func (s *Service) Recommend(ctx context.Context, profile models.ContactProfile, count, excludeRecentDays int) ([]models.ContentRecommendation, error) {
	if profile.ContactID == "" {
		return nil, fmt.Errorf("contactId required")
	}
	if count <= 0 {
		count = 3
	}
	if len(profile.EngagementHistory) == 0 {
		since := s.nowFn().AddDate(0, 0, -defaultWindowDays)
		events, err := s.store.ListContactEvents(ctx, profile.ContactID, since)
		if err != nil {
			return nil, fmt.Errorf("load engagement history: %w", err)
		}
		profile.EngagementHistory = historyFromEvents(events)
	}
	return s.content.Recommend(profile, count, excludeRecentDays), nil
}

// HandleTrigger evaluates the sequence library against the supplied trigger
// data and enrolls the contact in every sequence that fires.
func (s *Service) HandleTrigger(ctx context.Context, contactID string, triggerData map[string]interface{}) ([]models.ContactSequenceEnrollment, error) {
	if contactID == "" {
		return nil, fmt.Errorf("contactId required")
	}
	sequenceIDs := s.nurture.EvaluateTriggers(ctx, contactID, triggerData)
	enrollments := make([]models.ContactSequenceEnrollment, 0, len(sequenceIDs))
	for _, sequenceID := range sequenceIDs {
		enrollment, err := s.nurture.Enroll(ctx, contactID, sequenceID)
		if err != nil {
			return enrollments, fmt.Errorf("enroll in %s: %w", sequenceID, err)
		}
		enrollments = append(enrollments, enrollment)
	}
	return enrollments, nil
}

// Enroll enrolls a contact directly, bypassing trigger evaluation.
func (s *Service) Enroll(ctx context.Context, contactID, sequenceID string) (models.ContactSequenceEnrollment, error) {
	return s.nurture.Enroll(ctx, contactID, sequenceID)
}

// Sweep advances every due enrollment by one action.
func (s *Service) Sweep(ctx context.Context) ([]nurture.ActionResult, error) {
	return s.nurture.ProcessDueActions(ctx)
}

// SequenceReport returns aggregate enrollment stats for one sequence.
func (s *Service) SequenceReport(ctx context.Context, sequenceID string) (nurture.SequenceReport, error) {
	return s.nurture.Report(ctx, sequenceID)
}

// Ping reports store liveness for the health endpoint.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func validEventType(t models.EventType) bool {
	for _, known := range models.AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

func historyFromEvents(events []models.EngagementEvent) []models.EngagementRecord {
	records := make([]models.EngagementRecord, 0, len(events))
	for _, event := range events {
		record := models.EngagementRecord{
			ContentID: event.ContentID,
			Timestamp: event.Timestamp,
		}
		if ct, ok := event.Metadata["content_type"].(string); ok {
			record.ContentType = models.ContentType(ct)
		}
		if topics, ok := event.Metadata["topics"].([]interface{}); ok {
			for _, t := range topics {
				if s, ok := t.(string); ok {
					record.Topics = append(record.Topics, s)
				}
			}
		}
		records = append(records, record)
	}
	return records
}
