package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// MemoryStore is the in-memory Store used in tests and single-process
// deployments without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	enrollments map[string]models.ContactSequenceEnrollment // keyed contactID+"_"+sequenceID
	events      []models.EngagementEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		enrollments: map[string]models.ContactSequenceEnrollment{},
	}
}

func enrollmentKey(contactID, sequenceID string) string {
	return contactID + "_" + sequenceID
}

func (m *MemoryStore) Put(ctx context.Context, enrollment models.ContactSequenceEnrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[enrollmentKey(enrollment.ContactID, enrollment.SequenceID)] = enrollment
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, contactID, sequenceID string) (models.ContactSequenceEnrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enrollment, ok := m.enrollments[enrollmentKey(contactID, sequenceID)]
	if !ok {
		return models.ContactSequenceEnrollment{}, ErrNotFound
	}
	return enrollment, nil
}

func (m *MemoryStore) ListDue(ctx context.Context, due time.Time) ([]models.ContactSequenceEnrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ContactSequenceEnrollment
	for _, enrollment := range m.enrollments {
		if enrollment.Status == models.StatusActive && !enrollment.NextActionDue.After(due) {
			out = append(out, enrollment)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnrolledAt.Before(out[j].EnrolledAt)
	})
	return out, nil
}

func (m *MemoryStore) ListBySequence(ctx context.Context, sequenceID string) ([]models.ContactSequenceEnrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ContactSequenceEnrollment
	for _, enrollment := range m.enrollments {
		if enrollment.SequenceID == sequenceID {
			out = append(out, enrollment)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnrolledAt.Before(out[j].EnrolledAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, enrollmentID string, status models.SequenceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, enrollment := range m.enrollments {
		if enrollment.EnrollmentID == enrollmentID {
			enrollment.Status = status
			m.enrollments[key] = enrollment
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) InsertEvent(ctx context.Context, event models.EngagementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStore) ListContactEvents(ctx context.Context, contactID string, since time.Time) ([]models.EngagementEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.EngagementEvent
	for _, ev := range m.events {
		if ev.ContactID == contactID && !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListAccountEvents(ctx context.Context, companyID string, since time.Time) ([]models.EngagementEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.EngagementEvent
	for _, ev := range m.events {
		if ev.CompanyID == companyID && !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
