package nurture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ILLUVRSE/abm-engine/internal/crm"
	"github.com/ILLUVRSE/abm-engine/internal/models"
	"github.com/ILLUVRSE/abm-engine/internal/store"
)

// ErrSequenceNotFound is returned when an enrollment references an unknown
// sequence id. This is the one hard error of the enrollment path.
var ErrSequenceNotFound = errors.New("sequence not found")

// CRMClient is the slice of the CRM adapter the nurture engine needs.
type CRMClient interface {
	GetContact(ctx context.Context, contactID string, properties ...string) (crm.Contact, error)
	UpdateContactProperties(ctx context.Context, contactID string, properties map[string]string) (crm.Contact, error)
	CreateSalesTask(ctx context.Context, contactID string, cfg crm.TaskConfig) (crm.Task, error)
}

// Recommender is the slice of the content engine used by deliver_content
// actions.
type Recommender interface {
	Recommend(profile models.ContactProfile, count int, excludeRecentDays int) []models.ContentRecommendation
}

// ResultType labels the outcome of processing one enrollment in a sweep.
type ResultType string

const (
	ResultExecuted  ResultType = "action_executed"
	ResultSkipped   ResultType = "action_skipped"
	ResultCompleted ResultType = "sequence_completed"
)

// ErrorKind classifies handler failures. The sweep advances the enrollment
// in every case; the kind only tells the caller what went wrong.
type ErrorKind string

const (
	ErrorRemoteUnavailable  ErrorKind = "remote_unavailable"
	ErrorInvalidConfig      ErrorKind = "invalid_config"
	ErrorPreconditionFailed ErrorKind = "precondition_failed"
)

// ActionResult is the standardized outcome record for one enrollment step.
type ActionResult struct {
	Type         ResultType             `json:"resultType"`
	EnrollmentID string                 `json:"enrollmentId"`
	ContactID    string                 `json:"contactId"`
	SequenceID   string                 `json:"sequenceId"`
	ActionID     string                 `json:"actionId,omitempty"`
	ActionType   models.ActionType      `json:"actionType,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Details      map[string]interface{} `json:"details,omitempty"`
	ErrorKind    ErrorKind              `json:"errorKind,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// Engine evaluates triggers, enrolls contacts into sequences, and advances
// enrollments one action per sweep. Sweeps are serialized by an internal
// mutex; enrollment state lives behind the injected EnrollmentStore.
type Engine struct {
	sequences map[string]models.NurtureSequence
	store     store.EnrollmentStore
	crm       CRMClient
	content   Recommender

	sweepMu sync.Mutex
	nowFn   func() time.Time
	idFn    func() string
}

// New builds an engine over the given sequence library. The CRM client and
// recommender may be nil only in tests that never execute actions needing
// them.
func New(sequences []models.NurtureSequence, st store.EnrollmentStore, crmClient CRMClient, content Recommender) *Engine {
	seqMap := make(map[string]models.NurtureSequence, len(sequences))
	for _, seq := range sequences {
		seqMap[seq.SequenceID] = seq
	}
	return &Engine{
		sequences: seqMap,
		store:     st,
		crm:       crmClient,
		content:   content,
		nowFn:     time.Now,
		idFn:      func() string { return uuid.NewString() },
	}
}

// WithClock overrides the engine clock for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.nowFn = now
	return e
}

// Sequences returns the sequence library keyed by id.
func (e *Engine) Sequences() map[string]models.NurtureSequence {
	return e.sequences
}

// EvaluateTriggers returns the ids of every sequence whose trigger
// conditions all hold against the supplied data and which is not already
// actively enrolling the contact.
func (e *Engine) EvaluateTriggers(ctx context.Context, contactID string, triggerData map[string]interface{}) []string {
	var triggered []string
	for id, seq := range e.sequences {
		if seq.Status != models.StatusActive {
			continue
		}
		if existing, err := e.store.Get(ctx, contactID, id); err == nil && existing.Status == models.StatusActive {
			continue
		}
		if len(seq.Triggers) == 0 {
			continue
		}
		if allConditionsMet(seq.Triggers, triggerData) {
			triggered = append(triggered, id)
		}
	}
	return triggered
}

// Enroll enrolls a contact in a sequence. While an active enrollment exists
// for the same (contact, sequence) pair the call is a no-op returning the
// existing enrollment. An unknown sequence id is a hard error. A contact
// may be re-enrolled after a previous enrollment completed or was
// cancelled.
func (e *Engine) Enroll(ctx context.Context, contactID, sequenceID string) (models.ContactSequenceEnrollment, error) {
	seq, ok := e.sequences[sequenceID]
	if !ok {
		return models.ContactSequenceEnrollment{}, fmt.Errorf("%w: %s", ErrSequenceNotFound, sequenceID)
	}

	if existing, err := e.store.Get(ctx, contactID, sequenceID); err == nil {
		if existing.Status == models.StatusActive {
			return existing, nil
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.ContactSequenceEnrollment{}, fmt.Errorf("lookup enrollment: %w", err)
	}

	firstDelay := 0
	if len(seq.Actions) > 0 {
		firstDelay = seq.Actions[0].DelayHours
	}
	now := e.nowFn()
	enrollment := models.ContactSequenceEnrollment{
		EnrollmentID:       e.idFn(),
		ContactID:          contactID,
		SequenceID:         sequenceID,
		EnrolledAt:         now,
		CurrentActionIndex: 0,
		NextActionDue:      now.Add(time.Duration(firstDelay) * time.Hour),
		Status:             models.StatusActive,
		CompletionData:     json.RawMessage("{}"),
	}
	if err := e.store.Put(ctx, enrollment); err != nil {
		return models.ContactSequenceEnrollment{}, fmt.Errorf("store enrollment: %w", err)
	}

	log.Printf("[nurture] enrolled contact=%s sequence=%s enrollment=%s", contactID, sequenceID, enrollment.EnrollmentID)
	return enrollment, nil
}

// SetEnrollmentStatus pauses, resumes, or cancels an enrollment. Completion
// is never set externally; it only happens when the action cursor reaches
// the end of the sequence.
func (e *Engine) SetEnrollmentStatus(ctx context.Context, enrollmentID string, status models.SequenceStatus) error {
	if status == models.StatusCompleted {
		return fmt.Errorf("completed is not externally settable")
	}
	return e.store.UpdateStatus(ctx, enrollmentID, status)
}

// ProcessDueActions is the sweep: it advances every active enrollment whose
// next action is due by exactly one step. A contact lagging several steps
// behind catches up one step per sweep.
func (e *Engine) ProcessDueActions(ctx context.Context) ([]ActionResult, error) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()

	due, err := e.store.ListDue(ctx, e.nowFn())
	if err != nil {
		return nil, fmt.Errorf("list due enrollments: %w", err)
	}

	results := make([]ActionResult, 0, len(due))
	for _, enrollment := range due {
		results = append(results, e.executeNext(ctx, enrollment))
	}
	return results, nil
}

func (e *Engine) executeNext(ctx context.Context, enrollment models.ContactSequenceEnrollment) ActionResult {
	seq, ok := e.sequences[enrollment.SequenceID]
	if !ok {
		// Enrollment references a sequence no longer defined; cancel it so
		// the sweep stops revisiting it.
		_ = e.store.UpdateStatus(ctx, enrollment.EnrollmentID, models.StatusCancelled)
		return e.result(ResultSkipped, enrollment, models.SequenceAction{}, map[string]interface{}{
			"reason": "sequence_not_defined",
		}, ErrorInvalidConfig, "sequence "+enrollment.SequenceID+" not defined")
	}

	if enrollment.CurrentActionIndex >= len(seq.Actions) {
		e.complete(ctx, &enrollment)
		return e.result(ResultCompleted, enrollment, models.SequenceAction{}, nil, "", "")
	}

	action := seq.Actions[enrollment.CurrentActionIndex]

	if len(action.Conditions) > 0 {
		met, condErr := e.actionConditionsMet(ctx, action, enrollment.ContactID)
		if condErr != nil {
			e.advance(ctx, &enrollment, seq)
			return e.result(ResultSkipped, enrollment, action, map[string]interface{}{
				"reason": "conditions_unreadable",
			}, ErrorRemoteUnavailable, condErr.Error())
		}
		if !met {
			e.advance(ctx, &enrollment, seq)
			return e.result(ResultSkipped, enrollment, action, map[string]interface{}{
				"reason": "conditions_not_met",
			}, "", "")
		}
	}

	details, kind, execErr := e.perform(ctx, action, enrollment)
	e.advance(ctx, &enrollment, seq)

	errText := ""
	if execErr != nil {
		errText = execErr.Error()
	}
	log.Printf("[nurture] action contact=%s sequence=%s action=%s type=%s errKind=%s",
		enrollment.ContactID, enrollment.SequenceID, action.ActionID, action.ActionType, kind)
	return e.result(ResultExecuted, enrollment, action, details, kind, errText)
}

// actionConditionsMet loads the contact's current properties and evaluates
// the action's own conditions against them.
func (e *Engine) actionConditionsMet(ctx context.Context, action models.SequenceAction, contactID string) (bool, error) {
	contact, err := e.crm.GetContact(ctx, contactID)
	if err != nil {
		return false, fmt.Errorf("get contact properties: %w", err)
	}
	data := make(map[string]interface{}, len(contact.Properties))
	for k, v := range contact.Properties {
		data[k] = v
	}
	return allConditionsMet(action.Conditions, data), nil
}

// advance moves the cursor forward one step and either schedules the next
// action or completes the enrollment. The cursor never moves backwards.
func (e *Engine) advance(ctx context.Context, enrollment *models.ContactSequenceEnrollment, seq models.NurtureSequence) {
	enrollment.CurrentActionIndex++
	if enrollment.CurrentActionIndex >= len(seq.Actions) {
		e.complete(ctx, enrollment)
		return
	}
	next := seq.Actions[enrollment.CurrentActionIndex]
	enrollment.NextActionDue = e.nowFn().Add(time.Duration(next.DelayHours) * time.Hour)
	if err := e.store.Put(ctx, *enrollment); err != nil {
		log.Printf("[nurture] persist enrollment %s: %v", enrollment.EnrollmentID, err)
	}
}

func (e *Engine) complete(ctx context.Context, enrollment *models.ContactSequenceEnrollment) {
	enrollment.Status = models.StatusCompleted
	completion, _ := json.Marshal(map[string]string{
		"completed_date": e.nowFn().UTC().Format(time.RFC3339),
	})
	enrollment.CompletionData = completion
	if err := e.store.Put(ctx, *enrollment); err != nil {
		log.Printf("[nurture] persist completion %s: %v", enrollment.EnrollmentID, err)
	}
	log.Printf("[nurture] completed contact=%s sequence=%s enrollment=%s",
		enrollment.ContactID, enrollment.SequenceID, enrollment.EnrollmentID)
}

func (e *Engine) result(typ ResultType, enrollment models.ContactSequenceEnrollment, action models.SequenceAction, details map[string]interface{}, kind ErrorKind, errText string) ActionResult {
	return ActionResult{
		Type:         typ,
		EnrollmentID: enrollment.EnrollmentID,
		ContactID:    enrollment.ContactID,
		SequenceID:   enrollment.SequenceID,
		ActionID:     action.ActionID,
		ActionType:   action.ActionType,
		Timestamp:    e.nowFn(),
		Details:      details,
		ErrorKind:    kind,
		Error:        errText,
	}
}

// SequenceReport aggregates the current enrollments of one sequence.
type SequenceReport struct {
	SequenceID           string             `json:"sequenceId"`
	SequenceName         string             `json:"sequenceName"`
	TotalEnrollments     int                `json:"totalEnrollments"`
	ActiveEnrollments    int                `json:"activeEnrollments"`
	CompletedEnrollments int                `json:"completedEnrollments"`
	CompletionRate       float64            `json:"completionRate"`
	AverageDurationDays  int                `json:"averageDurationDays"`
	TargetSuccessMetrics map[string]float64 `json:"targetSuccessMetrics,omitempty"`
	LastUpdated          time.Time          `json:"lastUpdated"`
}

// Report computes the on-demand aggregate for a sequence from current
// enrollment state. There is no historical retention beyond that state.
func (e *Engine) Report(ctx context.Context, sequenceID string) (SequenceReport, error) {
	seq, ok := e.sequences[sequenceID]
	if !ok {
		return SequenceReport{}, fmt.Errorf("%w: %s", ErrSequenceNotFound, sequenceID)
	}
	enrollments, err := e.store.ListBySequence(ctx, sequenceID)
	if err != nil {
		return SequenceReport{}, fmt.Errorf("list enrollments: %w", err)
	}

	report := SequenceReport{
		SequenceID:           sequenceID,
		SequenceName:         seq.Name,
		TotalEnrollments:     len(enrollments),
		AverageDurationDays:  seq.DurationDays,
		TargetSuccessMetrics: seq.SuccessMetrics,
		LastUpdated:          e.nowFn(),
	}
	for _, enrollment := range enrollments {
		switch enrollment.Status {
		case models.StatusActive:
			report.ActiveEnrollments++
		case models.StatusCompleted:
			report.CompletedEnrollments++
		}
	}
	if report.TotalEnrollments > 0 {
		report.CompletionRate = float64(report.CompletedEnrollments) / float64(report.TotalEnrollments)
	}
	return report, nil
}
