package nurture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/abm-engine/internal/crm"
	"github.com/ILLUVRSE/abm-engine/internal/models"
	"github.com/ILLUVRSE/abm-engine/internal/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeCRM struct {
	properties map[string]string
	getErr     error
	updates    []map[string]string
	tasks      []crm.TaskConfig
}

func (f *fakeCRM) GetContact(ctx context.Context, contactID string, properties ...string) (crm.Contact, error) {
	if f.getErr != nil {
		return crm.Contact{}, f.getErr
	}
	return crm.Contact{ID: contactID, Properties: f.properties}, nil
}

func (f *fakeCRM) UpdateContactProperties(ctx context.Context, contactID string, properties map[string]string) (crm.Contact, error) {
	f.updates = append(f.updates, properties)
	return crm.Contact{ID: contactID, Properties: properties}, nil
}

func (f *fakeCRM) CreateSalesTask(ctx context.Context, contactID string, cfg crm.TaskConfig) (crm.Task, error) {
	f.tasks = append(f.tasks, cfg)
	return crm.Task{ID: fmt.Sprintf("task-%d", len(f.tasks))}, nil
}

type fakeRecommender struct {
	recs []models.ContentRecommendation
}

func (f *fakeRecommender) Recommend(profile models.ContactProfile, count, excludeRecentDays int) []models.ContentRecommendation {
	return f.recs
}

func testSequence(actions ...models.SequenceAction) models.NurtureSequence {
	return models.NurtureSequence{
		SequenceID:         "seq_test",
		Name:               "Test Sequence",
		TargetIndustry:     models.TargetAll,
		TargetPersona:      models.TargetAll,
		TargetJourneyStage: models.TargetAll,
		Triggers: []models.TriggerCondition{
			{
				TriggerType:  models.TriggerEngagementThreshold,
				PropertyName: "abm_content_engagement_score",
				Operator:     "greater_than",
				Value:        50,
			},
		},
		Actions:      actions,
		DurationDays: 7,
		Status:       models.StatusActive,
	}
}

func newTestEngine(t *testing.T, crmClient CRMClient, sequences ...models.NurtureSequence) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	if len(sequences) == 0 {
		sequences = BuiltinSequences()
	}
	engine := New(sequences, st, crmClient, &fakeRecommender{
		recs: []models.ContentRecommendation{{ContentID: "wp_001", Title: "Whitepaper", DeliveryChannel: "email", RelevanceScore: 0.8}},
	}).WithClock(func() time.Time { return testNow })
	return engine, st
}

func TestEnrollIsIdempotentWhileActive(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeCRM{})
	ctx := context.Background()

	first, err := engine.Enroll(ctx, "c-1", "awareness_tech_001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, first.Status)
	// First action has a 2 hour delay.
	assert.Equal(t, testNow.Add(2*time.Hour), first.NextActionDue)

	second, err := engine.Enroll(ctx, "c-1", "awareness_tech_001")
	require.NoError(t, err)
	assert.Equal(t, first.EnrollmentID, second.EnrollmentID)
}

func TestEnrollUnknownSequence(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeCRM{})
	_, err := engine.Enroll(context.Background(), "c-1", "missing_seq")
	assert.ErrorIs(t, err, ErrSequenceNotFound)
}

func TestReEnrollAfterCompletion(t *testing.T) {
	engine, st := newTestEngine(t, &fakeCRM{})
	ctx := context.Background()

	first, err := engine.Enroll(ctx, "c-1", "awareness_tech_001")
	require.NoError(t, err)
	first.Status = models.StatusCompleted
	require.NoError(t, st.Put(ctx, first))

	second, err := engine.Enroll(ctx, "c-1", "awareness_tech_001")
	require.NoError(t, err)
	assert.NotEqual(t, first.EnrollmentID, second.EnrollmentID)
	assert.Equal(t, models.StatusActive, second.Status)
}

func TestEvaluateTriggersSkipsActiveEnrollments(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeCRM{})
	ctx := context.Background()
	data := map[string]interface{}{"abm_content_engagement_score": 80}

	triggered := engine.EvaluateTriggers(ctx, "c-1", data)
	assert.Contains(t, triggered, "high_engagement_001")

	_, err := engine.Enroll(ctx, "c-1", "high_engagement_001")
	require.NoError(t, err)

	triggered = engine.EvaluateTriggers(ctx, "c-1", data)
	assert.NotContains(t, triggered, "high_engagement_001")
}

func TestEvaluateTriggersRequiresAllConditions(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeCRM{})
	ctx := context.Background()

	// Stage matches but score does not clear the threshold.
	data := map[string]interface{}{
		"abm_journey_stage":            "problem_awareness",
		"abm_content_engagement_score": 10,
	}
	assert.NotContains(t, engine.EvaluateTriggers(ctx, "c-1", data), "awareness_tech_001")

	data["abm_content_engagement_score"] = 30
	assert.Contains(t, engine.EvaluateTriggers(ctx, "c-1", data), "awareness_tech_001")
}

func TestProcessDueActionsExecutesOneActionPerSweep(t *testing.T) {
	crmClient := &fakeCRM{}
	seq := testSequence(
		models.SequenceAction{ActionID: "a1", ActionType: models.ActionSendEmail, DelayHours: 0},
		models.SequenceAction{ActionID: "a2", ActionType: models.ActionSendEmail, DelayHours: 0},
	)
	engine, st := newTestEngine(t, crmClient, seq)
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "c-1", "seq_test")
	require.NoError(t, err)

	results, err := engine.ProcessDueActions(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultExecuted, results[0].Type)
	assert.Equal(t, "a1", results[0].ActionID)

	enrollment, err := st.Get(ctx, "c-1", "seq_test")
	require.NoError(t, err)
	assert.Equal(t, 1, enrollment.CurrentActionIndex)
	assert.Equal(t, models.StatusActive, enrollment.Status)

	// Second sweep runs a2, the last action, completing the sequence.
	results, err = engine.ProcessDueActions(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a2", results[0].ActionID)

	enrollment, err = st.Get(ctx, "c-1", "seq_test")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, enrollment.Status)
	assert.Contains(t, string(enrollment.CompletionData), "completed_date")

	// Completed enrollments never come due again.
	results, err = engine.ProcessDueActions(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestConditionsNotMetSkipsButAdvances(t *testing.T) {
	crmClient := &fakeCRM{properties: map[string]string{"lifecyclestage": "lead"}}
	seq := testSequence(
		models.SequenceAction{
			ActionID:   "a1",
			ActionType: models.ActionSendEmail,
			Conditions: []models.TriggerCondition{
				{PropertyName: "lifecyclestage", Operator: "equals", Value: "customer"},
			},
		},
	)
	engine, st := newTestEngine(t, crmClient, seq)
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "c-1", "seq_test")
	require.NoError(t, err)

	results, err := engine.ProcessDueActions(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultSkipped, results[0].Type)
	assert.Empty(t, results[0].ErrorKind)
	assert.Empty(t, crmClient.updates)

	enrollment, err := st.Get(ctx, "c-1", "seq_test")
	require.NoError(t, err)
	assert.Equal(t, 1, enrollment.CurrentActionIndex)
}

func TestCRMOutageSkipsWithRemoteUnavailable(t *testing.T) {
	crmClient := &fakeCRM{getErr: errors.New("hubspot 503")}
	seq := testSequence(
		models.SequenceAction{
			ActionID:   "a1",
			ActionType: models.ActionSendEmail,
			Conditions: []models.TriggerCondition{
				{PropertyName: "lifecyclestage", Operator: "equals", Value: "customer"},
			},
		},
	)
	engine, st := newTestEngine(t, crmClient, seq)
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "c-1", "seq_test")
	require.NoError(t, err)

	results, err := engine.ProcessDueActions(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultSkipped, results[0].Type)
	assert.Equal(t, ErrorRemoteUnavailable, results[0].ErrorKind)

	enrollment, err := st.Get(ctx, "c-1", "seq_test")
	require.NoError(t, err)
	assert.Equal(t, 1, enrollment.CurrentActionIndex)
}

func TestActionFailureStillAdvances(t *testing.T) {
	// add_to_list without list_id is a configuration failure.
	crmClient := &fakeCRM{}
	seq := testSequence(
		models.SequenceAction{ActionID: "a1", ActionType: models.ActionAddToList},
		models.SequenceAction{ActionID: "a2", ActionType: models.ActionSendEmail},
	)
	engine, st := newTestEngine(t, crmClient, seq)
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "c-1", "seq_test")
	require.NoError(t, err)

	results, err := engine.ProcessDueActions(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ResultExecuted, results[0].Type)
	assert.Equal(t, ErrorInvalidConfig, results[0].ErrorKind)
	assert.NotEmpty(t, results[0].Error)

	enrollment, err := st.Get(ctx, "c-1", "seq_test")
	require.NoError(t, err)
	assert.Equal(t, 1, enrollment.CurrentActionIndex)
	assert.Equal(t, models.StatusActive, enrollment.Status)
}

func TestNotifySalesIsAlwaysUrgent(t *testing.T) {
	crmClient := &fakeCRM{}
	seq := testSequence(
		models.SequenceAction{
			ActionID:   "a1",
			ActionType: models.ActionNotifySales,
			Parameters: map[string]interface{}{"subject": "Hot lead", "urgency": "low"},
		},
	)
	engine, _ := newTestEngine(t, crmClient, seq)
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "c-1", "seq_test")
	require.NoError(t, err)
	_, err = engine.ProcessDueActions(ctx)
	require.NoError(t, err)

	require.Len(t, crmClient.tasks, 1)
	task := crmClient.tasks[0]
	assert.Equal(t, "high", task.Priority)
	assert.Equal(t, "+4_hours", task.DueOffset)
	assert.True(t, strings.HasPrefix(task.Subject, "[ABM] "), "subject %q", task.Subject)
}

func TestScheduleCallDefaults(t *testing.T) {
	crmClient := &fakeCRM{}
	seq := testSequence(
		models.SequenceAction{ActionID: "a1", ActionType: models.ActionScheduleCall},
	)
	engine, _ := newTestEngine(t, crmClient, seq)
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "c-1", "seq_test")
	require.NoError(t, err)
	_, err = engine.ProcessDueActions(ctx)
	require.NoError(t, err)

	require.Len(t, crmClient.tasks, 1)
	assert.Equal(t, "high", crmClient.tasks[0].Priority)
	assert.Equal(t, "+24_hours", crmClient.tasks[0].DueOffset)
}

func TestUpdatePropertiesAddsBreadcrumbs(t *testing.T) {
	crmClient := &fakeCRM{}
	seq := testSequence(
		models.SequenceAction{
			ActionID:   "a1",
			ActionType: models.ActionUpdateProperties,
			Parameters: map[string]interface{}{
				"properties": map[string]interface{}{"abm_segment": "expansion"},
			},
		},
	)
	engine, _ := newTestEngine(t, crmClient, seq)
	ctx := context.Background()

	_, err := engine.Enroll(ctx, "c-1", "seq_test")
	require.NoError(t, err)
	_, err = engine.ProcessDueActions(ctx)
	require.NoError(t, err)

	require.Len(t, crmClient.updates, 1)
	update := crmClient.updates[0]
	assert.Equal(t, "expansion", update["abm_segment"])
	assert.Equal(t, "a1", update["last_sequence_action"])
	assert.NotEmpty(t, update["last_sequence_action_date"])
}

func TestSetEnrollmentStatus(t *testing.T) {
	engine, st := newTestEngine(t, &fakeCRM{})
	ctx := context.Background()

	enrollment, err := engine.Enroll(ctx, "c-1", "awareness_tech_001")
	require.NoError(t, err)

	require.NoError(t, engine.SetEnrollmentStatus(ctx, enrollment.EnrollmentID, models.StatusPaused))
	got, err := st.Get(ctx, "c-1", "awareness_tech_001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, got.Status)

	assert.Error(t, engine.SetEnrollmentStatus(ctx, enrollment.EnrollmentID, models.StatusCompleted))
}

func TestReportCountsEnrollments(t *testing.T) {
	engine, st := newTestEngine(t, &fakeCRM{})
	ctx := context.Background()

	first, err := engine.Enroll(ctx, "c-1", "high_engagement_001")
	require.NoError(t, err)
	_, err = engine.Enroll(ctx, "c-2", "high_engagement_001")
	require.NoError(t, err)

	first.Status = models.StatusCompleted
	require.NoError(t, st.Put(ctx, first))

	report, err := engine.Report(ctx, "high_engagement_001")
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalEnrollments)
	assert.Equal(t, 1, report.ActiveEnrollments)
	assert.Equal(t, 1, report.CompletedEnrollments)
	assert.InDelta(t, 0.5, report.CompletionRate, 1e-9)

	_, err = engine.Report(ctx, "missing_seq")
	assert.ErrorIs(t, err, ErrSequenceNotFound)
}
