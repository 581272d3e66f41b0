package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ILLUVRSE/abm-engine/internal/analytics"
	"github.com/ILLUVRSE/abm-engine/internal/auth"
	"github.com/ILLUVRSE/abm-engine/internal/content"
	"github.com/ILLUVRSE/abm-engine/internal/crm"
	"github.com/ILLUVRSE/abm-engine/internal/models"
	"github.com/ILLUVRSE/abm-engine/internal/nurture"
	"github.com/ILLUVRSE/abm-engine/internal/service"
	"github.com/ILLUVRSE/abm-engine/internal/store"
)

const debugToken = "test-debug"

type stubCRM struct{}

func (stubCRM) GetContact(ctx context.Context, contactID string, properties ...string) (crm.Contact, error) {
	return crm.Contact{ID: contactID, Properties: map[string]string{}}, nil
}

func (stubCRM) UpdateContactProperties(ctx context.Context, contactID string, properties map[string]string) (crm.Contact, error) {
	return crm.Contact{ID: contactID, Properties: properties}, nil
}

func (stubCRM) CreateSalesTask(ctx context.Context, contactID string, cfg crm.TaskConfig) (crm.Task, error) {
	return crm.Task{ID: "task-1"}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	contentEngine := content.New(content.SampleCatalog(time.Now()), content.DefaultTables())
	analyticsEngine := analytics.New(analytics.DefaultWeights())
	nurtureEngine := nurture.New(nurture.BuiltinSequences(), st, stubCRM{}, contentEngine)
	svc := service.New(st, contentEngine, analyticsEngine, nurtureEngine, nil)
	verifier := auth.NewVerifier("", true, debugToken)
	return New(svc, verifier).Router(), st
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, authorized bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if authorized {
		req.Header.Set("X-Debug-Token", debugToken)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["ok"])
}

func TestWriteEndpointsRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/nurture/sweep", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEngagementEventReturnsScore(t *testing.T) {
	router, _ := newTestRouter(t)
	event := models.EngagementEvent{
		ContactID: "c-1",
		CompanyID: "acme",
		EventType: models.EventContentDownload,
	}
	rec := doJSON(t, router, http.MethodPost, "/engagement/events", event, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var score models.EngagementScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &score))
	assert.Equal(t, "c-1", score.ContactID)
	assert.Positive(t, score.Score)
}

func TestEngagementEventRejectsUnknownType(t *testing.T) {
	router, _ := newTestRouter(t)
	event := models.EngagementEvent{ContactID: "c-1", EventType: "page_like"}
	rec := doJSON(t, router, http.MethodPost, "/engagement/events", event, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactScoreEndpoint(t *testing.T) {
	router, st := newTestRouter(t)
	require.NoError(t, st.InsertEvent(context.Background(), models.EngagementEvent{
		EventID:   "ev-1",
		ContactID: "c-1",
		EventType: models.EventDemoRequest,
		Timestamp: time.Now().Add(-2 * time.Hour),
	}))

	rec := doJSON(t, router, http.MethodGet, "/contacts/c-1/score", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var score models.EngagementScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &score))
	assert.Positive(t, score.Score)
}

func TestRecommendationsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	body := map[string]interface{}{
		"profile": models.ContactProfile{
			Industry:     models.IndustryStaffingRecruitment,
			PersonaType:  models.PersonaOperationsManager,
			JourneyStage: models.StageProblemAwareness,
		},
		"count": 3,
	}
	rec := doJSON(t, router, http.MethodPost, "/contacts/c-1/recommendations", body, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var recs []models.ContentRecommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "wp_001", recs[0].ContentID)
}

func TestEnrollmentAndReportFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/nurture/enrollments", map[string]string{
		"contactId":  "c-1",
		"sequenceId": "high_engagement_001",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var enrollment models.ContactSequenceEnrollment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enrollment))
	assert.Equal(t, models.StatusActive, enrollment.Status)

	rec = doJSON(t, router, http.MethodGet, "/nurture/sequences/high_engagement_001/report", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var report nurture.SequenceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.TotalEnrollments)
	assert.Equal(t, 1, report.ActiveEnrollments)
}

func TestEnrollmentUnknownSequenceIs404(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/nurture/enrollments", map[string]string{
		"contactId":  "c-1",
		"sequenceId": "nope",
	}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerEndpointEnrolls(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/nurture/triggers", map[string]interface{}{
		"contactId": "c-1",
		"triggerData": map[string]interface{}{
			"abm_content_engagement_score": 90,
		},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Enrollments []models.ContactSequenceEnrollment `json:"enrollments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Enrollments, 1)
	assert.Equal(t, "high_engagement_001", resp.Enrollments[0].SequenceID)
}

func TestSweepEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/nurture/sweep", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Processed int `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Processed)
}
