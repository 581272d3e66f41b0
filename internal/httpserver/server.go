package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ILLUVRSE/abm-engine/internal/auth"
	"github.com/ILLUVRSE/abm-engine/internal/models"
	"github.com/ILLUVRSE/abm-engine/internal/nurture"
	"github.com/ILLUVRSE/abm-engine/internal/service"
)

type Server struct {
	service  *service.Service
	verifier *auth.Verifier
}

func New(svc *service.Service, verifier *auth.Verifier) *Server {
	return &Server{service: svc, verifier: verifier}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Get("/contacts/{contactID}/score", s.handleContactScore)
	r.Get("/accounts/{companyID}/engagement", s.handleAccountEngagement)
	r.Get("/nurture/sequences/{sequenceID}/report", s.handleSequenceReport)

	r.Group(func(r chi.Router) {
		r.Use(s.writeAuth)
		r.Post("/engagement/events", s.handleEngagementEvent)
		r.Post("/contacts/{contactID}/recommendations", s.handleRecommendations)
		r.Post("/nurture/triggers", s.handleTrigger)
		r.Post("/nurture/enrollments", s.handleEnroll)
		r.Post("/nurture/sweep", s.handleSweep)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.service.Ping(ctx); err != nil {
		status["ok"] = false
		status["store"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleEngagementEvent(w http.ResponseWriter, r *http.Request) {
	var event models.EngagementEvent
	if err := decodeJSON(w, r, &event); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	score, err := s.service.RecordEngagement(r.Context(), event)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, score)
}

func (s *Server) handleContactScore(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "contactID")
	windowDays := queryInt(r, "windowDays", 0)
	score, err := s.service.ScoreContact(r.Context(), contactID, windowDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, score)
}

func (s *Server) handleAccountEngagement(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	windowDays := queryInt(r, "windowDays", 0)
	analysis, err := s.service.AnalyzeAccount(r.Context(), companyID, windowDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

type recommendationRequest struct {
	Profile           models.ContactProfile `json:"profile"`
	Count             int                   `json:"count"`
	ExcludeRecentDays int                   `json:"excludeRecentDays"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Profile.ContactID = chi.URLParam(r, "contactID")
	if req.ExcludeRecentDays <= 0 {
		req.ExcludeRecentDays = 30
	}
	recs, err := s.service.Recommend(r.Context(), req.Profile, req.Count, req.ExcludeRecentDays)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

type triggerRequest struct {
	ContactID   string                 `json:"contactId"`
	TriggerData map[string]interface{} `json:"triggerData"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	enrollments, err := s.service.HandleTrigger(r.Context(), req.ContactID, req.TriggerData)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"enrollments": enrollments,
	})
}

type enrollRequest struct {
	ContactID  string `json:"contactId"`
	SequenceID string `json:"sequenceId"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ContactID == "" || req.SequenceID == "" {
		respondError(w, http.StatusBadRequest, "contactId and sequenceId required")
		return
	}
	enrollment, err := s.service.Enroll(r.Context(), req.ContactID, req.SequenceID)
	if err != nil {
		if errors.Is(err, nurture.ErrSequenceNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, enrollment)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.Sweep(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"processed": len(results),
		"results":   results,
	})
}

func (s *Server) handleSequenceReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.SequenceReport(r.Context(), chi.URLParam(r, "sequenceID"))
	if err != nil {
		if errors.Is(err, nurture.ErrSequenceNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) writeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.verifier.VerifyRequest(r); err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
