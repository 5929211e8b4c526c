package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"careroute/pkg/assessment"
	"careroute/pkg/capability"
	"careroute/pkg/escalation"
	"careroute/pkg/models"
	"careroute/pkg/orchestrator"
	"careroute/pkg/session"
)

// Orchestrator is the set of operations the HTTP API exposes.
type Orchestrator interface {
	ProcessMessage(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
	TriggerEscalation(ctx context.Context, userID, level, escContext, message string) (*models.EscalationRecord, error)
	ResolveEscalation(ctx context.Context, escalationID string) (bool, error)
	Session(ctx context.Context, id string) (*session.Session, error)
	Escalations(ctx context.Context, userID string) ([]models.EscalationRecord, error)
	Bookings(ctx context.Context, userID string) ([]models.Booking, error)
	Capabilities() []capability.Info
	EscalationRules() []escalation.RuleInfo
	EscalationStats(ctx context.Context) (models.EscalationStats, error)
	RequestBooking(ctx context.Context, req orchestrator.BookingRequest) (*orchestrator.BookingResponse, error)
	SubmitAssessment(ctx context.Context, assessmentID, userID string, responses []int) (*orchestrator.AssessmentResponse, error)
	AssessmentResults(ctx context.Context, userID string, limit int) ([]models.AssessmentResult, error)
	Assessments() []assessment.Info
}

// Status is the runtime state reported by /health and /status.
type Status struct {
	IsLeader         bool  `json:"is_leader"`
	LiveSessions     int   `json:"live_sessions"`
	PendingFollowUps int64 `json:"pending_follow_ups"`
}

type Handler struct {
	orch       Orchestrator
	logger     *logrus.Logger
	statusFunc func(ctx context.Context) (Status, error)
}

func NewHandler(orch Orchestrator, logger *logrus.Logger, statusFunc func(ctx context.Context) (Status, error)) *Handler {
	return &Handler{
		orch:       orch,
		logger:     logger,
		statusFunc: statusFunc,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) ChatMessage(w http.ResponseWriter, r *http.Request) {
	var request orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.orch.ProcessMessage(r.Context(), request)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.WithError(err).WithField("user_id", request.UserID).Error("Failed to process message")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) TriggerEscalation(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID  string `json:"user_id"`
		Level   string `json:"level"`
		Context string `json:"context"`
		Message string `json:"message,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.orch.TriggerEscalation(r.Context(), request.UserID, request.Level, request.Context, request.Message)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, orchestrator.ErrNoEscalation) {
			http.Error(w, "Escalation unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, rec)

	h.logger.WithFields(logrus.Fields{
		"escalation_id": rec.EscalationID,
		"user_id":       rec.UserID,
		"level":         rec.Level,
	}).Debug("Escalation triggered via API")
}

func (h *Handler) ResolveEscalation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	resolved, err := h.orch.ResolveEscalation(r.Context(), id)
	if errors.Is(err, orchestrator.ErrNoEscalation) {
		http.Error(w, "Escalation unavailable", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("escalation_id", id).Error("Failed to resolve escalation")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"escalation_id": id,
		"resolved":      resolved,
	})
}

func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	recs, err := h.orch.Escalations(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to list escalations")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []models.EscalationRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     userID,
		"escalations": recs,
	})
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	bookings, err := h.orch.Bookings(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to list bookings")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"bookings": bookings,
	})
}

func (h *Handler) EscalationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orch.EscalationStats(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute escalation stats")
		http.Error(w, "Error retrieving escalation statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// RequestBooking answers 201 when the booking was stored and 202 when only
// the escalation went through.
func (h *Handler) RequestBooking(w http.ResponseWriter, r *http.Request) {
	var request orchestrator.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.orch.RequestBooking(r.Context(), request)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.WithError(err).WithField("user_id", request.UserID).Error("Failed to handle booking request")
		http.Error(w, "Error processing booking request", http.StatusServiceUnavailable)
		return
	}

	status := http.StatusCreated
	if !resp.BookingCreated {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

func (h *Handler) Assessments(w http.ResponseWriter, r *http.Request) {
	list := h.orch.Assessments()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessments":       list,
		"total_assessments": len(list),
	})
}

func (h *Handler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var request struct {
		UserID    string `json:"user_id"`
		Responses []int  `json:"responses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.orch.SubmitAssessment(r.Context(), id, request.UserID, request.Responses)
	switch {
	case errors.Is(err, assessment.ErrUnknownAssessment):
		http.Error(w, "Assessment not found", http.StatusNotFound)
		return
	case errors.Is(err, assessment.ErrInvalidResponses):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.WithError(err).WithField("assessment", id).Error("Failed to submit assessment")
		http.Error(w, "Error processing assessment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) AssessmentResults(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := h.orch.AssessmentResults(r.Context(), userID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to list assessment results")
		http.Error(w, "Error retrieving assessment results", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []models.AssessmentResult{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"results":       results,
		"total_results": len(results),
	})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := h.orch.Session(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("session_id", id).Error("Failed to load session")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"capabilities": h.orch.Capabilities(),
	})
}

func (h *Handler) EscalationRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": h.orch.EscalationRules(),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st, err := h.statusFunc(r.Context())
	if err != nil {
		http.Error(w, "Health check failed", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"is_leader":     st.IsLeader,
		"live_sessions": st.LiveSessions,
		"timestamp":     time.Now(),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.statusFunc(r.Context())
	if err != nil {
		http.Error(w, "Failed to get status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_leader":          st.IsLeader,
		"live_sessions":      st.LiveSessions,
		"pending_follow_ups": st.PendingFollowUps,
		"timestamp":          time.Now(),
	})
}
