package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ayusman/posereps/internal/observability"
	"github.com/ayusman/posereps/internal/reps"
	"github.com/ayusman/posereps/internal/session"
)

// Controller is the part of session.Manager the API drives.
type Controller interface {
	Snapshot() session.Snapshot
	Start(ctx context.Context) (session.Snapshot, error)
	Stop() (session.Snapshot, error)
	Reset() session.Snapshot
	SetThreshold(percent int) (session.Snapshot, error)
}

// SessionHandler handles HTTP requests for the current session.
type SessionHandler struct {
	sessions Controller
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler for the given controller.
func NewSessionHandler(c Controller, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: c,
		logger:   observability.OrNop(logger).Named("api"),
	}
}

// Routes registers the session endpoints on r.
func (h *SessionHandler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Post("/start", h.start)
	r.Post("/stop", h.stop)
	r.Post("/reset", h.reset)
	r.Put("/threshold", h.threshold)
}

type thresholdRequest struct {
	Percent *int `json:"percent"`
}

// get handles GET /api/session.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Snapshot())
}

// start handles POST /api/session/start. Failing to open the camera or the
// model leaves the session stopped and answers 503; the client may retry.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Start(r.Context())
	if err != nil {
		h.logger.Warn("Session start failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// stop handles POST /api/session/stop.
func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Stop()
	if errors.Is(err, session.ErrNotRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Session stop failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to stop session")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// reset handles POST /api/session/reset.
func (h *SessionHandler) reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Reset())
}

// threshold handles PUT /api/session/threshold.
func (h *SessionHandler) threshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Percent == nil {
		writeError(w, http.StatusBadRequest, "percent is required")
		return
	}

	snap, err := h.sessions.SetThreshold(*req.Percent)
	if errors.Is(err, reps.ErrThresholdRange) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Threshold update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update threshold")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
