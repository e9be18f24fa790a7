package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/moltbot/molt-treasury/internal/runstate"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// StateLoader loads the latest run-state snapshot.
type StateLoader interface {
	Load(ctx context.Context) (*runstate.Snapshot, error)
}

// HistoryReader lists recent cycle snapshots, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]*runstate.Snapshot, error)
}

// StateHandler serves the treasury run state.
type StateHandler struct {
	state   StateLoader
	history HistoryReader
	logger  *zap.Logger
}

// NewStateHandler creates a state handler. history may be nil.
func NewStateHandler(state StateLoader, history HistoryReader, logger *zap.Logger) *StateHandler {
	return &StateHandler{
		state:   state,
		history: history,
		logger:  logger,
	}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleState handles GET /api/state.
func (h *StateHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.state.Load(r.Context())
	if errors.Is(err, runstate.ErrNoState) {
		h.writeError(w, runstate.ErrNoState.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("state-load-failed", zap.Error(err))
		h.writeError(w, "failed to load run state", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, snap)
}

// HandleHistory handles GET /api/history?limit=<n>.
func (h *StateHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, "history is disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			h.writeError(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	snaps, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("history-load-failed", zap.Error(err))
		h.writeError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []*runstate.Snapshot{}
	}

	h.writeJSON(w, http.StatusOK, snaps)
}

func (h *StateHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *StateHandler) writeError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}
