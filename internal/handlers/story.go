package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/disparter/toguwaka-discord-game-sub002/internal/metrics"
	"github.com/disparter/toguwaka-discord-game-sub002/internal/storage"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/engine"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/state"
)

// ChoiceRequest is the body of a choice submission.
type ChoiceRequest struct {
	Choice int `json:"choice"`
}

// ErrorResponse is the JSON error body returned to the chat-bot layer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StoryHandler exposes the progression engine to the chat-bot command layer:
//
//	GET  /v1/story/{playerID}           current presentation (creates a record on first entry)
//	POST /v1/story/{playerID}/continue  advance past a continue affordance
//	POST /v1/story/{playerID}/choice    apply a choice by index
type StoryHandler struct {
	engine  *engine.Engine
	storage storage.Storage
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewStoryHandler(eng *engine.Engine, store storage.Storage, m *metrics.Metrics, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		engine:  eng,
		storage: store,
		metrics: m,
		logger:  logger,
	}
}

func (h *StoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID, action, ok := parseStoryPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "player id is required in URL path (e.g., /v1/story/12345)")
		return
	}

	switch {
	case r.Method == http.MethodGet && action == "":
		h.handleGet(w, r, playerID)
	case r.Method == http.MethodPost && action == "continue":
		h.handleMutation(w, r, playerID, func(ctx context.Context, rec *state.ProgressRecord) (*state.ProgressRecord, error) {
			return h.engine.Advance(ctx, rec)
		})
	case r.Method == http.MethodPost && action == "choice":
		var req ChoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body. Expected JSON with 'choice' field.")
			return
		}
		h.handleMutation(w, r, playerID, func(ctx context.Context, rec *state.ProgressRecord) (*state.ProgressRecord, error) {
			return h.engine.Choose(ctx, rec, req.Choice)
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// parseStoryPath splits /v1/story/{playerID}[/{action}].
func parseStoryPath(path string) (playerID, action string, ok bool) {
	rest := strings.TrimPrefix(path, "/v1/story")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func (h *StoryHandler) handleGet(w http.ResponseWriter, r *http.Request, playerID string) {
	ctx := r.Context()

	rec, err := h.storage.LoadProgress(ctx, playerID)
	if err != nil {
		h.logger.Error("Failed to load progress", "player_id", playerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load progress")
		return
	}
	if rec == nil {
		rec = h.engine.NewRecord(playerID)
		if err := h.storage.SaveProgress(ctx, rec); err != nil && !errors.Is(err, storage.ErrConflict) {
			h.logger.Error("Failed to create progress record", "player_id", playerID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create progress record")
			return
		}
	}

	h.writePresentation(w, rec)
}

// handleMutation runs a load-mutate-save cycle for the player, retrying the
// whole cycle once on a persistence conflict. The engine's idempotent reward
// application makes the retry safe.
func (h *StoryHandler) handleMutation(w http.ResponseWriter, r *http.Request, playerID string, op func(context.Context, *state.ProgressRecord) (*state.ProgressRecord, error)) {
	ctx := r.Context()

	for attempt := 0; attempt < 2; attempt++ {
		rec, err := h.storage.LoadProgress(ctx, playerID)
		if err != nil {
			h.logger.Error("Failed to load progress", "player_id", playerID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load progress")
			return
		}
		if rec == nil {
			rec = h.engine.NewRecord(playerID)
		}

		next, err := op(ctx, rec)
		if err != nil {
			h.writeEngineError(w, playerID, err)
			return
		}

		if err := h.storage.SaveProgress(ctx, next); err != nil {
			if errors.Is(err, storage.ErrConflict) && attempt == 0 {
				h.logger.Warn("Progress save conflict, retrying", "player_id", playerID)
				continue
			}
			if errors.Is(err, storage.ErrConflict) {
				h.countChoiceError("conflict")
				writeError(w, http.StatusConflict, "Progress was modified concurrently. Please try again.")
				return
			}
			h.logger.Error("Failed to save progress", "player_id", playerID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to save progress")
			return
		}

		h.recordTransition(rec, next)
		h.writePresentation(w, next)
		return
	}
}

func (h *StoryHandler) recordTransition(before, after *state.ProgressRecord) {
	if h.metrics == nil {
		return
	}
	if after.CurrentChapter != before.CurrentChapter || (after.StoryComplete && !before.StoryComplete) {
		h.metrics.Transitions.WithLabelValues(before.CurrentChapter).Inc()
	}
	if after.StoryComplete && !before.StoryComplete {
		h.metrics.Completions.Inc()
	}
}

func (h *StoryHandler) countChoiceError(reason string) {
	if h.metrics != nil {
		h.metrics.ChoiceErrors.WithLabelValues(reason).Inc()
	}
}

func (h *StoryHandler) writePresentation(w http.ResponseWriter, rec *state.ProgressRecord) {
	p, err := h.engine.Enter(rec)
	if err != nil {
		h.writeEngineError(w, rec.PlayerID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		h.logger.Error("Failed to encode presentation", "player_id", rec.PlayerID, "error", err)
	}
}

// writeEngineError maps the engine's error taxonomy to HTTP statuses. Content
// defects and unresolved transitions are logged with enough detail to be
// actionable; user-facing conditions are returned as typed results.
func (h *StoryHandler) writeEngineError(w http.ResponseWriter, playerID string, err error) {
	var invalidChoice *engine.InvalidChoiceError
	var notMet *engine.RequirementsNotMetError
	var unresolved *engine.UnresolvedTransitionError
	var defect *engine.ContentDefectError

	switch {
	case errors.As(err, &invalidChoice):
		h.countChoiceError("invalid_choice")
		writeError(w, http.StatusBadRequest, invalidChoice.Error())
	case errors.As(err, &notMet):
		h.countChoiceError("requirements_not_met")
		writeError(w, http.StatusForbidden, notMet.Error())
	case errors.As(err, &unresolved):
		h.logger.Error("Unresolved conditional transition",
			"player_id", playerID,
			"chapter_id", unresolved.ChapterID,
			"variable", unresolved.Variable,
			"value", unresolved.Value)
		writeError(w, http.StatusInternalServerError, "Story content error. The transition was not applied.")
	case errors.As(err, &defect):
		h.logger.Error("Content defect hit at runtime",
			"player_id", playerID,
			"chapter_id", defect.ChapterID,
			"detail", defect.Detail)
		writeError(w, http.StatusInternalServerError, "Story content error. The transition was not applied.")
	default:
		h.logger.Error("Story operation failed", "player_id", playerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Story operation failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
