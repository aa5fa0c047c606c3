package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/disparter/toguwaka-discord-game-sub002/internal/metrics"
	"github.com/disparter/toguwaka-discord-game-sub002/internal/storage"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/engine"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// ValidateHandler exposes content validation:
//
//	GET  /v1/validate         validate the currently loaded content model
//	POST /v1/validate/reload  re-read the content source and swap the model in
//	                          only when the fresh content is defect free
type ValidateHandler struct {
	engine  *engine.Engine
	storage storage.Storage
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewValidateHandler(eng *engine.Engine, store storage.Storage, m *metrics.Metrics, logger *slog.Logger) *ValidateHandler {
	return &ValidateHandler{
		engine:  eng,
		storage: store,
		metrics: m,
		logger:  logger,
	}
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/validate"), "/")

	switch {
	case r.Method == http.MethodGet && action == "":
		h.handleValidate(w)
	case r.Method == http.MethodPost && action == "reload":
		h.handleReload(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *ValidateHandler) handleValidate(w http.ResponseWriter) {
	report := story.Validate(h.engine.Model())
	h.observe(report)
	h.writeReport(w, report)
}

func (h *ValidateHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	model, err := h.storage.LoadContent(r.Context())
	if err != nil {
		h.logger.Error("Content reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to reload content: "+err.Error())
		return
	}

	report := story.Validate(model)
	h.observe(report)
	if !report.Clean() {
		h.logger.Warn("Content reload rejected: validation defects",
			"broken_references", len(report.BrokenReferences),
			"undefined_variables", len(report.UndefinedVariables),
			"malformed", len(report.Malformed))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(report)
		return
	}

	h.engine.Reload(model)
	h.logger.Info("Content reloaded", "chapters", model.Len(), "entry", model.EntryID())
	h.writeReport(w, report)
}

func (h *ValidateHandler) observe(report *story.ValidationReport) {
	if h.metrics != nil {
		defects := len(report.BrokenReferences) + len(report.UndefinedVariables) + len(report.Malformed)
		h.metrics.ValidationDefects.Set(float64(defects))
	}
}

func (h *ValidateHandler) writeReport(w http.ResponseWriter, report *story.ValidationReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.Error("Failed to encode validation report", "error", err)
	}
}
