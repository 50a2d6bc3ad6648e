package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/pipeline"
	"github.com/kozaktomas/face-recognition/internal/web/binding"
)

// RecognitionHandler exposes the frame pipeline over REST.
type RecognitionHandler struct {
	pipeline  *pipeline.Pipeline
	validator *binding.Validator
	timeout   time.Duration
	logger    logrus.FieldLogger
}

// NewRecognitionHandler creates a new recognition handler. timeout bounds geometry calls.
func NewRecognitionHandler(p *pipeline.Pipeline, v *binding.Validator, timeout time.Duration, logger logrus.FieldLogger) *RecognitionHandler {
	return &RecognitionHandler{pipeline: p, validator: v, timeout: timeout, logger: logger}
}

// SettingsResponse echoes the settings the next frame will use.
type SettingsResponse struct {
	Status   string            `json:"status"`
	Settings pipeline.Settings `json:"settings"`
}

// Performance returns fps, frame count, stage timings and settings.
func (h *RecognitionHandler) Performance(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.pipeline.Performance())
}

// UpdateSettings applies a partial settings change to the next frame.
func (h *RecognitionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req pipeline.SettingsUpdate
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}

	settings, err := h.pipeline.UpdateSettings(req)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, SettingsResponse{Status: "ok", Settings: settings})
}

// Recognize processes a single frame. An undecodable frame gives 204.
func (h *RecognitionHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req binding.Frame
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}

	ctx, cancel := withTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.pipeline.Process(ctx, req.Frame)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
