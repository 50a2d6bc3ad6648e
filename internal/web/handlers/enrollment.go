package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/enrollment"
	"github.com/kozaktomas/face-recognition/internal/web/binding"
)

const defaultCaptureStep = "front"

// EnrollmentHandler exposes the enrollment state machine.
type EnrollmentHandler struct {
	manager   *enrollment.Manager
	validator *binding.Validator
	timeout   time.Duration
	logger    logrus.FieldLogger
}

// NewEnrollmentHandler creates a new enrollment handler. timeout bounds geometry calls.
func NewEnrollmentHandler(m *enrollment.Manager, v *binding.Validator, timeout time.Duration, logger logrus.FieldLogger) *EnrollmentHandler {
	return &EnrollmentHandler{manager: m, validator: v, timeout: timeout, logger: logger}
}

// Start begins a new enrollment session.
func (h *EnrollmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req binding.StartEnrollment
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}

	result, err := h.manager.Start(req.Name, req.Color)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Capture adds a sample for the given step.
func (h *EnrollmentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req binding.Capture
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	if req.Step == "" {
		req.Step = defaultCaptureStep
	}

	ctx, cancel := withTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.manager.Capture(ctx, req.Frame, req.Step)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Complete saves the session as a profile.
func (h *EnrollmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	result, err := h.manager.Complete(r.Context())
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Cancel discards the active session.
func (h *EnrollmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.Cancel())
}

// Status reports the active session progress.
func (h *EnrollmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.manager.Status())
}
