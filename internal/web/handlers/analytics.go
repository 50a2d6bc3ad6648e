package handlers

import (
	"bytes"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/analytics"
	"github.com/kozaktomas/face-recognition/internal/constants"
	"github.com/kozaktomas/face-recognition/internal/web/binding"
)

const defaultTimelineSeconds = 600

// AnalyticsHandler serves session analytics.
type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
	validator  *binding.Validator
	logger     logrus.FieldLogger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(a *analytics.Aggregator, v *binding.Validator, logger logrus.FieldLogger) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: a, validator: v, logger: logger}
}

// Session returns the session summary.
func (h *AnalyticsHandler) Session(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.aggregator.SessionStats())
}

// Timeline returns detections bucketed by 10s over ?seconds (default 600).
func (h *AnalyticsHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.aggregator.Timeline(queryInt(r, "seconds", defaultTimelineSeconds)))
}

// Confidence returns the confidence histogram.
func (h *AnalyticsHandler) Confidence(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.aggregator.ConfidenceDistribution())
}

// Heatmap returns the face position grid.
func (h *AnalyticsHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.aggregator.Heatmap())
}

// Events returns the most recent events, newest first.
func (h *AnalyticsHandler) Events(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.aggregator.RecentEvents(queryInt(r, "limit", constants.DefaultEventLimit)))
}

// Challenges returns the recorded challenge scores.
func (h *AnalyticsHandler) Challenges(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.aggregator.ChallengeScores())
}

// SaveChallenge records a challenge score.
func (h *AnalyticsHandler) SaveChallenge(w http.ResponseWriter, r *http.Request) {
	var req binding.ChallengeScore
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	h.aggregator.RecordChallengeScore(req.Challenge, req.Score, req.Details)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExportJSON returns the full session dump.
func (h *AnalyticsHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.aggregator.ExportJSON())
}

// ExportCSV returns the retained events as a CSV attachment.
func (h *AnalyticsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.aggregator.ExportCSV(&buf); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=session_events.csv")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Reset starts a new analytics session.
func (h *AnalyticsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.aggregator.Reset()
	respondJSON(w, http.StatusOK, h.aggregator.SessionStats())
}
