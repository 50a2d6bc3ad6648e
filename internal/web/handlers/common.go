package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/apperr"
	"github.com/kozaktomas/face-recognition/internal/logging"
	"github.com/kozaktomas/face-recognition/internal/web/binding"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForKind maps an error kind to an HTTP status.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindCapacity, apperr.KindConflict, apperr.KindState:
		return http.StatusConflict
	case apperr.KindSubjectAmbiguity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondAppError sends a classified error as {error, kind, reason}. Unclassified
// errors are logged and reported as 500 without details.
func respondAppError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	status := statusForKind(apperr.KindOf(err))
	if status == http.StatusInternalServerError {
		logging.WithRequestID(logger, r.Context()).WithError(err).Error("request failed")
		respondError(w, status, "internal server error")
		return
	}
	respondJSON(w, status, binding.NewErrorBody(err))
}

// withTimeout bounds calls to the geometry service.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// queryInt reads an integer query parameter, falling back to def when missing or invalid.
func queryInt(r *http.Request, key string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return n
	}
	return def
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
