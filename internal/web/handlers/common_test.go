package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-recognition/internal/apperr"
	"github.com/kozaktomas/face-recognition/internal/logging"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})

	assertContentType(t, recorder, "application/json")
}

func TestRespondJSON_SetsStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"BadRequest", http.StatusBadRequest},
		{"NotFound", http.StatusNotFound},
		{"InternalServerError", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, nil)

			if recorder.Code != tc.statusCode {
				t.Errorf("expected status %d, got %d", tc.statusCode, recorder.Code)
			}
			if recorder.Body.Len() != 0 {
				t.Errorf("expected empty body for nil data, got %q", recorder.Body.String())
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusNotFound, "Profile not found")

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Profile not found")
}

func TestRespondAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.Validation(apperr.ReasonEmptyName, "Name is required"), http.StatusBadRequest},
		{"capacity", apperr.Capacity(apperr.ReasonMaxProfiles, "full"), http.StatusConflict},
		{"conflict", apperr.Conflict(apperr.ReasonDuplicateName, "dup"), http.StatusConflict},
		{"state", apperr.State(apperr.ReasonNoSession, "none"), http.StatusConflict},
		{"subject ambiguity", apperr.SubjectAmbiguity(apperr.ReasonNoFace, "No face"), http.StatusUnprocessableEntity},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			respondAppError(recorder, req, logging.Discard(), tc.err)

			assertAppError(t, recorder, tc.status, string(apperr.KindOf(tc.err)), apperr.ReasonOf(tc.err))
		})
	}
}

func TestRespondAppError_HidesInternalErrors(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	respondAppError(recorder, req, logging.Discard(), errors.New("pq: connection refused"))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	var body map[string]any
	json.Unmarshal(recorder.Body.Bytes(), &body)
	if body["error"] != "internal server error" || body["kind"] != nil {
		t.Errorf("unexpected body %v", body)
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("expected 'abc', got %q", got)
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/x?limit=10", 10},
		{"/x?limit=abc", 50},
		{"/x", 50},
		{"/x?limit=-3", -3},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, tc.url, nil)
		if got := queryInt(req, "limit", 50); got != tc.want {
			t.Errorf("queryInt(%s) = %d, want %d", tc.url, got, tc.want)
		}
	}
}
