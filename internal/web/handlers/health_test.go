package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-recognition/internal/store"
)

func TestHealthCheck(t *testing.T) {
	deps := newTestDeps(t, store.Profile{ID: "a1", Name: "Alice"})

	recorder := httptest.NewRecorder()
	HealthCheck(deps.store)(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var resp HealthResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Status != "ok" || resp.ProfilesLoaded != 1 || resp.Timestamp == 0 {
		t.Errorf("unexpected health response %+v", resp)
	}
}
