package handlers

import (
	"net/http"
)

// ProfileCounter reports the number of enrolled profiles.
type ProfileCounter interface {
	Count() int
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status         string  `json:"status"`
	Timestamp      float64 `json:"timestamp"`
	ProfilesLoaded int     `json:"profiles_loaded"`
}

// HealthCheck returns a handler reporting liveness and the loaded profile count.
func HealthCheck(profiles ProfileCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status:         "ok",
			Timestamp:      unixNow(),
			ProfilesLoaded: profiles.Count(),
		})
	}
}
