package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/logging"
	"github.com/kozaktomas/face-recognition/internal/store"
)

// ProfilesHandler serves the enrolled profiles.
type ProfilesHandler struct {
	store  *store.Store
	logger logrus.FieldLogger
}

// NewProfilesHandler creates a new profiles handler
func NewProfilesHandler(s *store.Store, logger logrus.FieldLogger) *ProfilesHandler {
	return &ProfilesHandler{store: s, logger: logger}
}

// ProfilesResponse lists profile summaries.
type ProfilesResponse struct {
	Profiles    []store.Summary `json:"profiles"`
	MaxProfiles int             `json:"max_profiles"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// List returns all enrolled profiles without embeddings.
func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ProfilesResponse{
		Profiles:    h.store.Summaries(),
		MaxProfiles: h.store.MaxProfiles(),
	})
}

// Delete removes a profile and republishes the store snapshot.
func (h *ProfilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "profileId")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing profile ID")
		return
	}

	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "Profile not found")
		return
	}

	logging.WithRequestID(h.logger, r.Context()).WithField("profile_id", sanitizeForLog(id)).Info("profile deleted")
	respondJSON(w, http.StatusOK, DeleteResponse{Status: "deleted", ID: id})
}
