package enrollment

import (
	"encoding/json"
	"time"

	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/quality"
	"github.com/kozaktomas/face-recognition/internal/store"
)

// Session is the in-progress enrollment of one identity.
type Session struct {
	ID         string
	Name       string
	Color      string
	Buckets    map[string][]geometry.Embedding
	Embeddings []geometry.Embedding
	StartedAt  time.Time
	Thumbnail  string
}

// Captured returns the total number of samples.
func (s *Session) Captured() int {
	return len(s.Embeddings)
}

// StartResult is returned when a session starts.
type StartResult struct {
	Status          string         `json:"status"`
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Poses           []string       `json:"poses"`
	RequiredSamples map[string]int `json:"required_samples"`
	TotalRequired   int            `json:"total_required"`
}

// CaptureResult is returned for an accepted sample.
type CaptureResult struct {
	Status        string  `json:"status"`
	Step          string  `json:"step"`
	StepProgress  int     `json:"step_progress"`
	StepRequired  int     `json:"step_required"`
	TotalProgress int     `json:"total_progress"`
	TotalRequired int     `json:"total_required"`
	Thumbnail     *string `json:"thumbnail"`
}

// CompleteResult is returned when a profile has been saved. Lookalike is the
// closest profile that already existed, if any.
type CompleteResult struct {
	Status    string           `json:"status"`
	Profile   store.Summary    `json:"profile"`
	Lookalike *store.Candidate `json:"lookalike"`
}

// CancelResult is returned by Cancel.
type CancelResult struct {
	Status string `json:"status"`
}

// PoseProgress is the capture count of one pose.
type PoseProgress struct {
	Captured int `json:"captured"`
	Required int `json:"required"`
}

// StatusResult describes the active session, if any.
type StatusResult struct {
	Active        bool
	ID            string
	Name          string
	Progress      map[string]PoseProgress
	TotalCaptured int
	TotalRequired int
}

// MarshalJSON renders an inactive status as {"active": false}.
func (s StatusResult) MarshalJSON() ([]byte, error) {
	if !s.Active {
		return json.Marshal(struct {
			Active bool `json:"active"`
		}{})
	}
	return json.Marshal(struct {
		Active        bool                    `json:"active"`
		ID            string                  `json:"id"`
		Name          string                  `json:"name"`
		Progress      map[string]PoseProgress `json:"progress"`
		TotalCaptured int                     `json:"total_captured"`
		TotalRequired int                     `json:"total_required"`
	}{true, s.ID, s.Name, s.Progress, s.TotalCaptured, s.TotalRequired})
}

// FeedbackResult is live quality feedback for an enrollment frame.
type FeedbackResult struct {
	Quality   quality.Report  `json:"quality"`
	FaceCount int             `json:"face_count"`
	FaceBox   *[4]int         `json:"face_box,omitempty"`
	Angle     *geometry.Angle `json:"angle,omitempty"`
}
