// Package realtime implements the WebSocket channel used by the live camera UI.
package realtime

import "encoding/json"

// Inbound events.
const (
	EventVideoFrame         = "video_frame"
	EventChallengeFrame     = "challenge_frame"
	EventEnrollmentFrame    = "enrollment_frame"
	EventUpdateSettings     = "update_settings"
	EventSaveChallengeScore = "save_challenge_score"
)

// Outbound events.
const (
	EventConnected          = "connected"
	EventFrameProcessed     = "frame_processed"
	EventChallengeResult    = "challenge_result"
	EventConfusionData      = "confusion_data"
	EventEnrollmentFeedback = "enrollment_feedback"
	EventSettingsUpdated    = "settings_updated"
	EventChallengeSaved     = "challenge_saved"
	EventError              = "error"
)

const multiFaceChallenge = "multi_face"

// Inbound is a message received from a client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is a message sent to a client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// StatusPayload is a plain acknowledgement.
type StatusPayload struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id,omitempty"`
}
