package pipeline

import (
	"github.com/kozaktomas/face-recognition/internal/matcher"
)

// Settings are the processing options applied to a frame.
type Settings struct {
	ShowLandmarks  bool    `json:"show_landmarks"`
	DetectEmotions bool    `json:"detect_emotions"`
	Threshold      float64 `json:"threshold"` // match distance
}

// SettingsUpdate is a partial settings change. Threshold is a 0-100 strictness.
type SettingsUpdate struct {
	ShowLandmarks  *bool    `json:"show_landmarks"`
	DetectEmotions *bool    `json:"detect_emotions"`
	Threshold      *float64 `json:"threshold" validate:"omitempty,min=0,max=100"`
}

func (s Settings) apply(u SettingsUpdate) (Settings, error) {
	if u.Threshold != nil {
		distance, err := matcher.StrictnessToThreshold(*u.Threshold)
		if err != nil {
			return s, err
		}
		s.Threshold = distance
	}
	if u.ShowLandmarks != nil {
		s.ShowLandmarks = *u.ShowLandmarks
	}
	if u.DetectEmotions != nil {
		s.DetectEmotions = *u.DetectEmotions
	}
	return s, nil
}
