// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Recognition constants
const (
	// UnknownName is reported for faces that match no enrolled profile
	UnknownName = "unknown"

	// UnknownColor is the overlay color for unknown faces
	UnknownColor = "#666666"

	// DefaultProfileColor is used when enrollment starts without a color
	DefaultProfileColor = "#00d9ff"

	// DefaultMatchThreshold is the maximum euclidean distance for a match
	// Lower values = stricter matching
	DefaultMatchThreshold = 0.6
)

// Enrollment constants
const (
	// MinSamplesToComplete is the minimum number of captured samples for a profile
	MinSamplesToComplete = 3

	// ThumbnailPadding is the margin in pixels added around the face before cropping
	ThumbnailPadding = 30

	// ThumbnailSize is the edge length of the square profile thumbnail
	ThumbnailSize = 100

	// SessionIDLength is the number of uuid characters used for session ids
	SessionIDLength = 8
)

// Analytics constants
const (
	// StatsWindow is the number of most recent fps/latency samples used for stats
	StatsWindow = 100

	// TimelineBucketSeconds is the width of one timeline bucket
	TimelineBucketSeconds = 10

	// ConfidenceBins is the number of histogram bins over [0, 1]
	ConfidenceBins = 20

	// HeatmapGrid is the number of heatmap rows and columns
	HeatmapGrid = 10

	// HeatmapPositions is the number of most recent positions used for the heatmap
	HeatmapPositions = 500

	// HeatmapFrameWidth and HeatmapFrameHeight normalize face centers
	HeatmapFrameWidth  = 640
	HeatmapFrameHeight = 480

	// DefaultEventLimit is the default number of recent events returned
	DefaultEventLimit = 50

	// ExportEventLimit is the number of events included in the JSON export
	ExportEventLimit = 1000

	// ChallengeMaxScore is the maximum score of a challenge
	ChallengeMaxScore = 10
)
