// Package matcher classifies face embeddings against the enrolled profiles.
package matcher

import (
	"math"
	"sync/atomic"

	"github.com/kozaktomas/face-recognition/internal/apperr"
	"github.com/kozaktomas/face-recognition/internal/constants"
	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/store"
)

// DistanceFunc returns a non-negative dissimilarity between two embeddings.
type DistanceFunc func(a, b geometry.Embedding) float64

// SnapshotSource provides the current profile set.
type SnapshotSource interface {
	Snapshot() *store.Snapshot
}

// Result is the classification of one detected face. Box is [x, y, w, h].
type Result struct {
	Box        [4]int               `json:"box"`
	Name       string               `json:"name"`
	Confidence float64              `json:"confidence"`
	Color      string               `json:"color"`
	ProfileID  *string              `json:"profile_id"`
	Landmarks  geometry.LandmarkSet `json:"landmarks,omitempty"`
}

// Known reports whether the face matched a profile.
func (r Result) Known() bool {
	return r.ProfileID != nil
}

// ConfusionRow holds, for one face, the best confidence against every profile name.
type ConfusionRow struct {
	FaceIndex    int                `json:"face_index"`
	Box          [4]int             `json:"box"`
	Similarities map[string]float64 `json:"similarities"`
}

// Matcher is a stateless nearest-neighbour classifier over store snapshots.
// Only the threshold is mutable.
type Matcher struct {
	source    SnapshotSource
	distance  DistanceFunc
	threshold atomic.Uint64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithDistance replaces the default euclidean distance.
func WithDistance(fn DistanceFunc) Option {
	return func(m *Matcher) {
		m.distance = fn
	}
}

// New creates a matcher reading from source with the given distance threshold.
func New(source SnapshotSource, threshold float64, opts ...Option) *Matcher {
	m := &Matcher{
		source:   source,
		distance: geometry.EuclideanDistance,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.SetThreshold(threshold)
	return m
}

// Threshold returns the maximum distance accepted as a match.
func (m *Matcher) Threshold() float64 {
	return math.Float64frombits(m.threshold.Load())
}

// SetThreshold sets the match distance, clamped to [0, 1].
func (m *Matcher) SetThreshold(distance float64) {
	if math.IsNaN(distance) {
		distance = constants.DefaultMatchThreshold
	}
	distance = min(max(distance, 0), 1)
	m.threshold.Store(math.Float64bits(distance))
}

// StrictnessToThreshold converts a 0-100 strictness percentage to a distance.
func StrictnessToThreshold(pct float64) (float64, error) {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return 0, apperr.Validation(apperr.ReasonInvalidThreshold, "threshold must be between 0 and 100, got %v", pct)
	}
	return 1 - pct/100, nil
}

// SetStrictness sets the threshold from a percentage: 100 is strictest.
func (m *Matcher) SetStrictness(pct float64) error {
	threshold, err := StrictnessToThreshold(pct)
	if err != nil {
		return err
	}
	m.SetThreshold(threshold)
	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func unknown(box [4]int, confidence float64) Result {
	return Result{
		Box:        box,
		Name:       constants.UnknownName,
		Confidence: confidence,
		Color:      constants.UnknownColor,
	}
}

func boxAt(boxes []geometry.BoundingBox, i int) [4]int {
	if i < len(boxes) {
		return boxes[i].XYWH()
	}
	return [4]int{}
}

// Match classifies each embedding against boxes[i] of the same index. Empty
// embedding slots produce no result. With no enrolled embeddings every detected
// face is unknown with zero confidence.
func (m *Matcher) Match(embeddings []geometry.Embedding, boxes []geometry.BoundingBox) []Result {
	snap := m.source.Snapshot()

	if snap.Empty() {
		n := max(len(embeddings), len(boxes))
		results := make([]Result, 0, n)
		for i := range n {
			if i < len(embeddings) && len(embeddings[i]) == 0 {
				continue
			}
			results = append(results, unknown(boxAt(boxes, i), 0))
		}
		return results
	}

	threshold := m.Threshold()
	entries := snap.Entries()
	results := make([]Result, 0, len(embeddings))
	for i, emb := range embeddings {
		if len(emb) == 0 {
			continue
		}
		bestIdx := -1
		bestDist := math.Inf(1)
		for j, entry := range entries {
			// strict < keeps the first enrolled embedding on ties
			if d := m.distance(emb, entry.Embedding); d < bestDist {
				bestDist = d
				bestIdx = j
			}
		}

		confidence := round3(max(0, 1-bestDist))
		if bestIdx < 0 || bestDist > threshold {
			results = append(results, unknown(boxAt(boxes, i), confidence))
			continue
		}

		p := snap.Profile(entries[bestIdx].Profile)
		id := p.ID
		results = append(results, Result{
			Box:        boxAt(boxes, i),
			Name:       p.Name,
			Confidence: confidence,
			Color:      p.Color,
			ProfileID:  &id,
		})
	}
	return results
}

// Confusion reports how similar each face is to each enrolled profile.
func (m *Matcher) Confusion(embeddings []geometry.Embedding, boxes []geometry.BoundingBox) []ConfusionRow {
	snap := m.source.Snapshot()
	if snap.Empty() || len(embeddings) == 0 {
		return []ConfusionRow{}
	}

	rows := make([]ConfusionRow, 0, len(embeddings))
	for i, emb := range embeddings {
		if len(emb) == 0 {
			continue
		}
		similarities := make(map[string]float64)
		for _, entry := range snap.Entries() {
			name := snap.Profile(entry.Profile).Name
			conf := round3(max(0, 1-m.distance(emb, entry.Embedding)))
			if cur, ok := similarities[name]; !ok || conf > cur {
				similarities[name] = conf
			}
		}
		rows = append(rows, ConfusionRow{FaceIndex: i, Box: boxAt(boxes, i), Similarities: similarities})
	}
	return rows
}
