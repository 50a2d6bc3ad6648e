// Package analytics aggregates per-frame detections into sliding-window session statistics.
package analytics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/kozaktomas/face-recognition/internal/constants"
)

// Detection is one recognized or unknown face reported by the pipeline.
type Detection struct {
	Name       string
	Confidence float64
	Box        [4]int
}

// Event is a retained detection.
type Event struct {
	Timestamp  float64 `json:"timestamp"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

type sample struct {
	at    float64
	value float64
}

type confidenceSample struct {
	at         float64
	name       string
	confidence float64
}

type position struct {
	at   float64
	x, y float64
}

// ChallengeScore is the last recorded score of a challenge.
type ChallengeScore struct {
	Score     float64        `json:"score"`
	MaxScore  int            `json:"max_score"`
	Timestamp float64        `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// Aggregator holds the session histories. All methods are safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	now       func() time.Time
	retention float64

	sessionID    string
	sessionStart time.Time

	fps        []sample
	latency    []sample
	confidence []confidenceSample
	positions  []position
	events     []Event

	counts     map[string]int
	challenges map[string]ChallengeScore
}

// New creates an aggregator that keeps retentionSeconds of history.
func New(retentionSeconds int, opts ...Option) *Aggregator {
	a := &Aggregator{
		now:        time.Now,
		retention:  float64(retentionSeconds),
		challenges: make(map[string]ChallengeScore),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.resetLocked()
	return a
}

func (a *Aggregator) resetLocked() {
	now := a.now()
	a.sessionID = fmt.Sprintf("session_%d", now.Unix())
	a.sessionStart = now
	a.fps = nil
	a.latency = nil
	a.confidence = nil
	a.positions = nil
	a.events = nil
	a.counts = make(map[string]int)
	clear(a.challenges)
}

// Reset starts a new session and clears all histories.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// prune drops the head of a time-ordered slice up to and including cutoff.
func prune[T any](items []T, cutoff float64, at func(T) float64) []T {
	i, _ := slices.BinarySearchFunc(items, cutoff, func(item T, c float64) int {
		if at(item) <= c {
			return -1
		}
		return 1
	})
	return items[i:]
}

// Track records one processed frame.
func (a *Aggregator) Track(faces []Detection, fps, latencyMS float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := unix(a.now())
	a.fps = append(a.fps, sample{ts, fps})
	a.latency = append(a.latency, sample{ts, latencyMS})

	for _, f := range faces {
		a.counts[f.Name]++
		a.confidence = append(a.confidence, confidenceSample{ts, f.Name, f.Confidence})
		if w, h := f.Box[2], f.Box[3]; w > 0 && h > 0 {
			a.positions = append(a.positions, position{
				at: ts,
				x:  (float64(f.Box[0]) + float64(w)/2) / constants.HeatmapFrameWidth,
				y:  (float64(f.Box[1]) + float64(h)/2) / constants.HeatmapFrameHeight,
			})
		}
		a.events = append(a.events, Event{Timestamp: ts, Name: f.Name, Confidence: f.Confidence, Box: f.Box})
	}

	cutoff := ts - a.retention
	a.fps = prune(a.fps, cutoff, func(s sample) float64 { return s.at })
	a.latency = prune(a.latency, cutoff, func(s sample) float64 { return s.at })
	a.confidence = prune(a.confidence, cutoff, func(s confidenceSample) float64 { return s.at })
	a.positions = prune(a.positions, cutoff, func(p position) float64 { return p.at })
	a.events = prune(a.events, cutoff, func(e Event) float64 { return e.Timestamp })
}

// Range is the current/avg/min/max of a metric.
type Range struct {
	Current float64 `json:"current"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// ConfidenceRange summarizes retained confidence samples.
type ConfidenceRange struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SessionStats is the summary of the current session.
type SessionStats struct {
	SessionID       string          `json:"session_id"`
	Duration        float64         `json:"duration"`
	TotalDetections int             `json:"total_detections"`
	UniqueFaces     int             `json:"unique_faces"`
	DetectionCounts map[string]int  `json:"detection_counts"`
	FPS             Range           `json:"fps"`
	Latency         Range           `json:"latency"`
	Confidence      ConfidenceRange `json:"confidence"`
}

func summarize(samples []sample) Range {
	if len(samples) > constants.StatsWindow {
		samples = samples[len(samples)-constants.StatsWindow:]
	}
	if len(samples) == 0 {
		return Range{}
	}
	sum, lo, hi := 0.0, math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		sum += s.value
		lo = min(lo, s.value)
		hi = max(hi, s.value)
	}
	return Range{
		Current: samples[len(samples)-1].value,
		Avg:     round(sum/float64(len(samples)), 1),
		Min:     round(lo, 1),
		Max:     round(hi, 1),
	}
}

// SessionStats returns the session summary.
func (a *Aggregator) SessionStats() SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionStatsLocked()
}

func (a *Aggregator) sessionStatsLocked() SessionStats {
	stats := SessionStats{
		SessionID:       a.sessionID,
		Duration:        round(a.now().Sub(a.sessionStart).Seconds(), 1),
		TotalDetections: len(a.events),
		UniqueFaces:     len(a.counts),
		DetectionCounts: maps.Clone(a.counts),
		FPS:             summarize(a.fps),
		Latency:         summarize(a.latency),
	}

	if len(a.confidence) > 0 {
		sum, lo, hi := 0.0, math.Inf(1), math.Inf(-1)
		for _, c := range a.confidence {
			sum += c.confidence
			lo = min(lo, c.confidence)
			hi = max(hi, c.confidence)
		}
		stats.Confidence = ConfidenceRange{
			Avg: round(sum/float64(len(a.confidence)), 3),
			Min: round(lo, 3),
			Max: round(hi, 3),
		}
	}
	return stats
}

// TimelineBucket counts detections per name in one 10s bucket.
type TimelineBucket struct {
	Timestamp int64
	Counts    map[string]int
}

// MarshalJSON flattens the counts next to the timestamp.
func (b TimelineBucket) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Counts)+1)
	for name, n := range b.Counts {
		out[name] = n
	}
	out["timestamp"] = b.Timestamp
	return json.Marshal(out)
}

// Timeline buckets the events of the last seconds. seconds <= 0 means the whole retention window.
func (a *Aggregator) Timeline(seconds int) []TimelineBucket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timelineLocked(seconds)
}

func (a *Aggregator) timelineLocked(seconds int) []TimelineBucket {
	window := float64(seconds)
	if seconds <= 0 {
		window = a.retention
	}
	cutoff := unix(a.now()) - window

	buckets := make(map[int64]map[string]int)
	for _, e := range a.events {
		if e.Timestamp <= cutoff {
			continue
		}
		key := int64(math.Floor(e.Timestamp/constants.TimelineBucketSeconds)) * constants.TimelineBucketSeconds
		if buckets[key] == nil {
			buckets[key] = make(map[string]int)
		}
		buckets[key][e.Name]++
	}

	timeline := make([]TimelineBucket, 0, len(buckets))
	for _, ts := range slices.Sorted(maps.Keys(buckets)) {
		timeline = append(timeline, TimelineBucket{Timestamp: ts, Counts: buckets[ts]})
	}
	return timeline
}

// Bin is one confidence histogram bucket.
type Bin struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// ConfidenceDistribution returns a 20-bin histogram of retained confidences, or an
// empty list when there are none.
func (a *Aggregator) ConfidenceDistribution() []Bin {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.confidenceDistributionLocked()
}

func (a *Aggregator) confidenceDistributionLocked() []Bin {
	if len(a.confidence) == 0 {
		return []Bin{}
	}
	const step = 100 / constants.ConfidenceBins
	bins := make([]Bin, constants.ConfidenceBins)
	for i := range bins {
		bins[i].Range = fmt.Sprintf("%d-%d%%", i*step, (i+1)*step)
	}
	for _, c := range a.confidence {
		bins[binIndex(c.confidence)].Count++
	}
	return bins
}

func binIndex(confidence float64) int {
	idx := int(confidence / 0.05)
	if idx < 0 || math.IsNaN(confidence) {
		return 0
	}
	return min(idx, constants.ConfidenceBins-1)
}

// Heatmap is a [row=y][col=x] grid of face centers.
type Heatmap [constants.HeatmapGrid][constants.HeatmapGrid]int

// Heatmap counts the last 500 retained positions.
func (a *Aggregator) Heatmap() Heatmap {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heatmapLocked()
}

func (a *Aggregator) heatmapLocked() Heatmap {
	var grid Heatmap
	positions := a.positions
	if len(positions) > constants.HeatmapPositions {
		positions = positions[len(positions)-constants.HeatmapPositions:]
	}
	for _, p := range positions {
		gx := cell(p.x)
		gy := cell(p.y)
		grid[gy][gx]++
	}
	return grid
}

func cell(v float64) int {
	return max(0, min(int(v*constants.HeatmapGrid), constants.HeatmapGrid-1))
}

// RecentEvents returns the last limit events, newest first. limit <= 0 means 50.
func (a *Aggregator) RecentEvents(limit int) []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recentLocked(limit)
}

func (a *Aggregator) recentLocked(limit int) []Event {
	if limit <= 0 {
		limit = constants.DefaultEventLimit
	}
	start := max(0, len(a.events)-limit)
	out := make([]Event, 0, len(a.events)-start)
	for i := len(a.events) - 1; i >= start; i-- {
		out = append(out, a.events[i])
	}
	return out
}

// RecordChallengeScore stores the score of a challenge, replacing any previous one.
func (a *Aggregator) RecordChallengeScore(name string, score float64, details map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if details == nil {
		details = map[string]any{}
	}
	a.challenges[name] = ChallengeScore{
		Score:     score,
		MaxScore:  constants.ChallengeMaxScore,
		Timestamp: unix(a.now()),
		Details:   details,
	}
}

// ChallengeScores returns a copy of all recorded challenge scores.
func (a *Aggregator) ChallengeScores() map[string]ChallengeScore {
	a.mu.Lock()
	defer a.mu.Unlock()
	return maps.Clone(a.challenges)
}

// Export is the full session dump.
type Export struct {
	Session                SessionStats              `json:"session"`
	Events                 []Event                   `json:"events"`
	Timeline               []TimelineBucket          `json:"timeline"`
	ConfidenceDistribution []Bin                     `json:"confidence_distribution"`
	Heatmap                Heatmap                   `json:"heatmap"`
	ChallengeScores        map[string]ChallengeScore `json:"challenge_scores"`
}

// ExportJSON returns a consistent dump of the session.
func (a *Aggregator) ExportJSON() Export {
	a.mu.Lock()
	defer a.mu.Unlock()

	events := a.events
	if len(events) > constants.ExportEventLimit {
		events = events[len(events)-constants.ExportEventLimit:]
	}
	return Export{
		Session:                a.sessionStatsLocked(),
		Events:                 slices.Clone(events),
		Timeline:               a.timelineLocked(0),
		ConfidenceDistribution: a.confidenceDistributionLocked(),
		Heatmap:                a.heatmapLocked(),
		ChallengeScores:        maps.Clone(a.challenges),
	}
}

var csvHeader = []string{"timestamp", "name", "confidence", "box_x", "box_y", "box_w", "box_h"}

// ExportCSV writes one row per retained event.
func (a *Aggregator) ExportCSV(w io.Writer) error {
	a.mu.Lock()
	events := slices.Clone(a.events)
	a.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range events {
		row := []string{
			strconv.FormatFloat(e.Timestamp, 'f', -1, 64),
			e.Name,
			strconv.FormatFloat(e.Confidence, 'f', -1, 64),
			strconv.Itoa(e.Box[0]),
			strconv.Itoa(e.Box[1]),
			strconv.Itoa(e.Box[2]),
			strconv.Itoa(e.Box[3]),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
