// Package pipeline runs the per-frame recognition flow: decode, resize, detect,
// encode, match and optional landmarks.
package pipeline

import (
	"context"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/analytics"
	"github.com/kozaktomas/face-recognition/internal/apperr"
	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/imaging"
	"github.com/kozaktomas/face-recognition/internal/matcher"
)

// Stage names in the timing map.
const (
	StageDecode      = "decode"
	StagePreprocess  = "preprocess"
	StageDetection   = "detection"
	StageEncoding    = "encoding"
	StageRecognition = "recognition"
	StageLandmarks   = "landmarks"
	StageTotal       = "total"
)

// Sink receives every processed frame.
type Sink interface {
	Track(faces []analytics.Detection, fps, latencyMS float64)
}

// Result is the outcome of one processed frame.
type Result struct {
	Faces          []matcher.Result   `json:"faces"`
	FPS            float64            `json:"fps"`
	Latency        float64            `json:"latency"`
	Timestamp      float64            `json:"timestamp"`
	FaceCount      int                `json:"face_count"`
	PipelineTiming map[string]float64 `json:"pipeline_timing"`
	Challenge      string             `json:"challenge,omitempty"`
}

// Performance is the pipeline status report.
type Performance struct {
	FPS            float64            `json:"fps"`
	FrameCount     int                `json:"frame_count"`
	PipelineTiming map[string]float64 `json:"pipeline_timing"`
	Settings       Settings           `json:"settings"`
}

// Pipeline processes one frame at a time.
type Pipeline struct {
	geometry geometry.Service
	matcher  *matcher.Matcher
	sink     Sink
	cfg      config.RecognitionConfig
	logger   logrus.FieldLogger
	now      func() time.Time

	mu            sync.Mutex
	timing        map[string]float64
	frameCount    int
	fps           float64
	fpsFrameCount int
	lastFPSTime   time.Time

	settingsMu sync.Mutex
	settings   Settings
	pending    *Settings
}

// New creates a pipeline. sink may be nil.
func New(geo geometry.Service, m *matcher.Matcher, sink Sink, cfg config.RecognitionConfig, logger logrus.FieldLogger) *Pipeline {
	p := &Pipeline{
		geometry: geo,
		matcher:  m,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		settings: Settings{Threshold: m.Threshold()},
		timing:   map[string]float64{},
	}
	p.lastFPSTime = p.now()
	return p
}

func ms(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*10) / 10
}

// UpdateSettings validates u and queues it for the next frame. It returns the
// settings that frame will use.
func (p *Pipeline) UpdateSettings(u SettingsUpdate) (Settings, error) {
	p.settingsMu.Lock()
	defer p.settingsMu.Unlock()

	base := p.currentSettings()
	next, err := base.apply(u)
	if err != nil {
		return base, err
	}
	p.pending = &next
	return next, nil
}

// currentSettings returns pending settings or the applied ones. Must hold settingsMu.
func (p *Pipeline) currentSettings() Settings {
	if p.pending != nil {
		return *p.pending
	}
	return p.settings
}

// applyPending installs queued settings and returns the settings for this frame.
// Must hold mu.
func (p *Pipeline) applyPending() Settings {
	p.settingsMu.Lock()
	defer p.settingsMu.Unlock()

	if p.pending == nil {
		return p.settings
	}
	p.settings = *p.pending
	p.pending = nil
	p.matcher.SetThreshold(p.settings.Threshold)
	p.logger.WithFields(logrus.Fields{
		"show_landmarks":  p.settings.ShowLandmarks,
		"detect_emotions": p.settings.DetectEmotions,
		"threshold":       p.settings.Threshold,
	}).Debug("pipeline settings applied")
	return p.settings
}

// Process runs the full pipeline on a base64 frame. A frame that cannot be decoded
// yields a nil result and no error.
func (p *Pipeline) Process(ctx context.Context, frame string) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	settings := p.applyPending()

	start := p.now()
	timing := make(map[string]float64, 7)

	t0 := p.now()
	img, err := imaging.DecodeFrame(frame)
	if err != nil {
		p.logger.WithError(err).Debug("dropping undecodable frame")
		return nil, nil
	}
	timing[StageDecode] = ms(p.now().Sub(t0))

	t0 = p.now()
	img = imaging.ResizeToWidth(img, p.cfg.FrameResizeWidth)
	timing[StagePreprocess] = ms(p.now().Sub(t0))

	t0 = p.now()
	boxes, err := p.geometry.Detect(ctx, img)
	if err != nil {
		p.logger.WithError(err).Warn("face detection failed")
		return nil, apperr.Validation(apperr.ReasonGeometryFailed, "Face detection failed")
	}
	boxes = geometry.FilterMinSize(boxes, p.cfg.MinFaceSize)
	timing[StageDetection] = ms(p.now().Sub(t0))

	t0 = p.now()
	var embeddings []geometry.Embedding
	if len(boxes) > 0 {
		embeddings, err = p.geometry.Encode(ctx, img, boxes)
		if err != nil {
			p.logger.WithError(err).Warn("face encoding failed")
			return nil, apperr.Validation(apperr.ReasonGeometryFailed, "Face encoding failed")
		}
		boxes, embeddings = geometry.DropUnencoded(boxes, embeddings)
	}
	timing[StageEncoding] = ms(p.now().Sub(t0))

	t0 = p.now()
	faces := p.matcher.Match(embeddings, boxes)
	timing[StageRecognition] = ms(p.now().Sub(t0))

	var landmarks []geometry.LandmarkSet
	if settings.ShowLandmarks && len(boxes) > 0 {
		t0 = p.now()
		landmarks, err = p.geometry.Landmarks(ctx, img, boxes)
		if err != nil {
			p.logger.WithError(err).Warn("landmark extraction failed")
			landmarks = nil
		}
		timing[StageLandmarks] = ms(p.now().Sub(t0))
	}

	p.fpsFrameCount++
	if elapsed := p.now().Sub(p.lastFPSTime); elapsed >= time.Second {
		p.fps = math.Round(float64(p.fpsFrameCount)/elapsed.Seconds()*10) / 10
		p.fpsFrameCount = 0
		p.lastFPSTime = p.now()
	}

	latency := ms(p.now().Sub(start))
	timing[StageTotal] = latency
	p.timing = timing

	if p.sink != nil {
		detections := make([]analytics.Detection, len(faces))
		for i, f := range faces {
			detections[i] = analytics.Detection{Name: f.Name, Confidence: f.Confidence, Box: f.Box}
		}
		p.sink.Track(detections, p.fps, latency)
	}

	for i := range faces {
		if i < len(landmarks) {
			faces[i].Landmarks = landmarks[i]
		}
	}
	if faces == nil {
		faces = []matcher.Result{}
	}

	p.frameCount++
	return &Result{
		Faces:          faces,
		FPS:            p.fps,
		Latency:        latency,
		Timestamp:      float64(p.now().UnixNano()) / float64(time.Second),
		FaceCount:      len(faces),
		PipelineTiming: maps.Clone(timing),
	}, nil
}

// Confusion runs detection and encoding and returns per-face similarity rows.
// An undecodable frame yields nil rows and no error.
func (p *Pipeline) Confusion(ctx context.Context, frame string) ([]matcher.ConfusionRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	img, err := imaging.DecodeFrame(frame)
	if err != nil {
		return nil, nil
	}
	img = imaging.ResizeToWidth(img, p.cfg.FrameResizeWidth)

	boxes, err := p.geometry.Detect(ctx, img)
	if err != nil {
		return nil, apperr.Validation(apperr.ReasonGeometryFailed, "Face detection failed")
	}
	boxes = geometry.FilterMinSize(boxes, p.cfg.MinFaceSize)
	if len(boxes) == 0 {
		return []matcher.ConfusionRow{}, nil
	}

	embeddings, err := p.geometry.Encode(ctx, img, boxes)
	if err != nil {
		return nil, apperr.Validation(apperr.ReasonGeometryFailed, "Face encoding failed")
	}
	boxes, embeddings = geometry.DropUnencoded(boxes, embeddings)
	return p.matcher.Confusion(embeddings, boxes), nil
}

// Performance reports fps, frame count, the last frame's timing and the settings
// the next frame will use.
func (p *Pipeline) Performance() Performance {
	p.settingsMu.Lock()
	settings := p.currentSettings()
	p.settingsMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	return Performance{
		FPS:            p.fps,
		FrameCount:     p.frameCount,
		PipelineTiming: maps.Clone(p.timing),
		Settings:       settings,
	}
}
