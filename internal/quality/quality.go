// Package quality decides whether a single-face frame is good enough for enrollment.
package quality

import (
	"image"
	"math"

	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/geometry"
	"github.com/kozaktomas/face-recognition/internal/imaging"
)

// Dimension values reported in a Report.
const (
	DimensionBrightness = "brightness"
	DimensionBlur       = "blur"
	DimensionSize       = "size"
	DimensionCentered   = "centered"
)

// Reason codes for a failed check.
const (
	ReasonTooDark   = "too_dark"
	ReasonTooBright = "too_bright"
	ReasonBlurry    = "blurry"
	ReasonTooFar    = "too_far"
	ReasonTooClose  = "too_close"
	ReasonOffCenter = "off_center"
)

const statusOK = "ok"

// Report is the outcome of the checks. Only the first failing check is reported;
// later dimensions stay "ok" because they were not evaluated.
type Report struct {
	IsGood           bool    `json:"is_good"`
	FailingDimension string  `json:"failing_dimension,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	Message          string  `json:"message"`
	Brightness       string  `json:"brightness"`
	Blur             string  `json:"blur"`
	Size             string  `json:"size"`
	Centered         string  `json:"centered"`
	Metrics          Metrics `json:"metrics"`
}

// Metrics are the raw measurements behind a report.
type Metrics struct {
	Brightness float64 `json:"brightness"`
	BlurScore  float64 `json:"blur_score,omitempty"`
	FaceRatio  float64 `json:"face_ratio,omitempty"`
	OffsetX    float64 `json:"offset_x,omitempty"`
	OffsetY    float64 `json:"offset_y,omitempty"`
}

// Gate applies the configured thresholds.
type Gate struct {
	cfg config.QualityConfig
}

// New creates a quality gate.
func New(cfg config.QualityConfig) *Gate {
	return &Gate{cfg: cfg}
}

func (r *Report) fail(dimension, status, reason, message string) Report {
	r.IsGood = false
	r.FailingDimension = dimension
	r.Reason = reason
	r.Message = message
	switch dimension {
	case DimensionBrightness:
		r.Brightness = status
	case DimensionBlur:
		r.Blur = status
	case DimensionSize:
		r.Size = status
	case DimensionCentered:
		r.Centered = status
	}
	return *r
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Assess runs brightness, blur, size and centering checks in that order and stops
// at the first failure. The box must be in the frame's coordinates.
func (g *Gate) Assess(img image.Image, box geometry.BoundingBox) Report {
	report := Report{
		IsGood:     true,
		Message:    "Perfect!",
		Brightness: statusOK,
		Blur:       statusOK,
		Size:       statusOK,
		Centered:   statusOK,
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	gray := imaging.ToGray(img)

	brightness := imaging.MeanBrightness(gray)
	report.Metrics.Brightness = round(brightness, 1)
	if brightness < g.cfg.MinBrightness {
		return report.fail(DimensionBrightness, "low", ReasonTooDark, "Not enough light")
	}
	if brightness > g.cfg.MaxBrightness {
		return report.fail(DimensionBrightness, "high", ReasonTooBright, "Too much light")
	}

	if blur, ok := imaging.LaplacianVariance(gray, box.Rect()); ok {
		report.Metrics.BlurScore = round(blur, 1)
		if blur < g.cfg.BlurThreshold {
			return report.fail(DimensionBlur, ReasonBlurry, ReasonBlurry, "Image is blurry, hold still")
		}
	}

	if w <= 0 || h <= 0 {
		return report.fail(DimensionSize, ReasonTooFar, ReasonTooFar, "Too far from the camera")
	}
	ratio := float64(box.Area()) / float64(w*h)
	report.Metrics.FaceRatio = round(ratio, 3)
	if ratio < g.cfg.MinFaceRatio {
		return report.fail(DimensionSize, ReasonTooFar, ReasonTooFar, "Too far from the camera")
	}
	if ratio > g.cfg.MaxFaceRatio {
		return report.fail(DimensionSize, ReasonTooClose, ReasonTooClose, "Too close to the camera")
	}

	cx, cy := box.Center()
	offsetX := math.Abs(cx-float64(w)/2) / float64(w)
	offsetY := math.Abs(cy-float64(h)/2) / float64(h)
	report.Metrics.OffsetX = round(offsetX, 3)
	report.Metrics.OffsetY = round(offsetY, 3)
	if offsetX > g.cfg.MaxCenterOffset || offsetY > g.cfg.MaxCenterOffset {
		return report.fail(DimensionCentered, ReasonOffCenter, ReasonOffCenter, "Face is not centered")
	}

	return report
}
