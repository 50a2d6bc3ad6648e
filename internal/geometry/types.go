// Package geometry defines the face geometry types and the client for the external
// Face Geometry Service (detection, encoding and landmark extraction).
package geometry

import (
	"context"
	"image"
)

// BoundingBox is a face region in pixel coordinates of the frame it was detected in.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Valid reports whether the box has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.Right > b.Left && b.Bottom > b.Top
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() int {
	return b.Right - b.Left
}

// Height returns the box height in pixels.
func (b BoundingBox) Height() int {
	return b.Bottom - b.Top
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// Center returns the box center.
func (b BoundingBox) Center() (float64, float64) {
	return float64(b.Left+b.Right) / 2, float64(b.Top+b.Bottom) / 2
}

// XYWH returns the box as [x, y, width, height].
func (b BoundingBox) XYWH() [4]int {
	return [4]int{b.Left, b.Top, b.Width(), b.Height()}
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Embedding is a fixed-length face encoding. Treat as immutable once produced.
type Embedding []float32

// Clone returns a copy of the embedding.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Point is a landmark coordinate.
type Point struct {
	X int
	Y int
}

// LandmarkSet maps a facial feature name (chin, nose_bridge, ...) to its points.
type LandmarkSet map[string][]Point

// Service is the Face Geometry Service consumed by the pipeline and enrollment.
// Encode returns one embedding per box in the same order, with a nil slot for a region it could not encode.
type Service interface {
	Detect(ctx context.Context, img image.Image) ([]BoundingBox, error)
	Encode(ctx context.Context, img image.Image, boxes []BoundingBox) ([]Embedding, error)
	Landmarks(ctx context.Context, img image.Image, boxes []BoundingBox) ([]LandmarkSet, error)
}

// FilterMinSize drops boxes whose width or height is below minSize.
func FilterMinSize(boxes []BoundingBox, minSize int) []BoundingBox {
	if minSize <= 0 {
		return boxes
	}
	valid := make([]BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Width() >= minSize && b.Height() >= minSize {
			valid = append(valid, b)
		}
	}
	return valid
}

// DropUnencoded removes the faces whose embedding slot is empty, keeping each
// remaining box paired with its embedding.
func DropUnencoded(boxes []BoundingBox, embeddings []Embedding) ([]BoundingBox, []Embedding) {
	keptBoxes := make([]BoundingBox, 0, len(boxes))
	keptEmbeddings := make([]Embedding, 0, len(embeddings))
	for i, e := range embeddings {
		if len(e) == 0 || i >= len(boxes) {
			continue
		}
		keptBoxes = append(keptBoxes, boxes[i])
		keptEmbeddings = append(keptEmbeddings, e)
	}
	return keptBoxes, keptEmbeddings
}
