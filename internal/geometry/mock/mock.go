// Package mock provides a scriptable Face Geometry Service for tests.
package mock

import (
	"context"
	"image"
	"sync"

	"github.com/kozaktomas/face-recognition/internal/geometry"
)

// Service is an in-memory geometry.Service. Static results are returned unless the
// corresponding func hook is set. Error fields take precedence over both.
type Service struct {
	mu sync.Mutex

	Boxes      []geometry.BoundingBox
	Embeddings []geometry.Embedding
	Landmark   []geometry.LandmarkSet

	DetectFunc func(img image.Image) []geometry.BoundingBox
	EncodeFunc func(img image.Image, boxes []geometry.BoundingBox) []geometry.Embedding

	DetectErr    error
	EncodeErr    error
	LandmarksErr error

	DetectCalls    int
	EncodeCalls    int
	LandmarksCalls int
}

// New creates an empty mock service.
func New() *Service {
	return &Service{}
}

// SetFace makes every frame contain exactly one face with the given box and embedding.
func (s *Service) SetFace(box geometry.BoundingBox, embedding geometry.Embedding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Boxes = []geometry.BoundingBox{box}
	s.Embeddings = []geometry.Embedding{embedding}
}

// SetFaces sets the boxes and embeddings returned for every frame.
func (s *Service) SetFaces(boxes []geometry.BoundingBox, embeddings []geometry.Embedding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Boxes = boxes
	s.Embeddings = embeddings
}

// Detect implements geometry.Service.
func (s *Service) Detect(ctx context.Context, img image.Image) ([]geometry.BoundingBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DetectCalls++
	if s.DetectErr != nil {
		return nil, s.DetectErr
	}
	if s.DetectFunc != nil {
		return s.DetectFunc(img), nil
	}
	out := make([]geometry.BoundingBox, len(s.Boxes))
	copy(out, s.Boxes)
	return out, nil
}

// Encode implements geometry.Service. Without a hook it returns one slot per box,
// nil once the scripted embeddings run out.
func (s *Service) Encode(ctx context.Context, img image.Image, boxes []geometry.BoundingBox) ([]geometry.Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EncodeCalls++
	if s.EncodeErr != nil {
		return nil, s.EncodeErr
	}
	if s.EncodeFunc != nil {
		return s.EncodeFunc(img, boxes), nil
	}
	out := make([]geometry.Embedding, len(boxes))
	for i := range min(len(boxes), len(s.Embeddings)) {
		out[i] = s.Embeddings[i].Clone()
	}
	return out, nil
}

// Landmarks implements geometry.Service.
func (s *Service) Landmarks(ctx context.Context, img image.Image, boxes []geometry.BoundingBox) ([]geometry.LandmarkSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LandmarksCalls++
	if s.LandmarksErr != nil {
		return nil, s.LandmarksErr
	}
	n := min(len(boxes), len(s.Landmark))
	return s.Landmark[:n], nil
}

// Calls returns the detect, encode and landmarks call counts.
func (s *Service) Calls() (detect, encode, landmarks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DetectCalls, s.EncodeCalls, s.LandmarksCalls
}
