// Package store owns the enrolled identity profiles. Readers get immutable snapshots,
// writers persist the full set before publishing it.
package store

import (
	"context"
	"time"

	"github.com/kozaktomas/face-recognition/internal/geometry"
)

// Profile is an enrolled identity.
type Profile struct {
	ID          string
	Name        string
	Color       string
	Embeddings  []geometry.Embedding
	SampleCount int
	CreatedAt   time.Time
	Thumbnail   string // base64 JPEG, may be empty
}

// Summary is the public view of a profile, without embeddings.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
}

// Summary returns the public view of the profile.
func (p Profile) Summary() Summary {
	return Summary{
		ID:          p.ID,
		Name:        p.Name,
		Color:       p.Color,
		SampleCount: p.SampleCount,
		CreatedAt:   p.CreatedAt,
		Thumbnail:   p.Thumbnail,
	}
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	c := p
	c.Embeddings = make([]geometry.Embedding, len(p.Embeddings))
	for i, e := range p.Embeddings {
		c.Embeddings[i] = e.Clone()
	}
	return c
}

// Persistence is a durable backend for the full profile set.
// Save must replace the stored set atomically.
type Persistence interface {
	Load(ctx context.Context) ([]Profile, error)
	Save(ctx context.Context, profiles []Profile) error
}
