// Package mock provides an in-memory store.Persistence for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-recognition/internal/store"
)

// MockPersistence keeps the last saved profile set in memory.
type MockPersistence struct {
	mu       sync.RWMutex
	profiles []store.Profile

	// Error injection
	LoadError error
	SaveError error

	SaveCalls int
}

// NewMockPersistence creates a mock seeded with the given profiles.
func NewMockPersistence(profiles ...store.Profile) *MockPersistence {
	m := &MockPersistence{}
	m.profiles = cloneAll(profiles)
	return m
}

func cloneAll(profiles []store.Profile) []store.Profile {
	out := make([]store.Profile, len(profiles))
	for i, p := range profiles {
		out[i] = p.Clone()
	}
	return out
}

// Load returns the stored profiles
func (m *MockPersistence) Load(ctx context.Context) ([]store.Profile, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.profiles), nil
}

// Save replaces the stored profiles
func (m *MockPersistence) Save(ctx context.Context, profiles []store.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.profiles = cloneAll(profiles)
	return nil
}

// Saved returns a copy of the last saved set
func (m *MockPersistence) Saved() []store.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.profiles)
}

// SetSaveError sets the error returned by Save
func (m *MockPersistence) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveError = err
}
