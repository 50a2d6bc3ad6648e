package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-recognition/internal/apperr"
)

// Store owns the profile set. Reads are lock-free through an atomically published
// Snapshot. Writes are serialized, persisted in full, and only then published.
type Store struct {
	mu          sync.Mutex
	current     atomic.Pointer[Snapshot]
	persistence Persistence
	maxProfiles int
	logger      logrus.FieldLogger
}

// New creates an empty store. A nil persistence keeps profiles in memory only.
func New(persistence Persistence, maxProfiles int, logger logrus.FieldLogger) *Store {
	s := &Store{
		persistence: persistence,
		maxProfiles: maxProfiles,
		logger:      logger,
	}
	s.current.Store(newSnapshot(nil))
	return s
}

// Load replaces the in-memory set with the persisted one.
func (s *Store) Load(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.persistence.Load(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	if len(profiles) > s.maxProfiles {
		s.logger.WithFields(logrus.Fields{
			"loaded": len(profiles),
			"max":    s.maxProfiles,
		}).Warn("more profiles persisted than allowed, enrollment is blocked until some are deleted")
	}

	cloned := make([]Profile, len(profiles))
	for i, p := range profiles {
		cloned[i] = p.Clone()
	}
	s.current.Store(newSnapshot(cloned))
	s.logger.WithField("profiles", len(cloned)).Info("profiles loaded")
	return nil
}

// Snapshot returns the current immutable profile set.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// MaxProfiles returns the capacity.
func (s *Store) MaxProfiles() int {
	return s.maxProfiles
}

// Count returns the number of enrolled profiles.
func (s *Store) Count() int {
	return s.Snapshot().Len()
}

// Full reports whether no more profiles can be added.
func (s *Store) Full() bool {
	return s.Count() >= s.maxProfiles
}

// Profiles returns deep copies of all profiles.
func (s *Store) Profiles() []Profile {
	snap := s.Snapshot()
	out := make([]Profile, snap.Len())
	for i, p := range snap.Profiles() {
		out[i] = p.Clone()
	}
	return out
}

// Summaries returns the public view of all profiles in insertion order.
func (s *Store) Summaries() []Summary {
	snap := s.Snapshot()
	out := make([]Summary, 0, snap.Len())
	for _, p := range snap.Profiles() {
		out = append(out, p.Summary())
	}
	return out
}

// NameTaken reports whether a profile with an equivalent name exists.
// Names are compared case- and diacritic-insensitively.
func (s *Store) NameTaken(name string) bool {
	return nameTaken(s.Snapshot(), name)
}

func nameTaken(snap *Snapshot, name string) bool {
	normalized := NormalizeName(name)
	for _, p := range snap.Profiles() {
		if NormalizeName(p.Name) == normalized {
			return true
		}
	}
	return false
}

// Add persists a new profile and publishes it. Capacity and name uniqueness are
// re-checked under the write lock.
func (s *Store) Add(ctx context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	if cur.Len() >= s.maxProfiles {
		return apperr.Capacity(apperr.ReasonMaxProfiles, "Maximum %d profiles reached", s.maxProfiles)
	}
	if nameTaken(cur, p.Name) {
		return apperr.Conflict(apperr.ReasonDuplicateName, "Profile '%s' already exists", strings.TrimSpace(p.Name))
	}

	next := make([]Profile, 0, cur.Len()+1)
	next = append(next, cur.Profiles()...)
	next = append(next, p.Clone())

	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"profile_id": p.ID,
		"name":       p.Name,
		"samples":    len(p.Embeddings),
	}).Info("profile added")
	return nil
}

// Delete removes a profile by id. It returns false when no such profile exists.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Snapshot()
	next := make([]Profile, 0, cur.Len())
	found := false
	for _, p := range cur.Profiles() {
		if p.ID == id {
			found = true
			continue
		}
		next = append(next, p)
	}
	if !found {
		return false, nil
	}

	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	s.logger.WithField("profile_id", id).Info("profile deleted")
	return true, nil
}

// Replace swaps the whole profile set.
func (s *Store) Replace(ctx context.Context, profiles []Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(profiles) > s.maxProfiles {
		return apperr.Capacity(apperr.ReasonMaxProfiles, "Maximum %d profiles reached", s.maxProfiles)
	}
	next := make([]Profile, len(profiles))
	for i, p := range profiles {
		next[i] = p.Clone()
	}
	return s.commit(ctx, next)
}

// commit persists the full set and publishes it. On a persistence error the
// current snapshot stays in place. Must be called with mu held.
func (s *Store) commit(ctx context.Context, next []Profile) error {
	if s.persistence != nil {
		if err := s.persistence.Save(ctx, next); err != nil {
			s.logger.WithError(err).Error("failed to persist profiles")
			return fmt.Errorf("save profiles: %w", err)
		}
	}
	s.current.Store(newSnapshot(next))
	return nil
}
