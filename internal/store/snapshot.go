package store

import (
	"cmp"
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-recognition/internal/geometry"
)

const (
	hnswMaxNeighbors = 16
	hnswEfSearch     = 64
)

// Entry is one enrolled embedding together with the index of its owning profile.
type Entry struct {
	Embedding geometry.Embedding
	Profile   int
}

// Candidate is a profile close to a query embedding.
type Candidate struct {
	ProfileID string  `json:"profile_id"`
	Name      string  `json:"name"`
	Distance  float64 `json:"distance"`
}

// Snapshot is an immutable view of the profile set. Entries are flattened in
// insertion order: profiles in the order they were added, embeddings in capture order.
type Snapshot struct {
	profiles []Profile
	entries  []Entry

	indexMu  sync.Mutex
	index    *hnsw.Graph[int]
	indexDim int
}

func newSnapshot(profiles []Profile) *Snapshot {
	s := &Snapshot{profiles: profiles}
	for i, p := range profiles {
		for _, e := range p.Embeddings {
			if len(e) == 0 {
				continue
			}
			s.entries = append(s.entries, Entry{Embedding: e, Profile: i})
		}
	}
	return s
}

// Profiles returns the profiles. Callers must not modify the result.
func (s *Snapshot) Profiles() []Profile {
	return s.profiles
}

// Entries returns the flattened embeddings in insertion order. Callers must not modify the result.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

// Profile returns the profile at index i.
func (s *Snapshot) Profile(i int) Profile {
	return s.profiles[i]
}

// Len returns the number of profiles.
func (s *Snapshot) Len() int {
	return len(s.profiles)
}

// Empty reports whether there is nothing to match against.
func (s *Snapshot) Empty() bool {
	return len(s.entries) == 0
}

// buildIndex lazily builds the HNSW graph over all entries sharing the first entry's dimension.
// Must be called with indexMu held.
func (s *Snapshot) buildIndex() {
	if s.index != nil || len(s.entries) == 0 {
		return
	}

	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.EfSearch = hnswEfSearch
	g.Distance = hnsw.EuclideanDistance

	s.indexDim = len(s.entries[0].Embedding)
	for i, e := range s.entries {
		if len(e.Embedding) != s.indexDim {
			continue
		}
		g.Add(hnsw.MakeNode(i, []float32(e.Embedding)))
	}
	s.index = g
}

// Nearest returns up to k distinct profiles closest to the query, nearest first.
// It is approximate and meant for reporting; matching uses an exact scan.
func (s *Snapshot) Nearest(query geometry.Embedding, k int) []Candidate {
	if k <= 0 || len(query) == 0 || len(s.entries) == 0 {
		return nil
	}

	s.indexMu.Lock()
	s.buildIndex()
	if len(query) != s.indexDim {
		s.indexMu.Unlock()
		return nil
	}
	// Fetch enough neighbours to cover k profiles even when each has many samples.
	neighbors := s.index.Search([]float32(query), min(len(s.entries), k*hnswEfSearch))
	s.indexMu.Unlock()

	best := make(map[int]float64)
	for _, n := range neighbors {
		closer(best, s.entries[n.Key], query)
	}
	// Duplicate samples can collapse the graph search onto a single profile.
	if len(best) < min(k, len(s.profiles)) {
		for _, entry := range s.entries {
			if len(entry.Embedding) == s.indexDim {
				closer(best, entry, query)
			}
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for idx, d := range best {
		p := s.profiles[idx]
		candidates = append(candidates, Candidate{ProfileID: p.ID, Name: p.Name, Distance: d})
	}
	slices.SortFunc(candidates, func(a, b Candidate) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ProfileID, b.ProfileID)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func closer(best map[int]float64, entry Entry, query geometry.Embedding) {
	d := geometry.EuclideanDistance(query, entry.Embedding)
	if cur, ok := best[entry.Profile]; !ok || d < cur {
		best[entry.Profile] = d
	}
}
