package tasks

import "sync"

// TrackSet is the request-scoped set of accepted track IDs.
type TrackSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewTrackSet() *TrackSet {
	return &TrackSet{seen: make(map[string]struct{})}
}

// Add inserts id and reports whether it was absent. Checking and inserting
// happen under one lock.
func (s *TrackSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

func (s *TrackSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

func (s *TrackSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
