package registry

import "sync"

// syncMap is a mutex-guarded map of merchant reference to attempt.
type syncMap struct {
	mu sync.RWMutex
	m  map[string]*Attempt
}

func (s *syncMap) LoadOrStore(ref string, att *Attempt) (*Attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]*Attempt)
	}
	if existing, ok := s.m[ref]; ok {
		return existing, true
	}
	s.m[ref] = att
	return att, false
}

func (s *syncMap) Load(ref string) (*Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	att, ok := s.m[ref]
	return att, ok
}

func (s *syncMap) Delete(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, ref)
}

func (s *syncMap) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
