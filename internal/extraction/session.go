package extraction

import "sync"

// Session holds the current attempt. A new attempt clears it when it starts
// and replaces it when it succeeds, so at most one attempt is current.
type Session struct {
	mu      sync.RWMutex
	current *Attempt
}

func NewSession() *Session {
	return &Session{}
}

// Replace makes a the current attempt.
func (s *Session) Replace(a *Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = a
}

// Current returns the current attempt, if any.
func (s *Session) Current() (*Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

func (s *Session) Clear() {
	s.Replace(nil)
}

// ClearIf drops the current attempt only when it has the given ID.
func (s *Session) ClearIf(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
}
