package poller

import (
	"context"
	"sync"
)

// Subject polls one upload at a time. Switching to another upload cancels
// the previous handle before the new one starts, so results for the old
// upload can never be delivered after the switch.
type Subject struct {
	poller   *Poller
	onUpdate func(State)

	mu      sync.Mutex
	current *Handle
}

// NewSubject returns a Subject delivering updates to onUpdate.
func NewSubject(p *Poller, onUpdate func(State)) *Subject {
	return &Subject{poller: p, onUpdate: onUpdate}
}

// Switch cancels any active polling and starts polling uploadID. Switching
// to the upload already being polled restarts it.
func (s *Subject) Switch(ctx context.Context, uploadID string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Cancel()
	}
	s.current = s.poller.Start(ctx, uploadID, s.onUpdate)
	return s.current
}

// Current returns the active handle, or nil.
func (s *Subject) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stop cancels any active polling.
func (s *Subject) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Cancel()
		s.current = nil
	}
}
