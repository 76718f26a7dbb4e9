package notify

import (
	"context"
	"sync"

	"github.com/restockd/restockd/internal/watch"
)

// MemorySink stores emitted events for inspection in tests.
type MemorySink struct {
	mu     sync.RWMutex
	events []watch.RestockEvent
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// EmitRestock records the event.
func (s *MemorySink) EmitRestock(_ context.Context, event watch.RestockEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns the recorded events.
func (s *MemorySink) Events() []watch.RestockEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]watch.RestockEvent, len(s.events))
	copy(out, s.events)
	return out
}
