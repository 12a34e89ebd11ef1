package transcribe

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StubEngine is a scripted Engine for tests and offline development.
// Transcribe returns the configured replies in order, then empty strings.
type StubEngine struct {
	mu      sync.Mutex
	replies []string
	next    int

	loadErr   error
	loadCalls int
	calls     int
	delay     time.Duration
	active    int
	maxActive int
}

// NewStubEngine creates a stub returning the given replies in order.
func NewStubEngine(replies ...string) *StubEngine {
	return &StubEngine{replies: replies}
}

// FailLoad makes Load return the given error. Pass nil to restore
// successful loads.
func (s *StubEngine) FailLoad(err error) *StubEngine {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
	return s
}

// WithDelay makes each Transcribe call take the given duration.
func (s *StubEngine) WithDelay(d time.Duration) *StubEngine {
	s.delay = d
	return s
}

// Load implements Engine.
func (s *StubEngine) Load(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCalls++
	return s.loadErr
}

// Transcribe implements Engine.
func (s *StubEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	s.calls++
	if s.next < len(s.replies) {
		reply := s.replies[s.next]
		s.next++
		return reply, nil
	}
	return "", nil
}

// Close implements Engine.
func (s *StubEngine) Close() error { return nil }

// LoadCalls reports how many times Load was invoked.
func (s *StubEngine) LoadCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCalls
}

// MaxConcurrent reports the peak number of concurrent Transcribe calls.
func (s *StubEngine) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

// Transcribed reports how many Transcribe calls completed.
func (s *StubEngine) Transcribed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// String implements fmt.Stringer for test failure output.
func (s *StubEngine) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("StubEngine{next=%d, loadCalls=%d}", s.next, s.loadCalls)
}
