package ttl

import (
	"context"
	"sync"
)

// Scheduler owns the goroutines of a set of cleaners.
//
// Ownership model: whoever calls Start must call Stop.
type Scheduler struct {
	mu       sync.Mutex
	cleaners []*Cleaner
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopped  bool
}

// NewScheduler creates a scheduler for the given cleaners. Nil cleaners are skipped.
func NewScheduler(cleaners ...*Cleaner) *Scheduler {
	s := &Scheduler{}
	for _, c := range cleaners {
		if c != nil {
			s.cleaners = append(s.cleaners, c)
		}
	}
	return s
}

// Start launches one goroutine per cleaner. It is a no-op after the first
// call and after Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, c := range s.cleaners {
		s.wg.Add(1)
		go func(c *Cleaner) {
			defer s.wg.Done()
			c.Start(ctx)
		}(c)
	}
}

// Stop cancels every cleaner and waits for them to return.
//
// Stop is safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	// Cancel outside the lock so a running pass is not blocked by Stop.
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
