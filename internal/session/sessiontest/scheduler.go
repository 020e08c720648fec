// Package sessiontest provides a manually advanced scheduler for tests.
package sessiontest

import (
	"sort"
	"sync"
	"time"

	"github.com/loganmanery/vaultkeeper/internal/session"
)

// FakeScheduler fires callbacks only when Advance moves its clock past them
type FakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *FakeScheduler
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewFakeScheduler returns a scheduler with its clock at zero
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) session.Stopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d and runs every callback that became
// due, in deadline order. Callbacks run without the scheduler lock held and
// may schedule further timers.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

func (s *FakeScheduler) nextDue(target time.Duration) *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.timers = live

	sort.Slice(s.timers, func(i, j int) bool {
		if s.timers[i].at == s.timers[j].at {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].at < s.timers[j].at
	})

	if len(s.timers) == 0 || s.timers[0].at > target {
		return nil
	}
	t := s.timers[0]
	t.fired = true
	if t.at > s.now {
		s.now = t.at
	}
	return t
}

// Pending returns the number of timers neither fired nor stopped
func (s *FakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Now returns the fake clock reading
func (s *FakeScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
