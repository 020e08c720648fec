package session

import (
	"sync"
	"time"
)

// Screen is where credentials are shown
type Screen interface {
	Show(text string)
	Clear()
}

// DisplayGuard limits how long revealed credentials stay visible
type DisplayGuard struct {
	sched Scheduler

	mu       sync.Mutex
	duration time.Duration
	active   map[*Reveal]struct{}
}

// NewDisplayGuard creates a guard with a clamped display duration
func NewDisplayGuard(sched Scheduler, duration time.Duration) *DisplayGuard {
	return &DisplayGuard{
		sched:    sched,
		duration: ClampDisplayDuration(duration),
		active:   make(map[*Reveal]struct{}),
	}
}

// Reveal is one pending clear. Expiry and ClearNow race safely; the clear
// function runs once.
type Reveal struct {
	guard *DisplayGuard
	cd    countdown
	clear func()
	done  chan struct{}
}

// Start schedules clear after the display duration
func (g *DisplayGuard) Start(clear func()) *Reveal {
	r := &Reveal{
		guard: g,
		cd:    countdown{sched: g.sched},
		clear: clear,
		done:  make(chan struct{}),
	}

	g.mu.Lock()
	g.active[r] = struct{}{}
	d := g.duration
	g.mu.Unlock()

	r.cd.arm(d, r.finish)
	return r
}

// Display shows text on screen and schedules the screen clear
func (g *DisplayGuard) Display(screen Screen, text string) *Reveal {
	screen.Show(text)
	return g.Start(screen.Clear)
}

// ClearAll clears every pending reveal immediately
func (g *DisplayGuard) ClearAll() {
	g.mu.Lock()
	pending := make([]*Reveal, 0, len(g.active))
	for r := range g.active {
		pending = append(pending, r)
	}
	g.mu.Unlock()

	for _, r := range pending {
		r.ClearNow()
	}
}

// Pending returns the number of reveals not yet cleared
func (g *DisplayGuard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// SetDuration changes the duration (clamped) for future reveals
func (g *DisplayGuard) SetDuration(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.duration = ClampDisplayDuration(d)
}

// Duration returns the current display duration
func (g *DisplayGuard) Duration() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.duration
}

// ClearNow cancels the timer and clears immediately. It returns false if
// the reveal was already cleared.
func (r *Reveal) ClearNow() bool {
	if !r.cd.cancel() {
		return false
	}
	r.finish()
	return true
}

// Cleared is closed once the clear function has run
func (r *Reveal) Cleared() <-chan struct{} {
	return r.done
}

func (r *Reveal) finish() {
	r.guard.mu.Lock()
	delete(r.guard.active, r)
	r.guard.mu.Unlock()

	if r.clear != nil {
		r.clear()
	}
	close(r.done)
}
