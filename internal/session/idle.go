package session

import (
	"sync"
	"time"
)

// IdleGuard ends a session after a period without activity. Every Touch
// restarts the countdown; expiry calls onExpire exactly once per Start.
type IdleGuard struct {
	cd       countdown
	onExpire func()

	mu      sync.Mutex
	timeout time.Duration
}

// NewIdleGuard creates a stopped guard. The timeout is clamped.
func NewIdleGuard(sched Scheduler, timeout time.Duration, onExpire func()) *IdleGuard {
	return &IdleGuard{
		cd:       countdown{sched: sched},
		onExpire: onExpire,
		timeout:  ClampIdleTimeout(timeout),
	}
}

// Start arms the countdown, restarting it if already running
func (g *IdleGuard) Start() {
	g.cd.arm(g.Timeout(), g.onExpire)
}

// Touch records activity. It has no effect on a stopped or expired guard.
func (g *IdleGuard) Touch() {
	g.cd.rearm(g.Timeout(), g.onExpire)
}

// Stop cancels the countdown and reports whether it was running
func (g *IdleGuard) Stop() bool {
	return g.cd.cancel()
}

// Running reports whether the countdown is pending
func (g *IdleGuard) Running() bool {
	return g.cd.pending()
}

// SetTimeout changes the timeout (clamped) and restarts a running countdown
func (g *IdleGuard) SetTimeout(d time.Duration) {
	g.mu.Lock()
	g.timeout = ClampIdleTimeout(d)
	g.mu.Unlock()
	g.Touch()
}

// Timeout returns the current timeout
func (g *IdleGuard) Timeout() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timeout
}
