// Package session guards how long secrets stay exposed: an idle timer that
// ends an inactive session and a display timer that clears revealed
// credentials. Both run on a cancelable Scheduler.
package session

import (
	"sync"
	"time"
)

// Stopper cancels a scheduled callback. Stop reports whether the call
// prevented the callback from running.
type Stopper interface {
	Stop() bool
}

// Scheduler runs a callback after a delay
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// SystemScheduler returns a Scheduler backed by time.AfterFunc
func SystemScheduler() Scheduler {
	return systemScheduler{}
}

// countdown is a re-armable single-shot timer. Every arm or cancel bumps a
// generation so a callback that was already in flight for an older
// generation becomes a no-op. The action runs at most once per arm and
// always outside the lock.
type countdown struct {
	sched Scheduler

	mu    sync.Mutex
	gen   uint64
	armed bool
	timer Stopper
}

func (c *countdown) arm(d time.Duration, action func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armLocked(d, action)
}

// rearm restarts the countdown only if it is still pending
func (c *countdown) rearm(d time.Duration, action func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed {
		return false
	}
	c.armLocked(d, action)
	return true
}

func (c *countdown) armLocked(d time.Duration, action func()) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.armed = true
	c.timer = c.sched.AfterFunc(d, func() { c.fire(gen, action) })
}

func (c *countdown) fire(gen uint64, action func()) {
	c.mu.Lock()
	if gen != c.gen || !c.armed {
		c.mu.Unlock()
		return
	}
	c.armed = false
	c.timer = nil
	c.mu.Unlock()

	action()
}

// cancel disarms the countdown and reports whether it was pending
func (c *countdown) cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasArmed := c.armed
	c.gen++
	c.armed = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return wasArmed
}

func (c *countdown) pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}
