package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganmanery/vaultkeeper/internal/session"
	"github.com/loganmanery/vaultkeeper/internal/session/sessiontest"
)

type recordingScreen struct {
	mu      sync.Mutex
	shown   []string
	cleared int
}

func (s *recordingScreen) Show(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, text)
}

func (s *recordingScreen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
}

func (s *recordingScreen) clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

func TestIdleGuard_ExpiresAfterTimeout(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	var expired int
	g := session.NewIdleGuard(sched, 30*time.Second, func() { expired++ })

	g.Start()
	sched.Advance(29 * time.Second)
	assert.Zero(t, expired)
	assert.True(t, g.Running())

	sched.Advance(time.Second)
	assert.Equal(t, 1, expired)
	assert.False(t, g.Running())

	sched.Advance(time.Hour)
	assert.Equal(t, 1, expired, "expiry fires once")
}

func TestIdleGuard_TouchResetsCountdown(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	var expired int
	g := session.NewIdleGuard(sched, 30*time.Second, func() { expired++ })

	g.Start()
	for i := 0; i < 5; i++ {
		sched.Advance(20 * time.Second)
		g.Touch()
	}
	assert.Zero(t, expired)

	sched.Advance(30 * time.Second)
	assert.Equal(t, 1, expired)

	g.Touch()
	sched.Advance(time.Hour)
	assert.Equal(t, 1, expired, "touch after expiry does not re-arm")
}

func TestIdleGuard_StopPreventsExpiry(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	var expired int
	g := session.NewIdleGuard(sched, time.Minute, func() { expired++ })

	g.Start()
	assert.True(t, g.Stop())
	assert.False(t, g.Stop())

	sched.Advance(time.Hour)
	assert.Zero(t, expired)
	assert.Zero(t, sched.Pending())
}

func TestIdleGuard_ClampsTimeout(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	g := session.NewIdleGuard(sched, 5*time.Second, func() {})
	assert.Equal(t, session.MinIdleTimeout, g.Timeout())

	g.SetTimeout(2 * time.Hour)
	assert.Equal(t, session.MaxIdleTimeout, g.Timeout())
}

func TestIdleGuard_SetTimeoutRestartsRunningCountdown(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	var expired int
	g := session.NewIdleGuard(sched, 600*time.Second, func() { expired++ })

	g.Start()
	sched.Advance(10 * time.Second)
	g.SetTimeout(60 * time.Second)

	sched.Advance(59 * time.Second)
	assert.Zero(t, expired)
	sched.Advance(time.Second)
	assert.Equal(t, 1, expired)
}

func TestDisplayGuard_ClearsAfterDuration(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	g := session.NewDisplayGuard(sched, 5*time.Second)
	screen := &recordingScreen{}

	r := g.Display(screen, "username: octocat")
	require.Equal(t, []string{"username: octocat"}, screen.shown)
	assert.Equal(t, 1, g.Pending())

	sched.Advance(4 * time.Second)
	assert.Zero(t, screen.clears())

	sched.Advance(time.Second)
	assert.Equal(t, 1, screen.clears())
	assert.Zero(t, g.Pending())

	select {
	case <-r.Cleared():
	default:
		t.Fatal("reveal should report cleared")
	}
	assert.False(t, r.ClearNow())
	assert.Equal(t, 1, screen.clears())
}

func TestDisplayGuard_ClearNowBeatsTimer(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	g := session.NewDisplayGuard(sched, 30*time.Second)
	screen := &recordingScreen{}

	r := g.Display(screen, "secret")
	assert.True(t, r.ClearNow())
	assert.False(t, r.ClearNow())

	sched.Advance(time.Minute)
	assert.Equal(t, 1, screen.clears())
}

func TestDisplayGuard_ClearAll(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	g := session.NewDisplayGuard(sched, 30*time.Second)

	var cleared int
	g.Start(func() { cleared++ })
	g.Start(func() { cleared++ })
	require.Equal(t, 2, g.Pending())

	g.ClearAll()
	assert.Equal(t, 2, cleared)
	assert.Zero(t, g.Pending())

	sched.Advance(time.Minute)
	assert.Equal(t, 2, cleared)
}

func TestDisplayGuard_SetDurationAffectsNewReveals(t *testing.T) {
	sched := sessiontest.NewFakeScheduler()
	g := session.NewDisplayGuard(sched, 0)
	assert.Equal(t, session.DefaultDisplayDuration, g.Duration())

	g.SetDuration(2 * time.Second)
	var cleared bool
	g.Start(func() { cleared = true })

	sched.Advance(2 * time.Second)
	assert.True(t, cleared)
}

func TestDisplayGuard_SystemScheduler(t *testing.T) {
	g := session.NewDisplayGuard(session.SystemScheduler(), time.Second)
	screen := &recordingScreen{}

	r := g.Display(screen, "secret")

	select {
	case <-r.Cleared():
	case <-time.After(5 * time.Second):
		t.Fatal("display was not cleared by the real timer")
	}
	assert.Equal(t, 1, screen.clears())
}
