package manager

import (
	"time"

	"github.com/google/uuid"

	"github.com/loganmanery/vaultkeeper/internal/common"
)

// Session is an authenticated window. It owns the only in-memory copy of
// the master password and zeroes it on Close.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	secret []byte
}

func newSession(secret []byte) *Session {
	return &Session{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		secret:    common.CloneBytes(secret),
	}
}

// Close wipes the master password. Safe to call more than once.
func (s *Session) Close() {
	if s == nil {
		return
	}
	common.Wipe(s.secret)
	s.secret = nil
}
