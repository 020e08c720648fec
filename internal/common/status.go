package common

import "fmt"

// ExitStatus is the reason a session ended. Its value doubles as the
// process exit code.
type ExitStatus int

const (
	SafeTermination      ExitStatus = 0
	StorageUnavailable   ExitStatus = 121
	SetupFailed          ExitStatus = 210
	AuthenticationFailed ExitStatus = 310
	IdleSessionExpired   ExitStatus = 400
)

func (s ExitStatus) String() string {
	switch s {
	case SafeTermination:
		return "safe termination"
	case StorageUnavailable:
		return "error accessing vault storage"
	case SetupFailed:
		return "master password setup failed"
	case AuthenticationFailed:
		return "authentication failed"
	case IdleSessionExpired:
		return "idle session timeout"
	default:
		return fmt.Sprintf("status %d", int(s))
	}
}

// Code returns the process exit code for s
func (s ExitStatus) Code() int {
	return int(s)
}
