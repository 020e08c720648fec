package manager

// State is the lifecycle position of a PasswordManager
type State int

const (
	StateUninitialized State = iota
	StateAwaitingSetup
	StateReadyLocked
	StateAuthenticated
	StateTerminated
	StateLockedOut
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingSetup:
		return "awaiting master password setup"
	case StateReadyLocked:
		return "locked"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	case StateLockedOut:
		return "locked out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further operation is possible
func (s State) Terminal() bool {
	return s == StateTerminated || s == StateLockedOut
}
