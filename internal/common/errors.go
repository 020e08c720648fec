// Package common defines sentinel errors and exit statuses shared by the
// vault components. Callers should match errors with errors.Is.
package common

import "errors"

var (
	// storage errors
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrStorageUnavailable = errors.New("vault storage unavailable")

	// crypto errors
	ErrCryptoFailure = errors.New("cryptographic operation failed")

	// authentication errors
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrLockedOut            = errors.New("too many failed attempts, vault purged")
	ErrPasswordMismatch     = errors.New("passwords do not match")
	ErrSetupRequired        = errors.New("master password has not been set up")
	ErrAlreadySetUp         = errors.New("master password already set up")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrSessionTerminated    = errors.New("session terminated")

	ErrConfigurationInvalid = errors.New("invalid configuration")
	ErrInvalidInput         = errors.New("invalid input")
)
