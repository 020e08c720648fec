// Package manager drives the vault's authentication lifecycle: master
// password setup, login with lockout, per-entry re-authentication and
// session termination. All state changes are serialized on one mutex so an
// idle expiry arriving mid-operation waits for that operation to finish.
package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/internal/crypto"
	"github.com/loganmanery/vaultkeeper/internal/logging"
	"github.com/loganmanery/vaultkeeper/internal/session"
	"github.com/loganmanery/vaultkeeper/internal/storage"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

// MaxLoginAttempts is the number of consecutive failed logins that purges the vault
const MaxLoginAttempts = 3

// PasswordManager handles all vault operations for a single user
type PasswordManager struct {
	store  storage.VaultStore
	engine crypto.CipherEngine
	log    logging.Logger

	idle    *session.IdleGuard
	display *session.DisplayGuard

	mu     sync.Mutex
	state  State
	status common.ExitStatus
	flavor models.AESFlavor
	sess   *Session
	done   chan struct{}
}

// Option customizes a PasswordManager
type Option func(*options)

type options struct {
	log   logging.Logger
	sched session.Scheduler
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithScheduler replaces the timer source of the session guards
func WithScheduler(s session.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// NewPasswordManager creates a manager in the uninitialized state
func NewPasswordManager(store storage.VaultStore, engine crypto.CipherEngine, opts ...Option) *PasswordManager {
	o := options{log: logging.Discard(), sched: session.SystemScheduler()}
	for _, opt := range opts {
		opt(&o)
	}

	pm := &PasswordManager{
		store:   store,
		engine:  engine,
		log:     o.log,
		display: session.NewDisplayGuard(o.sched, session.DefaultDisplayDuration),
		state:   StateUninitialized,
		done:    make(chan struct{}),
	}
	pm.idle = session.NewIdleGuard(o.sched, session.DefaultIdleTimeout, pm.onIdleExpired)
	return pm
}

// Open creates the vault if needed, loads its settings and starts the idle
// timer. Storage failures terminate with StorageUnavailable.
func (pm *PasswordManager) Open(ctx context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.state != StateUninitialized {
		return fmt.Errorf("vault already opened: %w", common.ErrInvalidInput)
	}

	if err := pm.load(ctx); err != nil {
		pm.terminateLocked(ctx, common.StorageUnavailable, StateTerminated)
		if !errors.Is(err, common.ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
		}
		return err
	}

	pm.idle.Start()
	pm.log.Info(ctx, "vault opened", "state", pm.state.String(), "idle_timeout", pm.idle.Timeout().String())
	return nil
}

func (pm *PasswordManager) load(ctx context.Context) error {
	if err := pm.store.CreateVault(ctx); err != nil {
		return err
	}

	idle, err := pm.store.GetIntMetadata(ctx, models.MetaIdleSessionTimeout)
	if err != nil {
		return err
	}
	display, err := pm.store.GetIntMetadata(ctx, models.MetaCredentialDisplayDuration)
	if err != nil {
		return err
	}
	pm.idle.SetTimeout(time.Duration(idle) * time.Second)
	pm.display.SetDuration(time.Duration(display) * time.Second)

	setup, err := pm.store.GetBoolMetadata(ctx, models.MetaSetupComplete)
	if err != nil {
		return err
	}
	if !setup {
		pm.state = StateAwaitingSetup
		return nil
	}

	raw, err := pm.store.GetMetadata(ctx, models.MetaAESFlavor)
	if err != nil {
		return err
	}
	flavor, err := models.ParseAESFlavor(raw)
	if err != nil {
		return fmt.Errorf("stored flavor: %w", err)
	}
	pm.flavor = flavor
	pm.state = StateReadyLocked
	return nil
}

// Setup stores the master password hash and the AES flavor. The password
// and confirmation buffers are wiped before returning.
func (pm *PasswordManager) Setup(ctx context.Context, flavor models.AESFlavor, password, confirm []byte) error {
	defer common.Wipe(password, confirm)

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.state.Terminal() {
		return common.ErrSessionTerminated
	}
	if pm.state != StateAwaitingSetup {
		return common.ErrAlreadySetUp
	}
	pm.idle.Touch()

	if !flavor.Valid() {
		return fmt.Errorf("flavor %v: %w", flavor, common.ErrConfigurationInvalid)
	}
	stored, err := pm.store.GetMetadata(ctx, models.MetaAESFlavor)
	if err != nil {
		return pm.setupFailedLocked(ctx, err)
	}
	if stored != models.Unset && stored != strconv.Itoa(int(flavor)) {
		return fmt.Errorf("flavor already set to %s: %w", stored, common.ErrConfigurationInvalid)
	}
	if len(password) == 0 {
		return fmt.Errorf("empty master password: %w", common.ErrInvalidInput)
	}
	if !bytes.Equal(password, confirm) {
		return common.ErrPasswordMismatch
	}

	err = pm.store.SetMetadataValues(ctx, map[string]string{
		models.MetaMasterPasswordHash:  pm.engine.HashPassword(password),
		models.MetaAESFlavor:           strconv.Itoa(int(flavor)),
		models.MetaFailedLoginAttempts: "0",
		models.MetaSetupComplete:       "true",
	})
	if err != nil {
		return pm.setupFailedLocked(ctx, err)
	}

	pm.flavor = flavor
	pm.state = StateReadyLocked
	pm.log.Info(ctx, "master password set up", "flavor", flavor.String())
	return nil
}

func (pm *PasswordManager) setupFailedLocked(ctx context.Context, err error) error {
	pm.log.Error(ctx, "master password setup failed", "error", err)
	pm.terminateLocked(ctx, common.SetupFailed, StateTerminated)
	return fmt.Errorf("failed to set up master password: %w", err)
}

// Login checks secret against the stored master password hash. Success
// opens a session holding a private copy of secret. The caller's buffer is
// wiped either way. The third consecutive failure purges the vault and ends
// the manager with ErrLockedOut.
func (pm *PasswordManager) Login(ctx context.Context, secret []byte) (bool, error) {
	defer common.Wipe(secret)

	pm.mu.Lock()
	defer pm.mu.Unlock()

	switch {
	case pm.state.Terminal():
		return false, common.ErrSessionTerminated
	case pm.state == StateUninitialized, pm.state == StateAwaitingSetup:
		return false, common.ErrSetupRequired
	}
	pm.idle.Touch()

	hash, err := pm.store.GetMetadata(ctx, models.MetaMasterPasswordHash)
	if err != nil {
		return false, fmt.Errorf("failed to read master password hash: %w", err)
	}

	if !pm.engine.VerifyPassword(secret, hash) {
		return false, pm.failedAttemptLocked(ctx)
	}

	if err := pm.store.SetIntMetadata(ctx, models.MetaFailedLoginAttempts, 0); err != nil {
		return false, fmt.Errorf("failed to reset login attempts: %w", err)
	}

	pm.sess.Close()
	pm.sess = newSession(secret)
	pm.state = StateAuthenticated
	pm.log.Info(ctx, "login succeeded", "session", pm.sess.ID.String())
	return true, nil
}

// failedAttemptLocked records one failed master password check
func (pm *PasswordManager) failedAttemptLocked(ctx context.Context) error {
	attempts, err := pm.store.GetIntMetadata(ctx, models.MetaFailedLoginAttempts)
	if err != nil {
		return fmt.Errorf("failed to read login attempts: %w", err)
	}
	attempts++

	if attempts >= MaxLoginAttempts {
		pm.log.Warn(ctx, "too many failed logins, purging vault", "attempts", attempts)
		purgeErr := pm.store.Purge(ctx)
		pm.terminateLocked(ctx, common.AuthenticationFailed, StateLockedOut)
		if purgeErr != nil {
			return fmt.Errorf("%w: %w", common.ErrLockedOut, purgeErr)
		}
		return common.ErrLockedOut
	}

	if err := pm.store.SetIntMetadata(ctx, models.MetaFailedLoginAttempts, attempts); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	pm.log.Warn(ctx, "login failed", "attempts", attempts)
	return fmt.Errorf("%w: %d attempt(s) remaining", common.ErrAuthenticationFailed, MaxLoginAttempts-attempts)
}

// Logout ends the authenticated session and returns to the locked state
func (pm *PasswordManager) Logout(ctx context.Context) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.state != StateAuthenticated {
		return
	}
	pm.display.ClearAll()
	pm.log.Info(ctx, "logged out", "session", pm.sess.ID.String(),
		"duration", time.Since(pm.sess.StartedAt).Round(time.Second).String())
	pm.sess.Close()
	pm.sess = nil
	pm.state = StateReadyLocked
	pm.idle.Touch()
}

// Terminate ends the manager with status. Only the first call has effect.
func (pm *PasswordManager) Terminate(ctx context.Context, status common.ExitStatus) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.terminateLocked(ctx, status, StateTerminated)
}

// terminateLocked wipes the session, stops every timer, clears pending
// reveals and signals Done
func (pm *PasswordManager) terminateLocked(ctx context.Context, status common.ExitStatus, final State) {
	if pm.state.Terminal() {
		return
	}

	pm.sess.Close()
	pm.sess = nil
	pm.idle.Stop()
	pm.display.ClearAll()

	pm.state = final
	pm.status = status
	close(pm.done)
	pm.log.Info(ctx, "session terminated", "status", status.String(), "state", final.String())
}

func (pm *PasswordManager) onIdleExpired() {
	ctx := context.Background()
	pm.log.Warn(ctx, "idle session timeout")
	pm.Terminate(ctx, common.IdleSessionExpired)
}

// Touch records user activity and restarts the idle countdown
func (pm *PasswordManager) Touch() {
	pm.idle.Touch()
}

// Done is closed when the manager terminates
func (pm *PasswordManager) Done() <-chan struct{} {
	return pm.done
}

// Status returns why the manager terminated
func (pm *PasswordManager) Status() common.ExitStatus {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.status
}

// State returns the current lifecycle state
func (pm *PasswordManager) State() State {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.state
}

// Flavor returns the vault's AES flavor, zero before setup
func (pm *PasswordManager) Flavor() models.AESFlavor {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.flavor
}

// SessionID returns the current session ID, or "" when locked
func (pm *PasswordManager) SessionID() string {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.sess == nil {
		return ""
	}
	return pm.sess.ID.String()
}

// requireSessionLocked guards every operation that needs an authenticated user
func (pm *PasswordManager) requireSessionLocked() error {
	if pm.state.Terminal() {
		return common.ErrSessionTerminated
	}
	if pm.state != StateAuthenticated || pm.sess == nil {
		return common.ErrNotAuthenticated
	}
	pm.idle.Touch()
	return nil
}

// verifyMasterLocked re-checks the session password against the stored
// hash. A mismatch ends the session.
func (pm *PasswordManager) verifyMasterLocked(ctx context.Context) error {
	hash, err := pm.store.GetMetadata(ctx, models.MetaMasterPasswordHash)
	if err != nil {
		return fmt.Errorf("failed to read master password hash: %w", err)
	}
	if !pm.engine.VerifyPassword(pm.sess.secret, hash) {
		pm.log.Error(ctx, "session password no longer matches master hash")
		pm.terminateLocked(ctx, common.AuthenticationFailed, StateTerminated)
		return common.ErrAuthenticationFailed
	}
	return nil
}
