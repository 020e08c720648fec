package manager

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/internal/session"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

// IdleSessionTimeout returns the active idle timeout
func (pm *PasswordManager) IdleSessionTimeout() time.Duration {
	return pm.idle.Timeout()
}

// CredentialDisplayDuration returns the active display duration
func (pm *PasswordManager) CredentialDisplayDuration() time.Duration {
	return pm.display.Duration()
}

// SetIdleSessionTimeout persists a new idle timeout and applies it at once.
// Values outside the accepted range are rejected.
func (pm *PasswordManager) SetIdleSessionTimeout(ctx context.Context, d time.Duration) error {
	if !session.ValidIdleTimeout(d) {
		return fmt.Errorf("idle session timeout %s outside [%s, %s]: %w",
			d, session.MinIdleTimeout, session.MaxIdleTimeout, common.ErrConfigurationInvalid)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return err
	}
	if err := pm.store.SetIntMetadata(ctx, models.MetaIdleSessionTimeout, int(d/time.Second)); err != nil {
		return err
	}
	pm.idle.SetTimeout(d)
	pm.log.Info(ctx, "idle session timeout changed", "timeout", d.String())
	return nil
}

// SetCredentialDisplayDuration persists a new display duration for future
// reveals. Values outside the accepted range are rejected.
func (pm *PasswordManager) SetCredentialDisplayDuration(ctx context.Context, d time.Duration) error {
	if !session.ValidDisplayDuration(d) {
		return fmt.Errorf("credential display duration %s outside [%s, %s]: %w",
			d, session.MinDisplayDuration, session.MaxDisplayDuration, common.ErrConfigurationInvalid)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return err
	}
	if err := pm.store.SetIntMetadata(ctx, models.MetaCredentialDisplayDuration, int(d/time.Second)); err != nil {
		return err
	}
	pm.display.SetDuration(d)
	pm.log.Info(ctx, "credential display duration changed", "duration", d.String())
	return nil
}

// ResetMasterPassword re-encrypts every account under a new master
// password in one transaction. A wrong current password counts as a failed
// login. All buffers are wiped.
func (pm *PasswordManager) ResetMasterPassword(ctx context.Context, current, next, confirm []byte) error {
	defer common.Wipe(current, next, confirm)

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return err
	}

	hash, err := pm.store.GetMetadata(ctx, models.MetaMasterPasswordHash)
	if err != nil {
		return fmt.Errorf("failed to read master password hash: %w", err)
	}
	if !pm.engine.VerifyPassword(current, hash) {
		return pm.failedAttemptLocked(ctx)
	}
	if len(next) == 0 {
		return fmt.Errorf("empty master password: %w", common.ErrInvalidInput)
	}
	if !bytes.Equal(next, confirm) {
		return common.ErrPasswordMismatch
	}

	entries, err := pm.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	rekeyed := make([]*models.AccountEntry, 0, len(entries))
	for _, entry := range entries {
		creds, err := pm.openLocked(ctx, entry)
		if err != nil {
			return err
		}
		fresh, err := pm.sealWith(next, entry.AccountName, creds.Username, creds.Password, entry.AssociatedEmail)
		creds.Wipe()
		if err != nil {
			return fmt.Errorf("failed to encrypt account[%s]: %w", entry.AccountName, err)
		}
		rekeyed = append(rekeyed, fresh)
	}

	if err := pm.store.ReplaceAccounts(ctx, rekeyed, pm.engine.HashPassword(next)); err != nil {
		return err
	}
	if err := pm.store.SetIntMetadata(ctx, models.MetaFailedLoginAttempts, 0); err != nil {
		return err
	}

	pm.sess.Close()
	pm.sess = newSession(next)
	pm.log.Info(ctx, "master password reset", "accounts", len(rekeyed), "session", pm.sess.ID.String())
	return nil
}

// Purge erases every account and setting and ends the session. The vault
// returns to its pre-setup state.
func (pm *PasswordManager) Purge(ctx context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return err
	}
	if err := pm.verifyMasterLocked(ctx); err != nil {
		return err
	}

	err := pm.store.Purge(ctx)
	if err != nil {
		pm.log.Error(ctx, "vault purge failed", "error", err)
		return err
	}
	pm.log.Warn(ctx, "vault purged by user")
	pm.terminateLocked(ctx, common.SafeTermination, StateTerminated)
	return nil
}
