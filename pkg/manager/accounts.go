package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/internal/session"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

// AccountUpdate carries replacement values. Nil fields keep their current
// value; an Email pointing at "" removes the email.
type AccountUpdate struct {
	Username []byte
	Password []byte
	Email    *string
}

func (u *AccountUpdate) wipe() {
	common.Wipe(u.Username, u.Password)
}

// AddAccount encrypts and stores a new account. The session password is
// re-verified first and every add gets a fresh salt and IV. The username
// and password buffers are wiped.
func (pm *PasswordManager) AddAccount(ctx context.Context, name string, username, password []byte, email string) error {
	defer common.Wipe(username, password)

	name = models.NormalizeAccountName(name)
	if name == "" {
		return fmt.Errorf("empty account name: %w", common.ErrInvalidInput)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return err
	}
	if err := pm.verifyMasterLocked(ctx); err != nil {
		return err
	}

	entry, err := pm.sealLocked(name, username, password, optionalEmail(email))
	if err != nil {
		return fmt.Errorf("failed to encrypt account[%s]: %w", name, err)
	}
	if err := pm.store.AddAccount(ctx, entry); err != nil {
		return err
	}

	pm.log.Info(ctx, "account added", "account", name)
	return nil
}

// HasAccount reports whether an account with this name exists
func (pm *PasswordManager) HasAccount(ctx context.Context, name string) (bool, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return false, err
	}
	_, err := pm.store.GetAccount(ctx, name)
	if errors.Is(err, common.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetCredentials decrypts an account after authenticating the session
// password against the entry's key hash. A failed check ends the session.
// The caller must Wipe the returned credentials.
func (pm *PasswordManager) GetCredentials(ctx context.Context, name string) (*models.Credentials, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return nil, err
	}
	return pm.credentialsLocked(ctx, name)
}

func (pm *PasswordManager) credentialsLocked(ctx context.Context, name string) (*models.Credentials, error) {
	entry, err := pm.store.GetAccount(ctx, name)
	if err != nil {
		return nil, err
	}
	return pm.openLocked(ctx, entry)
}

// openLocked authenticates and decrypts one entry
func (pm *PasswordManager) openLocked(ctx context.Context, entry *models.AccountEntry) (*models.Credentials, error) {
	if !pm.engine.Authenticate(pm.sess.secret, entry.Salt, pm.flavor, entry.SecretKeyHash) {
		pm.log.Error(ctx, "account authentication failed", "account", entry.AccountName)
		pm.terminateLocked(ctx, common.AuthenticationFailed, StateTerminated)
		return nil, common.ErrAuthenticationFailed
	}

	username, err := pm.engine.Decrypt(pm.sess.secret, entry.CiphertextUsername, entry.Salt, entry.IV, pm.flavor)
	if err != nil {
		return nil, pm.decryptFailedLocked(ctx, entry.AccountName, err)
	}
	password, err := pm.engine.Decrypt(pm.sess.secret, entry.CiphertextPassword, entry.Salt, entry.IV, pm.flavor)
	if err != nil {
		common.Wipe(username)
		return nil, pm.decryptFailedLocked(ctx, entry.AccountName, err)
	}

	creds := &models.Credentials{
		AccountName: entry.AccountName,
		Username:    username,
		Password:    password,
	}
	if entry.AssociatedEmail != nil {
		creds.Email = *entry.AssociatedEmail
	}
	return creds, nil
}

// decryptFailedLocked reports a decrypt failure exactly like a failed key
// check. The cause only reaches the log.
func (pm *PasswordManager) decryptFailedLocked(ctx context.Context, name string, err error) error {
	pm.log.Error(ctx, "account decryption failed", "account", name, "error", err)
	pm.terminateLocked(ctx, common.AuthenticationFailed, StateTerminated)
	return common.ErrAuthenticationFailed
}

// sealLocked encrypts username and password under one fresh salt and IV
func (pm *PasswordManager) sealLocked(name string, username, password []byte, email *string) (*models.AccountEntry, error) {
	return pm.sealWith(pm.sess.secret, name, username, password, email)
}

func (pm *PasswordManager) sealWith(secret []byte, name string, username, password []byte, email *string) (*models.AccountEntry, error) {
	sealed, err := pm.engine.Seal(secret, pm.flavor, username, password)
	if err != nil {
		return nil, err
	}
	return &models.AccountEntry{
		AccountName:        name,
		AssociatedEmail:    email,
		CiphertextUsername: sealed.Ciphertexts[0],
		CiphertextPassword: sealed.Ciphertexts[1],
		Salt:               sealed.Salt,
		IV:                 sealed.IV,
		SecretKeyHash:      sealed.KeyHash,
	}, nil
}

// UpdateAccount re-encrypts an account with the new values under a fresh
// salt and IV. Unchanged fields are decrypted (with per-entry
// authentication) and carried over. The update buffers are wiped.
func (pm *PasswordManager) UpdateAccount(ctx context.Context, name string, upd AccountUpdate) error {
	defer upd.wipe()

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return err
	}
	if err := pm.verifyMasterLocked(ctx); err != nil {
		return err
	}

	current, err := pm.store.GetAccount(ctx, name)
	if err != nil {
		return err
	}
	creds, err := pm.openLocked(ctx, current)
	if err != nil {
		return err
	}
	defer creds.Wipe()

	username, password := creds.Username, creds.Password
	if upd.Username != nil {
		username = upd.Username
	}
	if upd.Password != nil {
		password = upd.Password
	}
	email := current.AssociatedEmail
	if upd.Email != nil {
		email = optionalEmail(*upd.Email)
	}

	entry, err := pm.sealLocked(current.AccountName, username, password, email)
	if err != nil {
		return fmt.Errorf("failed to encrypt account[%s]: %w", current.AccountName, err)
	}
	if err := pm.store.UpdateAccount(ctx, current.AccountName, entry); err != nil {
		return err
	}

	pm.log.Info(ctx, "account updated", "account", current.AccountName)
	return nil
}

// DeleteAccount removes an account
func (pm *PasswordManager) DeleteAccount(ctx context.Context, name string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return err
	}
	if err := pm.store.DeleteAccount(ctx, name); err != nil {
		return err
	}
	pm.log.Info(ctx, "account deleted", "account", models.NormalizeAccountName(name))
	return nil
}

// ListAccountNames returns every stored account name
func (pm *PasswordManager) ListAccountNames(ctx context.Context) ([]string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return nil, err
	}
	return pm.store.ListAccountNames(ctx)
}

// FindAccounts returns the names of accounts containing keyword
func (pm *PasswordManager) FindAccounts(ctx context.Context, keyword string) ([]string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return nil, err
	}
	entries, err := pm.store.FindAccountsContaining(ctx, keyword)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.AccountName)
	}
	return names, nil
}

// Reveal decrypts an account, hands it to show and schedules clear after
// the display duration. The credentials are wiped once show returns. If
// show fails nothing is scheduled.
func (pm *PasswordManager) Reveal(ctx context.Context, name string, show func(*models.Credentials) error, clear func()) (*session.Reveal, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return nil, err
	}
	creds, err := pm.credentialsLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	defer creds.Wipe()

	if err := show(creds); err != nil {
		return nil, err
	}
	pm.log.Info(ctx, "credentials revealed", "account", creds.AccountName, "display", pm.display.Duration().String())
	return pm.display.Start(clear), nil
}

// Show renders an account on screen through format and clears the screen
// after the display duration. The credentials are wiped once format returns.
func (pm *PasswordManager) Show(ctx context.Context, name string, screen session.Screen, format func(*models.Credentials) string) (*session.Reveal, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if err := pm.requireSessionLocked(); err != nil {
		return nil, err
	}
	creds, err := pm.credentialsLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	defer creds.Wipe()

	r := pm.display.Display(screen, format(creds))
	pm.log.Info(ctx, "credentials shown", "account", creds.AccountName, "display", pm.display.Duration().String())
	return r, nil
}

func optionalEmail(email string) *string {
	if email == "" {
		return nil
	}
	return &email
}
