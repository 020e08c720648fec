// Package cli is the interactive console front end for the vault.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/user"
	"time"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/internal/logging"
	"github.com/loganmanery/vaultkeeper/internal/session"
	"github.com/loganmanery/vaultkeeper/pkg/manager"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

const minMasterPasswordLength = 8

var currentUser = user.Current

// errExit is returned by the menu when the user chooses to leave
var errExit = errors.New("exit requested")

// Vault is the part of the password manager the console drives
type Vault interface {
	State() manager.State
	Status() common.ExitStatus
	Done() <-chan struct{}
	Touch()
	Flavor() models.AESFlavor

	Setup(ctx context.Context, flavor models.AESFlavor, password, confirm []byte) error
	Login(ctx context.Context, secret []byte) (bool, error)
	Logout(ctx context.Context)
	Terminate(ctx context.Context, status common.ExitStatus)

	AddAccount(ctx context.Context, name string, username, password []byte, email string) error
	HasAccount(ctx context.Context, name string) (bool, error)
	UpdateAccount(ctx context.Context, name string, upd manager.AccountUpdate) error
	DeleteAccount(ctx context.Context, name string) error
	ListAccountNames(ctx context.Context) ([]string, error)
	FindAccounts(ctx context.Context, keyword string) ([]string, error)
	Reveal(ctx context.Context, name string, show func(*models.Credentials) error, clear func()) (*session.Reveal, error)
	Show(ctx context.Context, name string, screen session.Screen, format func(*models.Credentials) string) (*session.Reveal, error)

	IdleSessionTimeout() time.Duration
	CredentialDisplayDuration() time.Duration
	SetIdleSessionTimeout(ctx context.Context, d time.Duration) error
	SetCredentialDisplayDuration(ctx context.Context, d time.Duration) error
	ResetMasterPassword(ctx context.Context, current, next, confirm []byte) error
	Purge(ctx context.Context) error
}

// App runs the setup, login and menu loop against a Vault
type App struct {
	vault  Vault
	con    *Console
	screen *termScreen
	log    logging.Logger
}

func NewApp(vault Vault, con *Console, log logging.Logger) *App {
	if log == nil {
		log = logging.Discard()
	}
	return &App{
		vault:  vault,
		con:    con,
		screen: &termScreen{con: con},
		log:    log,
	}
}

// Run drives the vault until the session ends and returns its exit status.
// The vault is always terminated on return.
func (a *App) Run(ctx context.Context) common.ExitStatus {
	a.greet()

	for {
		var err error
		switch a.vault.State() {
		case manager.StateAwaitingSetup:
			err = a.setup(ctx)
		case manager.StateReadyLocked:
			err = a.login(ctx)
		case manager.StateAuthenticated:
			err = a.menu(ctx)
		default:
			return a.finish(ctx, nil)
		}
		if err != nil {
			return a.finish(ctx, err)
		}
	}
}

func (a *App) finish(ctx context.Context, err error) common.ExitStatus {
	switch {
	case err == nil, errors.Is(err, errExit):
	case errors.Is(err, common.ErrSessionTerminated), errors.Is(err, common.ErrLockedOut):
	case errors.Is(err, io.EOF):
		a.log.Info(ctx, "input closed")
	case errors.Is(err, context.Canceled):
		a.log.Info(ctx, "interrupted")
	default:
		a.log.Error(ctx, "console stopped", "error", err)
		a.con.Println(errStyle.Render("Error: " + err.Error()))
	}

	if !a.terminated() {
		a.vault.Terminate(context.WithoutCancel(ctx), common.SafeTermination)
	}

	status := a.vault.Status()
	a.con.Println(farewell(status))
	return status
}

func farewell(status common.ExitStatus) string {
	switch status {
	case common.IdleSessionExpired:
		return warnStyle.Render("Session expired due to inactivity. Goodbye.")
	case common.AuthenticationFailed:
		return errStyle.Render("Authentication failed. Session ended.")
	case common.StorageUnavailable:
		return errStyle.Render("The vault storage is unavailable.")
	case common.SetupFailed:
		return errStyle.Render("Vault setup failed.")
	default:
		return "Goodbye!"
	}
}

func (a *App) terminated() bool {
	select {
	case <-a.vault.Done():
		return true
	default:
		return false
	}
}

func (a *App) greet() {
	name := "there"
	if u, err := currentUser(); err == nil && u.Username != "" {
		name = u.Username
	}
	a.con.Println(titleStyle.Render("VaultKeeper"))
	a.con.Printf("Hello, %s.\n\n", name)
}

// readLine reads one line and counts it as activity
func (a *App) readLine(ctx context.Context, prompt string) (string, error) {
	s, err := a.con.ReadLine(ctx, a.vault.Done(), prompt)
	if err == nil {
		a.vault.Touch()
	}
	return s, err
}

// readBytes is readLine for values the caller wipes
func (a *App) readBytes(ctx context.Context, prompt string) ([]byte, error) {
	b, err := a.con.ReadLineBytes(ctx, a.vault.Done(), prompt)
	if err == nil {
		a.vault.Touch()
	}
	return b, err
}

func (a *App) readSecret(ctx context.Context, prompt string) ([]byte, error) {
	b, err := a.con.ReadSecret(ctx, a.vault.Done(), prompt)
	if err == nil {
		a.vault.Touch()
	}
	return b, err
}

func (a *App) info(format string, args ...any) {
	a.con.Println(msgStyle.Render(fmt.Sprintf(format, args...)))
}

func (a *App) warn(format string, args ...any) {
	a.con.Println(warnStyle.Render(fmt.Sprintf(format, args...)))
}

func (a *App) setup(ctx context.Context) error {
	a.con.Println("No vault found. Let's create one.")

	for {
		flavor, err := a.chooseFlavor(ctx)
		if err != nil {
			return err
		}

		password, err := a.readSecret(ctx, "Create a master password: ")
		if err != nil {
			return err
		}
		if len(password) < minMasterPasswordLength {
			common.Wipe(password)
			a.warn("Master password must be at least %d characters long.", minMasterPasswordLength)
			continue
		}
		confirm, err := a.readSecret(ctx, "Confirm master password: ")
		if err != nil {
			common.Wipe(password)
			return err
		}

		err = a.vault.Setup(ctx, flavor, password, confirm)
		switch {
		case err == nil:
			a.info("Vault created with %s. Please log in.", flavor)
			return nil
		case errors.Is(err, common.ErrPasswordMismatch):
			a.warn("Passwords do not match. Try again.")
		case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrConfigurationInvalid):
			a.warn("%v", err)
		default:
			return err
		}
	}
}

func (a *App) chooseFlavor(ctx context.Context) (models.AESFlavor, error) {
	a.con.Println("Encryption strength:")
	a.con.Println("  1. AES-128")
	a.con.Println("  2. AES-192")
	a.con.Println("  3. AES-256 (default)")
	for {
		choice, err := a.readLine(ctx, "Enter your choice: ")
		if err != nil {
			return 0, err
		}
		switch choice {
		case "1":
			return models.AES128, nil
		case "2":
			return models.AES192, nil
		case "", "3":
			return models.AES256, nil
		default:
			a.warn("Invalid choice.")
		}
	}
}

func (a *App) login(ctx context.Context) error {
	secret, err := a.readSecret(ctx, "Enter master password: ")
	if err != nil {
		return err
	}

	ok, err := a.vault.Login(ctx, secret)
	switch {
	case ok:
		a.info("Login successful.")
		return nil
	case errors.Is(err, common.ErrLockedOut):
		a.con.Println(errStyle.Render("Too many failed attempts. The vault has been purged."))
		return err
	case errors.Is(err, common.ErrAuthenticationFailed):
		a.warn("Incorrect master password (%v).", err)
		return nil
	default:
		return err
	}
}
