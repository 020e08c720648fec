package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/internal/session"
	"github.com/loganmanery/vaultkeeper/pkg/generator"
	"github.com/loganmanery/vaultkeeper/pkg/manager"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

var errClipboard = errors.New("clipboard unavailable")

type command struct {
	label string
	run   func(*App, context.Context) error
}

var menuCommands = []command{
	{"List accounts", (*App).listAccounts},
	{"Retrieve account", (*App).retrieveAccount},
	{"Add account", (*App).addAccount},
	{"Update account", (*App).updateAccount},
	{"Delete account", (*App).deleteAccount},
	{"Copy password to clipboard", (*App).copyPassword},
	{"Change credential display duration", (*App).changeDisplayDuration},
	{"Change idle session timeout", (*App).changeIdleTimeout},
	{"Reset master password", (*App).resetMasterPassword},
	{"Purge vault", (*App).purgeVault},
	{"Lock", (*App).lock},
}

func (a *App) printMenu() {
	a.con.Println()
	a.con.Println(titleStyle.Render("Main Menu"))
	for i, c := range menuCommands {
		a.con.Printf("%2d. %s\n", i+1, c.label)
	}
	a.con.Println(" 0. Exit")
}

// menu runs one menu selection. Errors the user can recover from are
// printed and swallowed.
func (a *App) menu(ctx context.Context) error {
	a.printMenu()
	choice, err := a.readLine(ctx, "Enter your choice: ")
	if err != nil {
		return err
	}
	if choice == "0" {
		return errExit
	}

	n, convErr := strconv.Atoi(choice)
	if convErr != nil || n < 1 || n > len(menuCommands) {
		a.warn("Invalid choice. Please try again.")
		return nil
	}

	err = menuCommands[n-1].run(a, ctx)
	if err == nil || !recoverable(err) {
		return err
	}
	if a.terminated() {
		return common.ErrSessionTerminated
	}
	a.warn("%v", err)
	return nil
}

func recoverable(err error) bool {
	for _, target := range []error{
		common.ErrAccountNotFound,
		common.ErrDuplicateAccount,
		common.ErrConfigurationInvalid,
		common.ErrInvalidInput,
		common.ErrPasswordMismatch,
		common.ErrAuthenticationFailed,
		errClipboard,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (a *App) listAccounts(ctx context.Context) error {
	names, err := a.vault.ListAccountNames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		a.con.Println("No accounts stored.")
		return nil
	}
	a.con.Printf("\n%-5s %s\n", "#", "Account")
	a.con.Println(strings.Repeat("-", 40))
	for i, name := range names {
		a.con.Printf("%-5d %s\n", i+1, truncateString(name, 34))
	}
	return nil
}

// chooseAccount searches by keyword and returns a single account name.
// An empty result means the user picked nothing.
func (a *App) chooseAccount(ctx context.Context) (string, error) {
	keyword, err := a.readLine(ctx, "Account name (or part of it): ")
	if err != nil {
		return "", err
	}
	names, err := a.vault.FindAccounts(ctx, keyword)
	if err != nil {
		return "", err
	}

	switch len(names) {
	case 0:
		a.con.Println("No matching accounts.")
		return "", nil
	case 1:
		return names[0], nil
	}

	for i, name := range names {
		a.con.Printf("%2d. %s\n", i+1, name)
	}
	choice, err := a.readLine(ctx, "Select an account: ")
	if err != nil {
		return "", err
	}
	n, convErr := strconv.Atoi(choice)
	if convErr != nil || n < 1 || n > len(names) {
		a.warn("Invalid selection.")
		return "", nil
	}
	return names[n-1], nil
}

func (a *App) retrieveAccount(ctx context.Context) error {
	name, err := a.chooseAccount(ctx)
	if err != nil || name == "" {
		return err
	}

	reveal, err := a.vault.Show(ctx, name, a.screen, formatCredentials)
	if err != nil {
		return err
	}

	a.con.Printf("Shown for %s.\n", a.vault.CredentialDisplayDuration())
	_, err = a.readLine(ctx, "Press Enter to clear the screen...")
	reveal.ClearNow()
	return err
}

func formatCredentials(c *models.Credentials) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Account:  %s\n", c.AccountName)
	fmt.Fprintf(&sb, "Username: %s\n", c.Username)
	fmt.Fprintf(&sb, "Password: %s", secretStyle.Render(string(c.Password)))
	if c.Email != "" {
		fmt.Fprintf(&sb, "\nEmail:    %s", c.Email)
	}
	return sb.String()
}

func (a *App) addAccount(ctx context.Context) error {
	name, err := a.readLine(ctx, "Account name: ")
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("account name is required: %w", common.ErrInvalidInput)
	}
	exists, err := a.vault.HasAccount(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", models.NormalizeAccountName(name), common.ErrDuplicateAccount)
	}

	username, err := a.readBytes(ctx, "Username: ")
	if err != nil {
		return err
	}
	password, err := a.readPassword(ctx, "Password (leave empty to generate): ")
	if err != nil {
		common.Wipe(username)
		return err
	}
	email, err := a.readLine(ctx, "Email (optional): ")
	if err != nil {
		common.Wipe(username, password)
		return err
	}

	if err := a.vault.AddAccount(ctx, name, username, password, email); err != nil {
		return err
	}
	a.info("Account %s added.", models.NormalizeAccountName(name))
	return nil
}

// readPassword reads an account password, generating one when left empty
func (a *App) readPassword(ctx context.Context, prompt string) ([]byte, error) {
	password, err := a.readSecret(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if len(password) > 0 {
		return password, nil
	}
	password, err = generator.GeneratePassword(generator.DefaultOptions())
	if err != nil {
		return nil, err
	}
	a.info("Generated a %d character password.", len(password))
	return password, nil
}

func (a *App) updateAccount(ctx context.Context) error {
	name, err := a.chooseAccount(ctx)
	if err != nil || name == "" {
		return err
	}

	var upd manager.AccountUpdate
	username, err := a.readBytes(ctx, "New username (leave empty to keep): ")
	if err != nil {
		return err
	}
	if len(username) > 0 {
		upd.Username = username
	}

	change, err := a.readLine(ctx, "Change password? (y/n): ")
	if err != nil {
		common.Wipe(upd.Username)
		return err
	}
	if confirmOption(change) {
		if upd.Password, err = a.readPassword(ctx, "New password (leave empty to generate): "); err != nil {
			common.Wipe(upd.Username)
			return err
		}
	}

	email, err := a.readLine(ctx, "New email (leave empty to keep, '-' to remove): ")
	if err != nil {
		common.Wipe(upd.Username, upd.Password)
		return err
	}
	switch email {
	case "":
	case "-":
		upd.Email = new(string)
	default:
		upd.Email = &email
	}

	if err := a.vault.UpdateAccount(ctx, name, upd); err != nil {
		return err
	}
	a.info("Account %s updated.", name)
	return nil
}

func (a *App) deleteAccount(ctx context.Context) error {
	name, err := a.chooseAccount(ctx)
	if err != nil || name == "" {
		return err
	}
	answer, err := a.readLine(ctx, fmt.Sprintf("Are you sure you want to delete %s? (y/n): ", name))
	if err != nil {
		return err
	}
	if !confirmOption(answer) {
		a.con.Println("Deletion cancelled.")
		return nil
	}
	if err := a.vault.DeleteAccount(ctx, name); err != nil {
		return err
	}
	a.info("Account %s deleted.", name)
	return nil
}

// copyPassword puts the password on the clipboard and empties it when the
// display duration elapses
func (a *App) copyPassword(ctx context.Context) error {
	name, err := a.chooseAccount(ctx)
	if err != nil || name == "" {
		return err
	}

	_, err = a.vault.Reveal(ctx, name, func(c *models.Credentials) error {
		if err := writeClipboard(string(c.Password)); err != nil {
			return fmt.Errorf("%w: %w", errClipboard, err)
		}
		return nil
	}, func() {
		if err := writeClipboard(""); err != nil {
			a.log.Warn(context.Background(), "failed to clear clipboard", "error", err)
		}
	})
	if err != nil {
		return err
	}
	a.info("Password copied. The clipboard clears in %s.", a.vault.CredentialDisplayDuration())
	return nil
}

func (a *App) changeDisplayDuration(ctx context.Context) error {
	d, err := a.readSeconds(ctx, "Credential display duration", a.vault.CredentialDisplayDuration(),
		session.MinDisplayDuration, session.MaxDisplayDuration)
	if err != nil || d == 0 {
		return err
	}
	if err := a.vault.SetCredentialDisplayDuration(ctx, d); err != nil {
		return err
	}
	a.info("Credential display duration set to %s.", d)
	return nil
}

func (a *App) changeIdleTimeout(ctx context.Context) error {
	d, err := a.readSeconds(ctx, "Idle session timeout", a.vault.IdleSessionTimeout(),
		session.MinIdleTimeout, session.MaxIdleTimeout)
	if err != nil || d == 0 {
		return err
	}
	if err := a.vault.SetIdleSessionTimeout(ctx, d); err != nil {
		return err
	}
	a.info("Idle session timeout set to %s.", d)
	return nil
}

// readSeconds prompts for a duration in whole seconds. Zero means keep.
func (a *App) readSeconds(ctx context.Context, label string, current, lo, hi time.Duration) (time.Duration, error) {
	a.con.Printf("%s is %s (allowed %d-%d seconds).\n", label, current, int(lo/time.Second), int(hi/time.Second))
	answer, err := a.readLine(ctx, "New value in seconds (leave empty to keep): ")
	if err != nil || answer == "" {
		return 0, err
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q is not a number of seconds: %w", answer, common.ErrInvalidInput)
	}
	return time.Duration(n) * time.Second, nil
}

func (a *App) resetMasterPassword(ctx context.Context) error {
	current, err := a.readSecret(ctx, "Current master password: ")
	if err != nil {
		return err
	}
	next, err := a.readSecret(ctx, "New master password: ")
	if err != nil {
		common.Wipe(current)
		return err
	}
	if len(next) < minMasterPasswordLength {
		common.Wipe(current, next)
		return fmt.Errorf("master password must be at least %d characters: %w", minMasterPasswordLength, common.ErrInvalidInput)
	}
	confirm, err := a.readSecret(ctx, "Confirm new master password: ")
	if err != nil {
		common.Wipe(current, next)
		return err
	}

	err = a.vault.ResetMasterPassword(ctx, current, next, confirm)
	if errors.Is(err, common.ErrLockedOut) {
		a.con.Println(errStyle.Render("Too many failed attempts. The vault has been purged."))
		return err
	}
	if err != nil {
		return err
	}
	a.info("Master password changed.")
	return nil
}

func (a *App) purgeVault(ctx context.Context) error {
	a.con.Println(warnStyle.Render("This permanently deletes every account and setting."))
	answer, err := a.readLine(ctx, "Are you sure you want to purge the vault? (y/n): ")
	if err != nil {
		return err
	}
	if !confirmOption(answer) {
		a.con.Println("Purge cancelled.")
		return nil
	}
	if err := a.vault.Purge(ctx); err != nil {
		return err
	}
	a.info("Vault purged.")
	return common.ErrSessionTerminated
}

func (a *App) lock(ctx context.Context) error {
	a.vault.Logout(ctx)
	a.screen.Clear()
	a.con.Println("Vault locked.")
	return nil
}

func confirmOption(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// truncateString shortens s to maxLen runes, marking the cut with "..."
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
