package cli

import (
	"bytes"
	"context"
	"io"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/internal/crypto"
	"github.com/loganmanery/vaultkeeper/internal/session"
	"github.com/loganmanery/vaultkeeper/internal/session/sessiontest"
	"github.com/loganmanery/vaultkeeper/internal/storage"
	"github.com/loganmanery/vaultkeeper/pkg/manager"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

const master = "Sn0wman!"

type harness struct {
	pm    *manager.PasswordManager
	store *storage.SQLiteStorage
	sched *sessiontest.FakeScheduler
	out   *bytes.Buffer
}

func newHarness(t *testing.T, setUp bool) *harness {
	t.Helper()
	ctx := context.Background()

	orig := currentUser
	currentUser = func() (*user.User, error) { return &user.User{Username: "tester"}, nil }
	t.Cleanup(func() { currentUser = orig })

	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "vault.db"), storage.DefaultSettings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sched := sessiontest.NewFakeScheduler()
	pm := manager.NewPasswordManager(store, crypto.NewEngine(), manager.WithScheduler(sched))
	require.NoError(t, pm.Open(ctx))
	if setUp {
		require.NoError(t, pm.Setup(ctx, models.AES256, []byte(master), []byte(master)))
	}
	return &harness{pm: pm, store: store, sched: sched, out: &bytes.Buffer{}}
}

func (h *harness) run(lines ...string) common.ExitStatus {
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	app := NewApp(h.pm, NewConsole(in, h.out), nil)
	return app.Run(context.Background())
}

func TestRun_SetupLoginAddRetrieve(t *testing.T) {
	h := newHarness(t, false)

	status := h.run(
		"3", master, master,
		master,
		"3", "github", "octocat", "hunter2", "",
		"2", "git", "",
		"0",
	)

	assert.Equal(t, common.SafeTermination, status)
	out := h.out.String()
	assert.Contains(t, out, "Hello, tester.")
	assert.Contains(t, out, "Vault created with AES-256")
	assert.Contains(t, out, "Login successful.")
	assert.Contains(t, out, "Account GITHUB added.")
	assert.Contains(t, out, "octocat")
	assert.Contains(t, out, "hunter2")
	assert.Contains(t, out, clearSequence)
	assert.Contains(t, out, "Goodbye!")
	assert.Equal(t, manager.StateTerminated, h.pm.State())
}

func TestRun_SetupRetriesOnBadInput(t *testing.T) {
	h := newHarness(t, false)

	status := h.run(
		"3", "short",
		"3", master, "Different1",
		"1", master, master,
	)

	assert.Equal(t, common.SafeTermination, status)
	out := h.out.String()
	assert.Contains(t, out, "at least 8 characters")
	assert.Contains(t, out, "Passwords do not match")
	assert.Contains(t, out, "Vault created with AES-128")

	done, err := h.store.GetBoolMetadata(context.Background(), models.MetaSetupComplete)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_LockoutPurgesVault(t *testing.T) {
	h := newHarness(t, true)

	status := h.run("wrong-1", "wrong-2", "wrong-3")

	assert.Equal(t, common.AuthenticationFailed, status)
	assert.Equal(t, manager.StateLockedOut, h.pm.State())
	out := h.out.String()
	assert.Contains(t, out, "2 attempt(s) remaining")
	assert.Contains(t, out, "1 attempt(s) remaining")
	assert.Contains(t, out, "The vault has been purged.")

	done, err := h.store.GetBoolMetadata(context.Background(), models.MetaSetupComplete)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRun_IdleExpiryInterruptsPrompt(t *testing.T) {
	h := newHarness(t, true)

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	result := make(chan common.ExitStatus, 1)
	go func() {
		app := NewApp(h.pm, NewConsole(pr, h.out), nil)
		result <- app.Run(context.Background())
	}()

	h.sched.Advance(session.DefaultIdleTimeout)

	select {
	case status := <-result:
		assert.Equal(t, common.IdleSessionExpired, status)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after idle expiry")
	}
}

func TestRun_InterruptedByContext(t *testing.T) {
	h := newHarness(t, true)

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan common.ExitStatus, 1)
	go func() {
		app := NewApp(h.pm, NewConsole(pr, h.out), nil)
		result <- app.Run(ctx)
	}()
	cancel()

	select {
	case status := <-result:
		assert.Equal(t, common.SafeTermination, status)
		assert.Equal(t, manager.StateTerminated, h.pm.State())
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_CopyPassword(t *testing.T) {
	h := newHarness(t, true)

	var mu sync.Mutex
	var clips []string
	orig := writeClipboard
	writeClipboard = func(s string) error {
		mu.Lock()
		defer mu.Unlock()
		clips = append(clips, s)
		return nil
	}
	t.Cleanup(func() { writeClipboard = orig })

	status := h.run(
		master,
		"3", "github", "octocat", "hunter2", "",
		"6", "github",
	)

	assert.Equal(t, common.SafeTermination, status)
	assert.Contains(t, h.out.String(), "Password copied.")
	assert.NotContains(t, h.out.String(), "hunter2")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hunter2", ""}, clips, "clipboard is emptied when the session ends")
}

func TestRun_InvalidChoiceAndDuplicate(t *testing.T) {
	h := newHarness(t, true)

	status := h.run(
		master,
		"42",
		"3", "github", "octocat", "hunter2", "",
		"3", "GitHub",
		"2", "nothing-like-it",
		"0",
	)

	assert.Equal(t, common.SafeTermination, status)
	out := h.out.String()
	assert.Contains(t, out, "Invalid choice.")
	assert.Contains(t, out, "GITHUB: account already exists")
	assert.Contains(t, out, "No matching accounts.")
}

func TestRun_UpdateThenDelete(t *testing.T) {
	h := newHarness(t, true)

	status := h.run(
		master,
		"3", "github", "octocat", "hunter2", "octo@example.com",
		"4", "github", "hubber", "y", "n3wPass", "-",
		"2", "github", "",
		"5", "github", "y",
		"1",
		"0",
	)

	assert.Equal(t, common.SafeTermination, status)
	out := h.out.String()
	assert.Contains(t, out, "Account GITHUB updated.")
	assert.Contains(t, out, "hubber")
	assert.Contains(t, out, "n3wPass")
	assert.NotContains(t, out, "Email:    octo@example.com")
	assert.Contains(t, out, "Account GITHUB deleted.")
	assert.Contains(t, out, "No accounts stored.")
}

func TestRun_AddGeneratesPassword(t *testing.T) {
	h := newHarness(t, true)

	status := h.run(
		master,
		"3", "github", "octocat", "", "",
		"0",
	)

	assert.Equal(t, common.SafeTermination, status)
	assert.Contains(t, h.out.String(), "Generated a 20 character password.")
}

func TestRun_ChangeSettings(t *testing.T) {
	h := newHarness(t, true)

	status := h.run(
		master,
		"7", "5",
		"8", "5",
		"8", "45",
		"8", "abc",
		"0",
	)

	assert.Equal(t, common.SafeTermination, status)
	out := h.out.String()
	assert.Contains(t, out, "Credential display duration set to 5s.")
	assert.Contains(t, out, "invalid configuration")
	assert.Contains(t, out, "Idle session timeout set to 45s.")
	assert.Contains(t, out, "invalid input")
	assert.Equal(t, 5*time.Second, h.pm.CredentialDisplayDuration())
	assert.Equal(t, 45*time.Second, h.pm.IdleSessionTimeout())
}

func TestRun_ResetMasterPasswordAndLock(t *testing.T) {
	h := newHarness(t, true)
	const next = "Igl00!!x"

	status := h.run(
		master,
		"3", "github", "octocat", "hunter2", "",
		"9", master, next, next,
		"11",
		next,
		"2", "github", "",
		"0",
	)

	assert.Equal(t, common.SafeTermination, status)
	out := h.out.String()
	assert.Contains(t, out, "Master password changed.")
	assert.Contains(t, out, "Vault locked.")
	assert.Equal(t, 2, strings.Count(out, "Login successful."))
	assert.Contains(t, out, "hunter2")
}

func TestRun_Purge(t *testing.T) {
	h := newHarness(t, true)

	status := h.run(
		master,
		"10", "n",
		"10", "y",
	)

	assert.Equal(t, common.SafeTermination, status)
	out := h.out.String()
	assert.Contains(t, out, "Purge cancelled.")
	assert.Contains(t, out, "Vault purged.")

	done, err := h.store.GetBoolMetadata(context.Background(), models.MetaSetupComplete)
	require.NoError(t, err)
	assert.False(t, done)
}

// stubTerminal replaces the terminal seams for one test
func stubTerminal(t *testing.T, read func(int) ([]byte, error), restore func(int, *term.State) error) *term.State {
	t.Helper()
	origRead, origGet, origRestore := readPassword, getState, restoreState
	t.Cleanup(func() { readPassword, getState, restoreState = origRead, origGet, origRestore })

	saved := &term.State{}
	readPassword = read
	getState = func(int) (*term.State, error) { return saved, nil }
	restoreState = restore
	return saved
}

func TestConsole_ReadSecretFromTerminal(t *testing.T) {
	restored := 0
	stubTerminal(t,
		func(int) ([]byte, error) { return []byte("s3cret"), nil },
		func(int, *term.State) error { restored++; return nil })

	var out bytes.Buffer
	con := NewConsole(strings.NewReader(""), &out)
	con.terminal = true

	b, err := con.ReadSecret(context.Background(), nil, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(b))
	assert.Equal(t, "Password: \n", out.String())
	assert.Zero(t, restored)
}

func TestConsole_ReadSecretRestoresTerminalWhenAbandoned(t *testing.T) {
	tests := []struct {
		name    string
		abandon func(stop chan struct{}, cancel context.CancelFunc)
		wantErr error
	}{
		{
			name:    "session ended",
			abandon: func(stop chan struct{}, _ context.CancelFunc) { close(stop) },
			wantErr: common.ErrSessionTerminated,
		},
		{
			name:    "interrupted",
			abandon: func(_ chan struct{}, cancel context.CancelFunc) { cancel() },
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started := make(chan struct{})
			release := make(chan struct{})
			t.Cleanup(func() { close(release) })

			var mu sync.Mutex
			var restored []*term.State
			saved := stubTerminal(t,
				func(int) ([]byte, error) {
					close(started)
					<-release
					return []byte("late"), nil
				},
				func(_ int, st *term.State) error {
					mu.Lock()
					defer mu.Unlock()
					restored = append(restored, st)
					return nil
				})

			con := NewConsole(strings.NewReader(""), io.Discard)
			con.terminal = true

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			stop := make(chan struct{})
			go func() {
				<-started
				tt.abandon(stop, cancel)
			}()

			_, err := con.ReadSecret(ctx, stop, "Password: ")
			require.ErrorIs(t, err, tt.wantErr)

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, restored, 1)
			assert.Same(t, saved, restored[0])
		})
	}
}

func TestConsole_ReadLineBytes(t *testing.T) {
	con := NewConsole(strings.NewReader("  octocat \nnext\n"), io.Discard)

	b, err := con.ReadLineBytes(context.Background(), nil, "Username: ")
	require.NoError(t, err)
	assert.Equal(t, "octocat", string(b))

	common.Wipe(b)
	assert.Equal(t, make([]byte, len("octocat")), b)

	s, err := con.ReadLine(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "next", s)
}

func TestConsole_ReadLineStops(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	con := NewConsole(pr, io.Discard)
	stop := make(chan struct{})
	close(stop)

	_, err := con.ReadLine(context.Background(), stop, "> ")
	assert.ErrorIs(t, err, common.ErrSessionTerminated)
}

func TestConsole_ReadLineEOF(t *testing.T) {
	con := NewConsole(strings.NewReader("last line"), io.Discard)

	s, err := con.ReadLine(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "last line", s)

	_, err = con.ReadLine(context.Background(), nil, "")
	assert.ErrorIs(t, err, io.EOF)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "github", truncateString("github", 10))
	assert.Equal(t, "very-lo...", truncateString("very-long-account-name", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}

func TestConfirmOption(t *testing.T) {
	for _, yes := range []string{"y", "Y", " yes "} {
		assert.True(t, confirmOption(yes), yes)
	}
	for _, no := range []string{"", "n", "nope"} {
		assert.False(t, confirmOption(no), no)
	}
}
