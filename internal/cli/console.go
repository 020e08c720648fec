package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/loganmanery/vaultkeeper/internal/common"
)

// terminal seams, replaced in tests
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	getState     = term.GetState
	restoreState = term.Restore
)

// Console reads prompts and writes output. Reads return early when the
// session ends so an idle expiry never waits for the user to press Enter.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	terminal bool
}

// NewConsole wraps in and out. Secrets are read without echo when in is a terminal.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{in: bufio.NewReader(in), out: &syncWriter{w: out}, fd: -1}
	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		c.fd = int(f.Fd())
		c.terminal = true
	}
	return c
}

// syncWriter serializes writes from the prompt loop and the display timer
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) Println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

// ReadLine prints prompt and reads one trimmed line
func (c *Console) ReadLine(ctx context.Context, stop <-chan struct{}, prompt string) (string, error) {
	b, err := c.ReadLineBytes(ctx, stop, prompt)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadLineBytes is ReadLine for values that must not outlive their use.
// The result is never shared with the read buffer and the caller wipes it.
func (c *Console) ReadLineBytes(ctx context.Context, stop <-chan struct{}, prompt string) ([]byte, error) {
	c.Printf("%s", prompt)
	return c.await(ctx, stop, func() ([]byte, error) {
		line, err := c.readRawLine()
		if err != nil {
			return nil, err
		}
		return bytes.TrimSpace(line), nil
	}, nil)
}

// ReadSecret prints prompt and reads a secret. The caller owns and must wipe the result.
func (c *Console) ReadSecret(ctx context.Context, stop <-chan struct{}, prompt string) ([]byte, error) {
	c.Printf("%s", prompt)
	if !c.terminal {
		return c.await(ctx, stop, c.readRawLine, nil)
	}

	// Echo stays off while the read is pending, so an abandoned read
	// has to put the terminal back itself.
	state, err := getState(c.fd)
	if err != nil {
		return nil, err
	}
	restore := func() {
		_ = restoreState(c.fd, state)
		c.Println()
	}
	return c.await(ctx, stop, func() ([]byte, error) {
		b, err := readPassword(c.fd)
		c.Println()
		return b, err
	}, restore)
}

func (c *Console) readRawLine() ([]byte, error) {
	line, err := c.in.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return nil, err
	}
	line = trimNewline(line)
	return line, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

type readResult struct {
	b   []byte
	err error
}

// await runs read in the background and gives up when stop or ctx fires.
// abandon, when set, runs before returning from an abandoned read.
func (c *Console) await(ctx context.Context, stop <-chan struct{}, read func() ([]byte, error), abandon func()) ([]byte, error) {
	ch := make(chan readResult, 1)
	go func() {
		b, err := read()
		ch <- readResult{b: b, err: err}
	}()

	var err error
	select {
	case r := <-ch:
		return r.b, r.err
	case <-stop:
		err = common.ErrSessionTerminated
	case <-ctx.Done():
		err = ctx.Err()
	}

	if abandon != nil {
		abandon()
	}
	go func() { r := <-ch; common.Wipe(r.b) }()
	return nil, err
}
