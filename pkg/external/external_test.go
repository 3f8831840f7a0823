package external

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine answers each command line from script. A reply ending without
// a newline is written as-is so tests can imitate gnubg's bare prompt.
type fakeEngine struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	got     chan string
}

func newFakeEngine(t *testing.T, script func(cmd string) []string) *fakeEngine {
	t.Helper()
	f := &fakeEngine{got: make(chan string, 64)}
	f.stdinR, f.stdinW = io.Pipe()
	f.stdoutR, f.stdoutW = io.Pipe()

	go func() {
		sc := bufio.NewScanner(f.stdinR)
		for sc.Scan() {
			cmd := sc.Text()
			f.got <- cmd
			for _, chunk := range script(cmd) {
				if strings.HasPrefix(chunk, "sleep ") {
					d, _ := time.ParseDuration(strings.TrimPrefix(chunk, "sleep "))
					time.Sleep(d)
					continue
				}
				if _, err := io.WriteString(f.stdoutW, chunk); err != nil {
					return
				}
			}
		}
		f.stdoutW.Close()
	}()

	t.Cleanup(func() {
		f.stdinW.Close()
		f.stdoutW.Close()
	})
	return f
}

func (f *fakeEngine) conn(opts ConnOptions) *Conn {
	return NewConn(f.stdoutR, f.stdinW, opts)
}

func testConnOptions() ConnOptions {
	return ConnOptions{
		IdleDivisor:    20,
		MinLineTimeout: 20 * time.Millisecond,
		MaxWait:        2 * time.Second,
		PromptMarker:   PromptMarker,
	}
}

func TestConnStopsAtPrompt(t *testing.T) {
	f := newFakeEngine(t, func(cmd string) []string {
		// the prompt arrives without a newline, then more output that
		// belongs to nobody
		return []string{"first\nsecond\n", "(gnubg) ", "sleep 100ms", "late\n"}
	})
	c := f.conn(testConnOptions())

	out, err := c.Send("hint", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n(gnubg) ", out)
	assert.Equal(t, "hint", <-f.got)
}

func TestConnStopsWhenIdle(t *testing.T) {
	f := newFakeEngine(t, func(cmd string) []string {
		return []string{"one\n", "two\n"}
	})
	c := f.conn(testConnOptions())

	start := time.Now()
	out, err := c.Send("show board", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", out)
	// per-line timeout is 100ms here, far below the 2s budget
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnTimeoutWithoutOutput(t *testing.T) {
	f := newFakeEngine(t, func(cmd string) []string { return nil })
	c := f.conn(testConnOptions())

	_, err := c.Send("new game", 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrResponseTimeout)
}

func TestConnMaxWaitCapsTimeout(t *testing.T) {
	f := newFakeEngine(t, func(cmd string) []string { return nil })
	opts := testConnOptions()
	opts.MaxWait = 100 * time.Millisecond
	c := f.conn(opts)

	start := time.Now()
	_, err := c.Send("hint", time.Hour)
	assert.ErrorIs(t, err, ErrResponseTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnDrainsStaleOutput(t *testing.T) {
	f := newFakeEngine(t, func(cmd string) []string {
		if cmd == "first" {
			return []string{"reply to first\n", "sleep 150ms", "late noise\n"}
		}
		return []string{"reply to " + cmd + "\n(gnubg) "}
	})
	c := f.conn(testConnOptions())

	out, err := c.Send("first", 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "reply to first", out)

	// let the late line arrive before the next exchange
	time.Sleep(250 * time.Millisecond)
	out, err = c.Send("second", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "reply to second\n(gnubg) ", out)
}

func TestConnProcessExited(t *testing.T) {
	f := newFakeEngine(t, func(cmd string) []string { return []string{"bye\n"} })
	c := f.conn(testConnOptions())

	f.stdoutW.Close()
	_, err := c.Send("quit", time.Second)
	assert.ErrorIs(t, err, ErrProcessExited)
}

func TestConnReadResponseBanner(t *testing.T) {
	r, w := io.Pipe()
	c := NewConn(r, io.Discard, testConnOptions())
	go io.WriteString(w, "GNU Backgammon 1.07.001\nCopyright...\n(gnubg) ")

	out, err := c.ReadResponse(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "1.07.001", ParseVersion(out))
	w.Close()
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		banner string
		want   string
	}{
		{"GNU Backgammon 1.07.001\nCopyright (C) 2022", "1.07.001"},
		{"  GNU Backgammon 1.06.002-mingw, built today", "1.06.002"},
		{"gnubg starting", "unknown"},
		{"GNU Backgammon", "unknown"},
		{"GNU Backgammon version", "unknown"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseVersion(tc.banner), tc.banner)
	}
}

func TestProcessMissingBinaryRunsInMockMode(t *testing.T) {
	opts := DefaultOptions()
	opts.Path = "gnubg-definitely-not-installed"
	p := NewProcess(opts)
	assert.Equal(t, NotStarted, p.State())

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, ReadyMock, p.State())
	assert.Equal(t, MockVersion, p.Version())
	assert.Equal(t, "mock", p.Mode())
	assert.True(t, p.Ready())

	_, err := p.Send("hint", time.Second)
	assert.ErrorIs(t, err, ErrNotRunning)

	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, p.Stop())
	assert.Equal(t, Terminated, p.State())
	require.NoError(t, p.Stop())
}

// fakeGnubg is a shell stand-in that prints a banner and echoes commands.
const fakeGnubg = `echo "GNU Backgammon 1.07.001"
printf '(gnubg) '
while read line; do
  echo "got $line LANG=$LANG"
  printf '(gnubg) '
done`

func TestProcessLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	opts := DefaultOptions()
	opts.Path = "sh"
	opts.Args = []string{"-c", fakeGnubg}
	opts.BannerTimeout = 2 * time.Second
	opts.CommandTimeout = 2 * time.Second
	opts.StopTimeout = 2 * time.Second
	opts.Conn = testConnOptions()
	p := NewProcess(opts)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, Ready, p.State())
	assert.Equal(t, "1.07.001", p.Version())
	assert.Equal(t, "gnubg", p.Mode())

	out, err := p.Send("hint", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "got hint LANG=C\n(gnubg) ", out)

	require.NoError(t, p.Stop())
	assert.Equal(t, Terminated, p.State())

	_, err = p.Send("hint", time.Second)
	assert.True(t, errors.Is(err, ErrNotRunning))
}

func TestStderrLoggerSplitsLines(t *testing.T) {
	s := &stderrLogger{logger: zerolog.Nop()}
	n, err := s.Write([]byte("warning: one\npartial"))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, "partial", s.buf.String())

	_, err = s.Write([]byte(" line\n"))
	require.NoError(t, err)
	assert.Zero(t, s.buf.Len())
}
