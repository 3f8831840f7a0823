package external

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MockVersion is reported as the version when no gnubg binary is available.
const MockVersion = "mock"

// State is the lifecycle state of a Process.
type State int

const (
	NotStarted State = iota
	Starting
	Ready
	ReadyMock
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case ReadyMock:
		return "ready_mock"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// setupCommands are sent once after the banner.
var setupCommands = []string{
	"set evaluation chequer eval plies 2",
	"set evaluation cubedecision eval plies 2",
}

// Options configures the gnubg subprocess.
type Options struct {
	Path           string        // binary name or path
	Args           []string      // usually just "--tty"
	BannerTimeout  time.Duration // wait for the startup banner
	CommandTimeout time.Duration // wait for each setup command
	StopTimeout    time.Duration // grace period before the process is killed
	LaunchAttempts uint          // launch retries for failures other than a missing binary
	Conn           ConnOptions
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Path:           "gnubg",
		Args:           []string{"--tty"},
		BannerTimeout:  10 * time.Second,
		CommandTimeout: 10 * time.Second,
		StopTimeout:    5 * time.Second,
		LaunchAttempts: 3,
		Conn:           DefaultConnOptions(),
	}
}

// Process owns one gnubg subprocess.
type Process struct {
	opts Options

	mu      sync.Mutex
	state   State
	version string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	conn    *Conn

	logger zerolog.Logger
}

// NewProcess creates a Process in the NotStarted state.
func NewProcess(opts Options) *Process {
	return &Process{
		opts:   opts,
		logger: log.With().Str("component", "gnubg").Logger(),
	}
}

// Start launches gnubg and waits for its banner. A missing binary, or a
// launch that keeps failing, leaves the process in ReadyMock; only a second
// call returns an error.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != NotStarted {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.state = Starting
	p.mu.Unlock()

	path, err := exec.LookPath(p.opts.Path)
	if err != nil {
		p.logger.Warn().Err(err).Str("path", p.opts.Path).Msg("gnubg binary not found, running in mock mode")
		p.setMock()
		return nil
	}

	attempts := max(p.opts.LaunchAttempts, 1)
	err = retry.Do(
		func() error { return p.launch(path) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			p.logger.Warn().Err(err).Uint("n", n).Msg("gnubg launch failed, retrying")
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		p.logger.Error().Err(err).Msg("could not start gnubg, running in mock mode")
		p.setMock()
		return nil
	}
	return nil
}

func (p *Process) setMock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Starting {
		p.state = ReadyMock
		p.version = MockVersion
	}
}

func (p *Process) launch(path string) error {
	cmd := exec.Command(path, p.opts.Args...)
	cmd.Env = append(os.Environ(), "LANG=C", "LC_ALL=C")
	cmd.Stderr = &stderrLogger{logger: p.logger}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}

	conn := NewConn(stdout, stdin, p.opts.Conn)
	abort := func(err error) error {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}

	banner, err := conn.ReadResponse(p.opts.BannerTimeout)
	if err != nil {
		return abort(fmt.Errorf("waiting for banner: %w", err))
	}
	version := ParseVersion(banner)

	for _, c := range setupCommands {
		if _, err := conn.Send(c, p.opts.CommandTimeout); err != nil {
			return abort(fmt.Errorf("%s: %w", c, err))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Starting {
		// stopped while we were launching
		return retry.Unrecoverable(abort(ErrNotRunning))
	}
	p.cmd, p.stdin, p.conn = cmd, stdin, conn
	p.version = version
	p.state = Ready
	p.logger.Info().Str("version", version).Int("pid", cmd.Process.Pid).Msg("gnubg ready")
	return nil
}

// Send writes one command and returns gnubg's reply.
func (p *Process) Send(cmd string, timeout time.Duration) (string, error) {
	p.mu.Lock()
	conn, state := p.conn, p.state
	p.mu.Unlock()

	if state != Ready || conn == nil {
		return "", ErrNotRunning
	}
	return conn.Send(cmd, timeout)
}

// Stop asks gnubg to quit, then terminates it if it does not exit within the
// grace period. Stop is safe to call more than once.
func (p *Process) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Terminated {
		return nil
	}
	p.state = Terminated
	if p.cmd == nil {
		return nil
	}

	_ = p.conn.WriteLine("quit")
	_ = p.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	grace := p.opts.StopTimeout
	if grace <= 0 {
		grace = DefaultOptions().StopTimeout
	}
	select {
	case err := <-done:
		p.logger.Info().Err(err).Msg("gnubg exited")
		return nil
	case <-time.After(grace / 2):
	}

	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case err := <-done:
		p.logger.Info().Err(err).Msg("gnubg terminated")
		return nil
	case <-time.After(grace / 2):
	}

	p.logger.Warn().Msg("gnubg did not exit, killing it")
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill gnubg: %w", err)
	}
	<-done
	return nil
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Version is the gnubg version from the banner, MockVersion in mock mode,
// or empty before startup has finished.
func (p *Process) Version() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// Ready reports whether startup has finished, in either mode.
func (p *Process) Ready() bool {
	s := p.State()
	return s == Ready || s == ReadyMock
}

// Mode is "gnubg" when a real process is attached and "mock" otherwise.
func (p *Process) Mode() string {
	if p.State() == Ready {
		return "gnubg"
	}
	return MockVersion
}

// ParseVersion extracts the version from a banner line such as
// "GNU Backgammon 1.07.001".
func ParseVersion(banner string) string {
	const product = "GNU Backgammon"
	i := strings.Index(banner, product)
	if i < 0 {
		return "unknown"
	}
	fields := strings.Fields(banner[i+len(product):])
	if len(fields) == 0 {
		return "unknown"
	}
	v := strings.TrimRightFunc(fields[0], func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if v == "" || v[0] < '0' || v[0] > '9' {
		return "unknown"
	}
	return v
}

// stderrLogger forwards gnubg's stderr to the debug log, one entry per line.
type stderrLogger struct {
	logger zerolog.Logger
	buf    bytes.Buffer
}

func (s *stderrLogger) Write(p []byte) (int, error) {
	s.buf.Write(p)
	for {
		line, err := s.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			s.buf.Reset()
			s.buf.WriteString(line)
			return len(p), nil
		}
		if line = strings.TrimSpace(line); line != "" {
			s.logger.Debug().Str("stream", "stderr").Msg(line)
		}
	}
}
