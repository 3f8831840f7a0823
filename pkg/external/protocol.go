// Package external drives gnubg's interactive text interface.
//
// Protocol overview:
//   - Commands are newline-terminated lines written to gnubg's stdin
//   - gnubg answers with free-form text on stdout
//   - Most replies carry no terminator; the interactive prompt "(gnubg)" is
//     printed only sometimes and without a trailing newline
//   - A reply is therefore considered complete when the prompt shows up, or
//     when output goes quiet for a short while after at least one line
package external

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PromptMarker is the interactive prompt gnubg prints when it waits for input.
const PromptMarker = "(gnubg)"

// ConnOptions configures reply framing.
type ConnOptions struct {
	IdleDivisor    int           // per-line timeout is the total timeout divided by this
	MinLineTimeout time.Duration // floor for the per-line timeout
	MaxWait        time.Duration // cap on any single reply wait
	PromptMarker   string        // a line containing this ends the reply
}

// DefaultConnOptions returns sensible defaults.
func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		IdleDivisor:    20,
		MinLineTimeout: 50 * time.Millisecond,
		MaxWait:        60 * time.Second,
		PromptMarker:   PromptMarker,
	}
}

// Conn frames request/reply exchanges over a line-oriented stream.
// Only one exchange runs at a time.
type Conn struct {
	w       io.Writer
	lines   chan string
	readErr error // set before lines is closed
	opts    ConnOptions
	mu      sync.Mutex
	logger  zerolog.Logger
}

// NewConn starts reading r in the background. Zero fields in opts take
// their defaults.
func NewConn(r io.Reader, w io.Writer, opts ConnOptions) *Conn {
	def := DefaultConnOptions()
	if opts.IdleDivisor <= 0 {
		opts.IdleDivisor = def.IdleDivisor
	}
	if opts.MinLineTimeout <= 0 {
		opts.MinLineTimeout = def.MinLineTimeout
	}
	if opts.PromptMarker == "" {
		opts.PromptMarker = def.PromptMarker
	}

	c := &Conn{
		w:      w,
		lines:  make(chan string, 1024),
		opts:   opts,
		logger: log.With().Str("component", "gnubg-conn").Logger(),
	}
	go c.readLoop(r)
	return c
}

func (c *Conn) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(c.splitLines)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
	c.readErr = sc.Err()
	close(c.lines)
}

// splitLines yields complete lines, and also an unterminated tail once it
// contains the prompt, since gnubg never ends the prompt with a newline.
func (c *Conn) splitLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimRight(data[:i], "\r"), nil
	}
	if len(data) > 0 && (atEOF || bytes.Contains(data, []byte(c.opts.PromptMarker))) {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Send drains stale output, writes cmd and returns the framed reply.
func (c *Conn) Send(cmd string, timeout time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := c.drain(); n > 0 {
		c.logger.Debug().Int("lines", n).Msg("discarded stale output")
	}
	if err := c.WriteLine(cmd); err != nil {
		return "", err
	}
	c.logger.Debug().Str("cmd", cmd).Msg("sent")

	out, err := c.readResponse(timeout)
	c.logger.Debug().Str("cmd", cmd).Int("bytes", len(out)).Err(err).Msg("reply")
	return out, err
}

// WriteLine writes cmd with a trailing newline without waiting for a reply.
func (c *Conn) WriteLine(cmd string) error {
	if _, err := io.WriteString(c.w, cmd+"\n"); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	return nil
}

// ReadResponse waits for one reply without writing anything first. It is
// used to collect the startup banner.
func (c *Conn) ReadResponse(timeout time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readResponse(timeout)
}

func (c *Conn) lineTimeout(total time.Duration) time.Duration {
	return max(total/time.Duration(c.opts.IdleDivisor), c.opts.MinLineTimeout)
}

// readResponse implements the idle-detection loop. It returns early on the
// prompt, or once a line wait times out after output has started. If the
// total timeout passes without any output it reports ErrResponseTimeout.
func (c *Conn) readResponse(timeout time.Duration) (string, error) {
	if c.opts.MaxWait > 0 && timeout > c.opts.MaxWait {
		timeout = c.opts.MaxWait
	}
	lineTimeout := c.lineTimeout(timeout)
	deadline := time.Now().Add(timeout)

	timer := time.NewTimer(lineTimeout)
	defer timer.Stop()

	var lines []string
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		timer.Reset(min(lineTimeout, remaining))

		select {
		case line, ok := <-c.lines:
			if !ok {
				return strings.Join(lines, "\n"), c.exitErr()
			}
			lines = append(lines, line)
			if strings.Contains(line, c.opts.PromptMarker) {
				return strings.Join(lines, "\n"), nil
			}
		case <-timer.C:
			if len(lines) > 0 {
				return strings.Join(lines, "\n"), nil
			}
		}
	}

	if len(lines) == 0 {
		return "", ErrResponseTimeout
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Conn) exitErr() error {
	if c.readErr != nil {
		return fmt.Errorf("%w: %v", ErrProcessExited, c.readErr)
	}
	return ErrProcessExited
}

// drain discards output that arrived outside an exchange.
func (c *Conn) drain() int {
	n := 0
	for {
		select {
		case _, ok := <-c.lines:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
