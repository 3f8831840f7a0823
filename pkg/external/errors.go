package external

import "errors"

var (
	// ErrNotRunning is returned by Send when no gnubg process is attached.
	ErrNotRunning = errors.New("gnubg not running")
	// ErrResponseTimeout is returned when gnubg printed nothing before the timeout.
	ErrResponseTimeout = errors.New("timed out waiting for gnubg")
	// ErrProcessExited is returned when gnubg's output stream ends.
	ErrProcessExited = errors.New("gnubg exited")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("gnubg already started")
)
