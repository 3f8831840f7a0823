package engine

import "errors"

var (
	// ErrCheckerCount is returned when a side does not account for 15 checkers.
	ErrCheckerCount = errors.New("invalid checker count")
	// ErrInvalidDice is returned when a die is outside [1,6].
	ErrInvalidDice = errors.New("invalid dice")
	// ErrIllegalPosition is returned when gnubg rejects a position ID.
	ErrIllegalPosition = errors.New("gnubg rejected position as illegal")
	// ErrNoEquity is returned when a hint reply carries no equity marker.
	ErrNoEquity = errors.New("no equity in hint output")
	// ErrNotation is returned for move notation that cannot be read.
	ErrNotation = errors.New("malformed move notation")
)
