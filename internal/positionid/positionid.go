// Package positionid encodes application boards into gnubg position IDs.
//
// A position ID is the 80-bit "old position key" gnubg uses to load a board
// with "set board <id>". Each side is written from its own perspective
// (point 1 = own bear-off end): player 0 first, then player 1. For every
// point and finally the bar, the checker count is written as a run of 1-bits
// followed by a terminating 0-bit. Bits are packed least-significant first
// into 10 bytes and rendered as base64 without padding (14 characters).
package positionid

import (
	"encoding/base64"
	"errors"
)

const (
	// KeyBits is the fixed length of a position key.
	KeyBits = 80
	// KeyBytes is the number of bytes a position key packs into.
	KeyBytes = KeyBits / 8
	// IDLength is the length of a rendered position ID.
	IDLength = 14
	// BarIndex is the index of the bar in a Board row.
	BarIndex = 24
	// CheckersPerSide is the number of checkers each side owns.
	CheckersPerSide = 15
)

// ErrInvalidPositionID is returned when a position ID is invalid
var ErrInvalidPositionID = errors.New("invalid position ID")

// Board is the engine's view of a position: [player][point], each row in
// that player's own frame. Index 0-23 are points 1-24, index 24 is the bar.
type Board [2][25]uint8

// Key is the packed 80-bit position key.
type Key [KeyBytes]uint8

// FromPoints converts an application board into the engine's two-row layout
// with white as player 0.
//
// Application points are signed: positive counts belong to white, negative
// to black. White's frame is the application frame, so its row is copied in
// ascending order. Black's point 1 is application point 24, so its row is
// filled by walking the application points in descending order.
func FromPoints(points [24]int, bar [2]int) Board {
	var b Board
	for i := 0; i < 24; i++ {
		if points[i] > 0 {
			b[0][i] = clampCount(points[i])
		}
		if points[23-i] < 0 {
			b[1][i] = clampCount(-points[23-i])
		}
	}
	b[0][BarIndex] = clampCount(bar[0])
	b[1][BarIndex] = clampCount(bar[1])
	return b
}

// Points converts the layout back to signed application points and bar
// counts. It is the inverse of FromPoints for boards where no application
// point is claimed by both sides.
func (b Board) Points() ([24]int, [2]int) {
	var points [24]int
	for i := 0; i < 24; i++ {
		points[i] += int(b[0][i])
		points[23-i] -= int(b[1][i])
	}
	return points, [2]int{int(b[0][BarIndex]), int(b[1][BarIndex])}
}

// Checkers returns the number of checkers each player has on the board and bar.
func (b Board) Checkers() [2]int {
	var n [2]int
	for side := 0; side < 2; side++ {
		for j := 0; j < 25; j++ {
			n[side] += int(b[side][j])
		}
	}
	return n
}

func clampCount(n int) uint8 {
	switch {
	case n < 0:
		return 0
	case n > 255:
		return 255
	}
	return uint8(n)
}

// keyWriter appends bits LSB-first and silently drops anything past bit 80,
// which is how an over-full board is truncated to a fixed-size key.
type keyWriter struct {
	key Key
	pos int
}

func (w *keyWriter) ones(n int) {
	for ; n > 0 && w.pos < KeyBits; n-- {
		w.key[w.pos/8] |= 1 << (w.pos % 8)
		w.pos++
	}
}

func (w *keyWriter) zero() {
	if w.pos < KeyBits {
		w.pos++
	}
}

// MakeKey packs a board into an 80-bit key. Unused trailing bits stay zero.
func MakeKey(board Board) Key {
	var w keyWriter
	for i := 0; i < 2; i++ {
		for j := 0; j < 25; j++ {
			w.ones(int(board[i][j]))
			w.zero()
		}
	}
	return w.key
}

// String renders the key as an unpadded base64 position ID.
func (k Key) String() string {
	return base64.RawStdEncoding.EncodeToString(k[:])
}

// Bits returns the key as a slice of 80 bit values, bit i at index i.
func (k Key) Bits() []uint8 {
	bits := make([]uint8, KeyBits)
	for i := range bits {
		bits[i] = (k[i/8] >> (i % 8)) & 1
	}
	return bits
}

// Encode returns the position ID for an application board. White is always
// player 0; whose turn it is is set separately on the engine.
func Encode(points [24]int, bar [2]int) string {
	return MakeKey(FromPoints(points, bar)).String()
}

// KeyFromID parses a rendered position ID back into its key.
func KeyFromID(posID string) (Key, error) {
	var key Key
	if len(posID) != IDLength {
		return key, ErrInvalidPositionID
	}
	data, err := base64.RawStdEncoding.DecodeString(posID)
	if err != nil || len(data) != KeyBytes {
		return key, ErrInvalidPositionID
	}
	copy(key[:], data)
	return key, nil
}

// BoardFromKey reconstructs a board from a key. Runs of 1-bits count
// checkers on the current point, a 0-bit advances to the next point.
func BoardFromKey(key Key) Board {
	var board Board
	i, j := 0, 0

	for a := 0; a < KeyBytes; a++ {
		cur := key[a]

		for k := 0; k < 8; k++ {
			if cur&0x1 != 0 {
				if i >= 2 || j >= 25 {
					return board
				}
				board[i][j]++
			} else {
				j++
				if j == 25 {
					i++
					j = 0
				}
			}
			cur >>= 1
		}
	}

	return board
}

// Decode parses a position ID and validates the resulting board.
func Decode(posID string) (Board, error) {
	key, err := KeyFromID(posID)
	if err != nil {
		return Board{}, err
	}
	board := BoardFromKey(key)
	if !CheckPosition(board) {
		return board, ErrInvalidPositionID
	}
	return board, nil
}

// CheckPosition validates that a board position is legal
func CheckPosition(board Board) bool {
	var ac [2]uint32

	// Check for a player with over 15 checkers
	for i := 0; i < 25; i++ {
		ac[0] += uint32(board[0][i])
		ac[1] += uint32(board[1][i])
		if ac[0] > CheckersPerSide || ac[1] > CheckersPerSide {
			return false
		}
	}

	// Check for both players having checkers on the same point
	for i := 0; i < 24; i++ {
		if board[0][i] > 0 && board[1][23-i] > 0 {
			return false
		}
	}

	// Check for both players on the bar against closed boards
	for i := 0; i < 6; i++ {
		if board[0][i] < 2 || board[1][i] < 2 {
			return true
		}
	}

	return board[0][BarIndex] == 0 || board[1][BarIndex] == 0
}
