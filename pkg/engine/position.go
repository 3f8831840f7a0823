// Package engine translates between the application's board model and the
// gnubg text protocol, and answers evaluation and cube requests.
package engine

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/yourusername/gnubgserver/internal/positionid"
)

// CheckersPerSide is the number of checkers each side owns.
const CheckersPerSide = 15

// Side identifies a player in the application's fixed frame.
type Side int

const (
	// White is gnubg's player 0 and owns positive point counts.
	White Side = iota
	// Black is gnubg's player 1 and owns negative point counts.
	Black
)

// ParseSide maps the wire tags "white" and "black".
func ParseSide(s string) (Side, error) {
	switch s {
	case "white", "":
		return White, nil
	case "black":
		return Black, nil
	}
	return White, fmt.Errorf("unknown player %q", s)
}

func (s Side) String() string {
	if s == Black {
		return "black"
	}
	return "white"
}

// Turn is the argument for gnubg's "set turn" command.
func (s Side) Turn() int {
	return int(s)
}

// Board is a position in the application's fixed white/black frame.
// Positive point values are white checkers, negative values black checkers.
// Index 0 of Bar and BorneOff is white, index 1 is black.
type Board struct {
	Points   [24]int
	Bar      [2]int
	BorneOff [2]int
}

// Dice is a roll, each die in [1,6].
type Dice [2]int

// Valid reports whether both dice are in range.
func (d Dice) Valid() bool {
	return d[0] >= 1 && d[0] <= 6 && d[1] >= 1 && d[1] <= 6
}

// MaxPlies is the deepest search a request may ask for.
const MaxPlies = 4

// ValidPlies reports whether n is a supported search depth.
func ValidPlies(n int) bool {
	return n >= 0 && n <= MaxPlies
}

// ValidCubeValue reports whether v is a power of two.
func ValidCubeValue(v int) bool {
	return v >= 1 && v&(v-1) == 0
}

// CheckerCounts returns the number of white and black checkers including
// the bar and borne-off checkers.
func (b Board) CheckerCounts() (white, black int) {
	white = lo.SumBy(b.Points[:], func(p int) int { return max(0, p) }) + b.Bar[0] + b.BorneOff[0]
	black = lo.SumBy(b.Points[:], func(p int) int { return max(0, -p) }) + b.Bar[1] + b.BorneOff[1]
	return white, black
}

// Validate checks that each side accounts for exactly 15 checkers.
func (b Board) Validate() error {
	white, black := b.CheckerCounts()
	if white != CheckersPerSide || black != CheckersPerSide {
		return fmt.Errorf("%w: white=%d black=%d", ErrCheckerCount, white, black)
	}
	return nil
}

// Occupied returns the 1-based points holding at least one checker of side.
func (b Board) Occupied(side Side) []int {
	points := make([]int, 0, 15)
	for i, v := range b.Points {
		if (side == White && v > 0) || (side == Black && v < 0) {
			points = append(points, i+1)
		}
	}
	return points
}

// PositionID is the gnubg position ID of b with white as player 0.
func (b Board) PositionID() string {
	return positionid.Encode(b.Points, b.Bar)
}

// BoardFromPositionID decodes a gnubg position ID. A trailing ":matchID" is
// ignored. Checkers missing from a side are counted as borne off.
func BoardFromPositionID(id string) (Board, error) {
	id, _, _ = strings.Cut(id, ":")
	pb, err := positionid.Decode(id)
	if err != nil {
		return Board{}, err
	}
	points, bar := pb.Points()
	onBoard := pb.Checkers()
	return Board{
		Points:   points,
		Bar:      bar,
		BorneOff: [2]int{CheckersPerSide - onBoard[0], CheckersPerSide - onBoard[1]},
	}, nil
}

// StartingPosition returns the standard backgammon starting position.
// White moves from 24 towards 1, black from 1 towards 24.
func StartingPosition() Board {
	var b Board
	b.Points[23] = 2
	b.Points[12] = 5
	b.Points[7] = 3
	b.Points[5] = 5

	b.Points[0] = -2
	b.Points[11] = -5
	b.Points[16] = -3
	b.Points[18] = -5
	return b
}

// Move is a single checker movement. From is 0 for the bar in the engine's
// frame. To has no meaning for a bear-off. Die is the pip count used; a value
// above 6 means a two-dice compound that could not be split, in which case
// Unresolved is set.
type Move struct {
	From       int
	To         int
	Die        int
	Hit        bool
	BearOff    bool
	Unresolved bool
}

// Play is an ordered list of moves and the notation it was read from.
type Play struct {
	Moves    []Move
	Notation string
}

// Resolved reports whether every move in the play uses a single die.
func (p Play) Resolved() bool {
	return !lo.SomeBy(p.Moves, func(m Move) bool { return m.Unresolved })
}

// RankedPlay is one candidate from the engine's hint list.
type RankedPlay struct {
	Rank             int
	Play             Play
	Equity           float64
	WinProbability   float64
	EquityDifference float64
}

// EvaluationResult is the answer to a checker-play request.
type EvaluationResult struct {
	BestPlay   Play
	BestEquity float64
	AllPlays   []RankedPlay
}

// CubeRecommendation is the recommended cube action.
type CubeRecommendation string

const (
	NoDouble   CubeRecommendation = "no_double"
	DoubleTake CubeRecommendation = "double_take"
	DoublePass CubeRecommendation = "double_pass"
)

// CubeOwner identifies who holds the cube.
type CubeOwner string

const (
	CubeCentered CubeOwner = "centered"
	CubeWhite    CubeOwner = "white"
	CubeBlack    CubeOwner = "black"
)

// ParseCubeOwner maps the wire tags for cube ownership.
func ParseCubeOwner(s string) (CubeOwner, error) {
	switch CubeOwner(s) {
	case CubeCentered, "":
		return CubeCentered, nil
	case CubeWhite, CubeBlack:
		return CubeOwner(s), nil
	}
	return CubeCentered, fmt.Errorf("unknown cube owner %q", s)
}

// CubeState is the cube value and its owner.
type CubeState struct {
	Value int
	Owner CubeOwner
}

// CubeResult is the answer to a cube-decision request.
type CubeResult struct {
	Recommendation   CubeRecommendation
	NoDoubleEquity   float64
	DoubleTakeEquity float64
	DoublePassEquity float64
	ProperCubeAction string
	WinProbability   float64
	GammonThreat     float64
}

// EvaluateRequest asks for the ranked checker plays of a position.
type EvaluateRequest struct {
	Board  Board
	Dice   Dice
	Player Side
	Plies  int
}

// CubeRequest asks for the cube decision of a position.
type CubeRequest struct {
	Board  Board
	Cube   CubeState
	Player Side
	Plies  int
}

// Validate checks the board and dice before any engine interaction.
func (r EvaluateRequest) Validate() error {
	if err := r.Board.Validate(); err != nil {
		return err
	}
	if !r.Dice.Valid() {
		return fmt.Errorf("%w: %d %d", ErrInvalidDice, r.Dice[0], r.Dice[1])
	}
	return nil
}

// Validate checks the board before any engine interaction.
func (r CubeRequest) Validate() error {
	return r.Board.Validate()
}
