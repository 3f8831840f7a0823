package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const (
	// barOrigin is where a checker on the bar starts in the mover's own
	// frame; entering on point p uses a die of barOrigin-p.
	barOrigin = 25
	maxDie    = 6
	// a double moves at most four checkers
	maxRepeat = 4
)

// ParseNotation reads gnubg move notation such as "bar/22* 13/7(2) 6/off"
// into structured moves.
//
// Each whitespace-separated token is read as
//
//	token   = path [ "(" count ")" ]
//	path    = point "/" point { "/" point }
//	point   = ( "bar" | "off" | digits ) [ "*" ]
//
// Every adjacent pair in a path is one move. A "*" marks a hit on the move
// that ends on that point. A repeat count emits each move that many times.
// Moves spanning both dice are split so every die is in [1,6]; those that
// cannot be split are kept and flagged Unresolved.
func ParseNotation(text string) (Play, error) {
	var moves []Move
	for _, tok := range strings.Fields(text) {
		tm, err := parseToken(tok)
		if err != nil {
			return Play{}, err
		}
		moves = append(moves, tm...)
	}
	return Play{Moves: lo.FlatMap(moves, func(m Move, _ int) []Move { return splitCompound(m) }), Notation: text}, nil
}

func parseToken(tok string) ([]Move, error) {
	path, count, err := splitRepeat(tok)
	if err != nil {
		return nil, err
	}

	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		// not a move; gnubg pads hint lines with other words
		return nil, nil
	}

	moves := make([]Move, 0, (len(segments)-1)*count)
	for i := 0; i+1 < len(segments); i++ {
		m, err := parseStep(segments[i], segments[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, tok)
		}
		for n := 0; n < count; n++ {
			moves = append(moves, m)
		}
	}
	return moves, nil
}

// splitRepeat strips a trailing "(N)" and returns N, defaulting to 1. N must
// be in [1, maxRepeat].
func splitRepeat(tok string) (string, int, error) {
	open := strings.LastIndexByte(tok, '(')
	if open < 0 || !strings.HasSuffix(tok, ")") {
		return tok, 1, nil
	}
	count, err := strconv.Atoi(tok[open+1 : len(tok)-1])
	if err != nil || count < 1 || count > maxRepeat {
		return "", 0, fmt.Errorf("%w: bad repeat count in %q", ErrNotation, tok)
	}
	return tok[:open], count, nil
}

func parseStep(fromSeg, toSeg string) (Move, error) {
	var m Move
	m.Hit = strings.Contains(toSeg, "*")

	from := strings.ToLower(strings.ReplaceAll(fromSeg, "*", ""))
	to := strings.ToLower(strings.ReplaceAll(toSeg, "*", ""))

	origin := 0
	if from == "bar" {
		origin = barOrigin
	} else {
		p, err := strconv.Atoi(from)
		if err != nil {
			return m, ErrNotation
		}
		m.From = p
		origin = p
	}

	if to == "off" {
		m.BearOff = true
		m.Die = origin
		return m, nil
	}

	p, err := strconv.Atoi(to)
	if err != nil {
		return m, ErrNotation
	}
	m.To = p
	m.Die = abs(origin - p)
	return m, nil
}

// splitCompound breaks a move that used both dice into two single-die moves.
// The first part uses the smallest die that leaves a legal second die; only
// the final part keeps the hit and bear-off flags.
func splitCompound(m Move) []Move {
	total := m.Die
	if total <= maxDie {
		return []Move{m}
	}
	if total > 2*maxDie {
		m.Unresolved = true
		return []Move{m}
	}

	d1 := total - maxDie
	origin := m.From
	if origin == 0 {
		origin = barOrigin
	}
	mid := origin - d1
	if !m.BearOff && m.To > origin {
		mid = origin + d1
	}

	return []Move{
		{From: m.From, To: mid, Die: d1},
		{From: mid, To: m.To, Die: total - d1, Hit: m.Hit, BearOff: m.BearOff},
	}
}

// FormatPlay renders moves back into gnubg notation, one token per move.
func FormatPlay(moves []Move) string {
	return strings.Join(lo.Map(moves, func(m Move, _ int) string { return m.String() }), " ")
}

func (m Move) String() string {
	var b strings.Builder
	if m.From == 0 || m.From == barOrigin {
		b.WriteString("bar")
	} else {
		b.WriteString(strconv.Itoa(m.From))
	}
	b.WriteByte('/')
	if m.BearOff {
		b.WriteString("off")
	} else {
		b.WriteString(strconv.Itoa(m.To))
	}
	if m.Hit {
		b.WriteByte('*')
	}
	return b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
