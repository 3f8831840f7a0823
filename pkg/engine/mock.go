package engine

import (
	"context"
	"encoding/binary"
	"sync"

	"lukechampine.com/frand"
)

// rng is the subset of frand used by Mock.
type rng interface {
	Intn(n int) int
	Float64() float64
}

// globalRNG forwards to frand's package-level generator, which is safe for
// concurrent use.
type globalRNG struct{}

func (globalRNG) Intn(n int) int   { return frand.Intn(n) }
func (globalRNG) Float64() float64 { return frand.Float64() }

// lockedRNG serializes access to a seeded generator.
type lockedRNG struct {
	mu  sync.Mutex
	rng *frand.RNG
}

func (l *lockedRNG) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}

func (l *lockedRNG) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

// Mock produces plausible but synthetic results. It stands in for gnubg when
// the binary is missing or a request cannot be evaluated.
type Mock struct {
	rng rng
}

// NewMock returns a Mock backed by a cryptographically seeded generator.
func NewMock() *Mock {
	return &Mock{rng: globalRNG{}}
}

// NewSeededMock returns a deterministic Mock.
func NewSeededMock(seed uint64) *Mock {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	return &Mock{rng: &lockedRNG{rng: frand.NewCustom(key[:], 1024, 12)}}
}

func (m *Mock) uniform(lo, hi float64) float64 {
	return lo + m.rng.Float64()*(hi-lo)
}

// Evaluate moves a random checker of the player on roll by each die and
// offers one weaker alternative.
func (m *Mock) Evaluate(_ context.Context, req EvaluateRequest) EvaluationResult {
	direction := -1
	if req.Player == Black {
		direction = 1
	}
	d1, d2 := req.Dice[0], req.Dice[1]

	var plays []RankedPlay
	occupied := req.Board.Occupied(req.Player)
	if len(occupied) > 0 {
		src := occupied[m.rng.Intn(len(occupied))]
		var moves []Move
		for _, d := range []int{d1, d2} {
			if dest := src + d*direction; onBoard(dest) {
				moves = append(moves, Move{From: src, To: dest, Die: d})
			}
		}
		equity := m.uniform(-0.2, 0.5)
		plays = append(plays, RankedPlay{
			Rank:           1,
			Play:           mockPlay(moves),
			Equity:         equity,
			WinProbability: defaultWin,
		})

		if len(occupied) > 1 {
			// pick any other occupied point
			src2 := occupied[m.rng.Intn(len(occupied)-1)]
			if src2 == src {
				src2 = occupied[len(occupied)-1]
			}
			if dest := src2 + d1*direction; onBoard(dest) {
				diff := m.uniform(0.01, 0.1)
				plays = append(plays, RankedPlay{
					Rank:             2,
					Play:             mockPlay([]Move{{From: src2, To: dest, Die: d1}}),
					Equity:           equity - diff,
					WinProbability:   defaultWin,
					EquityDifference: diff,
				})
			}
		}
	}

	if len(plays) == 0 {
		plays = append(plays, RankedPlay{Rank: 1, Play: Play{Notation: noMove}, WinProbability: defaultWin})
	}
	return EvaluationResult{
		BestPlay:   plays[0].Play,
		BestEquity: plays[0].Equity,
		AllPlays:   plays,
	}
}

// EvaluateCube returns a random cube decision that never recommends a pass.
func (m *Mock) EvaluateCube(_ context.Context, _ CubeRequest) CubeResult {
	eq := m.uniform(-0.3, 0.8)
	res := CubeResult{
		Recommendation:   NoDouble,
		NoDoubleEquity:   eq,
		DoubleTakeEquity: eq + 0.1,
		DoublePassEquity: 1,
		ProperCubeAction: "No double",
		WinProbability:   0.5 + eq*0.3,
		GammonThreat:     max(0, eq*0.2),
	}
	if eq >= 0.4 {
		res.Recommendation = DoubleTake
		res.ProperCubeAction = "Double, take"
	}
	return res
}

func mockPlay(moves []Move) Play {
	if len(moves) == 0 {
		return Play{Notation: noMove}
	}
	return Play{Moves: moves, Notation: FormatPlay(moves)}
}

func onBoard(p int) bool {
	return p >= 1 && p <= 24
}
