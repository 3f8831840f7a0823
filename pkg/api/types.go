// Package api provides the HTTP/JSON, WebSocket and NATS front ends for the
// gnubg evaluation engine.
package api

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/yourusername/gnubgserver/pkg/engine"
)

// ============================================================================
// Request Types
// ============================================================================

// EvaluateRequest is the request body for checker-play evaluation.
type EvaluateRequest struct {
	Points   []int  `json:"points"`    // 24 signed counts, positive = white
	Bar      []int  `json:"bar"`       // [white, black], default [0, 0]
	BorneOff []int  `json:"borne_off"` // [white, black], default [0, 0]
	Dice     []int  `json:"dice"`      // [die1, die2]
	Player   string `json:"player"`    // "white" (default) or "black"
	Ply      *int   `json:"ply"`       // Search depth 0-4, default from config
}

// CubeRequest is the request body for cube decision analysis.
type CubeRequest struct {
	Points    []int  `json:"points"`
	Bar       []int  `json:"bar"`
	BorneOff  []int  `json:"borne_off"`
	CubeValue int    `json:"cube_value"` // default 1
	CubeOwner string `json:"cube_owner"` // "centered" (default), "white" or "black"
	Player    string `json:"player"`
	Ply       *int   `json:"ply"`
}

// ============================================================================
// Response Types
// ============================================================================

// MoveResponse is a single checker movement.
type MoveResponse struct {
	FromPoint int  `json:"from_point"` // 0 or 25 = bar
	ToPoint   int  `json:"to_point"`
	DieUsed   int  `json:"die_used"`
	IsHit     bool `json:"is_hit"`
	IsBearOff bool `json:"is_bear_off"`
}

// PlayResponse is an ordered list of moves and its notation.
type PlayResponse struct {
	Moves    []MoveResponse `json:"moves"`
	Notation string         `json:"notation"`
}

// RankedPlayResponse is one candidate play.
type RankedPlayResponse struct {
	Rank             int          `json:"rank"`
	Play             PlayResponse `json:"play"`
	Equity           float64      `json:"equity"`
	WinProbability   float64      `json:"win_probability"`
	EquityDifference float64      `json:"equity_difference"`
}

// EvaluateResponse is the response for checker-play evaluation.
type EvaluateResponse struct {
	BestPlay   PlayResponse         `json:"best_play"`
	BestEquity float64              `json:"best_equity"`
	AllPlays   []RankedPlayResponse `json:"all_plays"`
}

// CubeResponse is the response for cube decision analysis.
type CubeResponse struct {
	Recommendation   string  `json:"recommendation"` // "no_double", "double_take" or "double_pass"
	NoDoubleEquity   float64 `json:"no_double_equity"`
	DoubleTakeEquity float64 `json:"double_take_equity"`
	DoublePassEquity float64 `json:"double_pass_equity"`
	ProperCubeAction string  `json:"proper_cube_action"`
	WinProbability   float64 `json:"win_probability"`
	GammonThreat     float64 `json:"gammon_threat"`
}

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`          // Error message
	Code  string `json:"code,omitempty"` // Error code
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status       string     `json:"status"`         // "ok" or "starting"
	GnubgVersion string     `json:"gnubg_version"`  // gnubg version, "mock" without gnubg
	EngineReady  bool       `json:"engine_ready"`   // Whether requests can be served
	Pool         *PoolStats `json:"pool,omitempty"` // Request pool statistics
	Cache        *CacheInfo `json:"cache,omitempty"`
}

// CacheInfo reports the engine's answer cache.
type CacheInfo struct {
	Lookups uint64  `json:"lookups"`
	Hits    uint64  `json:"hits"`
	HitRate float64 `json:"hit_rate"` // percent
}

// ============================================================================
// Validation
// ============================================================================

// requestError is a validation failure reported as 400.
type requestError struct {
	Code string
	Msg  string
}

func (e *requestError) Error() string { return e.Msg }

func badRequest(code, format string, args ...any) *requestError {
	return &requestError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func parseBoard(points, bar, borneOff []int) (engine.Board, error) {
	var b engine.Board
	if len(points) != 24 {
		return b, badRequest("INVALID_POINTS", "points must have 24 entries, got %d", len(points))
	}
	copy(b.Points[:], points)

	for _, f := range []struct {
		name string
		in   []int
		out  *[2]int
	}{
		{"bar", bar, &b.Bar},
		{"borne_off", borneOff, &b.BorneOff},
	} {
		if f.in == nil {
			continue
		}
		if len(f.in) != 2 {
			return b, badRequest("INVALID_BOARD", "%s must have 2 entries, got %d", f.name, len(f.in))
		}
		if f.in[0] < 0 || f.in[1] < 0 {
			return b, badRequest("INVALID_BOARD", "%s must not be negative", f.name)
		}
		copy(f.out[:], f.in)
	}
	return b, nil
}

func parsePlies(ply *int, def int) (int, error) {
	if ply == nil {
		return def, nil
	}
	if !engine.ValidPlies(*ply) {
		return 0, badRequest("INVALID_PLY", "ply must be 0-%d, got %d", engine.MaxPlies, *ply)
	}
	return *ply, nil
}

func parsePlayer(s string) (engine.Side, error) {
	side, err := engine.ParseSide(s)
	if err != nil {
		return side, badRequest("INVALID_PLAYER", "%v", err)
	}
	return side, nil
}

// toEngine validates the request shape. Checker counts are left to the
// engine, which answers impossible boards with a mock evaluation.
func (r *EvaluateRequest) toEngine(defaultPlies int) (engine.EvaluateRequest, error) {
	var req engine.EvaluateRequest
	board, err := parseBoard(r.Points, r.Bar, r.BorneOff)
	if err != nil {
		return req, err
	}
	if len(r.Dice) != 2 {
		return req, badRequest("INVALID_DICE", "dice must have 2 entries, got %d", len(r.Dice))
	}
	dice := engine.Dice{r.Dice[0], r.Dice[1]}
	if !dice.Valid() {
		return req, badRequest("INVALID_DICE", "dice must be 1-6, got %v", r.Dice)
	}
	player, err := parsePlayer(r.Player)
	if err != nil {
		return req, err
	}
	plies, err := parsePlies(r.Ply, defaultPlies)
	if err != nil {
		return req, err
	}
	return engine.EvaluateRequest{Board: board, Dice: dice, Player: player, Plies: plies}, nil
}

func (r *CubeRequest) toEngine(defaultPlies int) (engine.CubeRequest, error) {
	var req engine.CubeRequest
	board, err := parseBoard(r.Points, r.Bar, r.BorneOff)
	if err != nil {
		return req, err
	}
	value := r.CubeValue
	if value == 0 {
		value = 1
	}
	if !engine.ValidCubeValue(value) {
		return req, badRequest("INVALID_CUBE", "cube_value must be a power of two, got %d", r.CubeValue)
	}
	owner, err := engine.ParseCubeOwner(r.CubeOwner)
	if err != nil {
		return req, badRequest("INVALID_CUBE", "%v", err)
	}
	player, err := parsePlayer(r.Player)
	if err != nil {
		return req, err
	}
	plies, err := parsePlies(r.Ply, defaultPlies)
	if err != nil {
		return req, err
	}
	return engine.CubeRequest{
		Board:  board,
		Cube:   engine.CubeState{Value: value, Owner: owner},
		Player: player,
		Plies:  plies,
	}, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

// PlayToResponse converts an engine Play to its JSON form.
func PlayToResponse(p engine.Play) PlayResponse {
	return PlayResponse{
		Moves: lo.Map(p.Moves, func(m engine.Move, _ int) MoveResponse {
			return MoveResponse{
				FromPoint: m.From,
				ToPoint:   m.To,
				DieUsed:   m.Die,
				IsHit:     m.Hit,
				IsBearOff: m.BearOff,
			}
		}),
		Notation: p.Notation,
	}
}

// EvalToResponse converts an engine EvaluationResult to an API response.
func EvalToResponse(res engine.EvaluationResult) *EvaluateResponse {
	return &EvaluateResponse{
		BestPlay:   PlayToResponse(res.BestPlay),
		BestEquity: res.BestEquity,
		AllPlays: lo.Map(res.AllPlays, func(rp engine.RankedPlay, _ int) RankedPlayResponse {
			return RankedPlayResponse{
				Rank:             rp.Rank,
				Play:             PlayToResponse(rp.Play),
				Equity:           rp.Equity,
				WinProbability:   rp.WinProbability,
				EquityDifference: rp.EquityDifference,
			}
		}),
	}
}

// CubeToResponse converts an engine CubeResult to an API response.
func CubeToResponse(res engine.CubeResult) *CubeResponse {
	return &CubeResponse{
		Recommendation:   string(res.Recommendation),
		NoDoubleEquity:   res.NoDoubleEquity,
		DoubleTakeEquity: res.DoubleTakeEquity,
		DoublePassEquity: res.DoublePassEquity,
		ProperCubeAction: res.ProperCubeAction,
		WinProbability:   res.WinProbability,
		GammonThreat:     res.GammonThreat,
	}
}
