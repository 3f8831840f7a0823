package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Transport sends one command to gnubg and returns the framed reply.
type Transport interface {
	Send(cmd string, timeout time.Duration) (string, error)
}

// Evaluator answers checker-play and cube requests. Implementations never
// fail: degraded answers are still well-formed results.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluateRequest) EvaluationResult
	EvaluateCube(ctx context.Context, req CubeRequest) CubeResult
}

var (
	_ Evaluator = (*Engine)(nil)
	_ Evaluator = (*Mock)(nil)
)

// Options configure Engine.
type Options struct {
	CommandTimeout time.Duration
	HintTimeout    time.Duration
	// CacheSize is the number of answers remembered per request kind;
	// 0 disables the cache.
	CacheSize int
}

// DefaultOptions returns the timeouts gnubg needs at 2-ply on modest hardware.
func DefaultOptions() Options {
	return Options{
		CommandTimeout: 10 * time.Second,
		HintTimeout:    30 * time.Second,
		CacheSize:      4096,
	}
}

// Engine drives a gnubg process through a Transport. Each request runs its
// whole command sequence under one lock, so the search depth, position, turn
// and dice of concurrent requests never mix. Any failure is answered by the
// fallback Evaluator.
type Engine struct {
	transport Transport
	fallback  Evaluator
	opts      Options
	// weight 1 semaphore: waiters are served in arrival order
	sem       *semaphore.Weighted
	evalCache *resultCache[EvaluationResult]
	cubeCache *resultCache[CubeResult]
	logger    zerolog.Logger
}

// NewEngine creates an Engine. Zero timeouts in opts take their defaults.
func NewEngine(t Transport, fallback Evaluator, opts Options) *Engine {
	def := DefaultOptions()
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = def.CommandTimeout
	}
	if opts.HintTimeout <= 0 {
		opts.HintTimeout = def.HintTimeout
	}
	return &Engine{
		transport: t,
		fallback:  fallback,
		opts:      opts,
		sem:       semaphore.NewWeighted(1),
		evalCache: newResultCache[EvaluationResult](opts.CacheSize),
		cubeCache: newResultCache[CubeResult](opts.CacheSize),
		logger:    log.With().Str("component", "engine").Logger(),
	}
}

// Evaluate returns the ranked plays for the player on roll.
func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) EvaluationResult {
	if err := req.Validate(); err != nil {
		e.logger.Warn().Err(err).Msg("rejecting request, using mock evaluation")
		return e.fallback.Evaluate(ctx, req)
	}
	key := evaluateKey(req)
	if res, ok := e.evalCache.Get(key); ok {
		return res.clone()
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.logger.Warn().Err(err).Msg("gave up waiting for engine, using mock evaluation")
		return e.fallback.Evaluate(ctx, req)
	}
	defer e.sem.Release(1)

	res, err := e.evaluate(req)
	if err != nil {
		e.logger.Warn().Err(err).Str("player", req.Player.String()).Msg("evaluation failed, using mock evaluation")
		return e.fallback.Evaluate(ctx, req)
	}
	e.evalCache.Add(key, res.clone())
	return res
}

func (e *Engine) evaluate(req EvaluateRequest) (EvaluationResult, error) {
	if err := e.send(fmt.Sprintf("set evaluation chequer eval plies %d", req.Plies)); err != nil {
		return EvaluationResult{}, err
	}
	if err := e.loadPosition(req.Board); err != nil {
		return EvaluationResult{}, err
	}
	if err := e.send(fmt.Sprintf("set turn %d", req.Player.Turn())); err != nil {
		return EvaluationResult{}, err
	}
	if err := e.send(fmt.Sprintf("set dice %d %d", req.Dice[0], req.Dice[1])); err != nil {
		return EvaluationResult{}, err
	}

	out, err := e.transport.Send("hint", e.opts.HintTimeout)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("hint: %w", err)
	}
	if !strings.Contains(out, equityMarker) {
		return EvaluationResult{}, ErrNoEquity
	}

	res, err := ParseHint(out)
	if err != nil {
		return EvaluationResult{}, err
	}
	if req.Player == Black {
		res = ToFixedFrame(res)
	}
	return res, nil
}

// EvaluateCube returns the cube decision for the player on roll.
func (e *Engine) EvaluateCube(ctx context.Context, req CubeRequest) CubeResult {
	if err := req.Validate(); err != nil {
		e.logger.Warn().Err(err).Msg("rejecting request, using mock cube decision")
		return e.fallback.EvaluateCube(ctx, req)
	}
	key := cubeKey(req)
	if res, ok := e.cubeCache.Get(key); ok {
		return res
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.logger.Warn().Err(err).Msg("gave up waiting for engine, using mock cube decision")
		return e.fallback.EvaluateCube(ctx, req)
	}
	defer e.sem.Release(1)

	res, err := e.evaluateCube(req)
	if err != nil {
		e.logger.Warn().Err(err).Str("player", req.Player.String()).Msg("cube evaluation failed, using mock cube decision")
		return e.fallback.EvaluateCube(ctx, req)
	}
	e.cubeCache.Add(key, res)
	return res
}

// CacheStats returns the combined counters of the answer caches.
func (e *Engine) CacheStats() CacheStats {
	ev, cube := e.evalCache.Stats(), e.cubeCache.Stats()
	return CacheStats{
		Lookups: ev.Lookups + cube.Lookups,
		Hits:    ev.Hits + cube.Hits,
		Adds:    ev.Adds + cube.Adds,
	}
}

func (e *Engine) evaluateCube(req CubeRequest) (CubeResult, error) {
	if err := e.send(fmt.Sprintf("set evaluation cubedecision eval plies %d", req.Plies)); err != nil {
		return CubeResult{}, err
	}
	if err := e.loadPosition(req.Board); err != nil {
		return CubeResult{}, err
	}
	if req.Cube.Value > 1 {
		if err := e.send(fmt.Sprintf("set cube value %d", req.Cube.Value)); err != nil {
			return CubeResult{}, err
		}
	}
	if err := e.send(cubeOwnerCommand(req.Cube.Owner)); err != nil {
		return CubeResult{}, err
	}
	if err := e.send(fmt.Sprintf("set turn %d", req.Player.Turn())); err != nil {
		return CubeResult{}, err
	}

	out, err := e.transport.Send("hint cube", e.opts.HintTimeout)
	if err != nil {
		return CubeResult{}, fmt.Errorf("hint cube: %w", err)
	}
	return ParseCube(out), nil
}

// loadPosition resets the game and loads the board by position ID.
func (e *Engine) loadPosition(b Board) error {
	if err := e.send("new game"); err != nil {
		return err
	}
	id := b.PositionID()
	out, err := e.transport.Send("set board "+id, e.opts.CommandTimeout)
	if err != nil {
		return fmt.Errorf("set board: %w", err)
	}
	if strings.Contains(strings.ToLower(out), "illegal") {
		return fmt.Errorf("%w: %s", ErrIllegalPosition, id)
	}
	return nil
}

func (e *Engine) send(cmd string) error {
	if _, err := e.transport.Send(cmd, e.opts.CommandTimeout); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

func cubeOwnerCommand(owner CubeOwner) string {
	switch owner {
	case CubeWhite:
		return "set cube owner 0"
	case CubeBlack:
		return "set cube owner 1"
	}
	return "set cube centre"
}
