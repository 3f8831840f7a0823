package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/gnubgserver/pkg/engine"
)

var (
	errNotReady = errors.New("Engine not ready")
	errBusy     = errors.New("server busy")
)

// Status reports what the health endpoint shows about the engine process.
type Status interface {
	Version() string
}

// cacheReporter is implemented by evaluators that cache answers.
type cacheReporter interface {
	CacheStats() engine.CacheStats
}

// evaluatorBox lets Handlers swap the evaluator atomically whatever its
// concrete type.
type evaluatorBox struct {
	engine.Evaluator
}

// Handlers holds the request handlers shared by HTTP, WebSocket and NATS.
type Handlers struct {
	evaluator    atomic.Pointer[evaluatorBox]
	status       Status
	pool         *RequestPool
	defaultPlies int
	logger       zerolog.Logger
}

// NewHandlers creates Handlers that answer 503 until SetEvaluator is called.
// pool may be nil.
func NewHandlers(status Status, pool *RequestPool, defaultPlies int) *Handlers {
	return &Handlers{
		status:       status,
		pool:         pool,
		defaultPlies: defaultPlies,
		logger:       log.With().Str("component", "api").Logger(),
	}
}

// SetEvaluator installs the evaluator once the engine has started.
func (h *Handlers) SetEvaluator(ev engine.Evaluator) {
	h.evaluator.Store(&evaluatorBox{Evaluator: ev})
}

func (h *Handlers) current() engine.Evaluator {
	if box := h.evaluator.Load(); box != nil {
		return box.Evaluator
	}
	return nil
}

// acquire takes a pool slot and returns its release function.
func (h *Handlers) acquire(ctx context.Context) (func(), error) {
	if h.pool == nil {
		return func() {}, nil
	}
	if err := h.pool.Acquire(ctx); err != nil {
		return nil, errBusy
	}
	return h.pool.Release, nil
}

// evaluate validates and answers a checker-play request.
func (h *Handlers) evaluate(ctx context.Context, r *EvaluateRequest) (*EvaluateResponse, error) {
	req, err := r.toEngine(h.defaultPlies)
	if err != nil {
		return nil, err
	}
	ev := h.current()
	if ev == nil {
		return nil, errNotReady
	}
	release, err := h.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return EvalToResponse(ev.Evaluate(ctx, req)), nil
}

// cube validates and answers a cube-decision request.
func (h *Handlers) cube(ctx context.Context, r *CubeRequest) (*CubeResponse, error) {
	req, err := r.toEngine(h.defaultPlies)
	if err != nil {
		return nil, err
	}
	ev := h.current()
	if ev == nil {
		return nil, errNotReady
	}
	release, err := h.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return CubeToResponse(ev.EvaluateCube(ctx, req)), nil
}

// errorStatus maps a handler error to its HTTP status and body.
func errorStatus(err error) (int, ErrorResponse) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest, ErrorResponse{Error: re.Msg, Code: re.Code}
	case errors.Is(err, errNotReady):
		return http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "NOT_READY"}
	case errors.Is(err, errBusy):
		return http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "SERVER_BUSY"}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"}
}

func writeError(c echo.Context, err error) error {
	status, body := errorStatus(err)
	return c.JSON(status, body)
}

// Health handles GET /health
func (h *Handlers) Health(c echo.Context) error {
	ev := h.current()
	ready := ev != nil
	resp := HealthResponse{
		Status:      "starting",
		EngineReady: ready,
	}
	if ready {
		resp.Status = "ok"
	}
	if h.status != nil {
		resp.GnubgVersion = h.status.Version()
	}

	// Include pool stats if available
	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	if cr, ok := ev.(cacheReporter); ok {
		cs := cr.CacheStats()
		resp.Cache = &CacheInfo{Lookups: cs.Lookups, Hits: cs.Hits, HitRate: cs.HitRate()}
	}

	return c.JSON(http.StatusOK, resp)
}

// Evaluate handles POST /evaluate
func (h *Handlers) Evaluate(c echo.Context) error {
	var req EvaluateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON", Code: "INVALID_JSON"})
	}

	resp, err := h.evaluate(c.Request().Context(), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Cube handles POST /cube
func (h *Handlers) Cube(c echo.Context) error {
	var req CubeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON", Code: "INVALID_JSON"})
	}

	resp, err := h.cube(c.Request().Context(), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
