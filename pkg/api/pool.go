package api

import (
	"context"
	"sync/atomic"
)

// RequestPool bounds how many evaluation requests may be in flight at once.
// gnubg answers one request at a time, so everything past the first slot is
// waiting on the engine lock; the pool keeps that queue from growing without
// limit.
type RequestPool struct {
	sem    chan struct{}
	queued int64 // waiting for a slot
	active int64 // holding a slot
	total  int64 // completed
}

// PoolConfig configures the request pool.
type PoolConfig struct {
	MaxInFlight int // Max requests holding a slot (default: 64)
}

const defaultMaxInFlight = 64

// NewRequestPool creates a new request pool with the given configuration.
func NewRequestPool(config PoolConfig) *RequestPool {
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = defaultMaxInFlight
	}
	return &RequestPool{
		sem: make(chan struct{}, config.MaxInFlight),
	}
}

// Acquire takes a slot.
// Returns an error if the context is cancelled while waiting.
func (p *RequestPool) Acquire(ctx context.Context) error {
	atomic.AddInt64(&p.queued, 1)
	defer atomic.AddInt64(&p.queued, -1)

	select {
	case p.sem <- struct{}{}:
		atomic.AddInt64(&p.active, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot.
func (p *RequestPool) Release() {
	atomic.AddInt64(&p.active, -1)
	atomic.AddInt64(&p.total, 1)
	<-p.sem
}

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	Active int64 `json:"active"`
	Queued int64 `json:"queued"`
	Total  int64 `json:"total"`
	Max    int   `json:"max"`
}

// Stats returns current pool statistics.
func (p *RequestPool) Stats() PoolStats {
	return PoolStats{
		Active: atomic.LoadInt64(&p.active),
		Queued: atomic.LoadInt64(&p.queued),
		Total:  atomic.LoadInt64(&p.total),
		Max:    cap(p.sem),
	}
}
