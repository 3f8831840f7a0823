package engine

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// resultCache is a thread-safe, fixed-size cache of gnubg answers. It is
// two-way associative: each slot holds a primary and a secondary entry, and
// a new entry demotes the primary.
type resultCache[V any] struct {
	nodes    []cacheNode[V]
	hashMask uint64

	// Statistics
	lookups uint64
	hits    uint64
	adds    uint64

	mu sync.Mutex
}

type cacheEntry[V any] struct {
	key   string
	value V
}

type cacheNode[V any] struct {
	primary   cacheEntry[V]
	secondary cacheEntry[V]
}

// newResultCache creates a cache holding up to size entries, rounded up to
// a power of 2. It returns nil when size is not positive; a nil cache
// misses every lookup.
func newResultCache[V any](size int) *resultCache[V] {
	if size <= 0 {
		return nil
	}
	p := 2
	for p < size {
		p <<= 1
	}
	return &resultCache[V]{
		nodes:    make([]cacheNode[V], p/2),
		hashMask: uint64(p/2 - 1),
	}
}

func (c *resultCache[V]) slot(key string) *cacheNode[V] {
	return &c.nodes[xxhash.Sum64String(key)&c.hashMask]
}

// Get returns the value cached under key.
func (c *resultCache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookups++
	node := c.slot(key)
	if node.primary.key == key {
		c.hits++
		return node.primary.value, true
	}
	if node.secondary.key == key {
		c.hits++
		// promote
		node.primary, node.secondary = node.secondary, node.primary
		return node.primary.value, true
	}
	return zero, false
}

// Add stores value under key.
func (c *resultCache[V]) Add(key string, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	node := c.slot(key)
	if node.primary.key != key {
		node.secondary = node.primary
	}
	node.primary = cacheEntry[V]{key: key, value: value}
	c.adds++
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Lookups uint64
	Hits    uint64
	Adds    uint64
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Lookups) * 100
}

func (c *resultCache[V]) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Lookups: c.lookups, Hits: c.hits, Adds: c.adds}
}

// clone copies the move and candidate slices so a cached answer never
// shares backing arrays with a caller. CubeResult holds no slices.
func (r EvaluationResult) clone() EvaluationResult {
	r.BestPlay = r.BestPlay.clone()
	plays := make([]RankedPlay, len(r.AllPlays))
	for i, rp := range r.AllPlays {
		rp.Play = rp.Play.clone()
		plays[i] = rp
	}
	r.AllPlays = plays
	return r
}

func (p Play) clone() Play {
	if p.Moves != nil {
		p.Moves = append([]Move(nil), p.Moves...)
	}
	return p
}

// evaluateKey identifies a checker-play request. An empty key is never
// stored, so all keys carry a prefix.
func evaluateKey(req EvaluateRequest) string {
	return fmt.Sprintf("eval:%s:%s:%d%d:%d",
		req.Board.PositionID(), req.Player, req.Dice[0], req.Dice[1], req.Plies)
}

func cubeKey(req CubeRequest) string {
	return fmt.Sprintf("cube:%s:%s:%d:%s:%d",
		req.Board.PositionID(), req.Player, req.Cube.Value, req.Cube.Owner, req.Plies)
}
