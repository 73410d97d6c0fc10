package tablebase

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/hailam/chesscore/internal/board"
)

// lookup holds what is known about one position. Failed probes are
// cached too so a missing position is not asked for again.
type lookup struct {
	wdl      WDL
	dtz      int
	wdlKnown bool
	dtzKnown bool
	wdlOK    bool
	dtzOK    bool
}

// CachedProber wraps another prober with a bounded concurrent cache keyed
// by the position hash.
type CachedProber struct {
	inner Prober
	cache *ristretto.Cache[uint64, lookup]
}

// NewCachedProber creates a cached prober holding up to size positions.
func NewCachedProber(inner Prober, size int64) (*CachedProber, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, lookup]{
		NumCounters: max(size*10, 100),
		MaxCost:     max(size, 10),
		BufferItems: 64,
		Metrics:     true,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create tablebase cache: %w", err)
	}
	return &CachedProber{inner: inner, cache: cache}, nil
}

func (cp *CachedProber) ProbeWDL(pos *board.Position) (WDL, bool) {
	key := pos.Hash()
	l, _ := cp.cache.Get(key)
	if !l.wdlKnown {
		l.wdl, l.wdlOK = cp.inner.ProbeWDL(pos)
		l.wdlKnown = true
		cp.cache.Set(key, l, 1)
	}
	return l.wdl, l.wdlOK
}

func (cp *CachedProber) ProbeDTZ(pos *board.Position) (int, bool) {
	key := pos.Hash()
	l, _ := cp.cache.Get(key)
	if !l.dtzKnown {
		l.dtz, l.dtzOK = cp.inner.ProbeDTZ(pos)
		l.dtzKnown = true
		cp.cache.Set(key, l, 1)
	}
	return l.dtz, l.dtzOK
}

func (cp *CachedProber) MaxPieces() int {
	return cp.inner.MaxPieces()
}

// HitRate returns the cache hit ratio in [0, 1].
func (cp *CachedProber) HitRate() float64 {
	return cp.cache.Metrics.Ratio()
}

// Wait blocks until pending cache writes are visible to readers.
func (cp *CachedProber) Wait() {
	cp.cache.Wait()
}

// Clear drops every cached entry.
func (cp *CachedProber) Clear() {
	cp.cache.Clear()
}

// Close releases the cache goroutines.
func (cp *CachedProber) Close() {
	cp.cache.Close()
}
