package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/hailam/chesscore/internal/board"
)

// MaxDepth is the deepest iteration the search will start.
const MaxDepth = MaxPly - 8

// ErrInvalidConfig is wrapped by every SearchConfig validation failure.
var ErrInvalidConfig = errors.New("invalid search config")

// SearchConfig holds the limits and resources of one search. Zero limits
// mean unlimited.
type SearchConfig struct {
	SoftTime time.Duration // no new iteration starts after this
	HardTime time.Duration // running iteration is cancelled at this point
	MaxDepth int
	MaxNodes uint64

	Workers     int // main worker plus helpers
	MaxParallel int // ceiling on helper iterations in flight

	TBProbeLimit int // tablebases are probed at or below this piece count

	RootMoves []board.Move // when non-empty, only these moves are searched
}

// DefaultSearchConfig returns a single-worker unlimited configuration.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MaxDepth:    MaxDepth,
		Workers:     1,
		MaxParallel: 4,
	}
}

// Validate reports the first inconsistent field.
func (c SearchConfig) Validate() error {
	switch {
	case c.SoftTime < 0 || c.HardTime < 0:
		return fmt.Errorf("%w: negative time limit", ErrInvalidConfig)
	case c.HardTime > 0 && c.SoftTime > c.HardTime:
		return fmt.Errorf("%w: soft time %v exceeds hard time %v", ErrInvalidConfig, c.SoftTime, c.HardTime)
	case c.MaxDepth < 0 || c.MaxDepth > MaxDepth:
		return fmt.Errorf("%w: depth %d outside 0..%d", ErrInvalidConfig, c.MaxDepth, MaxDepth)
	case c.Workers < 1:
		return fmt.Errorf("%w: need at least one worker, got %d", ErrInvalidConfig, c.Workers)
	case c.MaxParallel < 1:
		return fmt.Errorf("%w: max parallel %d", ErrInvalidConfig, c.MaxParallel)
	case c.TBProbeLimit < 0:
		return fmt.Errorf("%w: negative tablebase probe limit", ErrInvalidConfig)
	}
	return nil
}

func (c SearchConfig) depthLimit() int {
	if c.MaxDepth == 0 {
		return MaxDepth
	}
	return c.MaxDepth
}
