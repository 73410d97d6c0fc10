// Package tablebase defines the endgame tablebase collaborator used by the
// search, together with a remote prober and a caching decorator.
package tablebase

import (
	"github.com/hailam/chesscore/internal/board"
)

// WDL is a game-theoretic outcome from the side to move's point of view.
type WDL int8

const (
	WDLLoss        WDL = -2
	WDLBlessedLoss WDL = -1 // loss that the fifty-move rule turns into a draw
	WDLDraw        WDL = 0
	WDLCursedWin   WDL = 1 // win that the fifty-move rule turns into a draw
	WDLWin         WDL = 2
)

func (w WDL) String() string {
	switch w {
	case WDLLoss:
		return "loss"
	case WDLBlessedLoss:
		return "blessed-loss"
	case WDLDraw:
		return "draw"
	case WDLCursedWin:
		return "cursed-win"
	case WDLWin:
		return "win"
	}
	return "unknown"
}

// Prober answers tablebase queries. Implementations must be safe for
// concurrent use by every search worker. A false ok means the position is
// not covered or the lookup failed; callers treat both the same way.
type Prober interface {
	// ProbeWDL returns the outcome with best play.
	ProbeWDL(pos *board.Position) (WDL, bool)
	// ProbeDTZ returns the distance in plies to the next zeroing move with
	// best play, negative when the side to move is losing.
	ProbeDTZ(pos *board.Position) (int, bool)
	// MaxPieces is the largest piece count, kings included, it can answer.
	MaxPieces() int
}

// NoopProber never finds anything. Use it when no tablebase is configured.
type NoopProber struct{}

func (NoopProber) ProbeWDL(*board.Position) (WDL, bool) { return WDLDraw, false }
func (NoopProber) ProbeDTZ(*board.Position) (int, bool) { return 0, false }
func (NoopProber) MaxPieces() int                       { return 0 }

// CountPieces returns the total number of pieces on the board.
func CountPieces(pos *board.Position) int {
	return pos.AllOccupied.PopCount()
}
