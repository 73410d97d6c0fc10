package engine

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hailam/chesscore/internal/board"
)

// Info is reported after every completed iteration of the main worker.
type Info struct {
	Depth    int
	SelDepth int
	Score    int
	Elapsed  time.Duration
	Nodes    uint64
	NPS      uint64
	HashFull int // permille
	PV       []board.Move
}

// Result is the outcome of a search: the best completed iteration.
type Result struct {
	Move     board.Move
	Score    int
	Depth    int
	SelDepth int
	PV       []board.Move
	Nodes    uint64
	Elapsed  time.Duration
}

// Ponder returns the expected reply, or NoMove.
func (r Result) Ponder() board.Move {
	if len(r.PV) < 2 {
		return board.NoMove
	}
	return r.PV[1]
}

func nps(nodes uint64, elapsed time.Duration) uint64 {
	ms := uint64(elapsed.Milliseconds())
	if ms == 0 {
		return 0
	}
	return nodes * 1000 / ms
}

// PVString joins a line in coordinate notation.
func PVString(pv []board.Move) string {
	return strings.Join(lo.Map(pv, func(m board.Move, _ int) string { return m.String() }), " ")
}
