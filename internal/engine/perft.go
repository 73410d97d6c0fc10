package engine

import (
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hailam/chesscore/internal/board"
)

// Perft counts the leaf nodes of the legal move tree depth plies deep.
func Perft(pos *board.Position, depth int) uint64 {
	if depth <= 0 {
		return 1
	}
	var ml board.MoveList
	pos.GenerateLegal(&ml)
	if depth == 1 {
		return uint64(ml.Len())
	}
	var nodes uint64
	for _, m := range ml.Slice() {
		pos.MakeMove(m)
		nodes += Perft(pos, depth-1)
		pos.UnmakeMove()
	}
	return nodes
}

// DivideEntry is the subtree size below one root move.
type DivideEntry struct {
	Move  board.Move
	Nodes uint64
}

// Divide runs Perft below every root move in parallel, one clone of pos
// per goroutine. Entries come back in generation order.
func Divide(ctx context.Context, pos *board.Position, depth int) ([]DivideEntry, error) {
	var ml board.MoveList
	pos.GenerateLegal(&ml)
	moves := slices.Clone(ml.Slice())
	out := make([]DivideEntry, len(moves))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range moves {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := pos.Clone()
			p.MakeMove(m)
			out[i] = DivideEntry{Move: m, Nodes: Perft(p, depth-1)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
