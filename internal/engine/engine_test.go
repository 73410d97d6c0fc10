package engine

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/eval"
)

func newTestEngine() *Engine {
	return NewEngine(testTables, 8)
}

func depthConfig(depth int) SearchConfig {
	cfg := DefaultSearchConfig()
	cfg.MaxDepth = depth
	return cfg
}

func assertLegal(t *testing.T, p *board.Position, m board.Move) {
	t.Helper()
	var ml board.MoveList
	p.GenerateLegal(&ml)
	if !ml.Contains(m) {
		t.Errorf("%v is not a legal move in %s", m, p.FEN())
	}
}

func TestSearchFindsMate(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		moves int
		best  string
	}{
		{"back rank", "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", 1, "a1a8"},
		{"scholar", "r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5Q2/PPPP1PPP/RNB1K1NR w KQkq - 0 1", 1, "f3f7"},
		{"rook roller", "7k/8/8/8/8/8/R7/1R4K1 w - - 0 1", 2, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := mustParse(t, tc.fen)
			res, err := newTestEngine().Search(context.Background(), p, depthConfig(6))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if got := MateMoves(res.Score); got != tc.moves {
				t.Errorf("score %s, want mate %d", ScoreString(res.Score), tc.moves)
			}
			if tc.best != "" && res.Move.String() != tc.best {
				t.Errorf("best move %v, want %s", res.Move, tc.best)
			}
			if len(res.PV) == 0 || res.PV[0] != res.Move {
				t.Errorf("PV %v does not start with %v", res.PV, res.Move)
			}
		})
	}
}

func TestSearchNoLegalMoves(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		score int
	}{
		{"checkmate", "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3", MatedIn(0)},
		{"stalemate", "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := newTestEngine().Search(context.Background(), mustParse(t, tc.fen), depthConfig(4))
			if !errors.Is(err, ErrNoLegalMoves) {
				t.Fatalf("err = %v, want ErrNoLegalMoves", err)
			}
			if res.Move != board.NoMove || res.Score != tc.score {
				t.Errorf("Result = %v %d, want no move and %d", res.Move, res.Score, tc.score)
			}
		})
	}
}

func TestSearchInvalidConfig(t *testing.T) {
	cfg := DefaultSearchConfig()
	cfg.Workers = 0
	if _, err := newTestEngine().Search(context.Background(), board.NewPosition(testTables), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestSearchCancelledStillMoves(t *testing.T) {
	p := board.NewPosition(testTables)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := newTestEngine().Search(ctx, p, DefaultSearchConfig())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertLegal(t, p, res.Move)

	cfg := DefaultSearchConfig()
	cfg.HardTime = 20 * time.Millisecond
	start := time.Now()
	res, err = newTestEngine().Search(context.Background(), p, cfg)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertLegal(t, p, res.Move)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("hard limit of 20ms overrun: %v", elapsed)
	}
}

func TestSearchStop(t *testing.T) {
	e := newTestEngine()
	p := mustParse(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")

	e.OnProgress = func(info Info) {
		if info.Depth >= 2 {
			e.Stop()
		}
	}
	res, err := e.Search(context.Background(), p, DefaultSearchConfig())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertLegal(t, p, res.Move)
	if res.Depth < 2 {
		t.Errorf("Depth = %d, want at least the iteration that triggered the stop", res.Depth)
	}
}

func TestSearchNodeLimit(t *testing.T) {
	p := board.NewPosition(testTables)
	cfg := DefaultSearchConfig()
	cfg.MaxNodes = 5000
	res, err := newTestEngine().Search(context.Background(), p, cfg)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertLegal(t, p, res.Move)
	if res.Nodes > cfg.MaxNodes+2*(nodeFlushMask+1) {
		t.Errorf("Nodes = %d, limit %d", res.Nodes, cfg.MaxNodes)
	}
}

func TestSearchRootMoves(t *testing.T) {
	p := board.NewPosition(testTables)
	only := mustMove(t, p, "a2a3")
	cfg := depthConfig(4)
	cfg.RootMoves = []board.Move{only}

	res, err := newTestEngine().Search(context.Background(), p, cfg)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Move != only {
		t.Errorf("Move = %v, want restricted move %v", res.Move, only)
	}
}

func TestSearchDeterministic(t *testing.T) {
	p := mustParse(t, "r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10")
	a, err := newTestEngine().Search(context.Background(), p, depthConfig(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	b, err := newTestEngine().Search(context.Background(), p, depthConfig(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if a.Move != b.Move || a.Score != b.Score || a.Nodes != b.Nodes {
		t.Errorf("single worker searches differ: %v %d %d vs %v %d %d",
			a.Move, a.Score, a.Nodes, b.Move, b.Score, b.Nodes)
	}
}

func TestSearchInsufficientMaterialIsDraw(t *testing.T) {
	p := mustParse(t, "8/8/8/4k3/8/8/3N4/4K3 w - - 0 1")
	res, err := newTestEngine().Search(context.Background(), p, depthConfig(4))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Score != 0 {
		t.Errorf("Score = %d, want 0", res.Score)
	}
}

func TestSearchLeavesPositionUntouched(t *testing.T) {
	p := mustParse(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	fen, hash := p.FEN(), p.Hash()
	if _, err := newTestEngine().Search(context.Background(), p, depthConfig(3)); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if p.FEN() != fen || p.Hash() != hash {
		t.Errorf("position changed to %s", p.FEN())
	}
}

func TestLazySMP(t *testing.T) {
	e := newTestEngine()
	cfg := depthConfig(6)
	cfg.Workers = 4
	cfg.MaxParallel = 2

	p := mustParse(t, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	res, err := e.Search(context.Background(), p, cfg)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Move.String() != "a1a8" || MateMoves(res.Score) != 1 {
		t.Errorf("Result = %v %s, want a1a8 mate 1", res.Move, ScoreString(res.Score))
	}

	// The same engine keeps working with fewer workers
	cfg.Workers = 2
	p = mustParse(t, "r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10")
	res, err = e.Search(context.Background(), p, cfg)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	assertLegal(t, p, res.Move)
	if len(e.workers) != 2 {
		t.Errorf("workers = %d, want 2", len(e.workers))
	}
}

func TestProgressReports(t *testing.T) {
	e := newTestEngine()
	var depths []int
	e.OnProgress = func(info Info) {
		depths = append(depths, info.Depth)
		if len(info.PV) == 0 {
			t.Errorf("depth %d reported an empty PV", info.Depth)
		}
	}
	res, err := e.Search(context.Background(), board.NewPosition(testTables), depthConfig(4))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(depths) != 4 || depths[3] != res.Depth {
		t.Errorf("reported depths %v, result depth %d", depths, res.Depth)
	}
}

func TestPVIsLegal(t *testing.T) {
	p := mustParse(t, "r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10")
	res, err := newTestEngine().Search(context.Background(), p, depthConfig(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	q := p.Clone()
	for _, m := range res.PV {
		assertLegal(t, q, m)
		q.MakeMove(m)
	}
}

func TestBench(t *testing.T) {
	fens := []string{board.StartFEN, "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1"}
	nodes, _, err := newTestEngine().Bench(context.Background(), fens, 3)
	if err != nil {
		t.Fatalf("Bench: %v", err)
	}
	if nodes == 0 {
		t.Error("Bench searched no nodes")
	}
}

// A null window fail high must survive a full window re-search of the
// same tree.
func TestZeroWindowFailHighHolds(t *testing.T) {
	p := mustParse(t, "4k3/8/8/3q4/8/8/8/3RK3 w - - 0 1")
	var (
		stop  atomic.Bool
		nodes atomic.Uint64
	)
	w := NewWorker(0, NewTranspositionTable(1), eval.New(), &stop, &nodes)
	var ml board.MoveList
	p.GenerateLegal(&ml)
	w.prepare(p, slices.Clone(ml.Slice()), DefaultSearchConfig(), nil)

	const beta = 300
	for depth := 1; depth <= 5; depth++ {
		v := w.search(beta-1, beta, depth, 0, false, board.NoMove)
		if v < beta {
			t.Fatalf("depth %d: null window search = %d, want a fail high at %d", depth, v, beta)
		}
		if full := w.search(-Infinity, Infinity, depth, 0, false, board.NoMove); full < beta {
			t.Errorf("depth %d: full window search = %d after a fail high at %d", depth, full, v)
		}
	}
}
