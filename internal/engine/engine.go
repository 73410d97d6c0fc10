package engine

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"lukechampine.com/frand"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/eval"
	"github.com/hailam/chesscore/internal/tablebase"
)

// ErrNoLegalMoves is returned by Search for checkmate and stalemate roots.
var ErrNoLegalMoves = errors.New("no legal moves")

// Engine coordinates one main worker and optional helpers over a shared
// transposition table. Search calls are serialized.
type Engine struct {
	tables       *board.Tables
	tt           *TranspositionTable
	newEvaluator func() Evaluator
	tb           tablebase.Prober

	mu      sync.Mutex
	workers []*Worker
	stop    atomic.Bool

	// OnProgress, when set, receives an Info after every completed
	// iteration of the main worker.
	OnProgress func(Info)
}

// NewEngine creates an engine with a hashMB megabyte transposition table
// and the classical evaluator.
func NewEngine(tables *board.Tables, hashMB int) *Engine {
	return &Engine{
		tables:       tables,
		tt:           NewTranspositionTable(hashMB),
		newEvaluator: func() Evaluator { return eval.New() },
	}
}

// SetEvaluator replaces the evaluator factory. Each worker gets its own
// instance.
func (e *Engine) SetEvaluator(factory func() Evaluator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newEvaluator = factory
	e.workers = nil
}

// SetTablebase installs a tablebase prober, or removes it when p is nil.
func (e *Engine) SetTablebase(p tablebase.Prober) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tb = p
}

// ResizeHash reallocates the transposition table, losing its contents.
func (e *Engine) ResizeHash(mb int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tt.Resize(mb)
}

// ClearHash empties the transposition table and forgets worker history.
func (e *Engine) ClearHash() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tt.Clear()
	e.workers = nil
}

// HashFull reports the transposition table usage in permille.
func (e *Engine) HashFull() int {
	return e.tt.HashFull()
}

// Stop cancels a running search. The search still returns the last
// completed iteration.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// searchRun is the state shared by the workers of one Search call.
type searchRun struct {
	cfg      SearchConfig
	tm       TimeManager
	sem      *semaphore.Weighted
	nodes    atomic.Uint64
	done     context.CancelFunc
	hashFull func() int
	report   func(Info)
}

// Search runs an iterative deepening search on pos until a limit in cfg
// is reached, ctx is done or Stop is called. pos is not modified.
func (e *Engine) Search(ctx context.Context, pos *board.Position, cfg SearchConfig) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	roots := e.rootMoves(pos, cfg)
	if len(roots) == 0 {
		score := valueDraw
		if pos.InCheck() {
			score = MatedIn(0)
		}
		return Result{Move: board.NoMove, Score: score}, ErrNoLegalMoves
	}

	e.tt.Age()
	e.stop.Store(false)
	e.ensureWorkers(cfg.Workers)

	run := &searchRun{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxParallel)),
		hashFull: e.tt.HashFull,
		report:   e.OnProgress,
	}
	for _, w := range e.workers {
		w.nodeCount = &run.nodes
		w.prepare(pos, roots, cfg, e.tb)
		if w.id > 0 && len(w.rootMoves) > 2 {
			tail := w.rootMoves[1:]
			frand.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
		}
	}

	var (
		sctx   context.Context
		cancel context.CancelFunc
	)
	if cfg.HardTime > 0 {
		sctx, cancel = context.WithTimeout(ctx, cfg.HardTime)
	} else {
		sctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	run.done = cancel

	watched := make(chan struct{})
	go func() {
		defer close(watched)
		<-sctx.Done()
		e.stop.Store(true)
	}()

	log.Debug().
		Int("workers", len(e.workers)).
		Int("roots", len(roots)).
		Int("depth", cfg.depthLimit()).
		Dur("soft", cfg.SoftTime).
		Dur("hard", cfg.HardTime).
		Uint64("nodes", cfg.MaxNodes).
		Msg("search started")

	run.tm.Start(cfg.SoftTime, cfg.HardTime)
	g, gctx := errgroup.WithContext(sctx)
	for _, w := range e.workers {
		g.Go(func() error { return w.iterate(gctx, run) })
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("search worker failed")
	}
	cancel()
	<-watched

	res := e.workers[0].completed
	res.Nodes = lo.SumBy(e.workers, func(w *Worker) uint64 { return w.nodes })
	res.Elapsed = run.tm.Elapsed()
	if ctx.Err() != nil {
		log.Debug().Err(ctx.Err()).Msg("search cancelled by caller")
	}
	log.Debug().
		Str("move", res.Move.String()).
		Int("depth", res.Depth).
		Int("score", res.Score).
		Uint64("nodes", res.Nodes).
		Dur("elapsed", res.Elapsed).
		Msg("search finished")
	return res, nil
}

func (e *Engine) ensureWorkers(n int) {
	if len(e.workers) > n {
		e.workers = e.workers[:n]
	}
	for id := len(e.workers); id < n; id++ {
		e.workers = append(e.workers, NewWorker(id, e.tt, e.newEvaluator(), &e.stop, nil))
	}
}

// rootMoves lists the legal moves the search may play, honoring the
// configured subset and, in small endgames, the tablebase verdict.
func (e *Engine) rootMoves(pos *board.Position, cfg SearchConfig) []board.Move {
	var ml board.MoveList
	pos.GenerateLegal(&ml)
	moves := slices.Clone(ml.Slice())
	if len(cfg.RootMoves) > 0 {
		moves = lo.Filter(moves, func(m board.Move, _ int) bool {
			return slices.Contains(cfg.RootMoves, m)
		})
	}
	return e.filterByTablebase(pos, moves, cfg.TBProbeLimit)
}

type tbRoot struct {
	move board.Move
	wdl  tablebase.WDL
	dtz  int
}

// filterByTablebase keeps the root moves that preserve the best reachable
// tablebase outcome. Any failed probe leaves the list untouched.
func (e *Engine) filterByTablebase(pos *board.Position, moves []board.Move, limit int) []board.Move {
	if e.tb == nil || limit == 0 || len(moves) < 2 || pos.Castling() != board.NoCastling ||
		tablebase.CountPieces(pos) > min(limit, e.tb.MaxPieces()) {
		return moves
	}
	p := pos.Clone()
	probed := make([]tbRoot, 0, len(moves))
	for _, m := range moves {
		p.MakeMove(m)
		wdl, ok := e.tb.ProbeWDL(p)
		dtz, _ := e.tb.ProbeDTZ(p)
		p.UnmakeMove()
		if !ok {
			return moves
		}
		probed = append(probed, tbRoot{move: m, wdl: -wdl, dtz: abs(dtz)})
	}

	best := lo.MaxBy(probed, func(a, b tbRoot) bool { return a.wdl > b.wdl }).wdl
	kept := lo.Filter(probed, func(r tbRoot, _ int) bool { return r.wdl == best })
	slices.SortStableFunc(kept, func(a, b tbRoot) int {
		if best < tablebase.WDLDraw {
			return cmp.Compare(b.dtz, a.dtz)
		}
		return cmp.Compare(a.dtz, b.dtz)
	})
	log.Debug().Int("wdl", int(best)).Int("kept", len(kept)).Int("of", len(moves)).Msg("tablebase root filter")
	return lo.Map(kept, func(r tbRoot, _ int) board.Move { return r.move })
}

// iterate runs iterative deepening. The main worker reports progress,
// applies the soft time limit and ends the whole search when it stops;
// helpers only feed the shared table.
func (w *Worker) iterate(ctx context.Context, run *searchRun) error {
	main := w.id == 0
	if main {
		defer run.done()
	}

	score := 0
	for depth := 1 + w.id%2; depth <= run.cfg.depthLimit(); depth++ {
		if !main {
			if err := run.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
		}
		w.selDepth = 0
		v := w.aspiration(depth, score)
		if !main {
			run.sem.Release(1)
		}
		if v == valueCancelled {
			return nil
		}
		score = v
		w.commit(depth, score)
		if !main {
			continue
		}

		run.tm.Update(uint32(w.completed.Move))
		elapsed := run.tm.Elapsed()
		nodes := run.nodes.Load() + w.nodes&nodeFlushMask
		log.Debug().Int("depth", depth).Int("score", score).Uint64("nodes", nodes).Msg("iteration done")
		if run.report != nil {
			run.report(Info{
				Depth:    depth,
				SelDepth: w.completed.SelDepth,
				Score:    score,
				Elapsed:  elapsed,
				Nodes:    nodes,
				NPS:      nps(nodes, elapsed),
				HashFull: run.hashFull(),
				PV:       w.completed.PV,
			})
		}

		switch {
		case IsMateScore(score) && MateScore-abs(score) <= depth:
			return nil
		case run.cfg.SoftTime > 0 && len(w.rootMoves) == 1:
			return nil
		case run.tm.PastSoftLimit():
			log.Debug().Dur("elapsed", elapsed).Msg("soft time limit reached")
			return nil
		}
	}
	return nil
}

// Bench searches each position to a fixed depth on a fresh table and
// returns the total node count and elapsed time.
func (e *Engine) Bench(ctx context.Context, fens []string, depth int) (uint64, time.Duration, error) {
	var nodes uint64
	var elapsed time.Duration
	cfg := DefaultSearchConfig()
	cfg.MaxDepth = depth
	for _, fen := range fens {
		pos, err := board.ParseFEN(e.tables, fen)
		if err != nil {
			return 0, 0, err
		}
		e.ClearHash()
		res, err := e.Search(ctx, pos, cfg)
		if err != nil && !errors.Is(err, ErrNoLegalMoves) {
			return 0, 0, err
		}
		nodes += res.Nodes
		elapsed += res.Elapsed
	}
	return nodes, elapsed, nil
}
