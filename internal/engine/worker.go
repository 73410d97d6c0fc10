package engine

import (
	"cmp"
	"math"
	"slices"
	"sync/atomic"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/tablebase"
)

// LMR reduction table, indexed by [depth][moveCount].
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrReductions[d][m] = int(0.75 + math.Log(float64(d))*math.Log(float64(m))/2.25)
		}
	}
}

// Pruning parameters.
const (
	aspirationWindow = 25
	iidDepth         = 6
	nullMinDepth     = 3
	singularDepth    = 8
	futilityDepth    = 6
	futilityBase     = 100
	futilityPerDepth = 120
	historyPruneMax  = 4
	seePruneDepth    = 6
	deltaMargin      = 200

	nodeFlushMask = 1023
)

// Evaluator scores a position from the side to move's point of view.
// Implementations must be deterministic and satisfy
// Evaluate(p) == Evaluate(p.Mirror()). Each worker owns one instance.
type Evaluator interface {
	Evaluate(pos *board.Position) int
}

// PVTable stores the principal variation.
type PVTable struct {
	length [MaxPly + 1]int
	moves  [MaxPly + 1][MaxPly + 1]board.Move
}

func (pv *PVTable) update(ply int, m board.Move) {
	pv.moves[ply][ply] = m
	next := max(pv.length[ply+1], ply+1)
	copy(pv.moves[ply][ply+1:next], pv.moves[ply+1][ply+1:next])
	pv.length[ply] = next
}

type rootMove struct {
	move  board.Move
	score int
}

// Worker runs iterative deepening on its own copy of the position with
// its own ordering heuristics. Only the transposition table, the stop flag
// and the node counter are shared.
type Worker struct {
	id   int
	pos  *board.Position
	tt   *TranspositionTable
	eval Evaluator
	tb   tablebase.Prober

	tbLimit   int
	maxNodes  uint64
	stop      *atomic.Bool
	nodeCount *atomic.Uint64

	orderer   MoveOrderer
	pickers   [MaxPly + 1]MovePicker
	pv        PVTable
	evalStack [MaxPly + 2]int
	rootMoves []rootMove

	nodes    uint64
	selDepth int

	completed Result
}

// NewWorker creates a new search worker.
func NewWorker(id int, tt *TranspositionTable, eval Evaluator, stop *atomic.Bool, nodeCount *atomic.Uint64) *Worker {
	return &Worker{
		id:        id,
		tt:        tt,
		eval:      eval,
		stop:      stop,
		nodeCount: nodeCount,
	}
}

// Nodes returns the number of nodes searched by this worker.
func (w *Worker) Nodes() uint64 {
	return w.nodes
}

// prepare resets per-search state for a new root.
func (w *Worker) prepare(pos *board.Position, roots []board.Move, cfg SearchConfig, tb tablebase.Prober) {
	w.pos = pos.Clone()
	w.tb = tb
	w.tbLimit = cfg.TBProbeLimit
	w.maxNodes = cfg.MaxNodes
	w.nodes = 0
	w.selDepth = 0
	w.orderer.Clear()
	w.rootMoves = w.rootMoves[:0]
	for _, m := range roots {
		w.rootMoves = append(w.rootMoves, rootMove{move: m, score: -Infinity})
	}
	w.completed = Result{}
	if len(roots) > 0 {
		w.completed.Move = roots[0]
		w.completed.PV = []board.Move{roots[0]}
	}
}

func (w *Worker) countNode(ply int) {
	w.nodes++
	w.selDepth = max(w.selDepth, ply)
	if w.nodes&nodeFlushMask == 0 {
		total := w.nodeCount.Add(nodeFlushMask + 1)
		if w.maxNodes > 0 && total >= w.maxNodes {
			w.stop.Store(true)
		}
	}
}

func (w *Worker) evaluate() int {
	return clamp(w.eval.Evaluate(w.pos), -MateBound+1, MateBound-1)
}

// aspiration searches depth in a window around prev, widening on failure
// until the score lands inside it.
func (w *Worker) aspiration(depth, prev int) int {
	alpha, beta := -Infinity, Infinity
	delta := aspirationWindow
	if depth >= 5 {
		alpha = max(prev-delta, -Infinity)
		beta = min(prev+delta, Infinity)
	}
	for {
		v := w.search(alpha, beta, depth, 0, false, board.NoMove)
		switch {
		case v == valueCancelled:
			return v
		case v <= alpha:
			beta = (alpha + beta) / 2
			alpha = max(v-delta, -Infinity)
		case v >= beta:
			beta = min(v+delta, Infinity)
		default:
			return v
		}
		delta += delta / 2
	}
}

// commit records a finished iteration. Root moves are reordered so the
// next iteration starts with the best one.
func (w *Worker) commit(depth, score int) {
	slices.SortStableFunc(w.rootMoves, func(a, b rootMove) int {
		return cmp.Compare(b.score, a.score)
	})
	best := w.rootMoves[0].move
	pv := slices.Clone(w.pv.moves[0][:w.pv.length[0]])
	if len(pv) == 0 || pv[0] != best {
		pv = []board.Move{best}
	}
	w.completed = Result{
		Move:     best,
		Score:    score,
		Depth:    depth,
		SelDepth: w.selDepth,
		PV:       pv,
	}
}

// search is the principal variation search. cutNode hints that a fail
// high is expected. excluded is skipped at this node and disables the
// transposition table, as used by the singular extension test.
func (w *Worker) search(alpha, beta, depth, ply int, cutNode bool, excluded board.Move) int {
	if w.stop.Load() {
		return valueCancelled
	}
	if depth <= 0 {
		return w.quiescence(alpha, beta, ply)
	}
	w.pv.length[ply] = ply
	w.countNode(ply)

	pos := w.pos
	root := ply == 0
	pvNode := beta-alpha > 1
	inCheck := pos.InCheck()
	us := pos.SideToMove()

	if !root {
		if pos.IsFiftyMoveDraw() || pos.IsMaterialDraw() || pos.IsRepetitionDraw(ply) {
			return valueDraw
		}
		if ply >= MaxPly {
			return w.evaluate()
		}
		alpha = max(alpha, MatedIn(ply))
		beta = min(beta, MateIn(ply+1))
		if alpha >= beta {
			return alpha
		}
	}

	hash := pos.Hash()
	var (
		entry   TTEntry
		ttHit   bool
		ttMove  board.Move
		ttScore int
	)
	if excluded == board.NoMove {
		entry, ttHit = w.tt.Probe(hash)
	}
	if ttHit {
		ttMove = pos.ExpandMove(entry.Move)
		ttScore = ScoreFromTT(entry.Score, ply)
		if !pvNode && entry.Depth >= depth && boundCuts(entry.Bound, ttScore, alpha, beta) {
			return ttScore
		}
	}

	if !root && excluded == board.NoMove {
		if score, bound, ok := w.probeTablebase(ply); ok && boundCuts(bound, score, alpha, beta) {
			w.tt.Save(hash, bound, min(depth+6, MaxDepth), ply, valueDraw, score, 0)
			return score
		}
	}

	staticEval := -Infinity
	if !inCheck {
		if ttHit {
			staticEval = entry.Eval
		} else {
			staticEval = w.evaluate()
		}
	}
	w.evalStack[ply] = staticEval
	improving := ply >= 2 && !inCheck && staticEval > w.evalStack[ply-2]

	// Internal iterative deepening
	if !root && depth >= iidDepth && ttMove == board.NoMove && excluded == board.NoMove {
		if w.search(alpha, beta, depth-2, ply, cutNode, board.NoMove) == valueCancelled {
			return valueCancelled
		}
		w.pv.length[ply] = ply
		if entry, ttHit = w.tt.Probe(hash); ttHit {
			ttMove = pos.ExpandMove(entry.Move)
			ttScore = ScoreFromTT(entry.Score, ply)
		}
	}

	// Null move pruning
	refutation := board.NoMove
	if !pvNode && !inCheck && excluded == board.NoMove && depth >= nullMinDepth &&
		staticEval >= beta && pos.NonPawnPieces(us) >= 2 && pos.LastMove() != board.NullMove {
		r := 3 + depth/4 + min((staticEval-beta)/200, 3)
		pos.MakeNullMove()
		v := -w.search(-beta, -beta+1, depth-1-r, ply+1, !cutNode, board.NoMove)
		var threat board.Move
		if e, ok := w.tt.Probe(pos.Hash()); ok {
			threat = pos.ExpandMove(e.Move)
		}
		pos.UnmakeNullMove()
		if w.stop.Load() {
			return valueCancelled
		}
		if v >= beta {
			if v >= MateBound {
				v = beta
			}
			return v
		}
		refutation = threat
	}

	// Singular extension test
	singular := false
	if !root && depth >= singularDepth && ttMove != board.NoMove && excluded == board.NoMove &&
		entry.Bound&BoundLower != 0 && entry.Depth >= depth-3 && abs(ttScore) < MateBound {
		sBeta := ttScore - 2*depth
		v := w.search(sBeta-1, sBeta, (depth-1)/2, ply, cutNode, ttMove)
		if v == valueCancelled {
			return valueCancelled
		}
		w.pv.length[ply] = ply
		if v < sBeta {
			singular = true
		} else if sBeta >= beta {
			return sBeta
		}
	}

	var mp *MovePicker
	if !root {
		mp = &w.pickers[ply]
		mp.Init(pos, &w.orderer, ttMove, refutation, ply, false)
	}

	var quietsTried [64]board.Move
	nQuiets := 0
	bestScore := -Infinity
	bestMove := board.NoMove
	moveCount := 0
	rootIdx := -1

	for {
		var m board.Move
		if root {
			if rootIdx++; rootIdx < len(w.rootMoves) {
				m = w.rootMoves[rootIdx].move
			}
		} else {
			m = mp.Next()
		}
		if m == board.NoMove {
			break
		}
		if m == excluded || (!root && !pos.IsLegal(m)) {
			continue
		}
		moveCount++

		quiet := !m.IsNoisy()
		givesCheck := pos.GivesCheck(m)

		// Shallow pruning once a non-losing line exists
		if !root && bestScore > -MateBound && pos.NonPawnPieces(us) > 0 {
			if quiet && !givesCheck {
				if depth <= futilityDepth && !inCheck && staticEval+futilityBase+futilityPerDepth*depth <= alpha {
					continue
				}
				if depth <= historyPruneMax && moveCount > 6 && w.orderer.History(m) < 0 {
					continue
				}
			} else if mp.InBadCaptures() && depth <= seePruneDepth && pos.SEE(m) < -100*depth {
				continue
			}
		}

		ext := 0
		if (singular && m == ttMove) || givesCheck {
			ext = 1
		}
		newDepth := depth - 1 + ext

		pos.MakeMove(m)
		var score int
		if moveCount == 1 {
			score = -w.search(-beta, -alpha, newDepth, ply+1, false, board.NoMove)
		} else {
			r := 0
			if depth >= 3 && moveCount > 3 && quiet && !givesCheck && !inCheck {
				r = lmrReductions[min(depth, 63)][min(moveCount, 63)]
				if cutNode {
					r++
				}
				if pvNode {
					r--
				}
				if !improving {
					r++
				}
				r -= w.orderer.History(m) / 4096
				// the piece was attacked where it stood, so the move may be an escape
				if !m.IsCastle() && pos.SEE(board.NewMove(m.To(), m.From(), m.Piece(), us)) < 0 {
					r -= 2
				}
				r = clamp(r, 0, newDepth-1)
			}
			score = -w.search(-alpha-1, -alpha, newDepth-r, ply+1, true, board.NoMove)
			if score > alpha && r > 0 {
				score = -w.search(-alpha-1, -alpha, newDepth, ply+1, !cutNode, board.NoMove)
			}
			if score > alpha && score < beta {
				score = -w.search(-beta, -alpha, newDepth, ply+1, false, board.NoMove)
			}
		}
		pos.UnmakeMove()

		if w.stop.Load() {
			return valueCancelled
		}

		if root {
			if moveCount == 1 || score > alpha {
				w.rootMoves[rootIdx].score = score
			} else {
				w.rootMoves[rootIdx].score = -Infinity
			}
		}

		if score > bestScore {
			bestScore = score
			if score > alpha {
				bestMove = m
				if pvNode {
					w.pv.update(ply, m)
				}
				if score >= beta {
					break
				}
				alpha = score
			}
		}
		if m != bestMove && quiet && nQuiets < len(quietsTried) {
			quietsTried[nQuiets] = m
			nQuiets++
		}
	}

	if moveCount == 0 {
		switch {
		case excluded != board.NoMove:
			return alpha
		case inCheck:
			return MatedIn(ply)
		}
		return valueDraw
	}

	if bestScore >= beta && !bestMove.IsNoisy() {
		w.orderer.UpdateKillers(bestMove, ply)
		w.orderer.UpdateHistory(bestMove, quietsTried[:nQuiets], depth)
	}

	if excluded == board.NoMove {
		bound := BoundUpper
		switch {
		case bestScore >= beta:
			bound = BoundLower
		case pvNode && bestMove != board.NoMove:
			bound = BoundExact
		}
		w.tt.Save(hash, bound, depth, ply, staticEval, bestScore, bestMove.Compact())
	}
	return bestScore
}

// quiescence resolves captures until the position is quiet. Evasions are
// searched in full when in check.
func (w *Worker) quiescence(alpha, beta, ply int) int {
	if w.stop.Load() {
		return valueCancelled
	}
	w.pv.length[ply] = ply
	w.countNode(ply)

	pos := w.pos
	if pos.IsFiftyMoveDraw() || pos.IsMaterialDraw() || pos.IsRepetitionDraw(ply) {
		return valueDraw
	}
	if ply >= MaxPly {
		return w.evaluate()
	}

	pvNode := beta-alpha > 1
	inCheck := pos.InCheck()
	hash := pos.Hash()

	entry, ttHit := w.tt.Probe(hash)
	var ttMove board.Move
	if ttHit {
		ttMove = pos.ExpandMove(entry.Move)
		if score := ScoreFromTT(entry.Score, ply); !pvNode && boundCuts(entry.Bound, score, alpha, beta) {
			return score
		}
	}

	staticEval := -Infinity
	bestScore := -Infinity
	if !inCheck {
		if ttHit {
			staticEval = entry.Eval
		} else {
			staticEval = w.evaluate()
		}
		// Stand pat
		bestScore = staticEval
		if bestScore >= beta {
			if !ttHit {
				w.tt.Save(hash, BoundLower, 0, ply, staticEval, bestScore, 0)
			}
			return bestScore
		}
		alpha = max(alpha, bestScore)
	}

	mp := &w.pickers[ply]
	mp.Init(pos, &w.orderer, ttMove, board.NoMove, ply, !inCheck)

	bestMove := board.NoMove
	moveCount := 0
	for m := mp.Next(); m != board.NoMove; m = mp.Next() {
		if !pos.IsLegal(m) {
			continue
		}
		moveCount++

		if !inCheck {
			if mp.InBadCaptures() {
				break
			}
			// Delta pruning
			if !m.IsPromotion() {
				futility := staticEval + board.SeeValue[m.Captured()] + deltaMargin
				if futility <= alpha {
					bestScore = max(bestScore, futility)
					continue
				}
			}
		}

		pos.MakeMove(m)
		score := -w.quiescence(-beta, -alpha, ply+1)
		pos.UnmakeMove()

		if w.stop.Load() {
			return valueCancelled
		}

		if score > bestScore {
			bestScore = score
			if score > alpha {
				bestMove = m
				if pvNode {
					w.pv.update(ply, m)
				}
				if score >= beta {
					break
				}
				alpha = score
			}
		}
	}

	if inCheck && moveCount == 0 {
		return MatedIn(ply)
	}

	bound := BoundUpper
	switch {
	case bestScore >= beta:
		bound = BoundLower
	case pvNode && bestMove != board.NoMove:
		bound = BoundExact
	}
	w.tt.Save(hash, bound, 0, ply, staticEval, bestScore, bestMove.Compact())
	return bestScore
}

// boundCuts reports whether a score with the given bound settles the
// window [alpha, beta].
func boundCuts(b Bound, score, alpha, beta int) bool {
	switch b {
	case BoundExact:
		return true
	case BoundLower:
		return score >= beta
	case BoundUpper:
		return score <= alpha
	}
	return false
}

// probeTablebase returns a tablebase score for the current node when the
// material is small enough. Wins and losses are bounds that stay clear of
// mate scores.
func (w *Worker) probeTablebase(ply int) (int, Bound, bool) {
	if w.tb == nil || w.tbLimit == 0 {
		return 0, BoundNone, false
	}
	pos := w.pos
	if pos.Castling() != board.NoCastling ||
		tablebase.CountPieces(pos) > min(w.tbLimit, w.tb.MaxPieces()) {
		return 0, BoundNone, false
	}
	wdl, ok := w.tb.ProbeWDL(pos)
	if !ok {
		return 0, BoundNone, false
	}
	switch wdl {
	case tablebase.WDLWin:
		return MateBound - 1 - ply, BoundLower, true
	case tablebase.WDLLoss:
		return -MateBound + 1 + ply, BoundUpper, true
	}
	return valueDraw, BoundExact, true
}
