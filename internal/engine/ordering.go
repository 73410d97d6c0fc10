package engine

import (
	"github.com/hailam/chesscore/internal/board"
)

// Quiet move ordering scores.
const (
	KillerScore1 = 3 << 20 // most recent killer at this ply
	KillerScore2 = 2 << 20
	KillerScore3 = 1 << 20 // killer from two plies back
	EscapeBonus  = 2048    // quiet leaving the square a null-move refutation hit

	historyMax = 1 << 14
)

// MoveOrderer holds the per-worker ordering heuristics. It is never shared
// between workers.
type MoveOrderer struct {
	killers [MaxPly + 2][2]board.Move
	history [2][64][64]int32
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear resets killers and ages history for a new search.
func (mo *MoveOrderer) Clear() {
	clear(mo.killers[:])
	for c := range mo.history {
		for from := range mo.history[c] {
			for to := range mo.history[c][from] {
				mo.history[c][from][to] /= 2
			}
		}
	}
}

// Killers returns the killer slots for ply, most recent first.
func (mo *MoveOrderer) Killers(ply int) [2]board.Move {
	return mo.killers[ply]
}

// History returns the history score of a quiet move.
func (mo *MoveOrderer) History(m board.Move) int {
	return int(mo.history[m.Color()][m.From()][m.To()])
}

// UpdateKillers records a quiet move that caused a beta cutoff at ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	k := &mo.killers[ply]
	if k[0] != m {
		k[1] = k[0]
		k[0] = m
	}
}

// UpdateHistory rewards the quiet cutoff move with depth² and penalizes
// the quiet moves tried before it by the same amount.
func (mo *MoveOrderer) UpdateHistory(best board.Move, tried []board.Move, depth int) {
	bonus := int32(depth * depth)
	mo.addHistory(best, bonus)
	for _, m := range tried {
		mo.addHistory(m, -bonus)
	}
}

func (mo *MoveOrderer) addHistory(m board.Move, delta int32) {
	c := m.Color()
	h := &mo.history[c][m.From()][m.To()]
	*h += delta
	if abs(*h) < historyMax {
		return
	}
	for from := range mo.history[c] {
		for to := range mo.history[c][from] {
			mo.history[c][from][to] /= 2
		}
	}
}

type pickStage uint8

const (
	stageHash pickStage = iota
	stageGenNoisy
	stageGoodNoisy
	stageGenQuiet
	stageQuiet
	stageBadNoisy
	stageDone
)

// MovePicker yields the pseudo-legal moves of a position in stages, doing
// only as much generation and scoring as the caller consumes: hash move,
// good captures by victim value, quiets by killers and history, then the
// captures that lose material. Legality is left to the caller.
type MovePicker struct {
	pos        *board.Position
	mo         *MoveOrderer
	hashMove   board.Move
	refutation board.Move
	ply        int
	skipQuiets bool

	stage  pickStage
	idx    int
	nBad   int
	badIdx int
	noisy  board.MoveList
	quiet  board.MoveList
	scores [board.MaxMoves]int
	bad    [board.MaxMoves]board.Move
}

// Init prepares the picker for a node. refutation is the reply that
// refuted a null move at this node, or NoMove. With skipQuiets only noisy
// moves are produced.
func (mp *MovePicker) Init(pos *board.Position, mo *MoveOrderer, hashMove, refutation board.Move, ply int, skipQuiets bool) {
	mp.pos = pos
	mp.mo = mo
	mp.hashMove = hashMove
	mp.refutation = refutation
	mp.ply = ply
	mp.skipQuiets = skipQuiets
	mp.stage = stageHash
	mp.idx, mp.nBad, mp.badIdx = 0, 0, 0
	mp.noisy.Clear()
	mp.quiet.Clear()
}

// InBadCaptures reports whether the last move came from the losing
// captures stage.
func (mp *MovePicker) InBadCaptures() bool {
	return mp.stage == stageBadNoisy
}

// Next returns the next move, or NoMove when exhausted.
func (mp *MovePicker) Next() board.Move {
	switch mp.stage {
	case stageHash:
		mp.stage = stageGenNoisy
		hm := mp.hashMove
		if hm != board.NoMove && (!mp.skipQuiets || hm.IsNoisy()) && mp.pos.IsPseudoLegal(hm) {
			return hm
		}
		fallthrough

	case stageGenNoisy:
		mp.pos.GenerateNoisy(&mp.noisy)
		for i, m := range mp.noisy.Slice() {
			mp.scores[i] = noisyScore(m)
		}
		mp.idx = 0
		mp.stage = stageGoodNoisy
		fallthrough

	case stageGoodNoisy:
		for mp.idx < mp.noisy.Len() {
			m := mp.selectBest(&mp.noisy)
			if m == mp.hashMove {
				continue
			}
			if mp.pos.SEE(m) < 0 {
				mp.bad[mp.nBad] = m
				mp.nBad++
				continue
			}
			return m
		}
		if mp.skipQuiets {
			mp.stage = stageBadNoisy
			return mp.Next()
		}
		mp.stage = stageGenQuiet
		fallthrough

	case stageGenQuiet:
		mp.pos.GenerateQuiet(&mp.quiet)
		for i, m := range mp.quiet.Slice() {
			mp.scores[i] = mp.quietScore(m)
		}
		mp.idx = 0
		mp.stage = stageQuiet
		fallthrough

	case stageQuiet:
		for mp.idx < mp.quiet.Len() {
			if m := mp.selectBest(&mp.quiet); m != mp.hashMove {
				return m
			}
		}
		mp.stage = stageBadNoisy
		fallthrough

	case stageBadNoisy:
		if mp.badIdx < mp.nBad {
			mp.badIdx++
			return mp.bad[mp.badIdx-1]
		}
		mp.stage = stageDone
	}
	return board.NoMove
}

// selectBest swaps the highest scored remaining move to the front of the
// unvisited part of ml and returns it.
func (mp *MovePicker) selectBest(ml *board.MoveList) board.Move {
	best := mp.idx
	for i := mp.idx + 1; i < ml.Len(); i++ {
		if mp.scores[i] > mp.scores[best] {
			best = i
		}
	}
	ml.Swap(mp.idx, best)
	mp.scores[mp.idx], mp.scores[best] = mp.scores[best], mp.scores[mp.idx]
	m := ml.Get(mp.idx)
	mp.idx++
	return m
}

// noisyScore orders by victim value, promotions counting the gained piece.
// The mover's value breaks ties.
func noisyScore(m board.Move) int {
	score := 0
	if m.IsCapture() {
		score = board.SeeValue[m.Captured()]
	}
	if m.IsPromotion() {
		score += board.SeeValue[m.Promotion()] - board.SeeValue[board.Pawn]
	}
	return score*8 - int(m.Piece())
}

func (mp *MovePicker) quietScore(m board.Move) int {
	k := mp.mo.killers[mp.ply]
	switch {
	case m == k[0]:
		return KillerScore1
	case m == k[1]:
		return KillerScore2
	case mp.ply >= 2 && m == mp.mo.killers[mp.ply-2][0]:
		return KillerScore3
	}
	score := mp.mo.History(m)
	if mp.refutation != board.NoMove && m.From() == mp.refutation.To() {
		score += EscapeBonus
	}
	return score
}
