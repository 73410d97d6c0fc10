// Package eval implements the classical hand-tuned evaluator: tapered
// material and piece-square terms, pawn structure, mobility, king safety
// and a few piece bonuses.
package eval

import (
	"github.com/hailam/chesscore/internal/board"
)

// Evaluation constants
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
)

var pieceValues = [6]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, 0}

// Game phase weights; a full board is maxPhase.
var phaseWeight = [6]int{0, 1, 1, 2, 4, 0}

const maxPhase = 24

// Mobility weights per piece type
var mobilityMgWeight = [6]int{0, 4, 5, 2, 1, 0}
var mobilityEgWeight = [6]int{0, 3, 4, 4, 2, 0}

// King safety weights per attacker type
var attackerWeight = [6]int{0, 20, 20, 40, 80, 0}

const (
	pawnShieldBonus      = 10
	pawnShieldMissing    = -15
	openFileNearKing     = -20
	semiOpenFileNearKing = -10

	bishopPairMg = 25
	bishopPairEg = 50

	rookOpenFileMg     = 20
	rookOpenFileEg     = 25
	rookSemiOpenFileMg = 10
	rookSemiOpenFileEg = 15

	tempoBonus = 10
)

// Evaluator is a classical evaluator with its own pawn cache. It is not
// safe for concurrent use; give every search worker its own.
type Evaluator struct {
	pawns *PawnTable
}

// New creates an evaluator with a 256KB pawn cache.
func New() *Evaluator {
	return &Evaluator{pawns: NewPawnTable(256)}
}

// Evaluate returns the static evaluation from the side to move's point of
// view. The score is the same for a position and its color-flipped mirror.
func (e *Evaluator) Evaluate(pos *board.Position) int {
	var mg, eg, phase int

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		for pt := board.Pawn; pt <= board.King; pt++ {
			for bb := pos.Pieces[c][pt]; bb != 0; {
				idx := pstIndex(c, bb.PopLSB())
				mg += sign * (pieceValues[pt] + mgPST[pt][idx])
				eg += sign * (pieceValues[pt] + egPST[pt][idx])
				phase += phaseWeight[pt]
			}
		}
	}

	psMg, psEg, passed := e.pawnStructure(pos)
	mg += psMg
	eg += psEg

	fpMg, fpEg := freePassers(pos, passed)
	mg += fpMg
	eg += fpEg

	mobMg, mobEg := mobility(pos)
	mg += mobMg
	eg += mobEg

	mg += kingSafety(pos)

	pbMg, pbEg := pieceBonuses(pos)
	mg += pbMg
	eg += pbEg

	phase = min(phase, maxPhase)
	score := (mg*phase + eg*(maxPhase-phase)) / maxPhase

	if pos.SideToMove() == board.Black {
		score = -score
	}
	return score + tempoBonus
}

// Material returns the material balance from the side to move's view.
func Material(pos *board.Position) int {
	score := 0
	for pt := board.Pawn; pt < board.King; pt++ {
		score += (pos.Count(board.White, pt) - pos.Count(board.Black, pt)) * pieceValues[pt]
	}
	if pos.SideToMove() == board.Black {
		return -score
	}
	return score
}

// mobility counts safe squares for minor and major pieces.
func mobility(pos *board.Position) (mg, eg int) {
	t := pos.Tables()
	occ := pos.AllOccupied
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		them := c.Other()

		var unsafe board.Bitboard
		for bb := pos.Pieces[them][board.Pawn]; bb != 0; {
			unsafe |= t.PawnAttacks(them, bb.PopLSB())
		}
		blocked := unsafe | pos.Occupied[c]

		for pt := board.Knight; pt <= board.Queen; pt++ {
			for bb := pos.Pieces[c][pt]; bb != 0; {
				n := (t.Attacks(pt, c, bb.PopLSB(), occ) &^ blocked).PopCount()
				mg += sign * mobilityMgWeight[pt] * n
				eg += sign * mobilityEgWeight[pt] * n
			}
		}
	}
	return mg, eg
}

// kingSafety scores attackers near each king and the pawn shield in front
// of it. It only applies to the middlegame.
func kingSafety(pos *board.Position) int {
	t := pos.Tables()
	occ := pos.AllOccupied
	score := 0
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		them := c.Other()
		ksq := pos.KingSquare(c)

		zone := t.KingAttacks(ksq) | board.SquareBB(ksq)
		zone |= zone.Forward(c)

		attackers, weight := 0, 0
		for pt := board.Knight; pt <= board.Queen; pt++ {
			for bb := pos.Pieces[them][pt]; bb != 0; {
				if t.Attacks(pt, them, bb.PopLSB(), occ)&zone != 0 {
					attackers++
					weight += attackerWeight[pt]
				}
			}
		}
		if attackers >= 2 {
			weight = weight * attackers / 2
		}
		score -= sign * weight

		own := pos.Pieces[c][board.Pawn]
		enemy := pos.Pieces[them][board.Pawn]
		shieldRank := board.RankMask[1]
		if c == board.Black {
			shieldRank = board.RankMask[6]
		}
		for f := max(ksq.File()-1, 0); f <= min(ksq.File()+1, 7); f++ {
			file := board.FileMask[f]
			switch {
			case own&file&shieldRank != 0:
				score += sign * pawnShieldBonus
			case own&file == 0:
				score += sign * pawnShieldMissing
			}
			switch {
			case own&file == 0 && enemy&file == 0:
				score += sign * openFileNearKing
			case own&file == 0:
				score += sign * semiOpenFileNearKing
			}
		}
	}
	return score
}

// pieceBonuses covers the bishop pair and rooks on open files.
func pieceBonuses(pos *board.Position) (mg, eg int) {
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		if pos.Count(c, board.Bishop) >= 2 {
			mg += sign * bishopPairMg
			eg += sign * bishopPairEg
		}

		own := pos.Pieces[c][board.Pawn]
		enemy := pos.Pieces[c.Other()][board.Pawn]
		for bb := pos.Pieces[c][board.Rook]; bb != 0; {
			file := board.FileMask[bb.PopLSB().File()]
			switch {
			case own&file != 0:
			case enemy&file == 0:
				mg += sign * rookOpenFileMg
				eg += sign * rookOpenFileEg
			default:
				mg += sign * rookSemiOpenFileMg
				eg += sign * rookSemiOpenFileEg
			}
		}
	}
	return mg, eg
}
