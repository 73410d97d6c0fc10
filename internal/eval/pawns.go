package eval

import (
	"golang.org/x/exp/constraints"

	"github.com/hailam/chesscore/internal/board"
)

// Passed pawn bonuses by relative rank.
var passedPawnBonus = [8]int{0, 10, 20, 40, 70, 120, 200, 0}

// Bonus by king distance, indexed 0..7.
var kingDistanceBonus = [8]int{0, 0, 10, 20, 30, 40, 50, 60}

const (
	passedPawnConnectedBonus = 20
	passedPawnProtectedBonus = 15
	passedPawnFreePathBonus  = 30
	passedPawnUnstoppable    = 200

	doubledPawnMg  = -15
	doubledPawnEg  = -20
	isolatedPawnMg = -20
	isolatedPawnEg = -25
	backwardPawnMg = -15
	backwardPawnEg = -10
)

var (
	adjacentFiles [8]board.Bitboard
	forwardFile   [2][64]board.Bitboard // squares ahead on the same file
	passedSpan    [2][64]board.Bitboard // squares ahead on the same and adjacent files
	supportSpan   [2][64]board.Bitboard // adjacent-file squares level with or behind
)

func init() {
	for f := range 8 {
		if f > 0 {
			adjacentFiles[f] |= board.FileMask[f-1]
		}
		if f < 7 {
			adjacentFiles[f] |= board.FileMask[f+1]
		}
	}
	for sq := board.Square(0); sq < 64; sq++ {
		file, rank := sq.File(), sq.Rank()
		for r := range 8 {
			switch {
			case r > rank:
				forwardFile[board.White][sq] |= board.RankMask[r] & board.FileMask[file]
				passedSpan[board.White][sq] |= board.RankMask[r] & (board.FileMask[file] | adjacentFiles[file])
				supportSpan[board.Black][sq] |= board.RankMask[r] & adjacentFiles[file]
			case r < rank:
				forwardFile[board.Black][sq] |= board.RankMask[r] & board.FileMask[file]
				passedSpan[board.Black][sq] |= board.RankMask[r] & (board.FileMask[file] | adjacentFiles[file])
				supportSpan[board.White][sq] |= board.RankMask[r] & adjacentFiles[file]
			default:
				supportSpan[board.White][sq] |= board.RankMask[r] & adjacentFiles[file]
				supportSpan[board.Black][sq] |= board.RankMask[r] & adjacentFiles[file]
			}
		}
	}
}

func distance(a, b board.Square) int {
	return max(abs(a.File()-b.File()), abs(a.Rank()-b.Rank()))
}

func abs[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// pawnStructure evaluates everything that depends only on pawns and kings,
// using the cache when possible. It also returns the passed pawns.
func (e *Evaluator) pawnStructure(pos *board.Position) (mg, eg int, passed board.Bitboard) {
	key := pos.KingPawnKey()
	if entry, ok := e.pawns.Probe(key); ok {
		return int(entry.Mg), int(entry.Eg), entry.Passed
	}

	t := pos.Tables()
	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}
		them := c.Other()
		own := pos.Pieces[c][board.Pawn]
		enemy := pos.Pieces[them][board.Pawn]
		ourKing, theirKing := pos.KingSquare(c), pos.KingSquare(them)

		for bb := own; bb != 0; {
			sq := bb.PopLSB()
			file := sq.File()

			// Doubled: penalize each pawn with a friendly pawn ahead of it
			if own&forwardFile[c][sq] != 0 {
				mg += sign * doubledPawnMg
				eg += sign * doubledPawnEg
			}

			if own&adjacentFiles[file] == 0 {
				mg += sign * isolatedPawnMg
				eg += sign * isolatedPawnEg
			} else if own&supportSpan[c][sq] == 0 {
				// Backward: no support from behind and the stop square is
				// held by an enemy pawn
				if stop := forwardFile[c][sq] & board.RankMask[sq.Rank()+pawnStep(c)]; stop != 0 &&
					t.PawnAttacks(c, stop.LSB())&enemy != 0 {
					mg += sign * backwardPawnMg
					eg += sign * backwardPawnEg
				}
			}

			if enemy&passedSpan[c][sq] != 0 {
				continue
			}
			passed |= board.SquareBB(sq)

			rel := sq.RelativeRank(c)
			bonus := passedPawnBonus[rel]
			if t.PawnAttacks(them, sq)&own != 0 {
				bonus += passedPawnProtectedBonus
			}
			for adj := own & adjacentFiles[file]; adj != 0; {
				if enemy&passedSpan[c][adj.PopLSB()] == 0 {
					bonus += passedPawnConnectedBonus
					break
				}
			}

			promo := board.NewSquare(file, 7)
			if c == board.Black {
				promo = board.NewSquare(file, 0)
			}
			extra := kingDistanceBonus[7-min(distance(ourKing, sq), 7)]
			extra += kingDistanceBonus[min(distance(theirKing, promo), 7)]
			if rel >= 4 && distance(theirKing, promo) > 7-rel+1 {
				extra += passedPawnUnstoppable
			}

			mg += sign * bonus
			eg += sign * (bonus*3/2 + extra)
		}
	}

	e.pawns.Store(PawnEntry{Key: key, Mg: int16(mg), Eg: int16(eg), Passed: passed})
	return mg, eg, passed
}

// pawnStep is the rank delta of a pawn push.
func pawnStep(c board.Color) int {
	if c == board.White {
		return 1
	}
	return -1
}

// freePassers rewards passed pawns whose path to promotion is empty.
func freePassers(pos *board.Position, passed board.Bitboard) (mg, eg int) {
	occ := pos.AllOccupied
	for bb := passed; bb != 0; {
		sq := bb.PopLSB()
		c := pos.PieceAt(sq).Color()
		if forwardFile[c][sq]&occ != 0 {
			continue
		}
		if c == board.White {
			mg += passedPawnFreePathBonus
			eg += passedPawnFreePathBonus * 3 / 2
		} else {
			mg -= passedPawnFreePathBonus
			eg -= passedPawnFreePathBonus * 3 / 2
		}
	}
	return mg, eg
}
