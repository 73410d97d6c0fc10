package engine

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Search score constants. Scores are centipawns from the side to move's
// point of view and always fit in 16 bits.
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128

	// MateBound is the smallest magnitude that encodes a forced mate.
	MateBound = MateScore - MaxPly

	valueDraw = 0

	// valueCancelled is returned by every search frame once the stop flag
	// is seen. It lies outside [-Infinity, Infinity].
	valueCancelled = Infinity + 1
)

// MateIn is the score of delivering mate ply plies from the root.
func MateIn(ply int) int { return MateScore - ply }

// MatedIn is the score of being mated ply plies from the root.
func MatedIn(ply int) int { return -MateScore + ply }

// IsMateScore reports whether score encodes a forced mate for either side.
func IsMateScore(score int) bool { return abs(score) >= MateBound }

// MateMoves converts a mate score into full moves, negative when the side
// to move is getting mated. It returns 0 for non-mate scores.
func MateMoves(score int) int {
	switch {
	case score >= MateBound:
		return (MateScore - score + 1) / 2
	case score <= -MateBound:
		return -(MateScore + score) / 2
	}
	return 0
}

// ScoreToTT converts a root-relative mate score into one relative to the
// node at ply, so it can be stored independently of the path.
func ScoreToTT(score, ply int) int {
	switch {
	case score >= MateBound:
		return score + ply
	case score <= -MateBound:
		return score - ply
	}
	return score
}

// ScoreFromTT undoes ScoreToTT for a probe at ply.
func ScoreFromTT(score, ply int) int {
	switch {
	case score >= MateBound:
		return score - ply
	case score <= -MateBound:
		return score + ply
	}
	return score
}

// ScoreString renders a score the way the driver protocol expects it.
func ScoreString(score int) string {
	if IsMateScore(score) {
		return fmt.Sprintf("mate %d", MateMoves(score))
	}
	return fmt.Sprintf("cp %d", score)
}

func abs[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

func clamp[T constraints.Ordered](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
