package board

import (
	"fmt"
	"strings"
)

const sanLetters = "PNBRQK"

// SAN renders the legal move m in standard algebraic notation, with a
// trailing "+" or "#" when it checks or mates.
func (p *Position) SAN(m Move) string {
	if m == NoMove || m == NullMove {
		return "--"
	}

	var sb strings.Builder
	from, to, pt := m.From(), m.To(), m.Piece()

	switch {
	case m.IsCastle() && m.IsQueenSide():
		sb.WriteString("O-O-O")
	case m.IsCastle():
		sb.WriteString("O-O")
	default:
		if pt != Pawn {
			sb.WriteByte(sanLetters[pt])
			sb.WriteString(p.disambiguation(m))
		}
		if m.IsCapture() {
			if pt == Pawn {
				sb.WriteByte('a' + byte(from.File()))
			}
			sb.WriteByte('x')
		}
		sb.WriteString(to.String())
		if m.IsPromotion() {
			sb.WriteByte('=')
			sb.WriteByte(sanLetters[m.Promotion()])
		}
	}

	p.MakeMove(m)
	if p.InCheck() {
		if p.HasLegalMove() {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('#')
		}
	}
	p.UnmakeMove()
	return sb.String()
}

// disambiguation returns the origin file, rank or square needed to tell m
// apart from other legal moves of the same piece kind to the same square.
func (p *Position) disambiguation(m Move) string {
	from := m.From()
	var ml MoveList
	p.GenerateLegal(&ml)

	clash, sameFile, sameRank := false, false, false
	for _, o := range ml.Slice() {
		if o.To() != m.To() || o.Piece() != m.Piece() || o.From() == from {
			continue
		}
		clash = true
		sameFile = sameFile || o.From().File() == from.File()
		sameRank = sameRank || o.From().Rank() == from.Rank()
	}
	switch {
	case !clash:
		return ""
	case !sameFile:
		return string(rune('a' + from.File()))
	case !sameRank:
		return string(rune('1' + from.Rank()))
	}
	return from.String()
}

// ParseSAN finds the legal move written s in standard algebraic notation.
func (p *Position) ParseSAN(s string) (Move, error) {
	text := strings.TrimRight(strings.TrimSpace(s), "+#!?")
	text = strings.ReplaceAll(text, "0", "O")

	var ml MoveList
	p.GenerateLegal(&ml)
	for _, m := range ml.Slice() {
		if strings.TrimRight(p.SAN(m), "+#") == text {
			return m, nil
		}
	}
	return NoMove, fmt.Errorf("%w: no legal move %q", ErrMalformedInput, s)
}

// SANLine renders a sequence of moves played from p. p is left unchanged.
func (p *Position) SANLine(moves []Move) []string {
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		if !p.IsPseudoLegal(m) || !p.IsLegal(m) {
			break
		}
		out = append(out, p.SAN(m))
		p.MakeMove(m)
	}
	for range out {
		p.UnmakeMove()
	}
	return out
}
