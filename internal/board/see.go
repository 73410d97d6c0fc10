package board

// SEE estimates the material outcome of the exchange started by m on its
// destination square, from the mover's point of view. Pins are ignored.
// En passant and castling score 0.
func (p *Position) SEE(m Move) int {
	if m == NoMove || m == NullMove || m.IsEnPassant() || m.IsCastle() {
		return 0
	}
	from, to := m.From(), m.To()
	t := p.t

	var gain [32]int
	gain[0] = SeeValue[p.board[to].Type()]
	onSquare := SeeValue[m.Piece()]
	if m.IsPromotion() {
		gain[0] += SeeValue[m.Promotion()] - SeeValue[Pawn]
		onSquare = SeeValue[m.Promotion()]
	}

	diagonal := p.Pieces[White][Bishop] | p.Pieces[Black][Bishop] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	straight := p.Pieces[White][Rook] | p.Pieces[Black][Rook] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]

	occ := p.AllOccupied &^ SquareBB(from)
	attackers := p.AttackersTo(to, occ) & occ
	side := m.Color()

	d := 1
	for ; d < len(gain); d++ {
		side = side.Other()
		ours := attackers & p.Occupied[side]
		if ours == 0 {
			break
		}
		pt := Pawn
		for ours&p.Pieces[side][pt] == 0 {
			pt++
		}
		// The king may only take last.
		if pt == King && attackers&p.Occupied[side.Other()] != 0 {
			break
		}

		gain[d] = onSquare - gain[d-1]
		onSquare = SeeValue[pt]

		occ &^= SquareBB((ours & p.Pieces[side][pt]).LSB())
		if pt == Pawn || pt == Bishop || pt == Queen {
			attackers |= t.BishopAttacks(to, occ) & diagonal
		}
		if pt == Rook || pt == Queen {
			attackers |= t.RookAttacks(to, occ) & straight
		}
		attackers &= occ
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}
	return gain[0]
}
