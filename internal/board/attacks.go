package board

// AttackersTo returns the pieces of both colors attacking sq under occupancy occ.
func (p *Position) AttackersTo(sq Square, occ Bitboard) Bitboard {
	t := p.t
	bishops := p.Pieces[White][Bishop] | p.Pieces[Black][Bishop] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	rooks := p.Pieces[White][Rook] | p.Pieces[Black][Rook] | p.Pieces[White][Queen] | p.Pieces[Black][Queen]
	return t.pawn[Black][sq]&p.Pieces[White][Pawn] |
		t.pawn[White][sq]&p.Pieces[Black][Pawn] |
		t.knight[sq]&(p.Pieces[White][Knight]|p.Pieces[Black][Knight]) |
		t.king[sq]&(p.Pieces[White][King]|p.Pieces[Black][King]) |
		t.BishopAttacks(sq, occ)&bishops |
		t.RookAttacks(sq, occ)&rooks
}

// AttackersBy returns the pieces of side c attacking sq under occupancy occ.
// A piece of each kind is placed on sq and its attack set intersected with
// c's pieces of the same kind.
func (p *Position) AttackersBy(sq Square, c Color, occ Bitboard) Bitboard {
	t := p.t
	pc := &p.Pieces[c]
	return t.pawn[c.Other()][sq]&pc[Pawn] |
		t.knight[sq]&pc[Knight] |
		t.king[sq]&pc[King] |
		t.BishopAttacks(sq, occ)&(pc[Bishop]|pc[Queen]) |
		t.RookAttacks(sq, occ)&(pc[Rook]|pc[Queen])
}

// IsAttacked reports whether side c attacks sq in the current position.
func (p *Position) IsAttacked(sq Square, c Color) bool {
	return p.AttackersBy(sq, c, p.AllOccupied) != 0
}

// GivesCheck reports whether the pseudo-legal move m checks the opponent,
// directly or by discovery. Castling and en passant are resolved by making the move.
func (p *Position) GivesCheck(m Move) bool {
	us := m.Color()
	them := us.Other()
	ksq := p.KingSquare(them)
	if m.IsCastle() || m.IsEnPassant() {
		p.MakeMove(m)
		check := p.InCheck()
		p.UnmakeMove()
		return check
	}

	from, to := m.From(), m.To()
	occ := p.AllOccupied&^SquareBB(from) | SquareBB(to)
	pt := m.Piece()
	if m.IsPromotion() {
		pt = m.Promotion()
	}
	if p.t.Attacks(pt, us, to, occ).Has(ksq) {
		return true
	}

	// Discovered: a slider of ours now sees the king through from.
	sliders := p.t.BishopAttacks(ksq, occ)&(p.Pieces[us][Bishop]|p.Pieces[us][Queen]) |
		p.t.RookAttacks(ksq, occ)&(p.Pieces[us][Rook]|p.Pieces[us][Queen])
	return sliders&^SquareBB(from) != 0
}
