package board

// promotionOrder lists promotion choices, most valuable first.
var promotionOrder = [4]PieceType{Queen, Rook, Bishop, Knight}

// GenerateNoisy appends en passant captures, promotions and captures.
func (p *Position) GenerateNoisy(ml *MoveList) {
	st := p.state()
	us := st.Side
	them := us.Other()
	enemies := p.Occupied[them]
	occ := p.AllOccupied
	pawns := p.Pieces[us][Pawn]
	promoRank := Rank8
	if us == Black {
		promoRank = Rank1
	}

	if ep := st.EnPassant; ep != NoSquare {
		for from := p.t.pawn[them][ep] & pawns; from != 0; {
			ml.Add(newEnPassant(from.PopLSB(), ep, us))
		}
	}

	// Pushes onto the last rank.
	for to := pawns.Forward(us) &^ occ & promoRank; to != 0; {
		sq := to.PopLSB()
		addPromotions(ml, NewMove(pawnOrigin(sq, us), sq, Pawn, us))
	}

	// Pawn captures, promoting or not.
	for bb := pawns; bb != 0; {
		from := bb.PopLSB()
		for to := p.t.pawn[us][from] & enemies; to != 0; {
			sq := to.PopLSB()
			m := NewMove(from, sq, Pawn, us).WithCapture(p.board[sq].Type())
			if promoRank.Has(sq) {
				addPromotions(ml, m)
			} else {
				ml.Add(m)
			}
		}
	}

	for pt := Knight; pt <= King; pt++ {
		for bb := p.Pieces[us][pt]; bb != 0; {
			from := bb.PopLSB()
			for to := p.t.Attacks(pt, us, from, occ) & enemies; to != 0; {
				sq := to.PopLSB()
				ml.Add(NewMove(from, sq, pt, us).WithCapture(p.board[sq].Type()))
			}
		}
	}
}

// GenerateQuiet appends castling and non-capturing, non-promoting moves.
func (p *Position) GenerateQuiet(ml *MoveList) {
	us := p.state().Side
	occ := p.AllOccupied
	empty := ^occ
	promoRank, doubleRank := Rank8, Rank3
	if us == Black {
		promoRank, doubleRank = Rank1, Rank6
	}

	p.generateCastling(ml, us, false)
	p.generateCastling(ml, us, true)

	single := p.Pieces[us][Pawn].Forward(us) & empty
	double := (single & doubleRank).Forward(us) & empty
	for to := single &^ promoRank; to != 0; {
		sq := to.PopLSB()
		ml.Add(NewMove(pawnOrigin(sq, us), sq, Pawn, us))
	}
	for to := double; to != 0; {
		sq := to.PopLSB()
		ml.Add(NewMove(pawnOrigin(pawnOrigin(sq, us), us), sq, Pawn, us))
	}

	for pt := Knight; pt <= King; pt++ {
		for bb := p.Pieces[us][pt]; bb != 0; {
			from := bb.PopLSB()
			for to := p.t.Attacks(pt, us, from, occ) & empty; to != 0; {
				ml.Add(NewMove(from, to.PopLSB(), pt, us))
			}
		}
	}
}

// GeneratePseudoLegal appends every pseudo-legal move.
func (p *Position) GeneratePseudoLegal(ml *MoveList) {
	p.GenerateNoisy(ml)
	p.GenerateQuiet(ml)
}

// GenerateLegal appends every legal move.
func (p *Position) GenerateLegal(ml *MoveList) {
	start := ml.Len()
	p.GeneratePseudoLegal(ml)
	n := start
	for i := start; i < ml.Len(); i++ {
		if m := ml.Get(i); p.IsLegal(m) {
			ml.Set(n, m)
			n++
		}
	}
	ml.count = n
}

// HasLegalMove reports whether the side to move has any legal move.
func (p *Position) HasLegalMove() bool {
	var ml MoveList
	p.GeneratePseudoLegal(&ml)
	for _, m := range ml.Slice() {
		if p.IsLegal(m) {
			return true
		}
	}
	return false
}

func pawnOrigin(to Square, c Color) Square {
	if c == White {
		return to - 8
	}
	return to + 8
}

func addPromotions(ml *MoveList, m Move) {
	for _, pt := range promotionOrder {
		ml.Add(m.WithPromotion(pt))
	}
}

// generateCastling adds the castle on one wing when the right is held, the
// path is empty and the king's transit squares are not attacked.
func (p *Position) generateCastling(ml *MoveList, us Color, queenSide bool) {
	if m, ok := p.castle(us, queenSide); ok {
		ml.Add(m)
	}
}

func (p *Position) castle(us Color, queenSide bool) (Move, bool) {
	if !p.state().Castling.Has(us, queenSide) {
		return NoMove, false
	}
	kingFrom := NewSquare(4, us.backRank())
	rookFrom, _ := castleRookSquares(kingFrom, queenSide)
	kingTo := NewSquare(6, us.backRank())
	if queenSide {
		kingTo = NewSquare(2, us.backRank())
	}
	if p.t.between[kingFrom][rookFrom]&p.AllOccupied != 0 {
		return NoMove, false
	}
	them := us.Other()
	transit := p.t.between[kingFrom][kingTo] | SquareBB(kingFrom) | SquareBB(kingTo)
	for transit != 0 {
		if p.IsAttacked(transit.PopLSB(), them) {
			return NoMove, false
		}
	}
	return newCastle(kingFrom, kingTo, us, queenSide), true
}

// derive builds the full move for from/to/promo in this position, or NoMove
// when no pseudo-legal move matches.
func (p *Position) derive(from, to Square, promo PieceType) Move {
	st := p.state()
	us := st.Side
	pc := p.board[from]
	if from == to || pc == NoPiece || pc.Color() != us {
		return NoMove
	}
	target := p.board[to]
	if target != NoPiece && (target.Color() == us || target.Type() == King) {
		return NoMove
	}
	pt := pc.Type()
	m := NewMove(from, to, pt, us)

	switch pt {
	case Pawn:
		if to.RelativeRank(us) == 7 {
			if promo < Knight || promo > Queen {
				return NoMove
			}
			m = m.WithPromotion(promo)
		} else if promo != NoPieceType {
			return NoMove
		}
		switch {
		case to == st.EnPassant && p.t.pawn[us][from].Has(to):
			return newEnPassant(from, to, us)
		case p.t.pawn[us][from].Has(to):
			if target == NoPiece {
				return NoMove
			}
		case p.t.PawnPushes(us, from, p.AllOccupied).Has(to):
		default:
			return NoMove
		}
	case King:
		if promo != NoPieceType {
			return NoMove
		}
		if from == NewSquare(4, us.backRank()) && to.Rank() == from.Rank() && (to.File() == 6 || to.File() == 2) {
			c, ok := p.castle(us, to.File() == 2)
			if !ok {
				return NoMove
			}
			return c
		}
		if !p.t.king[from].Has(to) {
			return NoMove
		}
	default:
		if promo != NoPieceType || !p.t.Attacks(pt, us, from, p.AllOccupied).Has(to) {
			return NoMove
		}
	}

	if target != NoPiece {
		m = m.WithCapture(target.Type())
	}
	return m
}

func promotionOf(m Move) PieceType {
	if m.IsPromotion() {
		return m.Promotion()
	}
	return NoPieceType
}

// IsPseudoLegal reports whether m could have been generated in this position:
// right side, consistent capture flags, reachable geometry, promotion on the
// last rank only, and for castling a clear unattacked path.
func (p *Position) IsPseudoLegal(m Move) bool {
	if m == NoMove || m == NullMove {
		return false
	}
	return p.derive(m.From(), m.To(), promotionOf(m)) == m
}

// IsLegal reports whether the pseudo-legal move m leaves the mover's king
// safe. It recomputes attacks on the king under the occupancy the move would
// produce instead of making it.
func (p *Position) IsLegal(m Move) bool {
	if m.IsCastle() {
		return true
	}
	us := m.Color()
	them := us.Other()
	from, to := m.From(), m.To()

	if m.Piece() == King {
		occ := p.AllOccupied &^ SquareBB(from)
		return p.AttackersBy(to, them, occ)&^SquareBB(to) == 0
	}

	occ := p.AllOccupied&^SquareBB(from) | SquareBB(to)
	removed := Empty
	if m.IsCapture() {
		removed = SquareBB(m.CapturedSquare())
		occ &^= removed
		occ |= SquareBB(to)
	}
	return p.AttackersBy(p.KingSquare(us), them, occ)&^removed == 0
}

// ExpandMove re-derives a full move from its compact form and re-validates
// it. It returns NoMove unless the result is legal here.
func (p *Position) ExpandMove(c CompactMove) Move {
	if c == 0 {
		return NoMove
	}
	m := p.derive(c.From(), c.To(), c.Promotion())
	if m == NoMove || !p.IsLegal(m) {
		return NoMove
	}
	return m
}

// ParseMove reads coordinate notation such as "e2e4" or "e7e8q". It returns
// NoMove for malformed text or a move that is not legal here.
func (p *Position) ParseMove(s string) Move {
	return p.ExpandMove(ParseCompact(s))
}
