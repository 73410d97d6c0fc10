package board

// IsRepetitionDraw reports a draw by repetition. The current position is a
// draw when it occurred twice before, or once before within the last
// searchPly plies, i.e. inside the search tree. The scan never crosses an
// irreversible move or a null move.
func (p *Position) IsRepetitionDraw(searchPly int) bool {
	st := p.state()
	last := len(p.history) - 1
	end := min(st.Rule50, st.PliesFromNull, last)
	seen := 0
	for i := 4; i <= end; i += 2 {
		if p.history[last-i].Hash != st.Hash {
			continue
		}
		if i < searchPly {
			return true
		}
		seen++
		if seen == 2 {
			return true
		}
	}
	return false
}

// IsFiftyMoveDraw reports a draw by the fifty-move rule. A mate delivered
// on the hundredth ply still counts, so it is only a draw with a legal move.
func (p *Position) IsFiftyMoveDraw() bool {
	if p.state().Rule50 < 100 {
		return false
	}
	return !p.InCheck() || p.HasLegalMove()
}

// IsMaterialDraw reports positions where neither side can force mate:
// no pawns, rooks or queens, and either at most one minor piece on the
// board or at most one minor piece per side.
func (p *Position) IsMaterialDraw() bool {
	for c := White; c <= Black; c++ {
		if p.Pieces[c][Pawn]|p.Pieces[c][Rook]|p.Pieces[c][Queen] != 0 {
			return false
		}
	}
	white := p.Count(White, Knight) + p.Count(White, Bishop)
	black := p.Count(Black, Knight) + p.Count(Black, Bishop)
	return white+black <= 1 || (white <= 1 && black <= 1)
}

// Mirror returns the position flipped vertically with colors swapped, so
// the side to move changes too. History is not carried over.
func (p *Position) Mirror() *Position {
	src := p.state()
	m := &Position{t: p.t, history: make([]Snapshot, 1, 128)}
	for sq := range m.board {
		m.board[sq] = NoPiece
	}
	st := m.state()
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for bb := p.Pieces[c][pt]; bb != 0; {
				m.addPiece(c.Other(), pt, bb.PopLSB().FlipVertical())
			}
			st.Counts[c.Other()][pt] = src.Counts[c][pt]
		}
	}
	st.Side = src.Side.Other()
	st.Castling = src.Castling>>2 | (src.Castling&3)<<2
	st.EnPassant = NoSquare
	if src.EnPassant != NoSquare {
		st.EnPassant = src.EnPassant.FlipVertical()
	}
	st.Rule50 = src.Rule50
	st.PliesFromNull = src.Rule50
	st.FullMove = src.FullMove
	st.Checkers = src.Checkers.FlipVertical()
	st.Hash, st.KingPawnKey = m.computeHashes()
	return m
}
