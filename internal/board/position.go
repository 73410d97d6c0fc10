package board

import (
	"fmt"
	"strings"
)

// CastlingRights holds one bit per side and wing.
type CastlingRights uint8

const (
	WhiteKingSide CastlingRights = 1 << iota // K
	WhiteQueenSide                           // Q
	BlackKingSide                            // k
	BlackQueenSide                           // q

	NoCastling  CastlingRights = 0
	AllCastling                = WhiteKingSide | WhiteQueenSide | BlackKingSide | BlackQueenSide
)

// String returns the FEN castling field.
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	var sb strings.Builder
	for i, ch := range "KQkq" {
		if cr&(1<<i) != 0 {
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}

// Has reports whether c may still castle on the given wing.
func (cr CastlingRights) Has(c Color, queenSide bool) bool {
	return cr&castleRight(c, queenSide) != 0
}

func castleRight(c Color, queenSide bool) CastlingRights {
	r := WhiteKingSide
	if queenSide {
		r = WhiteQueenSide
	}
	return r << (2 * c)
}

// Snapshot is one entry of the position history. Everything except piece
// placement lives here, so unmake restores it by popping the stack.
type Snapshot struct {
	Move          Move // NoMove for the root, NullMove for a passed turn
	Side          Color
	Castling      CastlingRights
	EnPassant     Square
	Rule50        int
	PliesFromNull int
	FullMove      int
	Hash          uint64
	KingPawnKey   uint64
	Counts        [2][6]uint8
	Checkers      Bitboard
}

// Position is a board plus its snapshot history. A Position belongs to one
// goroutine; workers use Clone.
type Position struct {
	t *Tables

	Pieces      [2][6]Bitboard
	Occupied    [2]Bitboard
	AllOccupied Bitboard

	board   [64]Piece
	history []Snapshot
}

// NewPosition returns the standard starting position.
func NewPosition(t *Tables) *Position {
	p, err := ParseFEN(t, StartFEN)
	if err != nil {
		panic(err)
	}
	return p
}

// Clone returns a deep copy with its own history.
func (p *Position) Clone() *Position {
	c := *p
	c.history = make([]Snapshot, len(p.history), max(cap(p.history), 128))
	copy(c.history, p.history)
	return &c
}

func (p *Position) state() *Snapshot {
	return &p.history[len(p.history)-1]
}

func (p *Position) Tables() *Tables                 { return p.t }
func (p *Position) SideToMove() Color               { return p.state().Side }
func (p *Position) Castling() CastlingRights        { return p.state().Castling }
func (p *Position) EnPassant() Square               { return p.state().EnPassant }
func (p *Position) Rule50() int                     { return p.state().Rule50 }
func (p *Position) FullMove() int                   { return p.state().FullMove }
func (p *Position) Hash() uint64                    { return p.state().Hash }
func (p *Position) KingPawnKey() uint64             { return p.state().KingPawnKey }
func (p *Position) Checkers() Bitboard              { return p.state().Checkers }
func (p *Position) InCheck() bool                   { return p.state().Checkers != 0 }
func (p *Position) LastMove() Move                  { return p.state().Move }
func (p *Position) PieceAt(sq Square) Piece         { return p.board[sq] }
func (p *Position) KingSquare(c Color) Square       { return p.Pieces[c][King].LSB() }
func (p *Position) Count(c Color, pt PieceType) int { return int(p.state().Counts[c][pt]) }

// Ply is the number of moves made since the position was constructed.
func (p *Position) Ply() int {
	return len(p.history) - 1
}

// NonPawnPieces counts knights, bishops, rooks and queens of side c.
func (p *Position) NonPawnPieces(c Color) int {
	n := p.state().Counts[c]
	return int(n[Knight]) + int(n[Bishop]) + int(n[Rook]) + int(n[Queen])
}

func (p *Position) addPiece(c Color, pt PieceType, sq Square) {
	b := SquareBB(sq)
	p.Pieces[c][pt] |= b
	p.Occupied[c] |= b
	p.AllOccupied |= b
	p.board[sq] = NewPiece(pt, c)
}

func (p *Position) removePiece(c Color, pt PieceType, sq Square) {
	b := SquareBB(sq)
	p.Pieces[c][pt] &^= b
	p.Occupied[c] &^= b
	p.AllOccupied &^= b
	p.board[sq] = NoPiece
}

func (p *Position) movePiece(c Color, pt PieceType, from, to Square) {
	b := SquareBB(from) | SquareBB(to)
	p.Pieces[c][pt] ^= b
	p.Occupied[c] ^= b
	p.AllOccupied ^= b
	p.board[from] = NoPiece
	p.board[to] = NewPiece(pt, c)
}

// castleRookSquares returns the rook's origin and destination for a castle
// whose king lands on kingTo.
func castleRookSquares(kingTo Square, queenSide bool) (from, to Square) {
	rank := kingTo.Rank()
	if queenSide {
		return NewSquare(0, rank), NewSquare(3, rank)
	}
	return NewSquare(7, rank), NewSquare(5, rank)
}

// MakeMove plays m, which must be pseudo-legal in the current position.
func (p *Position) MakeMove(m Move) {
	p.history = append(p.history, *p.state())
	st := p.state()
	k := &p.t.keys

	us := st.Side
	them := us.Other()
	from, to, pt := m.From(), m.To(), m.Piece()

	st.Move = m
	st.Rule50++
	st.PliesFromNull++
	if us == Black {
		st.FullMove++
	}
	if st.EnPassant != NoSquare {
		st.Hash ^= k.ep[st.EnPassant.File()]
		st.EnPassant = NoSquare
	}

	if m.IsCapture() {
		victim, capSq := m.Captured(), m.CapturedSquare()
		p.removePiece(them, victim, capSq)
		st.Hash ^= k.piece[them][victim][capSq]
		if victim == Pawn {
			st.KingPawnKey ^= k.piece[them][Pawn][capSq]
		}
		st.Counts[them][victim]--
		st.Rule50 = 0
	}

	if m.IsCastle() {
		rf, rt := castleRookSquares(to, m.IsQueenSide())
		p.movePiece(us, Rook, rf, rt)
		st.Hash ^= k.piece[us][Rook][rf] ^ k.piece[us][Rook][rt]
	}

	p.movePiece(us, pt, from, to)
	delta := k.piece[us][pt][from] ^ k.piece[us][pt][to]
	st.Hash ^= delta
	if pt == Pawn || pt == King {
		st.KingPawnKey ^= delta
	}

	if pt == Pawn {
		st.Rule50 = 0
		if m.IsPromotion() {
			promo := m.Promotion()
			p.removePiece(us, Pawn, to)
			p.addPiece(us, promo, to)
			st.Hash ^= k.piece[us][Pawn][to] ^ k.piece[us][promo][to]
			st.KingPawnKey ^= k.piece[us][Pawn][to]
			st.Counts[us][Pawn]--
			st.Counts[us][promo]++
		} else if to^from == 16 {
			// Only record a target the opponent can actually capture on.
			ep := (from + to) / 2
			if p.t.pawn[us][ep]&p.Pieces[them][Pawn] != 0 {
				st.EnPassant = ep
				st.Hash ^= k.ep[ep.File()]
			}
		}
	}

	if lost := st.Castling & (p.t.castleMask[from] | p.t.castleMask[to]); lost != 0 {
		st.Hash ^= k.castling[st.Castling]
		st.Castling &^= lost
		st.Hash ^= k.castling[st.Castling]
	}

	st.Side = them
	st.Hash ^= k.side
	st.Checkers = p.AttackersBy(p.KingSquare(them), us, p.AllOccupied)
}

// UnmakeMove takes back the last MakeMove.
func (p *Position) UnmakeMove() {
	m := p.state().Move
	p.history = p.history[:len(p.history)-1]

	us := m.Color()
	from, to, pt := m.From(), m.To(), m.Piece()

	if m.IsPromotion() {
		p.removePiece(us, m.Promotion(), to)
		p.addPiece(us, Pawn, to)
	}
	p.movePiece(us, pt, to, from)
	if m.IsCastle() {
		rf, rt := castleRookSquares(to, m.IsQueenSide())
		p.movePiece(us, Rook, rt, rf)
	}
	if m.IsCapture() {
		p.addPiece(us.Other(), m.Captured(), m.CapturedSquare())
	}
}

// MakeNullMove passes the turn. The side to move must not be in check.
func (p *Position) MakeNullMove() {
	p.history = append(p.history, *p.state())
	st := p.state()
	k := &p.t.keys

	st.Move = NullMove
	st.Rule50++
	st.PliesFromNull = 0
	if st.EnPassant != NoSquare {
		st.Hash ^= k.ep[st.EnPassant.File()]
		st.EnPassant = NoSquare
	}
	st.Side = st.Side.Other()
	st.Hash ^= k.side
	st.Checkers = 0
}

// UnmakeNullMove takes back the last MakeNullMove.
func (p *Position) UnmakeNullMove() {
	p.history = p.history[:len(p.history)-1]
}

// String renders the board with rank 8 on top, followed by FEN and hash.
func (p *Position) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d  ", rank+1)
		for file := 0; file < 8; file++ {
			sb.WriteString(p.board[NewSquare(file, rank)].String())
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\n   a b c d e f g h\n\n")
	fmt.Fprintf(&sb, "FEN: %s\n", p.FEN())
	fmt.Fprintf(&sb, "Hash: %016x\n", p.Hash())
	return sb.String()
}
