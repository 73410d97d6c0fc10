package board

// Move is a full move record, valid only in the position that produced it.
//
//	bits  0-5   from square
//	bits  6-11  to square
//	bits 12-14  moving piece type
//	bit  15     moving side
//	bit  16     capture flag
//	bits 17-19  captured piece type
//	bit  20     promotion flag
//	bits 21-23  promotion piece type
//	bit  24     castle flag
//	bit  25     castle wing (0 king side, 1 queen side)
//	bit  26     en-passant flag
//	bit  27     null move marker
type Move uint32

const (
	moveCapture   Move = 1 << 16
	movePromotion Move = 1 << 20
	moveCastle    Move = 1 << 24
	moveQueenWing Move = 1 << 25
	moveEnPassant Move = 1 << 26
)

const (
	// NoMove is the "no move" sentinel: root snapshots, parse failures, empty hash moves.
	NoMove Move = 0
	// NullMove marks a passed turn on the snapshot stack.
	NullMove Move = 1 << 27
)

// NewMove builds a quiet move of a c piece of kind pt.
func NewMove(from, to Square, pt PieceType, c Color) Move {
	return Move(from) | Move(to)<<6 | Move(pt)<<12 | Move(c)<<15
}

// WithCapture marks m as capturing a piece of kind victim.
func (m Move) WithCapture(victim PieceType) Move {
	return m | moveCapture | Move(victim)<<17
}

// WithPromotion marks m as promoting to pt.
func (m Move) WithPromotion(pt PieceType) Move {
	return m | movePromotion | Move(pt)<<21
}

func newCastle(from, to Square, c Color, queenSide bool) Move {
	m := NewMove(from, to, King, c) | moveCastle
	if queenSide {
		m |= moveQueenWing
	}
	return m
}

func newEnPassant(from, to Square, c Color) Move {
	return NewMove(from, to, Pawn, c).WithCapture(Pawn) | moveEnPassant
}

func (m Move) From() Square         { return Square(m & 0x3F) }
func (m Move) To() Square           { return Square(m >> 6 & 0x3F) }
func (m Move) Piece() PieceType     { return PieceType(m >> 12 & 7) }
func (m Move) Color() Color         { return Color(m >> 15 & 1) }
func (m Move) IsCapture() bool      { return m&moveCapture != 0 }
func (m Move) Captured() PieceType  { return PieceType(m >> 17 & 7) }
func (m Move) IsPromotion() bool    { return m&movePromotion != 0 }
func (m Move) Promotion() PieceType { return PieceType(m >> 21 & 7) }
func (m Move) IsCastle() bool       { return m&moveCastle != 0 }
func (m Move) IsQueenSide() bool    { return m&moveQueenWing != 0 }
func (m Move) IsEnPassant() bool    { return m&moveEnPassant != 0 }

// IsNoisy reports captures and promotions, the moves quiescence searches.
func (m Move) IsNoisy() bool {
	return m&(moveCapture|movePromotion) != 0
}

// CapturedSquare is where the captured piece stood; it differs from To only for en passant.
func (m Move) CapturedSquare() Square {
	if m.IsEnPassant() {
		return NewSquare(m.To().File(), m.From().Rank())
	}
	return m.To()
}

// Compact drops everything but from, to and promotion.
func (m Move) Compact() CompactMove {
	if m == NoMove || m == NullMove {
		return 0
	}
	c := CompactMove(m.From()) | CompactMove(m.To())<<6
	if m.IsPromotion() {
		c |= CompactMove(m.Promotion()) << 12
	}
	return c
}

// String renders coordinate notation such as "e2e4" or "a7a8q".
func (m Move) String() string {
	if m == NoMove || m == NullMove {
		return "0000"
	}
	return m.Compact().String()
}

// CompactMove is the 16-bit from/to/promotion form stored in the transposition
// table. It must be re-expanded against a position with ExpandMove before use.
//
//	bits  0-5   from square
//	bits  6-11  to square
//	bits 12-14  promotion piece type, 0 if none
type CompactMove uint16

func (c CompactMove) From() Square { return Square(c & 0x3F) }
func (c CompactMove) To() Square   { return Square(c >> 6 & 0x3F) }

// Promotion returns the promotion kind, or NoPieceType.
func (c CompactMove) Promotion() PieceType {
	if pt := PieceType(c >> 12 & 7); pt != Pawn {
		return pt
	}
	return NoPieceType
}

func (c CompactMove) String() string {
	if c == 0 {
		return "0000"
	}
	s := c.From().String() + c.To().String()
	if pt := c.Promotion(); pt != NoPieceType {
		s += string(pt.Char())
	}
	return s
}

// ParseCompact reads 4-5 character coordinate notation without a position.
// It returns 0 when the text is not a well-formed move.
func ParseCompact(s string) CompactMove {
	if len(s) != 4 && len(s) != 5 {
		return 0
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return 0
	}
	to, err := ParseSquare(s[2:4])
	if err != nil || from == to {
		return 0
	}
	c := CompactMove(from) | CompactMove(to)<<6
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			c |= CompactMove(Knight) << 12
		case 'b':
			c |= CompactMove(Bishop) << 12
		case 'r':
			c |= CompactMove(Rook) << 12
		case 'q':
			c |= CompactMove(Queen) << 12
		default:
			return 0
		}
	}
	return c
}

// MaxMoves bounds the number of pseudo-legal moves in any reachable position.
const MaxMoves = 256

// MoveList is a fixed-capacity move buffer that avoids allocation during search.
type MoveList struct {
	moves [MaxMoves]Move
	count int
}

func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

func (ml *MoveList) Len() int          { return ml.count }
func (ml *MoveList) Get(i int) Move    { return ml.moves[i] }
func (ml *MoveList) Set(i int, m Move) { ml.moves[i] = m }
func (ml *MoveList) Swap(i, j int)     { ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i] }
func (ml *MoveList) Clear()            { ml.count = 0 }
func (ml *MoveList) Slice() []Move     { return ml.moves[:ml.count] }

// Contains reports whether m is in the list.
func (ml *MoveList) Contains(m Move) bool {
	for _, x := range ml.moves[:ml.count] {
		if x == m {
			return true
		}
	}
	return false
}
