package board

// Color is the side owning a piece or having the move.
type Color uint8

const (
	White Color = iota
	Black
	NoColor
)

// Other returns the opposing color.
func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	}
	return "none"
}

// PieceType is a piece kind without color.
type PieceType uint8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
	NoPieceType
)

const pieceLetters = "pnbrqk"

// Char returns the lowercase letter for pt, or 0 for NoPieceType.
func (pt PieceType) Char() byte {
	if pt >= NoPieceType {
		return 0
	}
	return pieceLetters[pt]
}

func (pt PieceType) String() string {
	return [...]string{"pawn", "knight", "bishop", "rook", "queen", "king", "none"}[min(pt, NoPieceType)]
}

// SeeValue holds the exchange values used by SEE and capture ordering.
var SeeValue = [7]int{100, 320, 330, 500, 900, 20000, 0}

// Piece packs a PieceType and Color as type + 6*color.
type Piece uint8

const (
	WhitePawn Piece = iota
	WhiteKnight
	WhiteBishop
	WhiteRook
	WhiteQueen
	WhiteKing
	BlackPawn
	BlackKnight
	BlackBishop
	BlackRook
	BlackQueen
	BlackKing
	NoPiece
)

// NewPiece returns the colored piece, or NoPiece for out-of-range inputs.
func NewPiece(pt PieceType, c Color) Piece {
	if pt >= NoPieceType || c >= NoColor {
		return NoPiece
	}
	return Piece(pt) + 6*Piece(c)
}

func (p Piece) Type() PieceType {
	if p >= NoPiece {
		return NoPieceType
	}
	return PieceType(p % 6)
}

func (p Piece) Color() Color {
	if p >= NoPiece {
		return NoColor
	}
	return Color(p / 6)
}

// String returns the FEN letter, uppercase for white.
func (p Piece) String() string {
	if p >= NoPiece {
		return "."
	}
	return string("PNBRQKpnbrqk"[p])
}

// PieceFromChar maps a FEN letter to a piece; unknown letters give NoPiece.
func PieceFromChar(ch byte) Piece {
	for i := 0; i < 12; i++ {
		if "PNBRQKpnbrqk"[i] == ch {
			return Piece(i)
		}
	}
	return NoPiece
}
