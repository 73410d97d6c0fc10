package board

// Tables holds every precomputed lookup the board needs: leaper and slider
// attacks, between/line masks, castling masks and the hashing keys. It is
// built once by NewTables and never mutated afterwards, so one value can be
// shared by all search workers without synchronization.
type Tables struct {
	knight [64]Bitboard
	king   [64]Bitboard
	pawn   [2][64]Bitboard

	bishopMagics [64]magic
	rookMagics   [64]magic
	bishopTable  []Bitboard
	rookTable    []Bitboard

	between [64][64]Bitboard
	line    [64][64]Bitboard

	// castleMask[sq] lists the rights lost when a move touches sq.
	castleMask [64]CastlingRights

	keys zobristKeys
}

// NewTables builds the attack and hashing tables.
func NewTables() *Tables {
	t := &Tables{
		bishopTable: make([]Bitboard, bishopTableSize),
		rookTable:   make([]Bitboard, rookTableSize),
	}
	t.initLeapers()
	buildSliders(&t.bishopMagics, t.bishopTable, &bishopFactors, &bishopDirs)
	buildSliders(&t.rookMagics, t.rookTable, &rookFactors, &rookDirs)
	t.initLines()
	t.initCastleMasks()
	t.keys.init(zobristSeed)
	return t
}

func (t *Tables) initLeapers() {
	for sq := A1; sq <= H8; sq++ {
		b := SquareBB(sq)

		t.knight[sq] = (b<<17)&NotFileA | (b<<15)&NotFileH |
			(b>>15)&NotFileA | (b>>17)&NotFileH |
			(b<<10)&NotFileAB | (b<<6)&NotFileGH |
			(b>>6)&NotFileAB | (b>>10)&NotFileGH

		t.king[sq] = b.North() | b.South() | b.East() | b.West() |
			b.NorthEast() | b.NorthWest() | b.SouthEast() | b.SouthWest()

		t.pawn[White][sq] = b.NorthEast() | b.NorthWest()
		t.pawn[Black][sq] = b.SouthEast() | b.SouthWest()
	}
}

// initLines derives between and line masks from empty-board slider attacks.
func (t *Tables) initLines() {
	for a := A1; a <= H8; a++ {
		for _, dirs := range []*[4][2]int{&bishopDirs, &rookDirs} {
			ray := slide(a, 0, dirs)
			for b := A1; b <= H8; b++ {
				if !ray.Has(b) {
					continue
				}
				t.between[a][b] = slide(a, SquareBB(b), dirs) & slide(b, SquareBB(a), dirs)
				t.line[a][b] = (ray&slide(b, 0, dirs) | SquareBB(a) | SquareBB(b))
			}
		}
	}
}

func (t *Tables) initCastleMasks() {
	t.castleMask[E1] = WhiteKingSide | WhiteQueenSide
	t.castleMask[H1] = WhiteKingSide
	t.castleMask[A1] = WhiteQueenSide
	t.castleMask[E8] = BlackKingSide | BlackQueenSide
	t.castleMask[H8] = BlackKingSide
	t.castleMask[A8] = BlackQueenSide
}

func (t *Tables) KnightAttacks(sq Square) Bitboard { return t.knight[sq] }
func (t *Tables) KingAttacks(sq Square) Bitboard   { return t.king[sq] }

// PawnAttacks returns the capture targets of a c pawn on sq; occupancy is irrelevant.
func (t *Tables) PawnAttacks(c Color, sq Square) Bitboard { return t.pawn[c][sq] }

// PawnPushes returns the push targets of a c pawn on sq given occupancy occ:
// the square ahead if empty, and from the starting rank the one beyond it too.
func (t *Tables) PawnPushes(c Color, sq Square, occ Bitboard) Bitboard {
	one := SquareBB(sq).Forward(c) &^ occ
	if one == 0 || sq.RelativeRank(c) != 1 {
		return one
	}
	return one | one.Forward(c)&^occ
}

func (t *Tables) BishopAttacks(sq Square, occ Bitboard) Bitboard {
	return t.bishopTable[t.bishopMagics[sq].index(occ)]
}

func (t *Tables) RookAttacks(sq Square, occ Bitboard) Bitboard {
	return t.rookTable[t.rookMagics[sq].index(occ)]
}

func (t *Tables) QueenAttacks(sq Square, occ Bitboard) Bitboard {
	return t.BishopAttacks(sq, occ) | t.RookAttacks(sq, occ)
}

// Attacks dispatches on piece kind. Pawns report capture targets only.
func (t *Tables) Attacks(pt PieceType, c Color, sq Square, occ Bitboard) Bitboard {
	switch pt {
	case Pawn:
		return t.pawn[c][sq]
	case Knight:
		return t.knight[sq]
	case Bishop:
		return t.BishopAttacks(sq, occ)
	case Rook:
		return t.RookAttacks(sq, occ)
	case Queen:
		return t.QueenAttacks(sq, occ)
	case King:
		return t.king[sq]
	}
	return 0
}

// Between returns the squares strictly between a and b, empty if they are not aligned.
func (t *Tables) Between(a, b Square) Bitboard { return t.between[a][b] }

// Line returns the full board line through a and b, empty if they are not aligned.
func (t *Tables) Line(a, b Square) Bitboard { return t.line[a][b] }

// Aligned reports whether c lies on the line through a and b.
func (t *Tables) Aligned(a, b, c Square) bool { return t.line[a][b].Has(c) }
