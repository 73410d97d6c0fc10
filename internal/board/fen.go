package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedInput is wrapped by every text parsing failure in this package.
var ErrMalformedInput = errors.New("malformed input")

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN builds a position from Forsyth-Edwards notation. The clock fields
// are optional and default to "0 1".
func ParseFEN(t *Tables, fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 || len(parts) > 6 {
		return nil, fmt.Errorf("%w: fen needs 4 to 6 fields, got %d", ErrMalformedInput, len(parts))
	}

	p := &Position{t: t, history: make([]Snapshot, 1, 128)}
	for sq := range p.board {
		p.board[sq] = NoPiece
	}
	st := p.state()
	st.EnPassant = NoSquare
	st.FullMove = 1

	if err := p.parsePlacement(parts[0]); err != nil {
		return nil, err
	}

	switch parts[1] {
	case "w":
		st.Side = White
	case "b":
		st.Side = Black
	default:
		return nil, fmt.Errorf("%w: side to move %q", ErrMalformedInput, parts[1])
	}

	if parts[2] != "-" {
		for _, ch := range parts[2] {
			i := strings.IndexRune("KQkq", ch)
			if i < 0 {
				return nil, fmt.Errorf("%w: castling field %q", ErrMalformedInput, parts[2])
			}
			st.Castling |= 1 << i
		}
	}
	st.Castling &= p.castlingSupported()

	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return nil, err
		}
		if sq.RelativeRank(st.Side) != 5 {
			return nil, fmt.Errorf("%w: en passant square %s", ErrMalformedInput, sq)
		}
		// Kept only when a pawn can take, matching what MakeMove records.
		if p.t.pawn[st.Side.Other()][sq]&p.Pieces[st.Side][Pawn] != 0 {
			st.EnPassant = sq
		}
	}

	if len(parts) > 4 {
		n, err := strconv.Atoi(parts[4])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: halfmove clock %q", ErrMalformedInput, parts[4])
		}
		st.Rule50 = n
	}
	if len(parts) > 5 {
		n, err := strconv.Atoi(parts[5])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: fullmove number %q", ErrMalformedInput, parts[5])
		}
		st.FullMove = n
	}

	if p.Pieces[White][King].PopCount() != 1 || p.Pieces[Black][King].PopCount() != 1 {
		return nil, fmt.Errorf("%w: each side needs exactly one king", ErrMalformedInput)
	}
	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return nil, fmt.Errorf("%w: pawn on back rank", ErrMalformedInput)
	}

	us := st.Side
	if p.AttackersBy(p.KingSquare(us.Other()), us, p.AllOccupied) != 0 {
		return nil, fmt.Errorf("%w: side not to move is in check", ErrMalformedInput)
	}
	st.Checkers = p.AttackersBy(p.KingSquare(us), us.Other(), p.AllOccupied)
	st.PliesFromNull = st.Rule50
	st.Hash, st.KingPawnKey = p.computeHashes()
	return p, nil
}

func (p *Position) parsePlacement(placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: placement needs 8 ranks, got %d", ErrMalformedInput, len(ranks))
	}
	st := p.state()
	for i, row := range ranks {
		rank, file := 7-i, 0
		for j := 0; j < len(row); j++ {
			ch := row[j]
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			pc := PieceFromChar(ch)
			if pc == NoPiece {
				return fmt.Errorf("%w: piece letter %q", ErrMalformedInput, ch)
			}
			if file > 7 {
				return fmt.Errorf("%w: rank %d overflows", ErrMalformedInput, rank+1)
			}
			p.addPiece(pc.Color(), pc.Type(), NewSquare(file, rank))
			st.Counts[pc.Color()][pc.Type()]++
			file++
		}
		if file != 8 {
			return fmt.Errorf("%w: rank %d has %d squares", ErrMalformedInput, rank+1, file)
		}
	}
	return nil
}

// castlingSupported drops rights whose king or rook is not on its home square.
func (p *Position) castlingSupported() CastlingRights {
	var cr CastlingRights
	for c := White; c <= Black; c++ {
		if !p.Pieces[c][King].Has(NewSquare(4, c.backRank())) {
			continue
		}
		rooks := p.Pieces[c][Rook]
		if rooks.Has(NewSquare(7, c.backRank())) {
			cr |= castleRight(c, false)
		}
		if rooks.Has(NewSquare(0, c.backRank())) {
			cr |= castleRight(c, true)
		}
	}
	return cr
}

func (c Color) backRank() int {
	return int(c) * 7
}

// FEN renders the position in Forsyth-Edwards notation.
func (p *Position) FEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			pc := p.board[NewSquare(file, rank)]
			if pc == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(pc.String())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	st := p.state()
	side := "w"
	if st.Side == Black {
		side = "b"
	}
	fmt.Fprintf(&sb, " %s %s %s %d %d", side, st.Castling, st.EnPassant, st.Rule50, st.FullMove)
	return sb.String()
}
