package board

const zobristSeed = 0x98F107A2BEEF1234

// zobristKeys are the per-feature contributions XORed into the structural hash.
type zobristKeys struct {
	piece    [2][6][64]uint64
	ep       [8]uint64 // by file
	castling [16]uint64
	side     uint64 // present when black is to move
}

// xorshift64star is a tiny deterministic generator so hashes are stable across runs.
type xorshift64star uint64

func (x *xorshift64star) next() uint64 {
	s := uint64(*x)
	s ^= s >> 12
	s ^= s << 25
	s ^= s >> 27
	*x = xorshift64star(s)
	return s * 0x2545F4914F6CDD1D
}

func (z *zobristKeys) init(seed uint64) {
	rng := xorshift64star(seed)
	for c := range z.piece {
		for pt := range z.piece[c] {
			for sq := range z.piece[c][pt] {
				z.piece[c][pt][sq] = rng.next()
			}
		}
	}
	for i := range z.ep {
		z.ep[i] = rng.next()
	}
	for i := range z.castling {
		z.castling[i] = rng.next()
	}
	z.side = rng.next()
}

// PieceKey returns the hash contribution of a c piece of kind pt on sq.
func (t *Tables) PieceKey(c Color, pt PieceType, sq Square) uint64 {
	return t.keys.piece[c][pt][sq]
}

// computeHashes recomputes the structural and king+pawn hashes from scratch.
func (p *Position) computeHashes() (hash, kingPawn uint64) {
	k := &p.t.keys
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for bb := p.Pieces[c][pt]; bb != 0; {
				sq := bb.PopLSB()
				hash ^= k.piece[c][pt][sq]
				if pt == Pawn || pt == King {
					kingPawn ^= k.piece[c][pt][sq]
				}
			}
		}
	}
	st := p.state()
	if st.Side == Black {
		hash ^= k.side
	}
	hash ^= k.castling[st.Castling]
	if st.EnPassant != NoSquare {
		hash ^= k.ep[st.EnPassant.File()]
	}
	return hash, kingPawn
}

// RecomputeHash returns the structural hash summed from scratch, for
// consistency checks against the incrementally maintained one.
func (p *Position) RecomputeHash() uint64 {
	h, _ := p.computeHashes()
	return h
}

// RecomputeKingPawnKey returns the king+pawn hash summed from scratch.
func (p *Position) RecomputeKingPawnKey() uint64 {
	_, kp := p.computeHashes()
	return kp
}
