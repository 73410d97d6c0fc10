package board

import "testing"

var testTables = NewTables()

func mustParse(t *testing.T, fen string) *Position {
	t.Helper()
	p, err := ParseFEN(testTables, fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return p
}

// perft counts leaf nodes at depth, using the same legal-move enumeration
// the engine uses.
func perft(p *Position, depth int) int64 {
	var ml MoveList
	p.GenerateLegal(&ml)
	if depth == 1 {
		return int64(ml.Len())
	}
	var nodes int64
	for _, m := range ml.Slice() {
		p.MakeMove(m)
		nodes += perft(p, depth-1)
		p.UnmakeMove()
	}
	return nodes
}

func TestPerft(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		depth int
		want  int64
		long  bool
	}{
		{"startpos", StartFEN, 1, 20, false},
		{"startpos", StartFEN, 2, 400, false},
		{"startpos", StartFEN, 3, 8902, false},
		{"startpos", StartFEN, 4, 197281, false},
		{"startpos", StartFEN, 5, 4865609, true},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", 1, 48, false},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", 2, 2039, false},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", 3, 97862, false},
		{"kiwipete", "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -", 4, 4085603, true},
		{"position3", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -", 4, 43238, false},
		{"position3", "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -", 5, 674624, true},
		{"position4", "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1", 3, 9467, false},
		{"position5", "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8", 3, 62379, false},
		{"ep-pin", "8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1", 1, 6, false},
		{"ep-pin", "8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1", 2, 94, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.long && testing.Short() {
				t.Skip("long perft")
			}
			p := mustParse(t, tc.fen)
			if got := perft(p, tc.depth); got != tc.want {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.want)
			}
		})
	}
}

func TestEnPassantPinnedIsIllegal(t *testing.T) {
	p := mustParse(t, "8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1")
	var ml MoveList
	p.GenerateLegal(&ml)
	for _, m := range ml.Slice() {
		if m.IsEnPassant() {
			t.Errorf("en passant %v exposes the king and must be illegal", m)
		}
	}
	if m := p.ParseMove("e4d3"); m != NoMove {
		t.Errorf("ParseMove(e4d3) = %v, want NoMove", m)
	}
}

// walk visits every position reachable in depth plies and checks that make
// followed by unmake restores placement and both hashes, and that the
// incremental hashes match a recomputation.
func walk(t *testing.T, p *Position, depth int) {
	t.Helper()
	if h := p.RecomputeHash(); h != p.Hash() {
		t.Fatalf("%s: hash %016x, recomputed %016x", p.FEN(), p.Hash(), h)
	}
	if k := p.RecomputeKingPawnKey(); k != p.KingPawnKey() {
		t.Fatalf("%s: king+pawn key %016x, recomputed %016x", p.FEN(), p.KingPawnKey(), k)
	}
	if depth == 0 {
		return
	}
	var ml MoveList
	p.GenerateLegal(&ml)
	for _, m := range ml.Slice() {
		pieces, board, hash, kp := p.Pieces, p.board, p.Hash(), p.KingPawnKey()
		p.MakeMove(m)
		walk(t, p, depth-1)
		p.UnmakeMove()
		if p.Pieces != pieces || p.board != board || p.Hash() != hash || p.KingPawnKey() != kp {
			t.Fatalf("%s: make/unmake of %v did not restore the position", p.FEN(), m)
		}
	}
}

func TestMakeUnmakeRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -",
		"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	}
	for _, fen := range fens {
		walk(t, mustParse(t, fen), 3)
	}
}

func TestNullMoveRestoresState(t *testing.T) {
	p := mustParse(t, "rnbqkbnr/ppp1pppp/8/3pP3/8/8/PPPP1PPP/RNBQKBNR b KQkq - 0 2")
	p.MakeMove(p.ParseMove("f7f5"))
	if p.EnPassant() != F6 {
		t.Fatalf("EnPassant() = %v, want f6", p.EnPassant())
	}
	hash := p.Hash()
	p.MakeNullMove()
	if p.EnPassant() != NoSquare || p.SideToMove() != Black {
		t.Fatalf("null move: ep %v side %v", p.EnPassant(), p.SideToMove())
	}
	if p.Hash() != p.RecomputeHash() {
		t.Fatalf("null move hash %016x, recomputed %016x", p.Hash(), p.RecomputeHash())
	}
	p.UnmakeNullMove()
	if p.Hash() != hash || p.EnPassant() != F6 {
		t.Errorf("UnmakeNullMove did not restore the snapshot")
	}
}
