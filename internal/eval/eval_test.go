package eval

import (
	"testing"

	"github.com/hailam/chesscore/internal/board"
)

var testTables = board.NewTables()

var evalFENs = []string{
	board.StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"8/5pk1/6p1/3P4/8/8/5PPP/6K1 b - - 0 40",
	"4k3/8/8/8/8/8/4P3/4K3 w - - 0 1",
	"6k1/5ppp/8/8/8/8/1p3PPP/6K1 w - - 0 1",
}

func mustParse(t *testing.T, fen string) *board.Position {
	t.Helper()
	p, err := board.ParseFEN(testTables, fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return p
}

func TestMirrorSymmetry(t *testing.T) {
	e := New()
	check := func(p *board.Position) {
		t.Helper()
		got, mirrored := e.Evaluate(p), e.Evaluate(p.Mirror())
		if got != mirrored {
			t.Errorf("%s: Evaluate = %d, mirrored = %d", p.FEN(), got, mirrored)
		}
	}

	for _, fen := range evalFENs {
		p := mustParse(t, fen)
		check(p)

		// Walk a deterministic line of legal moves from each position
		var ml board.MoveList
		for ply := range 30 {
			ml.Clear()
			p.GenerateLegal(&ml)
			if ml.Len() == 0 {
				break
			}
			p.MakeMove(ml.Get((ply*7 + 3) % ml.Len()))
			check(p)
		}
	}
}

func TestPawnCacheConsistent(t *testing.T) {
	warm := New()
	for _, fen := range evalFENs {
		p := mustParse(t, fen)
		first := warm.Evaluate(p)
		second := warm.Evaluate(p)
		fresh := New().Evaluate(p)
		if first != second || first != fresh {
			t.Errorf("%s: evaluations differ: %d, %d, fresh %d", fen, first, second, fresh)
		}
	}
}

func TestStartPositionIsTempo(t *testing.T) {
	if got := New().Evaluate(mustParse(t, board.StartFEN)); got != tempoBonus {
		t.Errorf("Evaluate(start) = %d, want %d", got, tempoBonus)
	}
}

func TestMaterialAdvantage(t *testing.T) {
	tests := []struct {
		fen  string
		sign int
	}{
		{"4k3/8/8/8/8/8/8/3QK3 w - - 0 1", 1},
		{"4k3/8/8/8/8/8/8/3QK3 b - - 0 1", -1},
		{"3rk3/8/8/8/8/8/8/4K3 w - - 0 1", -1},
		{"3rk3/8/8/8/8/8/8/4K3 b - - 0 1", 1},
	}
	e := New()
	for _, tc := range tests {
		p := mustParse(t, tc.fen)
		if got := e.Evaluate(p); got*tc.sign <= 0 {
			t.Errorf("%s: Evaluate = %d, want sign %d", tc.fen, got, tc.sign)
		}
		if got := Material(p); got*tc.sign <= 0 {
			t.Errorf("%s: Material = %d, want sign %d", tc.fen, got, tc.sign)
		}
	}
}

func TestPassedPawnDetected(t *testing.T) {
	e := New()
	p := mustParse(t, "4k3/8/8/3P4/8/8/8/4K3 w - - 0 1")
	_, _, passed := e.pawnStructure(p)
	if !passed.Has(board.NewSquare(3, 4)) {
		t.Errorf("passed = %v, want d5 set", passed)
	}

	p = mustParse(t, "4k3/2p5/8/3P4/8/8/8/4K3 w - - 0 1")
	_, _, passed = New().pawnStructure(p)
	if passed != 0 {
		t.Errorf("passed = %v, want none", passed)
	}
}

func TestPawnTable(t *testing.T) {
	pt := NewPawnTable(1)
	if _, ok := pt.Probe(0); ok {
		t.Error("zero key reported as hit")
	}
	pt.Store(PawnEntry{Key: 0x1234, Mg: 5, Eg: -7})
	got, ok := pt.Probe(0x1234)
	if !ok || got.Mg != 5 || got.Eg != -7 {
		t.Errorf("Probe = %+v, %v", got, ok)
	}
	pt.Clear()
	if _, ok := pt.Probe(0x1234); ok {
		t.Error("entry survived Clear")
	}
}
