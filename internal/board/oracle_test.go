package board

import (
	"slices"
	"testing"

	"github.com/dylhunn/dragontoothmg"
	"github.com/notnil/chess"
)

var oracleFENs = []string{
	StartFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
}

func legalStrings(p *Position) []string {
	var ml MoveList
	p.GenerateLegal(&ml)
	out := make([]string, 0, ml.Len())
	for _, m := range ml.Slice() {
		out = append(out, m.String())
	}
	slices.Sort(out)
	return out
}

// TestLegalMovesMatchDragontooth compares legal move sets with an
// independent generator along every line two plies deep.
func TestLegalMovesMatchDragontooth(t *testing.T) {
	for _, fen := range oracleFENs {
		p := mustParse(t, fen)
		var ml MoveList
		p.GenerateLegal(&ml)
		for _, m := range append([]Move{NoMove}, ml.Slice()...) {
			if m != NoMove {
				p.MakeMove(m)
			}
			ref := dragontoothmg.ParseFen(p.FEN())
			var want []string
			for _, rm := range ref.GenerateLegalMoves() {
				want = append(want, rm.String())
			}
			slices.Sort(want)
			if got := legalStrings(p); !slices.Equal(got, want) {
				t.Errorf("%s: legal moves\n got %v\nwant %v", p.FEN(), got, want)
			}
			if m != NoMove {
				p.UnmakeMove()
			}
		}
	}
}

func TestSANMatchesNotnil(t *testing.T) {
	fens := append(slices.Clone(oracleFENs),
		"6k1/5ppp/8/8/8/8/8/K2R4 w - - 0 1",
		"7k/8/8/8/8/8/1R6/R5K1 w - - 0 1",
		"k7/8/8/8/N7/8/N7/7K w - - 0 1",
	)
	for _, fen := range fens {
		p := mustParse(t, fen)
		opt, err := chess.FEN(p.FEN())
		if err != nil {
			t.Fatalf("chess.FEN(%q): %v", fen, err)
		}
		game := chess.NewGame(opt)
		want := map[string]string{}
		for _, rm := range game.ValidMoves() {
			want[rm.String()] = chess.AlgebraicNotation{}.Encode(game.Position(), rm)
		}

		var ml MoveList
		p.GenerateLegal(&ml)
		for _, m := range ml.Slice() {
			if got := p.SAN(m); got != want[m.String()] {
				t.Errorf("%s: SAN(%v) = %q, want %q", fen, m, got, want[m.String()])
			}
			back, err := p.ParseSAN(p.SAN(m))
			if err != nil || back != m {
				t.Errorf("%s: ParseSAN(%q) = %v, %v; want %v", fen, p.SAN(m), back, err, m)
			}
		}
	}
}
