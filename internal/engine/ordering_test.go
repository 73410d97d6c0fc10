package engine

import (
	"testing"

	"github.com/hailam/chesscore/internal/board"
)

func drain(mp *MovePicker) []board.Move {
	var out []board.Move
	for m := mp.Next(); m != board.NoMove; m = mp.Next() {
		out = append(out, m)
	}
	return out
}

func TestPickerYieldsEveryMoveOnce(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
	}
	for _, fen := range fens {
		p := mustParse(t, fen)
		var all board.MoveList
		p.GeneratePseudoLegal(&all)

		mo := NewMoveOrderer()
		hash := all.Get(all.Len() / 2)
		mo.UpdateKillers(all.Get(all.Len()-1), 3)

		var mp MovePicker
		mp.Init(p, mo, hash, board.NoMove, 3, false)
		got := drain(&mp)

		if len(got) == 0 || got[0] != hash {
			t.Errorf("%s: first move = %v, want hash move %v", fen, got, hash)
		}
		if len(got) != all.Len() {
			t.Errorf("%s: picker yielded %d moves, generator %d", fen, len(got), all.Len())
		}
		seen := make(map[board.Move]bool, len(got))
		for _, m := range got {
			if seen[m] {
				t.Errorf("%s: %v yielded twice", fen, m)
			}
			seen[m] = true
			if !all.Contains(m) {
				t.Errorf("%s: %v is not pseudo-legal", fen, m)
			}
		}
	}
}

func TestPickerStages(t *testing.T) {
	// Nxb2 wins a pawn, Qxd5 loses the queen to exd5
	p := mustParse(t, "4k3/8/4p3/3p4/N7/8/1p6/3Q1K2 w - - 0 1")
	good := mustMove(t, p, "a4b2")
	bad := mustMove(t, p, "d1d5")
	killer := mustMove(t, p, "f1g2")
	favored := mustMove(t, p, "d1h5")

	mo := NewMoveOrderer()
	mo.UpdateKillers(killer, 0)
	mo.UpdateHistory(favored, nil, 20)

	var mp MovePicker
	mp.Init(p, mo, board.NoMove, board.NoMove, 0, false)
	got := drain(&mp)

	if got[0] != good {
		t.Errorf("first move = %v, want winning capture %v", got[0], good)
	}
	if got[1] != killer {
		t.Errorf("second move = %v, want killer %v", got[1], killer)
	}
	if got[2] != favored {
		t.Errorf("third move = %v, want history move %v", got[2], favored)
	}
	if last := got[len(got)-1]; last != bad {
		t.Errorf("last move = %v, want losing capture %v", last, bad)
	}

	// Noisy only
	mp.Init(p, mo, killer, board.NoMove, 0, true)
	noisy := drain(&mp)
	if len(noisy) != 2 || noisy[0] != good || noisy[1] != bad {
		t.Errorf("skipQuiets yielded %v, want [%v %v]", noisy, good, bad)
	}
}

func TestPickerBadCaptureFlag(t *testing.T) {
	p := mustParse(t, "4k3/8/4p3/3p4/N7/8/1p6/3Q1K2 w - - 0 1")
	var mp MovePicker
	mp.Init(p, NewMoveOrderer(), board.NoMove, board.NoMove, 0, true)

	if m := mp.Next(); mp.InBadCaptures() {
		t.Errorf("%v reported as a losing capture", m)
	}
	if m := mp.Next(); !mp.InBadCaptures() {
		t.Errorf("%v not reported as a losing capture", m)
	}
}

func TestEscapeBonus(t *testing.T) {
	p := mustParse(t, "4k3/8/4p3/3p4/N7/8/1p6/3Q1K2 w - - 0 1")
	escape := mustMove(t, p, "a4c3")
	other := mustMove(t, p, "f1e1")
	// black threatens the knight on a4
	threat := board.NewMove(board.NewSquare(1, 4), board.NewSquare(0, 3), board.Queen, board.Black)

	var mp MovePicker
	mp.Init(p, NewMoveOrderer(), board.NoMove, threat, 0, false)
	if got := mp.quietScore(escape); got != EscapeBonus {
		t.Errorf("quietScore(escape) = %d, want %d", got, EscapeBonus)
	}
	if got := mp.quietScore(other); got != 0 {
		t.Errorf("quietScore(other) = %d, want 0", got)
	}
}

func TestKillersAndHistory(t *testing.T) {
	p := board.NewPosition(testTables)
	a := mustMove(t, p, "e2e4")
	b := mustMove(t, p, "d2d4")
	c := mustMove(t, p, "g1f3")

	mo := NewMoveOrderer()
	mo.UpdateKillers(a, 5)
	mo.UpdateKillers(a, 5)
	if k := mo.Killers(5); k[0] != a || k[1] != board.NoMove {
		t.Errorf("duplicate killer shifted slots: %v", k)
	}
	mo.UpdateKillers(b, 5)
	if k := mo.Killers(5); k[0] != b || k[1] != a {
		t.Errorf("Killers = %v, want [%v %v]", k, b, a)
	}

	mo.UpdateHistory(a, []board.Move{b, c}, 4)
	if mo.History(a) != 16 || mo.History(b) != -16 || mo.History(c) != -16 {
		t.Errorf("History = %d %d %d, want 16 -16 -16", mo.History(a), mo.History(b), mo.History(c))
	}

	// Saturation halves the whole table
	for range 200 {
		mo.UpdateHistory(a, nil, 10)
	}
	if h := mo.History(a); h >= historyMax || h <= 0 {
		t.Errorf("History after saturation = %d", h)
	}

	before := mo.History(b)
	mo.Clear()
	if k := mo.Killers(5); k[0] != board.NoMove {
		t.Errorf("Clear kept killers %v", k)
	}
	if h := mo.History(b); h != before/2 {
		t.Errorf("History after Clear = %d, want %d", h, before/2)
	}
}
