package uci

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
)

var testTables = board.NewTables()

// session runs a protocol handler over pipes.
type session struct {
	t     *testing.T
	u     *UCI
	in    *io.PipeWriter
	lines chan string
	done  chan error
}

func newSession(t *testing.T) *session {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	s := &session{
		t:     t,
		u:     New(engine.NewEngine(testTables, 4), testTables, outW),
		in:    inW,
		lines: make(chan string, 1024),
		done:  make(chan error, 1),
	}
	go func() {
		sc := bufio.NewScanner(outR)
		for sc.Scan() {
			s.lines <- sc.Text()
		}
		close(s.lines)
	}()
	go func() {
		s.done <- s.u.Run(context.Background(), inR)
		outW.Close()
	}()
	t.Cleanup(func() {
		inW.Close()
		select {
		case <-s.done:
		case <-time.After(10 * time.Second):
			t.Error("Run did not return")
		}
	})
	return s
}

func (s *session) write(cmd string) {
	s.t.Helper()
	if _, err := io.WriteString(s.in, cmd+"\n"); err != nil {
		s.t.Fatalf("write %q: %v", cmd, err)
	}
}

// expect reads output until a line starting with prefix and returns it
// together with everything read before it.
func (s *session) expect(prefix string) (string, []string) {
	s.t.Helper()
	var seen []string
	timeout := time.After(20 * time.Second)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.t.Fatalf("output closed waiting for %q, saw %q", prefix, seen)
			}
			if strings.HasPrefix(line, prefix) {
				return line, seen
			}
			seen = append(seen, line)
		case <-timeout:
			s.t.Fatalf("timed out waiting for %q, saw %q", prefix, seen)
		}
	}
}

func TestHandshake(t *testing.T) {
	s := newSession(t)
	s.write("uci")
	_, seen := s.expect("uciok")
	if !strings.HasPrefix(seen[0], "id name") {
		t.Errorf("first line = %q, want id name", seen[0])
	}
	found := false
	for _, l := range seen {
		if strings.HasPrefix(l, "option name Hash") {
			found = true
		}
	}
	if !found {
		t.Errorf("Hash option not advertised: %q", seen)
	}
	s.write("isready")
	s.expect("readyok")
}

func TestGoDepth(t *testing.T) {
	s := newSession(t)
	s.write("position startpos moves e2e4 e7e5")
	s.write("go depth 3")
	line, seen := s.expect("bestmove")

	infos := 0
	for _, l := range seen {
		if strings.HasPrefix(l, "info depth") {
			infos++
			if !strings.Contains(l, " score cp ") || !strings.Contains(l, " pv ") {
				t.Errorf("malformed info line %q", l)
			}
		}
	}
	if infos != 3 {
		t.Errorf("got %d info lines, want 3", infos)
	}

	pos, err := parsePosition(testTables, strings.Fields("startpos moves e2e4 e7e5"))
	if err != nil {
		t.Fatal(err)
	}
	fields := strings.Fields(line)
	if m := pos.ParseMove(fields[1]); m == board.NoMove {
		t.Errorf("bestmove %q is not legal", fields[1])
	}
}

func TestGoMateReportsMate(t *testing.T) {
	s := newSession(t)
	s.write("position fen 6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	s.write("go depth 4")
	line, seen := s.expect("bestmove")
	if line != "bestmove a1a8" {
		t.Errorf("got %q, want bestmove a1a8", line)
	}
	if last := seen[len(seen)-1]; !strings.Contains(last, "score mate 1") {
		t.Errorf("last info %q does not report mate 1", last)
	}
}

func TestGoInfiniteWaitsForStop(t *testing.T) {
	s := newSession(t)
	s.write("position startpos")
	s.write("go infinite")
	time.Sleep(50 * time.Millisecond)
	s.write("stop")
	line, _ := s.expect("bestmove")
	if line == "bestmove 0000" {
		t.Errorf("infinite search returned no move")
	}
}

func TestGoMovetimeAndSearchmoves(t *testing.T) {
	s := newSession(t)
	s.write("position startpos")
	s.write("go movetime 100 searchmoves h2h3")
	line, _ := s.expect("bestmove")
	if !strings.HasPrefix(line, "bestmove h2h3") {
		t.Errorf("got %q, want bestmove h2h3", line)
	}
}

func TestGoWithoutLegalMoves(t *testing.T) {
	s := newSession(t)
	s.write("position fen rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	s.write("go depth 2")
	if line, _ := s.expect("bestmove"); line != "bestmove 0000" {
		t.Errorf("got %q, want bestmove 0000", line)
	}
}

func TestBadPositionKeepsPrevious(t *testing.T) {
	s := newSession(t)
	s.write("position startpos moves e2e4")
	s.write("position startpos moves e2e5")
	s.expect("info string")
	s.write("d")
	line, _ := s.expect("Fen:")
	if want := "Fen: rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"; line != want {
		t.Errorf("got %q, want %q", line, want)
	}
}

func TestSetOption(t *testing.T) {
	s := newSession(t)
	s.write("setoption name Threads value 3")
	s.write("setoption name MaxParallel value 2")
	s.write("setoption name SyzygyProbeLimit value 5")
	s.write("setoption name Hash value 2")
	s.write("setoption name Clear Hash")
	s.write("setoption name Threads value 0")
	s.expect("info string invalid value")
	s.write("isready")
	s.expect("readyok")

	if s.u.threads != 3 || s.u.maxParallel != 2 || s.u.tbLimit != 5 {
		t.Errorf("options = %d %d %d, want 3 2 5", s.u.threads, s.u.maxParallel, s.u.tbLimit)
	}
}

func TestPerftCommand(t *testing.T) {
	s := newSession(t)
	s.write("position startpos")
	s.write("perft 3")
	line, seen := s.expect("Nodes searched")
	if line != "Nodes searched: 8902" {
		t.Errorf("got %q, want 8902 nodes", line)
	}
	if len(seen) != 21 {
		t.Errorf("got %d divide lines, want 20 moves and a blank line", len(seen))
	}
}

func TestQuit(t *testing.T) {
	inR, inW := io.Pipe()
	u := New(engine.NewEngine(testTables, 1), testTables, io.Discard)
	done := make(chan error, 1)
	go func() { done <- u.Run(context.Background(), inR) }()

	io.WriteString(inW, "position startpos\ngo infinite\nquit\n")
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("quit did not stop a running search")
	}
	inW.Close()
}

func TestRunContextCancelled(t *testing.T) {
	inR, inW := io.Pipe()
	defer inW.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := New(engine.NewEngine(testTables, 1), testTables, io.Discard)
	if err := u.Run(ctx, inR); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestParseGoOptions(t *testing.T) {
	opts := ParseGoOptions(strings.Fields("wtime 60000 btime 55000 winc 1000 binc 900 movestogo 20 depth 9 nodes 5000 searchmoves e2e4 d2d4 movetime 250"))
	want := GoOptions{
		WTime: time.Minute, BTime: 55 * time.Second, WInc: time.Second, BInc: 900 * time.Millisecond,
		MovesToGo: 20, Depth: 9, Nodes: 5000, MoveTime: 250 * time.Millisecond,
	}
	if len(opts.SearchMoves) != 2 || opts.SearchMoves[1] != "d2d4" {
		t.Errorf("SearchMoves = %v", opts.SearchMoves)
	}
	opts.SearchMoves = nil
	if opts.WTime != want.WTime || opts.BTime != want.BTime || opts.WInc != want.WInc || opts.BInc != want.BInc ||
		opts.MovesToGo != want.MovesToGo || opts.Depth != want.Depth || opts.Nodes != want.Nodes || opts.MoveTime != want.MoveTime {
		t.Errorf("ParseGoOptions = %+v, want %+v", opts, want)
	}
}

func TestSearchConfigFromClock(t *testing.T) {
	u := New(engine.NewEngine(testTables, 1), testTables, io.Discard)
	pos := board.NewPosition(testTables)

	cfg := u.searchConfig(pos, GoOptions{WTime: time.Minute, BTime: time.Second})
	if cfg.SoftTime <= 0 || cfg.HardTime < cfg.SoftTime || cfg.HardTime > time.Minute {
		t.Errorf("white clock budget = %v / %v", cfg.SoftTime, cfg.HardTime)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cfg = u.searchConfig(pos, GoOptions{Infinite: true, WTime: time.Second})
	if cfg.SoftTime != 0 || cfg.HardTime != 0 {
		t.Errorf("infinite search has a budget %v / %v", cfg.SoftTime, cfg.HardTime)
	}

	cfg = u.searchConfig(pos, GoOptions{SearchMoves: []string{"e2e4", "e2e5", "g1f3"}})
	if len(cfg.RootMoves) != 2 {
		t.Errorf("RootMoves = %v, want the two legal ones", cfg.RootMoves)
	}
}
