// Package uci drives the engine over the line-oriented Universal Chess
// Interface protocol.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/tablebase"
)

// Option limits advertised to the GUI.
const (
	defaultHashMB  = 64
	maxHashMB      = 65536
	maxThreads     = 256
	defaultTBLimit = 0
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	tables   *board.Tables
	position *board.Position

	outMu sync.Mutex
	out   io.Writer

	threads     int
	maxParallel int
	tbLimit     int

	// Search state
	searching  bool
	cancel     context.CancelFunc
	released   chan struct{} // closed by stop to release an infinite search
	searchDone chan struct{}
}

// New creates a protocol handler writing to out.
func New(eng *engine.Engine, tables *board.Tables, out io.Writer) *UCI {
	u := &UCI{
		engine:      eng,
		tables:      tables,
		position:    board.NewPosition(tables),
		out:         out,
		threads:     1,
		maxParallel: engine.DefaultSearchConfig().MaxParallel,
		tbLimit:     defaultTBLimit,
	}
	eng.OnProgress = u.sendInfo
	return u
}

// SetThreads sets the number of search workers.
func (u *UCI) SetThreads(n int) { u.threads = clampInt(n, 1, maxThreads) }

// SetTablebaseLimit sets the largest piece count probed in tablebases.
func (u *UCI) SetTablebaseLimit(n int) { u.tbLimit = max(n, 0) }

func (u *UCI) send(format string, args ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintf(u.out, format+"\n", args...)
}

// Run reads commands from in until quit, end of input or ctx is done.
// A running search is stopped before Run returns.
func (u *UCI) Run(ctx context.Context, in io.Reader) error {
	defer u.handleStop()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd, args := parts[0], parts[1:]
		log.Debug().Str("cmd", line).Msg("uci command")

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.send("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "setoption":
			u.handleSetOption(args)
		case "quit":
			return nil
		// Debug commands
		case "d":
			u.send("%s", u.position)
			u.send("Fen: %s", u.position.FEN())
			u.send("Key: %016X", u.position.Hash())
		case "perft":
			u.handlePerft(ctx, args)
		default:
			u.send("info string unknown command: %s", cmd)
		}
	}
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	u.send("id name chesscore")
	u.send("id author the chesscore authors")
	u.send("")
	u.send("option name Hash type spin default %d min 1 max %d", defaultHashMB, maxHashMB)
	u.send("option name Threads type spin default 1 min 1 max %d", maxThreads)
	u.send("option name MaxParallel type spin default %d min 1 max %d", engine.DefaultSearchConfig().MaxParallel, maxThreads)
	u.send("option name SyzygyProbeLimit type spin default %d min 0 max 7", defaultTBLimit)
	u.send("option name Clear Hash type button")
	u.send("uciok")
}

// handleNewGame resets the engine for a new game.
func (u *UCI) handleNewGame() {
	u.handleStop()
	u.engine.ClearHash()
	u.position = board.NewPosition(u.tables)
}

// handlePosition parses and sets up a position. On any error the previous
// position is kept.
// Formats:
//   - position startpos [moves e2e4 e7e5 ...]
//   - position fen <fen> [moves ...]
func (u *UCI) handlePosition(args []string) {
	pos, err := parsePosition(u.tables, args)
	if err != nil {
		log.Warn().Err(err).Strs("args", args).Msg("rejected position")
		u.send("info string %v", err)
		return
	}
	u.position = pos
}

func parsePosition(t *board.Tables, args []string) (*board.Position, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty position command", board.ErrMalformedInput)
	}

	movesAt := slices.Index(args, "moves")
	if movesAt < 0 {
		movesAt = len(args)
	}

	var pos *board.Position
	switch args[0] {
	case "startpos":
		pos = board.NewPosition(t)
	case "fen":
		var err error
		if pos, err = board.ParseFEN(t, strings.Join(args[1:movesAt], " ")); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: position %q", board.ErrMalformedInput, args[0])
	}

	if movesAt < len(args) {
		for _, s := range args[movesAt+1:] {
			m := pos.ParseMove(s)
			if m == board.NoMove {
				return nil, fmt.Errorf("%w: illegal move %s", board.ErrMalformedInput, s)
			}
			pos.MakeMove(m)
		}
	}
	return pos, nil
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth       int
	Nodes       uint64
	MoveTime    time.Duration
	Infinite    bool
	WTime       time.Duration
	BTime       time.Duration
	WInc        time.Duration
	BInc        time.Duration
	MovesToGo   int
	Perft       int
	SearchMoves []string
}

// ParseGoOptions parses "go" command arguments. Unknown tokens are skipped.
func ParseGoOptions(args []string) GoOptions {
	var opts GoOptions

	next := func(i *int) string {
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		return ""
	}
	millis := func(i *int) time.Duration {
		ms, _ := strconv.Atoi(next(i))
		return time.Duration(max(ms, 0)) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			opts.Depth, _ = strconv.Atoi(next(&i))
		case "nodes":
			opts.Nodes, _ = strconv.ParseUint(next(&i), 10, 64)
		case "movetime":
			opts.MoveTime = millis(&i)
		case "infinite":
			opts.Infinite = true
		case "wtime":
			opts.WTime = millis(&i)
		case "btime":
			opts.BTime = millis(&i)
		case "winc":
			opts.WInc = millis(&i)
		case "binc":
			opts.BInc = millis(&i)
		case "movestogo":
			opts.MovesToGo, _ = strconv.Atoi(next(&i))
		case "perft":
			opts.Perft, _ = strconv.Atoi(next(&i))
		case "searchmoves":
			// consumes every following move token
			for i+1 < len(args) && looksLikeMove(args[i+1]) {
				i++
				opts.SearchMoves = append(opts.SearchMoves, args[i])
			}
		}
	}
	return opts
}

// searchConfig converts GoOptions into an engine configuration for pos.
func (u *UCI) searchConfig(pos *board.Position, opts GoOptions) engine.SearchConfig {
	cfg := engine.DefaultSearchConfig()
	cfg.Workers = u.threads
	cfg.MaxParallel = u.maxParallel
	cfg.TBProbeLimit = u.tbLimit
	cfg.MaxDepth = clampInt(opts.Depth, 0, engine.MaxDepth)
	cfg.MaxNodes = opts.Nodes
	cfg.RootMoves = lo.FilterMap(opts.SearchMoves, func(s string, _ int) (board.Move, bool) {
		m := pos.ParseMove(s)
		return m, m != board.NoMove
	})

	if opts.Infinite {
		return cfg
	}

	clock, inc := opts.WTime, opts.WInc
	if pos.SideToMove() == board.Black {
		clock, inc = opts.BTime, opts.BInc
	}
	switch {
	case opts.MoveTime > 0:
		cfg.SoftTime, cfg.HardTime = opts.MoveTime, opts.MoveTime
	case clock > 0:
		cfg.SoftTime, cfg.HardTime = engine.AllocateTime(clock, inc, opts.MovesToGo, pos.Ply())
	}
	return cfg
}

// handleGo starts a search in the background.
func (u *UCI) handleGo(args []string) {
	u.handleStop()

	opts := ParseGoOptions(args)
	if opts.Perft > 0 {
		u.handlePerft(context.Background(), []string{strconv.Itoa(opts.Perft)})
		return
	}

	pos := u.position.Clone()
	cfg := u.searchConfig(pos, opts)

	ctx, cancel := context.WithCancel(context.Background())
	u.searching = true
	u.cancel = cancel
	u.released = make(chan struct{})
	u.searchDone = make(chan struct{})
	released, done := u.released, u.searchDone

	go func() {
		defer close(done)

		res, err := u.engine.Search(ctx, pos, cfg)
		if opts.Infinite {
			// the protocol forbids bestmove before stop
			<-released
		}
		switch {
		case errors.Is(err, engine.ErrNoLegalMoves):
			u.send("bestmove 0000")
			return
		case err != nil:
			log.Error().Err(err).Msg("search failed")
			u.send("info string search failed: %v", err)
			u.send("bestmove 0000")
			return
		}

		if p := res.Ponder(); p != board.NoMove {
			u.send("bestmove %s ponder %s", res.Move, p)
		} else {
			u.send("bestmove %s", res.Move)
		}
	}()
}

// sendInfo outputs search progress in UCI format.
func (u *UCI) sendInfo(info engine.Info) {
	parts := []string{
		fmt.Sprintf("depth %d", info.Depth),
		fmt.Sprintf("seldepth %d", info.SelDepth),
		"score " + engine.ScoreString(info.Score),
		fmt.Sprintf("nodes %d", info.Nodes),
		fmt.Sprintf("nps %d", info.NPS),
		fmt.Sprintf("hashfull %d", info.HashFull),
		fmt.Sprintf("time %d", info.Elapsed.Milliseconds()),
	}
	if len(info.PV) > 0 {
		parts = append(parts, "pv "+engine.PVString(info.PV))
	}
	u.send("info %s", strings.Join(parts, " "))
}

// handleStop stops the current search and waits for its bestmove.
func (u *UCI) handleStop() {
	if !u.searching {
		return
	}
	u.cancel()
	close(u.released)
	<-u.searchDone
	u.searching = false
}

// handleSetOption processes "setoption name <name> [value <value>]".
func (u *UCI) handleSetOption(args []string) {
	var name, value []string
	target := &name
	for _, arg := range args {
		switch arg {
		case "name":
			target = &name
		case "value":
			target = &value
		default:
			*target = append(*target, arg)
		}
	}
	key := strings.ToLower(strings.Join(name, " "))
	val := strings.Join(value, " ")

	u.handleStop()

	spin := func(low, high int) (int, bool) {
		n, err := strconv.Atoi(val)
		if err != nil || n < low || n > high {
			log.Warn().Str("option", key).Str("value", val).Msg("option value out of range")
			u.send("info string invalid value %q for %s", val, key)
			return 0, false
		}
		return n, true
	}

	switch key {
	case "hash":
		if mb, ok := spin(1, maxHashMB); ok {
			u.engine.ResizeHash(mb)
		}
	case "threads":
		if n, ok := spin(1, maxThreads); ok {
			u.threads = n
		}
	case "maxparallel":
		if n, ok := spin(1, maxThreads); ok {
			u.maxParallel = n
		}
	case "syzygyprobelimit":
		if n, ok := spin(0, 7); ok {
			u.tbLimit = n
		}
	case "clear hash":
		u.engine.ClearHash()
	default:
		u.send("info string unknown option: %s", key)
	}
}

// SetTablebase installs a prober for the engine.
func (u *UCI) SetTablebase(p tablebase.Prober) {
	u.engine.SetTablebase(p)
}

// handlePerft prints the subtree size of every root move and the total.
func (u *UCI) handlePerft(ctx context.Context, args []string) {
	depth := 5
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			depth = n
		}
	}

	start := time.Now()
	entries, err := engine.Divide(ctx, u.position, depth)
	if err != nil {
		u.send("info string perft failed: %v", err)
		return
	}
	elapsed := time.Since(start)

	var total uint64
	for _, e := range entries {
		u.send("%s: %d", e.Move, e.Nodes)
		total += e.Nodes
	}
	u.send("")
	u.send("Nodes searched: %d", total)
	u.send("Time: %dms", elapsed.Milliseconds())
}

func clampInt(x, low, high int) int {
	return min(max(x, low), high)
}

// looksLikeMove reports whether s has the shape of a coordinate move.
func looksLikeMove(s string) bool {
	return (len(s) == 4 || len(s) == 5) &&
		s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8' &&
		s[2] >= 'a' && s[2] <= 'h' && s[3] >= '1' && s[3] <= '8'
}
