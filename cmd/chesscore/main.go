// Command chesscore runs the engine as a UCI engine or from the command
// line.
//
//	chesscore [flags] [uci|perft|analyze|bench] [subcommand flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/hailam/chesscore/internal/board"
	"github.com/hailam/chesscore/internal/engine"
	"github.com/hailam/chesscore/internal/storage"
	"github.com/hailam/chesscore/internal/tablebase"
	"github.com/hailam/chesscore/internal/uci"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	hashMB    = flag.Int("hash", 64, "transposition table size in MB")
	threads   = flag.Int("threads", 1, "search threads")
	tbLimit   = flag.Int("tb-limit", 0, "probe tablebases at or below this many pieces (0 disables)")
	tbRemote  = flag.String("tb-remote", "", "lichess-compatible tablebase endpoint (\"default\" for the public one)")
	storeDir  = flag.String("store", "", "analysis store directory (\"default\" for the user data dir)")
	logLevel  = flag.String("log-level", "info", "log level: debug, info, warn, error")
	tbTimeout = flag.Duration("tb-timeout", 2*time.Second, "remote tablebase request timeout")
)

// benchFENs are searched by the bench subcommand.
var benchFENs = []string{
	startFEN,
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"r4rk1/1pp1qppp/p1np1n2/2b1p1B1/2B1P1b1/P1NP1N2/1PP1QPPP/R4RK1 w - - 0 10",
	"2r3k1/pp3ppp/2n1b3/q2pP3/3P4/P1P2N2/5PPP/R2QR1K1 b - - 0 18",
	"6k1/5pp1/7p/8/8/1P5P/5PP1/6K1 w - - 0 40",
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [uci|perft|analyze|bench] [args]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := setupLogger(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := "uci", []string(nil)
	if flag.NArg() > 0 {
		cmd, args = flag.Arg(0), flag.Args()[1:]
	}

	var err error
	switch cmd {
	case "uci":
		err = runUCI(ctx)
	case "perft":
		err = runPerft(ctx, args)
	case "analyze":
		err = runAnalyze(ctx, args)
	case "bench":
		err = runBench(ctx, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		os.Exit(1)
	}
}

func setupLogger(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("bad -log-level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
	return nil
}

// prober builds the tablebase chain selected by -tb-remote. The returned
// cleanup func must be called on exit.
func prober() (tablebase.Prober, func(), error) {
	if *tbRemote == "" {
		return tablebase.NoopProber{}, func() {}, nil
	}
	endpoint := *tbRemote
	if endpoint == "default" {
		endpoint = tablebase.DefaultLichessEndpoint
	}
	cached, err := tablebase.NewCachedProber(tablebase.NewLichessProber(endpoint, *tbTimeout), 1<<16)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("endpoint", endpoint).Int("limit", *tbLimit).Msg("remote tablebase enabled")
	return cached, func() {
		log.Debug().Float64("hit_rate", cached.HitRate()).Msg("tablebase cache closed")
		cached.Close()
	}, nil
}

func newEngine(tables *board.Tables) (*engine.Engine, func(), error) {
	eng := engine.NewEngine(tables, *hashMB)
	tb, cleanup, err := prober()
	if err != nil {
		return nil, nil, err
	}
	eng.SetTablebase(tb)
	return eng, cleanup, nil
}

func runUCI(ctx context.Context) error {
	tables := board.NewTables()
	eng, cleanup, err := newEngine(tables)
	if err != nil {
		return err
	}
	defer cleanup()

	protocol := uci.New(eng, tables, os.Stdout)
	protocol.SetThreads(*threads)
	protocol.SetTablebaseLimit(*tbLimit)
	return protocol.Run(ctx, os.Stdin)
}

func runPerft(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("perft", flag.ExitOnError)
	fen := fs.String("fen", startFEN, "position to count from")
	depth := fs.Int("depth", 5, "depth in plies")
	fs.Parse(args)

	pos, err := board.ParseFEN(board.NewTables(), *fen)
	if err != nil {
		return err
	}
	start := time.Now()
	entries, err := engine.Divide(ctx, pos, *depth)
	if err != nil {
		return err
	}
	var total uint64
	for _, e := range entries {
		fmt.Printf("%s: %d\n", e.Move, e.Nodes)
		total += e.Nodes
	}
	elapsed := time.Since(start)
	fmt.Printf("\nNodes searched: %d\nTime: %dms\n", total, elapsed.Milliseconds())
	log.Debug().Int("depth", *depth).Uint64("nodes", total).Dur("elapsed", elapsed).Msg("perft done")
	return nil
}

func openStore() (*storage.Store, error) {
	dir := *storeDir
	if dir == "" {
		return nil, nil
	}
	if dir == "default" {
		var err error
		if dir, err = storage.DefaultAnalysisDir(); err != nil {
			return nil, err
		}
	}
	return storage.Open(dir)
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	fen := fs.String("fen", startFEN, "position to analyze")
	depth := fs.Int("depth", 0, "maximum depth (0 for no limit)")
	movetime := fs.Duration("movetime", 5*time.Second, "time budget")
	fresh := fs.Bool("fresh", false, "search even when the store has an answer")
	fs.Parse(args)

	tables := board.NewTables()
	pos, err := board.ParseFEN(tables, *fen)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		if !*fresh {
			a, err := store.Get(pos.Hash(), pos.FEN())
			switch {
			case err == nil && a.Depth >= *depth:
				log.Info().Int("depth", a.Depth).Time("searched", a.Searched).Msg("using stored analysis")
				printAnalysis(pos, a)
				return nil
			case err != nil && !errors.Is(err, storage.ErrNotFound):
				log.Warn().Err(err).Msg("analysis store read failed")
			}
		}
	}

	eng, cleanup, err := newEngine(tables)
	if err != nil {
		return err
	}
	defer cleanup()
	eng.OnProgress = func(info engine.Info) {
		log.Info().Int("depth", info.Depth).Str("score", engine.ScoreString(info.Score)).
			Uint64("nodes", info.Nodes).Msg("iteration")
	}

	cfg := engine.DefaultSearchConfig()
	cfg.MaxDepth = *depth
	cfg.SoftTime, cfg.HardTime = *movetime, *movetime
	cfg.Workers = max(*threads, 1)
	cfg.MaxParallel = max(runtime.GOMAXPROCS(0), 1)
	cfg.TBProbeLimit = *tbLimit

	res, err := eng.Search(ctx, pos, cfg)
	if errors.Is(err, engine.ErrNoLegalMoves) {
		fmt.Printf("no legal moves (%s)\n", engine.ScoreString(res.Score))
		return nil
	}
	if err != nil {
		return err
	}

	a := storage.Analysis{
		FEN:     pos.FEN(),
		Move:    res.Move.String(),
		Score:   res.Score,
		Depth:   res.Depth,
		Nodes:   res.Nodes,
		PV:      lo.Map(res.PV, func(m board.Move, _ int) string { return m.String() }),
		Elapsed: res.Elapsed,
	}
	if p := res.Ponder(); p != board.NoMove {
		a.Ponder = p.String()
	}
	if store != nil {
		if _, err := store.Put(pos.Hash(), a); err != nil {
			log.Warn().Err(err).Msg("analysis store write failed")
		}
	}
	printAnalysis(pos, a)
	return nil
}

func printAnalysis(pos *board.Position, a storage.Analysis) {
	var moves []board.Move
	line := pos.Clone()
	for _, s := range a.PV {
		m := line.ParseMove(s)
		if m == board.NoMove {
			break
		}
		moves = append(moves, m)
		line.MakeMove(m)
	}
	fmt.Printf("best %s  score %s  depth %d  nodes %d  time %s\n",
		a.Move, engine.ScoreString(a.Score), a.Depth, a.Nodes, a.Elapsed.Round(time.Millisecond))
	fmt.Printf("pv %s\n", strings.Join(pos.SANLine(moves), " "))
}

func runBench(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	depth := fs.Int("depth", 8, "search depth per position")
	fs.Parse(args)

	tables := board.NewTables()
	eng := engine.NewEngine(tables, *hashMB)
	nodes, elapsed, err := eng.Bench(ctx, benchFENs, *depth)
	if err != nil {
		return err
	}
	nps := uint64(0)
	if ms := elapsed.Milliseconds(); ms > 0 {
		nps = nodes * 1000 / uint64(ms)
	}
	fmt.Printf("positions %d\nnodes %d\ntime %dms\nnps %d\n", len(benchFENs), nodes, elapsed.Milliseconds(), nps)
	return nil
}
