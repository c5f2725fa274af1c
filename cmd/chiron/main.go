// Command chiron is the engine binary. With no arguments it speaks UCI on
// stdin/stdout; subcommands expose perft, self-play, and static evaluation.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/chiron-engine/chiron/internal/board"
	"github.com/chiron-engine/chiron/internal/engine"
	"github.com/chiron-engine/chiron/internal/nnue"
	"github.com/chiron-engine/chiron/internal/selfplay"
	"github.com/chiron-engine/chiron/internal/storage"
	"github.com/chiron-engine/chiron/internal/uci"
)

func main() {
	log := newLogger()

	args := os.Args[1:]
	command := "uci"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	var err error
	switch command {
	case "uci":
		err = runUCI(args, log)
	case "perft":
		err = runPerft(args)
	case "selfplay":
		err = runSelfplay(args, log)
	case "eval":
		err = runEval(args)
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		err = fmt.Errorf("unknown command: %s", command)
	}

	if err != nil {
		log.Error().Err(err).Str("command", command).Msg("command failed")
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("CHIRON_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: chiron [command] [flags]

commands:
  uci        speak the UCI protocol on stdin/stdout (default)
  perft      count move-generation leaf nodes
  selfplay   play engine-vs-engine games
  eval       print the static evaluation of a position`)
}

func runUCI(args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("uci", flag.ContinueOnError)
	hashMB := fs.Int("hash", 16, "transposition table size in MB")
	threads := fs.Int("threads", 1, "search threads")
	netPath := fs.String("net", "", "evaluation network file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	evaluator := nnue.NewEvaluator(*netPath)
	search := engine.NewSearch(*hashMB, evaluator)
	search.SetThreads(*threads)

	uci.New(search, evaluator, os.Stdout, log).Run(os.Stdin)
	return nil
}

func runPerft(args []string) error {
	fs := flag.NewFlagSet("perft", flag.ContinueOnError)
	depth := fs.Int("depth", 5, "perft depth")
	fen := fs.String("fen", board.StartFEN, "position to count from")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *depth < 1 {
		return fmt.Errorf("perft depth must be positive")
	}

	pos, err := board.ParseFEN(*fen)
	if err != nil {
		return err
	}

	start := time.Now()
	nodes := board.Perft(pos, *depth)
	elapsed := time.Since(start)

	fmt.Printf("perft(%d) = %d (%.2fs", *depth, nodes, elapsed.Seconds())
	if elapsed > 0 {
		fmt.Printf(", %.0f nps", float64(nodes)/elapsed.Seconds())
	}
	fmt.Println(")")
	return nil
}

func runSelfplay(args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("selfplay", flag.ContinueOnError)
	games := fs.Int("games", 1, "number of games")
	depth := fs.Int("depth", 6, "search depth for both sides")
	moveTime := fs.Int("movetime", 0, "milliseconds per move (0 = depth only)")
	whiteName := fs.String("white-name", "chiron-white", "name of the white engine")
	blackName := fs.String("black-name", "chiron-black", "name of the black engine")
	netPath := fs.String("net", "", "evaluation network for both sides")
	samples := fs.String("samples", "", "write zstd-compressed training samples here")
	dbDir := fs.String("db", "", "record results and ratings in this database directory")
	alternate := fs.Bool("alternate", true, "swap colors every other game")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config := selfplay.Config{
		Games: *games,
		White: selfplay.EngineConfig{
			Name:        *whiteName,
			MaxDepth:    *depth,
			MoveTimeMs:  *moveTime,
			NetworkPath: *netPath,
		},
		Black: selfplay.EngineConfig{
			Name:        *blackName,
			MaxDepth:    *depth,
			MoveTimeMs:  *moveTime,
			NetworkPath: *netPath,
		},
		AlternateColors: *alternate,
		SamplePath:      *samples,
	}

	if *dbDir != "" {
		store, err := storage.OpenAt(*dbDir)
		if err != nil {
			return err
		}
		defer store.Close()
		config.Store = store
	}

	records, err := selfplay.NewRunner(config, log).Run()
	if err != nil {
		return err
	}

	wins, losses, draws := 0, 0, 0
	for _, record := range records {
		switch record.Result {
		case "1-0":
			wins++
		case "0-1":
			losses++
		default:
			draws++
		}
	}
	fmt.Printf("played %d games: +%d -%d =%d (white perspective)\n", len(records), wins, losses, draws)
	return nil
}

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	fen := fs.String("fen", board.StartFEN, "position to evaluate")
	netPath := fs.String("net", "", "evaluation network file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pos, err := board.ParseFEN(*fen)
	if err != nil {
		return err
	}

	evaluator := nnue.NewEvaluator(*netPath)
	acc := evaluator.NewAccumulator()
	evaluator.Build(pos, &acc)
	score := evaluator.Evaluate(pos, &acc)

	fmt.Printf("%+d cp (side to move: %s)\n", score, pos.SideToMove)
	return nil
}
