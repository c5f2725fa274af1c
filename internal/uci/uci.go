// Package uci implements the Universal Chess Interface front-end.
package uci

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/chiron-engine/chiron/internal/board"
	"github.com/chiron-engine/chiron/internal/engine"
	"github.com/chiron-engine/chiron/internal/nnue"
)

// UCI drives the engine over line-oriented text I/O. Protocol replies go to
// the writer; diagnostics are emitted as "info string" lines so GUIs pass
// them through harmlessly.
type UCI struct {
	search    *engine.Search
	evaluator *nnue.Evaluator
	position  *board.Position

	// Game hashes for repetition detection, rebuilt on every position command.
	positionHashes []uint64

	timeConfig     engine.TimeConfig
	moveOverheadMs int
	currentLimits  engine.SearchLimits

	out   io.Writer
	outMu sync.Mutex
	log   zerolog.Logger

	stopFlag   atomic.Bool
	searchDone chan struct{}
}

// New creates a UCI handler around a search and its evaluator.
func New(search *engine.Search, evaluator *nnue.Evaluator, out io.Writer, log zerolog.Logger) *UCI {
	u := &UCI{
		search:         search,
		evaluator:      evaluator,
		position:       board.NewPosition(),
		timeConfig:     engine.DefaultTimeConfig(),
		moveOverheadMs: 10,
		out:            out,
		log:            log,
	}
	u.positionHashes = []uint64{u.position.Hash}
	return u
}

// Run reads commands until quit or EOF.
func (u *UCI) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "setoption":
			u.handleSetOption(args)
		case "position":
			u.stopSearch()
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.stopSearch()
		case "quit":
			u.stopSearch()
			return
		// Debug conveniences, not part of the protocol subset.
		case "d":
			u.println(u.position.String())
		case "perft":
			u.handlePerft(args)
		default:
			u.printf("info string unknown command: %s\n", cmd)
		}
	}
}

func (u *UCI) handleUCI() {
	u.println("id name Chiron")
	u.println("id author the Chiron developers")
	u.printf("option name Hash type spin default 16 min 1 max 4096\n")
	u.printf("option name Threads type spin default 1 min 1 max 128\n")
	u.printf("option name Move Overhead type spin default %d min 0 max 5000\n", u.moveOverheadMs)
	u.printf("option name Base Time Percent type spin default %d min 1 max 100\n", int(u.timeConfig.BaseAllocation*100))
	u.printf("option name Increment Percent type spin default %d min 0 max 500\n", int(u.timeConfig.IncrementBonus*100))
	u.printf("option name Minimum Think Time type spin default %d min 1 max 10000\n", u.timeConfig.MinTimeMs)
	u.printf("option name Maximum Think Time type spin default %d min 10 max 120000\n", u.timeConfig.MaxTimeMs)
	u.println("option name EvalNetwork type string default ")
	u.println("option name Ponder type check default false")
	u.println("uciok")
}

func (u *UCI) handleNewGame() {
	u.stopSearch()
	u.position = board.NewPosition()
	u.positionHashes = []uint64{u.position.Hash}
	u.search.Clear()
}

// handlePosition parses "position startpos|fen <6 fields> [moves ...]" and
// replays the long-algebraic move list.
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	index := 0
	switch args[0] {
	case "startpos":
		u.position = board.NewPosition()
		index = 1
	case "fen":
		if len(args) < 7 {
			u.printf("info string incomplete FEN in position command\n")
			return
		}
		fen := strings.Join(args[1:7], " ")
		pos, err := board.ParseFEN(fen)
		if err != nil {
			u.printf("info string invalid FEN: %v\n", err)
			return
		}
		u.position = pos
		index = 7
	default:
		u.printf("info string unknown position mode: %s\n", args[0])
		return
	}

	u.positionHashes = u.positionHashes[:0]
	u.positionHashes = append(u.positionHashes, u.position.Hash)

	if index < len(args) && args[index] == "moves" {
		for _, token := range args[index+1:] {
			move, err := u.resolveMove(token)
			if err != nil {
				u.printf("info string %v\n", err)
				return
			}
			if _, err := u.position.MakeMove(move); err != nil {
				u.printf("info string %v\n", err)
				return
			}
			u.positionHashes = append(u.positionHashes, u.position.Hash)
		}
	}
}

// resolveMove matches a long-algebraic token against the legal moves.
func (u *UCI) resolveMove(token string) (board.Move, error) {
	parsed, err := board.ParseMove(token, u.position)
	if err != nil {
		return board.NoMove, err
	}

	legal := u.position.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.From() != parsed.From() || m.To() != parsed.To() {
			continue
		}
		if parsed.IsPromotion() {
			if m.IsPromotion() && m.Promotion() == parsed.Promotion() {
				return m, nil
			}
		} else if !m.IsPromotion() {
			return m, nil
		}
	}
	return board.NoMove, fmt.Errorf("illegal move received: %s", token)
}

func (u *UCI) handleGo(args []string) {
	u.stopSearch()

	limits := engine.NewSearchLimits()
	limits.MaxDepth = 64

	for i := 0; i < len(args); i++ {
		nextInt := func() int {
			if i+1 >= len(args) {
				return 0
			}
			i++
			v, _ := strconv.Atoi(args[i])
			return v
		}
		switch args[i] {
		case "wtime":
			limits.TimeLeftMs[board.White] = nextInt()
		case "btime":
			limits.TimeLeftMs[board.Black] = nextInt()
		case "winc":
			limits.IncrementMs[board.White] = nextInt()
		case "binc":
			limits.IncrementMs[board.Black] = nextInt()
		case "movestogo":
			limits.MovesToGo = nextInt()
		case "depth":
			limits.MaxDepth = nextInt()
		case "nodes":
			limits.NodeLimit = uint64(nextInt())
		case "movetime":
			limits.MoveTimeMs = nextInt()
		case "infinite":
			limits.Infinite = true
		case "ponder":
			limits.Ponder = true
		case "mate":
			if mateDepth := nextInt(); mateDepth > 0 {
				limits.MaxDepth = mateDepth * 2
			}
		}
	}

	if limits.MaxDepth <= 0 {
		limits.MaxDepth = 64
	}

	// Subtract the move overhead so network and GUI latency never flags us.
	for c := 0; c < board.NumColors; c++ {
		if limits.TimeLeftMs[c] > 0 {
			limits.TimeLeftMs[c] = max(0, limits.TimeLeftMs[c]-u.moveOverheadMs)
		}
	}
	if limits.MoveTimeMs > 0 {
		limits.MoveTimeMs = max(0, limits.MoveTimeMs-u.moveOverheadMs)
	}

	u.log.Debug().
		Int("depth", limits.MaxDepth).
		Int("movetime_ms", limits.MoveTimeMs).
		Bool("infinite", limits.Infinite).
		Msg("starting search")

	u.currentLimits = limits
	u.stopFlag.Store(false)
	u.search.SetHistory(u.positionHashes)
	u.search.SetTimeManager(u.timeConfig)

	pos := u.position.Copy()
	done := make(chan struct{})
	u.searchDone = done

	go func() {
		defer close(done)
		result := u.search.Run(pos, limits, &u.stopFlag, func(info engine.SearchResult) {
			u.sendInfo(info)
		})
		u.reportBestMove(result)
	}()
}

func (u *UCI) handleSetOption(args []string) {
	var nameParts, valueParts []string
	target := &nameParts
	for _, arg := range args {
		switch arg {
		case "name":
			target = &nameParts
		case "value":
			target = &valueParts
		default:
			*target = append(*target, arg)
		}
	}
	name := strings.Join(nameParts, " ")
	value := strings.Join(valueParts, " ")

	switch name {
	case "Hash":
		mb, err := strconv.Atoi(value)
		if err != nil || mb < 1 {
			u.printf("info string invalid Hash value: %q\n", value)
			return
		}
		u.search.SetTableSizeMB(mb)
	case "Threads":
		threads, err := strconv.Atoi(value)
		if err != nil || threads < 1 {
			u.printf("info string invalid Threads value: %q\n", value)
			return
		}
		u.search.SetThreads(threads)
	case "Move Overhead":
		ms, err := strconv.Atoi(value)
		if err != nil || ms < 0 {
			u.printf("info string invalid Move Overhead value: %q\n", value)
			return
		}
		u.moveOverheadMs = ms
	case "Base Time Percent":
		if percent, err := strconv.ParseFloat(value, 64); err == nil {
			u.timeConfig.BaseAllocation = clampFloat(percent, 0, 100) / 100.0
		}
	case "Increment Percent":
		if percent, err := strconv.ParseFloat(value, 64); err == nil {
			u.timeConfig.IncrementBonus = clampFloat(percent, 0, 500) / 100.0
		}
	case "Minimum Think Time":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 1 {
			u.timeConfig.MinTimeMs = ms
		}
	case "Maximum Think Time":
		if ms, err := strconv.Atoi(value); err == nil && ms >= u.timeConfig.MinTimeMs {
			u.timeConfig.MaxTimeMs = ms
		}
	case "EvalNetwork":
		if value != "" {
			u.evaluator.SetNetworkPath(value)
			u.printf("info string eval network set to %s\n", value)
		}
	case "Ponder":
		// Acknowledged; pondering is handled through the go/stop flow.
	default:
		u.printf("info string unknown option: %s\n", name)
	}
}

func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		if d, err := strconv.Atoi(args[0]); err == nil && d > 0 {
			depth = d
		}
	}
	nodes := board.Perft(u.position.Copy(), depth)
	u.printf("perft(%d) = %d\n", depth, nodes)
}

// sendInfo emits one iteration snapshot in UCI info format.
func (u *UCI) sendInfo(result engine.SearchResult) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "info depth %d", result.Depth)
	if result.SelDepth > 0 {
		fmt.Fprintf(&sb, " seldepth %d", result.SelDepth)
	}

	if engine.IsMateScore(result.Score) {
		fmt.Fprintf(&sb, " score mate %d", engine.MovesToMate(result.Score))
	} else {
		fmt.Fprintf(&sb, " score cp %d", result.Score)
	}

	elapsedMs := result.Elapsed.Milliseconds()
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	fmt.Fprintf(&sb, " time %d nodes %d", elapsedMs, result.Nodes)
	if elapsedMs > 0 {
		fmt.Fprintf(&sb, " nps %d", result.Nodes*1000/uint64(elapsedMs))
	}

	if len(result.PV) > 0 {
		sb.WriteString(" pv")
		for _, move := range result.PV {
			sb.WriteByte(' ')
			sb.WriteString(move.String())
		}
	}

	u.println(sb.String())
}

func (u *UCI) reportBestMove(result engine.SearchResult) {
	if result.BestMove == board.NoMove {
		u.println("bestmove 0000")
		return
	}

	if u.currentLimits.Ponder && len(result.PV) >= 2 {
		u.printf("bestmove %s ponder %s\n", result.BestMove, result.PV[1])
		return
	}
	u.printf("bestmove %s\n", result.BestMove)
}

// stopSearch sets the stop flag and waits for the running search, if any, to
// publish its best move.
func (u *UCI) stopSearch() {
	done := u.searchDone
	if done == nil {
		return
	}
	u.stopFlag.Store(true)
	<-done
	u.searchDone = nil
	u.stopFlag.Store(false)
}

func (u *UCI) println(s string) {
	u.outMu.Lock()
	fmt.Fprintln(u.out, s)
	u.outMu.Unlock()
}

func (u *UCI) printf(format string, args ...any) {
	u.outMu.Lock()
	fmt.Fprintf(u.out, format, args...)
	u.outMu.Unlock()
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
