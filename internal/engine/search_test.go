package engine

import (
	"sync/atomic"
	"testing"

	"github.com/chiron-engine/chiron/internal/board"
	"github.com/chiron-engine/chiron/internal/nnue"
)

func newTestSearch(t *testing.T) *Search {
	t.Helper()
	return NewSearch(4, nnue.NewEvaluator(""))
}

func runSearch(t *testing.T, s *Search, pos *board.Position, limits SearchLimits) SearchResult {
	t.Helper()
	var stop atomic.Bool
	return s.Run(pos, limits, &stop, nil)
}

// prepNegamax mirrors Run's prologue so tests can call negamax directly.
func prepNegamax(t *testing.T, s *Search, pos *board.Position, history []uint64) *ThreadContext {
	t.Helper()
	s.evaluator.EnsureLoaded()
	var stop atomic.Bool
	s.stopSignal = &stop
	s.nodeLimit = 0
	s.timeLimit = 0

	ctx := s.contexts[0]
	ctx.ensureCapacity(s.evaluator, 16)
	ctx.resetTables()

	seed := append([]uint64{}, history...)
	if len(seed) == 0 || seed[len(seed)-1] != pos.Hash {
		seed = append(seed, pos.Hash)
	}
	ctx.seedRepetition(seed)
	s.evaluator.Build(pos, &ctx.accStack[0])
	return ctx
}

// TestSearchStartPosition: a shallow search of the start position returns
// one of the twenty legal opening moves with a non-empty PV.
func TestSearchStartPosition(t *testing.T) {
	s := newTestSearch(t)
	pos := board.NewPosition()

	limits := NewSearchLimits()
	limits.MaxDepth = 2
	limits.Infinite = true

	result := runSearch(t, s, pos, limits)

	if result.Depth < 2 {
		t.Errorf("depth = %d, want >= 2", result.Depth)
	}
	if len(result.PV) == 0 {
		t.Errorf("PV is empty")
	}
	if !pos.GenerateLegalMoves().Contains(result.BestMove) {
		t.Errorf("best move %v is not a legal opening move", result.BestMove)
	}
	if result.Nodes == 0 {
		t.Errorf("no nodes searched")
	}
}

// TestSearchMateInOne finds Re8# and reports a mate score.
func TestSearchMateInOne(t *testing.T) {
	s := newTestSearch(t)
	pos, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/4R1K1 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	limits := NewSearchLimits()
	limits.MaxDepth = 4

	result := runSearch(t, s, pos, limits)

	if want := board.NewMove(board.E1, board.E8); result.BestMove != want {
		t.Errorf("best move = %v, want e1e8", result.BestMove)
	}
	if result.Score <= MateThreshold {
		t.Errorf("score = %d, want a mate score above %d", result.Score, MateThreshold)
	}
}

// TestSearchStalemate: no legal move yields bestmove 0000 and a zero score.
func TestSearchStalemate(t *testing.T) {
	s := newTestSearch(t)
	pos, err := board.ParseFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	limits := NewSearchLimits()
	limits.MaxDepth = 3

	result := runSearch(t, s, pos, limits)

	if result.BestMove != board.NoMove {
		t.Errorf("best move = %v, want none", result.BestMove)
	}
	if result.Score != 0 {
		t.Errorf("score = %d, want 0", result.Score)
	}
}

// TestThreefoldRepetitionDraw: after the knights shuffle out and back twice,
// the position has occurred three times and negamax scores it as a draw.
func TestThreefoldRepetitionDraw(t *testing.T) {
	pos := board.NewPosition()
	hashes := []uint64{pos.Hash}
	for _, token := range []string{"g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1", "f6g8"} {
		m, err := board.ParseMove(token, pos)
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", token, err)
		}
		if _, err := pos.MakeMove(m); err != nil {
			t.Fatalf("MakeMove(%q): %v", token, err)
		}
		hashes = append(hashes, pos.Hash)
	}

	s := newTestSearch(t)
	ctx := prepNegamax(t, s, pos, hashes)

	for _, depth := range []int{1, 3, 5} {
		if score := s.negamax(ctx, pos, depth, -Infinity, Infinity, true, 1); score != 0 {
			t.Errorf("negamax(depth=%d) = %d, want 0 (threefold draw)", depth, score)
		}
	}
}

// TestFiftyMoveDraw: a halfmove clock at 100 is an immediate draw.
func TestFiftyMoveDraw(t *testing.T) {
	pos, err := board.ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 100 80")
	if err != nil {
		t.Fatal(err)
	}

	s := newTestSearch(t)
	ctx := prepNegamax(t, s, pos, nil)

	for _, depth := range []int{1, 4} {
		if score := s.negamax(ctx, pos, depth, -Infinity, Infinity, true, 1); score != 0 {
			t.Errorf("negamax(depth=%d) = %d, want 0 (fifty-move draw)", depth, score)
		}
	}
}

// TestSearchDeterminism: single-threaded searches from a cleared table are
// reproducible.
func TestSearchDeterminism(t *testing.T) {
	pos, err := board.ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	limits := NewSearchLimits()
	limits.MaxDepth = 3
	limits.Infinite = true

	run := func() SearchResult {
		s := newTestSearch(t)
		return runSearch(t, s, pos, limits)
	}

	first := run()
	second := run()

	if first.BestMove != second.BestMove || first.Score != second.Score {
		t.Errorf("searches diverged: (%v, %d) vs (%v, %d)",
			first.BestMove, first.Score, second.BestMove, second.Score)
	}
}

// TestSearchNodeLimit stops promptly once the node budget is exhausted.
func TestSearchNodeLimit(t *testing.T) {
	s := newTestSearch(t)
	pos := board.NewPosition()

	limits := NewSearchLimits()
	limits.MaxDepth = 64
	limits.NodeLimit = 2000
	limits.Infinite = true

	result := runSearch(t, s, pos, limits)

	// The limit is polled at node entry, so a small overshoot is expected,
	// but not a runaway.
	if result.Nodes > 4*limits.NodeLimit {
		t.Errorf("nodes = %d, far beyond the %d limit", result.Nodes, limits.NodeLimit)
	}
}

// TestSearchStopFlag: a pre-set stop flag means no completed iteration.
func TestSearchStopFlag(t *testing.T) {
	s := newTestSearch(t)
	pos := board.NewPosition()

	limits := NewSearchLimits()
	limits.MaxDepth = 10
	limits.Infinite = true

	var stop atomic.Bool
	stop.Store(true)
	result := s.Run(pos, limits, &stop, nil)

	if result.Depth != 0 {
		t.Errorf("depth = %d, want 0 for an immediately stopped search", result.Depth)
	}
}

// TestSearchParallelRoot: multi-threaded search still returns a legal move
// and a sane score.
func TestSearchParallelRoot(t *testing.T) {
	s := newTestSearch(t)
	s.SetThreads(4)
	pos, err := board.ParseFEN("r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4")
	if err != nil {
		t.Fatal(err)
	}

	limits := NewSearchLimits()
	limits.MaxDepth = 4
	limits.Infinite = true

	result := runSearch(t, s, pos, limits)

	if !pos.GenerateLegalMoves().Contains(result.BestMove) {
		t.Errorf("parallel search returned illegal move %v", result.BestMove)
	}
	if result.Depth < 4 {
		t.Errorf("depth = %d, want 4", result.Depth)
	}
}

// TestInfoCallback receives one snapshot per completed iteration with
// strictly increasing depths.
func TestInfoCallback(t *testing.T) {
	s := newTestSearch(t)
	pos := board.NewPosition()

	limits := NewSearchLimits()
	limits.MaxDepth = 3
	limits.Infinite = true

	var depths []int
	var stop atomic.Bool
	s.Run(pos, limits, &stop, func(info SearchResult) {
		depths = append(depths, info.Depth)
	})

	if len(depths) != 3 {
		t.Fatalf("got %d info callbacks, want 3", len(depths))
	}
	for i := 1; i < len(depths); i++ {
		if depths[i] <= depths[i-1] {
			t.Errorf("iteration depths not increasing: %v", depths)
		}
	}
}
