package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chiron-engine/chiron/internal/board"
	"github.com/chiron-engine/chiron/internal/nnue"
)

const (
	nullMoveReduction = 2
	aspirationInitial = 18
	pvMaxLength       = 64
)

// Search owns the shared transposition table and the per-thread contexts,
// and drives iterative deepening over a caller-provided position. The
// evaluator is injected; the search holds no process-wide state.
type Search struct {
	tt          *TranspositionTable
	evaluator   *nnue.Evaluator
	timeManager TimeManager
	threads     int
	contexts    []*ThreadContext

	// Game history for repetition detection, set by the caller before Run.
	gameHistory []uint64

	// Per-search state.
	infoCallback InfoCallback
	stopSignal   *atomic.Bool
	nodeLimit    uint64
	startTime    time.Time
	timeLimit    time.Duration
	nodes        atomic.Uint64
	seldepth     atomic.Int64
	rootSeed     []uint64
}

// NewSearch creates a search with the given transposition table size in
// megabytes and evaluator.
func NewSearch(ttSizeMB int, evaluator *nnue.Evaluator) *Search {
	s := &Search{
		tt:          NewTranspositionTableMB(ttSizeMB),
		evaluator:   evaluator,
		timeManager: NewTimeManager(DefaultTimeConfig()),
		threads:     1,
	}
	s.contexts = []*ThreadContext{newThreadContext(0)}
	return s
}

// SetThreads sets the number of root-splitting worker threads.
func (s *Search) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	s.threads = n
	for len(s.contexts) < n {
		s.contexts = append(s.contexts, newThreadContext(len(s.contexts)))
	}
	s.contexts = s.contexts[:n]
}

// Threads returns the configured worker count.
func (s *Search) Threads() int {
	return s.threads
}

// SetTableSizeMB resizes the transposition table.
func (s *Search) SetTableSizeMB(megabytes int) {
	const entrySize = 16
	entries := megabytes * 1024 * 1024 / entrySize
	s.tt.Resize(entries)
}

// SetTimeManager replaces the time-allocation heuristics.
func (s *Search) SetTimeManager(config TimeConfig) {
	s.timeManager = NewTimeManager(config)
}

// SetEvaluator replaces the evaluator.
func (s *Search) SetEvaluator(evaluator *nnue.Evaluator) {
	s.evaluator = evaluator
}

// SetHistory records the game's position hashes, up to and including the
// root position, for threefold repetition detection.
func (s *Search) SetHistory(hashes []uint64) {
	s.gameHistory = append(s.gameHistory[:0], hashes...)
}

// Clear empties the transposition table and per-thread tables.
func (s *Search) Clear() {
	s.tt.Clear()
	for _, ctx := range s.contexts {
		ctx.resetTables()
	}
}

// Run searches the position under the given limits. The stop flag cancels
// cooperatively; info receives a snapshot after each completed iteration.
// The position is cloned per worker and never mutated.
func (s *Search) Run(pos *board.Position, limits SearchLimits, stop *atomic.Bool, info InfoCallback) SearchResult {
	s.evaluator.EnsureLoaded()

	s.infoCallback = info
	s.stopSignal = stop
	s.nodeLimit = limits.NodeLimit
	s.startTime = time.Now()
	s.timeLimit = s.computeTimeBudget(pos, limits)
	s.nodes.Store(0)
	s.seldepth.Store(0)
	s.tt.NextGeneration()

	maxDepth := limits.MaxDepth
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > MaxPly-2 {
		maxDepth = MaxPly - 2
	}

	seed := make([]uint64, 0, len(s.gameHistory)+1)
	seed = append(seed, s.gameHistory...)
	if len(seed) == 0 || seed[len(seed)-1] != pos.Hash {
		seed = append(seed, pos.Hash)
	}
	s.rootSeed = seed

	for _, ctx := range s.contexts {
		ctx.ensureCapacity(s.evaluator, maxDepth)
		ctx.resetTables()
		ctx.seedRepetition(seed)
	}

	main := s.contexts[0]
	s.evaluator.Build(pos, &main.accStack[0])
	for _, ctx := range s.contexts[1:] {
		ctx.accStack[0].CopyFrom(&main.accStack[0])
	}

	var best SearchResult
	var lastBest board.Move
	aspiration := aspirationInitial
	previousScore := 0

	for depth := 1; depth <= maxDepth; depth++ {
		if s.shouldStop() {
			break
		}

		alpha := max(previousScore-aspiration, -Infinity)
		beta := min(previousScore+aspiration, Infinity)
		score := 0
		completed := false
		var iterationBest board.Move

		// Aspiration loop: widen the failed side until the score fits.
		for {
			score, iterationBest = s.searchRoot(main, pos, depth, alpha, beta)
			if s.shouldStop() {
				break
			}

			if score <= alpha {
				if alpha <= -Infinity {
					completed = true
					break
				}
				alpha = max(alpha-aspiration, -Infinity)
			} else if score >= beta {
				if beta >= Infinity {
					completed = true
					break
				}
				beta = min(beta+aspiration, Infinity)
			} else {
				completed = true
				break
			}

			aspiration = min(aspiration*2, Infinity)
			if aspiration > Infinity/2 {
				alpha, beta = -Infinity, Infinity
			}

			if s.shouldStop() {
				break
			}
		}

		if s.shouldStop() {
			break
		}
		if !completed {
			// The window never closed for this depth; keep the previous
			// iteration's best move.
			break
		}

		previousScore = score
		aspiration = aspirationInitial

		best.Depth = depth
		best.Score = score
		best.Nodes = s.nodes.Load()
		best.SelDepth = int(s.seldepth.Load())
		best.Elapsed = time.Since(s.startTime)
		best.PV = s.extractPV(pos)
		if len(best.PV) > 0 {
			best.BestMove = best.PV[0]
			lastBest = best.BestMove
		} else if iterationBest != board.NoMove {
			best.BestMove = iterationBest
			lastBest = iterationBest
		} else if lastBest != board.NoMove {
			best.BestMove = lastBest
		}

		if s.infoCallback != nil {
			s.infoCallback(best)
		}

		if IsMateScore(score) {
			break
		}
		if s.nodeLimit > 0 && s.nodes.Load() >= s.nodeLimit {
			break
		}
	}

	if best.BestMove == board.NoMove && lastBest != board.NoMove {
		best.BestMove = lastBest
	}
	if best.Elapsed == 0 {
		best.Elapsed = time.Since(s.startTime)
	}

	return best
}

// searchRoot searches one depth at the root, splitting the move list across
// worker threads after the first move has seeded alpha.
func (s *Search) searchRoot(main *ThreadContext, pos *board.Position, depth, alpha, beta int) (int, board.Move) {
	var hashMove board.Move
	if entry, ok := s.tt.Probe(pos.Hash, 0); ok {
		hashMove = entry.Move
	}

	moves := pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if pos.InCheck() {
			return -MateValue + 1, board.NoMove
		}
		return 0, board.NoMove
	}

	main.orderRootMoves(pos, moves, hashMove)
	slice := moves.Slice()

	alphaOriginal := alpha

	// The first move runs on the calling thread so the workers start with a
	// real bound instead of the aspiration guess.
	bestScore := s.searchRootMove(main, pos, slice[0], depth, alpha, beta)
	bestMove := slice[0]
	if bestScore > alpha {
		alpha = bestScore
	}
	if bestScore >= beta {
		s.tt.Store(pos.Hash, depth, bestScore, bestMove, BoundLower, 0)
		return bestScore, bestMove
	}

	var (
		nextIndex   atomic.Int64
		sharedAlpha atomic.Int64
		cutoff      atomic.Bool
		mu          sync.Mutex
	)
	nextIndex.Store(1)
	sharedAlpha.Store(int64(alpha))

	// Workers read sharedAlpha without synchronization against the writers;
	// a stale value only costs a wider re-search, never a wrong result.
	workerFn := func(ctx *ThreadContext) {
		for {
			if cutoff.Load() || s.shouldStop() {
				return
			}
			idx := int(nextIndex.Add(1)) - 1
			if idx >= len(slice) {
				return
			}
			localAlpha := int(sharedAlpha.Load())
			value := s.searchRootMove(ctx, pos, slice[idx], depth, localAlpha, beta)
			if s.shouldStop() {
				return
			}

			mu.Lock()
			if value > bestScore {
				bestScore = value
				bestMove = slice[idx]
			}
			if value > int(sharedAlpha.Load()) {
				sharedAlpha.Store(int64(value))
			}
			if value >= beta {
				cutoff.Store(true)
			}
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	for i := 1; i < s.threads && i < len(s.contexts); i++ {
		wg.Add(1)
		go func(ctx *ThreadContext) {
			defer wg.Done()
			workerFn(ctx)
		}(s.contexts[i])
	}
	workerFn(main)
	wg.Wait()

	if bestScore == -Infinity {
		bestScore = alpha
	}

	bound := BoundExact
	if bestScore <= alphaOriginal {
		bound = BoundUpper
	} else if bestScore >= beta {
		bound = BoundLower
	}
	s.tt.Store(pos.Hash, depth, bestScore, bestMove, bound, 0)
	return bestScore, bestMove
}

// searchRootMove evaluates a single root move on the worker's own board
// clone and context.
func (s *Search) searchRootMove(ctx *ThreadContext, rootPos *board.Position, move board.Move, depth, alpha, beta int) int {
	if s.shouldStop() {
		return 0
	}

	ctx.seedRepetition(s.rootSeed)
	s.evaluator.Update(rootPos, move, &ctx.accStack[0], &ctx.accStack[1])

	local := rootPos.Copy()
	if _, err := local.MakeMove(move); err != nil {
		return 0
	}
	ctx.pushRepetition(local.Hash)

	value := -s.negamax(ctx, local, depth-1, -beta, -alpha, true, 1)

	ctx.popRepetition()
	return value
}

// negamax is the main alpha-beta recursion.
func (s *Search) negamax(ctx *ThreadContext, pos *board.Position, depth, alpha, beta int, allowNull bool, ply int) int {
	if s.shouldStop() {
		return 0
	}

	// Bounds guard: extensions through quiescence evasions can push ply past
	// the nominal depth.
	if ply >= MaxPly-1 {
		return s.evaluator.Evaluate(pos, &ctx.accStack[ply])
	}

	s.observeSelDepth(ply)
	s.nodes.Add(1)

	inCheck := pos.InCheck()

	if depth <= 0 {
		return s.quiescence(ctx, pos, alpha, beta, ply)
	}

	// Draw tests.
	if pos.HalfMoveClock >= 100 {
		return 0
	}
	if ctx.countRepetitions(pos.Hash) >= 3 {
		return 0
	}

	// Transposition probe. A deep-enough entry can answer immediately; the
	// stored move is kept for ordering either way.
	var ttMove board.Move
	if entry, ok := s.tt.Probe(pos.Hash, ply); ok {
		ttMove = entry.Move
		if int(entry.Depth) >= depth {
			score := int(entry.Score)
			switch entry.Bound {
			case BoundExact:
				return score
			case BoundLower:
				if score >= beta {
					return score
				}
			case BoundUpper:
				if score <= alpha {
					return score
				}
			}
		}
	}

	staticEval := s.evaluator.Evaluate(pos, &ctx.accStack[ply])
	alphaOriginal := alpha

	// Null-move pruning: hand the opponent a free move; if the reduced
	// search still fails high the real position almost surely does too.
	if !inCheck && allowNull && depth >= 3 && staticEval >= beta {
		undo := pos.MakeNullMove()
		ctx.pushRepetition(pos.Hash)
		nullScore := -s.negamax(ctx, pos, depth-1-nullMoveReduction, -beta, -beta+1, false, ply+1)
		ctx.popRepetition()
		pos.UnmakeNullMove(undo)
		if nullScore >= beta {
			return beta
		}
	}

	moves := pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return -MateValue + ply
		}
		return 0
	}

	ctx.orderMoves(pos, moves, ply, ttMove)

	bestMove := board.NoMove
	bestScore := -Infinity

	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		isCapture := move.IsCapture(pos)
		isPromotion := move.IsPromotion()

		s.evaluator.Update(pos, move, &ctx.accStack[ply], &ctx.accStack[ply+1])
		undo, err := pos.MakeMove(move)
		if err != nil {
			continue
		}
		ctx.pushRepetition(pos.Hash)

		givesCheck := pos.InCheck()
		newDepth := depth - 1
		var score int

		// Late-move reduction for quiet moves ordered far down the list.
		canReduce := !isCapture && !isPromotion && !givesCheck && !inCheck && depth >= 3 && i >= 3
		if canReduce {
			reduction := 1
			if i > 6 {
				reduction = 2
			}
			reducedDepth := max(1, depth-1-reduction)
			score = -s.negamax(ctx, pos, reducedDepth, -alpha-1, -alpha, true, ply+1)
			if score > alpha {
				score = -s.negamax(ctx, pos, newDepth, -beta, -alpha, true, ply+1)
			}
		} else {
			score = -s.negamax(ctx, pos, newDepth, -beta, -alpha, true, ply+1)
		}

		if score > bestScore {
			bestScore = score
			bestMove = move
		}
		if score > alpha {
			alpha = score
		}

		ctx.popRepetition()
		pos.UnmakeMove(move, undo)

		if alpha >= beta {
			if !isCapture && !isPromotion {
				ctx.updateKillers(move, ply)
				ctx.updateHistory(pos.SideToMove, move, depth)
			}
			break
		}

		if !isCapture && !isPromotion && alpha > staticEval {
			ctx.updateHistory(pos.SideToMove, move, depth)
		}
	}

	if bestMove == board.NoMove {
		bestMove = moves.Get(0)
	}

	bound := BoundExact
	if bestScore <= alphaOriginal {
		bound = BoundUpper
	} else if bestScore >= beta {
		bound = BoundLower
	}
	s.tt.Store(pos.Hash, depth, bestScore, bestMove, bound, ply)
	return bestScore
}

// quiescence searches captures and promotions until the position is quiet.
// Check evasions run through a one-ply full-width search instead.
func (s *Search) quiescence(ctx *ThreadContext, pos *board.Position, alpha, beta int, ply int) int {
	if s.shouldStop() {
		return 0
	}

	if ply >= MaxPly-1 {
		return s.evaluator.Evaluate(pos, &ctx.accStack[ply])
	}

	s.nodes.Add(1)

	if pos.InCheck() {
		return s.negamax(ctx, pos, 1, alpha, beta, false, ply)
	}

	standPat := s.evaluator.Evaluate(pos, &ctx.accStack[ply])
	if standPat >= beta {
		return beta
	}
	if standPat > alpha {
		alpha = standPat
	}

	moves := pos.GenerateLegalMoves()
	captures := make([]board.Move, 0, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.IsCapture(pos) || m.IsPromotion() {
			captures = append(captures, m)
		}
	}
	sortCaptures(pos, captures)

	for _, move := range captures {
		s.evaluator.Update(pos, move, &ctx.accStack[ply], &ctx.accStack[ply+1])
		undo, err := pos.MakeMove(move)
		if err != nil {
			continue
		}
		ctx.pushRepetition(pos.Hash)

		score := -s.quiescence(ctx, pos, -beta, -alpha, ply+1)

		ctx.popRepetition()
		pos.UnmakeMove(move, undo)

		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// extractPV walks the transposition table from the root, validating each
// stored move against the legal move list.
func (s *Search) extractPV(pos *board.Position) []board.Move {
	var pv []board.Move
	current := pos.Copy()
	for len(pv) < pvMaxLength {
		entry, ok := s.tt.Probe(current.Hash, 0)
		if !ok || entry.Move == board.NoMove {
			break
		}
		if !current.GenerateLegalMoves().Contains(entry.Move) {
			break
		}
		pv = append(pv, entry.Move)
		if _, err := current.MakeMove(entry.Move); err != nil {
			break
		}
	}
	return pv
}

// shouldStop polls the cooperative cancellation sources: the external stop
// flag, the node limit, and the time budget.
func (s *Search) shouldStop() bool {
	if s.stopSignal != nil && s.stopSignal.Load() {
		return true
	}
	if s.nodeLimit > 0 && s.nodes.Load() >= s.nodeLimit {
		return true
	}
	if s.timeLimit > 0 && time.Since(s.startTime) >= s.timeLimit {
		return true
	}
	return false
}

func (s *Search) observeSelDepth(ply int) {
	for {
		current := s.seldepth.Load()
		if current >= int64(ply) || s.seldepth.CompareAndSwap(current, int64(ply)) {
			return
		}
	}
}

// computeTimeBudget converts the limits into a wall-clock budget; zero means
// no limit.
func (s *Search) computeTimeBudget(pos *board.Position, limits SearchLimits) time.Duration {
	if limits.MoveTimeMs >= 0 {
		return time.Duration(limits.MoveTimeMs) * time.Millisecond
	}
	if limits.Infinite {
		return 0
	}

	us := pos.SideToMove
	timeLeft := limits.TimeLeftMs[us]
	increment := limits.IncrementMs[us]
	if timeLeft <= 0 && increment <= 0 {
		return 0
	}

	allocation := s.timeManager.AllocateTimeMs(timeLeft, increment, pos.FullMoveNumber, limits.MovesToGo)
	if allocation < 0 {
		allocation = 0
	}
	return time.Duration(allocation) * time.Millisecond
}
