package engine

import (
	"github.com/chiron-engine/chiron/internal/board"
	"github.com/chiron-engine/chiron/internal/nnue"
)

// ThreadContext is the per-worker mutable search state: the accumulator
// stack indexed by ply, the repetition stack, and the killer and history
// tables. Each worker owns its context exclusively; nothing in it is shared.
type ThreadContext struct {
	id int

	accStack   []nnue.Accumulator
	repetition []uint64

	killers [MaxPly][2]board.Move
	history [2][64][64]int
}

func newThreadContext(id int) *ThreadContext {
	return &ThreadContext{
		id:         id,
		repetition: make([]uint64, 0, 512),
	}
}

// ensureCapacity reserves the accumulator stack before a search so the hot
// path never allocates. Capacity covers every ply the search can reach,
// including quiescence past the nominal depth.
func (ctx *ThreadContext) ensureCapacity(eval *nnue.Evaluator, maxDepth int) {
	required := MaxPly + 1
	if required < maxDepth+2 {
		required = maxDepth + 2
	}
	hidden := eval.Network().HiddenSize()
	if len(ctx.accStack) > 0 && len(ctx.accStack[0].White) != hidden {
		ctx.accStack = nil
	}
	for len(ctx.accStack) < required {
		ctx.accStack = append(ctx.accStack, nnue.NewAccumulator(hidden))
	}
}

// resetTables clears killers and history for a new search.
func (ctx *ThreadContext) resetTables() {
	for i := range ctx.killers {
		ctx.killers[i][0] = board.NoMove
		ctx.killers[i][1] = board.NoMove
	}
	for c := range ctx.history {
		for from := range ctx.history[c] {
			for to := range ctx.history[c][from] {
				ctx.history[c][from][to] = 0
			}
		}
	}
}

// seedRepetition resets the repetition stack to the given prefix. The prefix
// holds the game history up to and including the root position.
func (ctx *ThreadContext) seedRepetition(prefix []uint64) {
	ctx.repetition = ctx.repetition[:0]
	ctx.repetition = append(ctx.repetition, prefix...)
}

func (ctx *ThreadContext) pushRepetition(hash uint64) {
	ctx.repetition = append(ctx.repetition, hash)
}

func (ctx *ThreadContext) popRepetition() {
	ctx.repetition = ctx.repetition[:len(ctx.repetition)-1]
}

// countRepetitions returns how many times the hash occurs on the stack.
func (ctx *ThreadContext) countRepetitions(hash uint64) int {
	count := 0
	for _, h := range ctx.repetition {
		if h == hash {
			count++
		}
	}
	return count
}
