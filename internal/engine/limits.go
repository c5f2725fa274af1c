// Package engine implements the search core: iterative deepening with
// aspiration windows, a parallel root split over a shared transposition
// table, negamax with null-move and late-move reductions, quiescence, and
// time management.
package engine

import (
	"time"

	"github.com/chiron-engine/chiron/internal/board"
)

// Search constants. Mate scores are encoded as MateValue minus the distance
// from the root; anything beyond MateThreshold is a forced mate.
const (
	Infinity      = 32000
	MateValue     = 32000
	MateThreshold = MateValue - 512
	MaxPly        = 128
)

// SearchLimits specifies constraints on a search.
type SearchLimits struct {
	MaxDepth    int    // maximum depth, clamped to [1, MaxPly-2] by Search.Run
	NodeLimit   uint64 // 0 = unlimited
	MoveTimeMs  int    // fixed time for this move, -1 = unused
	TimeLeftMs  [2]int // remaining clock per color
	IncrementMs [2]int // increment per color
	MovesToGo   int    // moves until the next time control, 0 = sudden death
	Infinite    bool   // search until stopped
	Ponder      bool   // ponder mode
}

// NewSearchLimits returns limits with no constraint other than MaxPly.
func NewSearchLimits() SearchLimits {
	return SearchLimits{
		MaxDepth:   MaxPly,
		MoveTimeMs: -1,
	}
}

// SearchResult is the outcome of one completed search iteration, and of the
// search as a whole.
type SearchResult struct {
	BestMove board.Move
	Score    int // centipawns from the root side to move; mate as MateValue-ply
	Depth    int
	SelDepth int
	Nodes    uint64
	PV       []board.Move
	Elapsed  time.Duration
}

// InfoCallback receives a snapshot after each completed iteration.
type InfoCallback func(SearchResult)

// IsMateScore returns true when the score encodes a forced mate.
func IsMateScore(score int) bool {
	return score > MateThreshold || score < -MateThreshold
}

// MovesToMate converts a mate score to full moves, negative when the root
// side is being mated.
func MovesToMate(score int) int {
	moves := (MateValue - abs(score) + 1) / 2
	if score < 0 {
		return -moves
	}
	return moves
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
