package engine

import (
	"sort"

	"github.com/chiron-engine/chiron/internal/board"
)

// historyClamp bounds history entries so that no single entry grows without
// limit and dominates the ordering. Entries are not decayed; they are reset
// at the start of each search.
const historyClamp = 4000

// mvvLVA scores a capture as "most valuable victim, least valuable
// attacker": 16 times the victim's value minus the attacker's. The victim of
// an en passant capture is always a pawn.
func mvvLVA(pos *board.Position, m board.Move) int {
	if !m.IsCapture(pos) {
		return 0
	}
	victim := board.Pawn
	if !m.IsEnPassant() {
		victim = pos.PieceAt(m.To()).Type()
	}
	attacker := pos.PieceAt(m.From()).Type()
	return board.PieceValue[victim]*16 - board.PieceValue[attacker]
}

// moveKey is the ordering key for a move: tier first, then the primary and
// secondary scores, all compared descending.
//
//	tier 3: transposition table move
//	tier 2: captures, primary = MVV/LVA
//	tier 1: killers, primary 2 for the first slot, 1 for the second
//	tier 0: quiets, secondary = history score
type moveKey struct {
	tier      int
	primary   int
	secondary int
}

func (k moveKey) less(other moveKey) bool {
	if k.tier != other.tier {
		return k.tier > other.tier
	}
	if k.primary != other.primary {
		return k.primary > other.primary
	}
	return k.secondary > other.secondary
}

// orderMoves sorts the move list in place for the main search.
func (ctx *ThreadContext) orderMoves(pos *board.Position, moves *board.MoveList, ply int, ttMove board.Move) {
	slice := moves.Slice()
	type scored struct {
		move board.Move
		key  moveKey
	}
	items := make([]scored, len(slice))
	for i, m := range slice {
		items[i] = scored{move: m, key: ctx.moveOrderKey(pos, m, ply, ttMove)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].key.less(items[j].key)
	})
	for i := range items {
		slice[i] = items[i].move
	}
}

func (ctx *ThreadContext) moveOrderKey(pos *board.Position, m board.Move, ply int, ttMove board.Move) moveKey {
	if m == ttMove && m != board.NoMove {
		return moveKey{tier: 3}
	}
	if m.IsCapture(pos) {
		return moveKey{tier: 2, primary: mvvLVA(pos, m)}
	}
	key := moveKey{secondary: ctx.historyScore(pos.SideToMove, m)}
	if m == ctx.killers[ply][0] && m != board.NoMove {
		key.tier = 1
		key.primary = 2
	} else if m == ctx.killers[ply][1] && m != board.NoMove {
		key.tier = 1
		key.primary = 1
	}
	return key
}

// orderRootMoves sorts the root move list: hash move first, captures by
// MVV/LVA, quiets by history.
func (ctx *ThreadContext) orderRootMoves(pos *board.Position, moves *board.MoveList, hashMove board.Move) {
	slice := moves.Slice()
	sort.SliceStable(slice, func(i, j int) bool {
		lhs, rhs := slice[i], slice[j]
		lhsHash := lhs == hashMove && hashMove != board.NoMove
		rhsHash := rhs == hashMove && hashMove != board.NoMove
		if lhsHash != rhsHash {
			return lhsHash
		}
		var lhsScore, rhsScore int
		if lhs.IsCapture(pos) || rhs.IsCapture(pos) {
			lhsScore = mvvLVA(pos, lhs)
			rhsScore = mvvLVA(pos, rhs)
		} else {
			lhsScore = ctx.historyScore(pos.SideToMove, lhs)
			rhsScore = ctx.historyScore(pos.SideToMove, rhs)
		}
		return lhsScore > rhsScore
	})
}

// sortCaptures sorts quiescence moves by MVV/LVA descending.
func sortCaptures(pos *board.Position, moves []board.Move) {
	sort.SliceStable(moves, func(i, j int) bool {
		return mvvLVA(pos, moves[i]) > mvvLVA(pos, moves[j])
	})
}

// updateKillers records a quiet move that caused a beta cutoff at the ply.
func (ctx *ThreadContext) updateKillers(m board.Move, ply int) {
	if ctx.killers[ply][0] == m {
		return
	}
	ctx.killers[ply][1] = ctx.killers[ply][0]
	ctx.killers[ply][0] = m
}

// updateHistory bumps the history bonus for a quiet move by depth squared,
// clamped to the history range.
func (ctx *ThreadContext) updateHistory(mover board.Color, m board.Move, depth int) {
	bonus := depth * depth
	entry := &ctx.history[mover][m.From()][m.To()]
	*entry += bonus
	if *entry > historyClamp {
		*entry = historyClamp
	} else if *entry < -historyClamp {
		*entry = -historyClamp
	}
}

func (ctx *ThreadContext) historyScore(mover board.Color, m board.Move) int {
	return ctx.history[mover][m.From()][m.To()]
}
