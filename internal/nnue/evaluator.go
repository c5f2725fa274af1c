package nnue

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/chiron-engine/chiron/internal/board"
)

// Evaluator owns a network and evaluates positions through accumulators.
// The network loads lazily on first use; loading never fails the engine —
// any file error falls back to the piece-value default network.
type Evaluator struct {
	mu     sync.Mutex
	loaded atomic.Bool
	path   string
	net    *Network
}

// NewEvaluator creates an evaluator. An empty path selects the default
// piece-value network.
func NewEvaluator(path string) *Evaluator {
	return &Evaluator{path: path, net: NewNetwork()}
}

// SetNetworkPath changes the weights file and forces a reload on next use.
func (e *Evaluator) SetNetworkPath(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.path = path
	e.loaded.Store(false)
}

// EnsureLoaded loads the network once. Safe for concurrent use.
func (e *Evaluator) EnsureLoaded() {
	if e.loaded.Load() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded.Load() {
		return
	}

	if e.path != "" {
		if err := e.net.LoadFile(e.path); err != nil {
			fmt.Fprintf(os.Stderr, "info string nnue fallback: %v\n", err)
			e.net.LoadDefault()
		}
	} else {
		e.net.LoadDefault()
	}
	e.loaded.Store(true)
}

// Network returns the loaded network.
func (e *Evaluator) Network() *Network {
	e.EnsureLoaded()
	return e.net
}

// NewAccumulator creates an accumulator sized for the loaded network.
func (e *Evaluator) NewAccumulator() Accumulator {
	return NewAccumulator(e.Network().HiddenSize())
}

// applyFeature adds sign times the feature's input weights into the vector
// for the piece's color.
func (e *Evaluator) applyFeature(acc *Accumulator, c board.Color, pt board.PieceType, sq board.Square, sign int32) {
	feature := FeatureIndex(c, pt, sq)
	vec := acc.White
	if c == board.Black {
		vec = acc.Black
	}
	base := 0
	for n := 0; n < e.net.hiddenSize; n++ {
		vec[n] += sign * e.net.inputWeights[base+feature]
		base += FeatureCount
	}
}

// Build fills the accumulator from scratch for a position.
func (e *Evaluator) Build(pos *board.Position, acc *Accumulator) {
	e.EnsureLoaded()
	acc.Reset()
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				e.applyFeature(acc, c, pt, sq, +1)
			}
		}
	}
}

// Update derives dest from base by applying the move's feature deltas.
// pos is the position BEFORE the move is made; undoing the move is applying
// the same deltas with negated sign, which callers get for free by keeping
// base untouched.
func (e *Evaluator) Update(pos *board.Position, m board.Move, base, dest *Accumulator) {
	e.EnsureLoaded()
	dest.CopyFrom(base)

	us := pos.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()

	piece := pos.PieceAt(from)
	if piece == board.NoPiece {
		return
	}
	pt := piece.Type()

	e.applyFeature(dest, us, pt, from, -1)

	placed := pt
	if m.IsPromotion() {
		placed = m.Promotion()
	}
	e.applyFeature(dest, us, placed, to, +1)

	if m.IsEnPassant() {
		captureSq := to - 8
		if us == board.Black {
			captureSq = to + 8
		}
		e.applyFeature(dest, them, board.Pawn, captureSq, -1)
	} else if captured := pos.PieceAt(to); captured != board.NoPiece {
		e.applyFeature(dest, them, captured.Type(), to, -1)
	}

	if m.IsCastling() {
		var rookFrom, rookTo board.Square
		if to > from {
			rookFrom = board.NewSquare(7, from.Rank())
			rookTo = board.NewSquare(5, from.Rank())
		} else {
			rookFrom = board.NewSquare(0, from.Rank())
			rookTo = board.NewSquare(3, from.Rank())
		}
		e.applyFeature(dest, us, board.Rook, rookFrom, -1)
		e.applyFeature(dest, us, board.Rook, rookTo, +1)
	}
}

// Evaluate returns the network evaluation of the position, in centipawns
// from the side to move's perspective.
func (e *Evaluator) Evaluate(pos *board.Position, acc *Accumulator) int {
	e.EnsureLoaded()
	return e.net.Forward(acc, pos.SideToMove)
}
