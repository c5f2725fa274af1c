// Package nnue implements the incrementally updated neural network evaluation.
//
// The network is deliberately small: a 768-feature input layer (piece, color,
// square), one hidden layer with a tanh-style activation on scaled integers,
// and a floating point output projection to centipawns. Accumulators hold the
// per-color sums of input weights and are updated move by move during search.
package nnue

import "github.com/chiron-engine/chiron/internal/board"

// Network dimensions and evaluation constants.
const (
	BoardSize    = 64
	FeatureCount = board.NumColors * board.NumPieceTypes * BoardSize // 768

	// ActivationScale normalizes accumulator sums before the tanh
	// activation and rescales the result back to integer range.
	ActivationScale = 512.0

	// MaxEvalMagnitude bounds every static evaluation, keeping scores
	// well clear of the mate range.
	MaxEvalMagnitude = 30000
)

// FeatureIndex maps (color, piece, square) to the flat input feature index.
func FeatureIndex(c board.Color, pt board.PieceType, sq board.Square) int {
	return int(c)*board.NumPieceTypes*BoardSize + int(pt)*BoardSize + int(sq)
}
