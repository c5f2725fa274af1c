package nnue

import (
	"math"

	"github.com/chiron-engine/chiron/internal/board"
)

// Network holds the evaluation weights: input weights into the hidden layer
// (neuron-major), hidden biases, the output projection, and the global bias
// and scale applied to the projected sum.
type Network struct {
	hiddenSize    int
	inputWeights  []int32 // [neuron*FeatureCount + feature]
	hiddenBiases  []int32
	outputWeights []float32
	bias          int32
	scale         float32
}

// NewNetwork creates an empty network; callers load weights or the default.
func NewNetwork() *Network {
	return &Network{}
}

// HiddenSize returns the hidden layer width.
func (n *Network) HiddenSize() int {
	return n.hiddenSize
}

// Bias returns the global output bias.
func (n *Network) Bias() int32 {
	return n.bias
}

// Scale returns the global output scale.
func (n *Network) Scale() float32 {
	return n.scale
}

func (n *Network) ensureStorage(hiddenSize int) {
	if hiddenSize < 1 {
		hiddenSize = 1
	}
	n.hiddenSize = hiddenSize
	n.inputWeights = make([]int32, hiddenSize*FeatureCount)
	n.hiddenBiases = make([]int32, hiddenSize)
	n.outputWeights = make([]float32, hiddenSize)
}

// InputWeight returns the weight from a feature into a hidden neuron.
func (n *Network) InputWeight(feature, neuron int) int32 {
	if feature < 0 || feature >= FeatureCount || neuron < 0 || neuron >= n.hiddenSize {
		return 0
	}
	return n.inputWeights[neuron*FeatureCount+feature]
}

// SetInputWeight sets the weight from a feature into a hidden neuron.
func (n *Network) SetInputWeight(feature, neuron int, value int32) {
	if feature < 0 || feature >= FeatureCount || neuron < 0 || neuron >= n.hiddenSize {
		return
	}
	n.inputWeights[neuron*FeatureCount+feature] = value
}

// LoadDefault initializes the network with the piece-value fallback: a single
// hidden neuron whose input weights are the classical piece values, unit
// output, zero biases, unit scale. The result is the White-minus-Black
// material difference passed through the tanh activation, so its magnitude
// never exceeds ActivationScale.
func (n *Network) LoadDefault() {
	n.ensureStorage(1)
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			value := int32(board.PieceValue[pt])
			for sq := board.A1; sq <= board.H8; sq++ {
				n.inputWeights[FeatureIndex(c, pt, sq)] = value
			}
		}
	}
	n.outputWeights[0] = 1.0
	n.bias = 0
	n.scale = 1.0
}

// Forward runs the network on an accumulator and returns centipawns oriented
// to the side to move.
func (n *Network) Forward(acc *Accumulator, sideToMove board.Color) int {
	raw := float64(n.bias)
	for i := 0; i < n.hiddenSize; i++ {
		pre := acc.White[i] - acc.Black[i] + n.hiddenBiases[i]
		normalized := float64(pre) / ActivationScale
		act := math.Tanh(normalized) * ActivationScale
		raw += act * float64(n.outputWeights[i])
	}

	score := int(math.Round(raw * float64(n.scale)))
	if score > MaxEvalMagnitude {
		score = MaxEvalMagnitude
	} else if score < -MaxEvalMagnitude {
		score = -MaxEvalMagnitude
	}

	if sideToMove == board.White {
		return score
	}
	return -score
}
