package nnue

// Accumulator stores, for each color, the per-neuron sum of input weights
// over that color's pieces. Incremental updates keep it in sync with the
// board during search; integer storage keeps the updates associative and
// exact.
type Accumulator struct {
	White []int32
	Black []int32
}

// NewAccumulator creates an accumulator sized for the given hidden layer.
func NewAccumulator(hiddenSize int) Accumulator {
	return Accumulator{
		White: make([]int32, hiddenSize),
		Black: make([]int32, hiddenSize),
	}
}

// Reset zeroes both sides.
func (a *Accumulator) Reset() {
	for i := range a.White {
		a.White[i] = 0
		a.Black[i] = 0
	}
}

// CopyFrom copies src into a. Both must be sized for the same network.
func (a *Accumulator) CopyFrom(src *Accumulator) {
	copy(a.White, src.White)
	copy(a.Black, src.Black)
}
