package nnue

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Weight file format: magic "NNUE", then a little-endian u32 version.
// Version 2 stores {feature_count, hidden_size, bias, scale, hidden biases
// as i16, output weights as f32, input weights as i16 neuron-major}.
// Version 1 is the degenerate hidden_size=1 form kept for compatibility.
const (
	weightsVersion1 = 1
	weightsVersion2 = 2
)

var weightsMagic = [4]byte{'N', 'N', 'U', 'E'}

// ErrBadFormat reports a weights file with a wrong magic, version, or
// feature count.
var ErrBadFormat = errors.New("invalid network file")

// LoadFile loads network weights from a binary file.
func (n *Network) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open network file: %w", err)
	}
	defer f.Close()
	return n.ReadFrom(bufio.NewReader(f))
}

// ReadFrom loads network weights from a reader.
func (n *Network) ReadFrom(r io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if magic != weightsMagic {
		return fmt.Errorf("%w: magic mismatch", ErrBadFormat)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	var featureCount uint32
	if err := binary.Read(r, binary.LittleEndian, &featureCount); err != nil {
		return fmt.Errorf("read feature count: %w", err)
	}
	if featureCount != FeatureCount {
		return fmt.Errorf("%w: feature count %d, want %d", ErrBadFormat, featureCount, FeatureCount)
	}

	switch version {
	case weightsVersion1:
		return n.readV1(r)
	case weightsVersion2:
		return n.readV2(r)
	default:
		return fmt.Errorf("%w: unsupported version %d", ErrBadFormat, version)
	}
}

func (n *Network) readV1(r io.Reader) error {
	var bias int32
	var scale float32
	if err := binary.Read(r, binary.LittleEndian, &bias); err != nil {
		return fmt.Errorf("read bias: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &scale); err != nil {
		return fmt.Errorf("read scale: %w", err)
	}

	weights := make([]int16, FeatureCount)
	if err := binary.Read(r, binary.LittleEndian, weights); err != nil {
		return fmt.Errorf("read input weights: %w", err)
	}

	n.ensureStorage(1)
	for i, w := range weights {
		n.inputWeights[i] = int32(w)
	}
	n.outputWeights[0] = 1.0
	n.bias = bias
	n.scale = scale
	return nil
}

func (n *Network) readV2(r io.Reader) error {
	var hiddenSize uint32
	if err := binary.Read(r, binary.LittleEndian, &hiddenSize); err != nil {
		return fmt.Errorf("read hidden size: %w", err)
	}
	if hiddenSize == 0 {
		return fmt.Errorf("%w: zero hidden size", ErrBadFormat)
	}

	var bias int32
	var scale float32
	if err := binary.Read(r, binary.LittleEndian, &bias); err != nil {
		return fmt.Errorf("read bias: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &scale); err != nil {
		return fmt.Errorf("read scale: %w", err)
	}

	n.ensureStorage(int(hiddenSize))

	hiddenBiases := make([]int16, hiddenSize)
	if err := binary.Read(r, binary.LittleEndian, hiddenBiases); err != nil {
		return fmt.Errorf("read hidden biases: %w", err)
	}

	if err := binary.Read(r, binary.LittleEndian, n.outputWeights); err != nil {
		return fmt.Errorf("read output weights: %w", err)
	}

	weights := make([]int16, int(hiddenSize)*FeatureCount)
	if err := binary.Read(r, binary.LittleEndian, weights); err != nil {
		return fmt.Errorf("read input weights: %w", err)
	}

	for i, b := range hiddenBiases {
		n.hiddenBiases[i] = int32(b)
	}
	for i, w := range weights {
		n.inputWeights[i] = int32(w)
	}
	n.bias = bias
	n.scale = scale
	return nil
}

// SaveFile writes the network to a binary file in the version 2 layout.
func (n *Network) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create network file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := n.WriteTo(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write network file: %w", err)
	}
	return nil
}

// WriteTo writes the network to a writer in the version 2 layout.
func (n *Network) WriteTo(w io.Writer) error {
	if _, err := w.Write(weightsMagic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}

	header := []uint32{weightsVersion2, FeatureCount, uint32(n.hiddenSize)}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, n.bias); err != nil {
		return fmt.Errorf("write bias: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, n.scale); err != nil {
		return fmt.Errorf("write scale: %w", err)
	}

	hiddenBiases := make([]int16, n.hiddenSize)
	for i, b := range n.hiddenBiases {
		hiddenBiases[i] = clampInt16(b)
	}
	if err := binary.Write(w, binary.LittleEndian, hiddenBiases); err != nil {
		return fmt.Errorf("write hidden biases: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, n.outputWeights); err != nil {
		return fmt.Errorf("write output weights: %w", err)
	}

	weights := make([]int16, len(n.inputWeights))
	for i, v := range n.inputWeights {
		weights[i] = clampInt16(v)
	}
	if err := binary.Write(w, binary.LittleEndian, weights); err != nil {
		return fmt.Errorf("write input weights: %w", err)
	}

	return nil
}

func clampInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
