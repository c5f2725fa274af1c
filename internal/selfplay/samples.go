package selfplay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Sample is one training example: a position, the search score from White's
// perspective, and the final game result (1, 0.5, or 0 for White).
type Sample struct {
	FEN     string  `json:"fen"`
	ScoreCP int     `json:"score_cp"`
	Result  float64 `json:"result"`
}

// SampleWriter streams samples to a zstd-compressed JSON-lines file.
type SampleWriter struct {
	file    *os.File
	encoder *zstd.Encoder
	lines   *json.Encoder
}

// NewSampleWriter creates or truncates the sample file.
func NewSampleWriter(path string) (*SampleWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create sample file: %w", err)
	}

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}

	return &SampleWriter{
		file:    file,
		encoder: encoder,
		lines:   json.NewEncoder(encoder),
	}, nil
}

// Write appends one sample.
func (w *SampleWriter) Write(sample Sample) error {
	return w.lines.Encode(sample)
}

// Close flushes the compressor and closes the file.
func (w *SampleWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// ReadSamples loads every sample from a compressed sample file.
func ReadSamples(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample file: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer decoder.Close()

	var samples []Sample
	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sample Sample
		if err := json.Unmarshal(line, &sample); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}
