package selfplay

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/chiron-engine/chiron/internal/board"
)

func TestEloExpectedSymmetry(t *testing.T) {
	if got := EloExpected(1500, 1500); got != 0.5 {
		t.Errorf("equal ratings: expected score %v, want 0.5", got)
	}

	strong := EloExpected(1700, 1500)
	weak := EloExpected(1500, 1700)
	if math.Abs(strong+weak-1.0) > 1e-12 {
		t.Errorf("expected scores should sum to 1: %v + %v", strong, weak)
	}
	if strong <= 0.5 {
		t.Errorf("higher-rated player should be favored, got %v", strong)
	}
}

func TestEloUpdateDirection(t *testing.T) {
	// An upset win moves more points than a favorite's win.
	a1, b1 := EloUpdate(1500, 1700, 1.0, DefaultEloK)
	if a1 <= 1500 || b1 >= 1700 {
		t.Errorf("upset win: ratings moved the wrong way: %v, %v", a1, b1)
	}

	a2, b2 := EloUpdate(1700, 1500, 1.0, DefaultEloK)
	if a2-1700 >= a1-1500 {
		t.Errorf("favorite's win should earn fewer points: %v vs %v", a2-1700, a1-1500)
	}
	if math.Abs((a2-1700)+(b2-1500)) > 1e-12 {
		t.Errorf("rating changes must be zero-sum")
	}
}

func TestSampleFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.jsonl.zst")

	want := []Sample{
		{FEN: board.StartFEN, ScoreCP: 12, Result: 1},
		{FEN: "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", ScoreCP: -30000, Result: 0.5},
	}

	w, err := NewSampleWriter(path)
	if err != nil {
		t.Fatalf("NewSampleWriter: %v", err)
	}
	for _, sample := range want {
		if err := w.Write(sample); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadSamples(path)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("samples differ (-want +got):\n%s", diff)
	}
}

// TestShortMatch plays a fast two-game match and checks the records hold
// replayable SAN move lists.
func TestShortMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("self-play match in -short mode")
	}

	samplePath := filepath.Join(t.TempDir(), "samples.jsonl.zst")
	config := Config{
		Games:           2,
		White:           EngineConfig{Name: "alpha", MaxDepth: 2, HashMB: 1},
		Black:           EngineConfig{Name: "beta", MaxDepth: 2, HashMB: 1},
		MaxPlies:        60,
		AlternateColors: true,
		SamplePath:      samplePath,
	}

	records, err := NewRunner(config, zerolog.Nop()).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("played %d games, want 2", len(records))
	}

	// Colors alternate between games.
	if records[0].White != "alpha" || records[1].White != "beta" {
		t.Errorf("colors did not alternate: %q then %q", records[0].White, records[1].White)
	}

	for i, record := range records {
		if record.Result == "" || record.Termination == "" {
			t.Errorf("game %d missing result/termination: %+v", i, record)
		}
		if record.Plies != len(record.Moves) {
			t.Errorf("game %d ply count mismatch", i)
		}

		// Every SAN move must replay legally from the start.
		pos := board.NewPosition()
		for j, san := range record.Moves {
			m, err := board.ParseSAN(san, pos)
			if err != nil {
				t.Fatalf("game %d move %d (%q): %v", i, j, san, err)
			}
			if _, err := pos.MakeMove(m); err != nil {
				t.Fatalf("game %d move %d (%q): %v", i, j, san, err)
			}
		}
	}

	samples, err := ReadSamples(samplePath)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if len(samples) == 0 {
		t.Errorf("no training samples written")
	}
	for _, sample := range samples {
		if _, err := board.ParseFEN(sample.FEN); err != nil {
			t.Errorf("sample FEN %q does not parse: %v", sample.FEN, err)
		}
		if sample.Result != 0 && sample.Result != 0.5 && sample.Result != 1 {
			t.Errorf("sample result %v out of range", sample.Result)
		}
	}
}
