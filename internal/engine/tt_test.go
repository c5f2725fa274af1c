package engine

import (
	"testing"

	"github.com/chiron-engine/chiron/internal/board"
)

// TestMateScoreAdjustRoundTrip checks from_tt(to_tt(s, ply), ply) == s for
// normal, winning-mate, and losing-mate scores across plies.
func TestMateScoreAdjustRoundTrip(t *testing.T) {
	scores := []int{0, 1, -1, 250, -250, MateThreshold, -MateThreshold,
		MateValue - 1, -(MateValue - 1), MateValue - 40, -(MateValue - 40)}

	for _, score := range scores {
		for ply := 0; ply < 64; ply += 7 {
			got := FromTTScore(ToTTScore(score, ply), ply)
			if got != score {
				t.Errorf("round trip (score=%d, ply=%d) = %d", score, ply, got)
			}
		}
	}
}

func TestTTStoreProbe(t *testing.T) {
	tt := NewTranspositionTable(1024)
	key := uint64(0xDEADBEEFCAFE1234)
	move := board.NewMove(board.E2, board.E4)

	tt.Store(key, 7, 42, move, BoundExact, 3)

	entry, ok := tt.Probe(key, 3)
	if !ok {
		t.Fatalf("probe missed after store")
	}
	if entry.Key != key || entry.Depth != 7 || entry.Score != 42 ||
		entry.Move != move || entry.Bound != BoundExact {
		t.Errorf("probe returned %+v", entry)
	}

	// A different key mapping to another slot misses.
	if _, ok := tt.Probe(key+1, 0); ok {
		t.Errorf("probe of unknown key should miss")
	}
}

// TestTTMateScorePlyAdjustment stores a mate score at one ply and probes it
// from another; the distance-to-mate must track the probing node.
func TestTTMateScorePlyAdjustment(t *testing.T) {
	tt := NewTranspositionTable(64)
	key := uint64(0x123456789)
	mateAt5 := MateValue - 5

	tt.Store(key, 9, mateAt5, board.NoMove, BoundExact, 5)

	// Stored as distance-from-node (mate in 0 from the storing node); a
	// probe at ply 2 sees mate two plies from the root.
	entry, ok := tt.Probe(key, 2)
	if !ok {
		t.Fatalf("probe missed")
	}
	if int(entry.Score) != MateValue-2 {
		t.Errorf("mate score probed at ply 2 = %d, want %d", entry.Score, MateValue-2)
	}
}

func TestTTReplacementPolicy(t *testing.T) {
	tt := NewTranspositionTable(64)
	key := uint64(77)
	deep := board.NewMove(board.E2, board.E4)
	shallow := board.NewMove(board.D2, board.D4)

	// Deeper entries survive shallower stores within a generation.
	tt.Store(key, 10, 100, deep, BoundExact, 0)
	tt.Store(key, 4, -50, shallow, BoundUpper, 0)

	entry, ok := tt.Probe(key, 0)
	if !ok || entry.Move != deep || entry.Depth != 10 {
		t.Errorf("shallow store replaced a deeper entry: %+v", entry)
	}

	// Equal depth overwrites.
	tt.Store(key, 10, 60, shallow, BoundLower, 0)
	entry, _ = tt.Probe(key, 0)
	if entry.Move != shallow {
		t.Errorf("equal-depth store should overwrite")
	}

	// A new generation overwrites regardless of depth.
	tt.NextGeneration()
	tt.Store(key, 1, 5, deep, BoundExact, 0)
	entry, _ = tt.Probe(key, 0)
	if entry.Depth != 1 || entry.Move != deep {
		t.Errorf("stale-generation entry should be replaced: %+v", entry)
	}
}

func TestTTClearAndResize(t *testing.T) {
	tt := NewTranspositionTable(64)
	tt.Store(5, 3, 9, board.NoMove, BoundExact, 0)

	tt.Clear()
	if _, ok := tt.Probe(5, 0); ok {
		t.Errorf("probe hit after clear")
	}

	tt.Resize(128)
	if tt.Size() != 128 {
		t.Errorf("size after resize = %d", tt.Size())
	}
}
