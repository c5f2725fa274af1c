package engine

import (
	"sync"

	"github.com/chiron-engine/chiron/internal/board"
)

// Bound indicates what kind of score a transposition entry holds.
type Bound uint8

const (
	BoundEmpty Bound = iota
	BoundExact       // score inside the search window
	BoundLower       // fail-high, score >= beta
	BoundUpper       // fail-low, score <= original alpha
)

// Number of lock shards (power of 2 for fast modulo).
const ttShardCount = 256

// TTEntry is one transposition table slot. The full key detects collisions;
// a probe is trusted only when the stored key matches.
type TTEntry struct {
	Key   uint64
	Move  board.Move
	Score int16
	Depth int16
	Bound Bound
	Gen   uint8
}

// TranspositionTable is a flat open-addressed table shared by all search
// workers. Entries are read and written under sharded reader/writer locks.
type TranspositionTable struct {
	entries    []TTEntry
	shards     [ttShardCount]sync.RWMutex
	generation uint8
}

// NewTranspositionTable creates a table with the given number of entries.
func NewTranspositionTable(entries int) *TranspositionTable {
	if entries < 1 {
		entries = 1
	}
	return &TranspositionTable{entries: make([]TTEntry, entries)}
}

// NewTranspositionTableMB creates a table sized to roughly the given number
// of megabytes.
func NewTranspositionTableMB(megabytes int) *TranspositionTable {
	const entrySize = 16
	entries := megabytes * 1024 * 1024 / entrySize
	return NewTranspositionTable(entries)
}

// Resize replaces the table with a fresh one of the given entry count.
func (tt *TranspositionTable) Resize(entries int) {
	if entries < 1 {
		entries = 1
	}
	for i := range tt.shards {
		tt.shards[i].Lock()
	}
	tt.entries = make([]TTEntry, entries)
	tt.generation = 0
	for i := range tt.shards {
		tt.shards[i].Unlock()
	}
}

// Size returns the number of entries.
func (tt *TranspositionTable) Size() int {
	return len(tt.entries)
}

func (tt *TranspositionTable) slot(key uint64) int {
	return int(key % uint64(len(tt.entries)))
}

// Probe looks up a position. The returned entry's score is converted from
// the distance-from-node encoding using ply.
func (tt *TranspositionTable) Probe(key uint64, ply int) (TTEntry, bool) {
	idx := tt.slot(key)
	shard := &tt.shards[idx&(ttShardCount-1)]

	shard.RLock()
	entry := tt.entries[idx]
	shard.RUnlock()

	if entry.Bound == BoundEmpty || entry.Key != key {
		return TTEntry{}, false
	}

	entry.Score = int16(FromTTScore(int(entry.Score), ply))
	return entry, true
}

// Store saves a search result. The slot is overwritten when it is empty,
// when the new depth is at least the stored depth, or when the stored entry
// belongs to an earlier search generation.
func (tt *TranspositionTable) Store(key uint64, depth, score int, move board.Move, bound Bound, ply int) {
	idx := tt.slot(key)
	shard := &tt.shards[idx&(ttShardCount-1)]
	stored := ToTTScore(score, ply)

	shard.Lock()
	entry := &tt.entries[idx]
	if entry.Bound == BoundEmpty || depth >= int(entry.Depth) || entry.Gen != tt.generation {
		entry.Key = key
		entry.Move = move
		entry.Score = int16(stored)
		entry.Depth = int16(depth)
		entry.Bound = bound
		entry.Gen = tt.generation
	}
	shard.Unlock()
}

// NextGeneration advances the rolling generation counter. Called at the
// start of each top-level search.
func (tt *TranspositionTable) NextGeneration() {
	tt.generation++
}

// Clear empties the table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.shards {
		tt.shards[i].Lock()
	}
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
	tt.generation = 0
	for i := range tt.shards {
		tt.shards[i].Unlock()
	}
}

// Mate scores are distance-from-root-dependent, so the table stores them as
// distance-from-node: ply is added on store and subtracted on load.

// ToTTScore converts a score for storage at the given ply.
func ToTTScore(score, ply int) int {
	if score > MateThreshold {
		return score + ply
	}
	if score < -MateThreshold {
		return score - ply
	}
	return score
}

// FromTTScore converts a stored score back at the given ply.
func FromTTScore(score, ply int) int {
	if score > MateThreshold {
		return score - ply
	}
	if score < -MateThreshold {
		return score + ply
	}
	return score
}
