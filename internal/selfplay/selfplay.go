// Package selfplay plays engine-vs-engine matches for evaluation and
// training-data generation.
package selfplay

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/chiron-engine/chiron/internal/board"
	"github.com/chiron-engine/chiron/internal/engine"
	"github.com/chiron-engine/chiron/internal/nnue"
	"github.com/chiron-engine/chiron/internal/storage"
)

// EngineConfig describes one side of a match.
type EngineConfig struct {
	Name        string
	MaxDepth    int
	MoveTimeMs  int // 0 = depth-limited only
	NetworkPath string
	HashMB      int
}

// Config describes a match.
type Config struct {
	Games           int
	White           EngineConfig
	Black           EngineConfig
	MaxPlies        int            // adjudicated draw beyond this, default 400
	AlternateColors bool           // swap colors every other game
	SamplePath      string         // write training samples here when non-empty
	Store           *storage.Store // persist records and ratings when non-nil
	EloK            float64
}

// player is one engine instance bound to a config.
type player struct {
	config EngineConfig
	search *engine.Search
}

func newPlayer(config EngineConfig) *player {
	if config.HashMB <= 0 {
		config.HashMB = 32
	}
	evaluator := nnue.NewEvaluator(config.NetworkPath)
	search := engine.NewSearch(config.HashMB, evaluator)
	return &player{config: config, search: search}
}

func (p *player) limits() engine.SearchLimits {
	limits := engine.NewSearchLimits()
	if p.config.MaxDepth > 0 {
		limits.MaxDepth = p.config.MaxDepth
	}
	if p.config.MoveTimeMs > 0 {
		limits.MoveTimeMs = p.config.MoveTimeMs
	}
	return limits
}

// Runner plays the configured match.
type Runner struct {
	config Config
	log    zerolog.Logger
}

// NewRunner creates a match runner.
func NewRunner(config Config, log zerolog.Logger) *Runner {
	if config.Games < 1 {
		config.Games = 1
	}
	if config.MaxPlies <= 0 {
		config.MaxPlies = 400
	}
	if config.EloK <= 0 {
		config.EloK = DefaultEloK
	}
	if config.White.Name == "" {
		config.White.Name = "white"
	}
	if config.Black.Name == "" {
		config.Black.Name = "black"
	}
	return &Runner{config: config, log: log}
}

// Run plays all games and returns their records.
func (r *Runner) Run() ([]storage.GameRecord, error) {
	var sampleWriter *SampleWriter
	if r.config.SamplePath != "" {
		var err error
		sampleWriter, err = NewSampleWriter(r.config.SamplePath)
		if err != nil {
			return nil, err
		}
		defer sampleWriter.Close()
	}

	first := newPlayer(r.config.White)
	second := newPlayer(r.config.Black)

	var records []storage.GameRecord
	for game := 0; game < r.config.Games; game++ {
		white, black := first, second
		if r.config.AlternateColors && game%2 == 1 {
			white, black = second, first
		}

		record, samples, err := r.playGame(white, black)
		if err != nil {
			return records, fmt.Errorf("game %d: %w", game+1, err)
		}
		records = append(records, record)

		r.log.Info().
			Int("game", game+1).
			Str("white", record.White).
			Str("black", record.Black).
			Str("result", record.Result).
			Str("termination", record.Termination).
			Int("plies", record.Plies).
			Msg("game finished")

		if sampleWriter != nil {
			for _, sample := range samples {
				if err := sampleWriter.Write(sample); err != nil {
					return records, err
				}
			}
		}

		if r.config.Store != nil {
			if err := r.recordResult(record); err != nil {
				return records, err
			}
		}
	}

	return records, nil
}

// playGame plays a single game and returns its record and training samples.
func (r *Runner) playGame(white, black *player) (storage.GameRecord, []Sample, error) {
	record := storage.GameRecord{
		White: white.config.Name,
		Black: black.config.Name,
	}

	pos := board.NewPosition()
	hashes := []uint64{pos.Hash}
	var samples []Sample
	var stop atomic.Bool

	result, termination := "", ""
	for ply := 0; ply < r.config.MaxPlies; ply++ {
		if !pos.HasLegalMoves() {
			if pos.InCheck() {
				if pos.SideToMove == board.White {
					result = "0-1"
				} else {
					result = "1-0"
				}
				termination = "checkmate"
			} else {
				result, termination = "1/2-1/2", "stalemate"
			}
			break
		}

		if pos.HalfMoveClock >= 100 {
			result, termination = "1/2-1/2", "fifty-move rule"
			break
		}
		if pos.IsInsufficientMaterial() {
			result, termination = "1/2-1/2", "insufficient material"
			break
		}
		if countHash(hashes, pos.Hash) >= 3 {
			result, termination = "1/2-1/2", "threefold repetition"
			break
		}

		mover := white
		if pos.SideToMove == board.Black {
			mover = black
		}

		mover.search.SetHistory(hashes)
		searchResult := mover.search.Run(pos, mover.limits(), &stop, nil)
		if searchResult.BestMove == board.NoMove {
			result, termination = "1/2-1/2", "no move returned"
			break
		}

		whiteScore := searchResult.Score
		if pos.SideToMove == board.Black {
			whiteScore = -whiteScore
		}
		samples = append(samples, Sample{
			FEN:     pos.ToFEN(),
			ScoreCP: whiteScore,
		})

		record.Moves = append(record.Moves, searchResult.BestMove.ToSAN(pos))
		if _, err := pos.MakeMove(searchResult.BestMove); err != nil {
			return record, nil, err
		}
		hashes = append(hashes, pos.Hash)
	}

	if result == "" {
		result, termination = "1/2-1/2", "move limit"
	}

	record.Result = result
	record.Termination = termination
	record.Plies = len(record.Moves)

	outcome := 0.5
	switch result {
	case "1-0":
		outcome = 1.0
	case "0-1":
		outcome = 0.0
	}
	for i := range samples {
		samples[i].Result = outcome
	}

	return record, samples, nil
}

// recordResult persists the game and updates both ratings.
func (r *Runner) recordResult(record storage.GameRecord) error {
	store := r.config.Store
	if err := store.RecordGame(record); err != nil {
		return err
	}

	whiteRating, err := store.LoadRating(record.White)
	if err != nil {
		return err
	}
	blackRating, err := store.LoadRating(record.Black)
	if err != nil {
		return err
	}

	score := 0.5
	switch record.Result {
	case "1-0":
		score = 1.0
	case "0-1":
		score = 0.0
	}

	newWhite, newBlack := EloUpdate(whiteRating, blackRating, score, r.config.EloK)
	if err := store.SaveRating(record.White, newWhite); err != nil {
		return err
	}
	if err := store.SaveRating(record.Black, newBlack); err != nil {
		return err
	}

	r.log.Debug().
		Float64("white_rating", newWhite).
		Float64("black_rating", newBlack).
		Msg("ratings updated")
	return nil
}

func countHash(hashes []uint64, hash uint64) int {
	count := 0
	for _, h := range hashes {
		if h == hash {
			count++
		}
	}
	return count
}
