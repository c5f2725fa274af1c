package engine

// TimeConfig holds the tunable time-allocation heuristics.
type TimeConfig struct {
	BaseAllocation float64 // fraction of remaining time to invest each move
	IncrementBonus float64 // additional fraction of the increment to invest
	MinTimeMs      int
	MaxTimeMs      int
}

// DefaultTimeConfig returns the standard allocation parameters.
func DefaultTimeConfig() TimeConfig {
	return TimeConfig{
		BaseAllocation: 0.04,
		IncrementBonus: 0.5,
		MinTimeMs:      10,
		MaxTimeMs:      2000,
	}
}

// TimeManager converts clock state into a per-move time budget.
type TimeManager struct {
	config TimeConfig
}

// NewTimeManager creates a time manager with the given configuration.
func NewTimeManager(config TimeConfig) TimeManager {
	return TimeManager{config: config}
}

// AllocateTimeMs returns the milliseconds to invest in the current move.
// Early moves get a boost, late moves a discount; the allocation is capped
// by an even split of the remaining time and clamped to the configured
// bounds.
func (tm TimeManager) AllocateTimeMs(remainingMs, incrementMs, moveNumber, movesToGo int) int {
	phaseBoost := 1.0
	switch {
	case moveNumber < 20:
		phaseBoost = 1.2
	case moveNumber > 60:
		phaseBoost = 0.8
	}

	allocation := float64(remainingMs)*tm.config.BaseAllocation*phaseBoost +
		float64(incrementMs)*tm.config.IncrementBonus

	divisor := movesToGo
	if divisor < 30 {
		divisor = 30
	}
	ceiling := float64(remainingMs) / float64(divisor)
	if allocation > ceiling {
		allocation = ceiling
	}

	ms := int(allocation)
	if ms < tm.config.MinTimeMs {
		ms = tm.config.MinTimeMs
	}
	if ms > tm.config.MaxTimeMs {
		ms = tm.config.MaxTimeMs
	}
	return ms
}
