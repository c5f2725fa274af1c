package selfplay

import "math"

// DefaultEloK is the K-factor used when the configuration leaves it zero.
const DefaultEloK = 24.0

// EloExpected returns the expected score of a player rated a against b.
func EloExpected(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// EloUpdate returns the new ratings after a game. score is the first
// player's result: 1 for a win, 0.5 for a draw, 0 for a loss.
func EloUpdate(a, b, score, k float64) (float64, float64) {
	expected := EloExpected(a, b)
	delta := k * (score - expected)
	return a + delta, b - delta
}
