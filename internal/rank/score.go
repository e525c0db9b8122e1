package rank

import (
	"math"
	"strings"

	"github.com/rcliao/turn-memory/internal/model"
)

// LexicalScore adds 1 for each lower-cased query token longer than two
// characters that occurs in "key value".
func LexicalScore(query string, m model.Memory) float64 {
	haystack := strings.ToLower(m.Key + " " + m.Value)
	score := 0.0
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if len(tok) > 2 && strings.Contains(haystack, tok) {
			score++
		}
	}
	return score
}

// RecencyBoost decays over three tiers of hours since creation:
// same session (4h), same day (24h) and same week (168h).
func RecencyBoost(h float64) float64 {
	switch {
	case h <= 4:
		return 3.0 * (1 - math.Max(h, 0)/4)
	case h <= 24:
		return 1.0 * (1 - (h-4)/20)
	case h <= 168:
		return 0.5 * (1 - (h-24)/144)
	default:
		return 0
	}
}

// TurnBoost favours memories from nearby turns. It is zero when the
// current turn is unknown or the memory comes from a later turn.
func TurnBoost(currentTurn, sourceTurn int) float64 {
	if currentTurn <= 0 || sourceTurn > currentTurn {
		return 0
	}
	return math.Max(0, 2.0-float64(currentTurn-sourceTurn)/10)
}

// ImportanceBoost doubles the importance score.
func ImportanceBoost(importance float64) float64 {
	return importance * 2.0
}

// AccessBoost rewards frequently injected memories, capped at 1.
func AccessBoost(accessCount int) float64 {
	return math.Min(1.0, float64(accessCount)*0.1)
}

// HybridRecencyScore orders memories for injection when there is no query.
// It is tuned separately from RecencyBoost and the two are not
// interchangeable.
func HybridRecencyScore(h float64, sourceTurn int) float64 {
	var timeScore float64
	if h <= 6 {
		timeScore = 1000 - h*100
	} else {
		timeScore = 400 - math.Min(h*2, 400)
	}
	return timeScore + math.Max(0, float64(100-sourceTurn))
}
