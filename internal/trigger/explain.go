package trigger

import (
	"fmt"
	"strings"
)

// Signal reports the phrases of one tier found in a message.
type Signal struct {
	Tier     string   `json:"type"`
	Priority Priority `json:"priority"`
	Detected []string `json:"detected"`
}

// Explain lists every tier whose phrases appear in the message, without
// applying first-match precedence. It is a diagnostic aid for tuning the
// vocabulary; Decide remains the source of truth.
func (p *Policy) Explain(turnNumber int, message string) []Signal {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	t := newTurn(turnNumber, message)

	var signals []Signal
	if m := matching(t.lower, p.vocab.ExplicitCommands); len(m) > 0 {
		signals = append(signals, Signal{Tier: "explicit_command", Priority: PriorityCritical, Detected: m})
	}
	if m := matching(t.lower, p.vocab.ImportanceSignals); len(m) > 0 {
		signals = append(signals, Signal{Tier: "importance_signal", Priority: PriorityHigh, Detected: m})
	}
	if m := matching(t.lower, p.vocab.MemorySignals); len(m) > 0 {
		signals = append(signals, Signal{Tier: "regular_signal", Priority: PriorityMedium, Detected: m})
	}
	if turnNumber >= 1 && p.frequencyFloor(t) {
		signals = append(signals, Signal{Tier: "frequency_floor", Priority: PriorityLow, Detected: []string{fmt.Sprintf("turn %d", turnNumber)}})
	}
	if p.fallback(t) {
		signals = append(signals, Signal{
			Tier:     "fallback_heuristic",
			Priority: PriorityFallback,
			Detected: []string{fmt.Sprintf("long message (%d words) with personal pronouns", len(t.words))},
		})
	}
	return signals
}
