// Package trigger decides, per conversational turn, whether memory
// extraction should run and at what priority.
package trigger

import (
	"strings"
	"unicode"
)

// Priority ranks how urgently a turn should be extracted.
type Priority string

const (
	PriorityNone     Priority = "none"
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityFallback Priority = "fallback"
)

// Reason names the rule that produced a decision.
type Reason string

const (
	ReasonNoMessage       Reason = "no_message"
	ReasonInvalidTurn     Reason = "invalid_turn"
	ReasonExplicitCommand Reason = "explicit_memory_command"
	ReasonHighImportance  Reason = "high_importance_signal"
	ReasonMemorySignal    Reason = "memory_signal_detected"
	ReasonFrequency       Reason = "frequency_based"
	ReasonFallback        Reason = "fallback_heuristic"
	ReasonNoSignal        Reason = "no_memory_signal"
)

// Decision is the outcome of evaluating a turn.
type Decision struct {
	ShouldExtract bool     `json:"should_extract"`
	Reason        Reason   `json:"reason"`
	Priority      Priority `json:"priority"`
	Force         bool     `json:"force_extraction"`
	Boost         float64  `json:"extraction_boost"`
}

// Turn is the policy's view of one user message.
type Turn struct {
	Number  int
	Message string
	lower   string
	words   []string
}

func newTurn(number int, message string) Turn {
	lower := strings.ToLower(strings.ReplaceAll(message, "’", "'"))
	return Turn{Number: number, Message: message, lower: lower, words: strings.Fields(lower)}
}

// Rule is one row of the decision table: the first rule whose Match
// returns true determines the decision.
type Rule struct {
	Name    string
	Match   func(Turn) bool
	Outcome Decision
}

// Policy is an ordered decision table over a Vocabulary.
type Policy struct {
	vocab Vocabulary
	rules []Rule
}

// NewPolicy builds the standard cascade over vocab.
func NewPolicy(vocab Vocabulary) *Policy {
	vocab = vocab.normalized()
	p := &Policy{vocab: vocab}
	p.rules = []Rule{
		{
			Name:    "explicit_command",
			Match:   func(t Turn) bool { return containsAny(t.lower, vocab.ExplicitCommands) },
			Outcome: Decision{ShouldExtract: true, Reason: ReasonExplicitCommand, Priority: PriorityCritical, Force: true, Boost: 2.0},
		},
		{
			Name:    "high_importance",
			Match:   func(t Turn) bool { return containsAny(t.lower, vocab.ImportanceSignals) },
			Outcome: Decision{ShouldExtract: true, Reason: ReasonHighImportance, Priority: PriorityHigh, Boost: 1.5},
		},
		{
			Name:    "memory_signal",
			Match:   func(t Turn) bool { return containsAny(t.lower, vocab.MemorySignals) },
			Outcome: Decision{ShouldExtract: true, Reason: ReasonMemorySignal, Priority: PriorityMedium, Boost: 1.0},
		},
		{
			Name:    "frequency_floor",
			Match:   p.frequencyFloor,
			Outcome: Decision{ShouldExtract: true, Reason: ReasonFrequency, Priority: PriorityLow, Boost: 0.5},
		},
		{
			Name:    "fallback",
			Match:   p.fallback,
			Outcome: Decision{ShouldExtract: true, Reason: ReasonFallback, Priority: PriorityFallback, Boost: 0.3},
		},
	}
	return p
}

// Default returns a policy over the embedded vocabulary.
func Default() *Policy {
	return NewPolicy(DefaultVocabulary())
}

// Rules returns the decision table in evaluation order.
func (p *Policy) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

// Decide evaluates the turn against the decision table. It is pure: the
// same input always yields the same decision.
func (p *Policy) Decide(turnNumber int, message string) Decision {
	if strings.TrimSpace(message) == "" {
		return Decision{Reason: ReasonNoMessage, Priority: PriorityNone}
	}
	if turnNumber < 1 {
		return Decision{Reason: ReasonInvalidTurn, Priority: PriorityNone}
	}

	t := newTurn(turnNumber, message)
	for _, r := range p.rules {
		if r.Match(t) {
			return r.Outcome
		}
	}
	return Decision{Reason: ReasonNoSignal, Priority: PriorityNone}
}

func (p *Policy) frequencyFloor(t Turn) bool {
	return t.Number == 1 ||
		t.Number%p.vocab.FrequencyInterval == 0 ||
		t.Number%p.vocab.MilestoneInterval == 0
}

func (p *Policy) fallback(t Turn) bool {
	if len(t.words) < p.vocab.FallbackMinWords {
		return false
	}
	for _, w := range t.words {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && r != '\'' })
		for _, pronoun := range p.vocab.FirstPersonPronouns {
			if w == pronoun {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, phrases []string) bool {
	for _, ph := range phrases {
		if strings.Contains(s, ph) {
			return true
		}
	}
	return false
}

func matching(s string, phrases []string) []string {
	var out []string
	for _, ph := range phrases {
		if strings.Contains(s, ph) {
			out = append(out, ph)
		}
	}
	return out
}
