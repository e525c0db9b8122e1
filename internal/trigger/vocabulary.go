package trigger

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed vocabulary.toml
var defaultVocabulary string

// Vocabulary holds the lookup tables and thresholds the policy evaluates.
// It is data, versioned alongside the code, and can be overridden from a
// TOML file without touching the decision table.
type Vocabulary struct {
	Version             int      `toml:"version"`
	ExplicitCommands    []string `toml:"explicit_commands"`
	ImportanceSignals   []string `toml:"importance_signals"`
	MemorySignals       []string `toml:"memory_signals"`
	FirstPersonPronouns []string `toml:"first_person_pronouns"`
	FallbackMinWords    int      `toml:"fallback_min_words"`
	FrequencyInterval   int      `toml:"frequency_interval"`
	MilestoneInterval   int      `toml:"milestone_interval"`
}

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() Vocabulary {
	v, err := ParseVocabulary(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}

// LoadVocabulary reads a vocabulary file. Fields missing from the file keep
// their embedded defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	v := DefaultVocabulary()
	if _, err := toml.Decode(string(b), &v); err != nil {
		return Vocabulary{}, fmt.Errorf("decode vocabulary %s: %w", path, err)
	}
	return v.normalized(), nil
}

// ParseVocabulary decodes a TOML vocabulary document.
func ParseVocabulary(doc string) (Vocabulary, error) {
	var v Vocabulary
	if _, err := toml.Decode(doc, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("decode vocabulary: %w", err)
	}
	return v.normalized(), nil
}

func (v Vocabulary) normalized() Vocabulary {
	v.ExplicitCommands = lowerAll(v.ExplicitCommands)
	v.ImportanceSignals = lowerAll(v.ImportanceSignals)
	v.MemorySignals = lowerAll(v.MemorySignals)
	v.FirstPersonPronouns = lowerAll(v.FirstPersonPronouns)
	if v.FallbackMinWords <= 0 {
		v.FallbackMinWords = 20
	}
	if v.FrequencyInterval <= 0 {
		v.FrequencyInterval = 2
	}
	if v.MilestoneInterval <= 0 {
		v.MilestoneInterval = 10
	}
	return v
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
