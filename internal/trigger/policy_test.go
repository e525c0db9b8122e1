package trigger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideNoMessage(t *testing.T) {
	d := Default().Decide(1, "")
	assert.False(t, d.ShouldExtract)
	assert.Equal(t, ReasonNoMessage, d.Reason)
	assert.Equal(t, PriorityNone, d.Priority)
}

func TestDecideInvalidTurn(t *testing.T) {
	d := Default().Decide(0, "remember this")
	assert.False(t, d.ShouldExtract)
	assert.Equal(t, ReasonInvalidTurn, d.Reason)
}

func TestExplicitCommandDominates(t *testing.T) {
	// "remember" is explicit, "i like" is a generic signal, "my name" is high importance.
	d := Default().Decide(3, "Please remember that I like tea and my name is Bo")
	assert.True(t, d.ShouldExtract)
	assert.Equal(t, PriorityCritical, d.Priority)
	assert.Equal(t, ReasonExplicitCommand, d.Reason)
	assert.True(t, d.Force)
	assert.Equal(t, 2.0, d.Boost)
}

func TestHighImportanceSignal(t *testing.T) {
	d := Default().Decide(1, "My name is Alice and I work at Acme")
	assert.Equal(t, PriorityHigh, d.Priority)
	assert.Equal(t, ReasonHighImportance, d.Reason)
	assert.False(t, d.Force)
	assert.Equal(t, 1.5, d.Boost)
}

func TestGenericSignal(t *testing.T) {
	d := Default().Decide(3, "honestly I enjoy long walks")
	assert.Equal(t, PriorityMedium, d.Priority)
	assert.Equal(t, ReasonMemorySignal, d.Reason)
	assert.Equal(t, 1.0, d.Boost)
}

func TestFrequencyFloor(t *testing.T) {
	p := Default()
	msg := "ok thanks"
	for _, turn := range []int{1, 2, 4, 6, 8, 10, 12, 20} {
		d := p.Decide(turn, msg)
		assert.True(t, d.ShouldExtract, "turn %d", turn)
		assert.Equal(t, PriorityLow, d.Priority, "turn %d", turn)
		assert.Equal(t, 0.5, d.Boost, "turn %d", turn)
	}
	for _, turn := range []int{3, 5, 7, 9} {
		d := p.Decide(turn, msg)
		assert.False(t, d.ShouldExtract, "turn %d", turn)
		assert.Equal(t, ReasonNoSignal, d.Reason, "turn %d", turn)
	}
}

func TestFallbackHeuristic(t *testing.T) {
	long := "so yesterday me and a couple of colleagues drove out to the coast " +
		"to see whether the weather would hold up for a picnic on the beach"
	require.GreaterOrEqual(t, len(strings.Fields(long)), 20)

	d := Default().Decide(3, long)
	assert.True(t, d.ShouldExtract)
	assert.Equal(t, PriorityFallback, d.Priority)
	assert.Equal(t, 0.3, d.Boost)

	noPronoun := "so yesterday the team and a couple of colleagues drove out to the coast " +
		"to see whether the weather would hold up for a picnic on the beach"
	d = Default().Decide(3, noPronoun)
	assert.False(t, d.ShouldExtract)

	d = Default().Decide(3, "me too, short")
	assert.False(t, d.ShouldExtract)
}

func TestDecideDeterministic(t *testing.T) {
	p := Default()
	msg := "I usually wake up at 7am"
	first := p.Decide(5, msg)
	for range 10 {
		assert.Equal(t, first, p.Decide(5, msg))
	}
}

func TestRulesOrder(t *testing.T) {
	var names []string
	for _, r := range Default().Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"explicit_command", "high_importance", "memory_signal", "frequency_floor", "fallback"}, names)
}

func TestExplain(t *testing.T) {
	signals := Default().Explain(2, "Don't forget: I love sushi")
	require.NotEmpty(t, signals)

	tiers := map[string][]string{}
	for _, s := range signals {
		tiers[s.Tier] = s.Detected
	}
	assert.Contains(t, tiers["explicit_command"], "don't forget")
	assert.Contains(t, tiers["regular_signal"], "i love")
	assert.Contains(t, tiers, "frequency_floor")
}

func TestExplainWhitespaceMessage(t *testing.T) {
	assert.Empty(t, Default().Explain(2, "   \n\t"))
	assert.Equal(t, ReasonNoMessage, Default().Decide(2, "   \n\t").Reason)
}

func TestCustomVocabulary(t *testing.T) {
	v, err := ParseVocabulary(`
explicit_commands = ["Note This"]
frequency_interval = 3
milestone_interval = 7
`)
	require.NoError(t, err)
	p := NewPolicy(v)

	assert.Equal(t, PriorityCritical, p.Decide(5, "please note this down").Priority)
	assert.True(t, p.Decide(3, "ok").ShouldExtract)
	assert.True(t, p.Decide(7, "ok").ShouldExtract)
	assert.False(t, p.Decide(2, "ok").ShouldExtract)
}

func TestLoadVocabularyOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.toml")
	require.NoError(t, os.WriteFile(path, []byte(`explicit_commands = ["jot this"]`), 0o644))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"jot this"}, v.ExplicitCommands)
	assert.NotEmpty(t, v.MemorySignals, "unset tables keep embedded defaults")

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
