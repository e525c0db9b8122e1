// Package extract turns extraction-oracle output into validated memory
// candidates.
package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/rcliao/turn-memory/internal/model"
)

// Candidate is an unvalidated memory proposal as returned by an oracle.
type Candidate map[string]any

// RequiredFields are the fields every candidate must carry.
var RequiredFields = []string{"type", "key", "value", "confidence", "importance"}

// Extracted is a candidate that passed validation, stamped with its
// provenance.
type Extracted struct {
	Type        model.MemoryType `json:"type"`
	Key         string           `json:"key"`
	Value       string           `json:"value"`
	Context     string           `json:"context,omitempty"`
	Confidence  float64          `json:"confidence"`
	Importance  float64          `json:"importance"`
	SourceTurn  int              `json:"source_turn"`
	ExtractedAt time.Time        `json:"extracted_at"`
	Fallback    bool             `json:"fallback,omitempty"`
}

// Validate reports whether c conforms to the memory record contract: all
// required fields present, a known type, non-empty key and value, and
// scores within [0, 1].
func Validate(c Candidate) bool {
	_, ok := parse(c)
	return ok
}

func parse(c Candidate) (Extracted, bool) {
	for _, f := range RequiredFields {
		if _, ok := c[f]; !ok {
			return Extracted{}, false
		}
	}

	typ, ok := c["type"].(string)
	if !ok || !model.MemoryType(typ).Valid() {
		return Extracted{}, false
	}
	key, ok := c["key"].(string)
	if !ok || strings.TrimSpace(key) == "" {
		return Extracted{}, false
	}
	value, ok := stringValue(c["value"])
	if !ok || strings.TrimSpace(value) == "" {
		return Extracted{}, false
	}
	confidence, ok := number(c["confidence"])
	if !ok || !model.ValidScore(confidence) {
		return Extracted{}, false
	}
	importance, ok := number(c["importance"])
	if !ok || !model.ValidScore(importance) {
		return Extracted{}, false
	}

	e := Extracted{
		Type:       model.MemoryType(typ),
		Key:        strings.TrimSpace(key),
		Value:      strings.TrimSpace(value),
		Confidence: confidence,
		Importance: importance,
	}
	if ctx, ok := c["context"].(string); ok {
		e.Context = ctx
	}
	return e, true
}

// stringValue accepts strings and renders scalar values (numbers, bools)
// that oracles sometimes emit for values like ages.
func stringValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
