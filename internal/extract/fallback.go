package extract

import (
	"regexp"
	"strings"

	"github.com/rcliao/turn-memory/internal/model"
)

const (
	fallbackConfidence = 0.8
	fallbackImportance = 0.7
)

// phrase captures a short run of words, stopping at a conjunction,
// punctuation, or the end of the message.
const phrase = `([\w'&-]+(?:\s+[\w'&-]+)*?)(?:\s+(?:and|but|because|so|since|now|though|which|who)\b|[.,;:!?]|$)`

// template is one fallback pattern. Dynamic templates take the first
// capture as the key suffix and the second as the value.
type template struct {
	re      *regexp.Regexp
	typ     model.MemoryType
	key     string
	dynamic bool
}

var templates = []template{
	{re: regexp.MustCompile(`(?i)\bmy name is (\w+)`), typ: model.TypeFact, key: "name"},
	{re: regexp.MustCompile(`(?i)\bcall me (\w+)`), typ: model.TypePreference, key: "preferred_name"},
	{re: regexp.MustCompile(`(?i)\bi work at ` + phrase), typ: model.TypeFact, key: "workplace"},
	{re: regexp.MustCompile(`(?i)\bi study at ` + phrase), typ: model.TypeFact, key: "school"},
	{re: regexp.MustCompile(`(?i)\bi live in ` + phrase), typ: model.TypeFact, key: "location"},
	{re: regexp.MustCompile(`(?i)\bi(?:'m| am) from ` + phrase), typ: model.TypeFact, key: "origin"},
	{re: regexp.MustCompile(`(?i)\b(\d+) years? old\b`), typ: model.TypeFact, key: "age"},
	{re: regexp.MustCompile(`(?i)\bage (\d+)\b`), typ: model.TypeFact, key: "age"},
	{re: regexp.MustCompile(`(?i)\bi love ` + phrase), typ: model.TypePreference, key: "loves"},
	{re: regexp.MustCompile(`(?i)\bi hate ` + phrase), typ: model.TypePreference, key: "hates"},
	{re: regexp.MustCompile(`(?i)\bfavou?rite (\w+(?:\s\w+)?) is ` + phrase), typ: model.TypePreference, dynamic: true},
}

// Fallback runs deterministic pattern matches over the user message and
// returns minimal memories. Each (type, key) is emitted at most once.
// Importance is 0.7 + boost, capped at 1.
func Fallback(message string, boost float64) []Extracted {
	importance := min(1.0, fallbackImportance+boost)
	seen := map[string]bool{}

	var out []Extracted
	for _, tpl := range templates {
		for _, m := range tpl.re.FindAllStringSubmatch(message, -1) {
			key, value := tpl.key, m[1]
			if tpl.dynamic {
				if len(m) < 3 {
					continue
				}
				key = "favorite_" + strings.Join(strings.Fields(strings.ToLower(m[1])), "_")
				value = m[2]
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			id := string(tpl.typ) + "/" + key
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, Extracted{
				Type:       tpl.typ,
				Key:        key,
				Value:      value,
				Confidence: fallbackConfidence,
				Importance: importance,
				Fallback:   true,
			})
		}
	}
	return out
}
