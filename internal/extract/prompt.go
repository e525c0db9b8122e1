package extract

import "strings"

const extractionPrompt = `You are a memory extraction system. Extract every piece of information from the conversation that could be useful in future interactions, including details that seem minor.

Categories:
1. preference: likes, dislikes, choices, favorites (language, style, timing, entertainment, food)
2. fact: personal information, background, education, work, family
3. entity: important people, places, organizations, brands, items
4. commitment: promises, scheduled events, deadlines, plans
5. instruction: explicit instructions on how to behave or respond
6. constraint: limitations, restrictions, boundaries, things to avoid
7. habit: routines and regular behaviors
8. opinion: feelings, beliefs, values
9. temporary_state: current situations, moods, ongoing projects
10. goal: aspirations and targets

Rules:
- Capture numbers, quantities and time references.
- Keep the context around a preference ("only on weekends").
- Capture relationships, health information, dietary restrictions and allergies.
- Use a specific, stable snake_case key ("favorite_movie_genre", "sister_name") so a later fact about the same thing reuses the key.

For each memory return:
- type: one of the categories above
- key: semantic identifier
- value: the exact information, with names and numbers
- confidence: 0.0 to 1.0, how certain you are
- importance: 0.0 to 1.0, how useful it is for future conversations

Conversation:
{{conversation}}

Respond ONLY with a JSON array. If there is nothing to remember, return [].
Example:
[{"type": "preference", "key": "language_preference", "value": "Kannada", "confidence": 0.95, "importance": 0.8}]`

// ExtractionPrompt renders the extraction prompt for a window.
func ExtractionPrompt(w Window) string {
	return strings.Replace(extractionPrompt, "{{conversation}}", w.Transcript(), 1)
}
