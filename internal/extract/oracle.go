package extract

import (
	"context"
	"errors"
	"strings"
)

// ErrNoOracle is returned by a nil oracle.
var ErrNoOracle = errors.New("extraction oracle not configured")

// Message is one prior message in a conversation window.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Window is the conversation excerpt handed to an oracle: recent history
// plus the current exchange.
type Window struct {
	History           []Message
	UserMessage       string
	AssistantResponse string
}

// MaxHistory is how many prior messages an extraction window carries.
const MaxHistory = 5

// NewWindow keeps the last MaxHistory messages of history.
func NewWindow(history []Message, user, assistant string) Window {
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	return Window{History: history, UserMessage: user, AssistantResponse: assistant}
}

// Transcript renders the window as "Role: content" lines.
func (w Window) Transcript() string {
	var b strings.Builder
	for _, m := range w.History {
		role := "Assistant"
		if m.Role == "user" {
			role = "User"
		}
		b.WriteString(role + ": " + m.Content + "\n")
	}
	b.WriteString("User: " + w.UserMessage + "\n")
	b.WriteString("Assistant: " + w.AssistantResponse)
	return b.String()
}

// Oracle maps a conversation window to raw memory candidates. It may
// return zero candidates or malformed ones; both are handled by the
// Extractor.
type Oracle interface {
	Extract(ctx context.Context, w Window) ([]Candidate, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, w Window) ([]Candidate, error)

// Extract calls f.
func (f OracleFunc) Extract(ctx context.Context, w Window) ([]Candidate, error) {
	if f == nil {
		return nil, ErrNoOracle
	}
	return f(ctx, w)
}
