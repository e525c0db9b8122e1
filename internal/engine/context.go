package engine

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/rank"
)

const (
	// DefaultBudget is the context budget in tokens.
	DefaultBudget = 1000
	// DefaultInjectionLimit caps query-less listings.
	DefaultInjectionLimit = 20

	charsPerToken = 4
	minExcerpt    = 100
	ellipsis      = "..."
)

// ContextParams holds parameters for context assembly.
type ContextParams struct {
	UserID      string
	Query       string
	CurrentTurn int
	Type        model.MemoryType
	TopK        int
	Order       rank.InjectionOrder
	Limit       int
	HoursAgo    float64
	Budget      int // tokens
}

// ContextMemory is one memory placed in the context window.
type ContextMemory struct {
	ID      string           `json:"id"`
	Type    model.MemoryType `json:"type"`
	Key     string           `json:"key"`
	Content string           `json:"content"`
	Score   float64          `json:"score,omitempty"`
	Excerpt bool             `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context.
type ContextResult struct {
	Budget   int             `json:"budget"`
	Used     int             `json:"used"`
	Memories []ContextMemory `json:"memories"`
}

// Context selects memories for a context window. With a query it uses the
// ranked search, otherwise the injection listing. Selected memories are
// packed greedily into the budget and each one is recorded as accessed.
func (s *Service) Context(ctx context.Context, p ContextParams) (*ContextResult, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	candidates, err := s.contextCandidates(ctx, p)
	if err != nil {
		return nil, err
	}

	result, injected := pack(candidates, budget)
	if len(injected) > 0 {
		s.tracker.Touch(ctx, p.UserID, p.CurrentTurn, injected)
	}
	return result, nil
}

func (s *Service) contextCandidates(ctx context.Context, p ContextParams) ([]rank.Scored, error) {
	if p.Query != "" {
		sp := rank.SearchParams{UserID: p.UserID, Query: p.Query, CurrentTurn: p.CurrentTurn, TopK: p.TopK}
		if p.Type != "" {
			sp.Types = []model.MemoryType{p.Type}
		}
		return s.ranker.Search(ctx, sp)
	}

	order := p.Order
	if order == "" {
		order = rank.OrderRecency
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultInjectionLimit
	}
	memories, err := s.ranker.ListForInjection(ctx, rank.InjectionParams{
		UserID: p.UserID, Type: p.Type, Limit: limit, Order: order, HoursAgo: p.HoursAgo,
	})
	if err != nil {
		return nil, fmt.Errorf("context listing: %w", err)
	}
	out := make([]rank.Scored, len(memories))
	for i, m := range memories {
		out[i] = rank.Scored{Memory: m}
	}
	return out, nil
}

// Render formats a memory as a single context line.
func Render(m model.Memory) string {
	line := fmt.Sprintf("[%s] %s: %s", m.Type, m.Key, m.Value)
	if m.Context != "" {
		line += " (" + m.Context + ")"
	}
	return line
}

func pack(candidates []rank.Scored, budget int) (*ContextResult, []model.Memory) {
	charBudget := budget * charsPerToken
	result := &ContextResult{Budget: budget, Memories: []ContextMemory{}}
	var injected []model.Memory
	used := 0

	for _, c := range candidates {
		content := Render(c.Memory)
		entry := ContextMemory{
			ID:    c.ID,
			Type:  c.Type,
			Key:   c.Key,
			Score: math.Round(c.Score*100) / 100,
		}

		if used+len(content) <= charBudget {
			entry.Content = content
			result.Memories = append(result.Memories, entry)
			injected = append(injected, c.Memory)
			used += len(content)
			continue
		}

		remaining := charBudget - used - len(ellipsis)
		for remaining > 0 && remaining < len(content) && !utf8.RuneStart(content[remaining]) {
			remaining--
		}
		if remaining >= minExcerpt {
			entry.Content = content[:remaining] + ellipsis
			entry.Excerpt = true
			result.Memories = append(result.Memories, entry)
			injected = append(injected, c.Memory)
			used += len(entry.Content)
		}
		break
	}

	result.Used = used / charsPerToken
	return result, injected
}
