// Package rank orders memories for injection into a context window.
package rank

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/store"
)

const (
	DefaultTopK = 5
	poolFactor  = 5
)

// Source is the read path the ranker draws candidates from.
type Source interface {
	ListActive(ctx context.Context, p store.ListParams) ([]model.Memory, error)
}

// SearchParams holds parameters for a ranked search.
type SearchParams struct {
	UserID      string
	Query       string
	CurrentTurn int
	TopK        int
	Types       []model.MemoryType
}

// Scored is a memory with its relevance score.
type Scored struct {
	model.Memory
	Score float64 `json:"score"`
}

// Ranker scores active memories against a query.
type Ranker struct {
	src Source
	now func() time.Time
}

// New returns a Ranker reading from src. A nil now uses time.Now.
func New(src Source, now func() time.Time) *Ranker {
	if now == nil {
		now = time.Now
	}
	return &Ranker{src: src, now: now}
}

// Search returns at most TopK memories, highest score first, ties broken
// by newest created_at.
func (r *Ranker) Search(ctx context.Context, p SearchParams) ([]Scored, error) {
	topK := p.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	pool, err := r.src.ListActive(ctx, store.ListParams{
		UserID:  p.UserID,
		Types:   p.Types,
		Limit:   topK * poolFactor,
		OrderBy: store.OrderCreated,
	})
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	now := r.now()
	scored := make([]Scored, 0, len(pool))
	for _, m := range pool {
		scored = append(scored, Scored{Memory: m, Score: Score(p.Query, p.CurrentTurn, m, now)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Score is the additive relevance of m for query at now.
func Score(query string, currentTurn int, m model.Memory, now time.Time) float64 {
	return LexicalScore(query, m) +
		RecencyBoost(m.HoursSince(now)) +
		TurnBoost(currentTurn, m.SourceTurn) +
		ImportanceBoost(m.Importance) +
		AccessBoost(m.AccessCount)
}
