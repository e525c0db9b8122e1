package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/store"
)

// InjectionOrder selects how ListForInjection sorts memories.
type InjectionOrder string

const (
	OrderTimeCreated InjectionOrder = "time_created"
	OrderImportance  InjectionOrder = "importance"
	OrderRecency     InjectionOrder = "recency"
)

// ValidOrder reports whether o is a known injection order.
func ValidOrder(o InjectionOrder) bool {
	switch o {
	case OrderTimeCreated, OrderImportance, OrderRecency:
		return true
	}
	return false
}

// InjectionParams holds parameters for a query-less listing.
type InjectionParams struct {
	UserID   string
	Type     model.MemoryType // empty means all types
	Limit    int
	Order    InjectionOrder
	HoursAgo float64
}

// ListForInjection lists active memories without lexical scoring, for
// populating a context window when there is no query text.
func (r *Ranker) ListForInjection(ctx context.Context, p InjectionParams) ([]model.Memory, error) {
	lp := store.ListParams{UserID: p.UserID, HoursAgo: p.HoursAgo, OrderBy: store.OrderCreated}
	if p.Type != "" {
		lp.Types = []model.MemoryType{p.Type}
	}

	switch p.Order {
	case OrderImportance:
		lp.OrderBy = store.OrderImportance
		lp.Limit = p.Limit
	case OrderRecency:
		// Hybrid scores need the whole window before the limit applies.
	default:
		lp.Limit = p.Limit
	}

	memories, err := r.src.ListActive(ctx, lp)
	if err != nil {
		return nil, fmt.Errorf("list for injection: %w", err)
	}

	if p.Order == OrderRecency {
		now := r.now()
		scores := make(map[string]float64, len(memories))
		for _, m := range memories {
			scores[m.ID] = HybridRecencyScore(m.HoursSince(now), m.SourceTurn)
		}
		sort.SliceStable(memories, func(i, j int) bool {
			return scores[memories[i].ID] > scores[memories[j].ID]
		})
		if p.Limit > 0 && len(memories) > p.Limit {
			memories = memories[:p.Limit]
		}
	}
	return memories, nil
}
