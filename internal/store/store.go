// Package store persists memory records and enforces one active record per
// (user, type, key).
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/turn-memory/internal/keylock"
	"github.com/rcliao/turn-memory/internal/logger"
	"github.com/rcliao/turn-memory/internal/model"
)

// ErrInvalid is returned for writes that break the record contract.
var ErrInvalid = errors.New("invalid memory")

// WriteParams holds parameters for writing a memory.
type WriteParams struct {
	UserID         string
	Type           model.MemoryType
	Key            string
	Value          string
	Context        string
	Confidence     float64
	Importance     float64
	ConversationID string
	SourceTurn     int
	ExpiresAt      *time.Time
}

func (p WriteParams) validate() error {
	switch {
	case strings.TrimSpace(p.UserID) == "":
		return fmt.Errorf("%w: user id is required", ErrInvalid)
	case !p.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, p.Type)
	case strings.TrimSpace(p.Key) == "":
		return fmt.Errorf("%w: key is required", ErrInvalid)
	case strings.TrimSpace(p.Value) == "":
		return fmt.Errorf("%w: value is required", ErrInvalid)
	case !model.ValidScore(p.Confidence):
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalid, p.Confidence)
	case !model.ValidScore(p.Importance):
		return fmt.Errorf("%w: importance %v out of range", ErrInvalid, p.Importance)
	case p.SourceTurn < 0:
		return fmt.Errorf("%w: negative source turn", ErrInvalid)
	}
	return nil
}

// Order selects how ListActive sorts its results.
type Order string

const (
	OrderCreated    Order = "created_at"
	OrderImportance Order = "importance"
)

// ListParams holds parameters for listing active memories.
type ListParams struct {
	UserID   string
	Types    []model.MemoryType
	HoursAgo float64 // 0 means no window
	Limit    int     // 0 means no limit
	OrderBy  Order
}

// Updates is a partial update. Only value, context, confidence,
// importance_score, is_active and expires_at are honoured.
type Updates map[string]any

// Stats holds per-user counts.
type Stats struct {
	UserID         string         `json:"user_id"`
	TotalActive    int            `json:"total_active"`
	ByType         map[string]int `json:"by_type"`
	HighImportance int            `json:"high_importance"`
	DBPath         string         `json:"db_path,omitempty"`
	DBSizeBytes    int64          `json:"db_size_bytes,omitempty"`
}

// Store defines the memory storage interface. Lookups that miss, whether
// the record is absent or owned by another user, return nil, false or 0
// without an error.
type Store interface {
	// Write supersedes any active record for the same key and inserts p.
	Write(ctx context.Context, p WriteParams) (*model.Memory, error)

	// Get returns a single record by id.
	Get(ctx context.Context, id, userID string) (*model.Memory, error)

	// ListActive lists active, unexpired records.
	ListActive(ctx context.Context, p ListParams) ([]model.Memory, error)

	// History returns every record ever written for a key, newest first.
	History(ctx context.Context, userID string, t model.MemoryType, key string) ([]model.Memory, error)

	// Update applies the allowed subset of u in one statement.
	Update(ctx context.Context, id, userID string, u Updates) (*model.Memory, error)

	// Deactivate soft-deletes a record.
	Deactivate(ctx context.Context, id, userID string) (bool, error)

	// DeactivateByConversation soft-deletes every active record sourced
	// from a conversation.
	DeactivateByConversation(ctx context.Context, conversationID, userID string) (int, error)

	// RecordAccess bumps the access counter and, for turn >= 1, stamps the
	// last accessed turn. A turn below 1 leaves the stamp unchanged.
	RecordAccess(ctx context.Context, id, userID string, turn int) (bool, error)

	// Stats returns per-user counts.
	Stats(ctx context.Context, userID string) (*Stats, error)

	// Close closes the store.
	Close() error
}

type options struct {
	locker keylock.Locker
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a store.
type Option func(*options)

// WithLocker sets the per-key write lock. The default is an in-process
// keylock.Local.
func WithLocker(l keylock.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{locker: keylock.NewLocal(), now: time.Now, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

func newMemory(p WriteParams, now time.Time) *model.Memory {
	return &model.Memory{
		ID:                   newID(now),
		UserID:               p.UserID,
		Type:                 p.Type,
		Key:                  p.Key,
		Value:                p.Value,
		Context:              p.Context,
		Confidence:           p.Confidence,
		Importance:           p.Importance,
		SourceConversationID: p.ConversationID,
		SourceTurn:           p.SourceTurn,
		IsActive:             true,
		ExpiresAt:            p.ExpiresAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// assignment is one accepted column update.
type assignment struct {
	column string
	value  any
}

// parseUpdates filters u down to the allowed, well-typed assignments in a
// stable column order.
func parseUpdates(u Updates, log *slog.Logger) []assignment {
	var out []assignment
	for _, col := range []string{"value", "context", "confidence", "importance_score", "is_active", "expires_at"} {
		raw, ok := u[col]
		if !ok {
			continue
		}
		v, ok := coerce(col, raw)
		if !ok {
			log.Debug("ignoring update field", "field", col, "value", raw)
			continue
		}
		out = append(out, assignment{column: col, value: v})
	}
	for k := range u {
		if !updatable(k) {
			log.Debug("ignoring update field", "field", k)
		}
	}
	return out
}

func updatable(col string) bool {
	switch col {
	case "value", "context", "confidence", "importance_score", "is_active", "expires_at":
		return true
	}
	return false
}

func coerce(col string, raw any) (any, bool) {
	switch col {
	case "value":
		s, ok := raw.(string)
		return s, ok && strings.TrimSpace(s) != ""
	case "context":
		s, ok := raw.(string)
		return s, ok
	case "confidence", "importance_score":
		f, ok := toFloat(raw)
		return f, ok && model.ValidScore(f)
	case "is_active":
		b, ok := raw.(bool)
		return false, ok && !b
	case "expires_at":
		switch t := raw.(type) {
		case nil:
			return nil, true
		case time.Time:
			return t.UTC(), true
		case *time.Time:
			if t == nil {
				return nil, true
			}
			return t.UTC(), true
		case string:
			parsed, err := time.Parse(time.RFC3339, t)
			if err != nil {
				return nil, false
			}
			return parsed.UTC(), true
		}
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
