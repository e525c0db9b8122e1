// Package access records when memories are injected into a context window.
package access

import (
	"context"
	"log/slog"

	"github.com/rcliao/turn-memory/internal/logger"
	"github.com/rcliao/turn-memory/internal/model"
)

// Recorder is the persistence primitive behind the tracker.
type Recorder interface {
	RecordAccess(ctx context.Context, id, userID string, turn int) (bool, error)
}

// Tracker counts accesses per memory.
type Tracker struct {
	rec    Recorder
	logger *slog.Logger
}

// NewTracker returns a Tracker over rec. A nil logger discards output.
func NewTracker(rec Recorder, log *slog.Logger) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{rec: rec, logger: log}
}

// Record increments the access count of one memory and stamps the turn
// when it is 1 or more.
// It reports false, without mutating anything, when the memory is absent
// or owned by someone else.
func (t *Tracker) Record(ctx context.Context, id, userID string, turn int) (bool, error) {
	return t.rec.RecordAccess(ctx, id, userID, turn)
}

// Touch records access for every memory injected at turn and returns how
// many were recorded. Failures are logged and skipped.
func (t *Tracker) Touch(ctx context.Context, userID string, turn int, memories []model.Memory) int {
	n := 0
	for _, m := range memories {
		ok, err := t.rec.RecordAccess(ctx, m.ID, userID, turn)
		if err != nil {
			t.logger.Warn("record access failed", "id", m.ID, "error", err)
			continue
		}
		if ok {
			n++
		}
	}
	return n
}
