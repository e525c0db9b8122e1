package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/rcliao/turn-memory/internal/logger"
)

// fallbackBoost is the boost at or above which an empty extraction falls
// back to pattern matching. It covers critical and high priority turns.
const fallbackBoost = 1.5

// Request describes one extraction attempt.
type Request struct {
	UserMessage       string
	AssistantResponse string
	TurnNumber        int
	History           []Message
	Boost             float64
	Force             bool
}

// Extractor calls an oracle and validates, stamps and boosts its output.
type Extractor struct {
	oracle Oracle
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the extractor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithClock overrides the time source used for extracted_at.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor returns an Extractor over oracle. A nil oracle behaves as an
// oracle that always fails, so only the fallback path can produce memories.
func NewExtractor(oracle Oracle, opts ...Option) *Extractor {
	e := &Extractor{oracle: oracle, logger: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the accepted memories for a turn. Oracle failures and
// invalid candidates are logged and absorbed; they never fail the turn.
func (e *Extractor) Extract(ctx context.Context, req Request) []Extracted {
	log := e.logger.With("turn", req.TurnNumber)
	now := e.now().UTC()

	candidates, err := e.callOracle(ctx, NewWindow(req.History, req.UserMessage, req.AssistantResponse))
	if err != nil {
		log.Warn("extraction oracle failed", "error", err)
		candidates = nil
	}

	var accepted []Extracted
	for i, c := range candidates {
		x, ok := parse(c)
		if !ok {
			log.Warn("dropping invalid candidate", "index", i)
			continue
		}
		x.SourceTurn = req.TurnNumber
		x.ExtractedAt = now
		if req.Boost > 0 {
			x.Importance = min(1.0, x.Importance+req.Boost)
			log.Debug("applied extraction boost", "boost", req.Boost, "type", x.Type, "key", x.Key)
		}
		accepted = append(accepted, x)
	}

	if len(accepted) == 0 && (req.Force || req.Boost >= fallbackBoost) {
		log.Info("priority extraction yielded nothing, running pattern fallback")
		for _, x := range Fallback(req.UserMessage, req.Boost) {
			x.SourceTurn = req.TurnNumber
			x.ExtractedAt = now
			accepted = append(accepted, x)
		}
	}

	log.Debug("extraction finished", "candidates", len(candidates), "accepted", len(accepted))
	return accepted
}

func (e *Extractor) callOracle(ctx context.Context, w Window) ([]Candidate, error) {
	if e.oracle == nil {
		return nil, ErrNoOracle
	}
	return e.oracle.Extract(ctx, w)
}
