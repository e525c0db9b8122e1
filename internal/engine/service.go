// Package engine runs the memory lifecycle: deciding whether a turn is
// worth extracting, writing what the oracle finds and assembling ranked
// memories for a context window.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rcliao/turn-memory/internal/access"
	"github.com/rcliao/turn-memory/internal/extract"
	"github.com/rcliao/turn-memory/internal/logger"
	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/rank"
	"github.com/rcliao/turn-memory/internal/store"
	"github.com/rcliao/turn-memory/internal/trigger"
)

// Service wires the trigger policy, extractor, store, ranker and access
// tracker together.
type Service struct {
	policy    *trigger.Policy
	oracle    extract.Oracle
	extractor *extract.Extractor
	store     store.Store
	ranker    *rank.Ranker
	tracker   *access.Tracker
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy replaces the default trigger policy.
func WithPolicy(p *trigger.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithOracle sets the extraction oracle. Without one only the pattern
// fallback produces memories.
func WithOracle(o extract.Oracle) Option {
	return func(s *Service) { s.oracle = o }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source for extraction and ranking.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service over st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		policy: trigger.Default(),
		store:  st,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.extractor = extract.NewExtractor(s.oracle,
		extract.WithLogger(s.logger.With("component", "extract")),
		extract.WithClock(s.now))
	s.ranker = rank.New(st, s.now)
	s.tracker = access.NewTracker(st, s.logger.With("component", "access"))
	return s
}

// Decide evaluates the trigger policy for a turn.
func (s *Service) Decide(turn int, message string) trigger.Decision {
	return s.policy.Decide(turn, message)
}

// Explain lists every trigger signal a message carries.
func (s *Service) Explain(turn int, message string) []trigger.Signal {
	return s.policy.Explain(turn, message)
}

// ExtractInput is a direct extraction request.
type ExtractInput struct {
	UserMessage       string
	AssistantResponse string
	TurnNumber        int
	History           []extract.Message
	Boost             float64
	Force             bool
}

// Extract runs the extractor without deciding or writing.
func (s *Service) Extract(ctx context.Context, in ExtractInput) []extract.Extracted {
	return s.extractor.Extract(ctx, extract.Request{
		UserMessage:       in.UserMessage,
		AssistantResponse: in.AssistantResponse,
		TurnNumber:        in.TurnNumber,
		History:           in.History,
		Boost:             in.Boost,
		Force:             in.Force,
	})
}

// TurnInput is one completed exchange.
type TurnInput struct {
	UserID            string
	ConversationID    string
	TurnNumber        int
	UserMessage       string
	AssistantResponse string
	History           []extract.Message
}

// TurnResult reports what ProcessTurn did.
type TurnResult struct {
	Decision  trigger.Decision `json:"decision"`
	Extracted int              `json:"extracted"`
	Written   []model.Memory   `json:"written"`
}

// ProcessTurn decides, extracts and writes. Only persistence failures are
// returned; everything written before the failure stays written.
func (s *Service) ProcessTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	log := s.logger.With("user", in.UserID, "turn", in.TurnNumber)

	d := s.Decide(in.TurnNumber, in.UserMessage)
	res := &TurnResult{Decision: d, Written: []model.Memory{}}
	if !d.ShouldExtract {
		log.Debug("skipping extraction", "reason", d.Reason)
		return res, nil
	}

	xs := s.extractor.Extract(ctx, extract.Request{
		UserMessage:       in.UserMessage,
		AssistantResponse: in.AssistantResponse,
		TurnNumber:        in.TurnNumber,
		History:           in.History,
		Boost:             d.Boost,
		Force:             d.Force,
	})
	res.Extracted = len(xs)

	for _, x := range xs {
		m, err := s.store.Write(ctx, store.WriteParams{
			UserID:         in.UserID,
			Type:           x.Type,
			Key:            x.Key,
			Value:          x.Value,
			Context:        x.Context,
			Confidence:     x.Confidence,
			Importance:     x.Importance,
			ConversationID: in.ConversationID,
			SourceTurn:     x.SourceTurn,
		})
		if errors.Is(err, store.ErrInvalid) {
			log.Warn("dropping extracted memory", "key", x.Key, "error", err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("write %s/%s: %w", x.Type, x.Key, err)
		}
		res.Written = append(res.Written, *m)
	}

	log.Info("turn processed",
		"priority", d.Priority, "reason", d.Reason, "extracted", res.Extracted, "written", len(res.Written))
	return res, nil
}

// Put writes a memory directly, superseding any active one for the key.
func (s *Service) Put(ctx context.Context, p store.WriteParams) (*model.Memory, error) {
	return s.store.Write(ctx, p)
}

// List returns active memories, optionally of one type and within a window.
func (s *Service) List(ctx context.Context, userID string, typ model.MemoryType, hoursAgo float64) ([]model.Memory, error) {
	p := store.ListParams{UserID: userID, HoursAgo: hoursAgo}
	if typ != "" {
		p.Types = []model.MemoryType{typ}
	}
	return s.store.ListActive(ctx, p)
}

// Search ranks active memories against a query.
func (s *Service) Search(ctx context.Context, p rank.SearchParams) ([]rank.Scored, error) {
	return s.ranker.Search(ctx, p)
}

// Get returns one memory, or nil if absent or not owned.
func (s *Service) Get(ctx context.Context, id, userID string) (*model.Memory, error) {
	return s.store.Get(ctx, id, userID)
}

// Update applies an allow-listed partial update.
func (s *Service) Update(ctx context.Context, id, userID string, u store.Updates) (*model.Memory, error) {
	return s.store.Update(ctx, id, userID, u)
}

// Delete soft-deletes a memory.
func (s *Service) Delete(ctx context.Context, id, userID string) (bool, error) {
	return s.store.Deactivate(ctx, id, userID)
}

// ForgetConversation deactivates everything learned in a conversation.
func (s *Service) ForgetConversation(ctx context.Context, conversationID, userID string) (int, error) {
	return s.store.DeactivateByConversation(ctx, conversationID, userID)
}

// History returns every version written for a key, newest first.
func (s *Service) History(ctx context.Context, userID string, typ model.MemoryType, key string) ([]model.Memory, error) {
	return s.store.History(ctx, userID, typ, key)
}

// Stats returns per-user counts.
func (s *Service) Stats(ctx context.Context, userID string) (*store.Stats, error) {
	return s.store.Stats(ctx, userID)
}

// RecordAccess records a single access.
func (s *Service) RecordAccess(ctx context.Context, id, userID string, turn int) (bool, error) {
	return s.tracker.Record(ctx, id, userID, turn)
}
