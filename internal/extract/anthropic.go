package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/bytedance/sonic"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1000
	systemPrompt     = "You extract structured memories from conversations."
)

// AnthropicConfig configures an AnthropicOracle.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	BaseURL   string
}

// AnthropicOracle extracts candidates by prompting an Anthropic model and
// decoding the JSON array it returns.
type AnthropicOracle struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicOracle builds an oracle from cfg.
func NewAnthropicOracle(cfg AnthropicConfig) (*AnthropicOracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	o := &AnthropicOracle{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if o.model == "" {
		o.model = defaultModel
	}
	if o.maxTokens <= 0 {
		o.maxTokens = defaultMaxTokens
	}
	return o, nil
}

// Extract implements Oracle.
func (o *AnthropicOracle) Extract(ctx context.Context, w Window) ([]Candidate, error) {
	resp, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(o.model),
		MaxTokens:   o.maxTokens,
		Temperature: anthropic.Float(0.1),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(ExtractionPrompt(w))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic extraction: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return ParseCandidates(text.String())
}

var fence = regexp.MustCompile("```(?:json)?")

// ParseCandidates decodes an oracle reply holding a JSON array of memory
// objects, tolerating surrounding code fences and prose. Elements that are
// not objects are skipped.
func ParseCandidates(reply string) ([]Candidate, error) {
	s := strings.TrimSpace(fence.ReplaceAllString(reply, ""))
	start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in oracle reply")
	}

	var raw []any
	if err := sonic.UnmarshalString(s[start:end+1], &raw); err != nil {
		return nil, fmt.Errorf("decode oracle reply: %w", err)
	}

	out := make([]Candidate, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Candidate(m))
		}
	}
	return out, nil
}
