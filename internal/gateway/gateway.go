// Package gateway turns composed prompts into validated, typed records.
// It owns the transport retry and the bounded schema-repair loop around
// the model provider.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kolektra/callqa/internal/model"
	"github.com/kolektra/callqa/internal/prompt"
	"github.com/kolektra/callqa/internal/resilience"
	"github.com/kolektra/callqa/pkg/anthropic"
)

// Schema is implemented by record types the gateway can decode into.
type Schema interface {
	ApplyDefaults()
	Validate() error
}

// Config controls a gateway instance. One gateway per model tier.
type Config struct {
	Model          string
	MaxTokens      int64
	Temperature    float64
	RepairAttempts int // extra attempts after a schema violation
}

// Gateway sends two-turn prompts to the provider and coerces responses
// into typed records.
type Gateway struct {
	client anthropic.Client
	cfg    Config
	retry  resilience.RetryConfig
}

// New creates a Gateway. Zero config fields get working defaults.
func New(client anthropic.Client, cfg Config) *Gateway {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.RepairAttempts < 0 {
		cfg.RepairAttempts = 0
	}
	return &Gateway{
		client: client,
		cfg:    cfg,
		retry:  resilience.DefaultRetryConfig(),
	}
}

// Model returns the configured model ID.
func (g *Gateway) Model() string {
	return g.cfg.Model
}

const repairPrompt = `Your previous response could not be parsed against the required schema: %v

Return a corrected JSON object matching the structure from the instructions exactly. Output only the JSON object, with no surrounding text.`

// RequestStructured sends the prompt and decodes the response into a
// fresh T. On a schema violation it re-prompts with the validation error
// up to cfg.RepairAttempts extra times before surfacing a
// SchemaViolationError. Transport failures are retried when transient
// and otherwise surface as a ProviderError.
func RequestStructured[T any, PT interface {
	*T
	Schema
}](ctx context.Context, g *Gateway, op string, p prompt.Prompt) (*T, model.TokenUsage, error) {
	system := anthropic.BuildCachedSystemBlocks(p.System)
	messages := []anthropic.Message{{Role: "user", Content: p.Human}}

	var usage anthropic.TokenUsage
	var lastViolation *SchemaViolationError

	for attempt := 0; attempt <= g.cfg.RepairAttempts; attempt++ {
		req := anthropic.MessageRequest{
			Model:       g.cfg.Model,
			MaxTokens:   g.cfg.MaxTokens,
			System:      system,
			Messages:    messages,
			Temperature: &g.cfg.Temperature,
		}

		retryCfg := g.retry
		retryCfg.OnRetry = resilience.RetryLogger("anthropic", op)
		resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return g.client.CreateMessage(ctx, req)
		})
		if err != nil {
			return nil, toUsage(usage), &ProviderError{Op: op, Err: err}
		}

		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		usage.CacheCreationInputTokens += resp.Usage.CacheCreationInputTokens
		usage.CacheReadInputTokens += resp.Usage.CacheReadInputTokens

		raw := ExtractText(resp)
		target := PT(new(T))
		verr := Decode(raw, target)
		if verr == nil {
			usage.LogCost(g.cfg.Model, op)
			return (*T)(target), toUsage(usage), nil
		}

		lastViolation = &SchemaViolationError{Op: op, Raw: raw, Err: verr}
		zap.L().Warn("gateway: schema violation, attempting repair",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(verr),
		)

		// Feed the invalid response and the validation error back so
		// the model can correct itself.
		messages = append(messages,
			anthropic.Message{Role: "assistant", Content: raw},
			anthropic.Message{Role: "user", Content: fmt.Sprintf(repairPrompt, verr)},
		)
	}

	usage.LogCost(g.cfg.Model, op)
	return nil, toUsage(usage), lastViolation
}

// Decode cleans raw model output, unmarshals it into target, and runs
// the schema's defaulting and validation. Shared with batch processing,
// which decodes responses outside the repair loop.
func Decode(raw string, target Schema) error {
	text := cleanJSON(raw)
	if text == "" {
		return fmt.Errorf("response contains no JSON object")
	}
	if err := json.Unmarshal([]byte(text), target); err != nil {
		return err
	}
	target.ApplyDefaults()
	return target.Validate()
}

// ExtractText concatenates the text content blocks of a response.
func ExtractText(resp *anthropic.MessageResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// cleanJSON strips markdown code fences and any prose around the
// outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}

func toUsage(u anthropic.TokenUsage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheCreationTokens: int(u.CacheCreationInputTokens),
		CacheReadTokens:     int(u.CacheReadInputTokens),
	}
}
