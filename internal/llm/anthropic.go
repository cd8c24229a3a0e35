package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/armindomatias/housing-agent/internal/backoff"
	"github.com/armindomatias/housing-agent/internal/observability"
)

// AnthropicConfig configures the Anthropic-backed Provider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
}

// AnthropicProvider implements Provider against the Anthropic Messages API
// with a single non-streaming call per turn, retried with the shared
// backoff policy on transient failures.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int

	// metrics is optional; a nil value disables latency instrumentation.
	metrics *observability.Metrics
}

// WithMetrics sets the provider's metrics sink and returns the receiver.
func (p *AnthropicProvider) WithMetrics(m *observability.Metrics) *AnthropicProvider {
	p.metrics = m
	return p
}

// NewAnthropicProvider builds a Provider from config, applying the same
// "required API key, sensible defaults for the rest" validation the
// teacher's provider constructor uses.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "claude-sonnet-4-20250514"
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if strings.TrimSpace(config.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: config.DefaultModel,
		maxRetries:   config.MaxRetries,
	}, nil
}

// Complete issues one blocking Messages.New call, retrying transient
// failures (rate limits, 5xx, timeouts) with backoff.RetryWithBackoff.
func (p *AnthropicProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	if p.metrics != nil {
		start := time.Now()
		defer func() { p.metrics.LLMRequestDuration.Observe(time.Since(start).Seconds()) }()
	}

	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}

	// A non-retryable error cancels retryCtx so RetryWithBackoff stops
	// before sleeping for another attempt.
	retryCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var perm *permanentError
	result, err := backoff.RetryWithBackoff(retryCtx, backoff.DefaultPolicy(), p.maxRetries,
		func(attempt int) (*anthropic.Message, error) {
			msg, err := p.client.Messages.New(ctx, *params)
			if err != nil && !isRetryable(err) {
				perm = backoffPermanent(err)
				cancel()
				return nil, perm
			}
			return msg, err
		})
	if err != nil {
		if perm != nil {
			return nil, fmt.Errorf("llm: completion failed: %w", perm.cause)
		}
		return nil, fmt.Errorf("llm: completion failed after retries: %w", result.LastError)
	}

	return toCompletionResult(result.Value), nil
}

// permanentError short-circuits RetryWithBackoff for errors that will
// never succeed on retry (bad request, auth failure, invalid schema).
type permanentError struct{ cause error }

func (e *permanentError) Error() string { return e.cause.Error() }
func (e *permanentError) Unwrap() error { return e.cause }

func backoffPermanent(err error) *permanentError { return &permanentError{cause: err} }

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate_limit", "429", "too many requests",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused", "no such host",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (p *AnthropicProvider) buildParams(req *CompletionRequest) (*anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := &anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	return params, nil
}

func convertMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" && msg.ToolCallID == "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		if msg.ToolCallID != "" {
			content = append(content, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call input for %s: %w", tc.Name, err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}

		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, nil
}

func convertTools(tools []ToolDef) ([]anthropic.ToolUnionParam, error) {
	var out []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
		}
		param.OfTool.Description = anthropic.String(t.Description)
		out = append(out, param)
	}
	return out, nil
}

func toCompletionResult(msg *anthropic.Message) *CompletionResult {
	result := &CompletionResult{
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:    b.ID,
				Name:  b.Name,
				Input: json.RawMessage(b.Input),
			})
		}
	}
	result.Text = text.String()
	return result
}
