// Package llm wraps the single concrete model provider the orchestrator's
// agent node calls: one blocking completion per turn, no token streaming.
package llm

import (
	"context"
	"encoding/json"
)

// Message is one entry in a completion request's conversation history.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	IsError    bool
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolDef describes one callable tool to the model, mirroring what the
// tool registry exposes per entry (spec.md §4.3).
type ToolDef struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// CompletionRequest is a single turn's worth of context sent to the model.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// CompletionResult is the model's full response to one CompletionRequest.
// Unlike the teacher's channel-of-chunks shape, this is returned whole:
// the spec's Non-goals exclude token-level streaming, so Complete blocks
// until the response is fully formed.
type CompletionResult struct {
	Text         string
	ToolCalls    []ToolCall
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Provider is the seam the orchestrator's agent node calls through. A
// fake implementation backs orchestrator tests without network access.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)
}
