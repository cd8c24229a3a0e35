package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armindomatias/housing-agent/internal/llm"
	"github.com/armindomatias/housing-agent/internal/store"
	"github.com/armindomatias/housing-agent/internal/tools"
	"github.com/armindomatias/housing-agent/internal/turn"
)

// scriptedProvider returns one CompletionResult per call, in order.
type scriptedProvider struct {
	results []*llm.CompletionResult
	calls   int
}

func (p *scriptedProvider) Complete(_ context.Context, _ *llm.CompletionRequest) (*llm.CompletionResult, error) {
	r := p.results[p.calls]
	if p.calls < len(p.results)-1 {
		p.calls++
	}
	return r, nil
}

func newServices(provider llm.Provider, s store.Store, maxCycles int) *Services {
	return &Services{
		Store:  s,
		Tools:  tools.NewBuiltinRegistry(),
		LLM:    provider,
		Config: Config{SystemPrompt: "test prompt", Model: "test-model", MaxTokens: 100, MaxCycles: maxCycles},
	}
}

func TestRunHappyPathNoTools(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.CompletionResult{
		{Text: "Olá! Como posso ajudar?"},
	}}
	s := store.NewMemoryStore()
	o := New(newServices(provider, s, 12))

	result, err := o.Run(context.Background(), "u1", "", "Olá")
	require.NoError(t, err)
	require.NotNil(t, result.State)

	messages, err := s.ListMessages(context.Background(), result.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Olá", messages[0].Content)
	assert.Equal(t, "Olá! Como posso ajudar?", messages[1].Content)
}

func TestRunExecutesToolThenTerminates(t *testing.T) {
	toolArgs, _ := json.Marshal(map[string]any{"action": "add", "task": "ligar ao banco"})
	provider := &scriptedProvider{results: []*llm.CompletionResult{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "manage_todos", Input: toolArgs}}},
		{Text: "Adicionei essa tarefa."},
	}}
	s := store.NewMemoryStore()
	o := New(newServices(provider, s, 12))

	result, err := o.Run(context.Background(), "u1", "", "lembra-me de ligar ao banco")
	require.NoError(t, err)
	require.Len(t, result.State.Todos, 1)
	assert.Equal(t, "ligar ao banco", result.State.Todos[0].Task)

	var toolEvents int
	for _, e := range result.State.StreamEvents {
		if e.Type == turn.EventToolCall {
			toolEvents++
		}
	}
	assert.Equal(t, 1, toolEvents)
}

func TestRunTurnBudgetExceeded(t *testing.T) {
	toolArgs, _ := json.Marshal(map[string]any{"action": "list"})
	result := &llm.CompletionResult{ToolCalls: []llm.ToolCall{{ID: "call-x", Name: "manage_todos", Input: toolArgs}}}
	provider := &scriptedProvider{results: []*llm.CompletionResult{result}}
	s := store.NewMemoryStore()
	o := New(newServices(provider, s, 2))

	_, err := o.Run(context.Background(), "u1", "", "continua")
	require.Error(t, err)

	var budgetErr *TurnBudgetExceeded
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "turn_budget_exceeded", budgetErr.Code())
}
