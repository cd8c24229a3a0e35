package orchestrator

import (
	"context"
	"fmt"

	"github.com/armindomatias/housing-agent/internal/llm"
	"github.com/armindomatias/housing-agent/internal/models"
	"github.com/armindomatias/housing-agent/internal/turn"
)

// agentNode makes one tool-capable LLM call. The model sees the
// persistent system prompt, the latest context-refresh message, and the
// full chat history; it returns either tool calls or final text
// (spec.md §4.4 "agent").
func agentNode(ctx context.Context, r *run) (string, error) {
	if r.st.Cycle >= r.svc.Config.MaxCycles {
		return "", &TurnBudgetExceeded{Cycles: r.st.Cycle}
	}
	r.st.Cycle++

	system, history := splitSystemMessages(r.st.Messages)

	req := &llm.CompletionRequest{
		Model:     r.svc.Config.Model,
		System:    system,
		Messages:  toLLMMessages(history),
		Tools:     r.svc.Tools.Definitions(),
		MaxTokens: r.svc.Config.MaxTokens,
	}

	result, err := r.svc.LLM.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("agent: %w", err)
	}

	msg := models.Message{Role: models.RoleAssistant, Content: result.Text}
	for _, tc := range result.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{ID: tc.ID, Name: tc.Name, Input: tc.Input})
	}
	r.st.Messages = append(r.st.Messages, msg)

	if len(msg.ToolCalls) > 0 {
		return "tools", nil
	}
	r.st.Emit(turn.EventMessage, map[string]any{"text": result.Text, "done": true})
	return "post_process", nil
}

// splitSystemMessages separates the two opening system messages (the
// persistent prompt and the context-refresh block, concatenated into a
// single System string per the llm.Provider contract) from the
// conversational history the model also needs to see.
func splitSystemMessages(messages []models.Message) (string, []models.Message) {
	system := ""
	history := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		history = append(history, m)
	}
	return system, history
}

func toLLMMessages(messages []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		lm := llm.Message{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			lm.ToolCalls = append(lm.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Name, Input: tc.Input})
		}
		out = append(out, lm)
	}
	return out
}
