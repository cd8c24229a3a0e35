package summaries

import (
	"context"
	"fmt"
	"strings"

	"github.com/armindomatias/housing-agent/internal/llm"
	"github.com/armindomatias/housing-agent/internal/models"
)

// narrativeSystemPrompt instructs the model to produce a short, warm
// wrap-up of the conversation rather than a bullet-point recap.
const narrativeSystemPrompt = "You write a brief, warm closing note summarizing a house-hunting conversation for the user. Two to four sentences, no headers, no bullet points."

// ConversationEndNarrative is the one LLM-backed summary function (spec.md
// §2). Given the closing transcript it asks the model for a short
// human-readable wrap-up; on any provider error it falls back to a
// deterministic digest so conversation-end handling never fails the turn.
func ConversationEndNarrative(ctx context.Context, provider llm.Provider, model string, messages []models.Message) string {
	if provider == nil {
		return templatedConversationEnd(messages)
	}

	req := &llm.CompletionRequest{
		Model:     model,
		System:    narrativeSystemPrompt,
		Messages:  toLLMMessages(messages),
		MaxTokens: 300,
	}

	result, err := provider.Complete(ctx, req)
	if err != nil || strings.TrimSpace(result.Text) == "" {
		return templatedConversationEnd(messages)
	}
	return result.Text
}

func toLLMMessages(messages []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// templatedConversationEnd is the deterministic fallback when no provider
// is configured or the model call fails.
func templatedConversationEnd(messages []models.Message) string {
	userTurns := 0
	for _, m := range messages {
		if m.Role == models.RoleUser {
			userTurns++
		}
	}
	return fmt.Sprintf("Conversation ended after %d exchange(s).", userTurns)
}
