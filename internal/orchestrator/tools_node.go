package orchestrator

import (
	"context"

	"github.com/armindomatias/housing-agent/internal/models"
	"github.com/armindomatias/housing-agent/internal/turn"
)

// toolsNode executes every tool invocation the agent emitted, in order,
// to preserve causal state (spec.md §4.4 "tools"). Each tool's command
// becomes a tool-role message for the next agent call, and a tool_call
// stream event is emitted regardless of success.
func toolsNode(ctx context.Context, r *run) (string, error) {
	last := r.st.Messages[len(r.st.Messages)-1]
	svc := r.svc.toolServices()

	for _, call := range last.ToolCalls {
		cmd := r.svc.Tools.Execute(ctx, svc, r.st, call.Name, call.Input)

		r.st.Messages = append(r.st.Messages, models.Message{
			Role:       models.RoleTool,
			Content:    cmd.ResponseText,
			ToolCallID: call.ID,
		})

		// A tool-error command is ordinary tool-result material for the
		// next agent cycle, not an infrastructure failure — it never
		// produces an `error` SSE event (spec.md §7, §8 scenario 5).
		r.st.Emit(turn.EventToolCall, map[string]any{
			"name":     call.Name,
			"id":       call.ID,
			"is_error": cmd.IsError,
		})

		if m := r.svc.Metrics; m != nil {
			status := "ok"
			if cmd.IsError {
				status = "error"
			}
			m.ToolExecutionCounter.WithLabelValues(call.Name, status).Inc()
		}
	}

	return "reflect", nil
}
