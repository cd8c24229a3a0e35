package orchestrator

import (
	"context"
	"fmt"

	"github.com/armindomatias/housing-agent/internal/models"
)

// postProcessNode persists this turn's new messages and executed
// actions, demotes stale knowledge entries, and increments the
// conversation's message count (spec.md §4.4 "post_process"). Reflective
// system messages are never persisted.
func postProcessNode(ctx context.Context, r *run) (string, error) {
	nonSystem := make([]models.Message, 0, len(r.st.Messages))
	for _, m := range r.st.Messages {
		if m.Role != models.RoleSystem {
			nonSystem = append(nonSystem, m)
		}
	}
	for _, m := range nonSystem[r.turnStart:] {
		if err := r.svc.Store.AppendMessage(ctx, r.conversationID, m); err != nil {
			return "", fmt.Errorf("post_process: append message: %w", err)
		}
	}

	for _, entry := range r.st.ExecutedActions {
		if err := r.svc.Store.LogAction(ctx, entry); err != nil {
			// A logging failure after a durable mutation succeeded does
			// not fail the turn (spec.md §7). The failed entry is
			// dropped; it is not queued for retry.
			continue
		}
	}

	referenced := r.st.Referenced
	if referenced == nil {
		referenced = make(map[string]bool)
	}
	for _, entry := range r.st.ExecutedActions {
		if entry.EntityType == "portfolio_item" || entry.EntityType == "analysis" {
			referenced[fmt.Sprintf("portfolio/%s/resumo", entry.EntityID)] = true
		}
	}
	r.st.Knowledge.DemoteStale(referenced)

	// Counts the final assistant turn; the user turn was already counted
	// by hydrate (spec.md §8 scenario 6).
	if err := r.svc.Store.IncrementMessageCount(ctx, r.conversationID); err != nil {
		return "", fmt.Errorf("post_process: increment message count: %w", err)
	}

	r.st.ExecutedActions = nil
	return end, nil
}
