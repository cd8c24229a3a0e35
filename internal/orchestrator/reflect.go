package orchestrator

import (
	"context"

	"github.com/armindomatias/housing-agent/internal/kb"
	"github.com/armindomatias/housing-agent/internal/models"
)

// reflectNode is a pure function of state: it regenerates the context
// block and appends or replaces the single context_refresh system
// message. No LLM call (spec.md §4.4 "reflect").
func reflectNode(_ context.Context, r *run) (string, error) {
	block := kb.Render(r.st.Knowledge, r.st.Todos, r.st.CurrentFocus)

	msgs := r.st.Messages
	idx := -1
	for i, m := range msgs {
		if m.SystemTag == models.SystemTagContextRefresh {
			idx = i
			break
		}
	}

	refreshed := models.Message{Role: models.RoleSystem, Content: block, SystemTag: models.SystemTagContextRefresh}
	if idx >= 0 {
		without := append(append([]models.Message{}, msgs[:idx]...), msgs[idx+1:]...)
		r.st.Messages = append(without, refreshed)
	} else {
		r.st.Messages = append(msgs, refreshed)
	}

	return "agent", nil
}
