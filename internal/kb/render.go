package kb

import (
	"fmt"
	"strings"

	"github.com/armindomatias/housing-agent/internal/models"
)

// Render produces the deterministic context block the reflect node inserts
// as the "context_refresh" system message (spec.md §4.1). The section
// headings are fixed strings; ordering is a stability contract tests
// depend on.
func Render(k *KB, todos []models.Todo, focus *models.Focus) string {
	var b strings.Builder
	b.WriteString("## Current State\n\n")

	b.WriteString("### Knowledge Base\n")
	for _, status := range k.List() {
		state := "available"
		if status.Loaded {
			state = "loaded"
		}
		fmt.Fprintf(&b, "  %s [%s] — %s\n", status.Key, state, status.Summary)
	}
	b.WriteString("\n")

	if len(todos) > 0 {
		b.WriteString("### Tasks\n")
		for _, t := range todos {
			box := "[ ]"
			if t.Status == models.TodoDone {
				box = "[x]"
			}
			fmt.Fprintf(&b, "  %s (%s) %s\n", box, t.ID, t.Task)
		}
		b.WriteString("\n")
	}

	if focus != nil {
		b.WriteString("### Current Focus\n")
		fmt.Fprintf(&b, "  Property: %s | Topic: %s | Depth: %d\n", focus.PropertyID, focus.Topic, focus.Depth)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
