package orchestrator

import "fmt"

// TurnBudgetExceeded is returned when the agent/tools/reflect cycle does
// not terminate within Config.MaxCycles (spec.md §7 "TurnBudgetExceeded").
// It carries a stable Code so the gateway can translate it into a typed
// error SSE event without string matching.
type TurnBudgetExceeded struct {
	Cycles int
}

func (e *TurnBudgetExceeded) Error() string {
	return fmt.Sprintf("turn budget exceeded after %d cycles", e.Cycles)
}

// Code returns the stable error code surfaced in the SSE error event.
func (e *TurnBudgetExceeded) Code() string {
	return "turn_budget_exceeded"
}
