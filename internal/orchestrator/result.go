package orchestrator

import "github.com/armindomatias/housing-agent/internal/turn"

// Result is what one turn returns to its caller (the gateway): the
// conversation it ran against plus the final turn state, whose
// StreamEvents the gateway replays as SSE events.
type Result struct {
	ConversationID string
	State          *turn.State
}
