// Package turn holds the single mutable record that flows through every
// orchestrator node and every tool handler for the duration of one turn
// (spec.md §3 "Orchestrator state"). It has no dependents inside the
// module other than orchestrator, tools and gateway, which all sit above
// it.
package turn

import (
	"github.com/armindomatias/housing-agent/internal/kb"
	"github.com/armindomatias/housing-agent/internal/models"
)

// EventType is one of the stable wire event kinds the gateway serializes.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventAction     EventType = "action"
	EventMessage    EventType = "message"
	EventTodoUpdate EventType = "todo_update"
	EventError      EventType = "error"
)

// Event is one entry in the append-only stream_events queue (spec.md §3).
type Event struct {
	Type    EventType      `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// State is the orchestrator state record: messages accumulate via append,
// every other field uses replace semantics (spec.md §3, §9 "single record
// type with named, typed fields").
type State struct {
	UserID         string
	ConversationID string
	Messages       []models.Message

	Knowledge     *kb.KB
	Todos         []models.Todo
	CurrentFocus  *models.Focus

	// ExecutedActions accumulates within the current turn and is cleared by
	// post_process after being written to the action log (spec.md §4.4).
	ExecutedActions []models.ActionLogEntry
	// StreamEvents accumulates within the current turn; the gateway diffs
	// it against a per-request sent index (spec.md §4.5).
	StreamEvents []Event

	// Referenced tracks every knowledge key written or loaded this turn, the
	// referenced_keys input demote_stale needs at post_process (spec.md §4.4).
	Referenced map[string]bool

	// Cycle counts agent/tools/reflect iterations against the turn budget.
	Cycle int
}

// NewState returns an empty turn state ready for hydrate to populate.
func NewState(userID, conversationID string) *State {
	return &State{
		UserID:         userID,
		ConversationID: conversationID,
		Referenced:     make(map[string]bool),
	}
}

// MarkReferenced records key as touched this turn, for demote_stale's
// referenced_keys argument.
func (s *State) MarkReferenced(key string) {
	if s.Referenced == nil {
		s.Referenced = make(map[string]bool)
	}
	s.Referenced[key] = true
}

// Emit appends an event to the turn's stream_events queue.
func (s *State) Emit(eventType EventType, payload map[string]any) {
	s.StreamEvents = append(s.StreamEvents, Event{Type: eventType, Payload: payload})
}

// LogAction appends an executed action descriptor for post_process to
// persist to the action log.
func (s *State) LogAction(entry models.ActionLogEntry) {
	s.ExecutedActions = append(s.ExecutedActions, entry)
}
