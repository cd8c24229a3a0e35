package orchestrator

// Config holds the orchestrator's per-process tunables (spec.md §4.4, §5).
type Config struct {
	// SystemPrompt is the persistent system message hydrate seeds every
	// turn with; it never changes within a turn.
	SystemPrompt string
	// Model is the LLM model name the agent node requests completions
	// from.
	Model string
	// MaxTokens bounds a single completion call.
	MaxTokens int
	// MaxCycles is the hard ceiling on agent/tools/reflect cycles before a
	// turn is aborted as TurnBudgetExceeded (spec.md §4.4 "e.g. 12 cycles").
	MaxCycles int
}

// DefaultConfig returns the orchestrator's default tunables.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: defaultSystemPrompt,
		Model:        "claude-sonnet-4-20250514",
		MaxTokens:    4096,
		MaxCycles:    12,
	}
}

const defaultSystemPrompt = `You are a conversational assistant helping first-time home buyers evaluate properties and plan renovations. Use the available tools to read and update the user's knowledge base, portfolio, and analyses. Always confirm with the user before archiving a saved property.`
