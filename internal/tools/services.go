package tools

import (
	"log/slog"

	"github.com/armindomatias/housing-agent/internal/llm"
	"github.com/armindomatias/housing-agent/internal/pipeline"
	"github.com/armindomatias/housing-agent/internal/store"
)

// Services is the single injected bundle every handler receives (spec.md
// §9 "service injection via a configurable side-channel"). No handler
// reaches a global; everything it can touch arrives as a parameter.
type Services struct {
	Store    store.Store
	Pipeline pipeline.Pipeline
	LLM      llm.Provider
	Logger   *slog.Logger
}
