package orchestrator

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/armindomatias/housing-agent/internal/llm"
	"github.com/armindomatias/housing-agent/internal/observability"
	"github.com/armindomatias/housing-agent/internal/pipeline"
	"github.com/armindomatias/housing-agent/internal/store"
	"github.com/armindomatias/housing-agent/internal/tools"
	"github.com/armindomatias/housing-agent/internal/turn"
)

// end is the graph's terminal node name (spec.md §4.4 routing table).
const end = "END"

// Services is the single bundle every node receives, per spec.md §9
// "service injection via a configurable side-channel" — no globals.
type Services struct {
	Store    store.Store
	Tools    *tools.Registry
	Pipeline pipeline.Pipeline
	LLM      llm.Provider
	Logger   *slog.Logger
	Config   Config
	// Metrics is optional; a nil value disables instrumentation.
	Metrics *observability.Metrics
}

// toolServices adapts Services into the bundle tools.Registry.Execute's
// handlers expect.
func (s *Services) toolServices() *tools.Services {
	return &tools.Services{Store: s.Store, Pipeline: s.Pipeline, LLM: s.LLM, Logger: s.Logger}
}

// run threads the mutable pieces a single turn's graph execution needs
// beyond turn.State itself: the turn's identifiers and incoming message,
// and where in the message history this turn's new messages begin
// (post_process needs this
// to know what to persist and what was already on record).
type run struct {
	svc *Services
	st  *turn.State

	userID         string
	conversationID string
	incoming       string

	// turnStart is the index, counting only the non-system messages of
	// st.Messages, where this turn's own messages begin (the incoming
	// user message), set by hydrate.
	turnStart int
}

// node is one of the five named functions in the graph (spec.md §4.4).
// It returns the name of the node to run next.
type node func(ctx context.Context, r *run) (string, error)

// graph is the explicit small state machine spec.md §9 calls for in place
// of a generic DAG engine: a fixed set of named nodes plus the routing
// table baked into each node's own return value.
type graph struct {
	nodes map[string]node
	start string
}

func newGraph(start string) *graph {
	return &graph{nodes: make(map[string]node), start: start}
}

func (g *graph) addNode(name string, fn node) {
	g.nodes[name] = fn
}

func (g *graph) run(ctx context.Context, r *run) error {
	current := g.start
	for current != end {
		fn, ok := g.nodes[current]
		if !ok {
			return fmt.Errorf("orchestrator: unknown node %q", current)
		}
		next, err := fn(ctx, r)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}
