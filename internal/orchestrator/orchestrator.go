// Package orchestrator implements the 5-node cyclic state graph that
// drives one conversational turn (spec.md §4.4): hydrate → agent → tools
// → reflect → post_process, generalized from a single-loop "agentic loop"
// shape into named nodes with an explicit routing table.
package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// Orchestrator runs turns against a fixed Services bundle.
type Orchestrator struct {
	svc *Services
	g   *graph
}

// New builds an Orchestrator with the standard 5-node graph and routing
// table (spec.md §4.4 "Routing").
func New(svc *Services) *Orchestrator {
	if svc.Config.MaxCycles <= 0 {
		svc.Config.MaxCycles = DefaultConfig().MaxCycles
	}
	g := newGraph("hydrate")
	g.addNode("hydrate", hydrateNode)
	g.addNode("agent", agentNode)
	g.addNode("tools", toolsNode)
	g.addNode("reflect", reflectNode)
	g.addNode("post_process", postProcessNode)
	return &Orchestrator{svc: svc, g: g}
}

// Run executes one full turn for userID, optionally continuing
// conversationID, and returns the final turn state (its StreamEvents
// carry everything the gateway needs to relay over SSE).
func (o *Orchestrator) Run(ctx context.Context, userID, conversationID, message string) (*Result, error) {
	r := &run{
		svc:            o.svc,
		userID:         userID,
		conversationID: conversationID,
		incoming:       message,
	}

	start := time.Now()
	if m := o.svc.Metrics; m != nil {
		m.ActiveConversations.Inc()
		defer m.ActiveConversations.Dec()
	}

	err := o.g.run(ctx, r)

	if m := o.svc.Metrics; m != nil {
		m.TurnDuration.Observe(time.Since(start).Seconds())
		if r.st != nil {
			m.TurnCycles.Observe(float64(r.st.Cycle))
		}
	}

	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return &Result{
		ConversationID: r.conversationID,
		State:          r.st,
	}, nil
}
