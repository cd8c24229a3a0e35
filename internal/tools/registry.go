package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/armindomatias/housing-agent/internal/llm"
	"github.com/armindomatias/housing-agent/internal/turn"
)

// MaxArgsSize bounds a single tool call's argument payload, mirroring the
// teacher registry's resource-exhaustion guard.
const MaxArgsSize = 10 << 20

// Handler is a tool's execution function: validated input, the injected
// service bundle, and the live per-turn state it may mutate directly
// (spec.md §9 "handlers are plain functions receiving validated input and
// an injected service bundle").
type Handler func(ctx context.Context, svc *Services, st *turn.State, args json.RawMessage) Command

type registeredTool struct {
	name        string
	description string
	schema      string
	handler     Handler
}

// Registry is the explicit {name, schema, handler} list spec.md §9 asks
// for in place of decorator-registered tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]registeredTool
	schemaCache sync.Map
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds a tool. name must be unique; a later Register with the
// same name replaces the earlier one.
func (r *Registry) Register(name, description, schema string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = registeredTool{name: name, description: description, schema: schema, handler: handler}
}

// Definitions returns every registered tool as an llm.ToolDef, for
// inclusion in the agent node's completion request.
func (r *Registry) Definitions() []llm.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, llm.ToolDef{Name: t.name, Description: t.description, Schema: json.RawMessage(t.schema)})
	}
	return defs
}

func (r *Registry) compileSchema(name, schema string) (*jsonschema.Schema, error) {
	if cached, ok := r.schemaCache.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", schema)
	if err != nil {
		return nil, err
	}
	r.schemaCache.Store(name, compiled)
	return compiled, nil
}

// Execute validates args against the named tool's schema and, if valid,
// invokes its handler. Unknown tools and schema violations are returned
// as UserInputError commands rather than Go errors — a malformed call is
// ordinary tool-result material for the next agent cycle (spec.md §7).
func (r *Registry) Execute(ctx context.Context, svc *Services, st *turn.State, name string, args json.RawMessage) Command {
	if len(args) > MaxArgsSize {
		return Error(CategoryUserInput, fmt.Sprintf("tool %q arguments exceed maximum size", name))
	}

	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Error(CategoryUserInput, fmt.Sprintf("unknown tool: %s", name))
	}

	if t.schema != "" {
		schema, err := r.compileSchema(t.name, t.schema)
		if err != nil {
			return Error(CategoryUserInput, fmt.Sprintf("tool %q has an invalid schema: %v", name, err))
		}
		var decoded any
		if len(args) == 0 {
			args = []byte("{}")
		}
		if err := json.Unmarshal(args, &decoded); err != nil {
			return Error(CategoryUserInput, fmt.Sprintf("tool %q arguments are not valid JSON: %v", name, err))
		}
		if err := schema.Validate(decoded); err != nil {
			return Error(CategoryUserInput, fmt.Sprintf("tool %q arguments invalid: %v", name, err))
		}
	}

	return t.handler(ctx, svc, st, args)
}
