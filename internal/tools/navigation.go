package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/armindomatias/housing-agent/internal/kb"
	"github.com/armindomatias/housing-agent/internal/turn"
)

const readContextSchema = `{
	"type": "object",
	"properties": {
		"key":        {"type": "string", "minLength": 1},
		"start_line": {"type": "integer", "minimum": 0},
		"num_lines":  {"type": "integer", "minimum": 1}
	},
	"required": ["key"]
}`

type readContextArgs struct {
	Key       string `json:"key"`
	StartLine int    `json:"start_line"`
	NumLines  int    `json:"num_lines"`
}

// ReadContext loads content for a knowledge-base key, optionally ranged
// (spec.md §4.2 "read_context").
func ReadContext(_ context.Context, _ *Services, st *turn.State, raw json.RawMessage) Command {
	var args readContextArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid read_context arguments: %v", err))
	}

	if err := st.Knowledge.Load(args.Key, args.StartLine, args.NumLines); err != nil {
		if errors.Is(err, kb.ErrUnknownKey) {
			return Error(CategoryUnknownKey, fmt.Sprintf("no such knowledge key: %s", args.Key))
		}
		return Error(CategoryTransient, fmt.Sprintf("could not load %s: %v", args.Key, err))
	}

	st.MarkReferenced(args.Key)
	entry, _ := st.Knowledge.Get(args.Key)
	return Success(entryText(entry))
}

func entryText(e kb.Entry) string {
	if e.Content == nil {
		return ""
	}
	return *e.Content
}

const writeContextSchema = `{
	"type": "object",
	"properties": {
		"key":     {"type": "string", "minLength": 1},
		"summary": {"type": "string"},
		"content": {"type": "string"}
	},
	"required": ["key", "summary"]
}`

type writeContextArgs struct {
	Key     string  `json:"key"`
	Summary string  `json:"summary"`
	Content *string `json:"content"`
}

// WriteContext creates or overwrites a derived knowledge-base entry
// (spec.md §4.2 "write_context").
func WriteContext(_ context.Context, _ *Services, st *turn.State, raw json.RawMessage) Command {
	var args writeContextArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid write_context arguments: %v", err))
	}
	if st.Knowledge.IsProtected(args.Key) {
		return Error(CategoryProtected, fmt.Sprintf("cannot overwrite protected key: %s", args.Key))
	}

	st.Knowledge.Write(args.Key, args.Summary, args.Content, kb.SourceTool)
	st.MarkReferenced(args.Key)
	return Success(fmt.Sprintf("wrote %s", args.Key))
}

const removeContextSchema = `{
	"type": "object",
	"properties": {
		"key": {"type": "string", "minLength": 1}
	},
	"required": ["key"]
}`

type removeContextArgs struct {
	Key string `json:"key"`
}

// RemoveContext deletes a non-protected knowledge-base key (spec.md §4.2
// "remove_context").
func RemoveContext(_ context.Context, _ *Services, st *turn.State, raw json.RawMessage) Command {
	var args removeContextArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid remove_context arguments: %v", err))
	}

	if err := st.Knowledge.Remove(args.Key); err != nil {
		if errors.Is(err, kb.ErrProtectedKey) {
			return Error(CategoryProtected, fmt.Sprintf("cannot remove protected key: %s", args.Key))
		}
		return Error(CategoryUnknownKey, fmt.Sprintf("no such knowledge key: %s", args.Key))
	}
	return Success(fmt.Sprintf("removed %s", args.Key))
}
