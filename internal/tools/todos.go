package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/armindomatias/housing-agent/internal/models"
	"github.com/armindomatias/housing-agent/internal/turn"
)

const manageTodosSchema = `{
	"type": "object",
	"properties": {
		"action": {"type": "string", "enum": ["add", "complete", "list"]},
		"id":     {"type": "string"},
		"task":   {"type": "string"}
	},
	"required": ["action"]
}`

type manageTodosArgs struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Task   string `json:"task"`
}

// ManageTodos implements the add/complete/list actions over the turn's
// task list (spec.md §4.2 "manage_todos").
func ManageTodos(_ context.Context, _ *Services, st *turn.State, raw json.RawMessage) Command {
	var args manageTodosArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Error(CategoryUserInput, fmt.Sprintf("invalid manage_todos arguments: %v", err))
	}

	switch args.Action {
	case "add":
		if args.Task == "" {
			return Error(CategoryUserInput, "manage_todos(add) requires a task")
		}
		todo := models.Todo{ID: uuid.NewString(), Task: args.Task, Status: models.TodoPending}
		st.Todos = append(st.Todos, todo)
		st.Emit(turn.EventTodoUpdate, map[string]any{"action": "add", "id": todo.ID, "task": todo.Task})
		return Success(fmt.Sprintf("added todo %s: %s", todo.ID, todo.Task))

	case "complete":
		for i, t := range st.Todos {
			if t.ID == args.ID {
				st.Todos[i].Status = models.TodoDone
				st.Emit(turn.EventTodoUpdate, map[string]any{"action": "complete", "id": t.ID})
				return Success(fmt.Sprintf("completed todo %s", args.ID))
			}
		}
		return Error(CategoryUserInput, fmt.Sprintf("no such todo: %s", args.ID))

	case "list":
		return Success(renderTodoList(st.Todos))

	default:
		return Error(CategoryUserInput, fmt.Sprintf("unknown manage_todos action: %s", args.Action))
	}
}

func renderTodoList(todos []models.Todo) string {
	if len(todos) == 0 {
		return "no tasks"
	}
	out := ""
	for _, t := range todos {
		box := "[ ]"
		if t.Status == models.TodoDone {
			box = "[x]"
		}
		out += fmt.Sprintf("%s (%s) %s\n", box, t.ID, t.Task)
	}
	return out
}
