package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armindomatias/housing-agent/internal/orchestrator"
	"github.com/armindomatias/housing-agent/internal/turn"
)

type fakeOrchestrator struct {
	result *orchestrator.Result
	err    error
}

func (f *fakeOrchestrator) Run(_ context.Context, _, _, _ string) (*orchestrator.Result, error) {
	return f.result, f.err
}

func TestHandleChatStreamsEvents(t *testing.T) {
	state := &turn.State{
		StreamEvents: []turn.Event{
			{Type: turn.EventThinking, Payload: nil},
			{Type: turn.EventMessage, Payload: map[string]any{"text": "olá", "done": true}},
			{Type: turn.EventTodoUpdate, Payload: map[string]any{"task": "ligar ao banco"}},
		},
	}
	srv := NewServer(Config{
		Orchestrator: &fakeOrchestrator{result: &orchestrator.Result{ConversationID: "conv-1", State: state}},
	})

	body := bytes.NewBufferString(`{"message":"olá","user_id":"u1"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	rec := httptest.NewRecorder()

	srv.handleChat(rec, req)

	raw := rec.Body.String()
	assert.Contains(t, raw, "event: thinking")
	assert.Contains(t, raw, "event: message")
	assert.Contains(t, raw, "event: todo_update")
	assert.Contains(t, raw, `"done":true`)
	assert.Equal(t, 3, strings.Count(raw, "event: "))
}

func TestHandleChatRejectsEmptyMessage(t *testing.T) {
	srv := NewServer(Config{Orchestrator: &fakeOrchestrator{}})
	body := bytes.NewBufferString(`{"message":"","user_id":"u1"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	rec := httptest.NewRecorder()

	srv.handleChat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatRequiresUserID(t *testing.T) {
	srv := NewServer(Config{Orchestrator: &fakeOrchestrator{}})
	body := bytes.NewBufferString(`{"message":"olá"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	rec := httptest.NewRecorder()

	srv.handleChat(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	srv := NewServer(Config{Orchestrator: &fakeOrchestrator{}})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.handleHealthz(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
}
