package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/armindomatias/housing-agent/internal/httpauth"
	"github.com/armindomatias/housing-agent/internal/orchestrator"
)

const maxChatBody = 1 << 20 // 1MB, mirrors the pack's agent-handler body cap

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	// UserID is only honored when auth is disabled (local/dev mode); an
	// authenticated request's identity always comes from its bearer token
	// (spec.md §4.3 "Authorization filters every user-scoped read and
	// write by user_id = caller").
	UserID string `json:"user_id"`
}

// handleChat runs one orchestrator turn and streams its stream_events back
// as SSE (spec.md §4.5, §6). A tool-level error never aborts the stream;
// only an error returned from Orchestrator.Run itself does.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message must not be empty", http.StatusBadRequest)
		return
	}

	userID, ok := httpauth.UserFromContext(r.Context())
	if !ok {
		userID = req.UserID
	}
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result, runErr := s.orchestrator.Run(r.Context(), userID, req.ConversationID, req.Message)

	if result != nil && result.State != nil {
		if err := sse.flushNew(result.State.StreamEvents); err != nil {
			if s.logger != nil {
				s.logger.Warn("sse flush failed", "error", err)
			}
			return
		}
	}

	if runErr != nil {
		var budgetErr *orchestrator.TurnBudgetExceeded
		if errors.As(runErr, &budgetErr) {
			_ = sse.send("error", map[string]any{"code": budgetErr.Code(), "message": budgetErr.Error()})
		} else {
			if s.logger != nil {
				s.logger.Error("orchestrator run failed", "error", runErr)
			}
			sse.sendError("internal error")
		}
		return
	}
}
