package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/armindomatias/housing-agent/internal/turn"
)

// sseWriter wraps an http.ResponseWriter for Server-Sent Events, tracking
// which of a turn's stream_events have already been flushed to the client
// (spec.md §4.5's "sent_events index"). Grounded on the pack's
// newSSEWriter shape: data-framed JSON, one blank-line terminator, an
// explicit Flush() after every write.
type sseWriter struct {
	w    http.ResponseWriter
	f    http.Flusher
	sent int // number of turn.State.StreamEvents already sent
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("gateway: streaming unsupported by response writer")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, f: flusher}, nil
}

// send writes one named SSE event with a JSON-encoded payload.
func (s *sseWriter) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: marshal sse event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("gateway: write sse event: %w", err)
	}
	s.f.Flush()
	return nil
}

// flushNew diffs events against s.sent and sends only what hasn't gone out
// yet, advancing the sent index (spec.md §4.5).
func (s *sseWriter) flushNew(events []turn.Event) error {
	for _, e := range events[s.sent:] {
		if err := s.send(string(e.Type), e.Payload); err != nil {
			return err
		}
	}
	s.sent = len(events)
	return nil
}

func (s *sseWriter) sendError(message string) {
	_ = s.send(string(turn.EventError), map[string]any{"message": message})
}
