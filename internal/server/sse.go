package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonathan/recommendation-writer/internal/types"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteStage sends a stage event. Terminal events are named after their
// status ("complete" or "error"), the rest are "stage".
func (s *SSEWriter) WriteStage(ev types.StageEvent) error {
	name := "stage"
	if ev.Status.Terminal() {
		name = string(ev.Status)
	}
	return s.WriteEvent(name, ev)
}

// WriteError sends a terminal error event built outside the pipeline.
func (s *SSEWriter) WriteError(message string) {
	s.WriteStage(types.StageEvent{Stage: "error", Status: types.StatusError, Error: message}) //nolint:errcheck
}
