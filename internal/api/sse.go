package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// sseWriter serializes Server-Sent Events onto an HTTP response. Safe
// for concurrent use: the model stream and tool events write from the
// same turn but may interleave.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares a response for event streaming. Fails when the
// ResponseWriter cannot flush, which would buffer the whole stream.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent sends one named event with a JSON payload and flushes.
func (s *sseWriter) writeEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event %q: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("writing event %q: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}
