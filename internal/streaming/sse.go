package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"

	"hermes/internal/adapters/providers"
	"hermes/pkg/errors"
)

// SSESink renders stream events as Server-Sent Events frames, one
// "data: <JSON>" frame per event, flushed immediately.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares the response for event streaming and returns the sink.
// It fails when the underlying writer cannot flush, which must be reported
// to the client as a plain HTTP error before any frame is written.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.Wrap(errors.ErrInternal, "response writer does not support streaming")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return &SSESink{w: w, flusher: flusher}, nil
}

// Write renders one event as an SSE data frame and flushes it.
func (s *SSESink) Write(event providers.StreamEvent) error {
	frame := eventFrame(event)
	if frame == nil {
		return nil
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return errors.Wrap(err, "marshal SSE frame")
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return errors.Wrap(err, "write SSE frame")
	}
	s.flusher.Flush()

	return nil
}

// Close is a no-op: SSE has no close frame, the response ends when the
// handler returns.
func (s *SSESink) Close() error {
	return nil
}
