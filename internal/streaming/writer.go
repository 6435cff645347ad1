package streaming

import (
	"context"
	"sync"

	"hermes/internal/adapters/providers"
)

// Sink is the transport half of a stream: it renders events onto the wire.
// Implementations are not required to be safe for concurrent use; the Writer
// serializes access.
type Sink interface {
	Write(event providers.StreamEvent) error
	Close() error
}

// Writer enforces the streaming protocol over a Sink: chunk events pass
// through in arrival order, exactly one terminal event (done or error) is
// written, anything after the terminal event is dropped, and Close is safe
// to call more than once.
type Writer struct {
	sink Sink

	mu       sync.Mutex
	terminal bool
	closed   bool
}

// NewWriter wraps a transport sink.
func NewWriter(sink Sink) *Writer {
	return &Writer{sink: sink}
}

// Emit writes one event to the sink. Events arriving after a terminal event
// or after Close are discarded without error.
func (w *Writer) Emit(event providers.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.terminal {
		return nil
	}
	if event.Terminal() {
		w.terminal = true
	}

	return w.sink.Write(event)
}

// Close releases the sink. Only the first call reaches the sink.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	return w.sink.Close()
}

// Finished reports whether a terminal event has been written.
func (w *Writer) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminal
}

// Relay drains a provider stream into the writer and guarantees the protocol
// even when the producer misbehaves: a nil stream (a streaming call answered
// by a provider without streaming support) becomes the standard unsupported
// error event, a channel closed without a terminal event gets one
// synthesized, and the sink is always closed. The returned error reports
// transport trouble on our side; upstream provider failures arrive as error
// events and return nil.
func Relay(ctx context.Context, stream *providers.Stream, w *Writer) error {
	defer w.Close()

	if stream == nil {
		return w.Emit(providers.ErrorEvent(providers.StreamingUnsupportedMessage))
	}

	// Producers send without selecting on ctx; drain whatever is left so
	// their goroutine can finish and close the channel.
	defer func() {
		go func() {
			for range stream.Events() {
			}
		}()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = w.Emit(providers.ErrorEvent("request cancelled"))
			return ctx.Err()

		case event, ok := <-stream.Events():
			if !ok {
				if !w.Finished() {
					return w.Emit(providers.ErrorEvent("stream ended without completion"))
				}
				return nil
			}

			if err := w.Emit(event); err != nil {
				return err
			}
			if event.Terminal() {
				return nil
			}
		}
	}
}

// eventFrame renders an event as the JSON payload shared by the SSE and
// WebSocket transports. Done frames carry "done": true plus the usage record,
// with any extra metadata merged in beside them; error frames carry the
// message and "done": true so clients need only watch one field.
func eventFrame(event providers.StreamEvent) map[string]interface{} {
	switch event.Type {
	case providers.StreamEventChunk:
		return map[string]interface{}{"chunk": event.Text}

	case providers.StreamEventDone:
		frame := make(map[string]interface{}, len(event.Extra)+2)
		for k, v := range event.Extra {
			frame[k] = v
		}
		frame["done"] = true
		frame["usage"] = event.Usage
		return frame

	case providers.StreamEventError:
		return map[string]interface{}{"error": event.Message, "done": true}
	}

	return nil
}
