package providers

import "strings"

// StreamEventType discriminates streaming events.
type StreamEventType string

const (
	// StreamEventChunk carries incremental text content
	StreamEventChunk StreamEventType = "chunk"

	// StreamEventDone terminates a successful stream and carries usage
	StreamEventDone StreamEventType = "done"

	// StreamEventError terminates a failed stream
	StreamEventError StreamEventType = "error"
)

// StreamEvent is a single event in a completion stream. Exactly one terminal
// event (Done or Error) ends every stream.
type StreamEvent struct {
	Type StreamEventType

	// Text is set on chunk events
	Text string

	// Usage and Extra are set on done events
	Usage Usage
	Extra map[string]interface{}

	// Message is set on error events
	Message string
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == StreamEventDone || e.Type == StreamEventError
}

// ChunkEvent builds an incremental content event.
func ChunkEvent(text string) StreamEvent {
	return StreamEvent{Type: StreamEventChunk, Text: text}
}

// DoneEvent builds the successful terminal event.
func DoneEvent(usage Usage, extra map[string]interface{}) StreamEvent {
	return StreamEvent{Type: StreamEventDone, Usage: usage, Extra: extra}
}

// ErrorEvent builds the failure terminal event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: StreamEventError, Message: message}
}

// streamDoneExtra is attached to terminal Done events so streaming clients
// see the same provider and model identity the JSON envelope carries.
func streamDoneExtra(provider, model string) map[string]interface{} {
	return map[string]interface{}{
		"provider": provider,
		"model":    model,
	}
}

// StreamingUnsupportedMessage is emitted when a streaming call lands on a
// provider or model that can only answer synchronously.
const StreamingUnsupportedMessage = "Streaming not supported for this provider/model"

// Stream is a sequence of events from a single completion call. The producing
// adapter closes the channel after sending its terminal event.
type Stream struct {
	events <-chan StreamEvent
}

// NewStream wraps an event channel.
func NewStream(events <-chan StreamEvent) *Stream {
	return &Stream{events: events}
}

// NewSingleEventStream builds a stream that emits one event and ends. Used to
// surface terminal errors on calls that never produced content.
func NewSingleEventStream(event StreamEvent) *Stream {
	ch := make(chan StreamEvent, 1)
	ch <- event
	close(ch)
	return &Stream{events: ch}
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan StreamEvent {
	return s.events
}

// Collect drains the stream, concatenating chunk text. It returns the final
// usage from the Done event, or the Error event's message as an error string.
func (s *Stream) Collect() (string, Usage, string) {
	var sb strings.Builder
	var usage Usage
	var errMsg string

	for event := range s.events {
		switch event.Type {
		case StreamEventChunk:
			sb.WriteString(event.Text)
		case StreamEventDone:
			usage = event.Usage
		case StreamEventError:
			errMsg = event.Message
		}
	}

	return sb.String(), usage, errMsg
}
