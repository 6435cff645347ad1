package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hermes/internal/adapters/providers"
	"hermes/pkg/errors"
)

func TestWriterSingleCloseAndOrder(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	w := NewWriter(sink)

	events := []providers.StreamEvent{
		providers.ChunkEvent("a"),
		providers.ChunkEvent("b"),
		providers.DoneEvent(providers.Usage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2}, nil),
	}
	for _, ev := range events {
		if err := w.Emit(ev); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if len(sink.events) != 3 {
		t.Fatalf("sink got %d events, want 3", len(sink.events))
	}
	for i, ev := range events {
		if sink.events[i].Type != ev.Type || sink.events[i].Text != ev.Text {
			t.Errorf("event[%d] = %+v, want %+v", i, sink.events[i], ev)
		}
	}
	if sink.closes != 1 {
		t.Errorf("sink closed %d times, want exactly 1", sink.closes)
	}
}

func TestWriterDropsAfterTerminal(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	w := NewWriter(sink)

	mustEmit(t, w, providers.DoneEvent(providers.Usage{}, nil))
	mustEmit(t, w, providers.ChunkEvent("late"))
	mustEmit(t, w, providers.ErrorEvent("second terminal"))

	if len(sink.events) != 1 {
		t.Fatalf("sink got %d events, want 1", len(sink.events))
	}
	if sink.events[0].Type != providers.StreamEventDone {
		t.Errorf("surviving event = %s, want done", sink.events[0].Type)
	}
	if !w.Finished() {
		t.Error("Finished() = false after terminal event")
	}
}

func TestWriterDropsAfterClose(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	w := NewWriter(sink)

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	mustEmit(t, w, providers.ChunkEvent("after close"))

	if len(sink.events) != 0 {
		t.Fatalf("sink got %d events after close, want 0", len(sink.events))
	}
}

func TestRelayAbortedStream(t *testing.T) {
	t.Parallel()

	stream := streamOf(
		providers.ChunkEvent("a"),
		providers.ChunkEvent("b"),
		providers.ErrorEvent("upstream failed"),
	)
	sink := &recordingSink{}

	if err := Relay(context.Background(), stream, NewWriter(sink)); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	types := sinkTypes(sink)
	want := []providers.StreamEventType{
		providers.StreamEventChunk,
		providers.StreamEventChunk,
		providers.StreamEventError,
	}
	if len(types) != len(want) {
		t.Fatalf("sink got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("sink got %v, want %v", types, want)
		}
	}
	if sink.closes != 1 {
		t.Errorf("sink closed %d times, want exactly 1", sink.closes)
	}
}

func TestRelayNilStream(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}

	if err := Relay(context.Background(), nil, NewWriter(sink)); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("sink got %d events, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Type != providers.StreamEventError || ev.Message != providers.StreamingUnsupportedMessage {
		t.Errorf("event = %+v, want unsupported-streaming error", ev)
	}
	if sink.closes != 1 {
		t.Errorf("sink closed %d times, want exactly 1", sink.closes)
	}
}

func TestRelaySynthesizesMissingTerminal(t *testing.T) {
	t.Parallel()

	stream := streamOf(providers.ChunkEvent("partial"))
	sink := &recordingSink{}

	if err := Relay(context.Background(), stream, NewWriter(sink)); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	if len(sink.events) != 2 {
		t.Fatalf("sink got %d events, want 2", len(sink.events))
	}
	last := sink.events[len(sink.events)-1]
	if last.Type != providers.StreamEventError {
		t.Errorf("last event = %s, want synthesized error", last.Type)
	}
}

func TestRelayContextCancelled(t *testing.T) {
	t.Parallel()

	ch := make(chan providers.StreamEvent)
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Relay(ctx, providers.NewStream(ch), NewWriter(sink))
	close(ch)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Relay() error = %v, want context.Canceled", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != providers.StreamEventError {
		t.Errorf("sink events = %v, want one error event", sinkTypes(sink))
	}
	if sink.closes != 1 {
		t.Errorf("sink closed %d times, want exactly 1", sink.closes)
	}
}

func TestRelaySinkWriteFailure(t *testing.T) {
	t.Parallel()

	stream := streamOf(
		providers.ChunkEvent("a"),
		providers.ChunkEvent("b"),
		providers.DoneEvent(providers.Usage{}, nil),
	)
	sink := &recordingSink{failAt: 2}

	err := Relay(context.Background(), stream, NewWriter(sink))
	if err == nil {
		t.Fatal("Relay() error = nil, want sink write failure")
	}
	if len(sink.events) != 1 {
		t.Errorf("sink got %d events before failing, want 1", len(sink.events))
	}
	if sink.closes != 1 {
		t.Errorf("sink closed %d times, want exactly 1", sink.closes)
	}
}

func TestSSERelayEndToEnd(t *testing.T) {
	t.Parallel()

	stream := streamOf(
		providers.ChunkEvent("a"),
		providers.ChunkEvent("b"),
		providers.DoneEvent(providers.Usage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2}, nil),
	)

	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	if err != nil {
		t.Fatalf("NewSSESink() error = %v", err)
	}

	if err := Relay(context.Background(), stream, NewWriter(sink)); err != nil {
		t.Fatalf("Relay() error = %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if !rec.Flushed {
		t.Error("response was never flushed")
	}

	frames := sseFrames(t, rec.Body.String())
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3: %v", len(frames), frames)
	}
	if frames[0]["chunk"] != "a" || frames[1]["chunk"] != "b" {
		t.Errorf("chunk frames = %v %v, want a then b", frames[0], frames[1])
	}

	final := frames[2]
	if final["done"] != true {
		t.Errorf(`final frame done = %v, want true`, final["done"])
	}
	usage, ok := final["usage"].(map[string]interface{})
	if !ok {
		t.Fatalf("final frame usage = %v, want object", final["usage"])
	}
	if usage["input_tokens"] != float64(1) || usage["output_tokens"] != float64(1) || usage["total_tokens"] != float64(2) {
		t.Errorf("usage = %v, want {1 1 2}", usage)
	}
}

func TestSSEErrorFrame(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	if err != nil {
		t.Fatalf("NewSSESink() error = %v", err)
	}

	if err := sink.Write(providers.ErrorEvent("boom")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	frames := sseFrames(t, rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0]["error"] != "boom" || frames[0]["done"] != true {
		t.Errorf("frame = %v, want error + done", frames[0])
	}
}

func TestSSEDoneFrameMergesExtras(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	if err != nil {
		t.Fatalf("NewSSESink() error = %v", err)
	}

	extra := map[string]interface{}{"pages": 3, "done": false}
	if err := sink.Write(providers.DoneEvent(providers.Usage{TotalTokens: 7}, extra)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	frames := sseFrames(t, rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	frame := frames[0]
	if frame["pages"] != float64(3) {
		t.Errorf("pages = %v, want 3", frame["pages"])
	}
	if frame["done"] != true {
		t.Error("extras must not override the done marker")
	}
}

func TestSSESinkRequiresFlusher(t *testing.T) {
	t.Parallel()

	if _, err := NewSSESink(&plainResponseWriter{}); !errors.Is(err, errors.ErrInternal) {
		t.Fatalf("NewSSESink() error = %v, want ErrInternal", err)
	}
}

func mustEmit(t *testing.T, w *Writer, event providers.StreamEvent) {
	t.Helper()
	if err := w.Emit(event); err != nil {
		t.Fatalf("Emit(%s) error = %v", event.Type, err)
	}
}

func streamOf(events ...providers.StreamEvent) *providers.Stream {
	ch := make(chan providers.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return providers.NewStream(ch)
}

func sinkTypes(s *recordingSink) []providers.StreamEventType {
	types := make([]providers.StreamEventType, 0, len(s.events))
	for _, ev := range s.events {
		types = append(types, ev.Type)
	}
	return types
}

func sseFrames(t *testing.T, body string) []map[string]interface{} {
	t.Helper()

	var frames []map[string]interface{}
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		if block == "" {
			continue
		}
		data := strings.TrimPrefix(block, "data: ")
		var frame map[string]interface{}
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			t.Fatalf("malformed SSE frame %q: %v", block, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

// recordingSink captures written events. failAt makes the nth write fail.
type recordingSink struct {
	events []providers.StreamEvent
	closes int
	failAt int
}

func (s *recordingSink) Write(event providers.StreamEvent) error {
	if s.failAt > 0 && len(s.events)+1 == s.failAt {
		return errors.New("sink write failed")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error {
	s.closes++
	return nil
}

// plainResponseWriter implements http.ResponseWriter without http.Flusher.
type plainResponseWriter struct {
	header http.Header
}

func (w *plainResponseWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *plainResponseWriter) Write(b []byte) (int, error) { return len(b), nil }

func (w *plainResponseWriter) WriteHeader(int) {}
