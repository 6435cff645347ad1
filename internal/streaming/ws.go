package streaming

import (
	"time"

	"github.com/gorilla/websocket"

	"hermes/internal/adapters/providers"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const wsWriteTimeout = 5 * time.Second

// WSSink renders stream events as WebSocket text messages carrying the same
// JSON payloads as the SSE transport, then closes the connection with a
// normal-closure frame after the stream ends.
type WSSink struct {
	conn *websocket.Conn
	log  *logger.Logger
}

// NewWSSink wraps an already-upgraded connection.
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{
		conn: conn,
		log:  logger.Get().With("component", "ws_stream"),
	}
}

// Write sends one event as a JSON text message.
func (s *WSSink) Write(event providers.StreamEvent) error {
	frame := eventFrame(event)
	if frame == nil {
		return nil
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return errors.Wrap(err, "set websocket write deadline")
	}
	if err := s.conn.WriteJSON(frame); err != nil {
		return errors.Wrap(err, "write websocket frame")
	}

	return nil
}

// Close sends a normal-closure frame, then closes the connection.
func (s *WSSink) Close() error {
	err := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err != nil {
		s.log.Warnf("Error sending websocket close frame: %v", err)
	}

	return s.conn.Close()
}
