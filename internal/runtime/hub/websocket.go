package hub

import (
	"context"
	"sync/atomic"

	"github.com/coder/websocket"

	relayerrors "github.com/drblury/streamrelay/internal/runtime/errors"
	"github.com/drblury/streamrelay/internal/runtime/ids"
)

const (
	stateOpen int32 = iota
	stateErrored
	stateClosed
)

// WebSocketSubscriber is a Subscriber backed by a WebSocket connection.
// A failed send marks it errored; later broadcasts skip it until the
// listener notices the disconnect and removes it.
type WebSocketSubscriber struct {
	id     string
	remote string
	conn   *websocket.Conn
	state  atomic.Int32
}

// NewWebSocketSubscriber wraps an accepted connection.
func NewWebSocketSubscriber(conn *websocket.Conn, remoteAddr string) *WebSocketSubscriber {
	return &WebSocketSubscriber{
		id:     ids.NewSubscriberID(),
		remote: remoteAddr,
		conn:   conn,
	}
}

func (s *WebSocketSubscriber) ID() string { return s.id }

func (s *WebSocketSubscriber) RemoteAddr() string { return s.remote }

func (s *WebSocketSubscriber) Open() bool { return s.state.Load() == stateOpen }

// Send writes data as one text message.
func (s *WebSocketSubscriber) Send(ctx context.Context, data []byte) error {
	if !s.Open() {
		return relayerrors.ErrSubscriberClosed
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.state.CompareAndSwap(stateOpen, stateErrored)
		return err
	}
	return nil
}

// Close closes the connection normally. Repeated calls are no-ops.
func (s *WebSocketSubscriber) Close() error {
	return s.closeWith(websocket.StatusNormalClosure, "")
}

// CloseGoingAway closes the connection telling the client the server is leaving.
func (s *WebSocketSubscriber) CloseGoingAway(reason string) error {
	return s.closeWith(websocket.StatusGoingAway, reason)
}

func (s *WebSocketSubscriber) closeWith(code websocket.StatusCode, reason string) error {
	if s.state.Swap(stateClosed) == stateClosed {
		return nil
	}
	return s.conn.Close(code, reason)
}
