package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// realtimeChannel owns the websocket for one session. The session owns the
// channel exclusively; its lifetime is bounded by the session's. All inbound
// traffic is decoded on the read loop and handed to the session one event at
// a time, so the session never sees two channel events concurrently.
type realtimeChannel struct {
	conn    *websocket.Conn
	session *Session

	writeMu sync.Mutex

	mu      sync.Mutex
	closing bool

	closeOnce  sync.Once
	detachOnce sync.Once
}

func newRealtimeChannel(conn *websocket.Conn, session *Session) *realtimeChannel {
	return &realtimeChannel{conn: conn, session: session}
}

// readLoop decodes inbound frames until the connection ends. Every exit path
// delivers exactly one terminal event (close or error) to the session.
func (ch *realtimeChannel) readLoop() {
	defer ch.conn.Close()
	for {
		messageType, payload, err := ch.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				ch.finish(closeErr.Code, closeErr.Text)
			case ch.isClosing():
				// we tore the connection down ourselves after requesting
				// closure, so the read error is the expected local close.
				ch.finish(websocket.CloseNormalClosure, "")
			default:
				ch.fail(fmt.Errorf("channel transport: %w", err))
			}
			return
		}
		frame, err := decodeInbound(messageType, payload)
		if err != nil {
			ch.fail(fmt.Errorf("protocol: %w", err))
			return
		}
		switch f := frame.(type) {
		case MessageFrame:
			ch.session.handleChannelMessage(f.Message)
		case ErrorFrame:
			ch.fail(fmt.Errorf("server error: %s", f.Text))
			return
		}
	}
}

// send serializes one outbound frame and writes it. Sending through a
// channel whose closure was requested is a caller error, never silently
// dropped or buffered.
func (ch *realtimeChannel) send(displayName, text string) error {
	ch.mu.Lock()
	closing := ch.closing
	ch.mu.Unlock()
	if closing {
		return ErrClosed
	}
	payload, err := json.Marshal(OutboundFrame{DisplayName: displayName, Message: text})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	if err := ch.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// close requests a graceful shutdown. Safe to call repeatedly; only the
// first call writes the close frame. The session's phase changes when the
// read loop reports the close, keeping a single source of truth for closure.
func (ch *realtimeChannel) close() {
	ch.closeOnce.Do(func() {
		ch.mu.Lock()
		ch.closing = true
		ch.mu.Unlock()
		ch.writeMu.Lock()
		_ = ch.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		ch.writeMu.Unlock()
		_ = ch.conn.Close()
	})
}

func (ch *realtimeChannel) isClosing() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closing
}

// finish reports the close event upstream exactly once, regardless of
// whether closure was initiated locally or remotely.
func (ch *realtimeChannel) finish(code int, reason string) {
	ch.detachOnce.Do(func() {
		ch.session.handleChannelClosed(code, reason)
	})
}

// fail reports an unrecoverable channel fault upstream exactly once.
func (ch *realtimeChannel) fail(err error) {
	ch.detachOnce.Do(func() {
		ch.session.handleChannelError(err)
	})
}
