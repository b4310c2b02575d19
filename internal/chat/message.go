package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Message is one immutable chat event. Two messages with the same EventID are
// the same logical event and collapse to one entry in a timeline.
type Message struct {
	EventID     string
	RoomID      string
	UserID      string
	DisplayName string
	Text        string
	Timestamp   time.Time
}

// wireMessage is the JSON shape shared by the history endpoint and the
// ChatMessage frame payload.
type wireMessage struct {
	EventID     string `json:"event_id"`
	Timestamp   string `json:"timestamp"`
	ChatID      string `json:"chat_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
}

// MarshalJSON encodes the timestamp as RFC3339 in UTC with second precision.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		EventID:     m.EventID,
		Timestamp:   m.Timestamp.UTC().Truncate(time.Second).Format(time.RFC3339),
		ChatID:      m.RoomID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Message:     m.Text,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, wire.Timestamp)
	if err != nil {
		return fmt.Errorf("bad timestamp %q: %w", wire.Timestamp, err)
	}
	*m = Message{
		EventID:     wire.EventID,
		RoomID:      wire.ChatID,
		UserID:      wire.UserID,
		DisplayName: wire.DisplayName,
		Text:        wire.Message,
		Timestamp:   ts,
	}
	return nil
}

// OutboundFrame is the client-to-server payload. The server fills in the
// event id, timestamp, room and user on receipt.
type OutboundFrame struct {
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
}

// frameEnvelope is the tagged-union envelope every server-to-client frame
// arrives in.
type frameEnvelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

const (
	frameTypeChatMessage = "ChatMessage"
	frameTypeError       = "Error"
)

// Frame is the closed set of inbound frame variants.
type Frame interface {
	isFrame()
}

// MessageFrame carries one live chat event.
type MessageFrame struct {
	Message Message
}

// ErrorFrame carries a server-reported error.
type ErrorFrame struct {
	Text string
}

func (MessageFrame) isFrame() {}
func (ErrorFrame) isFrame()   {}

// DecodeFrame parses one inbound frame. Every variant is matched explicitly;
// an unrecognized tag is a decode failure, never silently ignored.
func DecodeFrame(payload []byte) (Frame, error) {
	var envelope frameEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch envelope.Type {
	case frameTypeChatMessage:
		var msg Message
		if err := json.Unmarshal(envelope.Msg, &msg); err != nil {
			return nil, fmt.Errorf("malformed %s frame: %w", frameTypeChatMessage, err)
		}
		return MessageFrame{Message: msg}, nil
	case frameTypeError:
		var text string
		if err := json.Unmarshal(envelope.Msg, &text); err != nil {
			return nil, fmt.Errorf("malformed %s frame: %w", frameTypeError, err)
		}
		return ErrorFrame{Text: text}, nil
	default:
		return nil, fmt.Errorf("unrecognized frame type %q", envelope.Type)
	}
}

// EncodeMessageFrame builds a ChatMessage frame for the wire.
func EncodeMessageFrame(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frameEnvelope{Type: frameTypeChatMessage, Msg: payload})
}

// EncodeErrorFrame builds an Error frame for the wire.
func EncodeErrorFrame(text string) ([]byte, error) {
	payload, err := json.Marshal(text)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frameEnvelope{Type: frameTypeError, Msg: payload})
}

// decodeInbound rejects non-text websocket frames before attempting the
// tagged-union parse.
func decodeInbound(messageType int, payload []byte) (Frame, error) {
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("unexpected non-text frame (type %d)", messageType)
	}
	return DecodeFrame(payload)
}
