package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrameChatMessage(t *testing.T) {
	payload := []byte(`{
		"type": "ChatMessage",
		"msg": {
			"event_id": "ev-1",
			"timestamp": "2026-03-01T12:00:00Z",
			"chat_id": "room-1",
			"user_id": "user-1",
			"display_name": "alice",
			"message": "hello"
		}
	}`)

	frame, err := DecodeFrame(payload)
	require.NoError(t, err)

	messageFrame, ok := frame.(MessageFrame)
	require.True(t, ok, "expected a MessageFrame, got %T", frame)
	require.Equal(t, "ev-1", messageFrame.Message.EventID)
	require.Equal(t, "room-1", messageFrame.Message.RoomID)
	require.Equal(t, "user-1", messageFrame.Message.UserID)
	require.Equal(t, "alice", messageFrame.Message.DisplayName)
	require.Equal(t, "hello", messageFrame.Message.Text)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), messageFrame.Message.Timestamp)
}

func TestDecodeFrameError(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"Error","msg":"boom"}`))
	require.NoError(t, err)

	errorFrame, ok := frame.(ErrorFrame)
	require.True(t, ok, "expected an ErrorFrame, got %T", frame)
	require.Equal(t, "boom", errorFrame.Text)
}

func TestDecodeFrameRejectsUnknownTag(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"Presence","msg":{}}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unrecognized frame type")
}

func TestDecodeFrameRejectsInvalidJSON(t *testing.T) {
	_, err := DecodeFrame([]byte(`{{nope`))
	require.Error(t, err)
}

func TestDecodeFrameRejectsBadTimestamp(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"ChatMessage","msg":{"event_id":"e","timestamp":"yesterday"}}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "timestamp")
}

func TestDecodeInboundRejectsBinaryFrames(t *testing.T) {
	_, err := decodeInbound(websocket.BinaryMessage, []byte(`{"type":"Error","msg":"x"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "non-text")
}

func TestMessageMarshalUsesWireNamesAndSecondPrecision(t *testing.T) {
	msg := Message{
		EventID:     "ev-1",
		RoomID:      "room-1",
		UserID:      "user-1",
		DisplayName: "alice",
		Text:        "hi",
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var wire map[string]string
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Equal(t, "ev-1", wire["event_id"])
	require.Equal(t, "room-1", wire["chat_id"])
	require.Equal(t, "user-1", wire["user_id"])
	require.Equal(t, "alice", wire["display_name"])
	require.Equal(t, "hi", wire["message"])
	require.Equal(t, "2026-03-01T12:00:00Z", wire["timestamp"])
}

func TestEncodeMessageFrameRoundTrip(t *testing.T) {
	msg := makeMessage("ev-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	data, err := EncodeMessageFrame(msg)
	require.NoError(t, err)

	frame, err := DecodeFrame(data)
	require.NoError(t, err)
	messageFrame, ok := frame.(MessageFrame)
	require.True(t, ok)
	require.Equal(t, msg, messageFrame.Message)
}
