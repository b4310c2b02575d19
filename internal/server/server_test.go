package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"livechat/internal/chat"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New().Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID, userID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/" + roomID + "/" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, displayName, text string) {
	t.Helper()
	payload, err := json.Marshal(chat.OutboundFrame{DisplayName: displayName, Message: text})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func readFrame(t *testing.T, conn *websocket.Conn) chat.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := chat.DecodeFrame(payload)
	require.NoError(t, err)
	return frame
}

func fetchHistory(t *testing.T, srv *httptest.Server, roomID string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + "/history/" + roomID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHistoryUnknownRoom(t *testing.T) {
	srv := newTestServer(t)

	resp := fetchHistory(t, srv, "never-joined")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "unknown room", body["error"])
}

func TestJoinCreatesRoomAndRecordsHistory(t *testing.T) {
	srv := newTestServer(t)
	conn := dialRoom(t, srv, "room-1", "user-1")

	// joining alone is enough to create the room.
	resp := fetchHistory(t, srv, "room-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sendText(t, conn, "alice", "hello")

	frame := readFrame(t, conn)
	messageFrame, ok := frame.(chat.MessageFrame)
	require.True(t, ok, "expected a MessageFrame, got %T", frame)
	echo := messageFrame.Message
	require.NotEmpty(t, echo.EventID)
	require.Equal(t, "room-1", echo.RoomID)
	require.Equal(t, "user-1", echo.UserID)
	require.Equal(t, "alice", echo.DisplayName)
	require.Equal(t, "hello", echo.Text)
	require.Equal(t, echo.Timestamp, echo.Timestamp.Truncate(time.Second))

	resp = fetchHistory(t, srv, "room-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []chat.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Equal(t, []chat.Message{echo}, history)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	srv := newTestServer(t)
	alice := dialRoom(t, srv, "room-1", "user-a")
	bob := dialRoom(t, srv, "room-1", "user-b")

	sendText(t, alice, "alice", "hi bob")

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, conn)
		messageFrame, ok := frame.(chat.MessageFrame)
		require.True(t, ok)
		require.Equal(t, "hi bob", messageFrame.Message.Text)
		require.Equal(t, "user-a", messageFrame.Message.UserID)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	srv := newTestServer(t)
	alice := dialRoom(t, srv, "room-1", "user-a")
	outsider := dialRoom(t, srv, "room-2", "user-b")

	sendText(t, alice, "alice", "room one only")
	readFrame(t, alice)

	require.NoError(t, outsider.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := outsider.ReadMessage()
	require.Error(t, err, "expected no frame in the other room")
}

func TestMalformedFrameEarnsErrorFrameOnly(t *testing.T) {
	srv := newTestServer(t)
	alice := dialRoom(t, srv, "room-1", "user-a")
	bob := dialRoom(t, srv, "room-1", "user-b")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"unexpected":"shape"}`)))

	frame := readFrame(t, alice)
	errorFrame, ok := frame.(chat.ErrorFrame)
	require.True(t, ok, "expected an ErrorFrame, got %T", frame)
	require.Contains(t, errorFrame.Text, "invalid message")

	// nothing was broadcast or recorded.
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	require.Error(t, err)

	resp := fetchHistory(t, srv, "room-1")
	var history []chat.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Empty(t, history)
}

func TestChatPathValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/chat/only-a-room")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryPathValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/history/room/extra")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsReportActivity(t *testing.T) {
	srv := newTestServer(t)
	conn := dialRoom(t, srv, "room-1", "user-1")
	sendText(t, conn, "alice", "hello")
	readFrame(t, conn)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, float64(1), payload["messages_total"])
	require.Equal(t, float64(1), payload["rooms_total"])
	require.Equal(t, float64(1), payload["active_connections"])
	require.Equal(t, float64(1), payload["online_users"])
}
