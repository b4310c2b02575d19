package server

import (
	"bytes"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livechat/internal/chat"
)

// Room is one chat room: its connected clients plus the ordered history of
// every message ever posted to it.
type Room struct {
	id         string
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	post       chan chat.Message
	mutex      sync.RWMutex

	historyMutex sync.RWMutex
	history      []chat.Message
}

func newRoom(id string) *Room {
	return &Room{
		id:         id,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		post:       make(chan chat.Message, 256),
		history:    make([]chat.Message, 0),
	}
}

// History returns a copy of the room's accumulated messages in post order.
func (room *Room) History() []chat.Message {
	room.historyMutex.RLock()
	defer room.historyMutex.RUnlock()
	out := make([]chat.Message, len(room.history))
	copy(out, room.history)
	return out
}

func (room *Room) appendHistory(message chat.Message) {
	room.historyMutex.Lock()
	defer room.historyMutex.Unlock()
	room.history = append(room.history, message)
}

func (room *Room) run() {
	for {
		select {
		case c := <-room.register:
			room.mutex.Lock()
			room.clients[c] = true
			room.mutex.Unlock()
		case c := <-room.unregister:
			room.mutex.Lock()
			if _, exists := room.clients[c]; exists {
				delete(room.clients, c)
				close(c.send)
			}
			room.mutex.Unlock()
		case message := <-room.post:
			// history first, then fan-out, so a client connecting between the
			// two sees the message at least once.
			room.appendHistory(message)
			payload, err := chat.EncodeMessageFrame(message)
			if err != nil {
				log.Printf("room %s: encode frame: %v", room.id, err)
				continue
			}
			// broadcast to every connected client. If a client can't keep up
			// we close its send channel, which triggers cleanup in writePump.
			room.mutex.Lock()
			for c := range room.clients {
				select {
				case c.send <- payload:
				default:
					close(c.send)
					delete(room.clients, c)
				}
			}
			room.mutex.Unlock()
		}
	}
}

type client struct {
	room         *Room
	conn         *websocket.Conn
	send         chan []byte
	userID       string
	onMessage    func()
	onDisconnect func()
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8192
)

func newClient(room *Room, conn *websocket.Conn, userID string, onMessage, onDisconnect func()) *client {
	return &client{
		room:         room,
		conn:         conn,
		send:         make(chan []byte, 256),
		userID:       userID,
		onMessage:    onMessage,
		onDisconnect: onDisconnect,
	}
}

func (c *client) readPump() {
	defer func() {
		c.room.unregister <- c
		c.conn.Close()
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
	}()
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			// read error ends the loop so the deferred cleanup can fire.
			break
		}
		outbound, err := decodeOutbound(payload)
		if err != nil {
			// a malformed frame earns only its sender an error; nothing is
			// broadcast or recorded.
			c.notifyError("invalid message: " + err.Error())
			continue
		}
		if c.onMessage != nil {
			c.onMessage()
		}
		c.room.post <- chat.Message{
			EventID:     uuid.NewString(),
			RoomID:      c.room.id,
			UserID:      c.userID,
			DisplayName: outbound.DisplayName,
			Text:        outbound.Message,
			Timestamp:   time.Now().UTC().Truncate(time.Second),
		}
	}
}

func decodeOutbound(payload []byte) (chat.OutboundFrame, error) {
	var frame chat.OutboundFrame
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&frame); err != nil {
		return chat.OutboundFrame{}, err
	}
	return frame, nil
}

// notifyError sends an Error frame to this client only. Dropped if the
// client's buffer is full; the slow-consumer policy will catch up with it.
func (c *client) notifyError(text string) {
	payload, err := chat.EncodeErrorFrame(text)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
