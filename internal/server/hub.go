package server

import "sync"

// Hub holds every room the process has ever seen. Rooms are created when the
// first client joins and live for the rest of the process, so a room's
// history stays servable after its last client leaves.
type Hub struct {
	mutex sync.RWMutex
	rooms map[string]*Room
}

// NewHub builds an empty hub ready to serve websocket requests.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

// getOrCreateRoom ensures there is a live Room for the given id.
func (hub *Hub) getOrCreateRoom(roomID string) *Room {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if room, exists := hub.rooms[roomID]; exists {
		return room
	}
	room := newRoom(roomID)
	hub.rooms[roomID] = room
	go room.run()
	return room
}

// getRoom retrieves a room by id (may return nil).
func (hub *Hub) getRoom(roomID string) *Room {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return hub.rooms[roomID]
}

func (hub *Hub) roomCount() int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.rooms)
}
