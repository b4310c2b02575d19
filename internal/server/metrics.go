package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type Metrics struct {
	messages    atomic.Uint64
	history     atomic.Uint64
	activeConns atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncMessage() {
	m.messages.Add(1)
}

func (m *Metrics) IncHistory() {
	m.history.Add(1)
}

func (m *Metrics) IncConn() {
	m.activeConns.Add(1)
}

func (m *Metrics) DecConn() {
	m.activeConns.Add(-1)
}

func (m *Metrics) serveHTTP(w http.ResponseWriter, rooms, onlineUsers int) {
	payload := map[string]any{
		"messages_total":     m.messages.Load(),
		"history_requests":   m.history.Load(),
		"active_connections": m.activeConns.Load(),
		"rooms_total":        rooms,
		"online_users":       onlineUsers,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
