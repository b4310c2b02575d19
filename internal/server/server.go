package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// all origins are allowed; tighten this if the server is exposed
		// publicly.
		return true
	},
}

// Server ties the hub to its HTTP surface: the websocket join endpoint, the
// history backfill endpoint and the metrics endpoint.
type Server struct {
	hub      *Hub
	metrics  *Metrics
	presence *PresenceTracker
}

func New() *Server {
	return &Server{
		hub:      NewHub(),
		metrics:  NewMetrics(),
		presence: NewPresenceTracker(),
	}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/", s.HandleChat)
	mux.HandleFunc("/history/", s.HandleHistory)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", s.HandleHealth)
	return mux
}

// HandleChat upgrades GET /chat/{roomId}/{userId} and joins the room,
// creating it on first join.
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	roomID, userID, err := parseChatPath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}

	room := s.hub.getOrCreateRoom(roomID)
	s.metrics.IncConn()
	s.presence.Increment(userID)
	c := newClient(room, conn, userID, s.metrics.IncMessage, func() {
		s.metrics.DecConn()
		s.presence.Decrement(userID)
	})
	room.register <- c

	go c.writePump()
	go c.readPump()
}

// HandleHistory serves GET /history/{roomId}: the room's full message log,
// or 404 when nobody has ever joined the room.
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	roomID, err := parseHistoryPath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	room := s.hub.getRoom(roomID)
	if room == nil {
		writeError(w, http.StatusNotFound, errors.New("unknown room"))
		return
	}
	s.metrics.IncHistory()
	writeJSON(w, http.StatusOK, room.History())
}

func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.serveHTTP(w, s.hub.roomCount(), s.presence.ActiveCount())
}

func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func parseChatPath(path string) (roomID, userID string, err error) {
	parts := strings.Split(strings.TrimPrefix(path, "/chat/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("expected /chat/{roomId}/{userId}")
	}
	roomID, err = url.PathUnescape(parts[0])
	if err != nil {
		return "", "", err
	}
	userID, err = url.PathUnescape(parts[1])
	if err != nil {
		return "", "", err
	}
	return roomID, userID, nil
}

func parseHistoryPath(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/history/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return "", errors.New("expected /history/{roomId}")
	}
	return url.PathUnescape(trimmed)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
