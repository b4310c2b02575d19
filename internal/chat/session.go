package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Misuse failures reported synchronously to Send callers. None of them
// mutates session state.
var (
	// ErrNotReady means the session is still connecting.
	ErrNotReady = errors.New("session not ready")
	// ErrClosed means the channel has closed.
	ErrClosed = errors.New("session closed")
	// ErrFailed means the session hit an unrecoverable fault.
	ErrFailed = errors.New("session failed")
	// ErrNoChannel means there is no live channel handle to write to.
	ErrNoChannel = errors.New("no active channel")
)

// Config carries the external endpoints a session needs. Endpoint is the
// base URL serving both the realtime and history surfaces, e.g.
// "http://127.0.0.1:8080".
type Config struct {
	Endpoint   string
	HTTPClient *http.Client      // optional; defaults to a short-timeout client
	Dialer     *websocket.Dialer // optional; defaults to websocket.DefaultDialer
}

// Session is one client's participation in one room. It backfills prior
// history, merges it with the live stream and republishes an immutable
// snapshot on every change. One session serves exactly one room.
//
// All state mutations are serialized through one mutex: the read loop and
// the history fetch run concurrently but deliver their completions one at a
// time, in arrival order. Subscriber callbacks run on the delivering
// goroutine after the lock is released, so a callback may read the snapshot
// or unsubscribe freely.
type Session struct {
	roomID      string
	userID      string
	displayName string

	mu             sync.Mutex
	phase          Phase
	channelOpen    bool
	historyLoaded  bool
	closeRequested bool
	released       bool
	err            error
	closeCode      int
	closeReason    string
	timeline       []Message
	channel        *realtimeChannel
	snapshot       Snapshot
	subscribers    []subscriber
	nextSubID      int
}

type subscriber struct {
	id     int
	notify func()
}

// NewSession joins a room. The returned session starts in PhaseConnecting
// with the channel dial and the history fetch already running concurrently.
// A construction failure (malformed endpoint, dial that cannot even start)
// surfaces as an Errored snapshot rather than an error return, so callers
// always observe failures the same way: through the next snapshot.
func NewSession(cfg Config, roomID, userID, displayName string) *Session {
	s := &Session{
		roomID:      roomID,
		userID:      userID,
		displayName: displayName,
		phase:       PhaseConnecting,
	}
	s.snapshot = Snapshot{Phase: PhaseConnecting, send: s.Send}

	wsURL, historyURL, err := endpointURLs(cfg.Endpoint, roomID, userID)
	if err != nil {
		s.mu.Lock()
		s.failLocked(fmt.Errorf("construct session: %w", err))
		s.mu.Unlock()
		return s
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	history := newHistoryClient(historyURL, cfg.HTTPClient)

	go s.dial(dialer, wsURL)
	go s.loadHistory(history)
	return s
}

// endpointURLs derives the websocket and history URLs from the configured
// base endpoint. http(s) and ws(s) schemes are both accepted.
func endpointURLs(endpoint, roomID, userID string) (wsURL, historyURL string, err error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", "", err
	}
	var wsScheme, httpScheme string
	switch parsed.Scheme {
	case "http", "ws":
		wsScheme, httpScheme = "ws", "http"
	case "https", "wss":
		wsScheme, httpScheme = "wss", "https"
	default:
		return "", "", fmt.Errorf("unsupported endpoint scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	base := *parsed
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	ws := base
	ws.Scheme = wsScheme
	ws.Path = "/chat/" + url.PathEscape(roomID) + "/" + url.PathEscape(userID)

	hist := base
	hist.Scheme = httpScheme
	hist.Path = "/history/" + url.PathEscape(roomID)

	return ws.String(), hist.String(), nil
}

// RoomID returns the room this session joined.
func (s *Session) RoomID() string { return s.roomID }

// UserID returns the joining user's id.
func (s *Session) UserID() string { return s.userID }

// DisplayName returns the name attached to outbound messages.
func (s *Session) DisplayName() string { return s.displayName }

// Snapshot returns the most recently published snapshot. It never blocks
// and is safe to call at any time, including before the first event.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Subscribe registers fn to run after every state change, in registration
// order. The returned function removes the subscription; once it returns no
// further notification is delivered.
func (s *Session) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, notify: fn})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Send submits one message. It is valid only in PhaseReady; every other
// phase yields its own failure so callers can tell "not yet" from "never
// again". There is no optimistic timeline update: the message appears only
// when the server echoes it back over the channel, so the timeline is
// always exactly what the transport confirmed.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	phase := s.phase
	ch := s.channel
	s.mu.Unlock()

	switch phase {
	case PhaseConnecting:
		return ErrNotReady
	case PhaseClosed:
		return ErrClosed
	case PhaseErrored:
		return ErrFailed
	}
	if ch == nil {
		return ErrNoChannel
	}
	return ch.send(s.displayName, text)
}

// Close requests channel closure. Idempotent: if the channel is already
// closing or closed this is a no-op. Close does not itself flip the phase;
// the session becomes PhaseClosed only when the channel reports its close
// event, so the channel stays the single source of truth for closure.
func (s *Session) Close() {
	s.mu.Lock()
	s.closeRequested = true
	ch := s.channel
	s.mu.Unlock()
	if ch != nil {
		ch.close()
	}
}

// Release destroys the session: it requests channel closure and detaches
// every subscriber synchronously. A history response that arrives after
// Release is discarded instead of mutating a dead session. The in-flight
// fetch itself is not cancelled at the transport level.
func (s *Session) Release() {
	s.mu.Lock()
	s.released = true
	s.closeRequested = true
	s.subscribers = nil
	ch := s.channel
	s.mu.Unlock()
	if ch != nil {
		ch.close()
	}
}

// dial runs the channel connection attempt. A dial failure is a
// construction failure: terminal, without waiting for history.
func (s *Session) dial(dialer *websocket.Dialer, wsURL string) {
	conn, resp, err := dialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.mu.Lock()
		if s.released || s.terminalLocked() {
			s.mu.Unlock()
			return
		}
		s.failLocked(fmt.Errorf("open channel: %w", err))
		subs := s.subscriberListLocked()
		s.mu.Unlock()
		s.deliver(subs)
		return
	}

	s.mu.Lock()
	if s.released || s.terminalLocked() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	ch := newRealtimeChannel(conn, s)
	s.channel = ch
	s.channelOpen = true
	closeNow := s.closeRequested
	s.recomputeLocked()
	s.publishLocked()
	subs := s.subscriberListLocked()
	s.mu.Unlock()

	go ch.readLoop()
	if closeNow {
		ch.close()
	}
	s.deliver(subs)
}

// loadHistory runs the one-shot backfill and splices the result into the
// accumulated timeline. This is where the full merge runs, exactly once.
func (s *Session) loadHistory(history *historyClient) {
	messages, err := history.load(context.Background())

	s.mu.Lock()
	if s.released || s.terminalLocked() {
		s.mu.Unlock()
		return
	}
	if err != nil {
		// a partial, un-reconcilable view is unsafe to call ready, even if
		// the channel is healthy.
		s.failLocked(fmt.Errorf("load history: %w", err))
	} else {
		s.timeline = mergeTimeline(s.timeline, messages)
		s.historyLoaded = true
		s.recomputeLocked()
		s.publishLocked()
	}
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	s.deliver(subs)
}

// handleChannelMessage appends one live message, deduplicating by event id
// against the existing timeline.
func (s *Session) handleChannelMessage(m Message) {
	s.mu.Lock()
	if s.released || s.terminalLocked() {
		s.mu.Unlock()
		return
	}
	timeline, changed := insertMessage(s.timeline, m)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.timeline = timeline
	s.publishLocked()
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	s.deliver(subs)
}

// handleChannelClosed records the close and flips the session to
// PhaseClosed. The channel guarantees this runs at most once.
func (s *Session) handleChannelClosed(code int, reason string) {
	s.mu.Lock()
	if s.released || s.terminalLocked() {
		s.mu.Unlock()
		return
	}
	s.closeCode = code
	s.closeReason = reason
	s.phase = PhaseClosed
	s.publishLocked()
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	s.deliver(subs)
}

// handleChannelError records an unrecoverable channel fault: protocol
// failures, server-reported errors and transport errors all land here.
func (s *Session) handleChannelError(err error) {
	s.mu.Lock()
	if s.released || s.terminalLocked() {
		s.mu.Unlock()
		return
	}
	s.failLocked(err)
	subs := s.subscriberListLocked()
	s.mu.Unlock()
	s.deliver(subs)
}

func (s *Session) terminalLocked() bool {
	return s.phase == PhaseClosed || s.phase == PhaseErrored
}

func (s *Session) failLocked(err error) {
	s.err = err
	s.phase = PhaseErrored
	s.publishLocked()
}

// recomputeLocked derives readiness from the two completion sub-flags.
// Channel-open and history-loaded are set independently and in no
// guaranteed order; readiness is a pure function of both, so either arrival
// order yields the same result.
func (s *Session) recomputeLocked() {
	if s.terminalLocked() {
		return
	}
	if s.channelOpen && s.historyLoaded {
		s.phase = PhaseReady
	} else {
		s.phase = PhaseConnecting
	}
}

// publishLocked freezes the current state into a fresh snapshot. The
// timeline slice is never mutated in place after being exposed, so the
// snapshot can share it.
func (s *Session) publishLocked() {
	s.snapshot = Snapshot{
		Phase:       s.phase,
		Timeline:    s.timeline,
		Err:         s.err,
		CloseCode:   s.closeCode,
		CloseReason: s.closeReason,
		send:        s.Send,
	}
}

func (s *Session) subscriberListLocked() []subscriber {
	if len(s.subscribers) == 0 {
		return nil
	}
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	return subs
}

// deliver invokes subscriber callbacks in registration order on the
// goroutine that processed the event. A subscriber that unsubscribed after
// the event was published is skipped, so unsubscribe guarantees no further
// delivery.
func (s *Session) deliver(subs []subscriber) {
	for _, sub := range subs {
		s.mu.Lock()
		alive := false
		for _, cur := range s.subscribers {
			if cur.id == sub.id {
				alive = true
				break
			}
		}
		s.mu.Unlock()
		if alive {
			sub.notify()
		}
	}
}
