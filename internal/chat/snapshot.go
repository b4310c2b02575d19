package chat

// Phase is the session lifecycle state.
type Phase int

const (
	// PhaseConnecting is the initial phase: the realtime channel is not yet
	// open or the history backfill has not resolved.
	PhaseConnecting Phase = iota
	// PhaseReady means the channel is open, history is loaded and no error
	// has occurred.
	PhaseReady
	// PhaseClosed is terminal: the channel closed, by either side.
	PhaseClosed
	// PhaseErrored is terminal: an unrecoverable fault occurred.
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseReady:
		return "ready"
	case PhaseClosed:
		return "closed"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time, immutable projection of a session. A new one
// is produced on every state change; old snapshots stay valid forever since
// they are never mutated. The zero Snapshot behaves like a pending session
// whose Send always fails with ErrNotReady.
type Snapshot struct {
	Phase       Phase
	Timeline    []Message
	Err         error
	CloseCode   int
	CloseReason string

	send func(text string) error
}

// Pending reports whether the session was still connecting.
func (s Snapshot) Pending() bool { return s.Phase == PhaseConnecting }

// Ready reports whether the session could accept sends.
func (s Snapshot) Ready() bool { return s.Phase == PhaseReady }

// Closed reports whether the channel had closed.
func (s Snapshot) Closed() bool { return s.Phase == PhaseClosed }

// Errored reports whether the session had failed.
func (s Snapshot) Errored() bool { return s.Phase == PhaseErrored }

// Send submits a message through the session this snapshot was taken from.
// The check runs against the session's current phase, not the snapshot's, so
// a stale snapshot cannot write through a channel that has since closed.
func (s Snapshot) Send(text string) error {
	if s.send == nil {
		return ErrNotReady
	}
	return s.send(text)
}
