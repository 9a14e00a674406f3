package orchestrator

import "sync"

// Speed multiplier bounds. Higher values slow the conversation down;
// 6x is a very deliberate, contemplative pace.
const (
	minSpeedMultiplier = 0.5
	maxSpeedMultiplier = 6.0
)

// Conn is one live client connection. Send must be safe for
// concurrent use; a non-nil error evicts the connection from its room.
type Conn interface {
	Send(Event) error
}

// Room is the shared runtime state for one conversation: the live
// connection set, the typing-thinker set, and the speed multiplier.
// Activity is derived, never set: a room is active iff it has
// connections. The room mutex is the only lock in the orchestrator
// core; agents only observe the room between their own suspension
// points.
type Room struct {
	conversationID string

	mu     sync.Mutex
	conns  map[Conn]struct{}
	typing map[string]struct{}
	speed  float64
}

func newRoom(conversationID string) *Room {
	return &Room{
		conversationID: conversationID,
		conns:          make(map[Conn]struct{}),
		typing:         make(map[string]struct{}),
		speed:          1.0,
	}
}

// IsActive reports whether any client is connected. Agents poll this
// every cycle; it is the core backpressure mechanism, since no LLM
// call happens while the room is empty.
func (r *Room) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns) > 0
}

// AddConn registers a connection with the room.
func (r *Room) AddConn(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

// RemoveConn drops a connection from the room.
func (r *Room) RemoveConn(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
}

// Speed returns the current speed multiplier.
func (r *Room) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// SetSpeed clamps the multiplier to [0.5, 6.0], stores it, and
// notifies every client. Returns the clamped value.
func (r *Room) SetSpeed(multiplier float64) float64 {
	if multiplier < minSpeedMultiplier {
		multiplier = minSpeedMultiplier
	}
	if multiplier > maxSpeedMultiplier {
		multiplier = maxSpeedMultiplier
	}

	r.mu.Lock()
	r.speed = multiplier
	r.mu.Unlock()

	r.Broadcast(SpeedChangedEvent{
		ConversationID:  r.conversationID,
		SpeedMultiplier: multiplier,
	})
	return multiplier
}

// Broadcast delivers an event to every connection. Connections whose
// Send fails are silently evicted; broadcast itself never fails.
func (r *Room) Broadcast(event Event) {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	var dead []Conn
	for _, c := range conns {
		if err := c.Send(event); err != nil {
			dead = append(dead, c)
		}
	}

	if len(dead) > 0 {
		r.mu.Lock()
		for _, c := range dead {
			delete(r.conns, c)
		}
		r.mu.Unlock()
	}
}

// TypingStart marks a thinker as typing and notifies clients. The set
// mutation is idempotent; the notification is sent regardless.
func (r *Room) TypingStart(thinkerName string) {
	r.mu.Lock()
	r.typing[thinkerName] = struct{}{}
	r.mu.Unlock()

	r.Broadcast(ThinkerTypingEvent{
		ConversationID: r.conversationID,
		ThinkerName:    thinkerName,
	})
}

// TypingStop clears a thinker's typing state and notifies clients.
// Stopping a thinker that never started is not an error.
func (r *Room) TypingStop(thinkerName string) {
	r.mu.Lock()
	delete(r.typing, thinkerName)
	r.mu.Unlock()

	r.Broadcast(ThinkerStoppedTypingEvent{
		ConversationID: r.conversationID,
		ThinkerName:    thinkerName,
	})
}

// clearTyping drops a thinker's typing entry without notifying
// clients. Used on cancellation paths, where broadcasting after stop
// is forbidden but a stale entry must not linger.
func (r *Room) clearTyping(thinkerName string) {
	r.mu.Lock()
	delete(r.typing, thinkerName)
	r.mu.Unlock()
}

// TypingThinkers returns a snapshot of thinkers currently typing.
func (r *Room) TypingThinkers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.typing))
	for name := range r.typing {
		names = append(names, name)
	}
	return names
}
