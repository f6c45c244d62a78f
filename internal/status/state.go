package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wppbridge/internal/bus"
)

// State is the connection status exposed to callers.
type State string

const (
	Idle          State = "idle"
	Connecting    State = "connecting"
	QR            State = "qr"
	Authenticated State = "authenticated"
	Connected     State = "connected"
	Disconnected  State = "disconnected"
	Failed        State = "failed"
	Shutdown      State = "shutdown"
)

// validTransitions lists the forward edges of each state. Every
// non-terminal state may additionally move to Disconnected, Failed or
// Shutdown; see Allowed.
var validTransitions = map[State][]State{
	Idle:          {Connecting},
	Connecting:    {QR, Authenticated, Connected},
	QR:            {QR, Authenticated, Connected},
	Authenticated: {Connected},
	Connected:     nil,
	Disconnected:  {Connecting},
	Failed:        {Connecting},
	Shutdown:      nil,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == Shutdown }

// Live reports whether s represents an attached provider session.
func (s State) Live() bool {
	switch s {
	case Connecting, QR, Authenticated, Connected:
		return true
	}
	return false
}

// Allowed reports whether from -> to is a legal transition.
func Allowed(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case Failed, Shutdown:
		return true
	case Disconnected:
		return from != Disconnected
	}
	return slices.Contains(validTransitions[from], to)
}

// Machine tracks and enforces connection state transitions. It outlives
// individual connection contexts so a recreated context resumes from
// Disconnected or Failed.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
	now     func() time.Time
}

// NewMachine creates a new state machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
		now:     time.Now,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !Allowed(m.current, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: m.now(),
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
