// Package bus fans bridge events out to in-process subscribers.
package bus

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Bus is an in-process publish/subscribe event bus with namespace
// filtering. Publish never blocks: a subscriber whose buffer is full
// misses the event and has it counted in Dropped.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription receives the events of a Subscribe call on C.
type Subscription struct {
	C <-chan Event

	ch         chan Event
	namespaces []string
	dropped    atomic.Uint64
	bus        *Bus
	once       sync.Once
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish delivers evt to every subscription with a namespace that
// prefixes evt.Kind. Events without an ID are stamped with a random one.
func (b *Bus) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.wants(evt.Kind) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Subscribe registers for events whose kind starts with any of namespaces;
// none means every event. bufSize is the channel buffer.
func (b *Bus) Subscribe(bufSize int, namespaces ...string) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch, namespaces: namespaces, bus: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (s *Subscription) wants(kind string) bool {
	if len(s.namespaces) == 0 {
		return true
	}
	for _, ns := range s.namespaces {
		if strings.HasPrefix(kind, ns) {
			return true
		}
	}
	return false
}

// Dropped returns how many matching events were lost to a full buffer.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
