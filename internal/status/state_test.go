package status

import (
	"testing"

	"github.com/matheus3301/wppbridge/internal/bus"
)

var all = []State{Idle, Connecting, QR, Authenticated, Connected, Disconnected, Failed, Shutdown}

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want idle", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Connecting},
		{Connecting, QR},
		{Connecting, Authenticated},
		{Connecting, Connected},
		{QR, QR},
		{QR, Authenticated},
		{QR, Connected},
		{Authenticated, Connected},
		{Connected, Disconnected},
		{Disconnected, Connecting},
		{Failed, Connecting},
		{Idle, Failed},
		{Connected, Shutdown},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if !Allowed(tt.from, tt.to) {
				t.Errorf("Allowed(%s, %s) = false", tt.from, tt.to)
			}
		})
	}
}

func TestConnectingSuccessors(t *testing.T) {
	want := map[State]bool{QR: true, Authenticated: true, Connected: true, Failed: true, Disconnected: true, Shutdown: true}
	for _, to := range all {
		if got := Allowed(Connecting, to); got != want[to] {
			t.Errorf("Allowed(connecting, %s) = %v, want %v", to, got, want[to])
		}
	}
}

func TestDisconnectedReachableFromEveryNonTerminal(t *testing.T) {
	for _, from := range all {
		if from == Shutdown || from == Disconnected {
			continue
		}
		if !Allowed(from, Disconnected) {
			t.Errorf("Allowed(%s, disconnected) = false", from)
		}
	}
	if !Allowed(Disconnected, Connecting) {
		t.Error("disconnected must lead back to connecting")
	}
}

func TestShutdownIsTerminal(t *testing.T) {
	for _, to := range all {
		if Allowed(Shutdown, to) {
			t.Errorf("Allowed(shutdown, %s) = true", to)
		}
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(idle -> connected) should fail")
	}
	if m.Current() != Idle {
		t.Errorf("state changed on rejected transition: %s", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe(10, "session.")
	defer sub.Close()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-sub.C:
		if evt.Kind != bus.KindStatusChanged {
			t.Errorf("kind = %s", evt.Kind)
		}
		sc, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type = %T", evt.Payload)
		}
		if sc.From != Idle || sc.To != Connecting {
			t.Errorf("change = %+v", sc)
		}
	default:
		t.Error("no event published")
	}
}
