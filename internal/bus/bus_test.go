package bus

import (
	"testing"
	"time"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case evt := <-sub.C:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case evt := <-sub.C:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe(10, "session.")
	defer sub.Close()

	b.Publish(Event{Kind: KindStatusChanged, Timestamp: time.Now(), Payload: "test"})

	if evt := receive(t, sub); evt.Kind != KindStatusChanged {
		t.Errorf("got kind %q, want %s", evt.Kind, KindStatusChanged)
	}
}

func TestNamespaceFiltering(t *testing.T) {
	tests := []struct {
		name       string
		namespaces []string
		want       []string
	}{
		{"single", []string{"sync."}, []string{KindSyncCompleted}},
		{"several", []string{"chat.", "message."}, []string{KindChatUpdated, KindMessageStored}},
		{"exact kind", []string{KindQR}, []string{KindQR}},
		{"everything", nil, []string{KindStatusChanged, KindQR, KindChatUpdated, KindMessageStored, KindSyncCompleted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			sub := b.Subscribe(10, tt.namespaces...)
			defer sub.Close()

			for _, k := range []string{KindStatusChanged, KindQR, KindChatUpdated, KindMessageStored, KindSyncCompleted} {
				b.Publish(Event{Kind: k})
			}
			for _, want := range tt.want {
				if evt := receive(t, sub); evt.Kind != want {
					t.Errorf("got %q, want %q", evt.Kind, want)
				}
			}
			assertQuiet(t, sub)
		})
	}
}

func TestClose(t *testing.T) {
	b := New()
	sub := b.Subscribe(10, "session.")
	sub.Close()

	b.Publish(Event{Kind: KindStatusChanged})

	select {
	case evt, ok := <-sub.C:
		if ok {
			t.Errorf("received event after close: %v", evt)
		}
	case <-time.After(50 * time.Millisecond):
		t.Error("channel not closed")
	}

	// Second call must not panic on the closed channel.
	sub.Close()
}

func TestPublishStampsID(t *testing.T) {
	b := New()
	sub := b.Subscribe(2, "chat.")
	defer sub.Close()

	b.Publish(Event{Kind: KindChatUpdated})
	b.Publish(Event{Kind: KindChatUpdated, ID: "fixed"})

	first, second := receive(t, sub), receive(t, sub)
	if first.ID == "" {
		t.Error("missing generated id")
	}
	if second.ID != "fixed" {
		t.Errorf("id = %q, want fixed", second.ID)
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	sub := b.Subscribe(1, "chat.")
	defer sub.Close()

	b.Publish(Event{Kind: KindChatUpdated, ID: "one"})
	b.Publish(Event{Kind: KindChatUpdated, ID: "two"})
	b.Publish(Event{Kind: KindSyncCompleted}) // not matching, not counted

	if evt := receive(t, sub); evt.ID != "one" {
		t.Errorf("got %q, want one", evt.ID)
	}
	if got := sub.Dropped(); got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}
