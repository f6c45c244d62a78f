package bus

import "time"

// Event kinds published by the bridge. Subscribers filter by prefix, so
// "session." matches every session event.
const (
	KindStatusChanged = "session.status_changed"
	KindQR            = "session.qr"
	KindChatUpdated   = "chat.updated"
	KindMessageStored = "message.stored"
	KindSyncCompleted = "sync.completed"
	KindSyncFailed    = "sync.failed"

	// KindWatchLagged is never published on the bus; streaming watchers
	// emit it when their subscription dropped events.
	KindWatchLagged = "watch.lagged"
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}
