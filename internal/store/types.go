package store

import "time"

// Chat is the persisted form of a provider conversation. Zero
// LastActivity means unknown and is stored as NULL.
type Chat struct {
	ID           string
	Name         string
	Number       string
	IsGroup      bool
	UnreadCount  int
	Archived     bool
	Muted        bool
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChatPatch is a partial chat update. Nil fields are left untouched.
type ChatPatch struct {
	LastActivity *time.Time
	UnreadCount  *int
}

// Media is an attachment inlined on a message.
type Media struct {
	Mime     string
	Data     []byte
	Filename string
	Size     int64
	Duration *int // seconds
}

// Message is a persisted message. Once written it is never updated.
type Message struct {
	ID         string
	ChatID     string
	Body       string
	FromMe     bool
	SenderID   string
	SenderName string
	Timestamp  time.Time
	Type       string
	HasMedia   bool
	Ack        *int
	Media      *Media
	CreatedAt  time.Time
}

// Order selects the timestamp direction of a message listing.
type Order int

const (
	Descending Order = iota
	Ascending
)

// Page selects a window of a chat's messages. Before is a message id;
// when set only messages strictly older than it are returned.
type Page struct {
	Limit  int
	Before string
	Order  Order
}

// SearchResult holds a message matched by SearchMessages.
type SearchResult struct {
	Message Message
	Snippet string
}
