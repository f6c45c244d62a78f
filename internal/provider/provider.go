// Package provider defines the boundary between the bridge and the
// external chat provider session.
package provider

import (
	"context"
	"time"
)

// Client is a single provider session. A Client is never reused after
// Close; the lifecycle builds a new one through a Factory instead.
type Client interface {
	// Connect starts the session. QR, authentication and readiness are
	// reported asynchronously on Events.
	Connect(ctx context.Context) error
	// Reachable reports whether the session is connected and usable.
	Reachable(ctx context.Context) bool
	Logout(ctx context.Context) error
	// Close disconnects and closes the Events channel.
	Close()
	Events() <-chan Event

	// Self returns the authenticated identity, zero before ready.
	Self() Identity

	ListChats(ctx context.Context) ([]Chat, error)
	// GetChat returns common.ErrNotFound for unknown chats.
	GetChat(ctx context.Context, id string) (*Chat, error)
	// FetchMessages returns at most limit of the chat's most recent
	// messages. Order is unspecified.
	FetchMessages(ctx context.Context, chatID string, limit int) ([]Message, error)
	MarkSeen(ctx context.Context, chatID string) error
	Contact(ctx context.Context, id string) (Contact, error)
	DownloadMedia(ctx context.Context, msg Message) (*Media, error)
	SendText(ctx context.Context, chatID, body string) (*Message, error)
}

// Factory builds a fresh Client for a new connection context.
type Factory func(ctx context.Context) (Client, error)

// Identity is the authenticated account of a session.
type Identity struct {
	ID     string
	Number string
	Name   string
}

// Chat is a provider conversation as reported by the session.
type Chat struct {
	ID           string
	Name         string
	IsGroup      bool
	UnreadCount  int
	Archived     bool
	Muted        bool
	LastActivity time.Time // zero when unknown
}

// Message is a provider message. Ack and Raw are provider-shaped.
type Message struct {
	ID        string
	ChatID    string
	Body      string
	FromMe    bool
	Sender    string // raw sender/author id, empty when unknown
	Timestamp time.Time
	Type      string
	HasMedia  bool
	Ack       any
	Raw       any
}

// Media is a downloaded attachment. Duration keeps the provider's raw
// value; see media.NormalizeDuration.
type Media struct {
	Mime     string
	Data     []byte
	Filename string
	Size     int64
	Duration any
}

// Contact is the provider's view of a counterpart.
type Contact struct {
	PushName string
	Name     string
	Number   string
}

// EventKind enumerates what a Client reports on its Events channel.
type EventKind int

const (
	EventQR EventKind = iota + 1
	EventAuthenticated
	EventReady
	EventDisconnected
	EventAuthFailure
	EventMessage
	EventHistorySynced
)

var eventKindNames = map[EventKind]string{
	EventQR:            "qr",
	EventAuthenticated: "authenticated",
	EventReady:         "ready",
	EventDisconnected:  "disconnected",
	EventAuthFailure:   "auth_failure",
	EventMessage:       "message",
	EventHistorySynced: "history_synced",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is a single provider notification. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind    EventKind
	Code    string   // EventQR
	Reason  string   // EventDisconnected, EventAuthFailure
	Message *Message // EventMessage
	ChatIDs []string // EventHistorySynced
}
