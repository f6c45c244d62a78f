package wppv1

// Session status values as sent on the wire.
const (
	StatusIdle          = "idle"
	StatusConnecting    = "connecting"
	StatusQR            = "qr"
	StatusAuthenticated = "authenticated"
	StatusConnected     = "connected"
	StatusDisconnected  = "disconnected"
	StatusFailed        = "failed"
	StatusShutdown      = "shutdown"
)

type GetStatusRequest struct{}

type ConnectRequest struct{}

type LogoutRequest struct{}

// SessionStatus describes the daemon's provider session.
type SessionStatus struct {
	Session         string `cbor:"session"`
	Status          string `cbor:"status"`
	Number          string `cbor:"number,omitempty"`
	Name            string `cbor:"name,omitempty"`
	QRCode          string `cbor:"qr_code,omitempty"`
	QRImage         string `cbor:"qr_image,omitempty"`
	QRGeneratedAtMs int64  `cbor:"qr_generated_at_ms,omitempty"`
	Ready           bool   `cbor:"ready"`
	ChatCount       int    `cbor:"chat_count"`
	MessageCount    int    `cbor:"message_count"`
	UptimeMs        int64  `cbor:"uptime_ms"`
}

// WatchEventsRequest selects event namespaces ("session.", "chat.", ...).
// An empty list subscribes to everything.
type WatchEventsRequest struct {
	Namespaces []string `cbor:"namespaces,omitempty"`
}

// Event is a daemon event pushed to watchers.
type Event struct {
	ID          string   `cbor:"id"`
	Kind        string   `cbor:"kind"`
	TimestampMs int64    `cbor:"timestamp_ms"`
	Status      string   `cbor:"status,omitempty"`
	QRCode      string   `cbor:"qr_code,omitempty"`
	QRImage     string   `cbor:"qr_image,omitempty"`
	ChatID      string   `cbor:"chat_id,omitempty"`
	Message     *Message `cbor:"message,omitempty"`
	Detail      string   `cbor:"detail,omitempty"`
}

type Media struct {
	Mime        string `cbor:"mime,omitempty"`
	Data        []byte `cbor:"data,omitempty"`
	Filename    string `cbor:"filename,omitempty"`
	Size        int64  `cbor:"size,omitempty"`
	DurationSec *int   `cbor:"duration_sec,omitempty"`
}

type Message struct {
	ID          string `cbor:"id"`
	ChatID      string `cbor:"chat_id"`
	Body        string `cbor:"body"`
	FromMe      bool   `cbor:"from_me"`
	SenderID    string `cbor:"sender_id,omitempty"`
	SenderName  string `cbor:"sender_name,omitempty"`
	TimestampMs int64  `cbor:"timestamp_ms"`
	Type        string `cbor:"type"`
	HasMedia    bool   `cbor:"has_media"`
	Ack         *int   `cbor:"ack,omitempty"`
	Media       *Media `cbor:"media,omitempty"`
}

type Chat struct {
	ID             string   `cbor:"id"`
	Name           string   `cbor:"name"`
	Number         string   `cbor:"number,omitempty"`
	IsGroup        bool     `cbor:"is_group"`
	UnreadCount    int      `cbor:"unread_count"`
	Archived       bool     `cbor:"archived"`
	Muted          bool     `cbor:"muted"`
	LastActivityMs int64    `cbor:"last_activity_ms,omitempty"`
	LastMessage    *Message `cbor:"last_message,omitempty"`
}

type ListChatsRequest struct{}

type ListChatsResponse struct {
	Chats []Chat `cbor:"chats"`
}

type GetChatRequest struct {
	ChatID string `cbor:"chat_id"`
}

type GetChatResponse struct {
	Chat         Chat `cbor:"chat"`
	MessageCount int  `cbor:"message_count"`
}

type GetMessagesRequest struct {
	ChatID string `cbor:"chat_id"`
	Limit  int    `cbor:"limit,omitempty"`
	Before string `cbor:"before,omitempty"`
}

type GetMessagesResponse struct {
	Messages []Message `cbor:"messages"`
	HasMore  bool      `cbor:"has_more"`
	Cursor   string    `cbor:"cursor,omitempty"`
}

type SendMessageRequest struct {
	To   string `cbor:"to"`
	Body string `cbor:"body"`
}

type SendMessageResponse struct {
	Message Message `cbor:"message"`
}

type MarkReadRequest struct {
	ChatID string `cbor:"chat_id"`
}

type MarkReadResponse struct{}

type SearchMessagesRequest struct {
	Query  string `cbor:"query"`
	ChatID string `cbor:"chat_id,omitempty"`
	Limit  int    `cbor:"limit,omitempty"`
}

type SearchResult struct {
	Message Message `cbor:"message"`
	Snippet string  `cbor:"snippet"`
}

type SearchMessagesResponse struct {
	Results []SearchResult `cbor:"results"`
}
