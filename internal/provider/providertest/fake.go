// Package providertest provides an in-memory provider.Client for tests.
package providertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/wppbridge/internal/common"
	"github.com/matheus3301/wppbridge/internal/provider"
)

// Fake is a scriptable provider.Client. Tests populate Chats, Messages,
// Contacts and MediaByID, set the *Err fields to inject failures, and
// drive the lifecycle with Emit.
type Fake struct {
	mu sync.Mutex

	Identity  provider.Identity
	Chats     map[string]provider.Chat
	Messages  map[string][]provider.Message
	Contacts  map[string]provider.Contact
	MediaByID map[string]*provider.Media

	Online bool

	ConnectErr  error
	LogoutErr   error
	SendErr     error
	DownloadErr error
	ListErr     error

	ConnectCalls  int
	LogoutCalls   int
	DownloadCalls int
	FetchCalls    int
	Closed        bool
	Sent          []provider.Message
	Seen          []string

	events chan provider.Event
	seq    int
	now    func() time.Time
}

// New returns an empty Fake with a buffered event channel.
func New() *Fake {
	return &Fake{
		Chats:     make(map[string]provider.Chat),
		Messages:  make(map[string][]provider.Message),
		Contacts:  make(map[string]provider.Contact),
		MediaByID: make(map[string]*provider.Media),
		events:    make(chan provider.Event, 64),
		now:       time.Now,
	}
}

// WithClock makes SendText stamp messages using now.
func (f *Fake) WithClock(now func() time.Time) *Fake {
	f.now = now
	return f
}

// Emit delivers an event as if the provider produced it. It is a no-op
// once the fake is closed.
func (f *Fake) Emit(evt provider.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return
	}
	f.events <- evt
}

// AddChat registers a chat and its messages.
func (f *Fake) AddChat(c provider.Chat, msgs ...provider.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Chats[c.ID] = c
	f.Messages[c.ID] = append(f.Messages[c.ID], msgs...)
}

func (f *Fake) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	return f.ConnectErr
}

func (f *Fake) Reachable(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Online && !f.Closed
}

func (f *Fake) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	return f.LogoutErr
}

func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return
	}
	f.Closed = true
	close(f.events)
}

func (f *Fake) Events() <-chan provider.Event { return f.events }

func (f *Fake) Self() provider.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Identity
}

func (f *Fake) ListChats(context.Context) ([]provider.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]provider.Chat, 0, len(f.Chats))
	for _, c := range f.Chats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) GetChat(_ context.Context, id string) (*provider.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", id, common.ErrNotFound)
	}
	return &c, nil
}

func (f *Fake) FetchMessages(_ context.Context, chatID string, limit int) ([]provider.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	msgs := f.Messages[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]provider.Message(nil), msgs...), nil
}

func (f *Fake) MarkSeen(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Seen = append(f.Seen, chatID)
	if c, ok := f.Chats[chatID]; ok {
		c.UnreadCount = 0
		f.Chats[chatID] = c
	}
	return nil
}

func (f *Fake) Contact(_ context.Context, id string) (provider.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Contacts[id]
	if !ok {
		return provider.Contact{}, fmt.Errorf("contact %s: %w", id, common.ErrNotFound)
	}
	return c, nil
}

func (f *Fake) DownloadMedia(_ context.Context, msg provider.Message) (*provider.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DownloadCalls++
	if f.DownloadErr != nil {
		return nil, f.DownloadErr
	}
	m, ok := f.MediaByID[msg.ID]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", msg.ID, common.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (f *Fake) SendText(_ context.Context, chatID, body string) (*provider.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.seq++
	msg := provider.Message{
		ID:        fmt.Sprintf("sent-%d", f.seq),
		ChatID:    chatID,
		Body:      body,
		FromMe:    true,
		Sender:    f.Identity.ID,
		Timestamp: f.now(),
		Type:      "text",
	}
	f.Sent = append(f.Sent, msg)
	if _, ok := f.Chats[chatID]; !ok {
		f.Chats[chatID] = provider.Chat{ID: chatID}
	}
	c := f.Chats[chatID]
	c.LastActivity = msg.Timestamp
	f.Chats[chatID] = c
	return &msg, nil
}

// SetOnline controls what Reachable reports.
func (f *Fake) SetOnline(online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Online = online
}

// SentCount returns how many messages SendText accepted.
func (f *Fake) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// Stats returns a consistent snapshot of the call counters.
func (f *Fake) Stats() (connects, logouts, downloads, fetches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConnectCalls, f.LogoutCalls, f.DownloadCalls, f.FetchCalls
}

// IsClosed reports whether Close was called.
func (f *Fake) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}

var _ provider.Client = (*Fake)(nil)
