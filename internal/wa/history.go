package wa

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wppbridge/internal/provider"
	"go.mau.fi/whatsmeow/types"
)

// MirrorLimit caps the messages kept per chat in the history mirror.
const MirrorLimit = 5000

type chatEntry struct {
	chat provider.Chat
	msgs []provider.Message // ascending by timestamp
	ids  map[string]struct{}
}

// history mirrors what the session has seen of each chat: metadata from
// history sync and every message delivered since, deduplicated by id.
// One history outlives the adapters of a device: whatsmeow does not
// replay history sync on reconnect.
type history struct {
	mu    sync.Mutex
	limit int
	chats map[string]*chatEntry
	// chat id -> anchor message id of the last on-demand history request
	requested map[string]string
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = MirrorLimit
	}
	return &history{
		limit:     limit,
		chats:     make(map[string]*chatEntry),
		requested: make(map[string]string),
	}
}

// reset forgets everything, for a device that no longer exists.
func (h *history) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.chats)
	clear(h.requested)
}

// claimRequest reports whether history before anchorID has not been
// requested for the chat yet, and records it as requested.
func (h *history) claimRequest(chatID, anchorID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.requested[chatID] == anchorID {
		return false
	}
	h.requested[chatID] = anchorID
	return true
}

func (h *history) entry(id string) *chatEntry {
	e, ok := h.chats[id]
	if !ok {
		e = &chatEntry{
			chat: provider.Chat{ID: id, IsGroup: strings.HasSuffix(id, "@"+types.GroupServer)},
			ids:  make(map[string]struct{}),
		}
		h.chats[id] = e
	}
	return e
}

// mergeChat records chat metadata. Empty names do not overwrite known
// ones and last activity only moves forward.
func (h *history) mergeChat(c provider.Chat) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entry(c.ID)
	if c.Name != "" {
		e.chat.Name = c.Name
	}
	e.chat.UnreadCount = c.UnreadCount
	e.chat.Archived = c.Archived
	e.chat.Muted = c.Muted
	if c.LastActivity.After(e.chat.LastActivity) {
		e.chat.LastActivity = c.LastActivity
	}
}

// add inserts m in timestamp order. It reports false for a duplicate id.
// unread bumps the chat's unread count.
func (h *history) add(m provider.Message, unread bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entry(m.ChatID)
	if _, dup := e.ids[m.ID]; dup {
		return false
	}
	i, _ := slices.BinarySearchFunc(e.msgs, m.Timestamp, func(x provider.Message, t time.Time) int {
		return x.Timestamp.Compare(t)
	})
	// Equal timestamps keep arrival order.
	for i < len(e.msgs) && e.msgs[i].Timestamp.Equal(m.Timestamp) {
		i++
	}
	e.msgs = slices.Insert(e.msgs, i, m)
	e.ids[m.ID] = struct{}{}

	if over := len(e.msgs) - h.limit; over > 0 {
		for _, old := range e.msgs[:over] {
			delete(e.ids, old.ID)
		}
		e.msgs = slices.Clone(e.msgs[over:])
	}
	if m.Timestamp.After(e.chat.LastActivity) {
		e.chat.LastActivity = m.Timestamp
	}
	if unread {
		e.chat.UnreadCount++
	}
	return true
}

func (h *history) list() []provider.Chat {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]provider.Chat, 0, len(h.chats))
	for _, e := range h.chats {
		out = append(out, e.chat)
	}
	return out
}

func (h *history) chat(id string) (provider.Chat, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.chats[id]
	if !ok {
		return provider.Chat{}, false
	}
	return e.chat, true
}

// recent returns up to limit of the newest messages, ascending.
func (h *history) recent(id string, limit int) []provider.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.chats[id]
	if !ok || limit <= 0 {
		return nil
	}
	from := max(len(e.msgs)-limit, 0)
	return slices.Clone(e.msgs[from:])
}

func (h *history) oldest(id string) (provider.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.chats[id]
	if !ok || len(e.msgs) == 0 {
		return provider.Message{}, false
	}
	return e.msgs[0], true
}

func (h *history) newestInbound(id string) (provider.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.chats[id]
	if !ok {
		return provider.Message{}, false
	}
	for i := len(e.msgs) - 1; i >= 0; i-- {
		if !e.msgs[i].FromMe {
			return e.msgs[i], true
		}
	}
	return provider.Message{}, false
}

func (h *history) markSeen(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.chats[id]; ok {
		e.chat.UnreadCount = 0
	}
}
