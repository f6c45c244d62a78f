package model

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/matheus3301/wppbridge/internal/tui/client"
)

const pageSize = 50

// ViewModel caches daemon state for the views.
type ViewModel struct {
	mu sync.RWMutex

	client        *client.Client
	SessionStatus *wppv1.SessionStatus
	Chats         []wppv1.Chat
	Messages      []wppv1.Message
	ActiveChatID  string
	cursor        string
	hasMore       bool
	Flash         Flash
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{client: c}
}

// LoadSessionStatus fetches current session status.
func (vm *ViewModel) LoadSessionStatus(ctx context.Context) error {
	resp, err := vm.client.Session.GetStatus(ctx, &wppv1.GetStatusRequest{})
	if err != nil {
		return err
	}
	vm.SetSessionStatus(resp)
	return nil
}

// SetSessionStatus replaces the cached status.
func (vm *ViewModel) SetSessionStatus(st *wppv1.SessionStatus) {
	vm.mu.Lock()
	vm.SessionStatus = st
	vm.mu.Unlock()
}

// Connect asks the daemon to (re)establish the session.
func (vm *ViewModel) Connect(ctx context.Context) error {
	resp, err := vm.client.Session.Connect(ctx, &wppv1.ConnectRequest{})
	if err != nil {
		return err
	}
	vm.SetSessionStatus(resp)
	return nil
}

// Logout ends the session on the phone.
func (vm *ViewModel) Logout(ctx context.Context) error {
	resp, err := vm.client.Session.Logout(ctx, &wppv1.LogoutRequest{})
	if err != nil {
		return err
	}
	vm.SetSessionStatus(resp)
	return nil
}

// LoadChats fetches the chat list.
func (vm *ViewModel) LoadChats(ctx context.Context) error {
	resp, err := vm.client.Chat.ListChats(ctx, &wppv1.ListChatsRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Chats = resp.Chats
	vm.mu.Unlock()
	return nil
}

// LoadMessages fetches the newest page of a chat and makes it active.
func (vm *ViewModel) LoadMessages(ctx context.Context, chatID string) error {
	resp, err := vm.client.Chat.GetMessages(ctx, &wppv1.GetMessagesRequest{
		ChatID: chatID,
		Limit:  pageSize,
	})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.ActiveChatID = chatID
	vm.Messages = resp.Messages
	vm.cursor = resp.Cursor
	vm.hasMore = resp.HasMore
	vm.mu.Unlock()
	return nil
}

// LoadOlder prepends the page before the oldest loaded message. It
// reports false when there was nothing more to load.
func (vm *ViewModel) LoadOlder(ctx context.Context) (bool, error) {
	vm.mu.RLock()
	chatID, cursor, more := vm.ActiveChatID, vm.cursor, vm.hasMore
	vm.mu.RUnlock()
	if chatID == "" || !more || cursor == "" {
		return false, nil
	}

	resp, err := vm.client.Chat.GetMessages(ctx, &wppv1.GetMessagesRequest{
		ChatID: chatID,
		Limit:  pageSize,
		Before: cursor,
	})
	if err != nil {
		return false, err
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.ActiveChatID != chatID {
		return false, nil
	}
	vm.Messages = append(slices.Clone(resp.Messages), vm.Messages...)
	vm.hasMore = resp.HasMore
	if resp.Cursor != "" {
		vm.cursor = resp.Cursor
	}
	return len(resp.Messages) > 0, nil
}

// SearchMessages performs a search query.
func (vm *ViewModel) SearchMessages(ctx context.Context, query string) ([]wppv1.SearchResult, error) {
	resp, err := vm.client.Chat.SearchMessages(ctx, &wppv1.SearchMessagesRequest{
		Query: query,
		Limit: 50,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// SendText sends a text message to the chat.
func (vm *ViewModel) SendText(ctx context.Context, chatID, text string) error {
	if _, err := vm.client.Chat.SendMessage(ctx, &wppv1.SendMessageRequest{To: chatID, Body: text}); err != nil {
		return err
	}
	vm.Flash.Set("Message sent", 3*time.Second)
	return nil
}

// MarkRead clears the chat's unread count.
func (vm *ViewModel) MarkRead(ctx context.Context, chatID string) error {
	_, err := vm.client.Chat.MarkRead(ctx, &wppv1.MarkReadRequest{ChatID: chatID})
	return err
}

// GetChats returns a snapshot of the current chat list.
func (vm *ViewModel) GetChats() []wppv1.Chat {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Chats
}

// GetMessages returns a snapshot of the current messages.
func (vm *ViewModel) GetMessages() []wppv1.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Messages
}

// ActiveChat returns the id of the chat whose messages are loaded.
func (vm *ViewModel) ActiveChat() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ActiveChatID
}

// HasMore reports whether older messages can be loaded.
func (vm *ViewModel) HasMore() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.hasMore
}

// GetSessionStatus returns a snapshot of session status.
func (vm *ViewModel) GetSessionStatus() *wppv1.SessionStatus {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.SessionStatus
}

// ChatName returns the display name of a loaded chat, or its id.
func (vm *ViewModel) ChatName(chatID string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.Chats {
		if c.ID == chatID && c.Name != "" {
			return c.Name
		}
	}
	return chatID
}
