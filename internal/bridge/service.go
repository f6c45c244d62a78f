// Package bridge exposes the command and query surface used by the API
// layer. It reads from the local store and consults the live session
// only where a command needs it.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/matheus3301/wppbridge/internal/common"
	"github.com/matheus3301/wppbridge/internal/conn"
	"github.com/matheus3301/wppbridge/internal/outbound"
	"github.com/matheus3301/wppbridge/internal/status"
	"github.com/matheus3301/wppbridge/internal/store"
	"github.com/matheus3301/wppbridge/internal/sync"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Lifecycle is the part of lifecycle.Manager the service drives.
type Lifecycle interface {
	Connect(ctx context.Context) error
	Logout(ctx context.Context) error
	Status() (status.State, conn.Snapshot)
}

// StatusInfo describes the session as seen by callers.
type StatusInfo struct {
	Status       status.State
	Number       string
	Name         string
	QR           *conn.QR
	Ready        bool
	ChatCount    int
	MessageCount int
}

// ChatSummary is a chat together with its most recent message.
type ChatSummary struct {
	Chat         store.Chat
	LastMessage  *store.Message
	MessageCount int
}

// MessagePage is one page of a chat's history in ascending order.
// Cursor is the id of the oldest message and is passed back as before
// to fetch the preceding page.
type MessagePage struct {
	Messages []store.Message
	HasMore  bool
	Cursor   string
}

// Service implements the bridge commands.
type Service struct {
	lifecycle  Lifecycle
	holder     *conn.Holder
	db         *store.DB
	engine     *sync.Engine
	dispatcher *outbound.Dispatcher
	logger     *zap.Logger
}

// NewService creates a new bridge service.
func NewService(lc Lifecycle, holder *conn.Holder, db *store.DB, engine *sync.Engine,
	dispatcher *outbound.Dispatcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		lifecycle:  lc,
		holder:     holder,
		db:         db,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Status returns the connection status, identity, pending QR and store
// totals.
func (s *Service) Status(ctx context.Context) StatusInfo {
	st, snap := s.lifecycle.Status()
	info := StatusInfo{
		Status: st,
		Number: snap.Number,
		Name:   snap.Name,
		QR:     snap.QR,
		Ready:  snap.Ready,
	}
	var err error
	if info.ChatCount, err = s.db.ChatCount(ctx); err != nil {
		s.logger.Warn("count chats", zap.Error(err))
	}
	if info.MessageCount, err = s.db.MessageCount(ctx); err != nil {
		s.logger.Warn("count messages", zap.Error(err))
	}
	return info
}

// Connect asks the lifecycle to (re)initialize the session.
func (s *Service) Connect(ctx context.Context) error { return s.lifecycle.Connect(ctx) }

// Logout ends the session; the lifecycle then pairs afresh.
func (s *Service) Logout(ctx context.Context) error { return s.lifecycle.Logout(ctx) }

// ListChats returns every known chat, most recently active first, each
// with its latest message.
func (s *Service) ListChats(ctx context.Context) ([]ChatSummary, error) {
	chats, err := s.db.ListChats(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.db.LatestMessages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		sum := ChatSummary{Chat: c}
		if m, ok := latest[c.ID]; ok {
			sum.LastMessage = &m
		}
		out = append(out, sum)
	}
	return out, nil
}

// GetChat returns a chat summary. Chats unknown locally are looked up on
// the provider when the session is ready.
func (s *Service) GetChat(ctx context.Context, chatID string) (*ChatSummary, error) {
	chat, err := s.localOrRemoteChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	sum := &ChatSummary{Chat: *chat}
	last, err := s.db.ListMessages(ctx, chatID, store.Page{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(last) > 0 {
		sum.LastMessage = &last[0]
	}
	if sum.MessageCount, err = s.db.CountMessages(ctx, chatID); err != nil {
		return nil, err
	}
	return sum, nil
}

func (s *Service) localOrRemoteChat(ctx context.Context, chatID string) (*store.Chat, error) {
	chat, err := s.db.GetChat(ctx, chatID)
	if err == nil || !errors.Is(err, common.ErrNotFound) {
		return chat, err
	}
	cc := s.holder.Current()
	if !cc.Ready() || !s.engine.Allowed(chatID) {
		return nil, err
	}
	remote, rerr := cc.Client.GetChat(ctx, chatID)
	if rerr != nil {
		if errors.Is(rerr, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup chat %s: %w", chatID, rerr)
	}
	if err := s.engine.UpsertChat(ctx, cc.Client, *remote); err != nil {
		return nil, err
	}
	return s.db.GetChat(ctx, chatID)
}

// GetChatMessages returns up to limit messages older than before (or the
// newest when before is empty) in ascending timestamp order. A chat with
// no stored history is backfilled first when the session is ready.
func (s *Service) GetChatMessages(ctx context.Context, chatID string, limit int, before string) (*MessagePage, error) {
	limit = ClampLimit(limit)

	if before == "" {
		s.backfillIfEmpty(ctx, chatID)
	}
	if _, err := s.db.GetChat(ctx, chatID); err != nil {
		return nil, err
	}

	msgs, err := s.db.ListMessages(ctx, chatID, store.Page{Limit: limit, Before: before, Order: store.Descending})
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)

	page := &MessagePage{Messages: msgs, HasMore: len(msgs) == limit}
	if len(msgs) > 0 {
		page.Cursor = msgs[0].ID
	}
	return page, nil
}

func (s *Service) backfillIfEmpty(ctx context.Context, chatID string) {
	cc := s.holder.Current()
	if !cc.Ready() {
		return
	}
	n, err := s.db.CountMessages(ctx, chatID)
	if err != nil || n > 0 {
		return
	}
	if _, err := s.engine.Backfill(ctx, cc.Client, chatID); err != nil {
		s.logger.Warn("backfill failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}

// ClampLimit bounds a page size to [1, MaxPageSize]; zero selects
// DefaultPageSize.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultPageSize
	case limit < 1:
		return 1
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

// SendMessage sends a text message and returns it as stored.
func (s *Service) SendMessage(ctx context.Context, dest, body string) (*store.Message, error) {
	sent, err := s.dispatcher.Send(ctx, dest, body)
	if err != nil {
		return nil, err
	}
	if m, err := s.db.GetMessage(ctx, sent.ID); err == nil {
		return m, nil
	}
	return &store.Message{
		ID:        sent.ID,
		ChatID:    sent.ChatID,
		Body:      sent.Body,
		FromMe:    true,
		Timestamp: sent.Timestamp,
		Type:      "text",
	}, nil
}

// MarkRead marks a chat as seen on the provider and zeroes its local
// unread count. The chat must be known locally or to the provider.
func (s *Service) MarkRead(ctx context.Context, chatID string) error {
	cc := s.holder.Current()
	if !cc.Ready() {
		return common.ErrNotReady
	}
	chat, err := s.localOrRemoteChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := cc.Client.MarkSeen(ctx, chat.ID); err != nil {
		return fmt.Errorf("mark seen %s: %w", chat.ID, err)
	}
	zero := 0
	return s.db.UpdateChat(ctx, chat.ID, store.ChatPatch{UnreadCount: &zero})
}

// SearchMessages runs a substring search over stored message bodies.
func (s *Service) SearchMessages(ctx context.Context, query, chatID string, limit int) ([]store.SearchResult, error) {
	return s.db.SearchMessages(ctx, query, chatID, ClampLimit(limit))
}
