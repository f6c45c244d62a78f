package sync

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/wppbridge/internal/bus"
	"github.com/matheus3301/wppbridge/internal/clock"
	"github.com/matheus3301/wppbridge/internal/common"
	"github.com/matheus3301/wppbridge/internal/media"
	"github.com/matheus3301/wppbridge/internal/provider"
	"github.com/matheus3301/wppbridge/internal/store"
	"go.uber.org/zap"
)

const (
	directServer = "s.whatsapp.net"
	groupServer  = "g.us"
)

// Options tunes filtering and backfill.
type Options struct {
	IncludeGroups  bool
	AllowedServers []string
	BackfillLimit  int
	BackfillWindow time.Duration
}

// DefaultOptions returns direct chats only, 5000 messages, ~6 months.
func DefaultOptions() Options {
	return Options{
		AllowedServers: []string{directServer, "lid"},
		BackfillLimit:  5000,
		BackfillWindow: 4380 * time.Hour,
	}
}

// Engine maps provider chats and messages onto the store. Every write is
// an idempotent upsert, so live events, bulk syncs and backfills can
// overlap freely.
type Engine struct {
	db     *store.DB
	cache  *media.Cache
	bus    *bus.Bus
	clock  clock.Clock
	opts   Options
	logger *zap.Logger
}

// NewEngine creates a new sync engine. Nil dependencies fall back to a
// fresh cache, real clock and no-op logger.
func NewEngine(db *store.DB, cache *media.Cache, b *bus.Bus, clk clock.Clock, opts Options, logger *zap.Logger) *Engine {
	if cache == nil {
		cache = media.NewCache(media.DefaultCapacity)
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BackfillLimit <= 0 {
		opts.BackfillLimit = DefaultOptions().BackfillLimit
	}
	if opts.BackfillWindow <= 0 {
		opts.BackfillWindow = DefaultOptions().BackfillWindow
	}
	return &Engine{db: db, cache: cache, bus: b, clock: clk, opts: opts, logger: logger}
}

// Allowed reports whether a chat takes part in synchronization.
func (e *Engine) Allowed(chatID string) bool {
	server := serverOf(chatID)
	if server == groupServer {
		return e.opts.IncludeGroups
	}
	return slices.Contains(e.opts.AllowedServers, server)
}

// UpsertChat resolves the display fields of c and overwrites the local
// record with them.
func (e *Engine) UpsertChat(ctx context.Context, client provider.Client, c provider.Chat) error {
	var contact provider.Contact
	if !c.IsGroup {
		contact, _ = client.Contact(ctx, c.ID)
	}
	number := contact.Number
	if number == "" && !c.IsGroup && serverOf(c.ID) == directServer {
		number = userOf(c.ID)
	}

	row := &store.Chat{
		ID:           c.ID,
		Name:         ResolveChatName(c, contact, number),
		Number:       number,
		IsGroup:      c.IsGroup,
		UnreadCount:  c.UnreadCount,
		Archived:     c.Archived,
		Muted:        c.Muted,
		LastActivity: c.LastActivity,
	}
	if err := e.db.UpsertChat(ctx, row); err != nil {
		return err
	}
	e.publish(bus.KindChatUpdated, c.ID)
	return nil
}

// ResolveChatName picks the display name of a chat. Groups use their own
// name; direct chats fall back through the contact's names and the
// number before using the raw id.
func ResolveChatName(c provider.Chat, contact provider.Contact, number string) string {
	if c.IsGroup {
		return firstNonEmpty(c.Name, c.ID)
	}
	return firstNonEmpty(c.Name, contact.PushName, contact.Name, number, c.ID)
}

// UpsertMessage persists msg unless its id is already stored. It reports
// whether a new row was written. Media download failures are logged and
// leave the media fields empty.
func (e *Engine) UpsertMessage(ctx context.Context, client provider.Client, msg provider.Message) (bool, error) {
	if !e.Allowed(msg.ChatID) {
		return false, nil
	}
	exists, err := e.db.HasMessage(ctx, msg.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := e.ensureChat(ctx, client, msg.ChatID); err != nil {
		return false, err
	}

	row := &store.Message{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		Body:      msg.Body,
		FromMe:    msg.FromMe,
		Timestamp: msg.Timestamp,
		Type:      firstNonEmpty(msg.Type, "text"),
		HasMedia:  msg.HasMedia,
		Ack:       NormalizeAck(msg.Ack),
	}
	row.SenderID, row.SenderName = e.resolveSender(ctx, client, msg)
	if msg.HasMedia {
		row.Media = e.resolveMedia(ctx, client, msg)
	}

	inserted, err := e.db.InsertMessage(ctx, row)
	if err != nil || !inserted {
		return false, err
	}

	ts := msg.Timestamp
	if err := e.db.UpdateChat(ctx, msg.ChatID, store.ChatPatch{LastActivity: &ts}); err != nil {
		e.logger.Warn("advance chat activity", zap.String("chat_id", msg.ChatID), zap.Error(err))
	}
	e.publish(bus.KindMessageStored, row)
	return true, nil
}

func (e *Engine) ensureChat(ctx context.Context, client provider.Client, chatID string) error {
	_, err := e.db.GetChat(ctx, chatID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}
	c, perr := client.GetChat(ctx, chatID)
	if perr != nil {
		c = &provider.Chat{ID: chatID, IsGroup: serverOf(chatID) == groupServer}
	}
	return e.UpsertChat(ctx, client, *c)
}

func (e *Engine) resolveSender(ctx context.Context, client provider.Client, msg provider.Message) (id, name string) {
	if msg.FromMe {
		self := client.Self()
		return firstNonEmpty(self.ID, msg.Sender), firstNonEmpty(self.Name, self.Number)
	}
	id = firstNonEmpty(msg.Sender, msg.ChatID)
	contact, err := client.Contact(ctx, id)
	if err != nil {
		return id, id
	}
	return id, firstNonEmpty(contact.PushName, contact.Name, contact.Number, id)
}

func (e *Engine) resolveMedia(ctx context.Context, client provider.Client, msg provider.Message) *store.Media {
	if m, ok := e.cache.Get(msg.ID); ok {
		return &m
	}
	dl, err := client.DownloadMedia(ctx, msg)
	if err != nil {
		e.logger.Warn("media download failed",
			zap.String("msg_id", msg.ID),
			zap.Error(fmt.Errorf("%w: %w", common.ErrMediaDownload, err)))
		return nil
	}
	m := store.Media{
		Mime:     media.NormalizeMime(dl.Mime, dl.Data),
		Data:     dl.Data,
		Filename: dl.Filename,
		Size:     dl.Size,
		Duration: media.NormalizeDuration(dl.Duration),
	}
	if m.Size == 0 {
		m.Size = int64(len(dl.Data))
	}
	e.cache.Put(msg.ID, m)
	return &m
}

// SyncChats upserts every allowed chat the provider reports. Failures on
// individual chats are logged and skipped; the count of written chats is
// returned.
func (e *Engine) SyncChats(ctx context.Context, client provider.Client) (int, error) {
	chats, err := client.ListChats(ctx)
	if err != nil {
		e.publish(bus.KindSyncFailed, err.Error())
		return 0, fmt.Errorf("%w: list chats: %w", common.ErrSync, err)
	}
	n := 0
	for _, c := range chats {
		if !e.Allowed(c.ID) {
			continue
		}
		if err := e.UpsertChat(ctx, client, c); err != nil {
			e.logger.Warn("chat sync failed", zap.String("chat_id", c.ID), zap.Error(err))
			continue
		}
		n++
	}
	e.logger.Info("chat sync complete", zap.Int("chats", n), zap.Int("reported", len(chats)))
	e.publish(bus.KindSyncCompleted, n)
	return n, nil
}

// Backfill loads recent history of one chat. The chat is upserted first;
// messages older than the backfill window are never stored. It returns
// the number of messages written.
func (e *Engine) Backfill(ctx context.Context, client provider.Client, chatID string) (int, error) {
	c, err := client.GetChat(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("backfill %s: %w", chatID, err)
	}
	if !e.Allowed(c.ID) {
		return 0, nil
	}
	if err := e.UpsertChat(ctx, client, *c); err != nil {
		return 0, err
	}

	cutoff := e.clock.Now().Add(-e.opts.BackfillWindow)
	if !c.LastActivity.IsZero() && c.LastActivity.Before(cutoff) {
		e.logger.Debug("backfill skipped, chat inactive", zap.String("chat_id", chatID))
		return 0, nil
	}

	msgs, err := client.FetchMessages(ctx, chatID, e.opts.BackfillLimit)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch %s: %w", common.ErrSync, chatID, err)
	}
	msgs = slices.DeleteFunc(msgs, func(m provider.Message) bool { return m.Timestamp.Before(cutoff) })
	slices.SortStableFunc(msgs, func(a, b provider.Message) int { return a.Timestamp.Compare(b.Timestamp) })

	written := 0
	for _, m := range msgs {
		m.ChatID = chatID
		ok, err := e.UpsertMessage(ctx, client, m)
		if err != nil {
			e.logger.Warn("backfill message failed", zap.String("chat_id", chatID), zap.String("msg_id", m.ID), zap.Error(err))
			continue
		}
		if ok {
			written++
		}
	}
	e.logger.Info("backfill complete", zap.String("chat_id", chatID), zap.Int("fetched", len(msgs)), zap.Int("stored", written))
	return written, nil
}

// NormalizeAck converts a provider acknowledgment into an integer code.
// Integers, unsigned integers, floats and numeric strings are accepted;
// fractions round half away from zero. Anything else yields nil.
func NormalizeAck(v any) *int {
	f, ok := media.Number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func (e *Engine) publish(kind string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: e.clock.Now(), Payload: payload})
}

func serverOf(id string) string {
	if i := strings.LastIndexByte(id, '@'); i >= 0 {
		return id[i+1:]
	}
	return ""
}

func userOf(id string) string {
	user, _, _ := strings.Cut(id, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
