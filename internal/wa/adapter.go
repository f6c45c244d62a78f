package wa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wppbridge/internal/common"
	"github.com/matheus3301/wppbridge/internal/provider"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

const eventBuffer = 256

// OpenContainer opens the whatsmeow credential store kept in dir.
func OpenContainer(ctx context.Context, dir string, logger *zap.Logger) (*sqlstore.Container, error) {
	// Set device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wppbridge", [3]uint32{0, 1, 0})

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create auth dir: %w", err)
	}
	dbPath := filepath.Join(dir, "session.db")
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		NewZapLogger(logger.Named("wa.store")),
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	return container, nil
}

// NewFactory returns a provider.Factory that builds one Adapter per
// connection context from the container's first device. After a logout
// the container hands out a fresh device and the next Adapter pairs again.
// All adapters of a factory share one history mirror.
func NewFactory(container *sqlstore.Container, logger *zap.Logger) provider.Factory {
	mirror := newHistory(MirrorLimit)
	return func(ctx context.Context) (provider.Client, error) {
		device, err := container.GetFirstDevice(ctx)
		if err != nil {
			return nil, fmt.Errorf("get device store: %w", err)
		}
		client := whatsmeow.NewClient(device, NewZapLogger(logger.Named("wa.client")))
		// Recreation is owned by the lifecycle.
		client.EnableAutoReconnect = false
		return newAdapter(client, logger, mirror), nil
	}
}

// Adapter is a whatsmeow-backed provider.Client.
type Adapter struct {
	client *whatsmeow.Client
	logger *zap.Logger
	mirror *history

	events    chan provider.Event
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	handlerID uint32
}

var _ provider.Client = (*Adapter)(nil)

// newAdapter wraps client. A nil mirror gets a private one.
func newAdapter(client *whatsmeow.Client, logger *zap.Logger, mirror *history) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mirror == nil {
		mirror = newHistory(MirrorLimit)
	}
	a := &Adapter{
		client: client,
		logger: logger,
		mirror: mirror,
		events: make(chan provider.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	if client != nil {
		a.handlerID = client.AddEventHandler(a.handle)
	}
	return a
}

// Events returns the adapter's event stream. It is closed by Close.
func (a *Adapter) Events() <-chan provider.Event { return a.events }

func (a *Adapter) emit(evt provider.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.events <- evt:
	case <-a.done:
	}
}

// Connect starts the session. Unpaired devices get a QR channel first;
// codes are reported as EventQR.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.client.Store.ID == nil {
		qr, err := a.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get QR channel: %w", err)
		}
		go a.pumpQR(qr)
	}
	a.logger.Info("connecting to WhatsApp")
	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Reachable reports whether the socket is up and the device logged in.
func (a *Adapter) Reachable(context.Context) bool {
	return a.client.IsConnected() && a.client.IsLoggedIn()
}

// Logout invalidates the session and removes credentials. The mirror is
// emptied since the next pairing may be another account.
func (a *Adapter) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.mirror.reset()
	return nil
}

// Close disconnects and stops event delivery. Safe to call more than once.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		close(a.done)
		if a.client != nil {
			a.client.RemoveEventHandler(a.handlerID)
			a.client.Disconnect()
		}
		a.mu.Lock()
		a.closed = true
		close(a.events)
		a.mu.Unlock()
	})
}

// Self identifies the paired account; zero before pairing.
func (a *Adapter) Self() provider.Identity {
	id := a.client.Store.ID
	if id == nil {
		return provider.Identity{}
	}
	return provider.Identity{
		ID:     id.ToNonAD().String(),
		Number: id.User,
		Name:   a.client.Store.PushName,
	}
}

// ListChats returns every mirrored chat with store settings applied.
func (a *Adapter) ListChats(ctx context.Context) ([]provider.Chat, error) {
	chats := a.mirror.list()
	for i := range chats {
		a.decorate(ctx, &chats[i])
	}
	return chats, nil
}

// GetChat looks a chat up in the mirror, then among saved contacts.
func (a *Adapter) GetChat(ctx context.Context, id string) (*provider.Chat, error) {
	jid, err := types.ParseJID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidIdentifier, id)
	}
	chat, ok := a.mirror.chat(jid.ToNonAD().String())
	if !ok {
		// Direct chats with a known contact exist even without history.
		if jid.Server != types.DefaultUserServer || !a.paired() {
			return nil, fmt.Errorf("chat %s: %w", id, common.ErrNotFound)
		}
		info, err := a.client.Store.Contacts.GetContact(ctx, jid.ToNonAD())
		if err != nil || !info.Found {
			return nil, fmt.Errorf("chat %s: %w", id, common.ErrNotFound)
		}
		chat = provider.Chat{ID: jid.ToNonAD().String()}
	}
	a.decorate(ctx, &chat)
	return &chat, nil
}

// paired reports whether the device has its per-account stores. A device
// handed out before pairing has none of them.
func (a *Adapter) paired() bool {
	return a.client.Store.ID != nil && a.client.Store.Contacts != nil && a.client.Store.ChatSettings != nil
}

// decorate merges local chat settings and contact names into c.
func (a *Adapter) decorate(ctx context.Context, c *provider.Chat) {
	jid, err := types.ParseJID(c.ID)
	if err != nil || !a.paired() {
		return
	}
	if s, err := a.client.Store.ChatSettings.GetChatSettings(ctx, jid); err == nil && s.Found {
		c.Archived = s.Archived
		c.Muted = s.MutedUntil.After(time.Now())
	}
	if c.Name == "" && !c.IsGroup {
		if info, err := a.client.Store.Contacts.GetContact(ctx, jid); err == nil && info.Found {
			c.Name = displayName(info)
		}
	}
}

// savedName is the name the user or business chose, without push name.
func savedName(info types.ContactInfo) string {
	for _, n := range []string{info.FullName, info.FirstName, info.BusinessName} {
		if n != "" {
			return n
		}
	}
	return ""
}

func displayName(info types.ContactInfo) string {
	if n := savedName(info); n != "" {
		return n
	}
	return info.PushName
}

// FetchMessages returns mirrored messages. When fewer than limit are
// known it asks the phone for older history; the result arrives later
// as EventHistorySynced.
func (a *Adapter) FetchMessages(ctx context.Context, chatID string, limit int) ([]provider.Message, error) {
	msgs := a.mirror.recent(chatID, limit)
	if len(msgs) < limit {
		a.requestHistory(ctx, chatID, limit-len(msgs))
	}
	return msgs, nil
}

func (a *Adapter) requestHistory(ctx context.Context, chatID string, count int) {
	anchor, ok := a.mirror.oldest(chatID)
	own := a.client.Store.ID
	if !ok || own == nil {
		return
	}
	if !a.mirror.claimRequest(chatID, anchor.ID) {
		return
	}

	chat, err := types.ParseJID(chatID)
	if err != nil {
		return
	}
	info := &types.MessageInfo{
		MessageSource: types.MessageSource{Chat: chat, IsFromMe: anchor.FromMe},
		ID:            anchor.ID,
		Timestamp:     anchor.Timestamp,
	}
	req := a.client.BuildHistorySyncRequest(info, count)
	if _, err := a.client.SendMessage(ctx, own.ToNonAD(), req, whatsmeow.SendRequestExtra{Peer: true}); err != nil {
		a.logger.Warn("history request failed", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	a.logger.Debug("history requested", zap.String("chat_id", chatID), zap.Int("count", count))
}

// MarkSeen sends a read receipt for the newest inbound message.
func (a *Adapter) MarkSeen(ctx context.Context, chatID string) error {
	chat, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("%w: %s", common.ErrInvalidIdentifier, chatID)
	}
	if last, ok := a.mirror.newestInbound(chat.ToNonAD().String()); ok {
		sender := types.EmptyJID
		if chat.Server == types.GroupServer && last.Sender != "" {
			if s, err := types.ParseJID(last.Sender); err == nil {
				sender = s
			}
		}
		if err := a.client.MarkRead(ctx, []types.MessageID{last.ID}, time.Now(), chat, sender); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
	}
	a.mirror.markSeen(chat.ToNonAD().String())
	return nil
}

// Contact resolves a counterpart from the device's contact store. LIDs
// are mapped to phone numbers where the store knows them.
func (a *Adapter) Contact(ctx context.Context, id string) (provider.Contact, error) {
	jid, err := types.ParseJID(id)
	if err != nil {
		return provider.Contact{}, fmt.Errorf("%w: %s", common.ErrInvalidIdentifier, id)
	}
	jid = a.resolveLID(ctx, jid.ToNonAD())

	var c provider.Contact
	if jid.Server == types.DefaultUserServer {
		c.Number = jid.User
	}
	if !a.paired() {
		return c, nil
	}
	info, err := a.client.Store.Contacts.GetContact(ctx, jid)
	if err != nil {
		return c, fmt.Errorf("get contact %s: %w", id, err)
	}
	if info.Found {
		c.PushName = info.PushName
		c.Name = savedName(info)
	}
	return c, nil
}

func (a *Adapter) resolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// DownloadMedia fetches and decrypts the attachment of msg.
func (a *Adapter) DownloadMedia(ctx context.Context, msg provider.Message) (*provider.Media, error) {
	raw, _ := msg.Raw.(*waE2E.Message)
	d, meta := mediaOf(raw)
	if d == nil {
		return nil, errors.New("message has no downloadable media")
	}
	data, err := a.client.Download(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", msg.ID, err)
	}
	return &provider.Media{
		Mime:     meta.mime,
		Data:     data,
		Filename: meta.filename,
		Size:     int64(len(data)),
		Duration: meta.duration,
	}, nil
}

// SendText sends a text message and records it in the mirror.
func (a *Adapter) SendText(ctx context.Context, chatID, body string) (*provider.Message, error) {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: parse JID %s: %v", common.ErrInvalidIdentifier, chatID, err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	m := provider.Message{
		ID:        resp.ID,
		ChatID:    to.ToNonAD().String(),
		Body:      body,
		FromMe:    true,
		Sender:    a.Self().ID,
		Timestamp: resp.Timestamp,
		Type:      "text",
	}
	a.mirror.add(m, false)
	return &m, nil
}

// knownChats lists mirrored chat ids, sorted.
func (a *Adapter) knownChats() []string {
	chats := a.mirror.list()
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	slices.Sort(ids)
	return ids
}
