package bridge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/wppbridge/internal/common"
	"github.com/matheus3301/wppbridge/internal/conn"
	"github.com/matheus3301/wppbridge/internal/outbound"
	"github.com/matheus3301/wppbridge/internal/provider"
	"github.com/matheus3301/wppbridge/internal/provider/providertest"
	"github.com/matheus3301/wppbridge/internal/status"
	"github.com/matheus3301/wppbridge/internal/store"
	"github.com/matheus3301/wppbridge/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alice = "5511999@s.whatsapp.net"

type stubLifecycle struct {
	holder   *conn.Holder
	state    status.State
	connects int
	logouts  int
}

func (l *stubLifecycle) Connect(context.Context) error { l.connects++; return nil }
func (l *stubLifecycle) Logout(context.Context) error  { l.logouts++; return nil }
func (l *stubLifecycle) Status() (status.State, conn.Snapshot) {
	return l.state, l.holder.Current().Snapshot()
}

type fixture struct {
	svc  *Service
	db   *store.DB
	fake *providertest.Fake
	cc   *conn.Context
	lc   *stubLifecycle
}

func newFixture(t *testing.T, ready bool) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fake := providertest.New()
	fake.Identity = provider.Identity{ID: "me@s.whatsapp.net", Number: "5511000", Name: "Me"}
	holder := &conn.Holder{}
	cc := conn.New(holder.NextEpoch(), fake)
	lc := &stubLifecycle{holder: holder, state: status.Connecting}
	if ready {
		cc.MarkReady("5511000", "Me")
		lc.state = status.Connected
	}
	holder.Replace(cc)

	engine := sync.NewEngine(db, nil, nil, nil, sync.DefaultOptions(), nil)
	svc := NewService(lc, holder, db, engine, outbound.NewDispatcher(holder, engine, nil), nil)
	return &fixture{svc: svc, db: db, fake: fake, cc: cc, lc: lc}
}

func (f *fixture) seed(t *testing.T, chatID string, msgs ...store.Message) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.db.UpsertChat(ctx, &store.Chat{ID: chatID}))
	for i := range msgs {
		msgs[i].ChatID = chatID
		if msgs[i].Type == "" {
			msgs[i].Type = "text"
		}
		_, err := f.db.InsertMessage(ctx, &msgs[i])
		require.NoError(t, err)
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(-10))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, 500, ClampLimit(500))
	assert.Equal(t, 500, ClampLimit(501))
}

func TestGetChatMessagesPagesAscending(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, alice,
		store.Message{ID: "t1", Timestamp: time.Unix(1, 0)},
		store.Message{ID: "t2", Timestamp: time.Unix(2, 0)},
		store.Message{ID: "t3", Timestamp: time.Unix(3, 0)},
	)
	ctx := context.Background()

	page, err := f.svc.GetChatMessages(ctx, alice, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "t2", page.Messages[0].ID)
	assert.Equal(t, "t3", page.Messages[1].ID)
	assert.True(t, page.HasMore)
	assert.Equal(t, "t2", page.Cursor)

	page, err = f.svc.GetChatMessages(ctx, alice, 2, page.Cursor)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "t1", page.Messages[0].ID)
	assert.False(t, page.HasMore)
	assert.Equal(t, "t1", page.Cursor)
}

func TestGetChatMessagesBackfillsEmptyChat(t *testing.T) {
	f := newFixture(t, true)
	now := time.Now()
	f.fake.AddChat(provider.Chat{ID: alice, LastActivity: now},
		provider.Message{ID: "h1", ChatID: alice, Body: "old", Timestamp: now.Add(-2 * time.Minute)},
		provider.Message{ID: "h2", ChatID: alice, Body: "new", Timestamp: now.Add(-time.Minute)},
	)

	page, err := f.svc.GetChatMessages(context.Background(), alice, 0, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "h1", page.Messages[0].ID)
	assert.False(t, page.HasMore)

	// Second call reads locally only.
	_, err = f.svc.GetChatMessages(context.Background(), alice, 0, "")
	require.NoError(t, err)
	_, _, _, fetches := f.fake.Stats()
	assert.Equal(t, 1, fetches)
}

func TestGetChatMessagesNotReadyDoesNotBackfill(t *testing.T) {
	f := newFixture(t, false)
	f.fake.AddChat(provider.Chat{ID: alice}, provider.Message{ID: "h1", Timestamp: time.Now()})

	_, err := f.svc.GetChatMessages(context.Background(), alice, 10, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, _, _, fetches := f.fake.Stats()
	assert.Zero(t, fetches)
}

func TestGetChatFallsBackToProvider(t *testing.T) {
	f := newFixture(t, true)
	f.fake.AddChat(provider.Chat{ID: alice, Name: "Alice"})
	ctx := context.Background()

	sum, err := f.svc.GetChat(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", sum.Chat.Name)
	assert.Nil(t, sum.LastMessage)

	_, err = f.svc.GetChat(ctx, "404@s.whatsapp.net")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetChatSummary(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, alice,
		store.Message{ID: "a", Timestamp: time.Unix(1, 0)},
		store.Message{ID: "b", Timestamp: time.Unix(2, 0)},
	)

	sum, err := f.svc.GetChat(context.Background(), alice)
	require.NoError(t, err)
	require.NotNil(t, sum.LastMessage)
	assert.Equal(t, "b", sum.LastMessage.ID)
	assert.Equal(t, 2, sum.MessageCount)
}

func TestListChatsIncludesLatestMessage(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, alice, store.Message{ID: "a1", Timestamp: time.Unix(1, 0)}, store.Message{ID: "a2", Timestamp: time.Unix(9, 0)})
	f.seed(t, "empty@s.whatsapp.net")

	chats, err := f.svc.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	byID := map[string]ChatSummary{}
	for _, c := range chats {
		byID[c.Chat.ID] = c
	}
	require.NotNil(t, byID[alice].LastMessage)
	assert.Equal(t, "a2", byID[alice].LastMessage.ID)
	assert.Nil(t, byID["empty@s.whatsapp.net"].LastMessage)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t, true)

	m, err := f.svc.SendMessage(context.Background(), "5511999", "hello")
	require.NoError(t, err)
	assert.Equal(t, alice, m.ChatID)
	assert.True(t, m.FromMe)
	assert.Equal(t, "Me", m.SenderName)
}

func TestSendMessageNotReady(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.SendMessage(context.Background(), "5511999", "hello")
	assert.ErrorIs(t, err, common.ErrNotReady)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.db.UpsertChat(ctx, &store.Chat{ID: alice, UnreadCount: 7}))

	require.NoError(t, f.svc.MarkRead(ctx, alice))
	chat, err := f.db.GetChat(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, chat.UnreadCount)
	assert.Equal(t, []string{alice}, f.fake.Seen)
}

func TestMarkReadUnknownChat(t *testing.T) {
	f := newFixture(t, true)
	err := f.svc.MarkRead(context.Background(), "5500000000@s.whatsapp.net")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, f.fake.Seen)
}

func TestMarkReadProviderOnlyChat(t *testing.T) {
	f := newFixture(t, true)
	f.fake.AddChat(provider.Chat{ID: alice, Name: "Alice", UnreadCount: 3})
	ctx := context.Background()

	require.NoError(t, f.svc.MarkRead(ctx, alice))
	chat, err := f.db.GetChat(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, chat.UnreadCount)
	assert.Equal(t, []string{alice}, f.fake.Seen)
}

func TestMarkReadNotReady(t *testing.T) {
	f := newFixture(t, false)
	assert.ErrorIs(t, f.svc.MarkRead(context.Background(), alice), common.ErrNotReady)
	assert.Empty(t, f.fake.Seen)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)
	f.seed(t, alice, store.Message{ID: "x", Timestamp: time.Unix(1, 0)})

	info := f.svc.Status(context.Background())
	assert.Equal(t, status.Connected, info.Status)
	assert.True(t, info.Ready)
	assert.Equal(t, "5511000", info.Number)
	assert.Equal(t, 1, info.ChatCount)
	assert.Equal(t, 1, info.MessageCount)

	require.NoError(t, f.svc.Connect(context.Background()))
	require.NoError(t, f.svc.Logout(context.Background()))
	assert.Equal(t, 1, f.lc.connects)
	assert.Equal(t, 1, f.lc.logouts)
}

func TestSearchMessages(t *testing.T) {
	f := newFixture(t, false)
	f.seed(t, alice, store.Message{ID: "x", Body: "find me", Timestamp: time.Unix(1, 0)})

	res, err := f.svc.SearchMessages(context.Background(), "find", "", 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "x", res[0].Message.ID)
}
