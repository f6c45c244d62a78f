package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/wppbridge/internal/bus"
	"github.com/matheus3301/wppbridge/internal/clock"
	"github.com/matheus3301/wppbridge/internal/media"
	"github.com/matheus3301/wppbridge/internal/provider"
	"github.com/matheus3301/wppbridge/internal/provider/providertest"
	"github.com/matheus3301/wppbridge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alice = "5511999@s.whatsapp.net"

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newEngine(t *testing.T, opts Options) (*Engine, *store.DB, *providertest.Fake) {
	t.Helper()
	db := testDB(t)
	fake := providertest.New()
	fake.Identity = provider.Identity{ID: "me@s.whatsapp.net", Number: "5511000", Name: "Me"}
	e := NewEngine(db, media.NewCache(10), bus.New(), clock.Fake(now), opts, nil)
	return e, db, fake
}

func TestResolveChatName(t *testing.T) {
	tests := []struct {
		name    string
		chat    provider.Chat
		contact provider.Contact
		number  string
		want    string
	}{
		{"group name", provider.Chat{ID: "1@g.us", IsGroup: true, Name: "Team"}, provider.Contact{PushName: "x"}, "", "Team"},
		{"group without name", provider.Chat{ID: "1@g.us", IsGroup: true}, provider.Contact{}, "", "1@g.us"},
		{"chat name wins", provider.Chat{ID: alice, Name: "Alice"}, provider.Contact{PushName: "Ali"}, "5511999", "Alice"},
		{"push name", provider.Chat{ID: alice}, provider.Contact{PushName: "Ali", Name: "Alice C"}, "5511999", "Ali"},
		{"contact name", provider.Chat{ID: alice}, provider.Contact{Name: "Alice C"}, "5511999", "Alice C"},
		{"number", provider.Chat{ID: alice}, provider.Contact{}, "5511999", "5511999"},
		{"id", provider.Chat{ID: "x@lid"}, provider.Contact{}, "", "x@lid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveChatName(tt.chat, tt.contact, tt.number))
		})
	}
}

func TestAllowed(t *testing.T) {
	e, _, _ := newEngine(t, DefaultOptions())
	assert.True(t, e.Allowed(alice))
	assert.True(t, e.Allowed("123@lid"))
	assert.False(t, e.Allowed("123@g.us"))
	assert.False(t, e.Allowed("status@broadcast"))
	assert.False(t, e.Allowed("newsletter@newsletter"))

	opts := DefaultOptions()
	opts.IncludeGroups = true
	withGroups, _, _ := newEngine(t, opts)
	assert.True(t, withGroups.Allowed("123@g.us"))
}

func TestUpsertChatOverwrites(t *testing.T) {
	e, db, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()
	fake.Contacts[alice] = provider.Contact{PushName: "Ali"}

	require.NoError(t, e.UpsertChat(ctx, fake, provider.Chat{ID: alice, UnreadCount: 4, Archived: true}))
	require.NoError(t, e.UpsertChat(ctx, fake, provider.Chat{ID: alice, Name: "Alice"}))

	got, err := db.GetChat(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "5511999", got.Number)
	assert.Zero(t, got.UnreadCount)
	assert.False(t, got.Archived)
}

func TestUpsertMessageIsIdempotent(t *testing.T) {
	e, db, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice, Name: "Alice"})

	first := provider.Message{ID: "m1", ChatID: alice, Body: "live", Timestamp: now.Add(-time.Minute)}
	ok, err := e.UpsertMessage(ctx, fake, first)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same id seen again through backfill with different content.
	second := first
	second.Body = "backfilled"
	ok, err = e.UpsertMessage(ctx, fake, second)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := db.CountMessages(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := db.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "live", got.Body)
}

func TestUpsertMessageAdvancesChatActivity(t *testing.T) {
	e, db, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice, LastActivity: now.Add(-time.Hour)})

	_, err := e.UpsertMessage(ctx, fake, provider.Message{ID: "new", ChatID: alice, Timestamp: now})
	require.NoError(t, err)
	// Older message written later still wins: last write is authoritative.
	_, err = e.UpsertMessage(ctx, fake, provider.Message{ID: "old", ChatID: alice, Timestamp: now.Add(-2 * time.Hour)})
	require.NoError(t, err)

	chat, err := db.GetChat(ctx, alice)
	require.NoError(t, err)
	assert.True(t, chat.LastActivity.Equal(now.Add(-2*time.Hour)), "last activity = %v", chat.LastActivity)
}

func TestUpsertMessageSenderResolution(t *testing.T) {
	e, db, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice})
	fake.Contacts[alice] = provider.Contact{PushName: "Ali", Name: "Alice"}

	_, err := e.UpsertMessage(ctx, fake, provider.Message{ID: "out", ChatID: alice, FromMe: true, Timestamp: now})
	require.NoError(t, err)
	_, err = e.UpsertMessage(ctx, fake, provider.Message{ID: "in", ChatID: alice, Timestamp: now})
	require.NoError(t, err)
	_, err = e.UpsertMessage(ctx, fake, provider.Message{ID: "anon", ChatID: alice, Sender: "777@lid", Timestamp: now})
	require.NoError(t, err)

	out, _ := db.GetMessage(ctx, "out")
	assert.Equal(t, "me@s.whatsapp.net", out.SenderID)
	assert.Equal(t, "Me", out.SenderName)

	in, _ := db.GetMessage(ctx, "in")
	assert.Equal(t, alice, in.SenderID)
	assert.Equal(t, "Ali", in.SenderName)

	anon, _ := db.GetMessage(ctx, "anon")
	assert.Equal(t, "777@lid", anon.SenderName)
}

func TestUpsertMessageMedia(t *testing.T) {
	e, db, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice})
	fake.MediaByID["voice"] = &provider.Media{Mime: "audio/ogg; codecs=opus", Data: []byte("OggS"), Duration: "3.6"}

	_, err := e.UpsertMessage(ctx, fake, provider.Message{ID: "voice", ChatID: alice, HasMedia: true, Type: "ptt", Timestamp: now})
	require.NoError(t, err)

	got, err := db.GetMessage(ctx, "voice")
	require.NoError(t, err)
	require.NotNil(t, got.Media)
	assert.Equal(t, "audio/ogg", got.Media.Mime)
	assert.Equal(t, int64(4), got.Media.Size)
	require.NotNil(t, got.Media.Duration)
	assert.Equal(t, 4, *got.Media.Duration)

	_, hit := e.cache.Get("voice")
	assert.True(t, hit)
}

func TestUpsertMessageMediaCacheAvoidsDownload(t *testing.T) {
	e, _, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice})
	e.cache.Put("cached", store.Media{Mime: "image/png", Data: []byte{1}})

	_, err := e.UpsertMessage(ctx, fake, provider.Message{ID: "cached", ChatID: alice, HasMedia: true, Timestamp: now})
	require.NoError(t, err)
	_, _, downloads, _ := fake.Stats()
	assert.Zero(t, downloads)
}

func TestUpsertMessageMediaFailureIsNonFatal(t *testing.T) {
	e, db, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice})
	fake.DownloadErr = errors.New("cdn gone")

	ok, err := e.UpsertMessage(ctx, fake, provider.Message{ID: "img", ChatID: alice, HasMedia: true, Type: "image", Timestamp: now})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := db.GetMessage(ctx, "img")
	require.NoError(t, err)
	assert.True(t, got.HasMedia)
	assert.Nil(t, got.Media)
	assert.Zero(t, e.cache.Len(), "failed downloads must not be cached")
}

func TestUpsertMessageIgnoresFilteredChats(t *testing.T) {
	e, db, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()

	ok, err := e.UpsertMessage(ctx, fake, provider.Message{ID: "g1", ChatID: "team@g.us", Timestamp: now})
	require.NoError(t, err)
	assert.False(t, ok)
	total, _ := db.MessageCount(ctx)
	assert.Zero(t, total)
}

func TestSyncChatsSkipsFiltered(t *testing.T) {
	e, db, fake := newEngine(t, DefaultOptions())
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice})
	fake.AddChat(provider.Chat{ID: "team@g.us", IsGroup: true})
	fake.AddChat(provider.Chat{ID: "status@broadcast"})

	n, err := e.SyncChats(ctx, fake)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, _ := db.ChatCount(ctx)
	assert.Equal(t, 1, count)
}

func TestBackfillRespectsWindow(t *testing.T) {
	opts := DefaultOptions()
	opts.BackfillWindow = 24 * time.Hour
	e, db, fake := newEngine(t, opts)
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice, LastActivity: now.Add(-time.Hour)},
		provider.Message{ID: "ancient", ChatID: alice, Timestamp: now.Add(-48 * time.Hour)},
		provider.Message{ID: "recent2", ChatID: alice, Timestamp: now.Add(-time.Hour)},
		provider.Message{ID: "recent1", ChatID: alice, Timestamp: now.Add(-2 * time.Hour)},
	)

	n, err := e.Backfill(ctx, fake, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, _ := db.HasMessage(ctx, "ancient")
	assert.False(t, ok, "message outside the window was stored")

	chat, err := db.GetChat(ctx, alice)
	require.NoError(t, err)
	assert.True(t, chat.LastActivity.Equal(now.Add(-time.Hour)))
}

func TestBackfillSkipsInactiveChatButUpsertsIt(t *testing.T) {
	opts := DefaultOptions()
	opts.BackfillWindow = 24 * time.Hour
	e, db, fake := newEngine(t, opts)
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice, LastActivity: now.Add(-72 * time.Hour)},
		provider.Message{ID: "m", ChatID: alice, Timestamp: now.Add(-72 * time.Hour)})

	n, err := e.Backfill(ctx, fake, alice)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, _, _, fetches := fake.Stats()
	assert.Zero(t, fetches)

	_, err = db.GetChat(ctx, alice)
	assert.NoError(t, err)
}

func TestBackfillCeiling(t *testing.T) {
	opts := DefaultOptions()
	opts.BackfillLimit = 2
	e, db, fake := newEngine(t, opts)
	ctx := context.Background()
	fake.AddChat(provider.Chat{ID: alice},
		provider.Message{ID: "a", Timestamp: now.Add(-3 * time.Minute)},
		provider.Message{ID: "b", Timestamp: now.Add(-2 * time.Minute)},
		provider.Message{ID: "c", Timestamp: now.Add(-1 * time.Minute)},
	)

	n, err := e.Backfill(ctx, fake, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, _ := db.CountMessages(ctx, alice)
	assert.Equal(t, 2, count)
}

func TestNormalizeAck(t *testing.T) {
	tests := []struct {
		in   any
		want *int
	}{
		{3, intp(3)},
		{int64(-1), intp(-1)},
		{uint8(2), intp(2)},
		{1.0, intp(1)},
		{"4", intp(4)},
		{"", nil},
		{"read", nil},
		{nil, nil},
		{struct{}{}, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAck(tt.in), "input %#v", tt.in)
	}
}

func intp(n int) *int { return &n }
