package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/matheus3301/wppbridge/internal/config"
	"github.com/matheus3301/wppbridge/internal/lock"
	"github.com/matheus3301/wppbridge/internal/provider"
	"github.com/matheus3301/wppbridge/internal/provider/providertest"
	"github.com/matheus3301/wppbridge/internal/session"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const alice = "5511999@s.whatsapp.net"

// fakes hands out one providertest.Fake per connection context.
type fakes struct {
	mu      gosync.Mutex
	clients []*providertest.Fake
}

func (f *fakes) factory(context.Context) (provider.Client, error) {
	c := providertest.New()
	c.Identity = provider.Identity{ID: "5511000@s.whatsapp.net", Number: "5511000", Name: "Me"}
	c.AddChat(provider.Chat{ID: alice, Name: "Alice", UnreadCount: 2})
	f.mu.Lock()
	f.clients = append(f.clients, c)
	f.mu.Unlock()
	return c, nil
}

func (f *fakes) latest() *providertest.Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

type harness struct {
	paths   session.Paths
	socket  string
	fakes   *fakes
	app     *fxtest.App
	session *wppv1.SessionServiceClient
	chat    *wppv1.ChatServiceClient
}

func startDaemon(t *testing.T) *harness {
	t.Helper()
	// Use a short path to avoid macOS 104-char Unix socket limit.
	tmpDir, err := os.MkdirTemp("/tmp", "wpp-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	h := &harness{
		paths: session.At(filepath.Join(tmpDir, "s")),
		fakes: &fakes{},
	}
	h.paths.Socket = filepath.Join(tmpDir, "d.sock")
	h.socket = h.paths.Socket
	cfg := config.Default()
	cfg.Log.Level = "debug"
	h.app = fxtest.New(t, fx.NopLogger, Module(Params{
		SessionName: "test",
		Config:      cfg,
		Paths:       h.paths,
		Factory:     h.fakes.factory,
	}))
	h.app.RequireStart()

	conn, err := grpc.NewClient("unix://"+h.socket, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	h.session = wppv1.NewSessionServiceClient(conn)
	h.chat = wppv1.NewChatServiceClient(conn)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) status(t *testing.T) *wppv1.SessionStatus {
	t.Helper()
	st, err := h.session.GetStatus(context.Background(), &wppv1.GetStatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	return st
}

func (h *harness) waitStatus(t *testing.T, want string) *wppv1.SessionStatus {
	t.Helper()
	var st *wppv1.SessionStatus
	waitFor(t, "status "+want, func() bool {
		st = h.status(t)
		return st.Status == want
	})
	return st
}

func TestDaemonLifecycle(t *testing.T) {
	h := startDaemon(t)
	ctx := context.Background()

	// The daemon connects on its own at start.
	st := h.waitStatus(t, wppv1.StatusConnecting)
	if st.Session != "test" || st.Ready {
		t.Fatalf("connecting status = %+v", st)
	}

	// Not ready yet: commands that need the session are refused.
	_, err := h.chat.SendMessage(ctx, &wppv1.SendMessageRequest{To: alice, Body: "early"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("SendMessage before ready: code = %v, want FailedPrecondition", status.Code(err))
	}

	fake := h.fakes.latest()
	fake.SetOnline(true)
	fake.Emit(provider.Event{Kind: provider.EventReady})

	st = h.waitStatus(t, wppv1.StatusConnected)
	if !st.Ready || st.Number != "5511000" {
		t.Errorf("connected status = %+v", st)
	}

	// Initial chat sync fills the store.
	waitFor(t, "chat sync", func() bool {
		resp, err := h.chat.ListChats(ctx, &wppv1.ListChatsRequest{})
		return err == nil && len(resp.Chats) == 1
	})

	fake.Emit(provider.Event{Kind: provider.EventMessage, Message: &provider.Message{
		ID: "m1", ChatID: alice, Sender: alice, Body: "hello world", Timestamp: time.Now(), Type: "text",
	}})
	waitFor(t, "message stored", func() bool {
		resp, err := h.chat.GetMessages(ctx, &wppv1.GetMessagesRequest{ChatID: alice})
		return err == nil && len(resp.Messages) == 1
	})

	search, err := h.chat.SearchMessages(ctx, &wppv1.SearchMessagesRequest{Query: "hello"})
	if err != nil {
		t.Fatalf("SearchMessages: %v", err)
	}
	if len(search.Results) != 1 || search.Results[0].Message.ID != "m1" {
		t.Errorf("search results = %+v", search.Results)
	}

	sent, err := h.chat.SendMessage(ctx, &wppv1.SendMessageRequest{To: alice, Body: "hi back"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !sent.Message.FromMe || sent.Message.Body != "hi back" || fake.SentCount() != 1 {
		t.Errorf("sent = %+v, provider saw %d sends", sent.Message, fake.SentCount())
	}

	if _, err := h.chat.MarkRead(ctx, &wppv1.MarkReadRequest{ChatID: alice}); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	got, err := h.chat.GetChat(ctx, &wppv1.GetChatRequest{ChatID: alice})
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got.Chat.UnreadCount != 0 {
		t.Errorf("unread after MarkRead = %d", got.Chat.UnreadCount)
	}

	h.app.RequireStop()

	if _, err := os.Stat(h.socket); !os.IsNotExist(err) {
		t.Errorf("socket still present after stop: %v", err)
	}
	if !fake.IsClosed() {
		t.Error("provider client not closed on stop")
	}
	if _, held, err := lock.Inspect(h.paths.Lock); err != nil || held {
		t.Errorf("lock still held after stop: %v", err)
	}
	// The session lock is free again.
	lk, err := lock.Acquire(h.paths.Lock)
	if err != nil {
		t.Fatalf("lock after stop: %v", err)
	}
	_ = lk.Release()
}

func TestStatusCarriesQR(t *testing.T) {
	h := startDaemon(t)
	h.waitStatus(t, wppv1.StatusConnecting)

	h.fakes.latest().Emit(provider.Event{Kind: provider.EventQR, Code: "2@pairing-ref"})

	var st *wppv1.SessionStatus
	waitFor(t, "rendered qr", func() bool {
		st = h.status(t)
		return st.QRImage != ""
	})
	if st.Status != wppv1.StatusQR || st.QRCode != "2@pairing-ref" {
		t.Errorf("status = %q, qr code = %q", st.Status, st.QRCode)
	}
	if !strings.HasPrefix(st.QRImage, "data:image/png;base64,") {
		t.Errorf("qr image = %.40q", st.QRImage)
	}
}

func TestSecondDaemonRefused(t *testing.T) {
	h := startDaemon(t)

	second := h.paths
	second.Socket += "2"
	app := fx.New(fx.NopLogger, Module(Params{
		SessionName: "test",
		Paths:       second,
		Factory:     h.fakes.factory,
	}))
	if err := app.Err(); err == nil || !strings.Contains(err.Error(), "session lock held") {
		t.Fatalf("second daemon err = %v, want lock held", err)
	}

	// The running daemon keeps serving.
	if st := h.status(t); st.Session != "test" {
		t.Errorf("session = %q", st.Session)
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{SessionName: "fxtest"})); err != nil {
		t.Fatalf("module graph invalid: %v", err)
	}
}
