package wa

import (
	"testing"
	"time"

	"github.com/matheus3301/wppbridge/internal/provider"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// detached returns an adapter without a whatsmeow client; only event
// translation and the mirror are usable.
func detached(t *testing.T) *Adapter {
	t.Helper()
	a := newAdapter(nil, zap.NewNop(), nil)
	t.Cleanup(a.Close)
	return a
}

func next(t *testing.T, a *Adapter) provider.Event {
	t.Helper()
	select {
	case evt := <-a.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for provider event")
	}
	return provider.Event{}
}

func TestHandleSessionEvents(t *testing.T) {
	tests := []struct {
		name string
		evt  any
		want provider.EventKind
	}{
		{"connected", &events.Connected{}, provider.EventReady},
		{"pair success", &events.PairSuccess{}, provider.EventAuthenticated},
		{"disconnected", &events.Disconnected{}, provider.EventDisconnected},
		{"stream replaced", &events.StreamReplaced{}, provider.EventDisconnected},
		{"logged out", &events.LoggedOut{}, provider.EventAuthFailure},
		{"connect failure", &events.ConnectFailure{}, provider.EventAuthFailure},
		{"client outdated", &events.ClientOutdated{}, provider.EventAuthFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := detached(t)
			a.handle(tt.evt)
			if got := next(t, a); got.Kind != tt.want {
				t.Errorf("kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

func TestHandleMessage(t *testing.T) {
	a := detached(t)
	evt := &events.Message{
		Info: types.MessageInfo{
			ID:        "m1",
			Timestamp: time.Unix(100, 0),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "5511", Server: types.DefaultUserServer},
				Sender: types.JID{User: "5511", Server: types.DefaultUserServer},
			},
		},
		Message: &waE2E.Message{Conversation: proto.String("hi")},
	}

	a.handle(evt)
	got := next(t, a)
	if got.Kind != provider.EventMessage || got.Message == nil || got.Message.ID != "m1" {
		t.Fatalf("unexpected event %+v", got)
	}

	// Redelivery is dropped by the mirror.
	a.handle(evt)
	select {
	case e := <-a.Events():
		t.Fatalf("duplicate delivered: %+v", e)
	default:
	}

	chat, ok := a.mirror.chat("5511@s.whatsapp.net")
	if !ok || chat.UnreadCount != 1 {
		t.Errorf("mirror chat = %+v, want one unread", chat)
	}
}

func TestHandleMessageSkipsProtocol(t *testing.T) {
	a := detached(t)
	a.handle(&events.Message{
		Info:    types.MessageInfo{ID: "p1", MessageSource: types.MessageSource{Chat: types.JID{User: "1", Server: types.DefaultUserServer}}},
		Message: &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{}},
	})
	select {
	case e := <-a.Events():
		t.Fatalf("protocol message delivered: %+v", e)
	default:
	}
}

func TestHandleHistorySync(t *testing.T) {
	a := detached(t)
	msgTS := uint64(1700000000)
	a.handle(&events.HistorySync{
		Data: &waHistorySync.HistorySync{
			SyncType: waHistorySync.HistorySync_INITIAL_BOOTSTRAP.Enum(),
			Conversations: []*waHistorySync.Conversation{
				{
					// Device-suffix JID.
					ID:                    proto.String("558592403672:0@s.whatsapp.net"),
					Name:                  proto.String("Eric"),
					UnreadCount:           proto.Uint32(2),
					Archived:              proto.Bool(true),
					ConversationTimestamp: proto.Uint64(msgTS),
					Messages: []*waHistorySync.HistorySyncMsg{
						{
							Message: &waWeb.WebMessageInfo{
								Key: &waCommon.MessageKey{
									ID:        proto.String("hm1"),
									FromMe:    proto.Bool(false),
									RemoteJID: proto.String("558592403672:0@s.whatsapp.net"),
								},
								MessageTimestamp: &msgTS,
								Message:          &waE2E.Message{Conversation: proto.String("hello")},
							},
						},
					},
				},
				{ID: proto.String("")},
			},
		},
	})

	got := next(t, a)
	if got.Kind != provider.EventHistorySynced {
		t.Fatalf("kind = %s, want history_synced", got.Kind)
	}
	if len(got.ChatIDs) != 1 || got.ChatIDs[0] != "558592403672@s.whatsapp.net" {
		t.Errorf("ChatIDs = %v", got.ChatIDs)
	}

	chat, ok := a.mirror.chat("558592403672@s.whatsapp.net")
	if !ok {
		t.Fatal("chat not mirrored")
	}
	if chat.Name != "Eric" || chat.UnreadCount != 2 || !chat.Archived {
		t.Errorf("chat = %+v", chat)
	}
	msgs := a.mirror.recent("558592403672@s.whatsapp.net", 10)
	if len(msgs) != 1 || msgs[0].Body != "hello" {
		t.Errorf("msgs = %+v", msgs)
	}
	if ids := a.knownChats(); len(ids) != 1 {
		t.Errorf("knownChats = %v", ids)
	}
}

func TestPumpQR(t *testing.T) {
	a := detached(t)
	ch := make(chan whatsmeow.QRChannelItem, 4)
	ch <- whatsmeow.QRChannelItem{Event: "code", Code: "2@abc"}
	ch <- whatsmeow.QRChannelItem{Event: "code", Code: "2@def"}
	ch <- whatsmeow.QRChannelItem{Event: "success"}
	ch <- whatsmeow.QRChannelItem{Event: "timeout"}
	close(ch)

	go a.pumpQR(ch)

	if e := next(t, a); e.Kind != provider.EventQR || e.Code != "2@abc" {
		t.Errorf("first = %+v", e)
	}
	if e := next(t, a); e.Code != "2@def" {
		t.Errorf("second = %+v", e)
	}
	if e := next(t, a); e.Kind != provider.EventAuthFailure || e.Reason != "qr timeout" {
		t.Errorf("timeout = %+v", e)
	}
}

func TestCloseStopsEvents(t *testing.T) {
	a := newAdapter(nil, zap.NewNop(), nil)
	a.Close()
	a.Close()
	a.handle(&events.Connected{})
	if _, ok := <-a.Events(); ok {
		t.Error("events channel should be closed")
	}
}
