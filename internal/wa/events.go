package wa

import (
	"time"

	"github.com/matheus3301/wppbridge/internal/provider"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// handle translates whatsmeow events into provider events and keeps the
// history mirror current.
func (a *Adapter) handle(raw any) {
	switch evt := raw.(type) {
	case *events.Connected:
		a.logger.Info("WhatsApp connected")
		a.emit(provider.Event{Kind: provider.EventReady})
	case *events.PairSuccess:
		a.logger.Info("pairing succeeded", zap.String("jid", evt.ID.String()))
		a.emit(provider.Event{Kind: provider.EventAuthenticated})
	case *events.Disconnected:
		a.logger.Warn("WhatsApp disconnected")
		a.emit(provider.Event{Kind: provider.EventDisconnected, Reason: "connection lost"})
	case *events.StreamReplaced:
		a.logger.Warn("stream replaced by another client")
		a.emit(provider.Event{Kind: provider.EventDisconnected, Reason: "stream replaced"})
	case *events.LoggedOut:
		a.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		a.emit(provider.Event{Kind: provider.EventAuthFailure, Reason: "logged out: " + evt.Reason.String()})
	case *events.ConnectFailure:
		a.emit(provider.Event{Kind: provider.EventAuthFailure, Reason: evt.Reason.String() + " " + evt.Message})
	case *events.TemporaryBan:
		a.emit(provider.Event{Kind: provider.EventAuthFailure, Reason: evt.String()})
	case *events.ClientOutdated:
		a.emit(provider.Event{Kind: provider.EventAuthFailure, Reason: "client outdated"})
	case *events.Message:
		a.handleMessage(evt)
	case *events.HistorySync:
		a.handleHistorySync(evt.Data)
	}
}

func (a *Adapter) handleMessage(evt *events.Message) {
	if evt.Message == nil || skippable(evt.Message) {
		return
	}
	m := ParseMessage(evt)
	if !a.mirror.add(m, !m.FromMe) {
		return
	}
	a.emit(provider.Event{Kind: provider.EventMessage, Message: &m})
}

func (a *Adapter) handleHistorySync(data *waHistorySync.HistorySync) {
	if data == nil {
		return
	}
	now := time.Now()
	var chatIDs []string
	for _, conv := range data.GetConversations() {
		if conv.GetID() == "" {
			continue
		}
		chatID := normalizeJID(conv.GetID())
		chat := provider.Chat{
			ID:          chatID,
			Name:        conv.GetName(),
			UnreadCount: int(conv.GetUnreadCount()),
			Archived:    conv.GetArchived(),
		}
		if ts := conv.GetConversationTimestamp(); ts > 0 {
			chat.LastActivity = time.Unix(int64(ts), 0)
		}
		if end := conv.GetMuteEndTime(); end > 0 {
			chat.Muted = time.Unix(int64(end), 0).After(now)
		}
		a.mirror.mergeChat(chat)

		for _, hm := range conv.GetMessages() {
			if m, ok := parseWebMessage(chatID, hm.GetMessage()); ok {
				a.mirror.add(m, false)
			}
		}
		chatIDs = append(chatIDs, chatID)
	}
	a.logger.Info("history sync received",
		zap.String("type", data.GetSyncType().String()),
		zap.Int("conversations", len(chatIDs)))
	if len(chatIDs) > 0 {
		a.emit(provider.Event{Kind: provider.EventHistorySynced, ChatIDs: chatIDs})
	}
}

// pumpQR forwards pairing codes until the QR channel closes.
func (a *Adapter) pumpQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			a.emit(provider.Event{Kind: provider.EventQR, Code: item.Code})
		case "success":
			// PairSuccess reports authentication.
		case "timeout":
			a.emit(provider.Event{Kind: provider.EventAuthFailure, Reason: "qr timeout"})
		default:
			reason := item.Event
			if item.Error != nil {
				reason = item.Error.Error()
			}
			a.emit(provider.Event{Kind: provider.EventAuthFailure, Reason: reason})
		}
	}
}
