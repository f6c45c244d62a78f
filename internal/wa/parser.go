package wa

import (
	"time"

	"github.com/matheus3301/wppbridge/internal/provider"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// ParseMessage normalizes a live whatsmeow message event.
func ParseMessage(evt *events.Message) provider.Message {
	m := fromE2E(evt.Message)
	m.ID = evt.Info.ID
	m.ChatID = evt.Info.Chat.ToNonAD().String()
	m.FromMe = evt.Info.IsFromMe
	m.Timestamp = evt.Info.Timestamp
	if !evt.Info.Sender.IsEmpty() {
		m.Sender = evt.Info.Sender.ToNonAD().String()
	}
	return m
}

// parseWebMessage normalizes a message delivered through history sync.
// ok is false for entries without an id or content.
func parseWebMessage(chatID string, wm *waWeb.WebMessageInfo) (provider.Message, bool) {
	key := wm.GetKey()
	if key.GetID() == "" || wm.GetMessage() == nil || skippable(wm.GetMessage()) {
		return provider.Message{}, false
	}
	m := fromE2E(wm.GetMessage())
	m.ID = key.GetID()
	m.ChatID = chatID
	m.FromMe = key.GetFromMe()
	m.Timestamp = time.Unix(int64(wm.GetMessageTimestamp()), 0)

	switch {
	case key.GetParticipant() != "":
		m.Sender = normalizeJID(key.GetParticipant())
	case wm.GetParticipant() != "":
		m.Sender = normalizeJID(wm.GetParticipant())
	case !m.FromMe:
		m.Sender = chatID
	}
	if m.FromMe {
		m.Ack = int32(wm.GetStatus())
	}
	return m, true
}

// fromE2E fills the content fields of a message. The raw payload is
// kept for media download.
func fromE2E(msg *waE2E.Message) provider.Message {
	d, _ := mediaOf(msg)
	return provider.Message{
		Body:     extractTextBody(msg),
		Type:     detectMessageType(msg),
		HasMedia: d != nil,
		Raw:      msg,
	}
}

// skippable reports messages that carry no chat content of their own.
func skippable(msg *waE2E.Message) bool {
	if msg.GetProtocolMessage() != nil || msg.GetReactionMessage() != nil {
		return true
	}
	// Group key distribution can arrive alone, with no content.
	return msg.GetSenderKeyDistributionMessage() != nil && detectMessageType(msg) == "unknown"
}

func normalizeJID(s string) string {
	jid, err := types.ParseJID(s)
	if err != nil {
		return s
	}
	return jid.ToNonAD().String()
}

type mediaMeta struct {
	mime     string
	filename string
	duration any
}

func mediaOf(msg *waE2E.Message) (whatsmeow.DownloadableMessage, mediaMeta) {
	if msg == nil {
		return nil, mediaMeta{}
	}
	switch {
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		return m, mediaMeta{mime: m.GetMimetype()}
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		return m, mediaMeta{mime: m.GetMimetype(), duration: m.GetSeconds()}
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		return m, mediaMeta{mime: m.GetMimetype(), duration: m.GetSeconds()}
	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		return m, mediaMeta{mime: m.GetMimetype(), filename: m.GetFileName()}
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		return m, mediaMeta{mime: m.GetMimetype()}
	}
	return nil, mediaMeta{}
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetCaption()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		if msg.GetAudioMessage().GetPTT() {
			return "ptt"
		}
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}
