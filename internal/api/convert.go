package api

import (
	"time"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/matheus3301/wppbridge/internal/bridge"
	"github.com/matheus3301/wppbridge/internal/bus"
	"github.com/matheus3301/wppbridge/internal/conn"
	"github.com/matheus3301/wppbridge/internal/status"
	"github.com/matheus3301/wppbridge/internal/store"
)

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func messageToWire(m store.Message) wppv1.Message {
	out := wppv1.Message{
		ID:          m.ID,
		ChatID:      m.ChatID,
		Body:        m.Body,
		FromMe:      m.FromMe,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		TimestampMs: millis(m.Timestamp),
		Type:        m.Type,
		HasMedia:    m.HasMedia,
		Ack:         m.Ack,
	}
	if m.Media != nil {
		out.Media = &wppv1.Media{
			Mime:        m.Media.Mime,
			Data:        m.Media.Data,
			Filename:    m.Media.Filename,
			Size:        m.Media.Size,
			DurationSec: m.Media.Duration,
		}
	}
	return out
}

func chatToWire(sum bridge.ChatSummary) wppv1.Chat {
	c := sum.Chat
	out := wppv1.Chat{
		ID:             c.ID,
		Name:           c.Name,
		Number:         c.Number,
		IsGroup:        c.IsGroup,
		UnreadCount:    c.UnreadCount,
		Archived:       c.Archived,
		Muted:          c.Muted,
		LastActivityMs: millis(c.LastActivity),
	}
	if sum.LastMessage != nil {
		m := messageToWire(*sum.LastMessage)
		out.LastMessage = &m
	}
	return out
}

func statusToWire(session string, uptime time.Duration, info bridge.StatusInfo) *wppv1.SessionStatus {
	out := &wppv1.SessionStatus{
		Session:      session,
		Status:       string(info.Status),
		Number:       info.Number,
		Name:         info.Name,
		Ready:        info.Ready,
		ChatCount:    info.ChatCount,
		MessageCount: info.MessageCount,
		UptimeMs:     uptime.Milliseconds(),
	}
	if info.QR != nil {
		out.QRCode = info.QR.Code
		out.QRImage = info.QR.Image
		out.QRGeneratedAtMs = millis(info.QR.GeneratedAt)
	}
	return out
}

// eventToWire flattens a bus event. Payload shapes are fixed per kind.
func eventToWire(evt bus.Event) *wppv1.Event {
	out := &wppv1.Event{
		ID:          evt.ID,
		Kind:        evt.Kind,
		TimestampMs: millis(evt.Timestamp),
	}
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		out.Status = string(p.To)
	case conn.QR:
		out.QRCode = p.Code
		out.QRImage = p.Image
	case *store.Message:
		m := messageToWire(*p)
		out.Message = &m
		out.ChatID = p.ChatID
	case string:
		if evt.Kind == bus.KindChatUpdated {
			out.ChatID = p
		} else {
			out.Detail = p
		}
	case int:
		out.Detail = itoa(p)
	}
	return out
}
