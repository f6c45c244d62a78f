package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/rivo/tview"
)

// MessageView displays messages for a single chat.
type MessageView struct {
	*tview.TextView
	chatName string
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv}
}

// SetChatName updates the title with the chat name.
func (mv *MessageView) SetChatName(name string) {
	mv.chatName = name
	mv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// Update renders msgs, oldest first. When more is set a hint for loading
// older messages is shown on top. keepTop holds the scroll position at
// the first line instead of following the newest message.
func (mv *MessageView) Update(msgs []wppv1.Message, more, keepTop bool) {
	mv.Clear()

	var sb strings.Builder
	if more {
		sb.WriteString("[::d]-- o: load older messages --[-:-:-]\n\n")
	}
	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		if m.FromMe {
			sender = "You"
		}

		body := tview.Escape(sanitizeForTerminal(m.Body))
		if m.HasMedia {
			label := m.Type
			if m.Media != nil && m.Media.Filename != "" {
				label += " " + m.Media.Filename
			}
			body = strings.TrimSpace("[::i]<" + tview.Escape(label) + ">[-:-:-] " + body)
		}

		ts := formatTimestamp(m.TimestampMs)
		fmt.Fprintf(&sb, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)), ts, body)
	}
	_, _ = fmt.Fprint(mv, sb.String())

	if keepTop {
		mv.ScrollToBeginning()
	} else {
		mv.ScrollToEnd()
	}
}
