package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
)

func printJSON(ctx *cli.Context, v any) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(ctx *cli.Context, st *wppv1.SessionStatus) error {
	if ctx.Bool("json") {
		return printJSON(ctx, st)
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "Session:  %s\n", st.Session)
	fmt.Fprintf(w, "Status:   %s\n", st.Status)
	fmt.Fprintf(w, "Ready:    %v\n", st.Ready)
	if st.Number != "" {
		fmt.Fprintf(w, "Account:  +%s %s\n", st.Number, st.Name)
	}
	fmt.Fprintf(w, "Chats:    %d\n", st.ChatCount)
	fmt.Fprintf(w, "Messages: %d\n", st.MessageCount)
	fmt.Fprintf(w, "Uptime:   %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
	if st.QRCode != "" {
		printQR(w, st.QRCode)
	}
	return nil
}

// printQR draws code as terminal block art for scanning.
func printQR(w io.Writer, code string) {
	qr, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		fmt.Fprintf(w, "QR: %s\n", code)
		return
	}
	fmt.Fprintln(w, "Scan with WhatsApp > Linked devices:")
	fmt.Fprint(w, qr.ToSmallString(false))
}

func printChat(w io.Writer, c wppv1.Chat) {
	name := c.Name
	if name == "" {
		name = c.ID
	}
	line := fmt.Sprintf("%-40s %s", c.ID, name)
	if c.UnreadCount > 0 {
		line += fmt.Sprintf(" (%d unread)", c.UnreadCount)
	}
	if c.LastActivityMs > 0 {
		line += "  " + time.UnixMilli(c.LastActivityMs).Format("2006-01-02 15:04")
	}
	fmt.Fprintln(w, line)
}

func printMessage(w io.Writer, m wppv1.Message) {
	sender := m.SenderName
	switch {
	case m.FromMe:
		sender = "me"
	case sender == "":
		sender = m.SenderID
	}
	body := m.Body
	if m.HasMedia && body == "" {
		body = "<" + m.Type + ">"
	}
	ts := time.UnixMilli(m.TimestampMs).Format("2006-01-02 15:04")
	fmt.Fprintf(w, "[%s] %s %s: %s\n", ts, m.ID, sender, body)
}

func printEvent(w io.Writer, evt *wppv1.Event) {
	ts := time.UnixMilli(evt.TimestampMs).Format("15:04:05")
	detail := evt.Detail
	switch {
	case evt.Status != "":
		detail = evt.Status
	case evt.Message != nil:
		detail = evt.Message.ChatID + " " + evt.Message.Body
	case evt.ChatID != "":
		detail = evt.ChatID
	case evt.QRCode != "":
		detail = "new pairing code"
	}
	fmt.Fprintf(w, "%s %-24s %s\n", ts, evt.Kind, detail)
}
