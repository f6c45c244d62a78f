package views

import (
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rivo/tview"
)

// AuthView shows the pairing QR code while the session waits for a scan.
type AuthView struct {
	*tview.TextView
	code string
}

// NewAuthView creates a new auth view.
func NewAuthView() *AuthView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true).SetTitle(" Link device ")

	return &AuthView{TextView: tv}
}

// ShowQR draws code unless it is already on screen. generatedAt dates the
// code; the phone refuses codes older than about a minute, and the daemon
// pushes a fresh one before then.
func (av *AuthView) ShowQR(code string, generatedAt time.Time) {
	if code == av.code {
		return
	}
	av.code = code
	av.Clear()

	issued := ""
	if !generatedAt.IsZero() {
		issued = " (issued " + generatedAt.Local().Format("15:04:05") + ")"
	}
	_, _ = fmt.Fprintf(av, "\nOpen WhatsApp > Linked devices > Link a device%s\n\n%s\n[::d]Esc: back to chats  L: restart pairing",
		issued, renderQR(code))
}

// ShowMessage replaces the QR with a status line.
func (av *AuthView) ShowMessage(msg string) {
	av.code = ""
	av.Clear()
	_, _ = fmt.Fprintf(av, "\n\n%s", tview.Escape(msg))
}

// renderQR draws code with half blocks, two modules per terminal line,
// inverted so dark modules print as background on a dark terminal.
func renderQR(code string) string {
	qr, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return "(QR generation failed: " + err.Error() + ")"
	}
	bitmap := qr.Bitmap()

	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := !bitmap[y][x]
			bot := y+1 < len(bitmap) && !bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
