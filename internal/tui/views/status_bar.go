package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays persistent session status.
type StatusBar struct {
	*tview.TextView
	session string
	status  string
	number  string
	ready   bool
	hints   []string
	flash   string
	alert   bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetStatus updates the status display.
func (sb *StatusBar) SetStatus(status string) {
	sb.status = status
	sb.render()
}

// SetReady updates the readiness indicator and the account number.
func (sb *StatusBar) SetReady(ready bool, number string) {
	sb.ready = ready
	sb.number = number
	sb.render()
}

// SetHints sets the key hints shown for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message; alert shows it in red.
func (sb *StatusBar) SetFlash(msg string, alert bool) {
	sb.flash = msg
	sb.alert = alert
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	readyIcon := "[red]o[-]"
	if sb.ready {
		readyIcon = "[green]*[-]"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s %s", sb.session, readyIcon, sb.status)
	if sb.number != "" {
		line += " +" + sb.number
	}
	line += " | " + clock
	if len(sb.hints) > 0 {
		line += " | [::d]" + strings.Join(sb.hints, " ") + "[-:-:-]"
	}
	if sb.flash != "" {
		color := "yellow"
		if sb.alert {
			color = "red"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", color, tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
