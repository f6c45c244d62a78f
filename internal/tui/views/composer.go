package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const historySize = 20

// Composer is the text input for sending messages. Up and Down walk back
// through recently sent lines.
type Composer struct {
	*tview.InputField
	onSend  func(text string)
	history []string
	pos     int
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetPlaceholder("type a message, Enter to send, Esc to leave")

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		text := c.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		c.remember(text)
		c.onSend(text)
		c.SetText("")
	})
	input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp:
			c.recall(-1)
			return nil
		case tcell.KeyDown:
			c.recall(1)
			return nil
		}
		return ev
	})

	return c
}

// SetOnSend sets the callback when a message is sent.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

func (c *Composer) remember(text string) {
	c.history = append(c.history, text)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.pos = len(c.history)
}

// recall moves through history; stepping past the newest entry clears
// the field.
func (c *Composer) recall(step int) {
	next := c.pos + step
	if next < 0 || next > len(c.history) {
		return
	}
	c.pos = next
	if next == len(c.history) {
		c.SetText("")
		return
	}
	c.SetText(c.history[next])
}
