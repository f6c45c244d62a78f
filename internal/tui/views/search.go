package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/rivo/tview"
)

// Snippets mark the matched text with <<...>>.
var highlight = strings.NewReplacer("<<", "[yellow::b]", ">>", "[-::-]")

// SearchView is a query line above a table of matching messages.
type SearchView struct {
	*tview.Flex
	input   *tview.InputField
	table   *tview.Table
	hits    []wppv1.SearchResult
	lastQry string
}

// NewSearchView returns an empty search page.
func NewSearchView() *SearchView {
	sv := &SearchView{
		input: tview.NewInputField().SetLabel(" / ").SetFieldWidth(0).
			SetPlaceholder("words to find in stored messages"),
		table: tview.NewTable().SetSelectable(true, false),
	}
	sv.table.SetBorder(true).SetTitle(" Search ")
	sv.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(sv.input, 1, 0, true).
		AddItem(sv.table, 0, 1, false)
	return sv
}

// SetOnQuery registers fn for Enter in the query line.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		sv.lastQry = sv.input.GetText()
		fn(sv.lastQry)
	})
}

// SetOnOpen registers fn for choosing a result; it gets the chat id.
func (sv *SearchView) SetOnOpen(fn func(chatID string)) {
	sv.table.SetSelectedFunc(func(int, int) {
		if chatID, _ := sv.SelectedResult(); chatID != "" {
			fn(chatID)
		}
	})
}

// Update shows results, labelling each with nameOf(chat id).
func (sv *SearchView) Update(results []wppv1.SearchResult, nameOf func(chatID string) string) {
	sv.hits = results
	sv.table.Clear()
	sv.table.SetTitle(fmt.Sprintf(" Search %q: %d ", sv.lastQry, len(results)))
	if len(results) == 0 {
		sv.table.SetCell(0, 0, tview.NewTableCell(" no matches").
			SetTextColor(tview.Styles.TertiaryTextColor).SetSelectable(false))
		return
	}
	for row, r := range results {
		name := sanitizeForTerminal(nameOf(r.Message.ChatID))
		snippet := highlight.Replace(tview.Escape(sanitizeForTerminal(oneLine(r.Snippet))))
		sv.table.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(name)).SetMaxWidth(24))
		sv.table.SetCell(row, 1, tview.NewTableCell(formatTimestamp(r.Message.TimestampMs)).
			SetTextColor(tview.Styles.SecondaryTextColor))
		sv.table.SetCell(row, 2, tview.NewTableCell(snippet).SetExpansion(1))
	}
	sv.table.Select(0, 0)
}

// SelectedResult returns the chat and message id under the cursor.
func (sv *SearchView) SelectedResult() (chatID, msgID string) {
	row, _ := sv.table.GetSelection()
	if row < 0 || row >= len(sv.hits) {
		return "", ""
	}
	m := sv.hits[row].Message
	return m.ChatID, m.ID
}

func (sv *SearchView) Input() *tview.InputField { return sv.input }
func (sv *SearchView) Results() *tview.Table     { return sv.table }

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
