package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops runes tcell cannot lay out in a single cell
// run: emoji modifiers and joiners (so a toned thumbs-up renders as the
// plain 2-cell glyph), variation selectors, invalid UTF-8 and control
// characters other than newline and tab, which message bodies from other
// clients occasionally carry.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if dropRune(r) {
			return -1
		}
		return r
	}, s)
}

func dropRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return false
	case r == unicode.ReplacementChar:
		return true
	case unicode.IsControl(r):
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tone modifiers
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
		return true
	}
	return false
}
