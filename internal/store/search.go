package store

import (
	"context"
	"strings"
	"unicode/utf8"
)

const snippetRadius = 32

// SearchMessages returns messages whose body contains query, newest
// first. chatID narrows the search to one chat when non-empty.
func (db *DB) SearchMessages(ctx context.Context, query, chatID string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + messageColumns + ` FROM messages WHERE body LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if chatID != "" {
		q += ` AND chat_id = ?`
		args = append(args, chatID)
	}
	q += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	msgs, err := db.queryMessages(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(msgs))
	for _, m := range msgs {
		results = append(results, SearchResult{Message: m, Snippet: snippet(m.Body, query)})
	}
	return results, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet marks the first case-insensitive occurrence of term in body
// with << >> and trims the surrounding text.
func snippet(body, term string) string {
	lower := strings.ToLower(body)
	if len(lower) != len(body) {
		lower = body
	}
	idx := strings.Index(lower, strings.ToLower(term))
	if idx < 0 || idx+len(term) > len(body) {
		return body
	}
	end := idx + len(term)

	start := idx
	for i := 0; i < snippetRadius && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(body[:start])
		start -= size
	}
	stop := end
	for i := 0; i < snippetRadius && stop < len(body); i++ {
		_, size := utf8.DecodeRuneInString(body[stop:])
		stop += size
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(body[start:idx])
	b.WriteString("<<")
	b.WriteString(body[idx:end])
	b.WriteString(">>")
	b.WriteString(body[end:stop])
	if stop < len(body) {
		b.WriteString("...")
	}
	return b.String()
}
