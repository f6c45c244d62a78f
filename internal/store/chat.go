package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/wppbridge/internal/common"
)

const chatColumns = `id, name, number, is_group, unread_count, archived, muted, last_activity, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(r rowScanner) (*Chat, error) {
	var (
		c            Chat
		number       sql.NullString
		lastActivity sql.NullInt64
		created      int64
		updated      int64
	)
	if err := r.Scan(&c.ID, &c.Name, &number, &c.IsGroup, &c.UnreadCount, &c.Archived, &c.Muted,
		&lastActivity, &created, &updated); err != nil {
		return nil, err
	}
	c.Number = number.String
	c.LastActivity = fromMillis(lastActivity)
	c.CreatedAt = fromMillis(sql.NullInt64{Int64: created, Valid: true})
	c.UpdatedAt = fromMillis(sql.NullInt64{Int64: updated, Valid: true})
	return &c, nil
}

// GetChat returns a chat by id, or common.ErrNotFound.
func (db *DB) GetChat(ctx context.Context, id string) (*Chat, error) {
	c, err := scanChat(db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

// ListChats returns every chat, most recently active first. Chats with
// unknown activity sort last.
func (db *DB) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+chatColumns+` FROM chats
		ORDER BY last_activity IS NULL, last_activity DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// ChatCount returns the number of persisted chats.
func (db *DB) ChatCount(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats`).Scan(&n)
	return n, err
}

// UpsertChat writes every mutable field of c. The id and created_at of an
// existing row are preserved.
func (db *DB) UpsertChat(ctx context.Context, c *Chat) error {
	now := db.now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO chats (id, name, number, is_group, unread_count, archived, muted, last_activity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			number = excluded.number,
			is_group = excluded.is_group,
			unread_count = excluded.unread_count,
			archived = excluded.archived,
			muted = excluded.muted,
			last_activity = excluded.last_activity,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, nullString(c.Number), c.IsGroup, c.UnreadCount, c.Archived, c.Muted,
		toMillis(c.LastActivity), now, now)
	if err != nil {
		return fmt.Errorf("upsert chat %s: %w", c.ID, err)
	}
	return nil
}

// UpdateChat applies a partial update to an existing chat. It returns
// common.ErrNotFound when no chat has the given id.
func (db *DB) UpdateChat(ctx context.Context, id string, p ChatPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{db.now().UnixMilli()}
	if p.LastActivity != nil {
		sets = append(sets, "last_activity = ?")
		args = append(args, toMillis(*p.LastActivity))
	}
	if p.UnreadCount != nil {
		sets = append(sets, "unread_count = ?")
		args = append(args, *p.UnreadCount)
	}
	args = append(args, id)

	res, err := db.ExecContext(ctx, `UPDATE chats SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update chat %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chat %s: %w", id, common.ErrNotFound)
	}
	return nil
}
