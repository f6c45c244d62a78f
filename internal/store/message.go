package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matheus3301/wppbridge/internal/common"
)

const messageColumns = `id, chat_id, body, from_me, sender_id, sender_name, timestamp, type, has_media, ack,
	media_mime, media_data, media_filename, media_size, media_duration, created_at`

func scanMessage(r rowScanner) (*Message, error) {
	var (
		m                    Message
		senderID, senderName sql.NullString
		ts, created          int64
		ack                  sql.NullInt64
		mime, filename       sql.NullString
		data                 []byte
		size, duration       sql.NullInt64
	)
	if err := r.Scan(&m.ID, &m.ChatID, &m.Body, &m.FromMe, &senderID, &senderName, &ts, &m.Type,
		&m.HasMedia, &ack, &mime, &data, &filename, &size, &duration, &created); err != nil {
		return nil, err
	}
	m.SenderID = senderID.String
	m.SenderName = senderName.String
	m.Timestamp = fromMillis(sql.NullInt64{Int64: ts, Valid: true})
	m.CreatedAt = fromMillis(sql.NullInt64{Int64: created, Valid: true})
	m.Ack = intPtr(ack)
	if mime.Valid || data != nil {
		m.Media = &Media{
			Mime:     mime.String,
			Data:     data,
			Filename: filename.String,
			Size:     size.Int64,
			Duration: intPtr(duration),
		}
	}
	return &m, nil
}

// GetMessage returns a message by id, or common.ErrNotFound.
func (db *DB) GetMessage(ctx context.Context, id string) (*Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// HasMessage reports whether a message with the given id is stored.
func (db *DB) HasMessage(ctx context.Context, id string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check message: %w", err)
	}
	return true, nil
}

// InsertMessage stores m unless a message with the same id exists. It
// reports whether a row was written; existing rows are never modified.
func (db *DB) InsertMessage(ctx context.Context, m *Message) (bool, error) {
	var (
		mime, filename sql.NullString
		data           []byte
		size, duration sql.NullInt64
	)
	if m.Media != nil {
		mime = nullString(m.Media.Mime)
		filename = nullString(m.Media.Filename)
		data = m.Media.Data
		size = sql.NullInt64{Int64: m.Media.Size, Valid: true}
		duration = nullInt(m.Media.Duration)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		m.ID, m.ChatID, m.Body, m.FromMe, nullString(m.SenderID), nullString(m.SenderName),
		m.Timestamp.UnixMilli(), m.Type, m.HasMedia, nullInt(m.Ack),
		mime, data, filename, size, duration, db.now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert message %s: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMessages returns up to p.Limit messages of a chat ordered by
// (timestamp, id) in the requested direction. With p.Before set, the
// window starts strictly before that message.
func (db *DB) ListMessages(ctx context.Context, chatID string, p Page) ([]Message, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	dir := "DESC"
	if p.Order == Ascending {
		dir = "ASC"
	}

	q := `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = ?`
	args := []any{chatID}
	if p.Before != "" {
		var ts int64
		err := db.QueryRowContext(ctx, `SELECT timestamp FROM messages WHERE id = ? AND chat_id = ?`,
			p.Before, chatID).Scan(&ts)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cursor %s: %w", p.Before, common.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve cursor: %w", err)
		}
		q += ` AND (timestamp < ? OR (timestamp = ? AND id < ?))`
		args = append(args, ts, ts, p.Before)
	}
	q += ` ORDER BY timestamp ` + dir + `, id ` + dir + ` LIMIT ?`
	args = append(args, p.Limit)

	return db.queryMessages(ctx, q, args...)
}

// CountMessages returns the number of stored messages in a chat.
func (db *DB) CountMessages(ctx context.Context, chatID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&n)
	return n, err
}

// MessageCount returns the total number of stored messages.
func (db *DB) MessageCount(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// LatestMessages returns the most recent message of every chat that has
// one, keyed by chat id.
func (db *DB) LatestMessages(ctx context.Context) (map[string]Message, error) {
	msgs, err := db.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM messages m
		WHERE m.id = (
			SELECT id FROM messages
			WHERE chat_id = m.chat_id
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		)`)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Message, len(msgs))
	for _, m := range msgs {
		out[m.ChatID] = m
	}
	return out, nil
}

func (db *DB) queryMessages(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}
