// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// AddMessage stores a completed research exchange and bumps the chat's
// updated_at. Callers add a message only once a report exists.
func (s *Store) AddMessage(ctx context.Context, chatID int64, query, report string) (types.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Message{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ts := s.timestamp()
	res, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`, ts, chatID)
	if err != nil {
		return types.Message{}, fmt.Errorf("touching chat: %w", err)
	}
	if err := requireRow(res, "chat", chatID); err != nil {
		return types.Message{}, err
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO messages (chat_id, query, report, created_at) VALUES (?, ?, ?, ?)`,
		chatID, query, report, ts)
	if err != nil {
		return types.Message{}, fmt.Errorf("inserting message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Message{}, fmt.Errorf("reading message id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Message{}, fmt.Errorf("committing message: %w", err)
	}
	return types.Message{ID: id, ChatID: chatID, Query: query, Report: report, CreatedAt: parseTime(ts)}, nil
}

// Messages returns the messages of a chat in the order they were added.
func (s *Store) Messages(ctx context.Context, chatID int64) ([]types.Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, chat_id, query, report, created_at FROM messages
		 WHERE chat_id = ? ORDER BY created_at ASC, id ASC`, chatID)
}

// History returns up to limit of the most recent exchanges of a chat,
// oldest first, ready to hand to the planner.
func (s *Store) History(ctx context.Context, chatID int64, limit int) ([]types.Exchange, error) {
	if limit <= 0 {
		return nil, nil
	}
	msgs, err := s.queryMessages(ctx,
		`SELECT id, chat_id, query, report, created_at FROM messages
		 WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}

	history := make([]types.Exchange, len(msgs))
	for i, m := range msgs {
		history[len(msgs)-1-i] = types.Exchange{Query: m.Query, Report: m.Report}
	}
	return history, nil
}

// SearchMessages runs an FTS5 query over message queries and reports,
// best match first. Each whitespace-separated term is quoted so user
// input cannot inject FTS syntax.
func (s *Store) SearchMessages(ctx context.Context, query string, limit int) ([]types.Message, error) {
	match := ftsQuery(query)
	if match == "" {
		return []types.Message{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return s.queryMessages(ctx,
		`SELECT m.id, m.chat_id, m.query, m.report, m.created_at
		 FROM messages_fts
		 JOIN messages m ON m.id = messages_fts.rowid
		 WHERE messages_fts MATCH ?
		 ORDER BY messages_fts.rank
		 LIMIT ?`, match, limit)
}

func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]types.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	msgs := []types.Message{}
	for rows.Next() {
		var (
			m       types.Message
			created string
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Query, &m.Report, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.CreatedAt = parseTime(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
