// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat persists conversations: chats, their completed research
// messages, and uploaded documents. Messages are indexed with FTS5 for
// full-text search.
package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const dbFile = "chats.db"

// timeFormat is fixed-width so that stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a chat or document does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the chat SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates dataDir/chats.db and its schema.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			query TEXT NOT NULL,
			report TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			extracted_text TEXT,
			summary TEXT,
			genuineness_score INTEGER,
			genuineness_analysis TEXT,
			word_count INTEGER,
			uploaded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_chat_id ON documents(chat_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='messages_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE messages_fts USING fts5(query, report, content=messages, content_rowid=id)`,
			`CREATE TRIGGER messages_ai AFTER INSERT ON messages BEGIN
				INSERT INTO messages_fts(rowid, query, report) VALUES (new.id, new.query, new.report);
			END`,
			`CREATE TRIGGER messages_ad AFTER DELETE ON messages BEGIN
				INSERT INTO messages_fts(messages_fts, rowid, query, report) VALUES('delete', old.id, old.query, old.report);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeFormat)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeFormat, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CreateChat inserts a chat. An empty title becomes types.DefaultChatTitle.
func (s *Store) CreateChat(ctx context.Context, title string) (types.Chat, error) {
	if title == "" {
		title = types.DefaultChatTitle
	}
	ts := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (title, created_at, updated_at) VALUES (?, ?, ?)`, title, ts, ts)
	if err != nil {
		return types.Chat{}, fmt.Errorf("inserting chat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Chat{}, fmt.Errorf("reading chat id: %w", err)
	}
	return types.Chat{ID: id, Title: title, CreatedAt: parseTime(ts), UpdatedAt: parseTime(ts)}, nil
}

// ListChats returns all chats, most recently updated first.
func (s *Store) ListChats(ctx context.Context) ([]types.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	chats := []types.Chat{}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns the chat with id, or ErrNotFound.
func (s *Store) GetChat(ctx context.Context, id int64) (types.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM chats WHERE id = ?`, id)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Chat{}, fmt.Errorf("chat %d: %w", id, ErrNotFound)
	}
	return c, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(sc scanner) (types.Chat, error) {
	var (
		c                types.Chat
		created, updated string
	)
	if err := sc.Scan(&c.ID, &c.Title, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scanning chat: %w", err)
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

// RenameChat sets the title of a chat and bumps its updated_at.
func (s *Store) RenameChat(ctx context.Context, id int64, title string) error {
	if title == "" {
		return errors.New("title must not be empty")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`, title, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("renaming chat: %w", err)
	}
	return requireRow(res, "chat", id)
}

// DeleteChat removes a chat with its messages and documents, including
// the uploaded files on disk.
func (s *Store) DeleteChat(ctx context.Context, id int64) error {
	docs, err := s.Documents(ctx, id)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	if err := requireRow(res, "chat", id); err != nil {
		return err
	}

	for _, d := range docs {
		removeFile(d.FilePath)
	}
	return nil
}

func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

func removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Get().Warn("removing document file", zap.String("path", path), zap.Error(err))
	}
}
