// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const documentColumns = `id, chat_id, filename, file_path, file_type, file_size,
	extracted_text, summary, genuineness_score, genuineness_analysis, word_count, uploaded_at`

// AddDocument stores an analyzed upload and bumps the chat's updated_at.
// The returned Document carries its assigned ID and upload time.
func (s *Store) AddDocument(ctx context.Context, d types.Document) (types.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Document{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ts := s.timestamp()
	res, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`, ts, d.ChatID)
	if err != nil {
		return types.Document{}, fmt.Errorf("touching chat: %w", err)
	}
	if err := requireRow(res, "chat", d.ChatID); err != nil {
		return types.Document{}, err
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO documents (chat_id, filename, file_path, file_type, file_size,
			extracted_text, summary, genuineness_score, genuineness_analysis, word_count, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ChatID, d.Filename, d.FilePath, d.FileType, d.FileSize,
		d.ExtractedText, d.Summary, d.GenuinenessScore, d.GenuinenessAnalysis, d.WordCount, ts)
	if err != nil {
		return types.Document{}, fmt.Errorf("inserting document: %w", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return types.Document{}, fmt.Errorf("reading document id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Document{}, fmt.Errorf("committing document: %w", err)
	}
	d.UploadedAt = parseTime(ts)
	return d, nil
}

// Documents returns the documents of a chat, newest first.
func (s *Store) Documents(ctx context.Context, chatID int64) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE chat_id = ? ORDER BY uploaded_at DESC, id DESC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []types.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// LatestDocument returns the newest document of a chat, or ErrNotFound.
func (s *Store) LatestDocument(ctx context.Context, chatID int64) (types.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE chat_id = ? ORDER BY uploaded_at DESC, id DESC LIMIT 1`, chatID)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("chat %d has no documents: %w", chatID, ErrNotFound)
	}
	return d, err
}

// GetDocument returns the document with id, or ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id int64) (types.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return d, err
}

// DeleteDocument removes a document row and its uploaded file.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	d, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if err := requireRow(res, "document", id); err != nil {
		return err
	}
	removeFile(d.FilePath)
	return nil
}

func scanDocument(sc scanner) (types.Document, error) {
	var (
		d        types.Document
		text     sql.NullString
		summary  sql.NullString
		score    sql.NullInt64
		analysis sql.NullString
		words    sql.NullInt64
		uploaded string
	)
	err := sc.Scan(&d.ID, &d.ChatID, &d.Filename, &d.FilePath, &d.FileType, &d.FileSize,
		&text, &summary, &score, &analysis, &words, &uploaded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return d, err
		}
		return d, fmt.Errorf("scanning document: %w", err)
	}
	d.ExtractedText = text.String
	d.Summary = summary.String
	d.GenuinenessScore = int(score.Int64)
	d.GenuinenessAnalysis = analysis.String
	d.WordCount = int(words.Int64)
	d.UploadedAt = parseTime(uploaded)
	return d, nil
}
