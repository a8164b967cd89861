// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"context"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	titleWords       = 6
	titleFilenameMax = 30
)

// TitleFromQuery returns the first six words of query, with "..." when
// the query had more.
func TitleFromQuery(query string) string {
	words := strings.Fields(query)
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "..."
}

// TitleFromDocument returns "Analysis: " and up to 30 characters of the filename.
func TitleFromDocument(filename string) string {
	r := []rune(filename)
	if len(r) > titleFilenameMax {
		r = r[:titleFilenameMax]
	}
	return "Analysis: " + string(r)
}

// AutoTitle renames a chat that still has the default title. It reports
// whether the chat was renamed.
func (s *Store) AutoTitle(ctx context.Context, chatID int64, title string) (bool, error) {
	if title == "" {
		return false, nil
	}
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return false, err
	}
	if c.Title != types.DefaultChatTitle {
		return false, nil
	}
	if err := s.RenameChat(ctx, chatID, title); err != nil {
		return false, err
	}
	return true, nil
}
