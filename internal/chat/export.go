// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Format selects the export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Export is the full content of one chat.
type Export struct {
	Chat      types.Chat       `json:"chat" yaml:"chat"`
	Messages  []types.Message  `json:"messages" yaml:"messages"`
	Documents []types.Document `json:"documents" yaml:"documents"`
}

// Export writes chat id with its messages and documents to w.
// Extracted document text is omitted.
func (s *Store) Export(ctx context.Context, id int64, format Format, w io.Writer) error {
	c, err := s.GetChat(ctx, id)
	if err != nil {
		return err
	}
	msgs, err := s.Messages(ctx, id)
	if err != nil {
		return err
	}
	docs, err := s.Documents(ctx, id)
	if err != nil {
		return err
	}
	for i := range docs {
		docs[i].ExtractedText = ""
	}
	out := Export{Chat: c, Messages: msgs, Documents: docs}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	return nil
}
