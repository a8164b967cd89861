// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/chat"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Analyze uploaded documents",
}

var documentAnalyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Extract, summarize, and score a PDF, DOCX, or TXT file",
	Long: `Analyze copies the file into the upload directory, extracts its text
(falling back to a markitdown container for sparse PDFs), summarizes it,
and assesses its authenticity. With --chat the document is attached to
that chat so later research questions are answered from it.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentAnalyze,
}

func init() {
	documentAnalyzeCmd.Flags().Int64("chat", 0, "attach the document to this chat id")

	documentCmd.AddCommand(documentAnalyzeCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	chatID, _ := cmd.Flags().GetInt64("chat")

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(cfg.Document.UploadDir, 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	var store *chat.Store
	if chatID > 0 {
		store, err = chat.Open(cfg.Store.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()
		if _, err := store.GetChat(ctx, chatID); err != nil {
			return fmt.Errorf("chat %d: %w", chatID, err)
		}
	}

	p := newProcessor(ctx, c, cfg)
	doc, analysis, err := p.Process(ctx, chatID, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}

	fmt.Printf("# %s\n\n%d words, %d characters\n\n## Summary\n\n%s\n\n", doc.Filename, analysis.WordCount, analysis.CharCount, analysis.Summary)
	fmt.Printf("## Authenticity\n\nScore %d/10 (%s confidence, genuine: %t)\n\n%s\n",
		analysis.Genuineness.Score, analysis.Genuineness.Confidence, analysis.Genuineness.Genuine, analysis.Genuineness.Analysis)

	if store == nil {
		return os.Remove(doc.FilePath)
	}
	stored, err := store.AddDocument(ctx, doc)
	if err != nil {
		return err
	}
	if _, err := store.AutoTitle(ctx, chatID, chat.TitleFromDocument(doc.Filename)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Attached document %d to chat %d\n", stored.ID, chatID)
	return nil
}
