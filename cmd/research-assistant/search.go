// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search academic APIs and the web for sources",
	Long: `Search queries Semantic Scholar, arXiv, OpenAlex (when enabled), and
DuckDuckGo in parallel. Results are deduplicated by DOI, arXiv ID, and
normalized title, then truncated to the configured maximum.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("format", "table", "output format: table, json, or csl")
	searchCmd.Flags().Int("max-results", 0, "maximum number of results (0 = config default)")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("max-results"); n > 0 {
		cfg.Search.MaxResults = n
	}
	format, _ := cmd.Flags().GetString("format")

	p, closers := buildSearch(ctx, cfg)
	defer func() {
		for _, fn := range closers {
			_ = fn()
		}
	}()

	results, err := p.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return search.FormatJSON(results, os.Stdout)
	case "csl":
		return search.FormatCSL(results, os.Stdout)
	case "table":
		search.FormatTable(results, os.Stdout)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, json, or csl)", format)
	}
}
