// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// FormatTable writes results as a human-readable table to w.
func FormatTable(results []types.SearchResult, w io.Writer) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %s\n",
		"Rank", "Title", "Authors", "Year", "Score", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range results {
		year := ""
		if y := r.Year(); y > 0 {
			year = fmt.Sprintf("%d", y)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-6.2f  %s\n",
			i+1, ellipsize(r.Title, 60), formatAuthors(r.Authors), year, r.Score, r.Provider)
	}

	fmt.Fprintf(w, "\n%d results\n", len(results))
}

// FormatJSON writes results as indented JSON to w.
func FormatJSON(results []types.SearchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return ellipsize(authors[0], 20)
	default:
		return ellipsize(authors[0], 14) + " et al."
	}
}

func ellipsize(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
