// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestToCSLItemJournalArticle(t *testing.T) {
	r := types.SearchResult{
		Identifier: "10.1038/nature14539",
		Title:      "Deep learning",
		Authors:    []string{"Yann LeCun", "Yoshua Bengio", "Geoffrey Hinton"},
		Excerpt:    "Deep learning allows computational models...",
		Venue:      "Nature",
		Date:       time.Date(2015, 5, 27, 0, 0, 0, 0, time.UTC),
		Provider:   "semantic_scholar",
	}

	item := toCSLItem(r)

	if item.Type != "article-journal" {
		t.Errorf("Type = %q, want %q", item.Type, "article-journal")
	}
	if item.DOI != "10.1038/nature14539" {
		t.Errorf("DOI = %q", item.DOI)
	}
	if item.ContainerTitle != "Nature" {
		t.Errorf("ContainerTitle = %q, want Nature", item.ContainerTitle)
	}
	if len(item.Author) != 3 || item.Author[0].Family != "LeCun" || item.Author[0].Given != "Yann" {
		t.Errorf("Author = %+v", item.Author)
	}
	if item.Issued == nil || item.Issued.DateParts[0][0] != 2015 {
		t.Errorf("Issued year should be 2015")
	}
}

func TestToCSLItemArxivPreprint(t *testing.T) {
	r := types.SearchResult{
		Identifier: "1706.03762",
		Title:      "Attention Is All You Need",
		Venue:      "arXiv Preprint",
		Provider:   "arxiv",
	}

	item := toCSLItem(r)

	if item.Type != "article" {
		t.Errorf("Type = %q, want %q", item.Type, "article")
	}
	if item.DOI != "" {
		t.Errorf("DOI should be empty for arXiv IDs, got %q", item.DOI)
	}
}

func TestToCSLItemWebPage(t *testing.T) {
	r := types.SearchResult{
		Identifier: "https://example.com/photosynthesis",
		URL:        "https://example.com/photosynthesis",
		Title:      "Photosynthesis explained",
		Authors:    []string{"Web Source"},
		Venue:      "Web Article",
		Provider:   "web",
	}

	item := toCSLItem(r)

	if item.Type != "webpage" {
		t.Errorf("Type = %q, want webpage", item.Type)
	}
	if len(item.Author) != 0 {
		t.Errorf("placeholder author should be dropped, got %+v", item.Author)
	}
	if item.ContainerTitle != "" {
		t.Errorf("ContainerTitle should be empty, got %q", item.ContainerTitle)
	}
	if item.URL != r.URL {
		t.Errorf("URL = %q", item.URL)
	}
}

func TestFormatCSL(t *testing.T) {
	results := []types.SearchResult{
		{
			Identifier: "1706.03762",
			Title:      "Attention Is All You Need",
			Authors:    []string{"Ashish Vaswani"},
			Date:       time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC),
			Provider:   "arxiv",
		},
		{
			Identifier: "10.1234/test",
			Title:      "A Journal Paper",
			Authors:    []string{"Plato"},
			Provider:   "openalex",
		},
	}

	var buf bytes.Buffer
	if err := FormatCSL(results, &buf); err != nil {
		t.Fatalf("FormatCSL: %v", err)
	}

	s := buf.String()
	for _, want := range []string{"id: 1706.03762", "type: article", "type: article-journal", "DOI: 10.1234/test", "literal: Plato", "date-parts:"} {
		if !strings.Contains(s, want) {
			t.Errorf("CSL output missing %q:\n%s", want, s)
		}
	}
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		in   string
		want CSLName
	}{
		{"Ada Lovelace", CSLName{Given: "Ada", Family: "Lovelace"}},
		{"John von Neumann", CSLName{Given: "John von", Family: "Neumann"}},
		{"Aristotle", CSLName{Literal: "Aristotle"}},
		{"  ", CSLName{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseAuthorName(tt.in); got != tt.want {
				t.Errorf("parseAuthorName(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
