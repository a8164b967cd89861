// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivBackend queries the arXiv API.
type ArxivBackend struct {
	Client    *http.Client
	Limit     int
	UserAgent string
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return "arxiv" }

// Search queries the arXiv API and returns results.
func (b *ArxivBackend) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	q := buildArxivQuery(query)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	limit := b.Limit
	if limit <= 0 {
		limit = 2
	}

	url := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, q, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, clientOrDefault(b.Client), req, 1)
	if err != nil {
		return nil, requestError(ctx, b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(b.Name(), resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &Error{Kind: KindUnavailable, Provider: b.Name(), Err: fmt.Errorf("parsing response: %w", err)}
	}

	total := len(feed.Entries)
	var results []types.SearchResult
	for i, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		r := types.SearchResult{
			Identifier: arxivID,
			Title:      collapseSpace(entry.Title),
			Excerpt:    collapseSpace(entry.Summary),
			URL:        "https://arxiv.org/abs/" + arxivID,
			Venue:      "arXiv Preprint",
			Provider:   b.Name(),
			Score:      positionScore(i, total),
		}

		for _, a := range entry.Authors {
			r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
		}

		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			r.Date = t
		}

		results = append(results, r)
	}
	return results, nil
}

// buildArxivQuery constructs the search_query parameter from free text.
func buildArxivQuery(query string) string {
	var terms []string
	for _, t := range strings.Fields(query) {
		t = strings.Trim(t, `"'?!.,;:()[]{}`)
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return ""
	}
	return "all:" + strings.Join(terms, "+")
}

// collapseSpace joins the whitespace-separated fields of s with single spaces.
// arXiv wraps titles and abstracts across lines.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
