// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,journal,venue,citationCount,url"

// SemanticScholarBackend queries the Semantic Scholar API.
type SemanticScholarBackend struct {
	Client    *http.Client
	APIKey    string
	Limit     int
	UserAgent string
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return "semantic_scholar" }

// Search queries the Semantic Scholar API and returns results.
func (b *SemanticScholarBackend) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	limit := b.Limit
	if limit <= 0 {
		limit = 2
	}

	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", limit)},
		"fields": {semanticFields},
	}
	reqURL := semanticAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, clientOrDefault(b.Client), req, 0)
	if err != nil {
		return nil, requestError(ctx, b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(b.Name(), resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &Error{Kind: KindUnavailable, Provider: b.Name(), Err: fmt.Errorf("parsing response: %w", err)}
	}

	total := len(sr.Data)
	var results []types.SearchResult
	for i, paper := range sr.Data {
		r := types.SearchResult{
			Title:     paper.Title,
			Excerpt:   paper.Abstract,
			URL:       paper.URL,
			Citations: paper.CitationCount,
			Provider:  b.Name(),
			Score:     positionScore(i, total),
		}
		if r.Excerpt == "" {
			r.Excerpt = "No abstract available"
		}

		for _, a := range paper.Authors {
			r.Authors = append(r.Authors, a.Name)
		}

		switch {
		case paper.Journal != nil && paper.Journal.Name != "":
			r.Venue = paper.Journal.Name
		case paper.Venue != "":
			r.Venue = paper.Venue
		default:
			r.Venue = "Preprint"
		}

		if paper.PublicationDate != "" {
			if t, parseErr := time.Parse("2006-01-02", paper.PublicationDate); parseErr == nil {
				r.Date = t
			}
		} else if paper.Year > 0 {
			r.Date = time.Date(paper.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		}

		// Prefer DOI for citation links, then arXiv ID, then the S2 paper ID.
		switch {
		case paper.ExternalIDs.DOI != "":
			r.Identifier = paper.ExternalIDs.DOI
		case paper.ExternalIDs.ArXiv != "":
			r.Identifier = paper.ExternalIDs.ArXiv
		default:
			r.Identifier = paper.PaperID
		}

		results = append(results, r)
	}
	return results, nil
}

func clientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	URL             string              `json:"url"`
	Venue           string              `json:"venue"`
	CitationCount   int                 `json:"citationCount"`
	Journal         *semanticJournal    `json:"journal"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticJournal struct {
	Name string `json:"name"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI"`
	ArXiv    string `json:"ArXiv"`
	CorpusID int    `json:"CorpusId"`
}
