// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

// OpenAlexBackend queries the OpenAlex API.
type OpenAlexBackend struct {
	Client *http.Client
	// Email is sent as mailto parameter for polite pool access.
	Email     string
	Limit     int
	UserAgent string
}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() string { return "openalex" }

// Search queries the OpenAlex API and returns results.
func (b *OpenAlexBackend) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	searchText := strings.TrimSpace(query)
	if searchText == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}

	limit := b.Limit
	if limit <= 0 {
		limit = 2
	}
	if limit > 200 {
		limit = 200
	}

	params := url.Values{
		"search":   {searchText},
		"per_page": {fmt.Sprintf("%d", limit)},
		"page":     {"1"},
	}
	if b.Email != "" {
		params.Set("mailto", b.Email)
	}

	reqURL := openAlexSearchBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, &Error{Kind: KindUnavailable, Provider: b.Name(), Err: fmt.Errorf("parsing response: %w", err)}
	}

	total := len(oar.Results)
	var results []types.SearchResult
	for i, work := range oar.Results {
		r := types.SearchResult{
			Title:     work.Title,
			Excerpt:   reconstructAbstract(work.AbstractInvertedIndex),
			Citations: work.CitedByCount,
			Provider:  b.Name(),
			Score:     positionScore(i, total),
		}

		for _, authorship := range work.Authorships {
			if authorship.Author.DisplayName != "" {
				r.Authors = append(r.Authors, authorship.Author.DisplayName)
			}
		}

		if work.PrimaryLocation.Source.DisplayName != "" {
			r.Venue = work.PrimaryLocation.Source.DisplayName
		}

		if work.PublicationDate != "" {
			if t, parseErr := time.Parse("2006-01-02", work.PublicationDate); parseErr == nil {
				r.Date = t
			}
		} else if work.PublicationYear > 0 {
			r.Date = time.Date(work.PublicationYear, 1, 1, 0, 0, 0, 0, time.UTC)
		}

		// Prefer DOI as identifier since OpenAlex is DOI-centric.
		// Strip the https://doi.org/ prefix to get the bare DOI.
		if work.DOI != "" {
			r.Identifier = strings.TrimPrefix(work.DOI, "https://doi.org/")
		} else if work.ID != "" {
			r.Identifier = work.ID
		}
		switch {
		case work.OpenAccess.OAURL != "":
			r.URL = work.OpenAccess.OAURL
		case work.ID != "":
			r.URL = work.ID
		}

		results = append(results, r)
	}
	return results, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	// Build position→word map.
	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string                 `json:"id"`
	Title                 string                 `json:"title"`
	DOI                   string                 `json:"doi"`
	PublicationDate       string                 `json:"publication_date"`
	PublicationYear       int                    `json:"publication_year"`
	Authorships           []openAlexAuthorship   `json:"authorships"`
	CitedByCount          int                    `json:"cited_by_count"`
	PrimaryLocation       openAlexLocation       `json:"primary_location"`
	AbstractInvertedIndex map[string][]int       `json:"abstract_inverted_index"`
	OpenAccess            openAlexOpenAccess     `json:"open_access"`
}

type openAlexLocation struct {
	Source openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}
