// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries academic and web search APIs and returns
// unified, deduplicated results for a single sub-question.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Provider answers a free-text query with a list of results. Each backend
// (Semantic Scholar, arXiv, OpenAlex, DuckDuckGo) implements it, and so
// do Multi and Cached.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

// ErrorKind classifies a search failure.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
	KindRateLimited ErrorKind = "rate_limited"
)

// Error is returned by providers for every failure other than context
// cancellation.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("search %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// requestError classifies a transport error from client.Do. Cancellation
// of the caller's context is returned as-is.
func requestError(ctx context.Context, provider string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if httputil.IsTimeout(err) {
		return &Error{Kind: KindTimeout, Provider: provider, Err: err}
	}
	return &Error{Kind: KindUnavailable, Provider: provider, Err: err}
}

// statusError classifies a non-200 HTTP status.
func statusError(provider string, status int) error {
	err := fmt.Errorf("HTTP %d", status)
	switch status {
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Provider: provider, Err: err}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &Error{Kind: KindTimeout, Provider: provider, Err: err}
	default:
		return &Error{Kind: KindUnavailable, Provider: provider, Err: err}
	}
}

// Multi fans a query out to several providers concurrently, keeps the
// successful answers, deduplicates, ranks, and truncates them. A backend
// failure is logged and skipped; Multi fails only when every backend
// fails.
type Multi struct {
	Providers []Provider
	// MaxResults caps the merged list; 0 keeps everything.
	MaxResults int
	// ExcerptChars truncates each excerpt; 0 keeps it whole.
	ExcerptChars int
}

// Name returns the composite backend identifier.
func (m *Multi) Name() string {
	names := make([]string, len(m.Providers))
	for i, p := range m.Providers {
		names[i] = p.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Search queries every provider and merges their results.
func (m *Multi) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if len(m.Providers) == 0 {
		return nil, fmt.Errorf("no search backends configured")
	}

	type backendResult struct {
		results []types.SearchResult
		err     error
	}

	// Each goroutine writes its own slot so merge order follows backend
	// order, not arrival order.
	slots := make([]backendResult, len(m.Providers))
	var wg sync.WaitGroup
	for i, p := range m.Providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			results, err := p.Search(ctx, query)
			slots[i] = backendResult{results: results, err: err}
		}(i, p)
	}
	wg.Wait()

	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return nil, err
	}

	var all []types.SearchResult
	var errs []error
	for i, br := range slots {
		if br.err != nil {
			logging.Get().Warn("search backend failed",
				zap.String("backend", m.Providers[i].Name()),
				zap.String("query", query),
				zap.Error(br.err))
			errs = append(errs, br.err)
			continue
		}
		all = append(all, br.results...)
	}

	if len(errs) == len(m.Providers) {
		return nil, combineErrors(errs)
	}

	deduped, removed := deduplicate(all)
	if removed > 0 {
		logging.Get().Debug("duplicates removed", zap.Int("count", removed))
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Score > deduped[j].Score
	})

	if m.MaxResults > 0 && len(deduped) > m.MaxResults {
		deduped = deduped[:m.MaxResults]
	}
	if m.ExcerptChars > 0 {
		for i := range deduped {
			deduped[i].Excerpt = truncate(deduped[i].Excerpt, m.ExcerptChars)
		}
	}
	return deduped, nil
}

// combineErrors reduces the per-backend failures to one *Error. The kind
// is rate_limited or timeout only when every backend agrees.
func combineErrors(errs []error) error {
	kind := ErrorKind("")
	for _, err := range errs {
		var se *Error
		k := KindUnavailable
		if errors.As(err, &se) {
			k = se.Kind
		}
		if kind == "" {
			kind = k
		} else if kind != k {
			kind = KindUnavailable
		}
	}
	return &Error{Kind: kind, Provider: "all", Err: errors.Join(errs...)}
}

// NewFromConfig builds the Multi provider described by cfg. Backends with
// a zero limit are left out.
func NewFromConfig(cfg types.SearchConfig) *Multi {
	client := &http.Client{Timeout: cfg.Timeout}
	m := &Multi{MaxResults: cfg.MaxResults, ExcerptChars: cfg.ExcerptChars}

	if cfg.SemanticScholarLimit > 0 {
		m.Providers = append(m.Providers, &SemanticScholarBackend{
			Client: client, APIKey: cfg.SemanticScholarAPIKey, Limit: cfg.SemanticScholarLimit, UserAgent: cfg.UserAgent,
		})
	}
	if cfg.ArxivLimit > 0 {
		m.Providers = append(m.Providers, &ArxivBackend{
			Client: client, Limit: cfg.ArxivLimit, UserAgent: cfg.UserAgent,
		})
	}
	if cfg.OpenAlexLimit > 0 {
		m.Providers = append(m.Providers, &OpenAlexBackend{
			Client: client, Email: cfg.OpenAlexEmail, Limit: cfg.OpenAlexLimit, UserAgent: cfg.UserAgent,
		})
	}
	if cfg.WebLimit > 0 {
		m.Providers = append(m.Providers, &DuckDuckGoBackend{
			Client: client, Limit: cfg.WebLimit,
		})
	}
	return m
}

// deduplicate merges results that share an identifier or normalized title.
func deduplicate(results []types.SearchResult) ([]types.SearchResult, int) {
	seen := make(map[string]int) // dedup key → index in deduped
	var deduped []types.SearchResult
	removed := 0

	for _, r := range results {
		key := dedupKey(r)
		if idx, ok := seen[key]; ok && key != "" {
			mergeInto(&deduped[idx], r)
			removed++
			continue
		}

		titleKey := r.TitleKey()
		if titleKey != "" {
			if idx, ok := seen[titleKey]; ok {
				mergeInto(&deduped[idx], r)
				removed++
				continue
			}
		}

		idx := len(deduped)
		deduped = append(deduped, r)
		if key != "" {
			seen[key] = idx
		}
		if titleKey != "" {
			seen[titleKey] = idx
		}
	}
	return deduped, removed
}

// dedupKey returns a key for identifier-based dedup, falling back to the URL.
func dedupKey(r types.SearchResult) string {
	switch {
	case r.Identifier != "":
		return "id:" + types.NormalizeIdentifier(r.Identifier)
	case r.URL != "":
		return "url:" + r.URL
	default:
		return ""
	}
}

// mergeInto fills empty fields of dst from src and keeps the higher score.
func mergeInto(dst *types.SearchResult, src types.SearchResult) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = src.Authors
	}
	if dst.Excerpt == "" && src.Excerpt != "" {
		dst.Excerpt = src.Excerpt
	}
	if dst.URL == "" && src.URL != "" {
		dst.URL = src.URL
	}
	if dst.Venue == "" && src.Venue != "" {
		dst.Venue = src.Venue
	}
	if dst.Date.IsZero() && !src.Date.IsZero() {
		dst.Date = src.Date
	}
	if src.Citations > dst.Citations {
		dst.Citations = src.Citations
	}
	if src.Score > dst.Score {
		dst.Score = src.Score
	}
	// Prefer an arXiv ID over a DOI or opaque ID so links stay stable.
	if IsArxivID(src.Identifier) && !IsArxivID(dst.Identifier) {
		dst.Identifier = src.Identifier
	}
	if dst.Provider != src.Provider && !strings.Contains(dst.Provider, src.Provider) {
		dst.Provider = dst.Provider + "," + src.Provider
	}
}

// IsArxivID reports whether s looks like a new-style arXiv ID (e.g. "2301.07041").
func IsArxivID(s string) bool {
	if len(s) < 9 {
		return false
	}
	return s[4] == '.' && s[0] >= '0' && s[0] <= '9'
}

// IsDOI reports whether s looks like a bare DOI.
func IsDOI(s string) bool {
	return strings.HasPrefix(s, "10.") && strings.Contains(s, "/")
}

// positionScore gives a descending score to the i-th of total results.
func positionScore(i, total int) float64 {
	if total > 1 {
		return 1.0 - float64(i)/float64(total-1)*0.9
	}
	return 1.0
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
