// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-assistant
// pipeline: search results, sub-questions, findings, reports, chat records,
// and stage configuration.
package types

import (
	"strings"
	"time"
	"unicode"
)

// SearchResult is one snippet returned by a search provider for a
// sub-question. Providers fill as many fields as their API exposes; the
// pipeline only relies on Title, Excerpt, and a usable source key.
type SearchResult struct {
	// Identifier is the canonical source key: a bare DOI, an arXiv ID,
	// or the result URL for web sources.
	Identifier string `json:"identifier" yaml:"identifier"`

	// Title is the document title as returned by the provider.
	Title string `json:"title" yaml:"title"`

	// URL is a browsable link to the source, when known.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Excerpt is the snippet text (usually the abstract) handed to the
	// summarizer.
	Excerpt string `json:"excerpt" yaml:"excerpt"`

	// Venue is the journal, conference, or "arXiv Preprint"/"Web Article".
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Date is the publication date. Zero when unknown.
	Date time.Time `json:"date,omitempty" yaml:"date,omitempty"`

	// Provider names the backend that returned the result
	// (e.g. "semantic_scholar", "arxiv", "openalex", "web").
	Provider string `json:"provider" yaml:"provider"`

	// Score is an optional relevance score in [0, 1].
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`

	// Citations is the citation count reported by the provider, if any.
	Citations int `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// SourceKey returns the key used to deduplicate sources in a bibliography:
// the normalized Identifier, then the URL, then the normalized title.
func (r SearchResult) SourceKey() string {
	switch {
	case r.Identifier != "":
		return "id:" + NormalizeIdentifier(r.Identifier)
	case r.URL != "":
		return "url:" + r.URL
	default:
		return r.TitleKey()
	}
}

// TitleKey returns the normalized-title key, or "" for an untitled source.
// Two providers can label one paper with a DOI and an arXiv ID; the title
// key still matches them.
func (r SearchResult) TitleKey() string {
	t := NormalizeTitle(r.Title)
	if t == "" {
		return ""
	}
	return "title:" + t
}

// identifierPrefixes are resolver and scheme prefixes dropped before
// identifiers are compared.
var identifierPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"doi:",
	"arxiv:",
}

// NormalizeIdentifier returns id in the form used for comparison. DOIs and
// arXiv IDs are case-insensitive, so "10.1038/Nature12373" and
// "doi:10.1038/nature12373" normalize to the same string.
func NormalizeIdentifier(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	for _, p := range identifierPrefixes {
		s = strings.TrimPrefix(s, p)
	}
	return s
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the title.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Year returns the publication year, or 0 when the date is unknown.
func (r SearchResult) Year() int {
	if r.Date.IsZero() {
		return 0
	}
	return r.Date.Year()
}
