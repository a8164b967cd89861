// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package writer

import (
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Bibliography merges the sources of all findings in first-seen order,
// dropping repeats by SourceKey or by normalized title. It also returns, per finding, the map
// from the finding's local snippet number (1-based) to its global
// bibliography number. The result depends only on the input order.
func Bibliography(findings []types.Finding) ([]types.SearchResult, []map[int]int) {
	var bib []types.SearchResult
	index := make(map[string]int)
	mappings := make([]map[int]int, len(findings))

	for i, f := range findings {
		m := make(map[int]int, len(f.Sources))
		for local, src := range f.Sources {
			key := src.SourceKey()
			if key == "" {
				key = fmt.Sprintf("anon:%d:%d", i, local)
			}
			titleKey := src.TitleKey()

			n, ok := index[key]
			if !ok && titleKey != "" {
				n, ok = index[titleKey]
			}
			if !ok {
				bib = append(bib, src)
				n = len(bib)
			}
			index[key] = n
			if titleKey != "" {
				index[titleKey] = n
			}
			m[local+1] = n
		}
		mappings[i] = m
	}
	return bib, mappings
}

// FormatReferences renders the "## References" section, one numbered
// entry per bibliography source.
func FormatReferences(bib []types.SearchResult) string {
	var b strings.Builder
	b.WriteString("## References\n")
	for i, r := range bib {
		fmt.Fprintf(&b, "\n%d. %s", i+1, FormatCitation(r))
	}
	return b.String()
}

// FormatCitation formats one source as `Author (Year). Title. *Venue*.`
// followed by a Markdown link to the DOI, arXiv abstract, or URL.
func FormatCitation(r types.SearchResult) string {
	year := "n.d."
	if y := r.Year(); y > 0 {
		year = fmt.Sprintf("%d", y)
	}
	venue := r.Venue
	if venue == "" {
		venue = "Unknown"
	}
	c := fmt.Sprintf("%s (%s). %s. *%s*.", citationAuthors(r.Authors), year, r.Title, venue)

	id := strings.TrimPrefix(r.Identifier, "arXiv:")
	switch {
	case r.Provider == "web":
		if r.URL != "" {
			c += fmt.Sprintf(" [[Web Link]](%s)", r.URL)
		}
	case search.IsArxivID(id):
		c += fmt.Sprintf(" [[arXiv:%s]](https://arxiv.org/abs/%s)", id, id)
	case search.IsDOI(r.Identifier):
		c += fmt.Sprintf(" [[DOI]](https://doi.org/%s)", r.Identifier)
	case r.URL != "":
		c += fmt.Sprintf(" [[Link]](%s)", r.URL)
	}
	return c
}

func citationAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return "Unknown"
	case 1:
		return authors[0]
	case 2:
		return authors[0] + " & " + authors[1]
	default:
		return authors[0] + " et al."
	}
}
