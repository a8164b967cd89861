// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that a report bibliography is consumable by Pandoc and reference
// managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes results as a CSL-YAML list to w.
func FormatCSL(results []types.SearchResult, w io.Writer) error {
	items := make([]CSLItem, len(results))
	for i, r := range results {
		items[i] = toCSLItem(r)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a SearchResult to a CSLItem.
func toCSLItem(r types.SearchResult) CSLItem {
	item := CSLItem{
		ID:       r.Identifier,
		Type:     cslType(r),
		Title:    r.Title,
		Abstract: r.Excerpt,
		URL:      r.URL,
	}
	if item.ID == "" {
		item.ID = r.URL
	}
	if r.Venue != "" && r.Venue != "Web Article" {
		item.ContainerTitle = r.Venue
	}

	for _, a := range r.Authors {
		if a == "Web Source" {
			continue
		}
		item.Author = append(item.Author, parseAuthorName(a))
	}

	if !r.Date.IsZero() {
		item.Issued = &CSLDate{
			DateParts: [][]int{{r.Date.Year(), int(r.Date.Month()), r.Date.Day()}},
		}
	}

	if IsDOI(r.Identifier) {
		item.DOI = r.Identifier
	}

	return item
}

func cslType(r types.SearchResult) string {
	switch {
	case r.Provider == "web":
		return "webpage"
	case IsArxivID(r.Identifier):
		return "article"
	default:
		return "article-journal"
	}
}

// parseAuthorName splits a full name string into CSL family/given parts.
// It splits on the last space: everything before is given, the last token
// is family. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
