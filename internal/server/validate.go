// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"strings"
	"unicode/utf8"
)

// QueryError is a user-facing reason a query was rejected.
type QueryError string

func (e QueryError) Error() string { return string(e) }

const (
	errEmptyQuery QueryError = "Please enter a research question"
	errVagueQuery QueryError = `Please enter a more detailed research question. For example: "What is quantum computing?" or "How does climate change affect food security?"`
	errRepetitive QueryError = "Please enter a valid research question with meaningful words."
	errGibberish  QueryError = "Please enter a valid research question. Your input appears to be random characters."
)

// ValidateQuery rejects queries too short or too random to research.
// q must already be trimmed.
func ValidateQuery(q string) error {
	if q == "" {
		return errEmptyQuery
	}
	chars := utf8.RuneCountInString(q)
	if len(strings.Fields(q)) < 3 && chars < 10 {
		return errVagueQuery
	}

	distinct := make(map[rune]bool)
	for _, r := range strings.ReplaceAll(q, " ", "") {
		distinct[r] = true
	}
	if len(distinct) < 3 {
		return errRepetitive
	}

	if !strings.ContainsAny(q, "aeiouAEIOU") && chars > 5 {
		return errGibberish
	}
	return nil
}
