// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SubQuestionCount is the number of sub-questions a plan always contains.
const SubQuestionCount = 3

// Exchange is one prior query/report pair from the same conversation. The
// planner uses recent exchanges to resolve follow-up questions.
type Exchange struct {
	Query  string `json:"query" yaml:"query"`
	Report string `json:"report" yaml:"report"`
}

// Query is the user's research question together with optional
// conversation history. It is not modified once submitted.
type Query struct {
	Text    string     `json:"text" yaml:"text"`
	History []Exchange `json:"history,omitempty" yaml:"history,omitempty"`
}

// SubQuestion is one decomposed facet of a Query, answerable by a single
// search call.
type SubQuestion struct {
	// Question is the search-ready sub-question text.
	Question string `json:"sub_question" yaml:"sub_question"`

	// ExpectedFormat describes the shape of the answer
	// (e.g. "A brief paragraph summary").
	ExpectedFormat string `json:"expected_output_format" yaml:"expected_output_format"`
}

// FindingStatus records how a sub-question's research ended.
type FindingStatus string

const (
	FindingOK                FindingStatus = "ok"
	FindingNoResults         FindingStatus = "no_results"
	FindingSearchUnavailable FindingStatus = "search_unavailable"
	FindingFailed            FindingStatus = "failed"
)

// Degraded reports whether the finding carries no synthesized content.
func (s FindingStatus) Degraded() bool {
	return s != FindingOK
}

// Finding pairs a SubQuestion with its grounded summary and the sources the
// summary was derived from. It is never mutated after creation.
type Finding struct {
	SubQuestion SubQuestion    `json:"sub_question" yaml:"sub_question"`
	Summary     string         `json:"summary" yaml:"summary"`
	Sources     []SearchResult `json:"sources" yaml:"sources"`
	Status      FindingStatus  `json:"status" yaml:"status"`
}

// Report is the final Markdown document plus its deduplicated bibliography.
type Report struct {
	Query        string         `json:"query" yaml:"query"`
	Markdown     string         `json:"markdown" yaml:"markdown"`
	Bibliography []SearchResult `json:"bibliography" yaml:"bibliography"`
	Findings     []Finding      `json:"findings" yaml:"findings"`
	GeneratedAt  time.Time      `json:"generated_at" yaml:"generated_at"`
}

// DegradedCount returns how many findings carry no synthesized content.
func (r Report) DegradedCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Status.Degraded() {
			n++
		}
	}
	return n
}
