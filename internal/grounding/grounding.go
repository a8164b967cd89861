// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package grounding checks generated text against the sources it was
// given: numeric citation markers must point at a real source, and
// distinctive tokens must appear in the source text.
package grounding

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrUngrounded is wrapped by every Violation.
var ErrUngrounded = errors.New("ungrounded content")

// ViolationKind classifies a grounding defect.
type ViolationKind string

const (
	// UnknownCitation is a [n] marker with no matching source.
	UnknownCitation ViolationKind = "unknown_citation"
	// UnsupportedToken is a token absent from every source text.
	UnsupportedToken ViolationKind = "unsupported_token"
)

// Violation describes one grounding defect. It is a value for tests and
// logs, not a runtime failure.
type Violation struct {
	Kind  ViolationKind
	Value string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Value)
}

func (v Violation) Unwrap() error { return ErrUngrounded }

// citationPattern matches numeric citations: [3], [1, 2], [1;4], [2-4].
// A bracket followed by "(" is a Markdown link and is skipped by the caller.
var citationPattern = regexp.MustCompile(`\[(\d+(?:\s*[,;–-]\s*\d+)*)\]`)

type markerSpan struct {
	start, end int
	nums       []int
}

func findMarkers(text string) []markerSpan {
	var spans []markerSpan
	for _, loc := range citationPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[1] < len(text) && text[loc[1]] == '(' {
			continue
		}
		spans = append(spans, markerSpan{start: loc[0], end: loc[1], nums: expand(text[loc[2]:loc[3]])})
	}
	return spans
}

// expand turns "1, 3-5" into [1 3 4 5].
func expand(inner string) []int {
	var out []int
	for _, part := range strings.FieldsFunc(inner, func(r rune) bool { return r == ',' || r == ';' }) {
		part = strings.TrimSpace(part)
		if lo, hi, ok := cutRange(part); ok {
			if hi-lo > 50 {
				hi = lo + 50
			}
			for n := lo; n <= hi; n++ {
				out = append(out, n)
			}
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func cutRange(s string) (int, int, bool) {
	for _, sep := range []string{"-", "–"} {
		a, b, found := strings.Cut(s, sep)
		if !found {
			continue
		}
		lo, err1 := strconv.Atoi(strings.TrimSpace(a))
		hi, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || hi < lo {
			return 0, 0, false
		}
		return lo, hi, true
	}
	return 0, 0, false
}

// Markers returns the distinct citation numbers in text, sorted.
func Markers(text string) []int {
	seen := make(map[int]bool)
	for _, s := range findMarkers(text) {
		for _, n := range s.nums {
			seen[n] = true
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// CheckCitations reports every citation number outside 1..sourceCount.
func CheckCitations(text string, sourceCount int) []Violation {
	var out []Violation
	for _, n := range Markers(text) {
		if n < 1 || n > sourceCount {
			out = append(out, Violation{Kind: UnknownCitation, Value: "[" + strconv.Itoa(n) + "]"})
		}
	}
	return out
}

// StripUnknownCitations removes citation numbers outside 1..sourceCount.
// A marker left with no valid number is dropped entirely.
func StripUnknownCitations(text string, sourceCount int) string {
	return rewrite(text, func(n int) (int, bool) {
		return n, n >= 1 && n <= sourceCount
	})
}

// RenumberCitations rewrites each local citation number n to mapping[n].
// Numbers with no mapping are dropped.
func RenumberCitations(text string, mapping map[int]int) string {
	return rewrite(text, func(n int) (int, bool) {
		g, ok := mapping[n]
		return g, ok
	})
}

func rewrite(text string, fn func(int) (int, bool)) string {
	spans := findMarkers(text)
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s.start])
		var keep []string
		for _, n := range s.nums {
			if m, ok := fn(n); ok {
				keep = append(keep, strconv.Itoa(m))
			}
		}
		if len(keep) > 0 {
			b.WriteString("[" + strings.Join(keep, ", ") + "]")
		}
		prev = s.end
	}
	b.WriteString(text[prev:])
	return b.String()
}

// CheckTokens reports every match of pattern in text that does not occur
// in any of the sources. With a pattern for a unique marker token it
// detects facts introduced from outside the supplied snippets.
func CheckTokens(text string, sources []string, pattern *regexp.Regexp) []Violation {
	corpus := strings.Join(sources, "\n")
	seen := make(map[string]bool)
	var out []Violation
	for _, tok := range pattern.FindAllString(text, -1) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if !strings.Contains(corpus, tok) {
			out = append(out, Violation{Kind: UnsupportedToken, Value: tok})
		}
	}
	return out
}
