// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/grounding"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/prompts"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// scriptedSearch returns errs[i] on call i, then results.
type scriptedSearch struct {
	mu      sync.Mutex
	errs    []error
	results []types.SearchResult
	calls   int
}

func (s *scriptedSearch) Name() string { return "scripted" }

func (s *scriptedSearch) Search(_ context.Context, _ string) ([]types.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.results, nil
}

type fakeLLM struct {
	reply func(req llm.Request) (string, error)
	calls int
	last  llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.last = req
	return f.reply(req)
}

func fixed(s string, err error) func(llm.Request) (string, error) {
	return func(llm.Request) (string, error) { return s, err }
}

var sq = types.SubQuestion{
	Question:       "Which organisms perform photosynthesis?",
	ExpectedFormat: "A bulleted list",
}

func sources() []types.SearchResult {
	return []types.SearchResult{
		{Identifier: "10.1/a", Title: "Plants and light", Authors: []string{"Ada Lovelace"},
			Excerpt: "Plants convert light into chemical energy.", Venue: "Nature",
			Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Provider: "semantic_scholar"},
		{Identifier: "2101.00001", Title: "Cyanobacteria", Excerpt: "Cyanobacteria photosynthesize.",
			Provider: "arxiv"},
	}
}

func newResearcher(s search.Provider, l llm.Client) *Researcher {
	return &Researcher{Search: s, LLM: l, Prompts: prompts.Default(), Retries: 1, Backoff: time.Millisecond}
}

func TestResearch_OK(t *testing.T) {
	s := &scriptedSearch{results: sources()}
	l := &fakeLLM{reply: fixed("Plants [1] and cyanobacteria [2] photosynthesize.", nil)}

	f, err := newResearcher(s, l).Research(context.Background(), sq)
	require.NoError(t, err)

	assert.Equal(t, types.FindingOK, f.Status)
	assert.Equal(t, sq, f.SubQuestion)
	assert.Len(t, f.Sources, 2)
	assert.Equal(t, "Plants [1] and cyanobacteria [2] photosynthesize.", f.Summary)
	assert.Equal(t, 1, l.calls)

	assert.Contains(t, l.last.System, "Sub-Question: "+sq.Question)
	assert.Contains(t, l.last.Prompt, "[1] Plants and light")
	assert.Contains(t, l.last.Prompt, "[2] Cyanobacteria")
	assert.Contains(t, l.last.Prompt, "Year: 2020 | Venue: Nature")
	assert.Contains(t, l.last.Prompt, "Authors: Unknown")
	assert.Contains(t, l.last.Prompt, "Year: n.d. | Venue: Unknown")
}

func TestResearch_NoResults(t *testing.T) {
	s := &scriptedSearch{}
	l := &fakeLLM{reply: fixed("unused", nil)}

	f, err := newResearcher(s, l).Research(context.Background(), sq)
	require.NoError(t, err)

	assert.Equal(t, types.FindingNoResults, f.Status)
	assert.True(t, f.Status.Degraded())
	assert.Empty(t, f.Sources)
	assert.Equal(t, NoResultsSummary, f.Summary)
	assert.Equal(t, 0, l.calls, "no summary call for an empty result set")
}

func TestResearch_RetriesThenSucceeds(t *testing.T) {
	s := &scriptedSearch{
		errs:    []error{&search.Error{Kind: search.KindTimeout, Provider: "scripted", Err: errors.New("slow")}},
		results: sources(),
	}
	l := &fakeLLM{reply: fixed("Summary [1].", nil)}

	f, err := newResearcher(s, l).Research(context.Background(), sq)
	require.NoError(t, err)
	assert.Equal(t, types.FindingOK, f.Status)
	assert.Equal(t, 2, s.calls)
}

func TestResearch_SearchUnavailable(t *testing.T) {
	fail := &search.Error{Kind: search.KindUnavailable, Provider: "scripted", Err: errors.New("503")}

	tests := []struct {
		name    string
		retries int
		calls   int
	}{
		{"zero raised to one retry", 0, 2},
		{"one retry", 1, 2},
		{"three retries", 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedSearch{errs: []error{fail, fail, fail, fail, fail}}
			l := &fakeLLM{reply: fixed("unused", nil)}
			r := newResearcher(s, l)
			r.Retries = tt.retries

			f, err := r.Research(context.Background(), sq)
			require.NoError(t, err)
			assert.Equal(t, types.FindingSearchUnavailable, f.Status)
			assert.Equal(t, UnavailableSummary, f.Summary)
			assert.Equal(t, tt.calls, s.calls)
			assert.Equal(t, 0, l.calls)
		})
	}
}

func TestResearch_LLMFailureKeepsSources(t *testing.T) {
	tests := []struct {
		name  string
		reply func(llm.Request) (string, error)
	}{
		{"error", fixed("", &llm.Error{Kind: llm.KindRateLimited, Provider: "groq", Err: errors.New("429")})},
		{"empty output", fixed("  \n", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedSearch{results: sources()}
			f, err := newResearcher(s, &fakeLLM{reply: tt.reply}).Research(context.Background(), sq)
			require.NoError(t, err)

			assert.Equal(t, types.FindingFailed, f.Status)
			assert.Equal(t, FailedSummary, f.Summary)
			assert.Len(t, f.Sources, 2)
		})
	}
}

func TestResearch_StripsUnknownCitations(t *testing.T) {
	s := &scriptedSearch{results: sources()}
	l := &fakeLLM{reply: fixed("Plants photosynthesize [1][7].", nil)}

	f, err := newResearcher(s, l).Research(context.Background(), sq)
	require.NoError(t, err)
	assert.Equal(t, "Plants photosynthesize [1].", f.Summary)
	assert.Empty(t, grounding.CheckCitations(f.Summary, len(f.Sources)))
}

func TestResearch_CancelledPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &scriptedSearch{errs: []error{context.Canceled}}
	l := &fakeLLM{reply: fixed("unused", nil)}

	_, err := newResearcher(s, l).Research(ctx, sq)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.calls)
}

func TestResearch_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fail := &search.Error{Kind: search.KindUnavailable, Err: errors.New("down")}
	s := &scriptedSearch{errs: []error{fail, fail}}
	r := newResearcher(s, &fakeLLM{reply: fixed("unused", nil)})
	r.Backoff = time.Hour

	done := make(chan error, 1)
	go func() {
		_, err := r.Research(ctx, sq)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Research did not return after cancel")
	}
}

func TestSnippetView_TruncatesExcerpt(t *testing.T) {
	res := types.SearchResult{Title: "Long", Excerpt: strings.Repeat("é", 700)}
	v := snippetView(res)
	assert.Equal(t, snippetChars+3, len([]rune(v.Excerpt)))
	assert.True(t, strings.HasSuffix(v.Excerpt, "..."))
}

// Every snippet carries a unique marker token. The fake model quotes
// tokens only from the prompt it was given, so any token in a summary
// must come from that finding's own sources.
func TestResearch_MarkerTokensStayGrounded(t *testing.T) {
	token := regexp.MustCompile(`ZQX-\d{4}`)

	var results []types.SearchResult
	for i := 1; i <= 4; i++ {
		results = append(results, types.SearchResult{
			Identifier: fmt.Sprintf("10.9/%d", i),
			Title:      fmt.Sprintf("Paper %d", i),
			Excerpt:    fmt.Sprintf("Finding ZQX-%04d was measured.", 1000+i),
		})
	}
	l := &fakeLLM{reply: func(req llm.Request) (string, error) {
		var b strings.Builder
		for i, tok := range token.FindAllString(req.Prompt, -1) {
			fmt.Fprintf(&b, "Observed %s [%d]. ", tok, i+1)
		}
		return b.String(), nil
	}}

	f, err := newResearcher(&scriptedSearch{results: results}, l).Research(context.Background(), sq)
	require.NoError(t, err)
	require.Equal(t, types.FindingOK, f.Status)

	excerpts := make([]string, len(f.Sources))
	for i, s := range f.Sources {
		excerpts[i] = s.Excerpt
	}
	assert.Len(t, token.FindAllString(f.Summary, -1), 4)
	assert.Empty(t, grounding.CheckTokens(f.Summary, excerpts, token))
	assert.Empty(t, grounding.CheckCitations(f.Summary, len(f.Sources)))

	// A token from another finding is flagged.
	assert.NotEmpty(t, grounding.CheckTokens(f.Summary+" ZQX-9999", excerpts, token))
}

func TestNew(t *testing.T) {
	cfg := types.DefaultConfig().Pipeline
	r := New(&scriptedSearch{}, &fakeLLM{}, prompts.Default(), cfg)
	assert.Equal(t, cfg.SearchRetries, r.Retries)
	assert.Equal(t, cfg.RetryBackoff, r.Backoff)
}
