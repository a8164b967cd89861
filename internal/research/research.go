// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research answers one sub-question: it searches, then asks the
// model for a short summary grounded only in the returned snippets.
// Search and summary failures never escape as errors; they become a
// degraded Finding so the other sub-questions are unaffected.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/grounding"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/prompts"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Summaries used for degraded findings.
const (
	NoResultsSummary   = "No information was found for this question: the search returned no sources."
	UnavailableSummary = "This question could not be answered because search was unavailable."
	FailedSummary      = "A summary could not be produced for this question, although sources were retrieved."
)

// snippetChars bounds each excerpt quoted in the summary prompt.
const snippetChars = 500

// Researcher runs the search-then-summarize step for a sub-question.
type Researcher struct {
	Search  search.Provider
	LLM     llm.Client
	Prompts *prompts.Set

	// Retries is the number of extra search attempts after a failure.
	// Values below 1 are raised to 1.
	Retries int
	// Backoff is the delay before the first retry; it doubles each time.
	Backoff time.Duration
	// MaxTokens bounds the summary completion; 0 uses the client default.
	MaxTokens int
}

// New returns a Researcher configured from cfg.
func New(p search.Provider, client llm.Client, set *prompts.Set, cfg types.PipelineConfig) *Researcher {
	return &Researcher{
		Search:    p,
		LLM:       client,
		Prompts:   set,
		Retries:   cfg.SearchRetries,
		Backoff:   cfg.RetryBackoff,
		MaxTokens: 600,
	}
}

// Research produces the Finding for sq. The returned error is non-nil
// only when ctx is cancelled or expires; every other failure is recorded
// in the Finding's Status.
func (r *Researcher) Research(ctx context.Context, sq types.SubQuestion) (types.Finding, error) {
	log := logging.Get().With(zap.String("sub_question", sq.Question))
	finding := types.Finding{SubQuestion: sq}

	results, err := r.searchWithRetry(ctx, sq.Question)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return finding, ctxErr
		}
		log.Warn("search unavailable", zap.Error(err))
		finding.Status = types.FindingSearchUnavailable
		finding.Summary = UnavailableSummary
		return finding, nil
	}

	if len(results) == 0 {
		log.Info("no search results")
		finding.Status = types.FindingNoResults
		finding.Summary = NoResultsSummary
		return finding, nil
	}
	finding.Sources = results

	summary, err := r.summarize(ctx, sq, results)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return finding, ctxErr
		}
		log.Warn("summary failed", zap.Error(err))
		finding.Status = types.FindingFailed
		finding.Summary = FailedSummary
		return finding, nil
	}

	if v := grounding.CheckCitations(summary, len(results)); len(v) > 0 {
		log.Warn("summary cites unknown snippets", zap.Errors("violations", violationErrors(v)))
		summary = grounding.StripUnknownCitations(summary, len(results))
	}

	finding.Status = types.FindingOK
	finding.Summary = summary
	log.Debug("finding ready", zap.Int("sources", len(results)))
	return finding, nil
}

// searchWithRetry calls the provider up to 1+Retries times with
// exponential backoff between attempts.
func (r *Researcher) searchWithRetry(ctx context.Context, query string) ([]types.SearchResult, error) {
	retries := r.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := r.Backoff << (attempt - 1)
			logging.Get().Debug("retrying search",
				zap.String("query", query),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		results, err := r.Search.Search(ctx, query)
		if err == nil {
			return results, nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("search failed after %d attempts: %w", retries+1, lastErr)
}

// snippet is the prompt view of one search result.
type snippet struct {
	Title     string
	Authors   []string
	Year      string
	Venue     string
	Citations int
	Excerpt   string
}

func (r *Researcher) summarize(ctx context.Context, sq types.SubQuestion, results []types.SearchResult) (string, error) {
	system, err := r.Prompts.Render(prompts.ResearchSystem, sq)
	if err != nil {
		return "", err
	}

	views := make([]snippet, len(results))
	for i, res := range results {
		views[i] = snippetView(res)
	}
	user, err := r.Prompts.Render(prompts.ResearchUser, struct{ Sources []snippet }{views})
	if err != nil {
		return "", err
	}

	out, err := r.LLM.Complete(ctx, llm.Request{System: system, Prompt: user, MaxTokens: r.MaxTokens})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &llm.Error{Kind: llm.KindMalformedOutput, Provider: "summary", Err: errors.New("empty summary")}
	}
	return out, nil
}

func snippetView(res types.SearchResult) snippet {
	s := snippet{
		Title:     res.Title,
		Authors:   res.Authors,
		Year:      "n.d.",
		Venue:     res.Venue,
		Citations: res.Citations,
		Excerpt:   res.Excerpt,
	}
	if len(s.Authors) == 0 {
		s.Authors = []string{"Unknown"}
	}
	if y := res.Year(); y > 0 {
		s.Year = fmt.Sprintf("%d", y)
	}
	if s.Venue == "" {
		s.Venue = "Unknown"
	}
	if r := []rune(s.Excerpt); len(r) > snippetChars {
		s.Excerpt = string(r[:snippetChars]) + "..."
	}
	return s
}

func violationErrors(vs []grounding.Violation) []error {
	out := make([]error, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
