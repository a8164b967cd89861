// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package writer turns findings into the final Markdown report. The
// bibliography is computed before the model is called so that every
// citation marker in the prompt and in the output refers to one global
// numbering.
package writer

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
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrEmptyReport is returned by an attempt whose output was blank.
var ErrEmptyReport = errors.New("model returned an empty report")

// WriterError reports that no usable report was produced after all
// attempts.
type WriterError struct {
	Attempts int
	Err      error
}

func (e *WriterError) Error() string {
	return fmt.Sprintf("writing report failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *WriterError) Unwrap() error { return e.Err }

// Writer synthesizes a Report from findings with one model call, retried
// on error or empty output.
type Writer struct {
	LLM     llm.Client
	Prompts *prompts.Set

	// Retries is the number of extra attempts; values below 1 are raised to 1.
	Retries int
	Backoff time.Duration
	// MaxTokens bounds the report completion; 0 uses the client default.
	MaxTokens int

	// Now stamps the report; nil means time.Now.
	Now func() time.Time
}

// New returns a Writer configured from cfg.
func New(client llm.Client, set *prompts.Set, cfg types.PipelineConfig) *Writer {
	return &Writer{
		LLM:     client,
		Prompts: set,
		Retries: cfg.WriterRetries,
		Backoff: cfg.RetryBackoff,
	}
}

type sourceView struct {
	Number int
	Title  string
}

type findingView struct {
	Question       string
	ExpectedFormat string
	Status         types.FindingStatus
	Summary        string
	Sources        []sourceView
}

// Write produces the report for query. Degraded findings are still
// passed to the model and are listed again under "Unanswered questions".
func (w *Writer) Write(ctx context.Context, query string, findings []types.Finding) (types.Report, error) {
	bib, mappings := Bibliography(findings)

	views := make([]findingView, len(findings))
	allDegraded := true
	for i, f := range findings {
		v := findingView{
			Question:       f.SubQuestion.Question,
			ExpectedFormat: f.SubQuestion.ExpectedFormat,
			Status:         f.Status,
			Summary:        f.Summary,
		}
		if !f.Status.Degraded() {
			allDegraded = false
			v.Summary = grounding.RenumberCitations(f.Summary, mappings[i])
		}
		for local, src := range f.Sources {
			v.Sources = append(v.Sources, sourceView{Number: mappings[i][local+1], Title: src.Title})
		}
		views[i] = v
	}

	system, err := w.Prompts.Render(prompts.WriterSystem, struct{ Query string }{query})
	if err != nil {
		return types.Report{}, &WriterError{Err: err}
	}
	user, err := w.Prompts.Render(prompts.WriterUser, struct {
		Findings    []findingView
		AllDegraded bool
	}{views, allDegraded})
	if err != nil {
		return types.Report{}, &WriterError{Err: err}
	}

	body, err := w.complete(ctx, llm.Request{System: system, Prompt: user, MaxTokens: w.MaxTokens})
	if err != nil {
		return types.Report{}, err
	}

	if v := grounding.CheckCitations(body, len(bib)); len(v) > 0 {
		logging.Get().Warn("report cites unknown sources", zap.Int("violations", len(v)))
		body = grounding.StripUnknownCitations(body, len(bib))
	}

	var md strings.Builder
	md.WriteString(body)
	if s := unansweredSection(findings); s != "" {
		md.WriteString("\n\n")
		md.WriteString(s)
	}
	if len(bib) > 0 {
		md.WriteString("\n\n")
		md.WriteString(FormatReferences(bib))
	}
	md.WriteString("\n")

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return types.Report{
		Query:        query,
		Markdown:     md.String(),
		Bibliography: bib,
		Findings:     findings,
		GeneratedAt:  now().UTC(),
	}, nil
}

func (w *Writer) complete(ctx context.Context, req llm.Request) (string, error) {
	retries := w.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := w.Backoff << (attempt - 1)
			logging.Get().Info("retrying report", zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", &WriterError{Attempts: attempts, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		attempts++
		out, err := w.LLM.Complete(ctx, req)
		if err == nil {
			if out = strings.TrimSpace(out); out != "" {
				return out, nil
			}
			err = ErrEmptyReport
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", &WriterError{Attempts: attempts, Err: lastErr}
}

func unansweredSection(findings []types.Finding) string {
	var b strings.Builder
	for _, f := range findings {
		if !f.Status.Degraded() {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("## Unanswered questions\n\n")
			b.WriteString("The following questions could not be answered from sources:\n\n")
		}
		fmt.Fprintf(&b, "- %s (%s)\n", f.SubQuestion.Question, statusReason(f.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusReason(s types.FindingStatus) string {
	switch s {
	case types.FindingNoResults:
		return "no sources found"
	case types.FindingSearchUnavailable:
		return "search unavailable"
	default:
		return "summary unavailable"
	}
}
