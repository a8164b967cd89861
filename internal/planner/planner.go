// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planner decomposes a research query into exactly three
// sub-questions with one LLM call.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/prompts"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// defaultExpectedFormat fills in a sub-question whose answer shape the
// model left out.
const defaultExpectedFormat = "A brief paragraph summary"

// historyPreviewChars bounds each prior report quoted in the planner prompt.
const historyPreviewChars = 200

// ErrEmptyQuery is wrapped by the PlanningError returned for a blank query.
var ErrEmptyQuery = errors.New("query is empty")

// PlanningError reports that no usable plan could be produced.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err == nil {
		return "planning failed: " + e.Reason
	}
	return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// Planner turns a Query into sub-questions.
type Planner struct {
	LLM     llm.Client
	Prompts *prompts.Set
	// HistoryExchanges is how many recent exchanges are quoted as context.
	HistoryExchanges int
	// MaxTokens bounds the planner completion; 0 uses the client default.
	MaxTokens int
}

// New returns a Planner using the given client and templates.
func New(client llm.Client, set *prompts.Set, cfg types.PipelineConfig) *Planner {
	return &Planner{LLM: client, Prompts: set, HistoryExchanges: cfg.HistoryExchanges, MaxTokens: 1024}
}

// Plan returns exactly types.SubQuestionCount sub-questions or a
// *PlanningError. A blank query fails without calling the model. The
// planner does not retry beyond a lenient re-parse of the model output.
func (p *Planner) Plan(ctx context.Context, q types.Query) ([]types.SubQuestion, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, &PlanningError{Reason: "no query text", Err: ErrEmptyQuery}
	}

	system, err := p.Prompts.Render(prompts.PlannerSystem, nil)
	if err != nil {
		return nil, &PlanningError{Reason: "building prompt", Err: err}
	}
	user, err := p.Prompts.Render(prompts.PlannerUser, struct {
		Query   string
		Context string
	}{Query: text, Context: FormatHistory(q.History, p.HistoryExchanges)})
	if err != nil {
		return nil, &PlanningError{Reason: "building prompt", Err: err}
	}

	raw, err := p.LLM.Complete(ctx, llm.Request{System: system, Prompt: user, JSON: true, MaxTokens: p.MaxTokens})
	if err != nil {
		return nil, &PlanningError{Reason: "model call failed", Err: err}
	}

	subs, err := ParsePlan(raw)
	if err != nil {
		logging.Get().Warn("unusable plan", zap.String("raw", truncate(raw, 500)), zap.Error(err))
		return nil, &PlanningError{Reason: "unusable model output", Err: err}
	}
	return subs, nil
}

// FormatHistory renders the last n exchanges as the "Previous
// conversation" block given to the planner. Each report is cut to 200
// characters. It returns "" when there is no history.
func FormatHistory(history []types.Exchange, n int) string {
	if len(history) == 0 || n <= 0 {
		return ""
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n\n")
	for i, ex := range history {
		preview := ex.Report
		if r := []rune(preview); len(r) > historyPreviewChars {
			preview = string(r[:historyPreviewChars]) + "..."
		}
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", i+1, ex.Query, i+1, preview)
	}
	return strings.TrimRight(b.String(), "\n")
}

type planJSON struct {
	SubTasks []types.SubQuestion `json:"sub_tasks"`
}

var (
	fenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	listItemRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.+?)\s*$`)
)

// ParsePlan extracts the sub-questions from a planner response. It tries
// strict JSON first, then JSON inside a code fence or the outermost
// braces, then a numbered or bulleted list. Any path must yield exactly
// types.SubQuestionCount non-empty questions.
func ParsePlan(raw string) ([]types.SubQuestion, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty response")
	}

	var lastErr error
	for _, candidate := range jsonCandidates(raw) {
		var pj planJSON
		if err := json.Unmarshal([]byte(candidate), &pj); err != nil {
			lastErr = err
			continue
		}
		subs, err := validate(pj.SubTasks)
		if err != nil {
			return nil, err
		}
		return subs, nil
	}

	if subs := parseList(raw); len(subs) > 0 {
		return validate(subs)
	}
	if lastErr == nil {
		lastErr = errors.New("no JSON object or question list found")
	}
	return nil, fmt.Errorf("parsing plan: %w", lastErr)
}

// jsonCandidates lists the strings worth trying as JSON, most literal first.
func jsonCandidates(raw string) []string {
	out := []string{raw}
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		out = append(out, raw[i:j+1])
	}
	return out
}

func parseList(raw string) []types.SubQuestion {
	var subs []types.SubQuestion
	for _, line := range strings.Split(raw, "\n") {
		m := listItemRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		q := strings.Trim(m[1], "*\" ")
		if q != "" {
			subs = append(subs, types.SubQuestion{Question: q})
		}
	}
	return subs
}

func validate(subs []types.SubQuestion) ([]types.SubQuestion, error) {
	out := make([]types.SubQuestion, 0, len(subs))
	for _, s := range subs {
		s.Question = strings.TrimSpace(s.Question)
		s.ExpectedFormat = strings.TrimSpace(s.ExpectedFormat)
		if s.Question == "" {
			return nil, errors.New("plan contains an empty sub-question")
		}
		if s.ExpectedFormat == "" {
			s.ExpectedFormat = defaultExpectedFormat
		}
		out = append(out, s)
	}
	if len(out) != types.SubQuestionCount {
		return nil, fmt.Errorf("plan has %d sub-questions, want %d", len(out), types.SubQuestionCount)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
