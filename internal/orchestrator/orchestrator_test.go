// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/planner"
	"github.com/pdiddy/research-assistant/internal/prompts"
	"github.com/pdiddy/research-assistant/internal/research"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/writer"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const photosynthesisPlan = `{"sub_tasks":[
 {"sub_question":"What is the chemical equation of photosynthesis?","expected_output_format":"A short equation with explanation"},
 {"sub_question":"Which organisms perform photosynthesis?","expected_output_format":"A bulleted list"},
 {"sub_question":"Why is photosynthesis important for ecosystems?","expected_output_format":"A brief paragraph summary"}]}`

// stageLLM answers each stage's prompt with a canned reply. It is safe
// for concurrent use.
type stageLLM struct {
	mu       sync.Mutex
	plan     string
	summary  string
	report   string
	writeErr error
	calls    map[string]int
}

func (s *stageLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	switch {
	case req.JSON:
		s.calls["plan"]++
		return s.plan, nil
	case strings.Contains(req.System, "source synthesizer"):
		s.calls["summary"]++
		return s.summary, nil
	default:
		s.calls["write"]++
		return s.report, s.writeErr
	}
}

func (s *stageLLM) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stage]
}

// topicSearch returns two results per query, one shared across queries,
// and fails for any query containing a word in failOn.
type topicSearch struct {
	mu     sync.Mutex
	failOn []string
	block  bool
	calls  int
}

func (s *topicSearch) Name() string { return "topic" }

func (s *topicSearch) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	for _, w := range s.failOn {
		if w == "*" || strings.Contains(query, w) {
			return nil, &search.Error{Kind: search.KindUnavailable, Provider: "topic", Err: errors.New("503")}
		}
	}
	return []types.SearchResult{
		{Identifier: "10.1/" + query, Title: "On " + query, Excerpt: "Light becomes chemical energy.", Provider: "semantic_scholar"},
		{Identifier: "10.1/shared", Title: "Photosynthesis review", Excerpt: "A broad review.", Provider: "semantic_scholar"},
	}, nil
}

func pipeline(l *stageLLM, s search.Provider, opts ...Option) *Orchestrator {
	set := prompts.Default()
	cfg := types.PipelineConfig{SearchRetries: 1, WriterRetries: 1, RetryBackoff: time.Millisecond, HistoryExchanges: 3}
	return New(
		planner.New(l, set, cfg),
		research.New(s, l, set, cfg),
		writer.New(l, set, cfg),
		opts...,
	)
}

func newLLM() *stageLLM {
	return &stageLLM{
		plan:    photosynthesisPlan,
		summary: "Plants turn light into sugar [1], as reviewed in [2].",
		report:  "# Photosynthesis\n\nPhotosynthesis converts light into chemical energy [1][2].",
	}
}

func TestRun_Photosynthesis(t *testing.T) {
	l := newLLM()
	res := pipeline(l, &topicSearch{}).Run(context.Background(), types.Query{Text: "What is photosynthesis?"})

	require.NoError(t, res.Err())
	assert.Equal(t, StateCompleted, res.State)
	assert.NotEmpty(t, res.RequestID)
	require.Len(t, res.SubQuestions, 3)
	require.Len(t, res.Findings, 3)
	for i, f := range res.Findings {
		assert.Equal(t, types.FindingOK, f.Status)
		assert.Equal(t, res.SubQuestions[i], f.SubQuestion, "findings keep plan order")
	}

	// 3 distinct sources plus one shared review.
	assert.Len(t, res.Report.Bibliography, 4)
	assert.Contains(t, res.Report.Markdown, "# Photosynthesis")
	assert.Contains(t, res.Report.Markdown, "## References")
	assert.NotContains(t, res.Report.Markdown, "## Unanswered questions")
	assert.Equal(t, 1, l.count("plan"))
	assert.Equal(t, 3, l.count("summary"))
	assert.Equal(t, 1, l.count("write"))
}

func TestRun_PartialFailureIsolated(t *testing.T) {
	l := newLLM()
	res := pipeline(l, &topicSearch{failOn: []string{"organisms"}}).
		Run(context.Background(), types.Query{Text: "What is photosynthesis?"})

	require.NoError(t, res.Err())
	assert.Equal(t, types.FindingOK, res.Findings[0].Status)
	assert.Equal(t, types.FindingSearchUnavailable, res.Findings[1].Status)
	assert.Equal(t, types.FindingOK, res.Findings[2].Status)
	assert.Equal(t, 1, res.Report.DegradedCount())
	assert.Contains(t, res.Report.Markdown, "- Which organisms perform photosynthesis? (search unavailable)")
	assert.Len(t, res.Report.Bibliography, 3)
}

func TestRun_AlwaysFailingSearchStillReports(t *testing.T) {
	l := newLLM()
	l.report = "No sources could be found to answer this query."
	s := &topicSearch{failOn: []string{"*"}}

	res := pipeline(l, s).Run(context.Background(), types.Query{Text: "What is photosynthesis?"})

	require.NoError(t, res.Err())
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 3, res.Report.DegradedCount())
	assert.Empty(t, res.Report.Bibliography)
	assert.Contains(t, res.Report.Markdown, "No sources could be found")
	assert.Equal(t, 6, s.calls, "one retry per sub-question")
	assert.Equal(t, 0, l.count("summary"))
	assert.Equal(t, 1, l.count("write"))
}

func TestRun_PlanningFailure(t *testing.T) {
	l := newLLM()
	l.plan = "I am not able to plan this."

	res := pipeline(l, &topicSearch{}).Run(context.Background(), types.Query{Text: "What is photosynthesis?"})

	require.Error(t, res.Err())
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, strings.HasPrefix(res.Err().Error(), "research failed at planning stage: "))

	var fe *FailedError
	require.ErrorAs(t, res.Err(), &fe)
	assert.Equal(t, StatePlanning, fe.Stage)
	var pe *planner.PlanningError
	assert.ErrorAs(t, res.Err(), &pe)
	assert.Equal(t, 0, l.count("summary"))
	assert.Equal(t, 0, l.count("write"))
}

func TestRun_EmptyQueryFailsAtPlanning(t *testing.T) {
	l := newLLM()
	res := pipeline(l, &topicSearch{}).Run(context.Background(), types.Query{Text: "  "})

	assert.ErrorIs(t, res.Err(), planner.ErrEmptyQuery)
	assert.Equal(t, 0, l.count("plan"))
}

func TestRun_WritingFailure(t *testing.T) {
	l := newLLM()
	l.writeErr = &llm.Error{Kind: llm.KindTimeout, Provider: "groq", Err: errors.New("deadline")}

	res := pipeline(l, &topicSearch{}).Run(context.Background(), types.Query{Text: "What is photosynthesis?"})

	var fe *FailedError
	require.ErrorAs(t, res.Err(), &fe)
	assert.Equal(t, StateWriting, fe.Stage)
	var we *writer.WriterError
	assert.ErrorAs(t, res.Err(), &we)
	assert.True(t, llm.IsKind(res.Err(), llm.KindTimeout))
	assert.Equal(t, 2, l.count("write"))
	assert.Len(t, res.Findings, 3, "findings are kept for inspection")
}

func TestRun_CancelledDuringResearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := newLLM()
	var once sync.Once
	progress := func(ev ProgressEvent) {
		if ev.State == StateResearching {
			once.Do(func() { time.AfterFunc(10*time.Millisecond, cancel) })
		}
	}

	res := pipeline(l, &topicSearch{block: true}, WithProgress(progress)).
		Run(ctx, types.Query{Text: "What is photosynthesis?"})

	var fe *FailedError
	require.ErrorAs(t, res.Err(), &fe)
	assert.Equal(t, StateResearching, fe.Stage)
	assert.ErrorIs(t, res.Err(), context.Canceled)
	assert.Equal(t, 0, l.count("write"))
}

func TestRun_ProgressEvents(t *testing.T) {
	var mu sync.Mutex
	var states []State
	var research []int
	progress := func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Index > 0 {
			research = append(research, ev.Index)
			return
		}
		states = append(states, ev.State)
	}

	res := pipeline(newLLM(), &topicSearch{}, WithProgress(progress)).
		Run(context.Background(), types.Query{Text: "What is photosynthesis?"})
	require.NoError(t, res.Err())

	assert.Equal(t, []State{StateSubmitted, StatePlanning, StateResearching, StateWriting, StateCompleted}, states)
	assert.ElementsMatch(t, []int{1, 2, 3}, research)
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	ok := pipeline(newLLM(), &topicSearch{failOn: []string{"organisms"}}, WithMetrics(m))
	ok.Run(context.Background(), types.Query{Text: "What is photosynthesis?"})

	bad := newLLM()
	bad.plan = "nope"
	pipeline(bad, &topicSearch{}, WithMetrics(m)).Run(context.Background(), types.Query{Text: "q"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("completed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("failed", string(StatePlanning))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded))
	assert.Equal(t, 3, testutil.CollectAndCount(m.stages), "one series per stage reached")
}

func TestFailedError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", &FailedError{Stage: StateWriting, Cause: cause})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "research failed at writing stage: boom", errors.Unwrap(err).Error())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateWriting.Terminal())
}
