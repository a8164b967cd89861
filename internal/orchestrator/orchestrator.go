// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator drives one research request through its stages:
// planning, parallel research of every sub-question, and writing. The
// run is a small state machine whose terminal states are Completed and
// Failed.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// State is the position of a request in the pipeline.
type State string

const (
	StateSubmitted   State = "submitted"
	StatePlanning    State = "planning"
	StateResearching State = "researching"
	StateWriting     State = "writing"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// FailedError records the stage a request failed in and why.
type FailedError struct {
	Stage State
	Cause error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("research failed at %s stage: %v", e.Stage, e.Cause)
}

func (e *FailedError) Unwrap() error { return e.Cause }

// Planner decomposes a query into sub-questions.
type Planner interface {
	Plan(ctx context.Context, q types.Query) ([]types.SubQuestion, error)
}

// Researcher answers one sub-question. It returns an error only when ctx
// is done.
type Researcher interface {
	Research(ctx context.Context, sq types.SubQuestion) (types.Finding, error)
}

// Writer synthesizes the final report.
type Writer interface {
	Write(ctx context.Context, query string, findings []types.Finding) (types.Report, error)
}

// ProgressEvent is emitted on every state transition and for each
// finished sub-question.
type ProgressEvent struct {
	RequestID string
	State     State
	// Index is the sub-question number (1-based) for research events, 0 otherwise.
	Index   int
	Message string
	Time    time.Time
}

// Result is the outcome of Run. Exactly one of Report or Err is meaningful,
// as indicated by State.
type Result struct {
	RequestID    string
	State        State
	SubQuestions []types.SubQuestion
	Findings     []types.Finding
	Report       types.Report
	Duration     time.Duration

	err *FailedError
}

// Err returns the *FailedError of a failed run, or nil.
func (r Result) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Orchestrator wires the three stages together.
type Orchestrator struct {
	planner    Planner
	researcher Researcher
	writer     Writer
	onProgress func(ProgressEvent)
	metrics    *Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a callback for progress events. It is called
// synchronously, possibly from several goroutines at once.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithMetrics records run outcomes and stage durations in m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New returns an Orchestrator using the given stages.
func New(p Planner, r Researcher, w Writer, opts ...Option) *Orchestrator {
	o := &Orchestrator{planner: p, researcher: r, writer: w}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run holds the mutable state of one request.
type run struct {
	o      *Orchestrator
	id     string
	state  State
	start  time.Time
	log    *zap.Logger
	result Result
}

// Run executes q to completion or failure. Stages are not retried here;
// retries live inside the research and writer stages.
func (o *Orchestrator) Run(ctx context.Context, q types.Query) Result {
	r := &run{
		o:     o,
		id:    uuid.NewString(),
		state: StateSubmitted,
		start: time.Now(),
	}
	r.log = logging.Get().With(zap.String("request_id", r.id))
	r.result.RequestID = r.id
	r.emit(0, "query submitted")

	r.transition(StatePlanning)
	err := o.timed(StatePlanning, func() error {
		subs, err := o.planner.Plan(ctx, q)
		r.result.SubQuestions = subs
		return err
	})
	if err != nil {
		return r.fail(err)
	}

	r.transition(StateResearching)
	err = o.timed(StateResearching, func() error {
		findings, err := o.fanOut(ctx, r, r.result.SubQuestions)
		r.result.Findings = findings
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	degraded := 0
	for _, f := range r.result.Findings {
		if f.Status.Degraded() {
			degraded++
		}
	}
	if degraded > 0 {
		r.log.Warn("degraded findings", zap.Int("count", degraded))
	}
	o.metrics.observeDegraded(degraded)

	r.transition(StateWriting)
	err = o.timed(StateWriting, func() error {
		rep, err := o.writer.Write(ctx, q.Text, r.result.Findings)
		r.result.Report = rep
		return err
	})
	if err != nil {
		return r.fail(err)
	}

	r.transition(StateCompleted)
	r.result.State = StateCompleted
	r.result.Duration = time.Since(r.start)
	o.metrics.observeRun(StateCompleted)
	r.log.Info("research completed",
		zap.Int("sources", len(r.result.Report.Bibliography)),
		zap.Int("degraded", degraded),
		zap.Duration("duration", r.result.Duration))
	return r.result
}

func (o *Orchestrator) timed(stage State, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics.observeStage(stage, time.Since(start))
	return err
}

func (r *run) transition(next State) {
	r.log.Debug("state transition", zap.String("from", string(r.state)), zap.String("to", string(next)))
	r.state = next
	r.emit(0, string(next))
}

// fail moves the run to Failed, recording the stage it was in.
func (r *run) fail(cause error) Result {
	stage := r.state
	r.result.err = &FailedError{Stage: stage, Cause: cause}
	r.result.State = StateFailed
	r.result.Duration = time.Since(r.start)
	r.state = StateFailed
	r.log.Error("research failed", zap.String("stage", string(stage)), zap.Error(cause))
	r.emit(0, r.result.err.Error())
	r.o.metrics.observeRun(stage)
	return r.result
}

func (r *run) emit(index int, msg string) {
	if r.o.onProgress == nil {
		return
	}
	r.o.onProgress(ProgressEvent{
		RequestID: r.id,
		State:     r.state,
		Index:     index,
		Message:   msg,
		Time:      time.Now(),
	})
}
