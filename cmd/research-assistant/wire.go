// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/cache"
	"github.com/pdiddy/research-assistant/internal/document"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/orchestrator"
	"github.com/pdiddy/research-assistant/internal/planner"
	"github.com/pdiddy/research-assistant/internal/prompts"
	"github.com/pdiddy/research-assistant/internal/research"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/writer"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// components holds the shared pieces built from a Config. Close releases
// the search cache connection, if any.
type components struct {
	llm     llm.Client
	prompts *prompts.Set
	search  search.Provider
	closers []func() error
}

func (c *components) Close() {
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			logging.Get().Warn("closing component", zap.Error(err))
		}
	}
}

func buildComponents(ctx context.Context, cfg types.Config) (*components, error) {
	client, err := llm.New(cfg.AI)
	if err != nil {
		return nil, err
	}

	set := prompts.Default()
	if cfg.Pipeline.PromptsFile != "" {
		set, err = prompts.Load(cfg.Pipeline.PromptsFile)
		if err != nil {
			return nil, fmt.Errorf("loading prompts: %w", err)
		}
	}

	c := &components{llm: client, prompts: set}
	c.search, c.closers = buildSearch(ctx, cfg)
	return c, nil
}

// buildSearch returns the configured search provider, wrapped in the Redis
// cache when one is configured and reachable. An unreachable cache is
// logged and skipped.
func buildSearch(ctx context.Context, cfg types.Config) (search.Provider, []func() error) {
	var p search.Provider = search.NewFromConfig(cfg.Search)
	if cfg.Cache.RedisAddr == "" {
		return p, nil
	}
	rdb, err := cache.NewRedis(ctx, cfg.Cache)
	if err != nil {
		logging.Get().Warn("search cache disabled", zap.Error(err))
		return p, nil
	}
	logging.Get().Info("search cache enabled", zap.String("addr", cfg.Cache.RedisAddr))
	return &search.Cached{Provider: p, Cache: rdb, TTL: cfg.Cache.TTL}, []func() error{rdb.Close}
}

// newPipeline wires planner, researcher, and writer into an orchestrator.
// reg may be nil to skip metrics.
func newPipeline(c *components, cfg types.Config, reg prometheus.Registerer, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	if reg != nil {
		opts = append(opts, orchestrator.WithMetrics(orchestrator.NewMetrics(reg)))
	}
	return orchestrator.New(
		planner.New(c.llm, c.prompts, cfg.Pipeline),
		research.New(c.search, c.llm, c.prompts, cfg.Pipeline),
		writer.New(c.llm, c.prompts, cfg.Pipeline),
		opts...,
	)
}

// newProcessor builds the document processor. The markitdown container
// fallback is used when docker or podman has the image.
func newProcessor(ctx context.Context, c *components, cfg types.Config) *document.Processor {
	ex := &document.Extractor{}
	if conv, err := document.DetectMarkitdown(ctx); err == nil {
		logging.Get().Info("markitdown fallback available", zap.String("runtime", conv.Runtime()))
		ex.Fallback = conv
	} else {
		logging.Get().Debug("markitdown fallback unavailable", zap.Error(err))
	}
	return &document.Processor{
		Extractor: ex,
		Analyzer:  &document.Analyzer{LLM: c.llm, Prompts: c.prompts},
		Config:    cfg.Document,
	}
}
