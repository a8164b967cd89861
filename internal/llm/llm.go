// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides text-completion clients for hosted language
// models. Every pipeline stage talks to a model through the Client
// interface so tests can supply a fake.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Request is a single completion request.
type Request struct {
	// System is the system prompt; may be empty.
	System string
	// Prompt is the user message.
	Prompt string
	// MaxTokens overrides the client's default completion budget when > 0.
	MaxTokens int
	// JSON asks the backend to return a single JSON object.
	JSON bool
}

// Client completes a prompt. Implementations return *Error for every
// failure other than context cancellation.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrorKind classifies an LLM failure.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindRateLimited     ErrorKind = "rate_limited"
	KindMalformedOutput ErrorKind = "malformed_output"
	KindUnavailable     ErrorKind = "unavailable"
)

// Error is returned by Client implementations.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s llm %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == kind
}

// httpRetries is the number of 429 retries made inside a single call.
const httpRetries = 2

// New builds a Client for cfg.Provider. An empty API key is an error
// because every supported provider requires one.
func New(cfg types.AIConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model configured for provider %q", cfg.Provider)
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case types.ProviderAnthropic:
		return &AnthropicClient{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Client:      client,
		}, nil
	case types.ProviderOpenAI, types.ProviderGroq, "":
		base := cfg.BaseURL
		name := string(cfg.Provider)
		if base == "" {
			if cfg.Provider == types.ProviderOpenAI {
				base = openAIBaseURL
			} else {
				base = groqBaseURL
				name = string(types.ProviderGroq)
			}
		}
		return &OpenAIClient{
			Name:        name,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     base,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Client:      client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// classify maps a transport error to an *Error. Context cancellation is
// returned unwrapped so callers can tell it apart from provider failures.
func classify(ctx context.Context, provider string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if httputil.IsTimeout(err) {
		return &Error{Kind: KindTimeout, Provider: provider, Err: err}
	}
	return &Error{Kind: KindUnavailable, Provider: provider, Err: err}
}

// statusError maps a non-200 response to an *Error.
func statusError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	err := fmt.Errorf("API returned %d: %s", status, msg)
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Provider: provider, Err: err}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &Error{Kind: KindTimeout, Provider: provider, Err: err}
	default:
		return &Error{Kind: KindUnavailable, Provider: provider, Err: err}
	}
}

func malformed(provider string, err error) error {
	return &Error{Kind: KindMalformedOutput, Provider: provider, Err: err}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
