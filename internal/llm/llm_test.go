// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      types.AIConfig
		wantType string
		wantURL  string
		errMsg   string
	}{
		{
			name:     "groq default",
			cfg:      types.AIConfig{Provider: types.ProviderGroq, APIKey: "k", Model: "m"},
			wantType: "openai",
			wantURL:  groqBaseURL,
		},
		{
			name:     "empty provider means groq",
			cfg:      types.AIConfig{APIKey: "k", Model: "m"},
			wantType: "openai",
			wantURL:  groqBaseURL,
		},
		{
			name:     "openai",
			cfg:      types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "k", Model: "m"},
			wantType: "openai",
			wantURL:  openAIBaseURL,
		},
		{
			name:     "anthropic",
			cfg:      types.AIConfig{Provider: types.ProviderAnthropic, APIKey: "k", Model: "m"},
			wantType: "anthropic",
		},
		{
			name:   "missing key",
			cfg:    types.AIConfig{Provider: types.ProviderGroq, Model: "m"},
			errMsg: "no API key",
		},
		{
			name:   "unknown provider",
			cfg:    types.AIConfig{Provider: "mystery", APIKey: "k", Model: "m"},
			errMsg: "unknown llm provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			switch tt.wantType {
			case "openai":
				oc, ok := c.(*OpenAIClient)
				require.True(t, ok)
				assert.Equal(t, tt.wantURL, oc.BaseURL)
			case "anthropic":
				_, ok := c.(*AnthropicClient)
				assert.True(t, ok)
			}
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer ts.Close()

	c := &OpenAIClient{Name: "groq", APIKey: "test-key", Model: "llama", BaseURL: ts.URL, MaxTokens: 100, Client: ts.Client()}
	out, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "hi", JSON: true, MaxTokens: 50})
	require.NoError(t, err)

	assert.Equal(t, "hello", out)
	assert.Equal(t, "llama", got.Model)
	assert.Equal(t, 50, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, KindRateLimited},
		{"server error", http.StatusInternalServerError, `oops`, KindUnavailable},
		{"gateway timeout", http.StatusGatewayTimeout, ``, KindTimeout},
		{"bad json", http.StatusOK, `not json`, KindMalformedOutput},
		{"no choices", http.StatusOK, `{"choices":[]}`, KindMalformedOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := &OpenAIClient{Name: "groq", APIKey: "k", Model: "m", BaseURL: ts.URL, Client: ts.Client()}
			_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
			require.Error(t, err)

			var le *Error
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.wantKind, le.Kind)
			assert.True(t, IsKind(err, tt.wantKind))
		})
	}
}

func TestOpenAIClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer ts.Close()

	c := &OpenAIClient{APIKey: "k", Model: "m", BaseURL: ts.URL, Timeout: 20 * time.Millisecond, Client: ts.Client()}
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	assert.True(t, IsKind(err, KindTimeout), "got %v", err)
}

func TestOpenAIClient_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"x"}}]}`))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &OpenAIClient{APIKey: "k", Model: "m", BaseURL: ts.URL, Client: ts.Client()}
	_, err := c.Complete(ctx, Request{Prompt: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
	var le *Error
	assert.False(t, errors.As(err, &le))
}

func TestAnthropicClient_Complete(t *testing.T) {
	var got claudeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"ok\":true}"}]}`))
	}))
	defer ts.Close()

	c := &AnthropicClient{APIKey: "test-key", Model: "claude", BaseURL: ts.URL, Client: ts.Client()}
	out, err := c.Complete(context.Background(), Request{System: "plan", Prompt: "q", JSON: true})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, 4096, got.MaxTokens)
	assert.Contains(t, got.System, "plan")
	assert.Contains(t, got.System, "JSON object")
}

func TestAnthropicClient_NoText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content":[{"type":"tool_use"}]}`))
	}))
	defer ts.Close()

	c := &AnthropicClient{APIKey: "k", Model: "m", BaseURL: ts.URL, Client: ts.Client()}
	_, err := c.Complete(context.Background(), Request{Prompt: "q"})
	assert.True(t, IsKind(err, KindMalformedOutput))
}
