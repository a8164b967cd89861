// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/research-assistant/internal/httputil"
)

// anthropicAPIURL is the Claude Messages endpoint. Package-level var for test substitution.
var anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicClient calls the Claude Messages API.
type AnthropicClient struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Client      *http.Client
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends one message to Claude. JSON mode is requested through
// the system prompt since the Messages API has no response format flag.
func (c *AnthropicClient) Complete(ctx context.Context, r Request) (string, error) {
	const provider = "anthropic"

	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	system := r.System
	if r.JSON {
		system += "\n\nRespond with a single JSON object and no other text."
	}

	body, err := json.Marshal(claudeRequest{
		Model:       c.Model,
		MaxTokens:   maxTokens,
		System:      system,
		Temperature: c.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: r.Prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.BaseURL
	if url == "" {
		url = anthropicAPIURL
	}

	callCtx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(callCtx, client, req, httpRetries)
	if err != nil {
		return "", classify(ctx, provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", statusError(provider, resp.StatusCode, b)
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", malformed(provider, fmt.Errorf("decoding response: %w", err))
	}

	for _, block := range cResp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", malformed(provider, errors.New("no text content in response"))
}
