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
	"strings"
	"time"

	"github.com/pdiddy/research-assistant/internal/httputil"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	openAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIClient calls an OpenAI-compatible chat-completions endpoint.
// Groq serves the same API under its own base URL.
type OpenAIClient struct {
	// Name labels errors and logs (e.g. "groq").
	Name        string
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Client      *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, r Request) (string, error) {
	provider := c.Name
	if provider == "" {
		provider = "openai"
	}

	var msgs []chatMessage
	if r.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: r.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: r.Prompt})

	cr := chatRequest{
		Model:       c.Model,
		Messages:    msgs,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	if r.MaxTokens > 0 {
		cr.MaxTokens = r.MaxTokens
	}
	if r.JSON {
		cr.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	callCtx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	url := strings.TrimSuffix(c.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

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

	var cResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", malformed(provider, fmt.Errorf("decoding response: %w", err))
	}
	if len(cResp.Choices) == 0 {
		return "", malformed(provider, errors.New("response has no choices"))
	}
	return cResp.Choices[0].Message.Content, nil
}
