// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: groq-api-key, openai-api-key, anthropic-api-key,
// semantic-scholar-api-key, openalex-email, redis-password.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Key file names recognised by Apply.
const (
	GroqAPIKey            = "groq-api-key"
	OpenAIAPIKey          = "openai-api-key"
	AnthropicAPIKey       = "anthropic-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
	RedisPassword         = "redis-password"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logging.Get().Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills empty credential fields of cfg from loaded secrets. Values
// already set (from the config file, environment, or flags) win. The LLM
// key is chosen by cfg.AI.Provider.
func Apply(cfg *types.Config, s map[string]string) {
	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case types.ProviderAnthropic:
			cfg.AI.APIKey = s[AnthropicAPIKey]
		case types.ProviderOpenAI:
			cfg.AI.APIKey = s[OpenAIAPIKey]
		default:
			cfg.AI.APIKey = s[GroqAPIKey]
		}
	}
	if cfg.Search.SemanticScholarAPIKey == "" {
		cfg.Search.SemanticScholarAPIKey = s[SemanticScholarAPIKey]
	}
	if cfg.Search.OpenAlexEmail == "" {
		cfg.Search.OpenAlexEmail = s[OpenAlexEmail]
	}
	if cfg.Cache.RedisPassword == "" {
		cfg.Cache.RedisPassword = s[RedisPassword]
	}
}
