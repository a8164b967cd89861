// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout bounds every outbound HTTP request. Exceeding it counts as a
	// transport failure for retry purposes.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the search providers.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults caps the merged result set per sub-question (default 5).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// SemanticScholarLimit is the per-query result count requested from
	// Semantic Scholar (default 2). Zero disables the backend.
	SemanticScholarLimit int `json:"semantic_scholar_limit" yaml:"semantic_scholar_limit" mapstructure:"semantic_scholar_limit"`

	// ArxivLimit is the per-query result count requested from arXiv
	// (default 2). Zero disables the backend.
	ArxivLimit int `json:"arxiv_limit" yaml:"arxiv_limit" mapstructure:"arxiv_limit"`

	// OpenAlexLimit is the per-query result count requested from OpenAlex
	// (default 0, disabled).
	OpenAlexLimit int `json:"openalex_limit" yaml:"openalex_limit" mapstructure:"openalex_limit"`

	// WebLimit is the per-query result count taken from DuckDuckGo web
	// search (default 1). Zero disables the backend.
	WebLimit int `json:"web_limit" yaml:"web_limit" mapstructure:"web_limit"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`

	// ExcerptChars truncates each excerpt (default 800).
	ExcerptChars int `json:"excerpt_chars" yaml:"excerpt_chars" mapstructure:"excerpt_chars"`
}

// LLMProvider selects the hosted inference API.
type LLMProvider string

const (
	ProviderGroq      LLMProvider = "groq"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
)

// AIConfig holds settings for the LLM client shared by every stage.
type AIConfig struct {
	// Provider selects the API: groq, openai, or anthropic.
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "llama-3.3-70b-versatile").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Temperature is the sampling temperature (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens is the default completion budget (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds a single completion call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// PipelineConfig holds retry and context settings for the
// plan/research/write stages.
type PipelineConfig struct {
	// SearchRetries is the number of retries after a failed search call
	// (default 1, minimum 1).
	SearchRetries int `json:"search_retries" yaml:"search_retries" mapstructure:"search_retries"`

	// WriterRetries is the number of retries after a failed or empty
	// writer call (default 1).
	WriterRetries int `json:"writer_retries" yaml:"writer_retries" mapstructure:"writer_retries"`

	// RetryBackoff is the base delay before the first retry; it doubles on
	// each subsequent retry (default 1s).
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff" mapstructure:"retry_backoff"`

	// HistoryExchanges is the number of prior exchanges given to the
	// planner as conversation context (default 3).
	HistoryExchanges int `json:"history_exchanges" yaml:"history_exchanges" mapstructure:"history_exchanges"`

	// PromptsFile optionally points at a YAML file overriding the default
	// prompt templates.
	PromptsFile string `json:"prompts_file,omitempty" yaml:"prompts_file,omitempty" mapstructure:"prompts_file"`
}

// StoreConfig holds settings for the chat history database.
type StoreConfig struct {
	// DataDir is the base directory holding the database file.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
}

// DocumentConfig holds settings for uploaded document processing.
type DocumentConfig struct {
	// UploadDir is where uploaded files are stored.
	UploadDir string `json:"upload_dir" yaml:"upload_dir" mapstructure:"upload_dir"`

	// MaxFileSize is the upload limit in bytes (default 20MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size" mapstructure:"max_file_size"`
}

// ServerConfig holds settings for the HTTP service.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// HistoryMessages is how many prior chat messages are loaded for
	// conversation context (default 5).
	HistoryMessages int `json:"history_messages" yaml:"history_messages" mapstructure:"history_messages"`
}

// CacheConfig holds settings for the optional Redis search cache.
type CacheConfig struct {
	// RedisAddr enables the cache when non-empty (e.g. "localhost:6379").
	RedisAddr     string        `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPassword string        `json:"redis_password,omitempty" yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int           `json:"redis_db" yaml:"redis_db" mapstructure:"redis_db"`
	TTL           time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// Config groups every component configuration.
type Config struct {
	Search   SearchConfig   `json:"search" yaml:"search" mapstructure:"search"`
	AI       AIConfig       `json:"ai" yaml:"ai" mapstructure:"ai"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `json:"store" yaml:"store" mapstructure:"store"`
	Document DocumentConfig `json:"document" yaml:"document" mapstructure:"document"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Cache    CacheConfig    `json:"cache" yaml:"cache" mapstructure:"cache"`
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "research-assistant/0.1",
			},
			MaxResults:           5,
			SemanticScholarLimit: 2,
			ArxivLimit:           2,
			WebLimit:             1,
			ExcerptChars:         800,
		},
		AI: AIConfig{
			Provider:    ProviderGroq,
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     60 * time.Second,
		},
		Pipeline: PipelineConfig{
			SearchRetries:    1,
			WriterRetries:    1,
			RetryBackoff:     time.Second,
			HistoryExchanges: 3,
		},
		Store: StoreConfig{
			DataDir: "data",
		},
		Document: DocumentConfig{
			UploadDir:   "uploads",
			MaxFileSize: 20 * 1024 * 1024,
		},
		Server: ServerConfig{
			Addr:            ":5000",
			ShutdownTimeout: 30 * time.Second,
			HistoryMessages: 5,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
	}
}
