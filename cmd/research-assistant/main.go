// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-assistant CLI. It runs
// one-shot research from the terminal, serves the chat HTTP API, and
// manages stored chats and documents.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// envKeys are the config keys that can be set from RESEARCH_ASSISTANT_*
// environment variables without a config file entry.
var envKeys = []string{
	"ai.provider", "ai.model", "ai.api_key", "ai.base_url",
	"search.semantic_scholar_api_key", "search.openalex_email",
	"store.data_dir", "document.upload_dir",
	"server.addr", "cache.redis_addr", "cache.redis_password",
	"pipeline.prompts_file",
}

var rootCmd = &cobra.Command{
	Use:   "research-assistant",
	Short: "Multi-agent research assistant over academic search",
	Long: `research-assistant answers research questions by planning three
sub-questions, searching Semantic Scholar, arXiv, and the web for each,
summarizing what it finds, and writing a cited Markdown report.

Run a single query with "research", or start the chat API with "serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := viper.GetString("log_level")
		if _, err := logging.Init(level); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logging.Get().Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-assistant.yaml or ~/.config/research-assistant/research-assistant.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-assistant")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-assistant"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_ASSISTANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, k := range envKeys {
		_ = viper.BindEnv(k)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig overlays the config file and environment on the defaults and
// fills missing credentials from .secrets/.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
