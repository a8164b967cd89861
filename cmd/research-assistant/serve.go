// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/chat"
	"github.com/pdiddy/research-assistant/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat and research HTTP API",
	Long: `Serve starts the JSON HTTP API: chat management, research requests,
document uploads, message search, /health, and Prometheus /metrics.
SIGINT or SIGTERM shuts the server down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :5000)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if err := os.MkdirAll(cfg.Document.UploadDir, 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	store, err := chat.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipeline := newPipeline(c, cfg, reg)
	docs := newProcessor(ctx, c, cfg)
	srv := server.New(store, pipeline, docs, cfg, reg, reg)
	return srv.ListenAndServe(ctx)
}
