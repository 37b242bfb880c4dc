package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizplan/internal/config"
	"bizplan/internal/logger"
	"bizplan/internal/server"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command for starting the HTTP API
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
		mock bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API for section generation",
		Long: `Start a JSON HTTP API so a front end can generate sections.

Endpoints:
  GET  /health
  GET  /api/status
  GET  /api/length-types
  POST /api/sections/{name}   body: {"state": {...}, "word_count": 800, "length_type": "media"}
  POST /api/estimate          body: {"sections": [...], "state": {...}}
  GET  /api/usage/{session}

When server.api_key (or BIZPLAN_API_KEY) is set, /api requires
"Authorization: Bearer <key>".

Examples:
  bizplan serve
  bizplan serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host, mock)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")
	cmd.Flags().BoolVar(&mock, "mock", false, "collect research from canned offline results")

	return cmd
}

func runServe(port int, host string, mock bool) error {
	cfg := config.Get()

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	usage, err := newUsageStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open usage database: %w", err)
	}

	opts := []server.Option{server.WithModel(cfg.AI.Gemini.Model)}
	if usage != nil {
		defer func() {
			if err := usage.Close(); err != nil {
				logger.Error("Failed to close usage database", err)
			}
		}()
		opts = append(opts, server.WithUsage(usage))
	}

	gen := newSectionGenerator(cfg, generatorSetup{mock: mock}, usage)
	srv := server.New(gen, serverCfg, opts...)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on http://%s", serverCfg.Addr()))
		logger.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		logger.Info("Server shutdown initiated", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		logger.Info("Server stopped successfully")
	}

	return nil
}
