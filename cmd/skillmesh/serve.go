package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillmesh/skillmesh/pkg/config"
	"github.com/skillmesh/skillmesh/pkg/httpapi"
	"github.com/skillmesh/skillmesh/pkg/logger"
	"github.com/skillmesh/skillmesh/pkg/mcpserver"
	"github.com/skillmesh/skillmesh/pkg/presenter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve skills over MCP stdio",
	Long: `Start the skill engine and serve it over the Model Context Protocol on
stdin/stdout. The engine syncs the configured repository, ingests every
source and keeps the registry fresh in the background.

With --http the same operations are also exposed as a JSON HTTP API.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runServeCommand(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("http", false, "Also serve the JSON HTTP API")
	serveCmd.Flags().String("http-host", "", "HTTP API host (overrides config)")
	serveCmd.Flags().Int("http-port", 0, "HTTP API port (overrides config)")
	serveCmd.Flags().Bool("watch", false, "Watch the local skills directory and re-ingest on change")
	serveCmd.Flags().Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	serveCmd.Flags().String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	serveCmd.Flags().Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	viper.BindPFlag("http.enabled", serveCmd.Flags().Lookup("http"))
	viper.BindPFlag("http.host", serveCmd.Flags().Lookup("http-host"))
	viper.BindPFlag("http.port", serveCmd.Flags().Lookup("http-port"))
	viper.BindPFlag("watch_local", serveCmd.Flags().Lookup("watch"))
	viper.BindPFlag("tracing.enabled", serveCmd.Flags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", serveCmd.Flags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", serveCmd.Flags().Lookup("tracing-ratio"))
}

func runServeCommand(ctx context.Context) {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := initTracing(ctx)
	if err != nil {
		presenter.Error(err, "failed to initialize tracing")
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	cfg, err := config.FromViper()
	if err != nil {
		presenter.Error(err, "failed to load configuration")
		os.Exit(1)
	}

	mgr, cleanup, err := buildManager(ctx, cfg)
	if err != nil {
		presenter.Error(err, "failed to assemble skill engine")
		os.Exit(1)
	}
	defer cleanup()

	if err := mgr.Bootstrap(ctx); err != nil {
		presenter.Error(err, "failed to bootstrap skill registry")
		os.Exit(1)
	}

	if cfg.Repository.URL != "" {
		mgr.StartAutoSync(ctx, cfg.Repository.SyncInterval)
	}

	if cfg.WatchLocal {
		if err := mgr.WatchLocal(ctx, 0); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to start local directory watcher")
		}
	}

	if cfg.HTTP.Enabled {
		httpServer, err := httpapi.NewServer(mgr, &httpapi.ServerConfig{
			Host: cfg.HTTP.Host,
			Port: cfg.HTTP.Port,
		})
		if err != nil {
			presenter.Error(err, "failed to create HTTP API server")
			os.Exit(1)
		}
		go func() {
			if err := httpServer.Start(ctx); err != nil {
				logger.G(ctx).WithError(err).Error("HTTP API server stopped with error")
			}
		}()
	}

	logger.G(ctx).WithField("skills", mgr.Registry().Len()).Info("serving MCP on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.New(mgr).ServeStdio()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.G(ctx).WithError(err).Error("MCP server error")
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.G(ctx).Info("shutdown signal received, stopping")
	}
}
