package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/taxpilot/fieldmap/internal/cache"
	"github.com/taxpilot/fieldmap/internal/config"
	"github.com/taxpilot/fieldmap/internal/fill"
	"github.com/taxpilot/fieldmap/internal/inventory"
	"github.com/taxpilot/fieldmap/internal/logging"
	"github.com/taxpilot/fieldmap/internal/mapping"
	"github.com/taxpilot/fieldmap/internal/mcp"
	"github.com/taxpilot/fieldmap/internal/oracle"
	"github.com/taxpilot/fieldmap/internal/watcher"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	// Load configuration from flags first
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		logger.Debug("starting with configuration", zap.String("config", cfg.String()))
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the engine: cache store, oracle client, agent, filler.
	store, err := cache.NewSQLiteStore(cfg.CachePath)
	if err != nil {
		logger.Fatal("failed to open mapping cache", zap.Error(err))
	}
	defer store.Close()

	oracleClient, err := oracle.NewGenAIClient(ctx, oracle.GenAIConfig{
		APIKey:      cfg.OracleAPIKey,
		Model:       cfg.OracleModel,
		CallTimeout: cfg.OracleTimeout,
		BaseDelay:   cfg.OracleBaseDelay,
		StepDelay:   cfg.OracleStepDelay,
		MaxRetries:  cfg.OracleMaxRetries,
	}, logger.Named("oracle"))
	if err != nil {
		logger.Fatal("failed to create oracle client", zap.Error(err))
	}

	extractor := inventory.NewExtractor(logger.Named("inventory"))
	agent := mapping.NewAgent(oracleClient, store, mapping.AgentConfig{
		CoverageThreshold: cfg.CoverageThreshold,
		BatchSize:         cfg.BatchSize,
		MaxRounds:         cfg.MaxRounds,
	}, logger.Named("mapping"))
	filler := fill.NewFiller(logger.Named("fill"))

	server, err := mcp.NewServer(cfg, extractor, agent, store, filler, logger.Named("mcp"))
	if err != nil {
		logger.Fatal("failed to create MCP server", zap.Error(err))
	}

	if cfg.WatchForms {
		startTemplateWatcher(ctx, cfg, extractor, agent, store, logger.Named("watcher"))
	}

	// Handle different modes
	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server, logger)
	} else {
		runStdioMode(ctx, server, logger)
	}
}

// startTemplateWatcher pre-generates mappings for templates that appear in
// the forms directory without a cached document.
func startTemplateWatcher(ctx context.Context, cfg *config.Config, extractor *inventory.Extractor, agent *mapping.Agent, store cache.Store, logger *zap.Logger) {
	w, err := watcher.New(logger)
	if err != nil {
		logger.Warn("template watcher unavailable", zap.Error(err))
		return
	}

	events, err := w.Watch(ctx, cfg.FormsDirectory)
	if err != nil {
		logger.Warn("failed to watch forms directory", zap.Error(err))
		w.Close()
		return
	}

	go func() {
		defer w.Close()
		for event := range events {
			if _, err := store.Get(ctx, event.FormType, event.FormVersion); err == nil {
				continue
			}
			inv, err := extractor.ExtractFile(event.Path, event.FormType, event.FormVersion)
			if err != nil {
				logger.Warn("skipping template", zap.String("path", event.Path), zap.Error(err))
				continue
			}
			if _, err := agent.Generate(ctx, inv); err != nil {
				logger.Warn("background mapping run failed", zap.String("path", event.Path), zap.Error(err))
			}
		}
	}()
}

// runServerMode handles server mode execution with signal handling.
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, logger *zap.Logger) {
	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Start server in a goroutine
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		// Wait for server to shutdown
		if err := <-serverErrCh; err != nil {
			logger.Error("server shutdown with error", zap.Error(err))
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// runStdioMode handles stdio mode execution.
func runStdioMode(ctx context.Context, server *mcp.Server, logger *zap.Logger) {
	// In stdio mode, the parent process controls our lifecycle.
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("fieldmap server\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
