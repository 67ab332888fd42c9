package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tavernkeep/rules-server-go/internal/archive"
	"github.com/tavernkeep/rules-server-go/internal/config"
	"github.com/tavernkeep/rules-server-go/internal/game"
	"github.com/tavernkeep/rules-server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting rules server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	world := game.NewWorld(logger, cfg.Engine.MaxReactionDepth, cfg.Engine.Seed)
	engine := game.NewEngine(world, nil, logger)
	logger.Info("engine initialized",
		zap.Int("max_reaction_depth", cfg.Engine.MaxReactionDepth),
		zap.Uint64("seed", cfg.Engine.Seed),
	)

	if cfg.Database.Enabled {
		sink, err := archive.New(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to initialize event archive", zap.Error(err))
		}
		defer sink.Close()
		sink.Attach(world.Queue)
		logger.Info("event archive attached",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
		)
	}

	srv := server.New(cfg.Server, engine, logger)
	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil {
			logger.Error("inspection server error", zap.Error(serveErr))
		}
	}()

	logger.Info("rules server initialized",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("inspection server shutdown error", zap.Error(err))
	}

	logger.Info("rules server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
