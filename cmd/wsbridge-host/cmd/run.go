package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-wsbridge/internal/host"
	"github.com/sirosfoundation/go-wsbridge/pkg/config"
	"github.com/sirosfoundation/go-wsbridge/pkg/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the host and the echo script",
	RunE:  runHost,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting wsbridge host",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("user_agent", cfg.UserAgent()),
		zap.Duration("tick", cfg.Tick.Interval),
		zap.String("log_level", logging.LevelString(logging.ParseLevel(cfg.Logging.Level))),
	)

	h := host.New(cfg, logger)
	if err := h.Start(); err != nil {
		return err
	}
	if addr, err := h.EchoAddr(); err == nil {
		logger.Info("Echo server listening", zap.String("address", addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := h.Run(ctx); err != nil {
		return err
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("Host exited")
	return nil
}
