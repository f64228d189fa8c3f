// Package host is a minimal embedding host: it owns a Bridge, runs the
// update loop that polls it on every tick and serves Prometheus metrics.
package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-wsbridge/internal/bridge"
	"github.com/sirosfoundation/go-wsbridge/internal/metrics"
	"github.com/sirosfoundation/go-wsbridge/internal/scripting"
	"github.com/sirosfoundation/go-wsbridge/pkg/config"
	"github.com/sirosfoundation/go-wsbridge/pkg/middleware"
)

// EchoScript is the script id of the bundled echo script
const EchoScript bridge.ScriptID = 1

// Host drives a Bridge from a ticker
type Host struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	scripts  *scripting.Registry
	bridge   *bridge.Bridge

	echo       string
	metricsSrv *http.Server
}

// New creates a host. Nothing listens until Start.
func New(cfg *config.Config, logger *zap.Logger) *Host {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	scripts := scripting.NewRegistry()

	return &Host{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		scripts:  scripts,
		bridge:   bridge.New(bridge.NewSettings(cfg), scripts, logger, metrics.New(reg)),
	}
}

// Start loads the echo script and the metrics endpoint
func (h *Host) Start() error {
	echo, err := LoadEcho(h.bridge, h.scripts, EchoScript, h.cfg.Tick.DemoPort, h.logger)
	if err != nil {
		return fmt.Errorf("failed to start echo script: %w", err)
	}
	h.echo = echo

	if h.cfg.Metrics.Enabled {
		h.metricsSrv = &http.Server{
			Addr:              h.cfg.Metrics.Address,
			Handler:           h.MetricsRouter(),
			ReadHeaderTimeout: 15 * time.Second,
		}
		go func() {
			h.logger.Info("Metrics server listening", zap.String("address", h.cfg.Metrics.Address))
			if err := h.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				h.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}
	return nil
}

// EchoAddr returns the address of the echo server
func (h *Host) EchoAddr() (string, error) {
	return h.bridge.ListenAddr(h.echo)
}

// MetricsRouter serves /metrics and /health
func (h *Host) MetricsRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(h.logger.Named("metrics")))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// Run polls the bridge every tick until ctx is done. The bridge is only
// touched from this goroutine while Run is active.
func (h *Host) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.Tick.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := h.bridge.Poll(); err != nil {
				h.logger.Error("Poll failed", zap.Error(err))
			}
		}
	}
}

// Shutdown destroys the scripts and stops every server. Run must have
// returned.
func (h *Host) Shutdown(ctx context.Context) error {
	h.bridge.DestroyScript(EchoScript)
	h.scripts.Destroy(EchoScript)
	h.bridge.Close()

	if h.metricsSrv != nil {
		if err := h.metricsSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	}
	return nil
}
