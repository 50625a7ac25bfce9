// Package main provides the entry point for the stubguard soak server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kneutral-org/stubguard/internal/config"
	"github.com/kneutral-org/stubguard/internal/intercept"
	"github.com/kneutral-org/stubguard/internal/lock"
	"github.com/kneutral-org/stubguard/internal/logging"
	"github.com/kneutral-org/stubguard/internal/metrics"
)

const serviceName = "stubguard"

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.LogPretty {
		logger = logging.NewPrettyLogger(serviceName, cfg.LogLevel)
	} else {
		logger = logging.NewLogger(serviceName, cfg.LogLevel)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	registry := lock.NewRegistry(
		lock.WithShards(cfg.RegistryShards),
		lock.WithRegistryMetrics(m),
	)
	if err := m.RegisterRegistrySize(registry.Len); err != nil {
		logger.Fatal().Err(err).Msg("failed to register registry gauge")
	}

	coordinator := lock.NewCoordinator(
		lock.WithRegistry(registry),
		lock.WithReadTimeout(cfg.ReadTimeout),
		lock.WithWriteTimeout(cfg.WriteTimeout),
		lock.WithPassWait(cfg.PassWait),
		lock.WithLogger(logger),
		lock.WithMetrics(m),
	)
	s := newSoak(intercept.NewMocker(coordinator), cfg.SoakInvokers, cfg.SoakRestubInterval, logger)

	// Setup Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(logger, reg, s, registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}

	logger.Info().Msg("server exited properly")
}
