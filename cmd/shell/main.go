package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/microstore/internal/config"
	"github.com/kjstillabower/microstore/internal/fragment"
	httphandler "github.com/kjstillabower/microstore/internal/http"
	"github.com/kjstillabower/microstore/internal/lifecycle"
	"github.com/kjstillabower/microstore/internal/observability"
	"github.com/kjstillabower/microstore/internal/status"
	"github.com/kjstillabower/microstore/internal/store"
)

func main() {
	logger, err := observability.NewLogger("shell")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	loader, err := fragment.NewHTTPLoader(cfg.Remotes, cfg.FragmentTimeout)
	if err != nil {
		logger.Fatal("fragment loader", zap.Error(err))
	}
	loader.WithCallTimeout(cfg.ActionTimeout)
	logger.Info("fragment remotes", zap.Strings("remotes", cfg.RemoteList()), zap.Duration("timeout", cfg.FragmentTimeout))

	var st store.Store
	var memcacheCloser *store.MemcachedStore
	switch cfg.StoreBackend {
	case "memcached":
		mc := store.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		memcacheCloser = mc
		st = mc
		logger.Info("session store: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		st = store.NewInMemoryStore()
		logger.Info("session store: in_memory")
	}
	sessions := store.NewSessions(st, cfg.SessionTTL, logger)

	poller := status.NewPoller(cfg.Remotes, cfg.ProbeTimeout, logger)
	pollCtx, pollCancel := context.WithCancel(context.Background())
	defer pollCancel()
	go func() {
		if err := poller.Run(pollCtx, cfg.StatusInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("status poller stopped", zap.Error(err))
		}
	}()

	healthConfig := &httphandler.HealthConfig{
		Window:              cfg.HealthWindow,
		DegradedFallbackPct: cfg.DegradedFallbackPct,
		RateLimitRPS:        cfg.RateLimitRPS,
		RateLimitBurst:      cfg.RateLimitBurst,
		Remotes:             poller,
	}
	if memcacheCloser != nil {
		healthConfig.StorePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	shell := httphandler.NewShell(
		fragment.NewBoundary(loader, logger),
		loader,
		poller,
		sessions,
		httphandler.ShellConfig{Port: cfg.ServerPort, Remotes: cfg.Remotes, StatusWindow: cfg.HealthWindow},
		logger,
	)
	observability.RegisterTrafficGauges(cfg.HealthWindow)

	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
	}
	router := httphandler.NewShellRouter(shell, httphandler.NewHealthHandler("shell", healthConfig, logger), httphandler.RouterOptions{
		SessionCookie:  cfg.SessionCookie,
		SessionTTL:     cfg.SessionTTL,
		RequestTimeout: cfg.RequestTimeout,
		ActionTimeout:  cfg.ActionTimeout,
		Limiter:        limiter,
		TestingMode:    cfg.TestingMode,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ActionTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		lifecycle.MarkStarted(time.Now())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	pollCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
