package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/microstore/internal/config"
	"github.com/kjstillabower/microstore/internal/fragment"
	httphandler "github.com/kjstillabower/microstore/internal/http"
	"github.com/kjstillabower/microstore/internal/lifecycle"
	"github.com/kjstillabower/microstore/internal/observability"
	"github.com/kjstillabower/microstore/internal/store"
)

// RootOptions holds flags shared by every fragment subcommand.
type RootOptions struct {
	// Port overrides the fragment's configured port when set.
	Port string
}

var fragmentCommands = []struct {
	name  string
	short string
}{
	{fragment.Header, "Serve the header fragment (navigation, notifications, user menu)"},
	{fragment.Products, "Serve the product catalog fragment"},
	{fragment.Cart, "Serve the shopping cart fragment"},
	{fragment.User, "Serve the user fragment (login, profile, settings)"},
}

// NewRootCommand creates the fragment CLI with one subcommand per fragment.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fragment",
		Short: "Run a MicroStore fragment server",
		Long: `Run one MicroStore fragment server. Each fragment renders its views at
POST /fragments/{view} for the shell and serves a standalone page at /.

Example:
  fragment products
  fragment cart --port 6003`,
	}
	cmd.PersistentFlags().StringVar(&opts.Port, "port", "", "listen port (defaults to the configured fragment port)")

	for _, fc := range fragmentCommands {
		cmd.AddCommand(newFragmentCommand(opts, fc.name, fc.short))
	}
	return cmd
}

func newFragmentCommand(opts *RootOptions, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:           name,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFragment(cmd.Context(), opts, name)
		},
	}
}

// resolvePort picks the --port override or the configured port for name.
func resolvePort(opts *RootOptions, cfg *config.Config, name string) string {
	if opts.Port != "" {
		return opts.Port
	}
	return cfg.FragmentPorts[name]
}

// newApp builds the FragmentApp for name.
func newApp(name string, cfg *config.Config, sessions *store.Sessions, port string, logger *zap.Logger) (httphandler.FragmentApp, error) {
	switch name {
	case fragment.Header:
		return httphandler.NewHeaderApp(port, logger), nil
	case fragment.Products:
		return httphandler.NewProductsApp(port, logger), nil
	case fragment.Cart:
		return httphandler.NewCartApp(sessions, cfg.CheckoutDelay, port, logger), nil
	case fragment.User:
		return httphandler.NewUserApp(sessions, cfg.SaveDelay, port, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", fragment.ErrUnknownFragment, name)
}

func runFragment(ctx context.Context, opts *RootOptions, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := observability.NewLogger("fragment-" + name)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	port := resolvePort(opts, cfg, name)

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

	app, err := newApp(name, cfg, sessions, port, logger)
	if err != nil {
		return err
	}

	healthConfig := &httphandler.HealthConfig{
		Window:         cfg.HealthWindow,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}
	if memcacheCloser != nil {
		healthConfig.StorePing = memcacheCloser.Ping
	}
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
	}
	// Each fragment gets its own cookie: browsers share cookies across ports.
	router := httphandler.NewFragmentRouter(app, httphandler.NewHealthHandler("fragment-"+name, healthConfig, logger), httphandler.RouterOptions{
		SessionCookie:  cfg.SessionCookie + "_" + name,
		SessionTTL:     cfg.SessionTTL,
		RequestTimeout: cfg.RequestTimeout,
		ActionTimeout:  cfg.ActionTimeout,
		Limiter:        limiter,
		TestingMode:    cfg.TestingMode,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ActionTimeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("fragment", name), zap.String("addr", ":"+port))
		lifecycle.MarkStarted(time.Now())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-sigCtx.Done():
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
	}

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
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
	return nil
}
