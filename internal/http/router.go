package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/microstore/internal/observability"
)

// RouterOptions holds the middleware settings shared by the shell and the
// fragment servers.
type RouterOptions struct {
	SessionCookie  string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	ActionTimeout  time.Duration
	// Limiter guards actions and APIs; nil disables rate limiting.
	Limiter     *rate.Limiter
	TestingMode bool
}

func (o RouterOptions) withDefaults() RouterOptions {
	if o.SessionCookie == "" {
		o.SessionCookie = "microstore_session"
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 24 * time.Hour
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 5 * time.Second
	}
	return o
}

// NewShellRouter wires the shell's page, action, status and health routes.
func NewShellRouter(shell *Shell, health *HealthHandler, opts RouterOptions, logger *zap.Logger) *mux.Router {
	opts = opts.withDefaults()
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(SessionMiddleware(opts.SessionCookie, opts.SessionTTL))

	router.HandleFunc("/health", health.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")
	router.HandleFunc("/status", shell.GetStatus).Methods("GET")
	router.Handle("/", TimeoutMiddleware(opts.RequestTimeout)(http.HandlerFunc(shell.Home))).Methods("GET")

	actions := router.PathPrefix("/actions").Subrouter()
	actions.Use(RateLimitMiddleware(opts.Limiter))
	actions.Use(TimeoutMiddleware(opts.ActionTimeout + time.Second))
	actions.HandleFunc("/cart/toggle", shell.ToggleCart).Methods("POST")
	actions.HandleFunc("/cart/checkout", shell.Checkout).Methods("POST")
	actions.HandleFunc("/cart/{productId}/decrement", shell.DecrementCartItem).Methods("POST")
	actions.HandleFunc("/cart/{productId}/remove", shell.RemoveFromCart).Methods("POST")
	actions.HandleFunc("/cart/{productId}", shell.AddToCart).Methods("POST")
	actions.HandleFunc("/login", shell.Login).Methods("POST")
	actions.HandleFunc("/logout", shell.Logout).Methods("POST")
	actions.HandleFunc("/menu", shell.Menu).Methods("POST")
	actions.HandleFunc("/view/{view}", shell.SetView).Methods("POST")
	actions.HandleFunc("/category", shell.SetCategory).Methods("POST")
	actions.HandleFunc("/notifications/clear", shell.ClearNotifications).Methods("POST")
	actions.HandleFunc("/profile", shell.UpdateProfile).Methods("POST")
	actions.HandleFunc("/preferences", shell.UpdatePreferences).Methods("POST")

	if opts.TestingMode {
		router.HandleFunc("/test", health.GetTestStatus).Methods("GET")
		router.HandleFunc("/test/{action}", health.PostTestAction).Methods("POST")
	}
	return router
}

// NewFragmentRouter wires one fragment server: its views, standalone page,
// API and health routes.
func NewFragmentRouter(app FragmentApp, health *HealthHandler, opts RouterOptions, logger *zap.Logger) *mux.Router {
	opts = opts.withDefaults()
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(SessionMiddleware(opts.SessionCookie, opts.SessionTTL))

	router.HandleFunc("/health", health.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	views := NewFragmentHandler(app, logger)
	router.Handle("/fragments/{view}", TimeoutMiddleware(opts.RequestTimeout)(http.HandlerFunc(views.ServeView))).Methods("GET", "POST")
	router.HandleFunc("/", app.Standalone).Methods("GET")

	if opts.TestingMode {
		router.HandleFunc("/test", health.GetTestStatus).Methods("GET")
		router.HandleFunc("/test/{action}", health.PostTestAction).Methods("POST")
	}

	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(opts.Limiter))
	api.Use(TimeoutMiddleware(opts.ActionTimeout))
	app.Routes(api)
	return router
}
