package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/lifecycle"
	"github.com/kjstillabower/microstore/internal/observability"
	"github.com/kjstillabower/microstore/internal/traffic"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	// Window is the traffic window the thresholds are evaluated over.
	Window              time.Duration
	DegradedFallbackPct int
	RateLimitRPS        int
	RateLimitBurst      int // 0 when rate limiter disabled
	// StorePing, when set, is called to check session store reachability.
	// Used when the backend is memcached.
	StorePing func() error
	// Remotes, when set, reports remote reachability (shell only).
	Remotes RemoteStatuses
}

// HealthHandler serves GET /health and the testing-mode /test endpoints.
type HealthHandler struct {
	service          string
	cfg              *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

func NewHealthHandler(service string, cfg *HealthConfig, logger *zap.Logger) *HealthHandler {
	if cfg == nil {
		cfg = &HealthConfig{}
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &HealthHandler{service: service, cfg: cfg, logger: logger}
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"fragments": "healthy"}
	if result.reason == "fallback_rate_breach" {
		checks["fragments"] = "unhealthy"
	}
	if h.cfg.StorePing != nil {
		checks["store"] = healthWord(h.cfg.StorePing() == nil)
	}
	if h.cfg.Remotes != nil {
		for _, rs := range h.cfg.Remotes.Snapshot() {
			checks["remote:"+rs.Name] = healthWord(rs.Reachable)
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   h.service,
		"version":   "dev",
		"checks":    checks,
		"uptime":    lifecycle.Uptime(time.Now()).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func healthWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > store unreachable > fallback rate > healthy.
// Only shutting-down and overloaded answer 503; a degraded server still serves
// pages, with fallbacks standing in for failed fragments.
func (h *HealthHandler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.cfg.RateLimitBurst > 0 && traffic.DenialCount(h.cfg.Window) > h.overloadThreshold() {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if h.cfg.StorePing != nil && h.cfg.StorePing() != nil {
		return healthResult{"degraded", http.StatusOK, "store_unreachable"}
	}
	if h.cfg.DegradedFallbackPct > 0 {
		fallbacks, total := traffic.FallbackRate(h.cfg.Window)
		if total > 0 && fallbacks*100/total >= h.cfg.DegradedFallbackPct {
			return healthResult{"degraded", http.StatusOK, "fallback_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// overloadThreshold is the number of denials in the window above which the
// server reports overloaded: one full burst.
func (h *HealthHandler) overloadThreshold() int {
	return h.cfg.RateLimitBurst
}

// GetTestStatus handles GET /test. Returns current traffic state.
func (h *HealthHandler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	fallbacks, total := traffic.FallbackRate(h.cfg.Window)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"renders_in_window":   total,
		"fallbacks_in_window": fallbacks,
		"denied_in_window":    traffic.DenialCount(h.cfg.Window),
		"fragments":           traffic.ByFragment(h.cfg.Window),
		"window_length":       h.cfg.Window.String(),
		"state":               h.computeHealthStatus().status,
		"config": map[string]interface{}{
			"rate_limit_rps":        h.cfg.RateLimitRPS,
			"rate_limit_burst":      h.cfg.RateLimitBurst,
			"overload_threshold":    h.overloadThreshold(),
			"degraded_fallback_pct": h.cfg.DegradedFallbackPct,
		},
	})
}

// PostTestAction handles POST /test/{action} for fallback, deny, reset and shutdown.
func (h *HealthHandler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	switch action {
	case "fallback":
		h.postTestFallback(w, r)
	case "deny":
		h.postTestDeny(w, r)
	case "reset":
		traffic.Reset()
		lifecycle.SetShuttingDown(false)
		h.writeTestResult(w, action, "All simulated state cleared")
	case "shutdown":
		lifecycle.SetShuttingDown(true)
		h.writeTestResult(w, action, "Shutting-down flag set")
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
	}
}

// postTestFallback records simulated fallbacks for one fragment (default header).
func (h *HealthHandler) postTestFallback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fragment string `json:"fragment"`
		Count    int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		body.Count = 1
	}
	if body.Fragment == "" {
		body.Fragment = "header"
	}
	for i := 0; i < body.Count; i++ {
		traffic.RecordFallback(body.Fragment)
	}
	h.writeTestResult(w, "fallback", "Recorded "+strconv.Itoa(body.Count)+" fallbacks for "+body.Fragment)
}

// postTestDeny records simulated rate-limit denials.
func (h *HealthHandler) postTestDeny(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		body.Count = 10
	}
	for i := 0; i < body.Count; i++ {
		traffic.RecordDenied()
		observability.RateLimitDeniedTotal.Inc()
	}
	h.writeTestResult(w, "deny", "Recorded "+strconv.Itoa(body.Count)+" denials")
}

func (h *HealthHandler) writeTestResult(w http.ResponseWriter, action, msg string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"action":  action,
		"message": msg,
		"state":   h.computeHealthStatus().status,
	})
}
