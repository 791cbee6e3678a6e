package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/microstore/internal/lifecycle"
	"github.com/kjstillabower/microstore/internal/traffic"
)

type healthBody struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
}

func getHealth(t *testing.T, h *HealthHandler) (int, healthBody) {
	t.Helper()
	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
	var body healthBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return w.Code, body
}

func TestGetHealth_Healthy(t *testing.T) {
	resetGlobals(t)
	statuses := &stubStatuses{reachable: map[string]bool{"header": true}}
	h := NewHealthHandler("shell", &HealthConfig{DegradedFallbackPct: 50, Remotes: statuses}, zap.NewNop())

	code, body := getHealth(t, h)
	if code != http.StatusOK || body.Status != "healthy" {
		t.Fatalf("health = %d %q, want 200 healthy", code, body.Status)
	}
	if body.Service != "shell" {
		t.Errorf("service = %q, want shell", body.Service)
	}
	if body.Checks["remote:header"] != "healthy" || body.Checks["remote:cart"] != "unhealthy" {
		t.Errorf("remote checks = %v", body.Checks)
	}
	if _, ok := body.Checks["store"]; ok {
		t.Error("store check reported without a store ping")
	}
}

func TestGetHealth_Priority(t *testing.T) {
	storeDown := func() error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		cfg        HealthConfig
		setup      func()
		wantCode   int
		wantStatus string
	}{
		{
			name: "shutting down wins over everything",
			cfg:  HealthConfig{RateLimitBurst: 1, StorePing: storeDown, DegradedFallbackPct: 1},
			setup: func() {
				lifecycle.SetShuttingDown(true)
				recordDenials(5)
				traffic.RecordFallback("cart")
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "shutting-down",
		},
		{
			name:       "overloaded when denials exceed burst",
			cfg:        HealthConfig{RateLimitBurst: 2, StorePing: storeDown},
			setup:      func() { recordDenials(3) },
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "overloaded",
		},
		{
			name:       "denials at burst are not overload",
			cfg:        HealthConfig{RateLimitBurst: 2},
			setup:      func() { recordDenials(2) },
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "store unreachable is degraded",
			cfg:        HealthConfig{StorePing: storeDown},
			setup:      func() {},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name: "fallback rate at threshold is degraded",
			cfg:  HealthConfig{DegradedFallbackPct: 50},
			setup: func() {
				traffic.RecordFallback("cart")
				traffic.RecordRendered("header")
			},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name: "fallback rate below threshold is healthy",
			cfg:  HealthConfig{DegradedFallbackPct: 50},
			setup: func() {
				traffic.RecordFallback("cart")
				traffic.RecordRendered("header")
				traffic.RecordRendered("user")
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobals(t)
			tt.setup()
			cfg := tt.cfg
			code, body := getHealth(t, NewHealthHandler("shell", &cfg, zap.NewNop()))
			if code != tt.wantCode || body.Status != tt.wantStatus {
				t.Errorf("health = %d %q, want %d %q", code, body.Status, tt.wantCode, tt.wantStatus)
			}
		})
	}
}

func recordDenials(n int) {
	for i := 0; i < n; i++ {
		traffic.RecordDenied()
	}
}

func TestGetHealth_LogsTransitions(t *testing.T) {
	resetGlobals(t)
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHealthHandler("shell", &HealthConfig{DegradedFallbackPct: 50}, zap.New(core))

	getHealth(t, h)
	if logs.Len() != 0 {
		t.Fatalf("first check logged %d entries, want 0", logs.Len())
	}

	traffic.RecordFallback("header")
	getHealth(t, h)
	getHealth(t, h)

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" || fields["reason"] != "fallback_rate_breach" {
		t.Errorf("transition fields = %v", fields)
	}
}

func TestGetHealth_StoreCheck(t *testing.T) {
	resetGlobals(t)
	h := NewHealthHandler("fragment-cart", &HealthConfig{StorePing: func() error { return nil }}, zap.NewNop())
	_, body := getHealth(t, h)
	if body.Checks["store"] != "healthy" {
		t.Errorf("store check = %q, want healthy", body.Checks["store"])
	}
}

func newTestRouter(h *HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/test", h.GetTestStatus).Methods("GET")
	router.HandleFunc("/test/{action}", h.PostTestAction).Methods("POST")
	return router
}

func postTest(t *testing.T, router http.Handler, action, body string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/test/"+action, strings.NewReader(body)))
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w.Code, out
}

func TestPostTestAction(t *testing.T) {
	resetGlobals(t)
	h := NewHealthHandler("shell", &HealthConfig{DegradedFallbackPct: 50, RateLimitBurst: 5}, zap.NewNop())
	router := newTestRouter(h)

	code, out := postTest(t, router, "fallback", `{"fragment":"cart","count":3}`)
	if code != http.StatusOK || out["state"] != "degraded" {
		t.Errorf("fallback = %d %v, want 200 degraded", code, out)
	}
	if counts := traffic.ByFragment(h.cfg.Window); len(counts) != 1 || counts[0] != (traffic.FragmentCounts{Fragment: "cart", Fallbacks: 3}) {
		t.Errorf("ByFragment() = %+v", counts)
	}

	_, out = postTest(t, router, "deny", "")
	if out["state"] != "overloaded" {
		t.Errorf("deny state = %v, want overloaded (10 denials > burst 5)", out["state"])
	}

	_, out = postTest(t, router, "reset", "")
	if out["state"] != "healthy" {
		t.Errorf("reset state = %v, want healthy", out["state"])
	}

	_, out = postTest(t, router, "shutdown", "")
	if out["state"] != "shutting-down" || !lifecycle.IsShuttingDown() {
		t.Errorf("shutdown state = %v", out["state"])
	}

	code, out = postTest(t, router, "explode", "")
	if code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", code)
	}
	if e, _ := out["error"].(map[string]interface{}); e["code"] != "UNKNOWN_ACTION" {
		t.Errorf("unknown action body = %v", out)
	}
}

func TestGetTestStatus(t *testing.T) {
	resetGlobals(t)
	h := NewHealthHandler("shell", &HealthConfig{RateLimitBurst: 4, RateLimitRPS: 2}, zap.NewNop())
	traffic.RecordRendered("header")
	traffic.RecordFallback("user")
	traffic.RecordDenied()

	w := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	var out struct {
		Renders   int    `json:"renders_in_window"`
		Fallbacks int    `json:"fallbacks_in_window"`
		Denied    int    `json:"denied_in_window"`
		State     string `json:"state"`
		Window    string `json:"window_length"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Renders != 2 || out.Fallbacks != 1 || out.Denied != 1 {
		t.Errorf("counts = %+v", out)
	}
	if out.State != "healthy" || out.Window != "1m0s" {
		t.Errorf("state = %q window = %q", out.State, out.Window)
	}
}

func TestShellHealth_ReportsRemotes(t *testing.T) {
	resetGlobals(t)
	stack := newTestStack(t, "user")
	stack.statuses.reachable = map[string]bool{"header": true, "products": true, "cart": true}

	resp, err := http.Get(stack.shell.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	var body healthBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["remote:user"] != "unhealthy" || body.Checks["remote:header"] != "healthy" {
		t.Errorf("checks = %v", body.Checks)
	}
}
