//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/microstore/internal/store"
)

// IntegrationConfig holds the session backend used by integration tests.
type IntegrationConfig struct {
	StoreBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// INTEGRATION_STORE_BACKEND selects the backend; memcached is the default.
func GetIntegrationConfig(t *testing.T) IntegrationConfig {
	t.Helper()
	backend := os.Getenv("INTEGRATION_STORE_BACKEND")
	if backend == "" {
		backend = "memcached"
	}
	addr := os.Getenv("MEMCACHED_ADDRS")
	if addr == "" {
		addr = "localhost:11211"
	}
	return IntegrationConfig{StoreBackend: backend, MemcachedAddr: addr}
}

// SetupSessions returns session state over the configured backend. A
// memcached backend that cannot be reached skips the test.
func SetupSessions(t *testing.T, cfg IntegrationConfig) *store.Sessions {
	t.Helper()
	logger := zaptest.NewLogger(t)
	if cfg.StoreBackend != "memcached" {
		return store.NewSessions(store.NewInMemoryStore(), time.Hour, logger)
	}

	mc := store.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2)
	if err := mc.Ping(); err != nil {
		mc.Close()
		t.Skipf("memcached not reachable at %s: %v", cfg.MemcachedAddr, err)
	}
	t.Cleanup(func() { mc.Close() })
	t.Logf("Using memcached session store at %s", cfg.MemcachedAddr)
	return store.NewSessions(mc, time.Hour, logger)
}
