package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Remote fragment names as they appear in config and env overrides.
var RemoteNames = []string{"header", "products", "cart", "user"}

var defaultFragmentPorts = map[string]string{
	"header":   "5001",
	"products": "5002",
	"cart":     "5003",
	"user":     "5004",
}

// Config holds shell and fragment server configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort     string
	RequestTimeout time.Duration

	FragmentTimeout time.Duration
	// ActionTimeout bounds JSON API calls to remotes, which include the simulated delays.
	ActionTimeout time.Duration
	Remotes       map[string]string
	FragmentPorts map[string]string

	StatusInterval time.Duration
	ProbeTimeout   time.Duration

	SessionCookie string
	SessionTTL    time.Duration

	StoreBackend          string // "in_memory" or "memcached"
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration

	CheckoutDelay time.Duration
	SaveDelay     time.Duration

	HealthWindow        time.Duration
	DegradedFallbackPct int
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Fragments struct {
		Timeout       string            `yaml:"timeout"`
		ActionTimeout string            `yaml:"action_timeout"`
		Remotes       map[string]string `yaml:"remotes"`
		Ports         map[string]string `yaml:"ports"`
	} `yaml:"fragments"`

	Status struct {
		Interval     string `yaml:"interval"`
		ProbeTimeout string `yaml:"probe_timeout"`
	} `yaml:"status"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	Store struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"store"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Simulation struct {
		CheckoutDelay *string `yaml:"checkout_delay"`
		SaveDelay     *string `yaml:"save_delay"`
	} `yaml:"simulation"`

	Health struct {
		Window              string `yaml:"window"`
		DegradedFallbackPct int    `yaml:"degraded_fallback_pct"`
	} `yaml:"health"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) relative to
// the working directory, then applies env overrides. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = strings.TrimSpace(fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "5000"
	}
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.FragmentTimeout = parseDurationOrZero(fc.Fragments.Timeout, 2*time.Second)
	cfg.ActionTimeout = parseDuration(fc.Fragments.ActionTimeout, 5*time.Second)

	cfg.Remotes = make(map[string]string, len(RemoteNames))
	cfg.FragmentPorts = make(map[string]string, len(RemoteNames))
	for _, name := range RemoteNames {
		port := strings.TrimSpace(fc.Fragments.Ports[name])
		if port == "" {
			port = defaultFragmentPorts[name]
		}
		cfg.FragmentPorts[name] = port

		remote := strings.TrimSpace(os.Getenv(remoteEnvVar(name)))
		if remote == "" {
			remote = strings.TrimSpace(fc.Fragments.Remotes[name])
		}
		if remote == "" {
			remote = "http://localhost:" + port
		}
		cfg.Remotes[name] = strings.TrimRight(remote, "/")
	}

	cfg.StatusInterval = parseDuration(fc.Status.Interval, 10*time.Second)
	cfg.ProbeTimeout = parseDuration(fc.Status.ProbeTimeout, time.Second)

	cfg.SessionCookie = strings.TrimSpace(fc.Session.CookieName)
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "microstore_session"
	}
	cfg.SessionTTL = parseDuration(fc.Session.TTL, 24*time.Hour)

	cfg.StoreBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CART_STORE_BACKEND")))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = strings.TrimSpace(strings.ToLower(fc.Store.Backend))
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Store.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 15*time.Second)

	cfg.CheckoutDelay = parseOptionalDelay(fc.Simulation.CheckoutDelay, 2*time.Second)
	cfg.SaveDelay = parseOptionalDelay(fc.Simulation.SaveDelay, time.Second)

	cfg.HealthWindow = parseDuration(fc.Health.Window, 60*time.Second)
	cfg.DegradedFallbackPct = fc.Health.DegradedFallbackPct
	if cfg.DegradedFallbackPct <= 0 {
		cfg.DegradedFallbackPct = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RemoteList returns the configured remotes as name=url pairs sorted by name.
func (c *Config) RemoteList() []string {
	out := make([]string, 0, len(c.Remotes))
	for name, u := range c.Remotes {
		out = append(out, name+"="+u)
	}
	sort.Strings(out)
	return out
}

func remoteEnvVar(name string) string {
	return "REMOTE_" + strings.ToUpper(name) + "_URL"
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// parseOptionalDelay keeps an explicit "0s" (tests disable simulated delays
// that way) and falls back to defaultVal when the key is absent or invalid.
func parseOptionalDelay(s *string, defaultVal time.Duration) time.Duration {
	if s == nil {
		return defaultVal
	}
	d := parseDurationOrZero(*s, defaultVal)
	if d < 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// Ensures FragmentTimeout is positive, RequestTimeout exceeds it, ActionTimeout
// exceeds the simulated delays, and StoreBackend is a valid value. Auto-adjusts
// RequestTimeout and ActionTimeout if needed.
func validate(cfg *Config) error {
	if cfg.FragmentTimeout <= 0 {
		return fmt.Errorf("fragments.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.FragmentTimeout {
		cfg.RequestTimeout = cfg.FragmentTimeout + time.Second
	}
	slowest := cfg.CheckoutDelay
	if cfg.SaveDelay > slowest {
		slowest = cfg.SaveDelay
	}
	if cfg.ActionTimeout <= slowest {
		cfg.ActionTimeout = slowest + time.Second
	}
	switch cfg.StoreBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("store.backend must be in_memory or memcached, got %q", cfg.StoreBackend)
	}
	for _, name := range RemoteNames {
		u := cfg.Remotes[name]
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("remote %s URL must be http(s), got %q", name, u)
		}
	}
	return nil
}
