package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "microstore:"

// maxRelativeExp is memcached's limit for relative expirations (30 days).
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedStore implements Store using memcached.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) *MemcachedStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key prefixes and strips characters memcached rejects (spaces, control chars).
func (s *MemcachedStore) key(k string) string {
	k = strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, k)
	return keyPrefix + k
}

// Get implements Store.Get. Returns false, nil on cache miss; false, err on error.
func (s *MemcachedStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	item, err := s.client.Get(s.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(item.Value, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Store.Set. ttl <= 0 or beyond the relative limit stores
// without expiration.
func (s *MemcachedStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if value == nil {
		return ErrNilValue
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	expSec := int32(0)
	if secs := ttl.Seconds(); secs > 0 && secs <= maxRelativeExp {
		expSec = int32(secs)
	}
	return s.client.Set(&memcache.Item{
		Key:        s.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Delete implements Store.Delete. A missing key is not an error.
func (s *MemcachedStore) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := s.client.Delete(s.key(key)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
