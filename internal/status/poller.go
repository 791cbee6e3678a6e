// Package status polls each remote fragment's health endpoint and keeps a
// reachable/unreachable flag per remote.
package status

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/microstore/internal/models"
	"github.com/kjstillabower/microstore/internal/observability"
)

// Poller probes {base}/health of every remote. A failed probe only marks that
// remote unreachable; nothing else reacts to it.
type Poller struct {
	remotes map[string]string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	statuses map[string]models.RemoteStatus
}

// NewPoller creates a Poller for the given remote name to base URL map. Every
// remote starts unreachable until its first probe.
func NewPoller(remotes map[string]string, timeout time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		remotes:  make(map[string]string, len(remotes)),
		client:   &http.Client{Transport: &http.Transport{DisableKeepAlives: true}},
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		statuses: make(map[string]models.RemoteStatus, len(remotes)),
	}
	for name, base := range remotes {
		base = strings.TrimRight(base, "/")
		p.remotes[name] = base
		p.statuses[name] = models.RemoteStatus{Name: name, URL: base}
	}
	return p
}

// ProbeAll probes every remote once, concurrently. Probes cut short by ctx
// are not recorded.
func (p *Poller) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for name, base := range p.remotes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.probe(ctx, base)
			if ctx.Err() != nil {
				return
			}
			p.record(name, err)
		}()
	}
	wg.Wait()
}

// Run probes immediately, then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	p.ProbeAll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// Snapshot returns the current status of every remote sorted by name.
func (p *Poller) Snapshot() []models.RemoteStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.RemoteStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reachable reports the last known state of the named remote.
func (p *Poller) Reachable(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.statuses[name].Reachable
}

func (p *Poller) probe(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (p *Poller) record(name string, err error) {
	reachable := err == nil
	result := "reachable"
	if !reachable {
		result = "unreachable"
	}
	observability.RemoteProbesTotal.WithLabelValues(name, result).Inc()
	observability.SetRemoteReachable(name, reachable)

	p.mu.Lock()
	prev := p.statuses[name]
	next := models.RemoteStatus{Name: name, URL: prev.URL, Reachable: reachable, CheckedAt: p.now()}
	if err != nil {
		next.LastError = err.Error()
	}
	p.statuses[name] = next
	p.mu.Unlock()

	first := prev.CheckedAt.IsZero()
	if first || prev.Reachable != reachable {
		fields := []zap.Field{zap.String("remote", name), zap.String("url", prev.URL), zap.Bool("reachable", reachable)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		p.logger.Info("remote status changed", fields...)
	}
}
