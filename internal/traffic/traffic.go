// Package traffic keeps sliding windows of fragment load outcomes and
// rate-limit denials. The shell's health check and /status read from it.
package traffic

import (
	"sort"
	"sync"
	"time"
)

// maxAge bounds how long outcomes are retained regardless of query window.
const maxAge = 5 * time.Minute

var defaultTracker = NewTracker()

// RecordRendered records a fragment that rendered from its remote.
func RecordRendered(fragment string) {
	defaultTracker.RecordRendered(fragment)
}

// RecordFallback records a fragment replaced by its fallback view.
func RecordFallback(fragment string) {
	defaultTracker.RecordFallback(fragment)
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// RequestCount returns loads (rendered + fallback) plus denials within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// FallbackRate returns (fallbacks, loads) within the window. Denials are excluded.
func FallbackRate(window time.Duration) (fallbacks, total int) {
	return defaultTracker.FallbackRate(window)
}

// ByFragment returns per-fragment counts within the window.
func ByFragment(window time.Duration) []FragmentCounts {
	return defaultTracker.ByFragment(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type outcome struct {
	at       time.Time
	fragment string
	fallback bool
}

// FragmentCounts summarises one fragment's loads in a window.
type FragmentCounts struct {
	Fragment  string `json:"fragment"`
	Rendered  int    `json:"rendered"`
	Fallbacks int    `json:"fallbacks"`
}

// Tracker maintains time-ordered outcome and denial timestamps.
type Tracker struct {
	mu       sync.Mutex
	outcomes []outcome
	denied   []time.Time
	now      func() time.Time
}

// NewTracker returns an empty tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

func (t *Tracker) RecordRendered(fragment string) {
	t.record(fragment, false)
}

func (t *Tracker) RecordFallback(fragment string) {
	t.record(fragment, true)
}

func (t *Tracker) RecordDenied() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.denied = append(t.denied, now)
	t.pruneLocked(now)
}

func (t *Tracker) record(fragment string, fallback bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.outcomes = append(t.outcomes, outcome{at: now, fragment: fragment, fallback: fallback})
	t.pruneLocked(now)
}

// RequestCount returns loads plus denials within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, o := range t.outcomes {
		if !o.at.Before(cutoff) {
			n++
		}
	}
	return n + countSince(t.denied, cutoff)
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denied, t.now().Add(-window))
}

// FallbackRate returns (fallbacks, loads) within the window.
func (t *Tracker) FallbackRate(window time.Duration) (fallbacks, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for _, o := range t.outcomes {
		if o.at.Before(cutoff) {
			continue
		}
		total++
		if o.fallback {
			fallbacks++
		}
	}
	return fallbacks, total
}

// ByFragment returns per-fragment counts within the window, sorted by fragment name.
func (t *Tracker) ByFragment(window time.Duration) []FragmentCounts {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	counts := make(map[string]*FragmentCounts)
	for _, o := range t.outcomes {
		if o.at.Before(cutoff) {
			continue
		}
		c, ok := counts[o.fragment]
		if !ok {
			c = &FragmentCounts{Fragment: o.fragment}
			counts[o.fragment] = c
		}
		if o.fallback {
			c.Fallbacks++
		} else {
			c.Rendered++
		}
	}
	out := make([]FragmentCounts, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fragment < out[j].Fragment })
	return out
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcomes = nil
	t.denied = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops entries older than maxAge. Entries are appended in time
// order, so pruning stops at the first young entry. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	i := 0
	for ; i < len(t.outcomes) && t.outcomes[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.outcomes = append(t.outcomes[:0], t.outcomes[i:]...)
	}
	j := 0
	for ; j < len(t.denied) && t.denied[j].Before(cutoff); j++ {
	}
	if j > 0 {
		t.denied = append(t.denied[:0], t.denied[j:]...)
	}
}
