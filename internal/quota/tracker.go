// Package quota implements the per-client audit quota with a periodic
// full-table reset.
package quota

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seolens/audit-relay/internal/telemetry"
)

// Tracker counts accepted dispatch requests per client key and clears the
// whole table on a fixed wall-clock interval. Counts live in memory only;
// a process restart forgets all quotas, which is an accepted limitation.
//
// Check and Charge are individually atomic, but the gate is check-then-charge
// across the dispatch work, so a concurrent burst on one key can briefly
// exceed the ceiling. That matches the documented semantics; callers wanting
// strict enforcement would need an atomic check-and-increment.
type Tracker struct {
	mu       sync.Mutex
	counts   map[string]int
	ceiling  int
	interval time.Duration
	logger   *zap.Logger
}

// New constructs a Tracker with the given per-key ceiling and reset interval.
func New(ceiling int, interval time.Duration, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		counts:   make(map[string]int),
		ceiling:  ceiling,
		interval: interval,
		logger:   logger,
	}
}

// Check reports whether the key is under the ceiling along with its current
// count. A key with no record counts as zero.
func (t *Tracker) Check(key string) (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := t.counts[key]
	return count < t.ceiling, count
}

// Charge increments the key's count by one and returns the new count. Called
// once per accepted dispatch request, after the fan-out completes.
func (t *Tracker) Charge(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	return t.counts[key]
}

// Remaining returns how many audits the key has left in the current window.
func (t *Tracker) Remaining(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	left := t.ceiling - t.counts[key]
	if left < 0 {
		return 0
	}
	return left
}

// Ceiling returns the configured per-key limit.
func (t *Tracker) Ceiling() int {
	return t.ceiling
}

// Reset clears every key atomically.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.counts = make(map[string]int)
	t.mu.Unlock()
	telemetry.ObserveQuotaReset()
	t.logger.Info("quota table reset")
}

// Run performs the recurring reset until the context finishes.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Reset()
		case <-ctx.Done():
			return
		}
	}
}
