package engine

import (
	"time"

	"github.com/lazypower/pulse/internal/counter"
	"github.com/lazypower/pulse/internal/metrics"
)

// DefaultSweepInterval is the reference cadence of the decay sweep.
const DefaultSweepInterval = time.Hour

// Sweep decays every counter and boost, collects the faded ones, snapshots
// the remaining state to the persister and prunes expired audit rows.
func (e *Engine) Sweep() counter.SweepResult {
	now := e.clock()

	e.mu.Lock()
	res := e.counters.Sweep(now)
	e.mu.Unlock()

	metrics.RecordSweep(res.RemovedTags, res.RemovedBoosts, res.ActiveTags)
	if res.RemovedTags > 0 || res.RemovedBoosts > 0 {
		e.logger.Info("sweep complete", "removed_tags", res.RemovedTags,
			"removed_boosts", res.RemovedBoosts, "active_tags", res.ActiveTags)
	}
	e.Save()
	e.pruneAudit(now)
	return res
}

func (e *Engine) pruneAudit(now time.Time) {
	if e.persister == nil {
		return
	}
	n, err := e.persister.PruneAudit(now.Add(-e.retention))
	if err != nil {
		e.logger.Warn("prune audit failed", "err", err)
		return
	}
	if n > 0 {
		e.logger.Info("audit pruned", "rows", n, "retention", e.retention)
	}
}

// Save writes a snapshot of counters and sessions to the persister.
func (e *Engine) Save() {
	if e.persister == nil {
		return
	}
	e.mu.Lock()
	snap := e.counters.Snapshot()
	entries := e.sessions.Entries()
	e.mu.Unlock()

	if err := e.persister.SaveSnapshot(snap, entries); err != nil {
		e.logger.Warn("save snapshot failed", "err", err)
	}
}

// StartSweepTimer runs a sweep now and then every interval until Stop.
func (e *Engine) StartSweepTimer(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	e.Sweep()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.Sweep()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop ends the sweep goroutine and saves a final snapshot. Safe to call
// more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
		e.Save()
	})
}
