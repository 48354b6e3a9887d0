package session

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically evicts sessions whose every seat has been
// connectionless for longer than the TTL. Sessions with a live
// connection are never touched, however old they are.
type Reaper struct {
	logger   *slog.Logger
	registry *Registry

	ttl      time.Duration
	interval time.Duration
}

func NewReaper(logger *slog.Logger, registry *Registry, ttl, interval time.Duration) *Reaper {
	return &Reaper{
		logger:   logger.With("component", "reaper"),
		registry: registry,
		ttl:      ttl,
		interval: interval,
	}
}

// Run - sweeps on a fixed interval until the context is canceled.
func (that *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(that.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			that.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			that.Sweep()
		}
	}
}

// Sweep - removes every expired session and reports how many went.
func (that *Reaper) Sweep() int {
	now := time.Now()
	removed := 0

	for _, id := range that.registry.SnapshotIDs() {
		existing, ok := that.registry.Get(id)
		if !ok {
			continue
		}

		if !existing.Expired(now, that.ttl) {
			continue
		}

		that.registry.Remove(id)
		removed++

		that.logger.Info("reaped stale session", "sessionID", id)
	}

	if removed > 0 {
		that.logger.Info("sweep finished", "removed", removed, "remaining", that.registry.Len())
	}

	return removed
}
