package cache

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically sweeps expired entries out of a MemoryCache so an
// idle entry does not hold its set in memory for the life of the process.
// Expiry itself is enforced at read time; the sweep only bounds memory.
type Janitor struct {
	cache    *MemoryCache
	interval time.Duration
}

// NewJanitor creates a sweep worker for the given cache
func NewJanitor(cache *MemoryCache, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Janitor{
		cache:    cache,
		interval: interval,
	}
}

// Start begins the sweep worker in a goroutine
func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

// run is the main loop for the sweep worker
func (j *Janitor) run(ctx context.Context) {
	slog.Info("cache janitor started", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cache janitor stopped")
			return
		case <-ticker.C:
			if removed := j.cache.SweepExpired(); removed > 0 {
				slog.Debug("swept expired cache entries", "count", removed)
			}
		}
	}
}
