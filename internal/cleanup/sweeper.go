package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prepstack/pack-engine/internal/idempotency"
	"github.com/prepstack/pack-engine/internal/storage"
)

// Sweeper periodically purges expired in-memory idempotency records and
// checks the active-pack flag for consistency. A repository reporting two
// active packs is a fault to surface loudly, not repair silently.
type Sweeper struct {
	repo     storage.PackRepository
	memory   *idempotency.MemoryStore // nil when the store is redis-backed
	interval time.Duration
}

// NewSweeper creates a new background sweeper
func NewSweeper(repo storage.PackRepository, memory *idempotency.MemoryStore, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Sweeper{
		repo:     repo,
		memory:   memory,
		interval: interval,
	}
}

// Start begins the sweeper in a goroutine
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// run is the main loop for the sweeper
func (s *Sweeper) run(ctx context.Context) {
	slog.Info("cleanup sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one purge and consistency cycle
func (s *Sweeper) sweep(ctx context.Context) {
	slog.Debug("running cleanup cycle")

	if s.memory != nil {
		if purged := s.memory.PurgeExpired(); purged > 0 {
			slog.Info("purged expired idempotency records", "count", purged)
		}
	}

	if _, err := s.repo.GetActive(ctx); err != nil {
		if errors.Is(err, storage.ErrInconsistentState) {
			slog.Error("active pack consistency check failed", "error", err)
			return
		}
		slog.Warn("active pack consistency check skipped", "error", err)
	}
}
