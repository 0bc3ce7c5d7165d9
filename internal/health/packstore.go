package health

import (
	"context"

	"github.com/prepstack/pack-engine/internal/storage"
)

// PackStoreChecker reports the pack repository's availability. Behind the
// fallback decorator this succeeds when either tier is reachable.
type PackStoreChecker struct {
	repo storage.PackRepository
}

// NewPackStoreChecker wraps a pack repository as a health checker
func NewPackStoreChecker(repo storage.PackRepository) *PackStoreChecker {
	return &PackStoreChecker{repo: repo}
}

// Name returns the dependency name
func (c *PackStoreChecker) Name() string {
	return "pack_store"
}

// Check verifies repository availability
func (c *PackStoreChecker) Check(ctx context.Context) error {
	return c.repo.Ping(ctx)
}
