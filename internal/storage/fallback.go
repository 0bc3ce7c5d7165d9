package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prepstack/pack-engine/internal/models"
)

// FallbackRepository wraps a primary and a secondary backend behind a single
// PackRepository. Infrastructure failures on the primary are retried against
// the secondary, so call sites depend on one interface instead of each
// re-implementing the degrade branch. Domain outcomes (not found, not valid,
// inconsistent state) never trigger failover. The two backends can diverge
// while the primary is down; reconciliation is out of scope.
type FallbackRepository struct {
	primary   PackRepository
	secondary PackRepository
}

// NewFallbackRepository creates a two-tier repository
func NewFallbackRepository(primary, secondary PackRepository) *FallbackRepository {
	return &FallbackRepository{primary: primary, secondary: secondary}
}

// isInfraFailure reports whether an error means "backend down" rather than a
// domain outcome worth propagating as-is
func isInfraFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrPackNotFound) &&
		!errors.Is(err, ErrPackNotValid) &&
		!errors.Is(err, ErrInconsistentState)
}

func logFailover(op string, err error) {
	slog.Warn("primary pack store failed, using fallback", "op", op, "error", err)
}

// CreatePack persists via the primary, falling back on infrastructure failure
func (r *FallbackRepository) CreatePack(ctx context.Context, pack *models.ContentPack) error {
	err := r.primary.CreatePack(ctx, pack)
	if isInfraFailure(err) {
		logFailover("create_pack", err)
		return r.secondary.CreatePack(ctx, pack)
	}
	return err
}

// GetPack retrieves a pack by ID
func (r *FallbackRepository) GetPack(ctx context.Context, id string) (*models.ContentPack, error) {
	pack, err := r.primary.GetPack(ctx, id)
	if isInfraFailure(err) {
		logFailover("get_pack", err)
		return r.secondary.GetPack(ctx, id)
	}
	return pack, err
}

// UpdatePack updates an existing pack
func (r *FallbackRepository) UpdatePack(ctx context.Context, pack *models.ContentPack) error {
	err := r.primary.UpdatePack(ctx, pack)
	if isInfraFailure(err) {
		logFailover("update_pack", err)
		return r.secondary.UpdatePack(ctx, pack)
	}
	return err
}

// UpdateStatus updates the lifecycle status of a pack
func (r *FallbackRepository) UpdateStatus(ctx context.Context, id string, status models.PackStatus) error {
	err := r.primary.UpdateStatus(ctx, id, status)
	if isInfraFailure(err) {
		logFailover("update_status", err)
		return r.secondary.UpdateStatus(ctx, id, status)
	}
	return err
}

// ListPacks returns packs matching filters
func (r *FallbackRepository) ListPacks(ctx context.Context, filters models.ListFilters) ([]*models.ContentPack, error) {
	packs, err := r.primary.ListPacks(ctx, filters)
	if isInfraFailure(err) {
		logFailover("list_packs", err)
		return r.secondary.ListPacks(ctx, filters)
	}
	return packs, err
}

// SetActive promotes one pack to active
func (r *FallbackRepository) SetActive(ctx context.Context, id string) error {
	err := r.primary.SetActive(ctx, id)
	if isInfraFailure(err) {
		logFailover("set_active", err)
		return r.secondary.SetActive(ctx, id)
	}
	return err
}

// GetActive returns the single active pack
func (r *FallbackRepository) GetActive(ctx context.Context) (*models.ContentPack, error) {
	pack, err := r.primary.GetActive(ctx)
	if isInfraFailure(err) {
		logFailover("get_active", err)
		return r.secondary.GetActive(ctx)
	}
	return pack, err
}

// Ping succeeds when either backend is reachable
func (r *FallbackRepository) Ping(ctx context.Context) error {
	if err := r.primary.Ping(ctx); err != nil {
		return r.secondary.Ping(ctx)
	}
	return nil
}

// Close closes both backends
func (r *FallbackRepository) Close() error {
	err := r.primary.Close()
	if serr := r.secondary.Close(); serr != nil && err == nil {
		err = serr
	}
	return err
}
