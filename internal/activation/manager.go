package activation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prepstack/pack-engine/internal/idempotency"
	"github.com/prepstack/pack-engine/internal/models"
	"github.com/prepstack/pack-engine/internal/storage"
	"github.com/prepstack/pack-engine/internal/validator"
)

// Hook is invoked after a successful activation. Hook failures are logged
// and swallowed; they never roll back the activation.
type Hook func(ctx context.Context, event models.ActivationEvent) error

// Manager defines the interface for content pack lifecycle management
type Manager interface {
	Upload(ctx context.Context, raw []byte) (*models.ContentPack, *models.ValidationResult, error)
	Get(ctx context.Context, id string) (*models.ContentPack, error)
	List(ctx context.Context, filters models.ListFilters) ([]*models.ContentPack, error)
	Revalidate(ctx context.Context, id string) (*models.ValidationResult, error)
	Activate(ctx context.Context, packID, requestID string) (*models.ContentPack, error)
	Restore(ctx context.Context, backupID, requestID string) (*models.ContentPack, error)
	GetActive(ctx context.Context) (*models.ContentPack, error)
	AddHook(hook Hook)
	Ping(ctx context.Context) error
}

// PackManager implements Manager on top of the pack repository. The active
// pack pointer lives in the repository's is_active flag; it is read through
// on every request so multiple instances never disagree.
type PackManager struct {
	repo      storage.PackRepository
	validator *validator.Validator
	idem      idempotency.Store
	idemTTL   time.Duration

	hookMu sync.RWMutex
	hooks  []Hook
}

// NewManager creates a new PackManager
func NewManager(repo storage.PackRepository, v *validator.Validator, idem idempotency.Store, idemTTL time.Duration) *PackManager {
	return &PackManager{
		repo:      repo,
		validator: v,
		idem:      idem,
		idemTTL:   idemTTL,
	}
}

// AddHook registers an activation notification hook
func (m *PackManager) AddHook(hook Hook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Ping checks that the backing store is operational
func (m *PackManager) Ping(ctx context.Context) error {
	return m.repo.Ping(ctx)
}

// Upload validates a raw pack document and persists it with the derived
// status. Invalid packs are persisted too, so they can be inspected and
// revalidated later.
func (m *PackManager) Upload(ctx context.Context, raw []byte) (*models.ContentPack, *models.ValidationResult, error) {
	result := m.validator.Validate(raw)

	// Identity fields are best-effort for invalid documents
	var data models.ContentPackData
	_ = json.Unmarshal(raw, &data)

	now := time.Now().UTC()
	pack := &models.ContentPack{
		ID:        uuid.New().String()[:12],
		Name:      data.Name,
		Version:   data.Version,
		Content:   json.RawMessage(raw),
		Status:    result.Status(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.repo.CreatePack(ctx, pack); err != nil {
		return nil, nil, fmt.Errorf("failed to persist uploaded pack: %w", err)
	}

	slog.Info("pack uploaded",
		"pack_id", pack.ID,
		"name", pack.Name,
		"version", pack.Version,
		"status", pack.Status,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)

	return pack, result, nil
}

// Get retrieves a pack by ID
func (m *PackManager) Get(ctx context.Context, id string) (*models.ContentPack, error) {
	return m.repo.GetPack(ctx, id)
}

// List returns packs matching filters
func (m *PackManager) List(ctx context.Context, filters models.ListFilters) ([]*models.ContentPack, error) {
	return m.repo.ListPacks(ctx, filters)
}

// Revalidate re-runs validation on a stored pack, cycling its status through
// validating to the fresh outcome
func (m *PackManager) Revalidate(ctx context.Context, id string) (*models.ValidationResult, error) {
	pack, err := m.repo.GetPack(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := m.repo.UpdateStatus(ctx, id, models.StatusValidating); err != nil {
		return nil, fmt.Errorf("failed to mark pack validating: %w", err)
	}

	result := m.validator.Validate(pack.Content)

	status := result.Status()
	if pack.IsActive {
		if result.IsValid {
			status = models.StatusActive
		} else {
			// The active pack failed revalidation. It is deactivated so
			// GetActive stops serving known-bad content; reactivation
			// requires passing validation again.
			pack.IsActive = false
			pack.Status = models.StatusInvalid
			if err := m.repo.UpdatePack(ctx, pack); err != nil {
				return nil, fmt.Errorf("failed to deactivate invalid pack: %w", err)
			}
			slog.Warn("active pack failed revalidation and was deactivated",
				"pack_id", id,
				"errors", len(result.Errors),
			)
			return result, nil
		}
	}

	if err := m.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to persist validation outcome: %w", err)
	}

	slog.Info("pack revalidated", "pack_id", id, "status", status, "duration_ms", result.Performance.DurationMs)

	return result, nil
}

// Activate promotes a valid pack to the single active pack. A requestID, if
// supplied, deduplicates retried activations: the losing call is a no-op
// that returns the current active pack.
func (m *PackManager) Activate(ctx context.Context, packID, requestID string) (*models.ContentPack, error) {
	if requestID != "" {
		won, err := m.idem.TryCreate(ctx, "activate:"+requestID, m.idemTTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !won {
			slog.Info("duplicate activation suppressed", "pack_id", packID, "request_id", requestID)
			active, err := m.repo.GetActive(ctx)
			if err != nil {
				return nil, err
			}
			if active != nil {
				return active, nil
			}
			// The winning call may not have committed SetActive yet. Return
			// the requested pack's current state rather than nothing.
			return m.repo.GetPack(ctx, packID)
		}
	}

	pack, err := m.repo.GetPack(ctx, packID)
	if err != nil {
		return nil, err
	}

	if !pack.Status.IsActivatable() {
		return nil, fmt.Errorf("%w: pack %s has status %s", storage.ErrPackNotValid, packID, pack.Status)
	}

	previous, err := m.repo.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.repo.SetActive(ctx, packID); err != nil {
		return nil, err
	}

	activated, err := m.repo.GetPack(ctx, packID)
	if err != nil {
		return nil, err
	}

	event := models.ActivationEvent{
		PackID:     activated.ID,
		Name:       activated.Name,
		Version:    activated.Version,
		OccurredAt: time.Now().UTC(),
	}
	if previous != nil {
		event.PreviousID = previous.ID
	}

	m.notify(ctx, event)

	slog.Info("pack activated",
		"pack_id", activated.ID,
		"name", activated.Name,
		"version", activated.Version,
		"previous_id", event.PreviousID,
	)

	return activated, nil
}

// Restore revalidates a stored backup pack and activates it, with the same
// invariants as Activate
func (m *PackManager) Restore(ctx context.Context, backupID, requestID string) (*models.ContentPack, error) {
	result, err := m.Revalidate(ctx, backupID)
	if err != nil {
		return nil, err
	}

	if !result.IsValid {
		return nil, fmt.Errorf("%w: backup %s failed revalidation", storage.ErrPackNotValid, backupID)
	}

	return m.Activate(ctx, backupID, requestID)
}

// GetActive returns the currently active pack through the repository flag
func (m *PackManager) GetActive(ctx context.Context) (*models.ContentPack, error) {
	return m.repo.GetActive(ctx)
}

// notify runs activation hooks, isolating the activation from any failure
func (m *PackManager) notify(ctx context.Context, event models.ActivationEvent) {
	m.hookMu.RLock()
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.hookMu.RUnlock()

	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("activation hook panicked", "pack_id", event.PackID, "panic", r)
				}
			}()
			if err := hook(ctx, event); err != nil {
				slog.Warn("activation hook failed", "pack_id", event.PackID, "error", err)
			}
		}()
	}
}
