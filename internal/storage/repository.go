package storage

import (
	"context"
	"errors"

	"github.com/prepstack/pack-engine/internal/models"
)

// Sentinel errors shared by all backends
var (
	// ErrPackNotFound is returned for lookups and updates on unknown pack ids
	ErrPackNotFound = errors.New("pack not found")

	// ErrPackNotValid is returned when activation targets a pack whose
	// stored status does not permit it
	ErrPackNotValid = errors.New("pack is not in a valid state")

	// ErrInconsistentState is returned when the active flag is held by more
	// than one pack. Readers must surface this, never pick a winner silently.
	ErrInconsistentState = errors.New("active pack state is inconsistent")
)

// PackRepository defines the interface for content pack persistence.
// Implementations must apply writes atomically per record.
type PackRepository interface {
	CreatePack(ctx context.Context, pack *models.ContentPack) error
	GetPack(ctx context.Context, id string) (*models.ContentPack, error)
	UpdatePack(ctx context.Context, pack *models.ContentPack) error
	UpdateStatus(ctx context.Context, id string, status models.PackStatus) error
	ListPacks(ctx context.Context, filters models.ListFilters) ([]*models.ContentPack, error)

	// SetActive promotes one pack to active and demotes the previous one as
	// a single logical unit. The target must currently be activatable.
	SetActive(ctx context.Context, id string) error

	// GetActive returns the single active pack, (nil, nil) when none is
	// active, or ErrInconsistentState when the flag is duplicated.
	GetActive(ctx context.Context) (*models.ContentPack, error)

	Ping(ctx context.Context) error
	Close() error
}

// ClientStore defines lookup of API clients for authentication.
// Only the database backend implements this; client records have no
// filesystem fallback.
type ClientStore interface {
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error
}
