package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prepstack/pack-engine/internal/models"
)

// FilesystemRepository implements PackRepository with one JSON document per
// pack under a data directory. It is the degrade path when the database is
// down: independently authoritative, serialized through a process-local
// mutex. The deactivate/activate pair is two file writes; GetActive detects
// a crash between them via the flag count.
type FilesystemRepository struct {
	mu  sync.Mutex
	dir string
}

// NewFilesystemRepository creates a repository rooted at dir, creating it if
// needed
func NewFilesystemRepository(dir string) (*FilesystemRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pack data dir: %w", err)
	}
	return &FilesystemRepository{dir: dir}, nil
}

func (r *FilesystemRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// writePack writes a pack document atomically via tmp+rename
func (r *FilesystemRepository) writePack(pack *models.ContentPack) error {
	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pack: %w", err)
	}

	tmp := r.path(pack.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pack file: %w", err)
	}

	if err := os.Rename(tmp, r.path(pack.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename pack file: %w", err)
	}

	return nil
}

func (r *FilesystemRepository) readPack(id string) (*models.ContentPack, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPackNotFound
		}
		return nil, fmt.Errorf("failed to read pack file: %w", err)
	}

	var pack models.ContentPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pack %s: %w", id, err)
	}

	return &pack, nil
}

func (r *FilesystemRepository) readAll() ([]*models.ContentPack, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pack data dir: %w", err)
	}

	var packs []*models.ContentPack
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		pack, err := r.readPack(id)
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}

	return packs, nil
}

// CreatePack persists a new pack document
func (r *FilesystemRepository) CreatePack(ctx context.Context, pack *models.ContentPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(pack.ID)); err == nil {
		return fmt.Errorf("pack already exists: %s", pack.ID)
	}

	return r.writePack(pack)
}

// GetPack retrieves a pack by ID
func (r *FilesystemRepository) GetPack(ctx context.Context, id string) (*models.ContentPack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readPack(id)
}

// UpdatePack overwrites an existing pack document
func (r *FilesystemRepository) UpdatePack(ctx context.Context, pack *models.ContentPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(pack.ID)); err != nil {
		if os.IsNotExist(err) {
			return ErrPackNotFound
		}
		return fmt.Errorf("failed to stat pack file: %w", err)
	}

	pack.UpdatedAt = time.Now().UTC()
	return r.writePack(pack)
}

// UpdateStatus updates only the lifecycle status of a pack
func (r *FilesystemRepository) UpdateStatus(ctx context.Context, id string, status models.PackStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pack, err := r.readPack(id)
	if err != nil {
		return err
	}

	pack.Status = status
	pack.UpdatedAt = time.Now().UTC()
	return r.writePack(pack)
}

// ListPacks returns packs matching filters, newest first
func (r *FilesystemRepository) ListPacks(ctx context.Context, filters models.ListFilters) ([]*models.ContentPack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.readAll()
	if err != nil {
		return nil, err
	}

	var packs []*models.ContentPack
	for _, pack := range all {
		if filters.Status != "" && pack.Status != filters.Status {
			continue
		}
		packs = append(packs, pack)
	}

	sort.Slice(packs, func(i, j int) bool {
		return packs[i].CreatedAt.After(packs[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(packs) {
			return nil, nil
		}
		packs = packs[filters.Offset:]
	}

	if filters.Limit > 0 && filters.Limit < len(packs) {
		packs = packs[:filters.Limit]
	}

	return packs, nil
}

// SetActive promotes one pack and demotes the previous one. The demote is
// written first so a crash leaves zero active packs, which GetActive reports
// rather than two.
func (r *FilesystemRepository) SetActive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.readPack(id)
	if err != nil {
		return err
	}

	if target.Status != models.StatusValid && target.Status != models.StatusActive {
		return ErrPackNotValid
	}

	all, err := r.readAll()
	if err != nil {
		return err
	}

	for _, pack := range all {
		if pack.IsActive && pack.ID != id {
			pack.IsActive = false
			// Only an active status is rewritten on demote; an invalid
			// pack stays invalid until it passes validation again
			if pack.Status == models.StatusActive {
				pack.Status = models.StatusValid
			}
			pack.UpdatedAt = time.Now().UTC()
			if err := r.writePack(pack); err != nil {
				return err
			}
		}
	}

	target.IsActive = true
	target.Status = models.StatusActive
	target.UpdatedAt = time.Now().UTC()
	return r.writePack(target)
}

// GetActive returns the single active pack, or nil when none is active
func (r *FilesystemRepository) GetActive(ctx context.Context) (*models.ContentPack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.readAll()
	if err != nil {
		return nil, err
	}

	var active []*models.ContentPack
	for _, pack := range all {
		if pack.IsActive {
			active = append(active, pack)
		}
	}

	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return active[0], nil
	default:
		return nil, fmt.Errorf("%w: %d packs are flagged active", ErrInconsistentState, len(active))
	}
}

// Ping checks that the data directory is reachable
func (r *FilesystemRepository) Ping(ctx context.Context) error {
	if _, err := os.Stat(r.dir); err != nil {
		return fmt.Errorf("pack data dir unavailable: %w", err)
	}
	return nil
}

// Close is a no-op for the filesystem backend
func (r *FilesystemRepository) Close() error {
	return nil
}
