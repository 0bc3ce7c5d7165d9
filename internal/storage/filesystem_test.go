package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prepstack/pack-engine/internal/models"
)

func newTestRepo(t *testing.T) *FilesystemRepository {
	t.Helper()
	repo, err := NewFilesystemRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemRepository failed: %v", err)
	}
	return repo
}

func testPack(id string, status models.PackStatus) *models.ContentPack {
	now := time.Now().UTC()
	return &models.ContentPack{
		ID:        id,
		Name:      "pack-" + id,
		Version:   "1.0.0",
		Content:   json.RawMessage(`{"name":"pack-` + id + `"}`),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFilesystemCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	pack := testPack("abc123", models.StatusValid)
	if err := repo.CreatePack(ctx, pack); err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}

	got, err := repo.GetPack(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetPack failed: %v", err)
	}
	if got.Name != pack.Name || got.Version != pack.Version || got.Status != models.StatusValid {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	// Creating the same id twice must fail
	if err := repo.CreatePack(ctx, pack); err == nil {
		t.Error("expected error on duplicate create")
	}
}

func TestFilesystemGetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetPack(context.Background(), "missing")
	if !errors.Is(err, ErrPackNotFound) {
		t.Errorf("expected ErrPackNotFound, got %v", err)
	}
}

func TestFilesystemUpdateStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreatePack(ctx, testPack("abc123", models.StatusDraft)); err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}

	if err := repo.UpdateStatus(ctx, "abc123", models.StatusValid); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := repo.GetPack(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetPack failed: %v", err)
	}
	if got.Status != models.StatusValid {
		t.Errorf("expected status valid, got %s", got.Status)
	}

	if err := repo.UpdateStatus(ctx, "missing", models.StatusValid); !errors.Is(err, ErrPackNotFound) {
		t.Errorf("expected ErrPackNotFound, got %v", err)
	}
}

func TestFilesystemUpdatePackNotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdatePack(context.Background(), testPack("missing", models.StatusValid))
	if !errors.Is(err, ErrPackNotFound) {
		t.Errorf("expected ErrPackNotFound, got %v", err)
	}
}

func TestFilesystemListPacks(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		pack := testPack(fmt.Sprintf("pack%d", i), models.StatusValid)
		pack.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		if err := repo.CreatePack(ctx, pack); err != nil {
			t.Fatalf("CreatePack failed: %v", err)
		}
	}
	if err := repo.CreatePack(ctx, testPack("draft1", models.StatusDraft)); err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}

	all, err := repo.ListPacks(ctx, models.ListFilters{})
	if err != nil {
		t.Fatalf("ListPacks failed: %v", err)
	}
	if len(all) != 6 {
		t.Errorf("expected 6 packs, got %d", len(all))
	}

	// Newest first
	valid, err := repo.ListPacks(ctx, models.ListFilters{Status: models.StatusValid})
	if err != nil {
		t.Fatalf("ListPacks with status failed: %v", err)
	}
	if len(valid) != 5 {
		t.Fatalf("expected 5 valid packs, got %d", len(valid))
	}
	if valid[0].ID != "pack4" {
		t.Errorf("expected newest pack first, got %s", valid[0].ID)
	}

	page, err := repo.ListPacks(ctx, models.ListFilters{Status: models.StatusValid, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListPacks with paging failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "pack3" || page[1].ID != "pack2" {
		t.Errorf("unexpected page: %v", packIDs(page))
	}

	empty, err := repo.ListPacks(ctx, models.ListFilters{Offset: 100})
	if err != nil {
		t.Fatalf("ListPacks past the end failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %d packs", len(empty))
	}
}

func packIDs(packs []*models.ContentPack) []string {
	ids := make([]string, 0, len(packs))
	for _, p := range packs {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestFilesystemSetActiveSingleWinner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreatePack(ctx, testPack("first", models.StatusValid)); err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}
	if err := repo.CreatePack(ctx, testPack("second", models.StatusValid)); err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}

	if err := repo.SetActive(ctx, "first"); err != nil {
		t.Fatalf("SetActive first failed: %v", err)
	}
	active, err := repo.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active == nil || active.ID != "first" {
		t.Fatalf("expected first active, got %+v", active)
	}
	if active.Status != models.StatusActive {
		t.Errorf("expected status active, got %s", active.Status)
	}

	// Promoting the second demotes the first back to valid
	if err := repo.SetActive(ctx, "second"); err != nil {
		t.Fatalf("SetActive second failed: %v", err)
	}
	active, err = repo.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active == nil || active.ID != "second" {
		t.Fatalf("expected second active, got %+v", active)
	}

	first, err := repo.GetPack(ctx, "first")
	if err != nil {
		t.Fatalf("GetPack failed: %v", err)
	}
	if first.IsActive || first.Status != models.StatusValid {
		t.Errorf("expected first demoted to valid, got active=%v status=%s", first.IsActive, first.Status)
	}
}

func TestFilesystemSetActivePreservesInvalidOnDemote(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreatePack(ctx, testPack("first", models.StatusValid)); err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}
	if err := repo.CreatePack(ctx, testPack("second", models.StatusValid)); err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}

	if err := repo.SetActive(ctx, "first"); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	// First goes invalid while still flagged active
	first, err := repo.GetPack(ctx, "first")
	if err != nil {
		t.Fatalf("GetPack failed: %v", err)
	}
	first.Status = models.StatusInvalid
	if err := repo.UpdatePack(ctx, first); err != nil {
		t.Fatalf("UpdatePack failed: %v", err)
	}

	if err := repo.SetActive(ctx, "second"); err != nil {
		t.Fatalf("SetActive second failed: %v", err)
	}

	// Demote clears the flag but must not rewrite invalid to valid
	first, err = repo.GetPack(ctx, "first")
	if err != nil {
		t.Fatalf("GetPack failed: %v", err)
	}
	if first.IsActive {
		t.Error("expected first demoted")
	}
	if first.Status != models.StatusInvalid {
		t.Errorf("expected status invalid after demote, got %s", first.Status)
	}

	if err := repo.SetActive(ctx, "first"); !errors.Is(err, ErrPackNotValid) {
		t.Errorf("expected ErrPackNotValid for a demoted invalid pack, got %v", err)
	}
}

func TestFilesystemSetActiveRejectsUnvalidated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, status := range []models.PackStatus{models.StatusDraft, models.StatusInvalid, models.StatusValidating} {
		id := "pack-" + string(status)
		if err := repo.CreatePack(ctx, testPack(id, status)); err != nil {
			t.Fatalf("CreatePack failed: %v", err)
		}
		if err := repo.SetActive(ctx, id); !errors.Is(err, ErrPackNotValid) {
			t.Errorf("status %s: expected ErrPackNotValid, got %v", status, err)
		}
	}

	if err := repo.SetActive(ctx, "missing"); !errors.Is(err, ErrPackNotFound) {
		t.Errorf("expected ErrPackNotFound, got %v", err)
	}
}

func TestFilesystemGetActiveNone(t *testing.T) {
	repo := newTestRepo(t)

	active, err := repo.GetActive(context.Background())
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active pack, got %+v", active)
	}
}

func TestFilesystemGetActiveInconsistent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Write two active packs directly, bypassing SetActive
	for _, id := range []string{"a", "b"} {
		pack := testPack(id, models.StatusActive)
		pack.IsActive = true
		if err := repo.CreatePack(ctx, pack); err != nil {
			t.Fatalf("CreatePack failed: %v", err)
		}
	}

	_, err := repo.GetActive(ctx)
	if !errors.Is(err, ErrInconsistentState) {
		t.Errorf("expected ErrInconsistentState, got %v", err)
	}
}

func TestFilesystemPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
