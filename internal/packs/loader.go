package packs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prepstack/pack-engine/internal/activation"
	"github.com/prepstack/pack-engine/internal/models"
)

// SeedLoader imports starter content packs from a directory at boot. Packs
// may be authored as YAML or JSON documents; each one goes through the same
// upload path as the API, so invalid seeds land as INVALID rather than
// aborting startup.
type SeedLoader struct {
	manager activation.Manager
}

// NewSeedLoader creates a seed loader backed by the pack manager
func NewSeedLoader(manager activation.Manager) *SeedLoader {
	return &SeedLoader{manager: manager}
}

// LoadFromDir imports every pack document found in dir. Already-imported
// packs (same name and version) are skipped.
func (l *SeedLoader) LoadFromDir(ctx context.Context, dir string) error {
	slog.Info("loading seed packs from directory", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read seed directory: %w", err)
	}

	existing, err := l.manager.List(ctx, models.ListFilters{})
	if err != nil {
		return fmt.Errorf("failed to list existing packs: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, pack := range existing {
		seen[pack.Name+"@"+pack.Version] = true
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := l.loadFile(ctx, path, ext, seen); err != nil {
			slog.Warn("failed to load seed pack", "file", entry.Name(), "error", err)
			continue
		}
		loaded++
	}

	slog.Info("seed packs loaded", "count", loaded, "total_files", len(entries))
	return nil
}

// loadFile imports a single seed pack document
func (l *SeedLoader) loadFile(ctx context.Context, path, ext string, seen map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	raw := data
	if ext == ".yaml" || ext == ".yml" {
		raw, err = yamlToJSON(data)
		if err != nil {
			return fmt.Errorf("failed to convert YAML: %w", err)
		}
	}

	var doc models.ContentPackData
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode pack document: %w", err)
	}

	key := doc.Name + "@" + doc.Version
	if doc.Name != "" && seen[key] {
		slog.Debug("seed pack already imported", "name", doc.Name, "version", doc.Version)
		return nil
	}

	pack, result, err := l.manager.Upload(ctx, raw)
	if err != nil {
		return err
	}

	seen[key] = true
	slog.Info("seed pack imported",
		"pack_id", pack.ID,
		"name", pack.Name,
		"version", pack.Version,
		"valid", result.IsValid,
	)
	return nil
}

// yamlToJSON re-encodes a YAML pack document as JSON so the schema package
// only ever sees one wire format
func yamlToJSON(data []byte) ([]byte, error) {
	var doc models.ContentPackData
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(&doc)
}
