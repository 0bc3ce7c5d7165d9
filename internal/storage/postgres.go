package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepstack/pack-engine/internal/models"
)

// PostgresRepository implements PackRepository and ClientStore using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const packColumns = `id, name, version, content, status, is_active, created_at, updated_at`

// CreatePack inserts a new pack record
func (r *PostgresRepository) CreatePack(ctx context.Context, pack *models.ContentPack) error {
	query := `
		INSERT INTO packs (id, name, version, content, status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		pack.ID,
		pack.Name,
		pack.Version,
		[]byte(pack.Content),
		string(pack.Status),
		pack.IsActive,
		pack.CreatedAt,
		pack.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create pack: %w", err)
	}

	return nil
}

// GetPack retrieves a pack by ID
func (r *PostgresRepository) GetPack(ctx context.Context, id string) (*models.ContentPack, error) {
	query := fmt.Sprintf(`SELECT %s FROM packs WHERE id = $1`, packColumns)

	pack, err := scanPack(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackNotFound
		}
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}

	return pack, nil
}

// UpdatePack updates an existing pack record
func (r *PostgresRepository) UpdatePack(ctx context.Context, pack *models.ContentPack) error {
	query := `
		UPDATE packs
		SET name = $2, version = $3, content = $4, status = $5, is_active = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		pack.ID,
		pack.Name,
		pack.Version,
		[]byte(pack.Content),
		string(pack.Status),
		pack.IsActive,
		time.Now().UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to update pack: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPackNotFound
	}

	return nil
}

// UpdateStatus updates only the lifecycle status of a pack
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.PackStatus) error {
	query := `UPDATE packs SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update pack status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPackNotFound
	}

	return nil
}

// ListPacks returns packs matching filters, newest first
func (r *PostgresRepository) ListPacks(ctx context.Context, filters models.ListFilters) ([]*models.ContentPack, error) {
	query := fmt.Sprintf(`SELECT %s FROM packs WHERE 1=1`, packColumns)
	args := make([]interface{}, 0)
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	defer rows.Close()

	var packs []*models.ContentPack

	for rows.Next() {
		pack, err := scanPack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pack: %w", err)
		}
		packs = append(packs, pack)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packs: %w", err)
	}

	return packs, nil
}

// SetActive promotes one pack and demotes the previous one in a single
// transaction, so readers never observe zero or two active packs.
func (r *PostgresRepository) SetActive(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Only an active status is rewritten on demote; any other status, such
	// as invalid after a failed revalidation, is preserved.
	if _, err := tx.Exec(ctx,
		`UPDATE packs SET is_active = FALSE, status = CASE WHEN status = $1 THEN $2 ELSE status END, updated_at = NOW() WHERE is_active = TRUE AND id <> $3`,
		string(models.StatusActive), string(models.StatusValid), id,
	); err != nil {
		return fmt.Errorf("failed to demote active pack: %w", err)
	}

	result, err := tx.Exec(ctx,
		`UPDATE packs SET is_active = TRUE, status = $1, updated_at = NOW() WHERE id = $2 AND status IN ($3, $4)`,
		string(models.StatusActive), id, string(models.StatusValid), string(models.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("failed to promote pack: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish unknown id from a non-activatable status
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM packs WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check pack existence: %w", err)
		}
		if !exists {
			return ErrPackNotFound
		}
		return ErrPackNotValid
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}

	return nil
}

// GetActive returns the single active pack, or nil when none is active
func (r *PostgresRepository) GetActive(ctx context.Context) (*models.ContentPack, error) {
	query := fmt.Sprintf(`SELECT %s FROM packs WHERE is_active = TRUE`, packColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active pack: %w", err)
	}
	defer rows.Close()

	var packs []*models.ContentPack
	for rows.Next() {
		pack, err := scanPack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active pack: %w", err)
		}
		packs = append(packs, pack)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active packs: %w", err)
	}

	switch len(packs) {
	case 0:
		return nil, nil
	case 1:
		return packs[0], nil
	default:
		return nil, fmt.Errorf("%w: %d packs are flagged active", ErrInconsistentState, len(packs))
	}
}

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	_, err := r.pool.Exec(ctx, query, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPack(row rowScanner) (*models.ContentPack, error) {
	var pack models.ContentPack
	var statusStr string
	var content []byte

	err := row.Scan(
		&pack.ID,
		&pack.Name,
		&pack.Version,
		&content,
		&statusStr,
		&pack.IsActive,
		&pack.CreatedAt,
		&pack.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	pack.Status = models.PackStatus(statusStr)
	pack.Content = content

	return &pack, nil
}
