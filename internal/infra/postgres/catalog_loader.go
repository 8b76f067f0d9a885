package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"traffic-light-bot/internal/catalog"
	"traffic-light-bot/internal/domain"
)

// CatalogLoader loads catalog JSONB from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context, id string) (*catalog.Catalog, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM catalogs WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCatalogNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	var cat catalog.Catalog
	if err := json.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if err := cat.Normalize(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// SaveCatalog validates and upserts a catalog under id.
func (l *CatalogLoader) SaveCatalog(ctx context.Context, id string, cat *catalog.Catalog) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO catalogs (id, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, id, string(raw))
	if err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}
