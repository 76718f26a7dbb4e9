// Package postgres provides the Postgres-backed ProductStore.
//
// Expected schema:
//
//	CREATE TABLE products (
//		id TEXT PRIMARY KEY,
//		name TEXT NOT NULL,
//		brand TEXT NOT NULL DEFAULT '',
//		url TEXT NOT NULL UNIQUE,
//		status TEXT NOT NULL,
//		confidence TEXT NOT NULL DEFAULT '',
//		evidence JSONB NOT NULL DEFAULT '[]',
//		last_checked_at TIMESTAMPTZ,
//		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE check_history (
//		id BIGSERIAL PRIMARY KEY,
//		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
//		status TEXT NOT NULL,
//		confidence TEXT NOT NULL DEFAULT '',
//		evidence JSONB NOT NULL DEFAULT '[]',
//		checked_at TIMESTAMPTZ NOT NULL
//	);
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/restockd/restockd/internal/watch"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbPool is the slice of pgxpool.Pool the store uses; pgxmock stands in for
// it in tests.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ProductStore persists products and check history in Postgres.
type ProductStore struct {
	pool dbPool
}

// NewProductStore connects a pool using the provided config.
func NewProductStore(ctx context.Context, cfg Config) (*ProductStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ProductStore{pool: pool}, nil
}

// NewProductStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewProductStoreWithPool(pool dbPool) (*ProductStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ProductStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ProductStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const productColumns = `id, name, brand, url, status, confidence, evidence, last_checked_at, created_at`

// Create inserts a new tracked product.
func (s *ProductStore) Create(ctx context.Context, product watch.Product) error {
	evidence, err := marshalEvidence(product.Evidence)
	if err != nil {
		return err
	}
	query := `
INSERT INTO products (id, name, brand, url, status, confidence, evidence, last_checked_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pool.Exec(ctx, query,
		product.ID,
		product.Name,
		product.Brand,
		product.URL,
		string(product.Status),
		string(product.Confidence),
		evidence,
		product.LastCheckedAt,
		product.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetAll lists every tracked product in stored (creation) order.
func (s *ProductStore) GetAll(ctx context.Context) ([]watch.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []watch.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetByID fetches one product.
func (s *ProductStore) GetByID(ctx context.Context, id string) (watch.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := scanProduct(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return watch.Product{}, watch.ErrProductNotFound
		}
		return watch.Product{}, err
	}
	return product, nil
}

// Update applies the non-nil fields of upd in a single statement, so a
// concurrent reader always observes either the old or the new row, never a
// partial write.
func (s *ProductStore) Update(ctx context.Context, id string, upd watch.ProductUpdate) error {
	var status, confidence *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}
	if upd.Confidence != nil {
		v := string(*upd.Confidence)
		confidence = &v
	}
	var evidence []byte
	if upd.Evidence != nil {
		var err error
		evidence, err = marshalEvidence(upd.Evidence)
		if err != nil {
			return err
		}
	}

	query := `
UPDATE products SET
	status = COALESCE($2, status),
	confidence = COALESCE($3, confidence),
	evidence = COALESCE($4, evidence),
	last_checked_at = COALESCE($5, last_checked_at)
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, status, confidence, evidence, upd.LastCheckedAt)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return watch.ErrProductNotFound
	}
	return nil
}

// Delete removes the product; the FK cascade removes its history.
func (s *ProductStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return watch.ErrProductNotFound
	}
	return nil
}

// AppendCheckRecord inserts one immutable history row.
func (s *ProductStore) AppendCheckRecord(ctx context.Context, rec watch.CheckRecord) error {
	evidence, err := marshalEvidence(rec.Evidence)
	if err != nil {
		return err
	}
	query := `
INSERT INTO check_history (product_id, status, confidence, evidence, checked_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query,
		rec.ProductID,
		string(rec.Status),
		string(rec.Confidence),
		evidence,
		rec.CheckedAt,
	); err != nil {
		return fmt.Errorf("insert check record: %w", err)
	}
	return nil
}

// History returns the check records for a product, oldest first.
func (s *ProductStore) History(ctx context.Context, productID string) ([]watch.CheckRecord, error) {
	query := `
SELECT product_id, status, confidence, evidence, checked_at
FROM check_history
WHERE product_id = $1
ORDER BY checked_at, id`
	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list check history: %w", err)
	}
	defer rows.Close()

	var records []watch.CheckRecord
	for rows.Next() {
		var (
			rec      watch.CheckRecord
			status   string
			conf     string
			evidence []byte
		)
		if err := rows.Scan(&rec.ProductID, &status, &conf, &evidence, &rec.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan check record: %w", err)
		}
		rec.Status = watch.Status(status)
		rec.Confidence = watch.Confidence(conf)
		if rec.Evidence, err = unmarshalEvidence(evidence); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list check history: %w", err)
	}
	return records, nil
}

func scanProduct(row pgx.Row) (watch.Product, error) {
	var (
		product    watch.Product
		status     string
		confidence string
		evidence   []byte
	)
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Brand,
		&product.URL,
		&status,
		&confidence,
		&evidence,
		&product.LastCheckedAt,
		&product.CreatedAt,
	)
	if err != nil {
		return watch.Product{}, err
	}
	product.Status = watch.Status(status)
	product.Confidence = watch.Confidence(confidence)
	if product.Evidence, err = unmarshalEvidence(evidence); err != nil {
		return watch.Product{}, err
	}
	return product, nil
}

func marshalEvidence(evidence []string) ([]byte, error) {
	if evidence == nil {
		evidence = []string{}
	}
	data, err := json.Marshal(evidence)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	return data, nil
}

func unmarshalEvidence(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var evidence []string
	if err := json.Unmarshal(data, &evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return evidence, nil
}
