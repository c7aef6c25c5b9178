package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ncr_ingest/models"
)

// PostgresStore is the shared-database record sink, for deployments where
// downstream consumers (pricing models, dashboards) read the listings table
// directly.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		url TEXT PRIMARY KEY,
		title TEXT,
		city TEXT,
		location TEXT,
		price BIGINT,
		area_sqft DOUBLE PRECISION,
		property_hash TEXT,
		fields JSONB,
		scraped_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);
	CREATE INDEX IF NOT EXISTS idx_listings_hash ON listings(property_hash);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// WriteBatch inserts all records inside one transaction; already-stored URLs
// are skipped via ON CONFLICT DO NOTHING.
func (s *PostgresStore) WriteBatch(ctx context.Context, records []models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO listings (url, title, city, location, price, area_sqft, property_hash, fields, scraped_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (url) DO NOTHING`,
			rec.URL, rec.Title, rec.City, rec.Location, rec.Price, rec.AreaSqFt,
			rec.PropertyHash, fields, rec.ScrapedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) LoadSeenURLs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM listings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

func (s *PostgresStore) CountListings(ctx context.Context, city string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE city = $1`, city).Scan(&count)
	return count, err
}
