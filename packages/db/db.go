// Package db publishes the final blocklist snapshot to Postgres.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dancharlton9/gambling-blocklist/packages/domain"
	"github.com/dancharlton9/gambling-blocklist/packages/metrics"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS blocklist_domains (
	domain         TEXT PRIMARY KEY,
	provenance     TEXT NOT NULL,
	first_seen     TIMESTAMPTZ NOT NULL,
	last_published TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS blocklist_runs (
	id            BIGSERIAL PRIMARY KEY,
	published_at  TIMESTAMPTZ NOT NULL,
	total_domains INTEGER NOT NULL,
	removed       INTEGER NOT NULL
);`

type Storage struct {
	DB *pgxpool.Pool
}

// PublishStats summarizes one snapshot publication.
type PublishStats struct {
	Published int
	Removed   int64
}

func New(ctx context.Context, databaseURL string) (*Storage, error) {
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return &Storage{DB: db}, nil
}

func (s *Storage) Close() {
	s.DB.Close()
}

func (s *Storage) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

func (s *Storage) EnsureSchema(ctx context.Context) error {
	defer observe("ensure_schema", time.Now())
	if _, err := s.DB.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// PublishSnapshot makes blocklist_domains mirror entries exactly: new domains are
// inserted, existing ones refreshed, and domains absent from this run removed.
// The whole swap happens in one transaction.
func (s *Storage) PublishSnapshot(ctx context.Context, entries []domain.RegistryEntry, publishedAt time.Time) (PublishStats, error) {
	stats := PublishStats{Published: len(entries)}
	rows := snapshotRows(entries)
	publishedAt = publishedAt.UTC()

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `CREATE TEMP TABLE blocklist_staging (domain TEXT, provenance TEXT) ON COMMIT DROP`); err != nil {
			return fmt.Errorf("failed to create staging table: %w", err)
		}

		start := time.Now()
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"blocklist_staging"}, []string{"domain", "provenance"}, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("failed to copy snapshot: %w", err)
		}
		observe("copy_snapshot", start)

		start = time.Now()
		if _, err := tx.Exec(ctx, `
			INSERT INTO blocklist_domains (domain, provenance, first_seen, last_published)
			SELECT domain, provenance, $1, $1 FROM blocklist_staging
			ON CONFLICT (domain) DO UPDATE
			SET provenance = EXCLUDED.provenance, last_published = EXCLUDED.last_published`, publishedAt); err != nil {
			return fmt.Errorf("failed to upsert domains: %w", err)
		}
		observe("upsert_domains", start)

		start = time.Now()
		tag, err := tx.Exec(ctx, `DELETE FROM blocklist_domains WHERE last_published < $1`, publishedAt)
		if err != nil {
			return fmt.Errorf("failed to remove stale domains: %w", err)
		}
		observe("delete_stale", start)
		stats.Removed = tag.RowsAffected()

		if _, err := tx.Exec(ctx, `INSERT INTO blocklist_runs (published_at, total_domains, removed) VALUES ($1, $2, $3)`,
			publishedAt, stats.Published, stats.Removed); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		return nil
	})
	if err != nil {
		return PublishStats{}, err
	}

	slog.Info("DB: Snapshot published", "domains", stats.Published, "removed", stats.Removed)
	return stats, nil
}

// Domains returns the currently published domains in sorted order.
func (s *Storage) Domains(ctx context.Context) ([]string, error) {
	defer observe("select_domains", time.Now())
	rows, err := s.DB.Query(ctx, `SELECT domain FROM blocklist_domains ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func snapshotRows(entries []domain.RegistryEntry) [][]any {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.Domain.String(), string(e.Provenance)})
	}
	return rows
}

func observe(query string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
