package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samibismar/calmclinic.health-sub001/internal/models"
)

//go:embed schema.sql
var schema string

type DB struct {
	Pool *pgxpool.Pool
}

func NewDB(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return &DB{Pool: pool}, nil
}

// Migrate creates the tables the service owns. The knowledge index and the
// hybrid_rag_query function are provisioned with the crawler.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// storeErr maps missing rows to notFound. Errors reported by the server are
// returned as is; everything else means the store could not be reached.
func storeErr(op string, err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, models.ErrStoreUnavailable, err)
}
