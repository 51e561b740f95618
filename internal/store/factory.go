package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FromConfig builds the store for one aggregate type: Postgres when a DSN is
// configured, in-memory otherwise (local development).
func FromConfig[T Entity](ctx context.Context, postgresURL, table string, newT func() T) (Store[T], error) {
	if postgresURL == "" {
		return NewMemory[T](), nil
	}

	pool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pg, err := NewPostgres(pool, table, newT)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}
