package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Postgres is a Store backed by a Postgres table with one row per aggregate:
// the document body as jsonb plus a version column for the concurrency guard.
// The guard is a conditional UPDATE on (id, version); a zero row count with an
// existing row means the reader's version drifted.
type Postgres[T Entity] struct {
	pool  *pgxpool.Pool
	table string
	newT  func() T
}

// NewPostgres creates a Postgres store over pool writing to table. newT
// allocates an empty aggregate for row decoding.
func NewPostgres[T Entity](pool *pgxpool.Pool, table string, newT func() T) (*Postgres[T], error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &Postgres[T]{pool: pool, table: table, newT: newT}, nil
}

// EnsureSchema creates the aggregate table if it does not exist.
func (s *Postgres[T]) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		create table if not exists %s (
			id         text primary key,
			version    bigint not null,
			data       jsonb not null,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		)`, s.table))
	if err != nil {
		return fmt.Errorf("ensure table %s: %w", s.table, err)
	}
	return nil
}

func (s *Postgres[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	var data []byte
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`select data from %s where id = $1`, s.table), id)
	if err := row.Scan(&data); err != nil {
		if err == pgx.ErrNoRows {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("get %s/%s: %w", s.table, id, err)
	}

	entity := s.newT()
	if err := json.Unmarshal(data, entity); err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", s.table, id, err)
	}
	return entity, nil
}

func (s *Postgres[T]) List(ctx context.Context) ([]T, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`select data from %s order by created_at`, s.table))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table, err)
	}
	defer rows.Close()

	var entities []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		entity := s.newT()
		if err := json.Unmarshal(data, entity); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.table, err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

func (s *Postgres[T]) Create(ctx context.Context, entity T) error {
	entity.SetVersion(1)
	entity.SetTimestamps(time.Now().UTC())

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.table, entity.GetID(), err)
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		insert into %s (id, version, data) values ($1, $2, $3)
		on conflict (id) do nothing`, s.table),
		entity.GetID(), entity.GetVersion(), data)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", s.table, entity.GetID(), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *Postgres[T]) Update(ctx context.Context, entity T, expectedVersion int64) error {
	entity.SetVersion(expectedVersion + 1)
	entity.SetTimestamps(time.Now().UTC())

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.table, entity.GetID(), err)
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		update %s set version = $3, data = $4, updated_at = now()
		where id = $1 and version = $2`, s.table),
		entity.GetID(), expectedVersion, entity.GetVersion(), data)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", s.table, entity.GetID(), err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a drifted version.
		var exists bool
		row := s.pool.QueryRow(ctx, fmt.Sprintf(`select exists(select 1 from %s where id = $1)`, s.table), entity.GetID())
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("update %s/%s: %w", s.table, entity.GetID(), err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConcurrencyConflict
	}
	return nil
}

func (s *Postgres[T]) Apply(ctx context.Context, entity T) error {
	entity.SetTimestamps(time.Now().UTC())

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.table, entity.GetID(), err)
	}

	// Upsert keyed by ID that only wins when the incoming version is newer.
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		insert into %s (id, version, data) values ($1, $2, $3)
		on conflict (id) do update
		set version = excluded.version, data = excluded.data, updated_at = now()
		where %s.version < excluded.version`, s.table, s.table),
		entity.GetID(), entity.GetVersion(), data)
	if err != nil {
		return fmt.Errorf("apply %s/%s: %w", s.table, entity.GetID(), err)
	}
	return nil
}
