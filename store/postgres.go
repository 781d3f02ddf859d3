package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nickyhof/ShopQL/core"
)

// PostgresStore reads tables straight from the shop's PostgreSQL database.
// It is read-only.
type PostgresStore struct {
	pool      *pgxpool.Pool
	schema    string
	resources map[string]string
}

// OpenPostgresStore connects to dsn. Tables are looked up in schema, or
// "public" when empty, under their DefaultResources names.
func OpenPostgresStore(ctx context.Context, dsn, schema string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if schema == "" {
		schema = "public"
	}
	return &PostgresStore{pool: pool, schema: schema, resources: DefaultResources}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// selectRowsSQL renders each row as one JSON object so column types need
// no mapping.
func selectRowsSQL(schema, table string) string {
	return fmt.Sprintf("SELECT row_to_json(t)::text FROM %s t", pgx.Identifier{schema, table}.Sanitize())
}

func (s *PostgresStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	relation := resourceFor(s.resources, table)

	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT to_regclass($1) IS NOT NULL",
		pgx.Identifier{s.schema, relation}.Sanitize(),
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", relation, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingTable, s.schema, relation)
	}

	rows, err := s.pool.Query(ctx, selectRowsSQL(s.schema, relation))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", relation, err)
	}
	defer rows.Close()

	records := []core.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", relation, err)
		}
		var record core.Record
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", relation, err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}
