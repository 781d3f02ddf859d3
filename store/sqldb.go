package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/nickyhof/ShopQL/core"
	_ "modernc.org/sqlite"
)

// SQL drivers supported by SQLStore.
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
)

// SQLStore keeps each table as a SQL table in an embedded SQLite or DuckDB
// database. Nested values are stored as JSON text.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore opens dsn with driver. An empty dsn opens an in-memory
// database.
func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
	case DriverDuckDB:
	default:
		return nil, fmt.Errorf("%w: sql driver %q", ErrUnknownBackend, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps an in-memory database alive and serialises writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLStore) tableExists(ctx context.Context, table string) (bool, error) {
	var query string
	switch s.driver {
	case DriverSQLite:
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	default:
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?`
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, table).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// FetchAll reads every row of table in insertion order. A missing table
// reads as empty.
func (s *SQLStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	table = strings.ToLower(table)

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", table, err)
	}
	if !exists {
		return []core.Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []core.Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}

		record := make(core.Record, len(columns))
		for i, col := range columns {
			if values[i] == nil {
				continue
			}
			record[col] = fromSQLValue(values[i])
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// ReplaceAll recreates table from records in one transaction.
func (s *SQLStore) ReplaceAll(ctx context.Context, table string, records []core.Record) error {
	table = strings.ToLower(table)
	columns, types := inferColumns(records, s.driver)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}

	if len(columns) == 0 {
		return tx.Commit()
	}

	defs := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
		defs[i] = quoted[i] + " " + types[i]
		placeholders[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, record := range records {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = toSQLValue(record[col])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// inferColumns returns the sorted union of record keys with a column type
// for each. Columns holding only numbers are numeric, only booleans are
// boolean, anything else is text.
func inferColumns(records []core.Record, driver string) ([]string, []string) {
	kinds := make(map[string]string)
	for _, record := range records {
		for col, value := range record {
			kind := sqlKind(value)
			switch prev, seen := kinds[col]; {
			case !seen || prev == "":
				kinds[col] = kind
			case kind != "" && kind != prev:
				kinds[col] = "TEXT"
			}
		}
	}

	columns := make([]string, 0, len(kinds))
	for col := range kinds {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	types := make([]string, len(columns))
	for i, col := range columns {
		switch kinds[col] {
		case "NUMBER":
			types[i] = "DOUBLE"
			if driver == DriverSQLite {
				types[i] = "REAL"
			}
		case "BOOLEAN":
			types[i] = "BOOLEAN"
		default:
			types[i] = "TEXT"
		}
	}
	return columns, types
}

func sqlKind(value any) string {
	switch value.(type) {
	case nil:
		return ""
	case float64, float32, int, int32, int64, uint64, json.Number:
		return "NUMBER"
	case bool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func toSQLValue(value any) any {
	switch v := value.(type) {
	case nil, string, bool, float64, float32, int, int32, int64:
		return v
	case json.Number:
		if f, ok := core.ToFloat(v); ok {
			return f
		}
		return v.String()
	case []any, map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(data)
	default:
		return core.Stringify(v)
	}
}

// fromSQLValue normalises driver values. JSON text holding an array or an
// object is decoded back into its structure.
func fromSQLValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return fromSQLValue(string(v))
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var decoded any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decoded
			}
		}
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return v
	}
}
