package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/nickyhof/ShopQL/core"
)

// Backend kinds accepted by Open.
const (
	KindMemory   = "memory"
	KindGit      = "git"
	KindREST     = "rest"
	KindSQLite   = "sqlite"
	KindDuckDB   = "duckdb"
	KindPostgres = "postgres"
	KindSnapshot = "snapshot"
)

// Config selects and configures a record store backend.
type Config struct {
	Kind     string
	URL      string // rest base URL
	APIKey   string
	Path     string // git directory or snapshot location
	DSN      string // sqlite, duckdb or postgres
	Schema   string // postgres schema
	Identity core.Identity
	S3       S3Config
}

// Open creates the backend named by cfg.Kind.
func Open(ctx context.Context, cfg Config) (RecordStore, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindMemory:
		return NewMemoryStore(nil), nil
	case KindGit:
		return OpenGitStore(cfg.Path, cfg.Identity)
	case KindREST, "supabase":
		return NewRESTStore(cfg.URL, cfg.APIKey)
	case KindSQLite:
		return OpenSQLStore(DriverSQLite, cfg.DSN)
	case KindDuckDB:
		return OpenSQLStore(DriverDuckDB, cfg.DSN)
	case KindPostgres:
		return OpenPostgresStore(ctx, cfg.DSN, cfg.Schema)
	case KindSnapshot:
		if cfg.Path == "" {
			return nil, fmt.Errorf("snapshot store: path is required")
		}
		return NewSnapshotStore(cfg.Path, &cfg.S3), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Kind)
	}
}
