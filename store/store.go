package store

import (
	"context"
	"errors"
	"strings"

	"github.com/nickyhof/ShopQL/core"
)

var (
	ErrReadOnly       = errors.New("record store is read-only")
	ErrUnknownBackend = errors.New("unknown record store backend")
	ErrMissingTable   = errors.New("table does not exist in the backing database")
)

// resourceFor returns the name a backing database uses for a catalog table,
// following resources and falling back to the table name itself.
func resourceFor(resources map[string]string, table string) string {
	table = strings.ToLower(table)
	if mapped, ok := resources[table]; ok {
		return mapped
	}
	return table
}

// RecordStore gives read access to the shop's collections. FetchAll returns
// every record of table in the store's natural order and must honour ctx
// cancellation.
type RecordStore interface {
	FetchAll(ctx context.Context, table string) ([]core.Record, error)
}

// Writer is implemented by stores that can be loaded from a backup.
type Writer interface {
	// ReplaceAll swaps the contents of table for records.
	ReplaceAll(ctx context.Context, table string, records []core.Record) error
}

// Appender is implemented by stores that can add records to a table
// without replacing what is already there.
type Appender interface {
	AppendAll(ctx context.Context, table string, records []core.Record) error
}

// Closer is implemented by stores holding connections or file handles.
type Closer interface {
	Close() error
}

// Close releases s if it holds resources.
func Close(s RecordStore) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
