package store

import (
	"context"
	"strings"
	"sync"

	"github.com/nickyhof/ShopQL/core"
)

// MemoryStore keeps every table in process memory. Unknown tables read as
// empty.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]core.Record
}

func NewMemoryStore(data map[string][]core.Record) *MemoryStore {
	s := &MemoryStore{tables: make(map[string][]core.Record, len(data))}
	for table, records := range data {
		s.tables[strings.ToLower(table)] = cloneRecords(records)
	}
	return s
}

func (s *MemoryStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneRecords(s.tables[strings.ToLower(table)]), nil
}

func (s *MemoryStore) ReplaceAll(ctx context.Context, table string, records []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[strings.ToLower(table)] = cloneRecords(records)
	return nil
}

// AppendAll adds records to the end of table.
func (s *MemoryStore) AppendAll(ctx context.Context, table string, records []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table = strings.ToLower(table)
	s.tables[table] = append(s.tables[table], cloneRecords(records)...)
	return nil
}

func cloneRecords(records []core.Record) []core.Record {
	clone := make([]core.Record, len(records))
	for i, record := range records {
		clone[i] = record.Clone()
	}
	return clone
}
