package ps

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nickyhof/ShopQL/core"
)

const recordSuffix = ".json"

// RecordKey names the blob of the record at position. Keys sort in position
// order, so tree order is insertion order.
func RecordKey(position int) string {
	return fmt.Sprintf("%010d%s", position, recordSuffix)
}

func recordPosition(key string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSuffix(key, recordSuffix))
	return n, err == nil
}

// ListCollections returns the collection directories at the repository root.
func (persistence *Persistence) ListCollections() []string {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	entries, err := persistence.ListEntries(".")
	if err != nil {
		return nil
	}

	var collections []string
	for _, entry := range entries {
		if entry.IsDir && entry.Name != ".git" {
			collections = append(collections, entry.Name)
		}
	}
	sort.Strings(collections)

	return collections
}

func (persistence *Persistence) ListRecordKeys(collection string) []string {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	entries, err := persistence.ListEntries(collection)
	if err != nil {
		return nil
	}

	var keys []string
	for _, entry := range entries {
		if !entry.IsDir {
			keys = append(keys, entry.Name)
		}
	}

	return keys
}

// ReadCollection returns every record blob of collection in key order.
// A missing collection reads as empty.
func (persistence *Persistence) ReadCollection(collection string) (keys []string, records [][]byte, err error) {
	if err := persistence.ensureInitialized(); err != nil {
		return nil, nil, err
	}

	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	return persistence.ReadFiles(collection)
}

// ReplaceCollection swaps the contents of collection for records in one
// commit. Records are keyed by position.
func (persistence *Persistence) ReplaceCollection(collection string, records [][]byte, identity core.Identity) (Transaction, error) {
	tb, err := persistence.BeginTransaction()
	if err != nil {
		return Transaction{}, err
	}

	tb.AddDelete(collection, "")
	for i, data := range records {
		tb.AddWrite(collection, RecordKey(i), data)
	}

	return tb.Commit(identity, fmt.Sprintf("Replacing %s with %d record(s)", collection, len(records)))
}

// AppendRecords adds records after the last existing record of collection.
func (persistence *Persistence) AppendRecords(collection string, records [][]byte, identity core.Identity) (Transaction, error) {
	if len(records) == 0 {
		return Transaction{}, ErrNoChanges
	}

	next := 0
	if keys := persistence.ListRecordKeys(collection); len(keys) > 0 {
		if last, ok := recordPosition(keys[len(keys)-1]); ok {
			next = last + 1
		} else {
			next = len(keys)
		}
	}

	tb, err := persistence.BeginTransaction()
	if err != nil {
		return Transaction{}, err
	}
	for i, data := range records {
		tb.AddWrite(collection, RecordKey(next+i), data)
	}

	return tb.Commit(identity, fmt.Sprintf("Appending %d record(s) to %s", len(records), collection))
}
