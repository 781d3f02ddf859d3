package op

import (
	"encoding/json"
	"fmt"

	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/ps"
)

// CollectionOp reads and writes one collection of JSON records.
type CollectionOp struct {
	Name        string
	Persistence *ps.Persistence
}

func GetCollection(name string, persistence *ps.Persistence) *CollectionOp {
	return &CollectionOp{
		Name:        name,
		Persistence: persistence,
	}
}

// CollectionNames lists the collections present in persistence.
func CollectionNames(persistence *ps.Persistence) []string {
	return persistence.ListCollections()
}

// Records decodes every record of the collection in insertion order.
func (op *CollectionOp) Records() ([]core.Record, error) {
	keys, contents, err := op.Persistence.ReadCollection(op.Name)
	if err != nil {
		return nil, err
	}

	records := make([]core.Record, 0, len(contents))
	for i, data := range contents {
		var record core.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", op.Name, keys[i], err)
		}
		records = append(records, record)
	}

	return records, nil
}

// Replace overwrites the collection with records in a single commit.
func (op *CollectionOp) Replace(records []core.Record, identity core.Identity) (ps.Transaction, error) {
	encoded, err := encodeRecords(records)
	if err != nil {
		return ps.Transaction{}, err
	}
	return op.Persistence.ReplaceCollection(op.Name, encoded, identity)
}

// Append adds records after the last record of the collection in a single
// commit.
func (op *CollectionOp) Append(records []core.Record, identity core.Identity) (ps.Transaction, error) {
	encoded, err := encodeRecords(records)
	if err != nil {
		return ps.Transaction{}, err
	}
	return op.Persistence.AppendRecords(op.Name, encoded, identity)
}

func encodeRecords(records []core.Record) ([][]byte, error) {
	encoded := make([][]byte, len(records))
	for i, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record %d: %w", i, err)
		}
		encoded[i] = data
	}
	return encoded, nil
}
