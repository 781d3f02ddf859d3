package ps

import (
	"reflect"
	"testing"
	"time"

	"github.com/nickyhof/ShopQL/core"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

func records(values ...string) [][]byte {
	out := make([][]byte, len(values))
	for i, value := range values {
		out[i] = []byte(value)
	}
	return out
}

func TestNewMemoryPersistence(t *testing.T) {
	persistence, err := NewMemoryPersistence()
	if err != nil {
		t.Fatalf("Failed to create memory persistence: %v", err)
	}

	if !persistence.IsInitialized() {
		t.Error("Expected persistence to be initialized")
	}
}

func TestPersistenceNotInitialized(t *testing.T) {
	var persistence Persistence

	if persistence.IsInitialized() {
		t.Error("Expected uninitialized persistence to return false")
	}

	err := persistence.ensureInitialized()
	if err != ErrNotInitialized {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}

	if _, _, err := persistence.ReadCollection("orders"); err != ErrNotInitialized {
		t.Errorf("Expected ErrNotInitialized from ReadCollection, got %v", err)
	}
}

func TestRecordKey(t *testing.T) {
	if got := RecordKey(7); got != "0000000007.json" {
		t.Errorf("Expected 0000000007.json, got %s", got)
	}

	position, ok := recordPosition(RecordKey(1234))
	if !ok || position != 1234 {
		t.Errorf("Expected position 1234, got %d (%v)", position, ok)
	}
}

func TestReplaceAndReadCollection(t *testing.T) {
	persistence, err := NewMemoryPersistence()
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}

	data := records(`{"id":"b"}`, `{"id":"a"}`, `{"id":"c"}`)
	txn, err := persistence.ReplaceCollection("orders", data, testIdentity)
	if err != nil {
		t.Fatalf("Failed to replace collection: %v", err)
	}
	if txn.Id == "" {
		t.Error("Expected transaction ID to be set")
	}
	if txn.Author != "test <test@test.com>" {
		t.Errorf("Expected author 'test <test@test.com>', got %q", txn.Author)
	}

	keys, got, err := persistence.ReadCollection("orders")
	if err != nil {
		t.Fatalf("Failed to read collection: %v", err)
	}

	expectedKeys := []string{RecordKey(0), RecordKey(1), RecordKey(2)}
	if !reflect.DeepEqual(keys, expectedKeys) {
		t.Errorf("Expected keys %v, got %v", expectedKeys, keys)
	}
	if !reflect.DeepEqual(got, data) {
		t.Errorf("Expected records in insertion order, got %q", got)
	}

	// Replacing again drops the old records
	if _, err := persistence.ReplaceCollection("orders", records(`{"id":"z"}`), testIdentity); err != nil {
		t.Fatalf("Failed to replace collection: %v", err)
	}
	keys, got, _ = persistence.ReadCollection("orders")
	if len(keys) != 1 || string(got[0]) != `{"id":"z"}` {
		t.Errorf("Expected only the replacement record, got %v %q", keys, got)
	}
}

func TestReadMissingCollection(t *testing.T) {
	persistence, _ := NewMemoryPersistence()

	keys, got, err := persistence.ReadCollection("wishlist")
	if err != nil {
		t.Fatalf("Expected no error for missing collection, got %v", err)
	}
	if len(keys) != 0 || len(got) != 0 {
		t.Errorf("Expected empty collection, got %v", keys)
	}
}

func TestAppendRecords(t *testing.T) {
	persistence, _ := NewMemoryPersistence()

	if _, err := persistence.AppendRecords("cart", records(`{"id":1}`), testIdentity); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if _, err := persistence.AppendRecords("cart", records(`{"id":2}`, `{"id":3}`), testIdentity); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	keys := persistence.ListRecordKeys("cart")
	expected := []string{RecordKey(0), RecordKey(1), RecordKey(2)}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("Expected keys %v, got %v", expected, keys)
	}

	if _, err := persistence.AppendRecords("cart", nil, testIdentity); err != ErrNoChanges {
		t.Errorf("Expected ErrNoChanges for empty append, got %v", err)
	}
}

func TestListCollections(t *testing.T) {
	persistence, _ := NewMemoryPersistence()

	if got := persistence.ListCollections(); len(got) != 0 {
		t.Errorf("Expected no collections, got %v", got)
	}

	persistence.ReplaceCollection("products", records(`{}`), testIdentity)
	persistence.ReplaceCollection("categories", records(`{}`), testIdentity)

	expected := []string{"categories", "products"}
	if got := persistence.ListCollections(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestEmptyCommitPrevention(t *testing.T) {
	persistence, _ := NewMemoryPersistence()

	data := records(`{"id":"1","name":"Alice"}`)
	txn1, err := persistence.ReplaceCollection("customers", data, testIdentity)
	if err != nil {
		t.Fatalf("Failed to save initial records: %v", err)
	}
	if txn1.Id == "" {
		t.Error("Expected transaction ID for initial save")
	}

	// Same content again - should NOT create a new commit
	txn2, err := persistence.ReplaceCollection("customers", data, testIdentity)
	if err != nil {
		t.Fatalf("Failed to save duplicate records: %v", err)
	}
	if txn2.Id != "" {
		t.Error("Expected empty transaction ID when no changes are made")
	}

	if latest := persistence.LatestTransaction(); latest.Id != txn1.Id {
		t.Errorf("Expected HEAD to stay at %s, got %s", txn1.Id, latest.Id)
	}
}

func TestTransactionsSince(t *testing.T) {
	persistence, _ := NewMemoryPersistence()
	start := time.Now().Add(-time.Minute)

	persistence.ReplaceCollection("orders", records(`{"id":1}`), testIdentity)
	persistence.AppendRecords("orders", records(`{"id":2}`), testIdentity)

	transactions := persistence.TransactionsSince(start)
	if len(transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(transactions))
	}
	if transactions[0].Message != "Appending 1 record(s) to orders" {
		t.Errorf("Expected newest transaction first, got %q", transactions[0].Message)
	}
	if transactions[1].Message != "Replacing orders with 1 record(s)" {
		t.Errorf("Expected replace message, got %q", transactions[1].Message)
	}
}

func TestFilePersistence(t *testing.T) {
	dir := t.TempDir()

	persistence, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	if _, err := persistence.ReplaceCollection("products", records(`{"id":1}`), testIdentity); err != nil {
		t.Fatalf("Failed to replace collection: %v", err)
	}

	reopened, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to reopen file persistence: %v", err)
	}
	_, got, err := reopened.ReadCollection("products")
	if err != nil {
		t.Fatalf("Failed to read collection: %v", err)
	}
	if len(got) != 1 || string(got[0]) != `{"id":1}` {
		t.Errorf("Expected persisted record, got %q", got)
	}
}
