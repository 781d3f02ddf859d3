package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nickyhof/ShopQL/core"
)

func TestSQLStoreRoundTrip(t *testing.T) {
	s, err := OpenSQLStore(DriverSQLite, "")
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	records := []core.Record{
		{"id": "o1", "total": 100.0, "paid": true, "items": []any{"a", "b"}},
		{"id": "o2", "total": 250.5, "address": map[string]any{"city": "Pune"}},
	}
	if err := s.ReplaceAll(ctx, "Orders", records); err != nil {
		t.Fatalf("Failed to replace: %v", err)
	}

	got, err := s.FetchAll(ctx, "orders")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(got))
	}

	if got[0]["id"] != "o1" || got[1]["id"] != "o2" {
		t.Errorf("Expected insertion order, got %v", got)
	}
	if f, ok := core.ToFloat(got[1]["total"]); !ok || f != 250.5 {
		t.Errorf("Expected total 250.5, got %v", got[1]["total"])
	}
	if !reflect.DeepEqual(got[0]["items"], []any{"a", "b"}) {
		t.Errorf("Expected items to decode as array, got %#v", got[0]["items"])
	}
	if !reflect.DeepEqual(got[1]["address"], map[string]any{"city": "Pune"}) {
		t.Errorf("Expected address to decode as object, got %#v", got[1]["address"])
	}
	if _, ok := got[1]["paid"]; ok {
		t.Errorf("Expected null column to be absent, got %v", got[1]["paid"])
	}
}

func TestSQLStoreMissingTable(t *testing.T) {
	s, err := OpenSQLStore(DriverSQLite, "")
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	defer s.Close()

	got, err := s.FetchAll(context.Background(), "wishlist")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}
}

func TestSQLStoreReplaceEmpties(t *testing.T) {
	s, _ := OpenSQLStore(DriverSQLite, "")
	defer s.Close()
	ctx := context.Background()

	s.ReplaceAll(ctx, "cart", []core.Record{{"id": 1.0}})
	if err := s.ReplaceAll(ctx, "cart", nil); err != nil {
		t.Fatalf("Failed to replace with nothing: %v", err)
	}

	got, _ := s.FetchAll(ctx, "cart")
	if len(got) != 0 {
		t.Errorf("Expected empty table, got %v", got)
	}
}

func TestOpenSQLStoreUnknownDriver(t *testing.T) {
	if _, err := OpenSQLStore("oracle", ""); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}

func TestInferColumns(t *testing.T) {
	columns, types := inferColumns([]core.Record{
		{"b": 1.0, "a": "x"},
		{"b": "two", "c": true, "d": nil},
	}, DriverSQLite)

	if !reflect.DeepEqual(columns, []string{"a", "b", "c", "d"}) {
		t.Errorf("Expected sorted columns, got %v", columns)
	}
	if !reflect.DeepEqual(types, []string{"TEXT", "TEXT", "BOOLEAN", "TEXT"}) {
		t.Errorf("Expected inferred types, got %v", types)
	}
}
