package ShopQL

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/db"
	"github.com/nickyhof/ShopQL/store"
)

// TestFunc is the signature for test functions that work with any store
type TestFunc func(t *testing.T, engine *db.Engine)

func shopData() map[string][]core.Record {
	return map[string][]core.Record{
		"orders": {
			{"id": "o1", "customer_email": "ana@example.com", "total": 100.0, "status": "Pending", "created_at": "2024-03-05T10:00:00Z"},
			{"id": "o2", "customer_email": "raj@example.com", "total": 250.0, "status": "Delivered", "created_at": "2024-03-06T10:00:00Z"},
			{"id": "o3", "customer_email": "ana@example.com", "total": 180.0, "status": "Delivered", "created_at": "2024-03-07T10:00:00Z"},
		},
		"products": {
			{"id": 1.0, "name": "Smartphone X", "category": "Electronics", "price": 24999.0, "stock": 10.0, "brand": "Acme"},
			{"id": 2.0, "name": "Phone Case", "category": "Accessories", "price": 499.0, "stock": 200.0, "brand": "Acme"},
			{"id": 3.0, "name": "Laptop Pro", "category": "Electronics", "price": 125000.0, "stock": 3.0, "brand": "Zen"},
		},
		"customers": {
			{"id": "c1", "email": "ana@example.com", "full_name": "Ana", "city": "Pune"},
		},
	}
}

// runWithEachStore runs testFunc against every writable store loaded with
// the same data.
func runWithEachStore(t *testing.T, testFunc TestFunc) {
	ctx := context.Background()
	backup := store.Backup{Tables: shopData()}

	stores := []struct {
		name string
		open func(t *testing.T) store.RecordStore
	}{
		{"Memory", func(t *testing.T) store.RecordStore {
			return store.NewMemoryStore(nil)
		}},
		{"Git", func(t *testing.T) store.RecordStore {
			s, err := store.OpenGitStore("", core.Identity{})
			if err != nil {
				t.Fatalf("Failed to open git store: %v", err)
			}
			return s
		}},
		{"GitFile", func(t *testing.T) store.RecordStore {
			s, err := store.OpenGitStore(t.TempDir(), core.Identity{})
			if err != nil {
				t.Fatalf("Failed to open git store: %v", err)
			}
			return s
		}},
		{"SQLite", func(t *testing.T) store.RecordStore {
			s, err := store.OpenSQLStore(store.DriverSQLite, "")
			if err != nil {
				t.Fatalf("Failed to open sqlite store: %v", err)
			}
			return s
		}},
	}

	for _, tc := range stores {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.open(t)
			if err := store.Import(ctx, s, backup); err != nil {
				t.Fatalf("Failed to load data: %v", err)
			}
			shop := Open(s)
			defer shop.Close()
			testFunc(t, shop.Engine())
		})
	}
}

func TestIntegrationOrdersScenario(t *testing.T) {
	runWithEachStore(t, func(t *testing.T, engine *db.Engine) {
		ctx := context.Background()

		result, err := engine.Execute(ctx, "SELECT COUNT(*) FROM orders")
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if !reflect.DeepEqual(result.Rows, [][]string{{"3"}}) {
			t.Errorf("Expected count 3, got %v", result.Rows)
		}

		result, err = engine.Execute(ctx, "SELECT id FROM orders WHERE total > '150' ORDER BY id")
		if err != nil {
			t.Fatalf("Failed to filter: %v", err)
		}
		if !reflect.DeepEqual(result.Rows, [][]string{{"o2"}, {"o3"}}) {
			t.Errorf("Expected o2 and o3, got %v", result.Rows)
		}

		result, err = engine.Execute(ctx, "SELECT status, SUM(total) AS revenue FROM orders GROUP BY status ORDER BY status")
		if err != nil {
			t.Fatalf("Failed to group: %v", err)
		}
		expected := [][]string{{"Delivered", "2", "₹430"}, {"Pending", "1", "₹100"}}
		if !reflect.DeepEqual(result.Rows, expected) {
			t.Errorf("Expected %v, got %v", expected, result.Rows)
		}
	})
}

func TestIntegrationProducts(t *testing.T) {
	runWithEachStore(t, func(t *testing.T, engine *db.Engine) {
		ctx := context.Background()

		result, err := engine.Execute(ctx, "SELECT name, price FROM adminproducts WHERE name LIKE '%phone%' ORDER BY price DESC")
		if err != nil {
			t.Fatalf("Failed to query: %v", err)
		}
		expected := [][]string{{"Smartphone X", "₹24,999"}, {"Phone Case", "₹499"}}
		if !reflect.DeepEqual(result.Rows, expected) {
			t.Errorf("Expected %v, got %v", expected, result.Rows)
		}

		result, err = engine.Execute(ctx, "SELECT MAX(price) FROM products")
		var malformed *core.MalformedQueryError
		if !errors.As(err, &malformed) {
			t.Errorf("Expected MalformedQueryError, got %v", err)
		}

		result, err = engine.Execute(ctx, "SELECT * FROM wishlist")
		if err != nil {
			t.Fatalf("Failed to query empty table: %v", err)
		}
		if result.RowCount != 0 {
			t.Errorf("Expected empty wishlist, got %d rows", result.RowCount)
		}
	})
}

func TestIntegrationUnknownTable(t *testing.T) {
	shop := Open(store.NewMemoryStore(shopData()))

	_, err := shop.Engine().Execute(context.Background(), "SELECT * FROM widgets")
	var unknown *core.UnknownTableError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownTableError, got %v", err)
	}
	if unknown.Table != "widgets" {
		t.Errorf("Expected table widgets, got %s", unknown.Table)
	}
}

func TestStats(t *testing.T) {
	shop := Open(store.NewMemoryStore(shopData()))

	stats, err := shop.Stats(context.Background())
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats.Total != 7 {
		t.Errorf("Expected 7 records in total, got %d", stats.Total)
	}
	if len(stats.Tables) != 6 || stats.Tables[0] != (db.TableCount{Table: "products", Records: 3}) {
		t.Errorf("Unexpected table counts %v", stats.Tables)
	}
}

func TestEngineOptionsOrder(t *testing.T) {
	shop := Open(store.NewMemoryStore(shopData()), db.WithMaxRows(1))

	result, err := shop.Engine().Execute(context.Background(), "SELECT * FROM orders")
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if !result.Truncated || len(result.Rows) != 1 {
		t.Errorf("Expected instance max rows to apply, got %d rows", len(result.Rows))
	}

	result, _ = shop.Engine(db.WithMaxRows(5)).Execute(context.Background(), "SELECT * FROM orders")
	if result.Truncated || len(result.Rows) != 3 {
		t.Errorf("Expected call option to override, got %d rows", len(result.Rows))
	}
}
