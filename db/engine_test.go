package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/store"
)

// countingStore records how many fetches reach the wrapped store.
type countingStore struct {
	store.RecordStore
	fetches atomic.Int64
}

func (s *countingStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	s.fetches.Add(1)
	return s.RecordStore.FetchAll(ctx, table)
}

type failingStore struct {
	err error
}

func (s failingStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	return nil, s.err
}

type blockingStore struct{}

func (blockingStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// stuckStore never returns and never looks at its context.
type stuckStore struct {
	release chan struct{}
}

func (s stuckStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	<-s.release
	return nil, nil
}

func testData() map[string][]core.Record {
	return map[string][]core.Record{
		"orders": {
			{"id": 1, "total": "100", "status": "Pending"},
			{"id": 2, "total": "250", "status": "Delivered"},
		},
		"products": {
			{"id": 1, "name": "Smartphone X", "category": "Electronics", "price": 24999.0, "stock": 12, "brand": "Acme"},
			{"id": 2, "name": "Cotton Shirt", "category": "Fashion", "price": 799.5, "stock": 40, "brand": "Weave"},
			{"id": 3, "name": "Phone Case", "category": "Electronics", "price": 299.0, "stock": 100, "brand": "Acme"},
			{"id": 4, "name": "Mystery Box", "price": 1500.0, "stock": 0},
		},
		"customers": {
			{"id": 1, "email": "ana@example.com", "full_name": "Ana", "city": "Pune", "created_at": "2024-03-05T10:00:00Z"},
		},
	}
}

func setupTestEngine(t *testing.T) (*Engine, *countingStore) {
	recordStore := &countingStore{RecordStore: store.NewMemoryStore(testData())}
	return NewEngine(recordStore), recordStore
}

func TestEngineCount(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT COUNT(*) FROM orders")
	if err != nil {
		t.Fatalf("Failed to execute COUNT: %v", err)
	}

	if result.RowCount != 1 {
		t.Errorf("Expected 1 row, got %d", result.RowCount)
	}
	if !reflect.DeepEqual(result.Columns, []string{"count"}) {
		t.Errorf("Expected count column, got %v", result.Columns)
	}
	if !reflect.DeepEqual(result.Rows, [][]string{{"2"}}) {
		t.Errorf("Expected count of 2, got %v", result.Rows)
	}
}

func TestEngineSelectWithWhere(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT * FROM orders WHERE total > '150'")
	if err != nil {
		t.Fatalf("Failed to execute SELECT: %v", err)
	}

	if result.RowCount != 1 {
		t.Fatalf("Expected 1 row with total > 150, got %d", result.RowCount)
	}

	expectedColumns := []string{"id", "customer_email", "total", "status", "created_at"}
	if !reflect.DeepEqual(result.Columns, expectedColumns) {
		t.Errorf("Expected default columns %v, got %v", expectedColumns, result.Columns)
	}

	expected := []string{"2", "NULL", "₹250", "Delivered", "NULL"}
	if !reflect.DeepEqual(result.Rows[0], expected) {
		t.Errorf("Expected %v, got %v", expected, result.Rows[0])
	}
}

func TestEngineGroupBy(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT * FROM orders GROUP BY status")
	if err != nil {
		t.Fatalf("Failed to execute GROUP BY: %v", err)
	}

	if !reflect.DeepEqual(result.Columns, []string{"status", "count"}) {
		t.Errorf("Expected status and count columns, got %v", result.Columns)
	}

	expected := [][]string{{"Pending", "1"}, {"Delivered", "1"}}
	if !reflect.DeepEqual(result.Rows, expected) {
		t.Errorf("Expected groups in first-seen order %v, got %v", expected, result.Rows)
	}
}

func TestEngineGroupByWithSum(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(),
		"SELECT category, SUM(price) AS value FROM products GROUP BY category ORDER BY value DESC")
	if err != nil {
		t.Fatalf("Failed to execute GROUP BY: %v", err)
	}

	expected := [][]string{
		{"Electronics", "2", "₹25,298"},
		{"Other", "1", "₹1,500"},
		{"Fashion", "1", "₹799.5"},
	}
	if !reflect.DeepEqual(result.Rows, expected) {
		t.Errorf("Expected %v, got %v", expected, result.Rows)
	}
}

func TestEngineSelectColumnsOrderLimit(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(),
		"SELECT name, price FROM products WHERE price > 500 ORDER BY price DESC LIMIT 2")
	if err != nil {
		t.Fatalf("Failed to execute SELECT: %v", err)
	}

	expected := [][]string{{"Smartphone X", "₹24,999"}, {"Mystery Box", "₹1,500"}}
	if !reflect.DeepEqual(result.Rows, expected) {
		t.Errorf("Expected %v, got %v", expected, result.Rows)
	}
}

func TestEngineLike(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT name FROM products WHERE name LIKE '%PHONE%'")
	if err != nil {
		t.Fatalf("Failed to execute LIKE: %v", err)
	}

	expected := [][]string{{"Smartphone X"}, {"Phone Case"}}
	if !reflect.DeepEqual(result.Rows, expected) {
		t.Errorf("Expected %v, got %v", expected, result.Rows)
	}
}

func TestEngineDateFormatting(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT email, created_at FROM customers")
	if err != nil {
		t.Fatalf("Failed to execute SELECT: %v", err)
	}

	if got := result.Rows[0][1]; got != "March 5, 2024" {
		t.Errorf("Expected formatted date, got %q", got)
	}
}

func TestEngineCountEmptyTable(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT COUNT(*) FROM cart")
	if err != nil {
		t.Fatalf("Failed to execute COUNT: %v", err)
	}

	if !reflect.DeepEqual(result.Rows, [][]string{{"0"}}) {
		t.Errorf("Expected count of 0, got %v", result.Rows)
	}
}

func TestEngineAvgOverNoRows(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT AVG(total) FROM orders WHERE status = 'Cancelled'")
	if err != nil {
		t.Fatalf("Failed to execute AVG: %v", err)
	}

	if !reflect.DeepEqual(result.Columns, []string{"avg_total"}) {
		t.Errorf("Expected avg_total column, got %v", result.Columns)
	}
	if !reflect.DeepEqual(result.Rows, [][]string{{"₹0"}}) {
		t.Errorf("Expected average of 0, got %v", result.Rows)
	}
}

func TestEngineLimitLargerThanResult(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT * FROM orders LIMIT 100")
	if err != nil {
		t.Fatalf("Failed to execute SELECT: %v", err)
	}

	if result.RowCount != 2 || len(result.Rows) != 2 {
		t.Errorf("Expected all 2 rows, got %d (%d rendered)", result.RowCount, len(result.Rows))
	}
}

func TestEngineRenderCap(t *testing.T) {
	tests := []struct {
		rows      int
		rendered  int
		truncated bool
	}{
		{50, 50, false},
		{51, 50, true},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("%d rows", test.rows), func(t *testing.T) {
			records := make([]core.Record, test.rows)
			for i := range records {
				records[i] = core.Record{"id": i + 1, "product_id": 100 + i, "quantity": 1}
			}
			engine := NewEngine(store.NewMemoryStore(map[string][]core.Record{"cart": records}))

			result, err := engine.Execute(context.Background(), "SELECT * FROM cart")
			if err != nil {
				t.Fatalf("Failed to execute SELECT: %v", err)
			}

			if result.RowCount != test.rows {
				t.Errorf("Expected row count %d, got %d", test.rows, result.RowCount)
			}
			if len(result.Rows) != test.rendered {
				t.Errorf("Expected %d rendered rows, got %d", test.rendered, len(result.Rows))
			}
			if result.Truncated != test.truncated {
				t.Errorf("Expected truncated=%v", test.truncated)
			}
			if test.truncated && result.Notice() != "Showing first 50 of 51 rows." {
				t.Errorf("Unexpected notice %q", result.Notice())
			}
		})
	}
}

func TestEngineUnknownTable(t *testing.T) {
	engine, recordStore := setupTestEngine(t)

	_, err := engine.Execute(context.Background(), "SELECT * FROM widgets")

	var unknown *core.UnknownTableError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownTableError, got %v", err)
	}
	if unknown.Table != "widgets" {
		t.Errorf("Expected table widgets, got %s", unknown.Table)
	}
	if !strings.Contains(err.Error(), "products, orders, customers, categories, cart, wishlist") {
		t.Errorf("Expected available tables in message, got %q", err.Error())
	}
	if n := recordStore.fetches.Load(); n != 0 {
		t.Errorf("Expected no fetch for an unknown table, got %d", n)
	}
}

func TestEngineTableAlias(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SELECT COUNT(*) FROM adminproducts")
	if err != nil {
		t.Fatalf("Failed to execute SELECT: %v", err)
	}
	if !reflect.DeepEqual(result.Rows, [][]string{{"4"}}) {
		t.Errorf("Expected 4 products, got %v", result.Rows)
	}
}

func TestEngineDescribe(t *testing.T) {
	engine, recordStore := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "DESCRIBE products")
	if err != nil {
		t.Fatalf("Failed to execute DESCRIBE: %v", err)
	}

	if !reflect.DeepEqual(result.Columns, []string{"column_name", "type"}) {
		t.Errorf("Expected column_name and type, got %v", result.Columns)
	}

	table, _ := core.DefaultCatalog().Lookup("products")
	if result.RowCount != len(table.Columns) {
		t.Fatalf("Expected %d schema rows, got %d", len(table.Columns), result.RowCount)
	}
	for i, col := range table.Columns {
		if result.Rows[i][0] != col.Name || result.Rows[i][1] != col.Type {
			t.Errorf("Row %d: expected %s %s, got %v", i, col.Name, col.Type, result.Rows[i])
		}
	}
	if n := recordStore.fetches.Load(); n != 0 {
		t.Errorf("Expected DESCRIBE to skip the store, got %d fetches", n)
	}
}

func TestEngineDescribeErrors(t *testing.T) {
	engine, _ := setupTestEngine(t)

	_, err := engine.Execute(context.Background(), "DESCRIBE")
	var usage *core.MalformedDescribeError
	if !errors.As(err, &usage) {
		t.Errorf("Expected MalformedDescribeError, got %v", err)
	}

	_, err = engine.Execute(context.Background(), "DESC widgets")
	var unknown *core.UnknownTableError
	if !errors.As(err, &unknown) {
		t.Errorf("Expected UnknownTableError, got %v", err)
	}
}

func TestEngineShowTables(t *testing.T) {
	engine, _ := setupTestEngine(t)

	result, err := engine.Execute(context.Background(), "SHOW TABLES")
	if err != nil {
		t.Fatalf("Failed to execute SHOW TABLES: %v", err)
	}

	expected := [][]string{
		{"products", "4"},
		{"orders", "2"},
		{"customers", "1"},
		{"categories", "0"},
		{"cart", "0"},
		{"wishlist", "0"},
	}
	if !reflect.DeepEqual(result.Rows, expected) {
		t.Errorf("Expected %v, got %v", expected, result.Rows)
	}
}

func TestEngineFetchError(t *testing.T) {
	storeErr := errors.New("connection refused")
	engine := NewEngine(failingStore{err: storeErr})

	for _, query := range []string{"SELECT * FROM orders", "SHOW TABLES"} {
		_, err := engine.Execute(context.Background(), query)

		var fetchErr *core.DataFetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("%s: expected DataFetchError, got %v", query, err)
		}
		if !errors.Is(err, storeErr) {
			t.Errorf("%s: expected wrapped store error, got %v", query, err)
		}
	}
}

func TestEngineFetchTimeout(t *testing.T) {
	engine := NewEngine(blockingStore{}, WithFetchTimeout(20*time.Millisecond))

	startTime := time.Now()
	_, err := engine.Execute(context.Background(), "SELECT * FROM orders")

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if ErrorKind(err) != "fetch_error" {
		t.Errorf("Expected fetch_error kind, got %s", ErrorKind(err))
	}
	if elapsed := time.Since(startTime); elapsed > 2*time.Second {
		t.Errorf("Fetch was not bounded, took %v", elapsed)
	}
}

func TestEngineFetchTimeoutIgnoredContext(t *testing.T) {
	stuck := stuckStore{release: make(chan struct{})}
	defer close(stuck.release)

	engine := NewEngine(stuck, WithFetchTimeout(20*time.Millisecond))

	result := make(chan error, 1)
	go func() {
		_, err := engine.Execute(context.Background(), "SELECT COUNT(*) FROM cart")
		result <- err
	}()

	select {
	case err := <-result:
		var fetchErr *core.DataFetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("Expected DataFetchError, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after the fetch timeout")
	}
}

func TestEngineReadsFreshData(t *testing.T) {
	memory := store.NewMemoryStore(testData())
	engine := NewEngine(memory)

	first, err := engine.Execute(context.Background(), "SELECT COUNT(*) FROM orders")
	if err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}

	memory.AppendAll(context.Background(), "orders", []core.Record{{"id": 3, "total": 75, "status": "Pending"}})

	second, err := engine.Execute(context.Background(), "SELECT COUNT(*) FROM orders")
	if err != nil {
		t.Fatalf("Failed to execute: %v", err)
	}

	if first.Rows[0][0] != "2" || second.Rows[0][0] != "3" {
		t.Errorf("Expected counts 2 then 3, got %s then %s", first.Rows[0][0], second.Rows[0][0])
	}
}

func TestEngineErrorsDoNotAffectLaterQueries(t *testing.T) {
	engine, _ := setupTestEngine(t)

	for _, bad := range []string{"SELECT * FROM widgets", "SELECT * FROM orders WHERE a = 1 AND b = 2", "DROP TABLE orders"} {
		if _, err := engine.Execute(context.Background(), bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}

	result, err := engine.Execute(context.Background(), "SELECT COUNT(*) FROM orders")
	if err != nil {
		t.Fatalf("Failed after errors: %v", err)
	}
	if result.Rows[0][0] != "2" {
		t.Errorf("Expected count 2, got %s", result.Rows[0][0])
	}
}

func TestEngineConcurrentExecute(t *testing.T) {
	engine, _ := setupTestEngine(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := engine.Execute(context.Background(), "SELECT status, COUNT(*) FROM orders GROUP BY status")
			if err != nil {
				errs <- err
				return
			}
			if result.RowCount != 2 {
				errs <- fmt.Errorf("expected 2 groups, got %d", result.RowCount)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestEngineMetrics(t *testing.T) {
	engine, _ := setupTestEngine(t)

	okBefore := testutil.ToFloat64(queriesTotal.WithLabelValues("select", statusOK))
	badBefore := testutil.ToFloat64(queriesTotal.WithLabelValues("invalid", "malformed"))
	unknownBefore := testutil.ToFloat64(queriesTotal.WithLabelValues("select", "unknown_table"))

	engine.Execute(context.Background(), "SELECT * FROM orders")
	engine.Execute(context.Background(), "SELECT * FROM orders OFFSET 1")
	engine.Execute(context.Background(), "SELECT * FROM widgets")

	if got := testutil.ToFloat64(queriesTotal.WithLabelValues("select", statusOK)) - okBefore; got != 1 {
		t.Errorf("Expected 1 successful select, got %v", got)
	}
	if got := testutil.ToFloat64(queriesTotal.WithLabelValues("invalid", "malformed")) - badBefore; got != 1 {
		t.Errorf("Expected 1 malformed query, got %v", got)
	}
	if got := testutil.ToFloat64(queriesTotal.WithLabelValues("select", "unknown_table")) - unknownBefore; got != 1 {
		t.Errorf("Expected 1 unknown table, got %v", got)
	}
}

func TestEngineCounts(t *testing.T) {
	engine, _ := setupTestEngine(t)

	counts, err := engine.Counts(context.Background())
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}

	if len(counts) != 6 {
		t.Fatalf("Expected 6 tables, got %d", len(counts))
	}
	if counts[0] != (TableCount{Table: "products", Records: 4}) {
		t.Errorf("Unexpected first count %+v", counts[0])
	}
}
