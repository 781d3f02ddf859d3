package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nickyhof/ShopQL/core"
)

func TestBackupJSON(t *testing.T) {
	backup := Backup{
		Tables: map[string][]core.Record{
			"products": {{"name": "Phone"}},
			"orders":   nil,
		},
		ExportDate: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		Source:     "Supabase",
	}

	data, err := json.Marshal(backup)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	expected := `{"exportDate":"2024-03-05T10:00:00.000Z","orders":[],"products":[{"name":"Phone"}],"source":"Supabase"}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}

	var decoded Backup
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if !decoded.ExportDate.Equal(backup.ExportDate) {
		t.Errorf("Expected export date %v, got %v", backup.ExportDate, decoded.ExportDate)
	}
	if !reflect.DeepEqual(decoded.TableNames(), []string{"orders", "products"}) {
		t.Errorf("Expected orders and products, got %v", decoded.TableNames())
	}
}

func TestBackupResolvesTableAliases(t *testing.T) {
	ctx := context.Background()
	data := `{"adminProducts":[{"name":"Phone"}],"products":[{"name":"Mug"}],"Orders":[],"exportDate":"2024-03-05T10:00:00.000Z"}`

	var backup Backup
	if err := json.Unmarshal([]byte(data), &backup); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if !reflect.DeepEqual(backup.TableNames(), []string{"orders", "products"}) {
		t.Fatalf("Expected orders and products, got %v", backup.TableNames())
	}

	s := NewMemoryStore(nil)
	if err := Import(ctx, s, backup); err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	products, err := s.FetchAll(ctx, "products")
	if err != nil {
		t.Fatalf("Failed to fetch products: %v", err)
	}
	if len(products) != 2 || products[0]["name"] != "Phone" || products[1]["name"] != "Mug" {
		t.Errorf("Expected aliased and canonical products merged, got %v", products)
	}
}

func TestBackupInvalidExportDate(t *testing.T) {
	var backup Backup
	err := json.Unmarshal([]byte(`{"orders":[],"exportDate":"yesterday"}`), &backup)
	if err == nil || !strings.Contains(err.Error(), "invalid exportDate") {
		t.Errorf("Expected invalid exportDate error, got %v", err)
	}

	if err := json.Unmarshal([]byte(`{"orders":[],"exportDate":""}`), &backup); err != nil {
		t.Errorf("Expected empty exportDate to be accepted, got %v", err)
	}
}

func TestBackupFileName(t *testing.T) {
	got := BackupFileName(time.Date(2024, 12, 1, 23, 0, 0, 0, time.UTC))
	if got != "shopql_backup_2024-12-01.json" {
		t.Errorf("Expected shopql_backup_2024-12-01.json, got %s", got)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryStore(map[string][]core.Record{
		"products":  {{"id": 1.0, "name": "Phone"}, {"id": 2.0, "name": "Case"}},
		"customers": {{"email": "ana@example.com"}},
	})

	dir := t.TempDir() + "/"
	backup, dest, err := Export(ctx, src, []string{"products", "customers", "categories"}, dir, nil)
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(dest), "shopql_backup_") {
		t.Errorf("Expected default file name, got %s", dest)
	}
	if backup.Source != BackupSource {
		t.Errorf("Expected source %s, got %s", BackupSource, backup.Source)
	}

	read, err := ReadBackup(ctx, "file://"+dest, nil)
	if err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if len(read.Tables["products"]) != 2 || len(read.Tables["categories"]) != 0 {
		t.Errorf("Expected products and empty categories, got %v", read.Tables)
	}

	dst, _ := OpenGitStore("", core.Identity{})
	if err := Import(ctx, dst, read); err != nil {
		t.Fatalf("Failed to import: %v", err)
	}
	products, _ := dst.FetchAll(ctx, "products")
	if !reflect.DeepEqual(products, read.Tables["products"]) {
		t.Errorf("Expected imported products %v, got %v", read.Tables["products"], products)
	}
}

func TestImportReadOnly(t *testing.T) {
	s, _ := NewRESTStore("http://localhost", "key")

	err := Import(context.Background(), s, Backup{Tables: map[string][]core.Record{"orders": nil}})
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(map[string][]core.Record{"orders": {{"id": "o1"}}})

	backup := Backup{Tables: map[string][]core.Record{
		"orders":   {{"id": "o2"}, {"id": "o3"}},
		"wishlist": {{"productId": "p1"}},
	}}
	if err := Merge(ctx, s, backup); err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}

	orders, _ := s.FetchAll(ctx, "orders")
	expected := []core.Record{{"id": "o1"}, {"id": "o2"}, {"id": "o3"}}
	if !reflect.DeepEqual(orders, expected) {
		t.Errorf("Expected %v, got %v", expected, orders)
	}
	if wishlist, _ := s.FetchAll(ctx, "wishlist"); len(wishlist) != 1 {
		t.Errorf("Expected 1 wishlist item, got %v", wishlist)
	}

	rest, _ := NewRESTStore("http://localhost", "key")
	if err := Merge(ctx, rest, backup); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly, got %v", err)
	}
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backup.json")

	first := Backup{Tables: map[string][]core.Record{"orders": {{"id": "o1"}}}, Source: "test"}
	if err := WriteBackup(ctx, path, nil, first); err != nil {
		t.Fatalf("Failed to write backup: %v", err)
	}

	s := NewSnapshotStore(path, nil)
	got, err := s.FetchAll(ctx, "orders")
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 order, got %d", len(got))
	}

	// The file is re-read on each fetch
	second := Backup{Tables: map[string][]core.Record{"orders": {{"id": "o1"}, {"id": "o2"}}}}
	WriteBackup(ctx, path, nil, second)
	if got, _ := s.FetchAll(ctx, "orders"); len(got) != 2 {
		t.Errorf("Expected 2 orders after rewrite, got %d", len(got))
	}

	if got, _ := s.FetchAll(ctx, "wishlist"); len(got) != 0 {
		t.Errorf("Expected missing table to be empty, got %v", got)
	}

	if _, err := NewSnapshotStore(filepath.Join(t.TempDir(), "missing.json"), nil).FetchAll(ctx, "orders"); err == nil {
		t.Error("Expected error for missing backup file")
	}
}
