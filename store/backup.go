package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nickyhof/ShopQL/core"
)

// BackupSource is recorded in backups written by Export.
const BackupSource = "ShopQL"

// Backup is a point-in-time export of several tables. It encodes as one
// JSON object with a key per table plus exportDate and source.
type Backup struct {
	Tables     map[string][]core.Record
	ExportDate time.Time
	Source     string
}

func (b Backup) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Tables)+2)
	for table, records := range b.Tables {
		if records == nil {
			records = []core.Record{}
		}
		out[table] = records
	}
	out["exportDate"] = b.ExportDate.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	out["source"] = b.Source
	return json.Marshal(out)
}

// UnmarshalJSON decodes a backup. Table keys are resolved through the
// catalog, so an alias such as "adminProducts" loads into products; keys
// outside the catalog are kept lower-cased.
func (b *Backup) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	catalog := core.DefaultCatalog()
	b.Tables = make(map[string][]core.Record)
	for _, key := range keys {
		value := raw[key]
		switch key {
		case "exportDate":
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("invalid exportDate: %w", err)
			}
			if s == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return fmt.Errorf("invalid exportDate %q: %w", s, err)
			}
			b.ExportDate = t
		case "source":
			if err := json.Unmarshal(value, &b.Source); err != nil {
				return fmt.Errorf("invalid source: %w", err)
			}
		default:
			var records []core.Record
			if err := json.Unmarshal(value, &records); err != nil {
				return fmt.Errorf("invalid table %s: %w", key, err)
			}
			name := strings.ToLower(key)
			if table, ok := catalog.Lookup(key); ok {
				name = table.Name
			}
			if existing, ok := b.Tables[name]; ok {
				records = append(existing, records...)
			}
			b.Tables[name] = records
		}
	}
	return nil
}

// TableNames returns the backed up tables in sorted order.
func (b Backup) TableNames() []string {
	names := make([]string, 0, len(b.Tables))
	for name := range b.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackupFileName is the default file name of a backup taken at t.
func BackupFileName(t time.Time) string {
	return fmt.Sprintf("shopql_backup_%s.json", t.Format("2006-01-02"))
}

// Snapshot fetches tables from src concurrently.
func Snapshot(ctx context.Context, src RecordStore, tables []string) (Backup, error) {
	backup := Backup{
		Tables:     make(map[string][]core.Record, len(tables)),
		ExportDate: time.Now(),
		Source:     BackupSource,
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, table := range tables {
		g.Go(func() error {
			records, err := src.FetchAll(ctx, table)
			if err != nil {
				return fmt.Errorf("failed to export %s: %w", table, err)
			}
			mu.Lock()
			backup.Tables[strings.ToLower(table)] = records
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Backup{}, err
	}

	return backup, nil
}

// Export snapshots tables from src and writes the backup to dest, which may
// be a local path, a file:// URL or an s3:// URL. A dest ending in "/" is a
// directory and gets BackupFileName appended.
func Export(ctx context.Context, src RecordStore, tables []string, dest string, cfg *S3Config) (Backup, string, error) {
	backup, err := Snapshot(ctx, src, tables)
	if err != nil {
		return Backup{}, "", err
	}

	if strings.HasSuffix(dest, "/") {
		dest += BackupFileName(backup.ExportDate)
	}
	if err := WriteBackup(ctx, dest, cfg, backup); err != nil {
		return Backup{}, "", err
	}

	return backup, dest, nil
}

// Import loads every table of backup into dst.
func Import(ctx context.Context, dst RecordStore, backup Backup) error {
	writer, ok := dst.(Writer)
	if !ok {
		return ErrReadOnly
	}

	for _, table := range backup.TableNames() {
		if err := writer.ReplaceAll(ctx, table, backup.Tables[table]); err != nil {
			return fmt.Errorf("failed to import %s: %w", table, err)
		}
	}
	return nil
}

// Merge appends every table of backup to what dst already holds.
func Merge(ctx context.Context, dst RecordStore, backup Backup) error {
	appender, ok := dst.(Appender)
	if !ok {
		return ErrReadOnly
	}

	for _, table := range backup.TableNames() {
		if err := appender.AppendAll(ctx, table, backup.Tables[table]); err != nil {
			return fmt.Errorf("failed to merge %s: %w", table, err)
		}
	}
	return nil
}

func ReadBackup(ctx context.Context, path string, cfg *S3Config) (Backup, error) {
	reader, err := OpenReader(ctx, path, cfg)
	if err != nil {
		return Backup{}, err
	}
	defer reader.Close()

	var backup Backup
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return Backup{}, fmt.Errorf("failed to decode backup %s: %w", path, err)
	}
	return backup, nil
}

func WriteBackup(ctx context.Context, path string, cfg *S3Config, backup Backup) error {
	writer, err := OpenWriter(ctx, path, cfg)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	return writer.Close()
}

// SnapshotStore serves tables from a backup file, re-reading it on every
// fetch so a replaced file is picked up. Tables missing from the backup read
// as empty.
type SnapshotStore struct {
	path string
	cfg  *S3Config
}

func NewSnapshotStore(path string, cfg *S3Config) *SnapshotStore {
	return &SnapshotStore{path: path, cfg: cfg}
}

func (s *SnapshotStore) FetchAll(ctx context.Context, table string) ([]core.Record, error) {
	backup, err := ReadBackup(ctx, s.path, s.cfg)
	if err != nil {
		return nil, err
	}
	records, ok := backup.Tables[strings.ToLower(table)]
	if !ok {
		return []core.Record{}, nil
	}
	return records, nil
}
