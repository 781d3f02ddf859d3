package core

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the fixed set of queryable tables. It is immutable once built.
type Catalog struct {
	tables  []Table
	byName  map[string]int
	aliases map[string]int
}

type catalogFile struct {
	Tables []Table `yaml:"tables"`
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded storefront catalog.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		catalog, err := ParseCatalog(catalogYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
		}
		defaultCatalog = catalog
	})
	return defaultCatalog
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return NewCatalog(file.Tables)
}

// NewCatalog validates and indexes a table list.
func NewCatalog(tables []Table) (*Catalog, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("catalog has no tables")
	}

	catalog := &Catalog{
		tables:  make([]Table, len(tables)),
		byName:  make(map[string]int, len(tables)),
		aliases: make(map[string]int),
	}

	for i, table := range tables {
		name := strings.ToLower(table.Name)
		if name == "" {
			return nil, fmt.Errorf("table %d has no name", i)
		}
		if _, exists := catalog.byName[name]; exists {
			return nil, fmt.Errorf("duplicate table %s", name)
		}
		if len(table.DefaultColumns) == 0 {
			table.DefaultColumns = []string{"id", "name"}
		}
		table.Name = name
		catalog.tables[i] = table
		catalog.byName[name] = i
		for _, alias := range table.Aliases {
			catalog.aliases[strings.ToLower(alias)] = i
		}
	}

	return catalog, nil
}

// Lookup resolves a table name or alias, case-insensitively.
func (c *Catalog) Lookup(name string) (Table, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if i, ok := c.byName[name]; ok {
		return c.tables[i], true
	}
	if i, ok := c.aliases[name]; ok {
		return c.tables[i], true
	}
	return Table{}, false
}

// Tables returns every table in catalog order.
func (c *Catalog) Tables() []Table {
	tables := make([]Table, len(c.tables))
	copy(tables, c.tables)
	return tables
}

// TableNames returns the canonical table names in catalog order.
func (c *Catalog) TableNames() []string {
	names := make([]string, len(c.tables))
	for i, table := range c.tables {
		names[i] = table.Name
	}
	return names
}
