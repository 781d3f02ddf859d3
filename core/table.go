package core

type Column struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

type Table struct {
	Name           string   `yaml:"name" json:"name"`
	Aliases        []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Columns        []Column `yaml:"columns" json:"columns"`
	DefaultColumns []string `yaml:"default_columns" json:"defaultColumns"`
	GroupFallback  string   `yaml:"group_fallback,omitempty" json:"groupFallback,omitempty"`
}

// ColumnNames returns the schema column names in declaration order.
func (table Table) ColumnNames() []string {
	names := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		names[i] = col.Name
	}
	return names
}

// Fallback returns the bucket name used for rows missing the GROUP BY column.
func (table Table) Fallback() string {
	if table.GroupFallback == "" {
		return "Unknown"
	}
	return table.GroupFallback
}
