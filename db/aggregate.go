package db

import (
	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/sql"
)

// countColumn is the row count carried by every GROUP BY bucket.
const countColumn = "count"

// Aggregate folds rows into the single value of aggregate.
func Aggregate(rows []core.Record, aggregate sql.Aggregate) any {
	switch a := aggregate.(type) {
	case sql.Count:
		if a.Column == "*" || a.Column == "" {
			return len(rows)
		}
		n := 0
		for _, row := range rows {
			if _, ok := row.Get(a.Column); ok {
				n++
			}
		}
		return n
	case sql.Sum:
		sum, _ := sumColumn(rows, a.Column)
		return sum
	case sql.Avg:
		sum, n := sumColumn(rows, a.Column)
		if n == 0 {
			return float64(0)
		}
		return sum / float64(n)
	default:
		return nil
	}
}

// sumColumn adds the numeric values of column and reports how many there were.
// Missing and non-numeric values are skipped.
func sumColumn(rows []core.Record, column string) (float64, int) {
	var sum float64
	n := 0
	for _, row := range rows {
		if f, ok := row.Float(column); ok {
			sum += f
			n++
		}
	}
	return sum, n
}

// GroupBy partitions rows by the stringified value of column, in first-seen
// order. Rows without the column land in the fallback bucket. Each output row
// holds the group value, the row count and, for SUM, AVG and COUNT(col), the
// aggregate output.
func GroupBy(rows []core.Record, column, fallback string, aggregate sql.Aggregate) []core.Record {
	var order []string
	buckets := make(map[string][]core.Record)

	for _, row := range rows {
		key, ok := row.String(column)
		if !ok || key == "" {
			key = fallback
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], row)
	}

	countName := groupCountName(aggregate)
	output, carries := groupAggregateOutput(aggregate)

	grouped := make([]core.Record, 0, len(order))
	for _, key := range order {
		members := buckets[key]
		record := core.Record{
			column:    key,
			countName: len(members),
		}
		if carries {
			record[output] = Aggregate(members, aggregate)
		}
		grouped = append(grouped, record)
	}
	return grouped
}

// groupCountName is the name of the per-group row count. An alias on COUNT(*)
// renames it.
func groupCountName(aggregate sql.Aggregate) string {
	if c, ok := aggregate.(sql.Count); ok && (c.Column == "*" || c.Column == "") {
		return c.OutputName()
	}
	return countColumn
}

func groupAggregateOutput(aggregate sql.Aggregate) (string, bool) {
	switch a := aggregate.(type) {
	case sql.Count:
		if a.Column == "*" || a.Column == "" {
			return "", false
		}
		return a.OutputName(), true
	case sql.Sum, sql.Avg:
		return a.OutputName(), true
	default:
		return "", false
	}
}
