package db

import (
	"cmp"
	"sort"
	"strings"

	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/sql"
)

// Evaluation is the unformatted outcome of a query: output columns, their
// display kinds and the ordered rows.
type Evaluation struct {
	Columns []string
	Kinds   []ColumnKind
	Rows    []core.Record
}

// Evaluate applies query to rows fetched from table. It is pure: rows are
// never modified and the same inputs always give the same output.
//
// Every table is evaluated in the same order: filter, group or aggregate,
// order, limit. Projection happens when the evaluation is formatted.
func Evaluate(query sql.Query, table core.Table, rows []core.Record) Evaluation {
	filtered := Filter(rows, query.Predicate)

	var evaluation Evaluation
	_, plain := query.Aggregate.(sql.NoAggregate)

	switch {
	case query.Grouped():
		evaluation.Rows = GroupBy(filtered, query.GroupBy, table.Fallback(), query.Aggregate)
		evaluation.Columns = []string{query.GroupBy, groupCountName(query.Aggregate)}
		evaluation.Kinds = []ColumnKind{KindOf(query.GroupBy), TextKind}
		if output, ok := groupAggregateOutput(query.Aggregate); ok {
			evaluation.Columns = append(evaluation.Columns, output)
			evaluation.Kinds = append(evaluation.Kinds, aggregateKind(query.Aggregate))
		}
	case !plain:
		output := query.Aggregate.OutputName()
		evaluation.Rows = []core.Record{{output: Aggregate(filtered, query.Aggregate)}}
		evaluation.Columns = []string{output}
		evaluation.Kinds = []ColumnKind{aggregateKind(query.Aggregate)}
	default:
		evaluation.Rows = filtered
		evaluation.Columns = query.Columns
		if len(evaluation.Columns) == 0 {
			evaluation.Columns = table.DefaultColumns
		}
		evaluation.Kinds = make([]ColumnKind, len(evaluation.Columns))
		for i, col := range evaluation.Columns {
			evaluation.Kinds[i] = KindOf(col)
		}
	}

	if query.OrderBy.Column != "" {
		evaluation.Rows = Sort(evaluation.Rows, query.OrderBy)
	}

	if query.HasLimit() && query.Limit < len(evaluation.Rows) {
		evaluation.Rows = evaluation.Rows[:query.Limit]
	}

	return evaluation
}

// aggregateKind gives SUM and AVG the display kind of the column they read.
func aggregateKind(aggregate sql.Aggregate) ColumnKind {
	switch aggregate.(type) {
	case sql.Sum, sql.Avg:
		return KindOf(aggregate.SourceColumn())
	default:
		return TextKind
	}
}

// Sort returns a stably sorted copy of rows. Values are ranked in tiers:
// missing or null first, then numbers compared numerically, then everything
// else compared case-insensitively as strings.
func Sort(rows []core.Record, order sql.OrderBy) []core.Record {
	sorted := make([]core.Record, len(rows))
	copy(sorted, rows)

	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareValues(sorted[i], sorted[j], order.Column)
		if order.Descending {
			return c > 0
		}
		return c < 0
	})
	return sorted
}

const (
	missingTier = iota
	numberTier
	textTier
)

func sortKey(row core.Record, column string) (tier int, number float64, text string) {
	if f, ok := row.Float(column); ok {
		return numberTier, f, ""
	}
	if s, ok := row.String(column); ok {
		return textTier, 0, strings.ToLower(s)
	}
	return missingTier, 0, ""
}

func compareValues(a, b core.Record, column string) int {
	aTier, af, as := sortKey(a, column)
	bTier, bf, bs := sortKey(b, column)
	switch {
	case aTier != bTier:
		return cmp.Compare(aTier, bTier)
	case aTier == numberTier:
		return cmp.Compare(af, bf)
	default:
		return strings.Compare(as, bs)
	}
}
