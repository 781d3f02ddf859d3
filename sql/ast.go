package sql

import (
	"fmt"
	"strings"
)

// NoLimit marks a query without a LIMIT clause.
const NoLimit = -1

// Query is the parsed form of one SELECT. It is a value: the engine never
// mutates it and a fresh Query is built for every input string.
type Query struct {
	Table     string
	Columns   []string // explicit projection; empty selects the table defaults
	Predicate Predicate
	Aggregate Aggregate
	GroupBy   string
	OrderBy   OrderBy
	Limit     int
}

// NewQuery returns a query over table with no optional clauses.
func NewQuery(table string) Query {
	return Query{
		Table:     table,
		Predicate: NoPredicate{},
		Aggregate: NoAggregate{},
		Limit:     NoLimit,
	}
}

func (q Query) HasLimit() bool {
	return q.Limit != NoLimit
}

func (q Query) Grouped() bool {
	return q.GroupBy != ""
}

func (q Query) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	var items []string
	if q.Grouped() {
		items = append(items, q.GroupBy)
	}
	items = append(items, q.Columns...)
	if _, ok := q.Aggregate.(NoAggregate); !ok {
		items = append(items, q.Aggregate.String())
	}
	if len(items) == 0 {
		items = []string{"*"}
	}
	sb.WriteString(strings.Join(items, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(q.Table)
	if _, ok := q.Predicate.(NoPredicate); !ok {
		sb.WriteString(" WHERE ")
		sb.WriteString(q.Predicate.String())
	}
	if q.Grouped() {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(q.GroupBy)
	}
	if q.OrderBy.Column != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.OrderBy.String())
	}
	if q.HasLimit() {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String()
}

// Predicate is the single WHERE condition of a query.
type Predicate interface {
	isPredicate()
	String() string
}

type NoPredicate struct{}

type ComparisonOperator int

const (
	EqualsOperator ComparisonOperator = iota
	LessThanOperator
	GreaterThanOperator
	LessThanOrEqualOperator
	GreaterThanOrEqualOperator
)

func (op ComparisonOperator) String() string {
	switch op {
	case EqualsOperator:
		return "="
	case LessThanOperator:
		return "<"
	case GreaterThanOperator:
		return ">"
	case LessThanOrEqualOperator:
		return "<="
	case GreaterThanOrEqualOperator:
		return ">="
	default:
		return "?"
	}
}

// Numeric reports whether the operator compares parsed floats.
func (op ComparisonOperator) Numeric() bool {
	return op != EqualsOperator
}

type Comparison struct {
	Column   string
	Operator ComparisonOperator
	Literal  string
}

type Like struct {
	Column  string
	Pattern string
}

func (NoPredicate) isPredicate() {}
func (Comparison) isPredicate()  {}
func (Like) isPredicate()        {}

func (NoPredicate) String() string { return "" }

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s '%s'", c.Column, c.Operator, c.Literal)
}

func (l Like) String() string {
	return fmt.Sprintf("%s LIKE '%s'", l.Column, l.Pattern)
}

// Aggregate is the optional summary function of a query.
type Aggregate interface {
	isAggregate()
	// OutputName is the result column the aggregate writes to.
	OutputName() string
	// SourceColumn is the column the aggregate reads, or "*".
	SourceColumn() string
	String() string
}

type NoAggregate struct{}

// Count counts rows. Column "*" counts every row, any other column counts
// rows where that column is present and non-null.
type Count struct {
	Column string
	Alias  string
}

type Sum struct {
	Column string
	Alias  string
}

type Avg struct {
	Column string
	Alias  string
}

func (NoAggregate) isAggregate() {}
func (Count) isAggregate()       {}
func (Sum) isAggregate()         {}
func (Avg) isAggregate()         {}

func (NoAggregate) OutputName() string   { return "" }
func (NoAggregate) SourceColumn() string { return "" }
func (NoAggregate) String() string       { return "" }

func (c Count) OutputName() string {
	if c.Alias != "" {
		return c.Alias
	}
	if c.Column == "*" || c.Column == "" {
		return "count"
	}
	return "count_" + c.Column
}

func (c Count) SourceColumn() string { return c.Column }
func (c Count) String() string       { return withAlias("COUNT("+c.Column+")", c.Alias) }

func (s Sum) OutputName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return "sum_" + s.Column
}

func (s Sum) SourceColumn() string { return s.Column }
func (s Sum) String() string       { return withAlias("SUM("+s.Column+")", s.Alias) }

func (a Avg) OutputName() string {
	if a.Alias != "" {
		return a.Alias
	}
	return "avg_" + a.Column
}

func (a Avg) SourceColumn() string { return a.Column }
func (a Avg) String() string       { return withAlias("AVG("+a.Column+")", a.Alias) }

func withAlias(expr, alias string) string {
	if alias == "" {
		return expr
	}
	return expr + " AS " + alias
}

type OrderBy struct {
	Column     string
	Descending bool
}

func (o OrderBy) String() string {
	if o.Descending {
		return o.Column + " DESC"
	}
	return o.Column + " ASC"
}
