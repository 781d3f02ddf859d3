package db

import (
	"strconv"
	"strings"

	"github.com/nickyhof/ShopQL/core"
	"github.com/nickyhof/ShopQL/sql"
)

// Filter returns the rows matching predicate in their original order.
// The input slice is not modified.
func Filter(rows []core.Record, predicate sql.Predicate) []core.Record {
	if _, ok := predicate.(sql.NoPredicate); ok || predicate == nil {
		return rows
	}

	matched := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		if Matches(row, predicate) {
			matched = append(matched, row)
		}
	}
	return matched
}

// Matches reports whether a single row satisfies predicate. Rows where the
// column is missing or null never match.
func Matches(row core.Record, predicate sql.Predicate) bool {
	switch p := predicate.(type) {
	case sql.NoPredicate:
		return true
	case sql.Comparison:
		value, ok := row.Get(p.Column)
		if !ok {
			return false
		}
		return compare(value, p.Operator, p.Literal)
	case sql.Like:
		value, ok := row.Get(p.Column)
		if !ok {
			return false
		}
		needle := strings.ToLower(strings.ReplaceAll(p.Pattern, "%", ""))
		return strings.Contains(strings.ToLower(core.Stringify(value)), needle)
	default:
		return false
	}
}

func compare(value any, operator sql.ComparisonOperator, literal string) bool {
	literal = strings.TrimSpace(literal)

	if !operator.Numeric() {
		return strings.EqualFold(core.Stringify(value), literal)
	}

	left, ok := core.ToFloat(value)
	if !ok {
		return false
	}
	right, err := strconv.ParseFloat(literal, 64)
	if err != nil || right != right {
		return false
	}

	switch operator {
	case sql.LessThanOperator:
		return left < right
	case sql.GreaterThanOperator:
		return left > right
	case sql.LessThanOrEqualOperator:
		return left <= right
	case sql.GreaterThanOrEqualOperator:
		return left >= right
	default:
		return false
	}
}
