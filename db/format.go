package db

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/nickyhof/ShopQL/core"
)

// ColumnKind selects how a column's values are displayed.
type ColumnKind int

const (
	TextKind ColumnKind = iota
	CurrencyKind
	DateKind
)

const (
	// NullDisplay is rendered for missing and null values.
	NullDisplay = "NULL"
	// previewLength bounds the JSON preview of nested objects.
	previewLength = 50
	dateLayout    = "January 2, 2006"
)

var currencyColumns = map[string]bool{
	"price":       true,
	"total":       true,
	"total_spent": true,
	"subtotal":    true,
	"tax":         true,
	"shipping":    true,
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// KindOf classifies a column by name, independent of its table.
func KindOf(column string) ColumnKind {
	column = strings.ToLower(column)
	switch {
	case currencyColumns[column]:
		return CurrencyKind
	case column == "date", strings.HasSuffix(column, "_at"), strings.HasSuffix(column, "_date"):
		return DateKind
	default:
		return TextKind
	}
}

// FormatValue renders one cell. It never fails: values that do not fit the
// column kind are shown as they are.
func FormatValue(value any, kind ColumnKind) string {
	if value == nil {
		return NullDisplay
	}

	switch v := value.(type) {
	case []any:
		return fmt.Sprintf("%d items", len(v))
	case map[string]any:
		return preview(v)
	}

	switch kind {
	case CurrencyKind:
		if f, ok := core.ToFloat(value); ok {
			return FormatPrice(f)
		}
	case DateKind:
		if t, ok := parseDate(value); ok {
			return t.Format(dateLayout)
		}
	}

	return core.Stringify(value)
}

// inrPrinter groups digits the Indian way: the last three, then pairs.
var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatPrice renders an amount in Indian Rupees with lakh digit grouping
// and at most two decimals, e.g. ₹1,23,456.5.
func FormatPrice(amount float64) string {
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return "₹" + strconv.FormatFloat(amount, 'f', -1, 64)
	}

	rounded := math.Round(amount*100) / 100
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}
	return sign + "₹" + inrPrinter.Sprint(number.Decimal(rounded, number.MaxFractionDigits(2)))
}

func parseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case float64, int, int64, json.Number:
		ms, ok := core.ToFloat(v)
		if !ok {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)).UTC(), true
	default:
		return time.Time{}, false
	}
}

func preview(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return NullDisplay
	}
	s := string(data)
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewLength]) + "..."
}
