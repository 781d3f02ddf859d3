package db

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nickyhof/ShopQL/core"
)

// DefaultMaxRows is the number of rows a result renders before truncating.
const DefaultMaxRows = 50

// QueryResult is the formatted outcome of one query.
type QueryResult struct {
	// Columns are the output column names in display order.
	Columns []string
	// Rows holds at most MaxRows formatted rows aligned with Columns.
	Rows [][]string
	// RowCount is the number of rows the query produced before truncation.
	RowCount         int
	Truncated        bool
	MaxRows          int
	ExecutionTimeSec float64
}

// newQueryResult projects and formats an evaluation, keeping at most maxRows
// rows.
func newQueryResult(evaluation Evaluation, maxRows int) QueryResult {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	result := QueryResult{
		Columns:  evaluation.Columns,
		RowCount: len(evaluation.Rows),
		MaxRows:  maxRows,
	}

	rows := evaluation.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
		result.Truncated = true
	}

	result.Rows = make([][]string, len(rows))
	for i, row := range rows {
		result.Rows[i] = formatRow(row, evaluation.Columns, evaluation.Kinds)
	}
	return result
}

func formatRow(row core.Record, columns []string, kinds []ColumnKind) []string {
	cells := make([]string, len(columns))
	for i, col := range columns {
		kind := TextKind
		if i < len(kinds) {
			kind = kinds[i]
		}
		value, _ := row.Get(col)
		cells[i] = FormatValue(value, kind)
	}
	return cells
}

// Headers returns the upper-cased column names.
func (result QueryResult) Headers() []string {
	headers := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		headers[i] = strings.ToUpper(col)
	}
	return headers
}

// Records returns each formatted row keyed by column name.
func (result QueryResult) Records() []map[string]string {
	records := make([]map[string]string, len(result.Rows))
	for i, row := range result.Rows {
		record := make(map[string]string, len(result.Columns))
		for j, col := range result.Columns {
			if j < len(row) {
				record[col] = row[j]
			}
		}
		records[i] = record
	}
	return records
}

// Notice is the truncation message, or "" when every row is shown.
func (result QueryResult) Notice() string {
	if !result.Truncated {
		return ""
	}
	return fmt.Sprintf("Showing first %d of %d rows.", result.MaxRows, result.RowCount)
}

// formatDuration formats a duration in human-readable form
func formatDuration(secs float64) string {
	if secs < 0.001 {
		return "<1ms"
	} else if secs < 0.01 {
		return fmt.Sprintf("%dms", int(secs*1000))
	} else if secs < 1 {
		return fmt.Sprintf("%dms", int(secs*1000))
	} else if secs < 60 {
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	} else {
		mins := int(secs / 60)
		remainSecs := int(secs) % 60
		if remainSecs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm%ds", mins, remainSecs)
	}
}

func (result QueryResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

// Render writes the result table, the truncation notice and a stats line.
func (result QueryResult) Render(w io.Writer) {
	if len(result.Rows) > 0 {
		newGrid(result.Headers(), result.Rows).WriteTo(w)
	} else {
		fmt.Fprintln(w, "No results found.")
	}

	if notice := result.Notice(); notice != "" {
		fmt.Fprintln(w, notice)
	}

	noun := "rows"
	if result.RowCount == 1 {
		noun = "row"
	}
	fmt.Fprintf(w, "%d %s (%s)\n", result.RowCount, noun, result.ExecutionTime())
}

func (result QueryResult) Display() {
	result.Render(os.Stdout)
}
