package db

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

var cellReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ")

// grid draws a bordered text table. Cells are flattened to one line and
// measured in runes so rupee signs and non-ASCII names stay aligned.
type grid struct {
	headers []string
	rows    [][]string
	widths  []int
}

func newGrid(headers []string, rows [][]string) *grid {
	g := &grid{headers: make([]string, len(headers)), rows: make([][]string, len(rows))}
	for i, h := range headers {
		g.headers[i] = cellReplacer.Replace(h)
	}
	for i, row := range rows {
		g.rows[i] = make([]string, len(row))
		for j, cell := range row {
			g.rows[i][j] = cellReplacer.Replace(cell)
		}
	}
	g.measure()
	return g
}

func (g *grid) measure() {
	columns := len(g.headers)
	for _, row := range g.rows {
		columns = max(columns, len(row))
	}

	g.widths = make([]int, columns)
	for i := range g.widths {
		g.widths[i] = 1
	}
	for _, line := range append([][]string{g.headers}, g.rows...) {
		for i, cell := range line {
			g.widths[i] = max(g.widths[i], utf8.RuneCountInString(cell))
		}
	}
}

func (g *grid) border(b *bufio.Writer) {
	b.WriteByte('+')
	for _, w := range g.widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	b.WriteByte('\n')
}

func (g *grid) line(b *bufio.Writer, cells []string) {
	b.WriteByte('|')
	for i, w := range g.widths {
		var cell string
		if i < len(cells) {
			cell = cells[i]
		}
		b.WriteByte(' ')
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", w-utf8.RuneCountInString(cell)+1))
		b.WriteByte('|')
	}
	b.WriteByte('\n')
}

// WriteTo draws the grid: a border, the header row and another border when
// there are headers, then the rows and a closing border.
func (g *grid) WriteTo(w io.Writer) (int64, error) {
	if len(g.widths) == 0 {
		return 0, nil
	}

	counter := &countingWriter{w: w}
	b := bufio.NewWriter(counter)
	g.border(b)
	if len(g.headers) > 0 {
		g.line(b, g.headers)
		g.border(b)
	}
	for _, row := range g.rows {
		g.line(b, row)
	}
	g.border(b)
	err := b.Flush()
	return counter.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
