package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// DefaultMaxWidth is the widest a cell renders before wrapping.
const DefaultMaxWidth = 20

// Table renders rows as a bordered text table. Cells wider than MaxWidth are
// word-wrapped onto extra lines; this only affects display.
type Table struct {
	headers     []string
	rows        [][]string
	maxWidth    int
	headerColor *color.Color
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, maxWidth: DefaultMaxWidth}
}

// WithMaxWidth sets the wrap width; values below 1 disable wrapping.
func (t *Table) WithMaxWidth(width int) *Table {
	t.maxWidth = width
	return t
}

// WithHeaderColor colours the header row. nil renders it plain.
func (t *Table) WithHeaderColor(c *color.Color) *Table {
	t.headerColor = c
	return t
}

// AddRow appends a row; missing cells render empty, extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	header := t.wrapRow(t.headers)
	body := make([][][]string, len(t.rows))
	for i, row := range t.rows {
		body[i] = t.wrapRow(row)
	}

	widths := make([]int, len(t.headers))
	measure := func(cells [][]string) {
		for c, lines := range cells {
			for _, l := range lines {
				if n := utf8.RuneCountInString(l); n > widths[c] {
					widths[c] = n
				}
			}
		}
	}
	measure(header)
	for _, cells := range body {
		measure(cells)
	}

	var sb strings.Builder
	rule := t.rule(widths)
	sb.WriteString(rule)
	t.writeCells(&sb, header, widths, t.headerColor)
	sb.WriteString(rule)
	for _, cells := range body {
		t.writeCells(&sb, cells, widths, nil)
	}
	if len(body) > 0 {
		sb.WriteString(rule)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func (t *Table) rule(widths []int) string {
	var sb strings.Builder
	sb.WriteByte('+')
	for _, w := range widths {
		sb.WriteString(strings.Repeat("-", w+2))
		sb.WriteByte('+')
	}
	sb.WriteByte('\n')
	return sb.String()
}

// writeCells writes one logical row, which spans as many physical lines as
// its tallest wrapped cell.
func (t *Table) writeCells(sb *strings.Builder, cells [][]string, widths []int, c *color.Color) {
	height := 1
	for _, lines := range cells {
		if len(lines) > height {
			height = len(lines)
		}
	}
	for line := 0; line < height; line++ {
		sb.WriteByte('|')
		for col, lines := range cells {
			text := ""
			if line < len(lines) {
				text = lines[line]
			}
			padded := center(text, widths[col])
			if c != nil {
				padded = c.Sprint(padded)
			}
			fmt.Fprintf(sb, " %s |", padded)
		}
		sb.WriteByte('\n')
	}
}

func (t *Table) wrapRow(row []string) [][]string {
	cells := make([][]string, len(row))
	for i, cell := range row {
		cells[i] = wrap(cell, t.maxWidth)
	}
	return cells
}

// center pads s with spaces to width, extra space going to the right.
func center(s string, width int) string {
	pad := width - utf8.RuneCountInString(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

// wrap breaks s into lines of at most width runes, preferring word boundaries
// and splitting words that are longer than width.
func wrap(s string, width int) []string {
	if width < 1 || utf8.RuneCountInString(s) <= width {
		return []string{s}
	}

	var lines []string
	current := ""
	for _, word := range strings.Fields(s) {
		for utf8.RuneCountInString(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		switch {
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
