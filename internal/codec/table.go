package codec

import (
	"strings"

	"golang.org/x/text/width"

	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

const defaultTableWidth = 40

// TableEncodeConfig configures TableEncoder.
type TableEncodeConfig struct {
	MaxWidth *int `json:"max_width"`
	MaxRows  int  `json:"max_rows"`
}

// TableEncoder buffers every row and renders a Markdown table at flush.
// Columns wider than max_width are truncated; numeric columns are right
// aligned.
type TableEncoder struct {
	maxWidth int
	maxRows  int
	names    []string
	numeric  []bool
	cells    [][]string
}

// NewTableEncoder creates a table encoder. A max_width of 0 disables
// truncation; max_rows 0 keeps every row.
func NewTableEncoder(cfg TableEncodeConfig) (*TableEncoder, error) {
	e := &TableEncoder{maxWidth: defaultTableWidth, maxRows: cfg.MaxRows}
	if cfg.MaxWidth != nil {
		e.maxWidth = *cfg.MaxWidth
	}
	if e.maxWidth < 0 || e.maxRows < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "codec.table.encode: max_width and max_rows must not be negative")
	}
	return e, nil
}

func (e *TableEncoder) Encode(in *columnar.Batch, _ *buffer.Buffer) error {
	if e.names == nil {
		for c := 0; c < in.NumCols(); c++ {
			e.names = append(e.names, in.Name(c))
			e.numeric = append(e.numeric, in.Type(c).IsNumeric())
		}
	}
	for r := 0; r < in.Rows(); r++ {
		if e.maxRows > 0 && len(e.cells) >= e.maxRows {
			break
		}
		row := make([]string, len(e.names))
		for c := range row {
			if !in.IsNull(r, c) {
				row[c] = in.Value(r, c).String()
			}
		}
		e.cells = append(e.cells, row)
	}
	return nil
}

// displayWidth counts terminal columns; East Asian wide runes take two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// fit truncates s to at most w display columns.
func fit(s string, w int) (string, int) {
	n := 0
	for i, r := range s {
		rw := displayWidth(string(r))
		if n+rw > w {
			return s[:i], n
		}
		n += rw
	}
	return s, n
}

func (e *TableEncoder) writeRow(out *buffer.Buffer, cells []string, widths []int, right []bool) {
	var sb strings.Builder
	sb.WriteString("| ")
	for c, cell := range cells {
		if c > 0 {
			sb.WriteString(" | ")
		}
		s, n := fit(cell, widths[c])
		pad := strings.Repeat(" ", widths[c]-n)
		if right != nil && right[c] {
			sb.WriteString(pad)
			sb.WriteString(s)
		} else {
			sb.WriteString(s)
			sb.WriteString(pad)
		}
	}
	sb.WriteString(" |\n")
	_, _ = out.WriteString(sb.String())
}

func (e *TableEncoder) Flush(out *buffer.Buffer) error {
	if len(e.names) == 0 {
		return nil
	}
	widths := make([]int, len(e.names))
	for c, n := range e.names {
		widths[c] = displayWidth(n)
	}
	for _, row := range e.cells {
		for c, cell := range row {
			if w := displayWidth(cell); w > widths[c] {
				widths[c] = w
			}
		}
	}
	if e.maxWidth > 0 {
		for c := range widths {
			if widths[c] > e.maxWidth {
				widths[c] = e.maxWidth
			}
		}
	}

	e.writeRow(out, e.names, widths, nil)
	rule := make([]string, len(widths))
	for c, w := range widths {
		rule[c] = strings.Repeat("-", w)
	}
	e.writeRow(out, rule, widths, nil)
	for _, row := range e.cells {
		e.writeRow(out, row, widths, e.numeric)
	}
	e.cells = nil
	return nil
}

func (e *TableEncoder) Close() {
	e.names = nil
	e.cells = nil
}
