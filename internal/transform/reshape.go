package transform

import (
	"math"
	"strings"

	"github.com/ajitpratap0/strata/internal/codec"
	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	stringpool "github.com/ajitpratap0/strata/pkg/strings"
)

// PivotConfig configures Pivot.
type PivotConfig struct {
	NameColumn  string `json:"name_column"`
	ValueColumn string `json:"value_column"`
	Agg         string `json:"agg"`
}

type pivotCell struct {
	count, n             int
	sum, min, max, first float64
}

// Pivot turns long data wide. Every column other than the name and value
// columns is a pass-through key; each distinct name becomes a column
// holding the aggregate of its values. Rows and columns are emitted in
// first-seen order.
type Pivot struct {
	nameCol, valueCol, agg string

	pass    []columnar.Field
	groups  *keyIndex
	keys    [][]columnar.Value
	cells   [][]pivotCell
	names   []string
	nameIdx map[string]int
	buf     []byte
}

var pivotAggs = []string{"first", "sum", "count", "avg", "min", "max"}

// NewPivot creates a pivot step.
func NewPivot(cfg PivotConfig) (*Pivot, error) {
	if cfg.NameColumn == "" || cfg.ValueColumn == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "pivot: name_column and value_column are required")
	}
	if cfg.Agg == "" {
		cfg.Agg = "first"
	}
	if !contains(pivotAggs, cfg.Agg) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "pivot: unknown agg %q", cfg.Agg)
	}
	return &Pivot{
		nameCol:  cfg.NameColumn,
		valueCol: cfg.ValueColumn,
		agg:      cfg.Agg,
		groups:   newKeyIndex(),
		nameIdx:  make(map[string]int),
	}, nil
}

func (s *Pivot) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	if s.pass == nil {
		s.pass = []columnar.Field{}
		for _, f := range in.Fields() {
			if f.Name == s.nameCol || f.Name == s.valueCol {
				continue
			}
			if f.Type == columnar.TypeNull {
				f.Type = columnar.TypeString
			}
			s.pass = append(s.pass, f)
		}
	}
	passCols := make([]int, len(s.pass))
	for i, f := range s.pass {
		passCols[i] = in.ColIndex(f.Name)
	}
	nameCol, valueCol := in.ColIndex(s.nameCol), in.ColIndex(s.valueCol)

	for r := 0; r < in.Rows(); r++ {
		s.buf = rowKey(s.buf[:0], in, r, passCols)
		g, added := s.groups.id(s.buf)
		if added {
			key := make([]columnar.Value, len(passCols))
			for i, c := range passCols {
				key[i] = detach(in.Value(r, c))
			}
			s.keys = append(s.keys, key)
			s.cells = append(s.cells, nil)
		}
		if in.IsNull(r, nameCol) {
			continue
		}
		name := in.Value(r, nameCol).String()
		idx, ok := s.nameIdx[name]
		if !ok {
			name = stringpool.Clone(name)
			idx = len(s.names)
			s.nameIdx[name] = idx
			s.names = append(s.names, name)
		}
		for len(s.cells[g]) <= idx {
			s.cells[g] = append(s.cells[g], pivotCell{min: math.Inf(1), max: math.Inf(-1)})
		}
		cell := &s.cells[g][idx]
		if !in.IsNull(r, valueCol) {
			cell.count++
		}
		x, ok := numeric(in, r, valueCol)
		if !ok {
			continue
		}
		if cell.n == 0 {
			cell.first = x
		}
		cell.n++
		cell.sum += x
		cell.min = math.Min(cell.min, x)
		cell.max = math.Max(cell.max, x)
	}
	return nil, nil
}

func (s *Pivot) value(cell pivotCell) columnar.Value {
	if s.agg == "count" {
		return columnar.Int(int64(cell.count))
	}
	if cell.n == 0 {
		return columnar.Null()
	}
	switch s.agg {
	case "sum":
		return columnar.Float(cell.sum)
	case "avg":
		return columnar.Float(cell.sum / float64(cell.n))
	case "min":
		return columnar.Float(cell.min)
	case "max":
		return columnar.Float(cell.max)
	}
	return columnar.Float(cell.first)
}

func (s *Pivot) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	if len(s.keys) == 0 {
		return nil, nil
	}
	valueType := columnar.TypeFloat64
	if s.agg == "count" {
		valueType = columnar.TypeInt64
	}
	fields := append([]columnar.Field(nil), s.pass...)
	for _, n := range s.names {
		fields = append(fields, columnar.Field{Name: n, Type: valueType})
	}
	out := columnar.NewBatchFromFields(fields, len(s.keys))
	row := make([]columnar.Value, len(fields))
	for g, key := range s.keys {
		copy(row, key)
		for i := range s.names {
			cell := pivotCell{}
			if i < len(s.cells[g]) {
				cell = s.cells[g][i]
			}
			row[len(key)+i] = s.value(cell)
		}
		out.AppendValues(row)
	}
	s.Close()
	return out, nil
}

func (s *Pivot) Close() {
	s.groups = newKeyIndex()
	s.keys = nil
	s.cells = nil
}

// UnpivotConfig configures Unpivot.
type UnpivotConfig struct {
	Columns []string `json:"columns"`
}

// Unpivot melts the listed columns into variable/value pairs, one output
// row per input row and melted column. The value type is fixed by the
// first batch: float64 when every melted column is numeric, else string.
type Unpivot struct {
	stateless
	columns   []string
	valueType columnar.Type
}

// NewUnpivot creates an unpivot step.
func NewUnpivot(cfg UnpivotConfig) (*Unpivot, error) {
	if len(cfg.Columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "unpivot: columns is required")
	}
	return &Unpivot{columns: cfg.Columns}, nil
}

func (s *Unpivot) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	var melt, ids []int
	for c := 0; c < in.NumCols(); c++ {
		if contains(s.columns, in.Name(c)) {
			melt = append(melt, c)
		} else {
			ids = append(ids, c)
		}
	}
	if len(melt) == 0 {
		return in.Clone(), nil
	}
	if s.valueType == columnar.TypeNull {
		s.valueType = columnar.TypeFloat64
		for _, c := range melt {
			if !in.Type(c).IsNumeric() {
				s.valueType = columnar.TypeString
			}
		}
	}

	fields := make([]columnar.Field, 0, len(ids)+2)
	for _, c := range ids {
		fields = append(fields, columnar.Field{Name: in.Name(c), Type: in.Type(c)})
	}
	fields = append(fields,
		columnar.Field{Name: "variable", Type: columnar.TypeString},
		columnar.Field{Name: "value", Type: s.valueType},
	)
	out := columnar.NewBatchFromFields(fields, in.Rows()*len(melt))
	varCol, valCol := len(ids), len(ids)+1
	for r := 0; r < in.Rows(); r++ {
		for _, m := range melt {
			o := out.Rows()
			out.SetRows(o + 1)
			for i, c := range ids {
				out.SetValue(o, i, in.Value(r, c))
			}
			out.SetStr(o, varCol, in.Name(m))
			out.SetValue(o, valCol, in.Value(r, m))
		}
	}
	return out, nil
}

// StackConfig configures Stack.
type StackConfig struct {
	File     string `json:"file"`
	Tag      string `json:"tag"`
	TagValue string `json:"tag_value"`
}

// Stack passes the stream through and, at flush, appends the rows of a CSV
// file aligned to the stream's columns by name. With a tag column, stream
// rows are labelled "input" and appended rows tag_value (the file path by
// default).
type Stack struct {
	file, tag, tagValue string
	fields              []columnar.Field
}

// NewStack creates a stack step.
func NewStack(cfg StackConfig) (*Stack, error) {
	if cfg.File == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "stack: file is required")
	}
	if cfg.TagValue == "" {
		cfg.TagValue = cfg.File
	}
	return &Stack{file: cfg.File, tag: cfg.Tag, tagValue: cfg.TagValue}, nil
}

func (s *Stack) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	if s.fields == nil {
		s.fields = in.Fields()
	}
	if s.tag == "" {
		return in.Clone(), nil
	}
	out := extend(in, columnar.Field{Name: s.tag, Type: columnar.TypeString})
	for r := 0; r < out.Rows(); r++ {
		out.SetStr(r, in.NumCols(), "input")
	}
	return out, nil
}

func (s *Stack) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	batches, err := codec.ReadCSVFile(s.file, codec.CSVDecodeConfig{})
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, nil
	}
	fields := s.fields
	if fields == nil {
		fields = batches[0].Fields()
	}
	all := fields
	if s.tag != "" {
		all = append(append([]columnar.Field(nil), fields...), columnar.Field{Name: s.tag, Type: columnar.TypeString})
	}
	out := columnar.NewBatchFromFields(all, 0)
	for _, fb := range batches {
		src := make([]int, len(fields))
		for c, f := range fields {
			src[c] = fb.ColIndex(f.Name)
		}
		for r := 0; r < fb.Rows(); r++ {
			o := out.Rows()
			out.SetRows(o + 1)
			for c, sc := range src {
				if sc >= 0 {
					out.SetValue(o, c, fb.Value(r, sc))
				}
			}
			if s.tag != "" {
				out.SetStr(o, len(fields), s.tagValue)
			}
		}
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *Stack) Close() {}

// JoinConfig configures Join.
type JoinConfig struct {
	File string `json:"file"`
	On   string `json:"on"`
	How  string `json:"how"`
}

// Join hash-joins the stream against a CSV lookup file loaded at
// construction. Keys match on their text form; null keys never match.
// Lookup columns other than the key are appended, suffixed with _right
// when the name is already taken. A key with several lookup rows yields
// one output row per match.
type Join struct {
	stateless
	left, right string
	inner       bool
	lookup      rowStore
	cols        []int
	index       map[string][]int
}

// NewJoin creates a join step. "on" is either a shared column name or
// left=right.
func NewJoin(cfg JoinConfig) (*Join, error) {
	if cfg.File == "" || cfg.On == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "join: file and on are required")
	}
	left, right, ok := strings.Cut(cfg.On, "=")
	if !ok {
		right = left
	}
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)
	if left == "" || right == "" {
		return nil, errors.Newf(errors.ErrorTypeValidation, "join: malformed on %q", cfg.On)
	}
	switch cfg.How {
	case "", "inner", "left":
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "join: unknown how %q", cfg.How)
	}

	batches, err := codec.ReadCSVFile(cfg.File, codec.CSVDecodeConfig{})
	if err != nil {
		return nil, err
	}
	s := &Join{left: left, right: right, inner: cfg.How != "left", index: make(map[string][]int)}
	for _, b := range batches {
		for r := 0; r < b.Rows(); r++ {
			s.lookup.add(b, r)
		}
	}
	key := -1
	for c, f := range s.lookup.fields {
		if f.Name == right {
			key = c
		} else {
			s.cols = append(s.cols, c)
		}
	}
	if key < 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "join: lookup file %s has no column %q", cfg.File, right)
	}
	for i, row := range s.lookup.rows {
		if row[key].IsNull() {
			continue
		}
		k := row[key].String()
		s.index[k] = append(s.index[k], i)
	}
	return s, nil
}

func (s *Join) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	fields := in.Fields()
	for _, c := range s.cols {
		f := s.lookup.fields[c]
		if in.ColIndex(f.Name) >= 0 {
			f.Name += "_right"
		}
		fields = append(fields, f)
	}
	out := columnar.NewBatchFromFields(fields, in.Rows())
	key := in.ColIndex(s.left)
	base := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		var matches []int
		if !in.IsNull(r, key) {
			matches = s.index[in.Value(r, key).String()]
		}
		if len(matches) == 0 {
			if !s.inner {
				out.AppendRow(in, r)
			}
			continue
		}
		for _, m := range matches {
			out.AppendRow(in, r)
			o := out.Rows() - 1
			for i, c := range s.cols {
				out.SetValue(o, base+i, s.lookup.rows[m][c])
			}
		}
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *Join) Close() {
	s.lookup = rowStore{}
	s.index = nil
}
