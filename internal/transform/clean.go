package transform

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/strata/internal/expr"
	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// argText renders a scalar plan argument as text. Plans written in JSON or
// YAML may give defaults as numbers or booleans.
func argText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return columnar.FormatFloat(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}

// sortedKeys returns map keys in a stable order so per-column work does not
// depend on map iteration.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FillNullConfig configures FillNull.
type FillNullConfig struct {
	Mapping map[string]interface{} `json:"mapping"`
}

// FillNull replaces null cells of the mapped columns with a default parsed
// to the column's type. A default that does not parse leaves the cell null.
type FillNull struct {
	stateless
	columns  []string
	defaults map[string]string
}

// NewFillNull creates a fill-null step.
func NewFillNull(cfg FillNullConfig) (*FillNull, error) {
	if len(cfg.Mapping) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "fill-null: mapping is required")
	}
	s := &FillNull{defaults: make(map[string]string, len(cfg.Mapping))}
	for _, col := range sortedKeys(cfg.Mapping) {
		s.columns = append(s.columns, col)
		s.defaults[col] = argText(cfg.Mapping[col])
	}
	return s, nil
}

func (s *FillNull) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := in.Clone()
	for _, name := range s.columns {
		c := out.ColIndex(name)
		if c < 0 || out.Type(c) == columnar.TypeNull {
			continue
		}
		def, ok := columnar.Convert(columnar.Str(s.defaults[name]), out.Type(c))
		if !ok || def.IsNull() {
			continue
		}
		for r := 0; r < out.Rows(); r++ {
			if out.IsNull(r, c) {
				out.SetValue(r, c, def)
			}
		}
	}
	return out, nil
}

// FillDownConfig configures FillDown.
type FillDownConfig struct {
	Columns []string `json:"columns"`
}

// FillDown replaces nulls with the last non-null value seen in the same
// column, carrying that value across batches.
type FillDown struct {
	stateless
	columns map[string]bool
	last    map[string]columnar.Value
}

// NewFillDown creates a fill-down step. No columns means every column.
func NewFillDown(cfg FillDownConfig) (*FillDown, error) {
	s := &FillDown{last: make(map[string]columnar.Value)}
	if len(cfg.Columns) > 0 {
		s.columns = make(map[string]bool, len(cfg.Columns))
		for _, c := range cfg.Columns {
			s.columns[c] = true
		}
	}
	return s, nil
}

func (s *FillDown) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := in.Clone()
	for c := 0; c < out.NumCols(); c++ {
		name := out.Name(c)
		if s.columns != nil && !s.columns[name] {
			continue
		}
		for r := 0; r < out.Rows(); r++ {
			if !out.IsNull(r, c) {
				s.last[name] = detach(out.Value(r, c))
				continue
			}
			if v, ok := s.last[name]; ok {
				out.SetValue(r, c, v)
			}
		}
	}
	return out, nil
}

func (s *FillDown) Close() { s.last = nil }

// CastConfig configures Cast.
type CastConfig struct {
	Mapping map[string]string `json:"mapping"`
}

// Cast converts columns to new types. Cells that cannot be converted become
// null.
type Cast struct {
	stateless
	targets map[string]columnar.Type
}

// NewCast creates a cast step.
func NewCast(cfg CastConfig) (*Cast, error) {
	if len(cfg.Mapping) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "cast: mapping is required")
	}
	s := &Cast{targets: make(map[string]columnar.Type, len(cfg.Mapping))}
	for col, name := range cfg.Mapping {
		t, ok := columnar.ParseType(name)
		if !ok || t == columnar.TypeNull {
			return nil, errors.Newf(errors.ErrorTypeValidation, "cast: unknown type %q for column %q", name, col)
		}
		s.targets[col] = t
	}
	return s, nil
}

func (s *Cast) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	fields := in.Fields()
	for i, f := range fields {
		if t, ok := s.targets[f.Name]; ok {
			fields[i].Type = t
		}
	}
	out := columnar.NewBatchFromFields(fields, in.Rows())
	for c := range fields {
		columnar.CopyColumn(out, c, in, c)
	}
	out.SetRows(in.Rows())
	return out, nil
}

// DeriveColumn names one derived column and its expression.
type DeriveColumn struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// DeriveConfig configures Derive.
type DeriveConfig struct {
	Columns []DeriveColumn `json:"columns"`
}

type derived struct {
	name     string
	expr     *expr.Expr
	typ      columnar.Type
	resolved bool
}

// Derive appends one column per expression. A column's type is fixed by the
// first batch that yields a non-null result; when that batch mixes int and
// float results the column is float64.
type Derive struct {
	stateless
	cols []*derived
	vals []columnar.Value
}

// NewDerive parses every expression and creates a derive step.
func NewDerive(cfg DeriveConfig) (*Derive, error) {
	if len(cfg.Columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "derive: columns is required")
	}
	s := &Derive{}
	for _, dc := range cfg.Columns {
		if dc.Name == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "derive: column name is required")
		}
		e, err := parseExpr("derive", dc.Expr)
		if err != nil {
			return nil, err
		}
		s.cols = append(s.cols, &derived{name: dc.Name, expr: e})
	}
	return s, nil
}

func resolveType(vals []columnar.Value) (columnar.Type, bool) {
	t := columnar.TypeNull
	for _, v := range vals {
		switch {
		case v.IsNull():
		case t == columnar.TypeNull:
			t = v.Type
		case t == columnar.TypeInt64 && v.Type == columnar.TypeFloat64:
			t = columnar.TypeFloat64
		}
	}
	return t, t != columnar.TypeNull
}

func (s *Derive) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	rows := in.Rows()
	results := make([][]columnar.Value, len(s.cols))
	extra := make([]columnar.Field, len(s.cols))
	for i, d := range s.cols {
		vals := make([]columnar.Value, rows)
		for r := 0; r < rows; r++ {
			vals[r] = d.expr.Eval(in, r)
		}
		if !d.resolved {
			d.typ, d.resolved = resolveType(vals)
		}
		results[i] = vals
		t := d.typ
		if !d.resolved {
			// All null so far. Leave the column typed so the row values
			// stay null without freezing the type.
			t = columnar.TypeFloat64
		}
		extra[i] = columnar.Field{Name: d.name, Type: t}
	}
	out := extend(in, extra...)
	base := in.NumCols()
	for i := range s.cols {
		for r, v := range results[i] {
			if !v.IsNull() {
				out.SetValue(r, base+i, v)
			}
		}
	}
	return out, nil
}

// datetime components in output order.
var datetimeParts = []string{"year", "month", "day", "hour", "minute", "second", "weekday", "epoch"}

// DateTimeConfig configures DateTime.
type DateTimeConfig struct {
	Column  string   `json:"column"`
	Extract []string `json:"extract"`
}

// DateTime appends int64 component columns named <column>_<part>. Sources
// may be dates, timestamps, epoch seconds held as int64, or strings holding
// a date, a datetime or epoch seconds.
type DateTime struct {
	stateless
	column string
	parts  []string
}

// NewDateTime creates a datetime step.
func NewDateTime(cfg DateTimeConfig) (*DateTime, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "datetime: column is required")
	}
	if len(cfg.Extract) == 0 {
		cfg.Extract = []string{"year", "month", "day"}
	}
	want := make(map[string]bool, len(cfg.Extract))
	for _, p := range cfg.Extract {
		p = strings.ToLower(strings.TrimSpace(p))
		if !contains(datetimeParts, p) {
			return nil, errors.Newf(errors.ErrorTypeValidation, "datetime: unknown component %q", p)
		}
		want[p] = true
	}
	s := &DateTime{column: cfg.Column}
	for _, p := range datetimeParts {
		if want[p] {
			s.parts = append(s.parts, p)
		}
	}
	return s, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// instant reads a cell as a UTC time.
func instant(b *columnar.Batch, row, col int) (time.Time, bool) {
	if col < 0 || b.IsNull(row, col) {
		return time.Time{}, false
	}
	switch b.Type(col) {
	case columnar.TypeDate:
		return columnar.DateToTime(b.Date(row, col)), true
	case columnar.TypeTimestamp:
		return columnar.TimestampToTime(b.Timestamp(row, col)), true
	case columnar.TypeInt64:
		return time.Unix(b.Int64(row, col), 0).UTC(), true
	case columnar.TypeString:
		s := strings.TrimSpace(b.Str(row, col))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Unix(int64(f), 0).UTC(), true
		}
		if us, ok := columnar.ParseTimestamp(s); ok {
			return columnar.TimestampToTime(us), true
		}
	}
	return time.Time{}, false
}

func component(t time.Time, part string) int64 {
	switch part {
	case "year":
		return int64(t.Year())
	case "month":
		return int64(t.Month())
	case "day":
		return int64(t.Day())
	case "hour":
		return int64(t.Hour())
	case "minute":
		return int64(t.Minute())
	case "second":
		return int64(t.Second())
	case "weekday":
		return int64(t.Weekday())
	}
	return t.Unix()
}

func (s *DateTime) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	extra := make([]columnar.Field, len(s.parts))
	for i, p := range s.parts {
		extra[i] = columnar.Field{Name: s.column + "_" + p, Type: columnar.TypeInt64}
	}
	out := extend(in, extra...)
	src := in.ColIndex(s.column)
	base := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		t, ok := instant(in, r, src)
		if !ok {
			continue
		}
		for i, p := range s.parts {
			out.SetInt64(r, base+i, component(t, p))
		}
	}
	return out, nil
}

// DateTruncConfig configures DateTrunc.
type DateTruncConfig struct {
	Column string `json:"column"`
	Trunc  string `json:"trunc"`
	Result string `json:"result"`
}

// DateTrunc truncates dates and timestamps to a granularity. By default the
// column is rewritten in place; string cells that parse are rewritten as
// truncated timestamps and unparseable strings are left untouched.
type DateTrunc struct {
	stateless
	column, result string
	level          string
}

var truncLevels = []string{"year", "month", "day", "hour", "minute", "second"}

// NewDateTrunc creates a date-trunc step.
func NewDateTrunc(cfg DateTruncConfig) (*DateTrunc, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "date-trunc: column is required")
	}
	level := strings.ToLower(strings.TrimSpace(cfg.Trunc))
	if !contains(truncLevels, level) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "date-trunc: unknown granularity %q", cfg.Trunc)
	}
	if cfg.Result == "" {
		cfg.Result = cfg.Column
	}
	return &DateTrunc{column: cfg.Column, result: cfg.Result, level: level}, nil
}

func truncate(t time.Time, level string) time.Time {
	y, m, d := t.Date()
	switch level {
	case "year":
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	case "month":
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case "day":
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case "hour":
		return t.Truncate(time.Hour)
	case "minute":
		return t.Truncate(time.Minute)
	}
	return t.Truncate(time.Second)
}

func (s *DateTrunc) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	src := in.ColIndex(s.column)
	var out *columnar.Batch
	dst := src
	if s.result == s.column {
		out = in.Clone()
	} else {
		t := columnar.TypeString
		if src >= 0 {
			t = in.Type(src)
		}
		out = extend(in, columnar.Field{Name: s.result, Type: t})
		dst = in.NumCols()
	}
	if src < 0 {
		return out, nil
	}
	for r := 0; r < in.Rows(); r++ {
		if in.IsNull(r, src) {
			continue
		}
		switch in.Type(src) {
		case columnar.TypeDate:
			t := truncate(columnar.DateToTime(in.Date(r, src)), s.level)
			out.SetDate(r, dst, int32(columnar.FloorDiv(t.Unix(), 86_400)))
		case columnar.TypeTimestamp:
			t := truncate(columnar.TimestampToTime(in.Timestamp(r, src)), s.level)
			out.SetTimestamp(r, dst, columnar.TimeToTimestamp(t))
		case columnar.TypeString:
			v := in.Str(r, src)
			if us, ok := columnar.ParseTimestamp(strings.TrimSpace(v)); ok {
				t := truncate(columnar.TimestampToTime(us), s.level)
				v = columnar.FormatTimestamp(columnar.TimeToTimestamp(t))
			}
			out.SetStr(r, dst, v)
		}
	}
	return out, nil
}
