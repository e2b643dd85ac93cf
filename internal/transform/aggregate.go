package transform

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// welford accumulates count, mean, variance and range in one pass.
type welford struct {
	n        int64
	mean, m2 float64
	min, max float64
}

func (w *welford) add(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
	if w.n == 1 || x < w.min {
		w.min = x
	}
	if w.n == 1 || x > w.max {
		w.max = x
	}
}

// sampleVariance is the n-1 variance; ok is false below two observations.
func (w *welford) sampleVariance() (float64, bool) {
	if w.n < 2 {
		return 0, false
	}
	return w.m2 / float64(w.n-1), true
}

// NormalizeConfig configures Normalize.
type NormalizeConfig struct {
	Columns []string `json:"columns"`
	Method  string   `json:"method"`
}

// Normalize buffers the stream and rescales numeric columns at flush,
// either to [0, 1] (minmax) or to standard scores (zscore). Normalized
// columns become float64. A zero range or zero deviation maps to 0.
type Normalize struct {
	columns []string
	zscore  bool
	stats   []welford
	cols    []int
	store   rowStore
}

// NewNormalize creates a normalize step.
func NewNormalize(cfg NormalizeConfig) (*Normalize, error) {
	if len(cfg.Columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "normalize: columns is required")
	}
	s := &Normalize{columns: cfg.Columns, stats: make([]welford, len(cfg.Columns))}
	switch cfg.Method {
	case "", "minmax":
	case "zscore":
		s.zscore = true
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "normalize: unknown method %q", cfg.Method)
	}
	return s, nil
}

func (s *Normalize) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	if s.cols == nil {
		s.store.adopt(in)
		s.cols = make([]int, len(s.columns))
		for i, name := range s.columns {
			s.cols[i] = -1
			for c, f := range s.store.fields {
				if f.Name == name {
					s.cols[i] = c
					break
				}
			}
		}
	}
	for r := 0; r < in.Rows(); r++ {
		row := s.store.snapshot(in, r)
		s.store.rows = append(s.store.rows, row)
		for i, c := range s.cols {
			if c < 0 {
				continue
			}
			if x, ok := row[c].AsFloat(); ok {
				s.stats[i].add(x)
			}
		}
	}
	return nil, nil
}

func (s *Normalize) scale(i int, x float64) float64 {
	w := &s.stats[i]
	if s.zscore {
		sd := 1.0
		if v, ok := w.sampleVariance(); ok {
			sd = math.Sqrt(v)
		}
		if sd == 0 {
			return 0
		}
		return (x - w.mean) / sd
	}
	if span := w.max - w.min; span > 0 {
		return (x - w.min) / span
	}
	return 0
}

func (s *Normalize) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	if len(s.store.rows) == 0 {
		return nil, nil
	}
	fields := append([]columnar.Field(nil), s.store.fields...)
	for _, c := range s.cols {
		if c >= 0 {
			fields[c].Type = columnar.TypeFloat64
		}
	}
	out := columnar.NewBatchFromFields(fields, len(s.store.rows))
	for _, row := range s.store.rows {
		for i, c := range s.cols {
			if c < 0 {
				continue
			}
			if x, ok := row[c].AsFloat(); ok {
				row[c] = columnar.Float(s.scale(i, x))
			} else {
				row[c] = columnar.Null()
			}
		}
		out.AppendValues(row)
	}
	s.store.reset()
	return out, nil
}

func (s *Normalize) Close() { s.store.reset() }

// ACFConfig configures ACF.
type ACFConfig struct {
	Column string `json:"column"`
	Lags   int    `json:"lags"`
}

// ACF buffers a numeric column and emits its autocorrelation for lags
// 0..lags as a (lag, acf) table.
type ACF struct {
	column string
	lags   int
	values []float64
}

// NewACF creates an acf step. Lags default to 20 and are at least 1.
func NewACF(cfg ACFConfig) (*ACF, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "acf: column is required")
	}
	if cfg.Lags == 0 {
		cfg.Lags = 20
	}
	if cfg.Lags < 1 {
		cfg.Lags = 1
	}
	return &ACF{column: cfg.Column, lags: cfg.Lags}, nil
}

func (s *ACF) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	c := in.ColIndex(s.column)
	for r := 0; r < in.Rows(); r++ {
		if x, ok := numeric(in, r, c); ok {
			s.values = append(s.values, x)
		}
	}
	return nil, nil
}

func (s *ACF) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	n := len(s.values)
	if n < 2 {
		return nil, nil
	}
	var mean float64
	for _, x := range s.values {
		mean += x
	}
	mean /= float64(n)
	var variance float64
	for _, x := range s.values {
		variance += (x - mean) * (x - mean)
	}
	if variance == 0 {
		return nil, nil
	}
	maxLag := s.lags
	if maxLag >= n {
		maxLag = n - 1
	}
	out := columnar.NewBatchFromFields([]columnar.Field{
		{Name: "lag", Type: columnar.TypeInt64},
		{Name: "acf", Type: columnar.TypeFloat64},
	}, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		var cov float64
		for i := 0; i+k < n; i++ {
			cov += (s.values[i] - mean) * (s.values[i+k] - mean)
		}
		out.SetInt64(k, 0, int64(k))
		out.SetFloat64(k, 1, cov/variance)
	}
	out.SetRows(maxLag + 1)
	s.values = nil
	return out, nil
}

func (s *ACF) Close() { s.values = nil }

var (
	statMeasures = []string{
		"count", "sum", "avg", "min", "max", "var", "stddev",
		"median", "p25", "p75", "skewness", "kurtosis", "distinct",
		"hist", "sample",
	}
	defaultStats = []string{"count", "sum", "avg", "min", "max", "var", "stddev", "median"}
)

// StatsConfig configures Stats.
type StatsConfig struct {
	Stats []string `json:"stats"`
}

const (
	histBins   = 32
	reservoirK = 10
)

// valueReservoir keeps up to reservoirK values by Algorithm R. The xorshift
// state has a fixed seed so a stream always yields the same sample.
type valueReservoir struct {
	values []float64
	n      uint64
	rng    uint64
}

func newValueReservoir() *valueReservoir {
	return &valueReservoir{values: make([]float64, 0, reservoirK), rng: 0x12345678deadbeef}
}

func (r *valueReservoir) add(x float64) {
	r.n++
	if r.n <= reservoirK {
		r.values = append(r.values, x)
		return
	}
	r.rng ^= r.rng << 13
	r.rng ^= r.rng >> 7
	r.rng ^= r.rng << 17
	if j := r.rng % r.n; j < reservoirK {
		r.values[j] = x
	}
}

func formatG6(x float64) string { return strconv.FormatFloat(x, 'g', 6, 64) }

// histogram renders "lo:hi:c1,...,c32" over equal-width bins spanning
// [lo, hi]; the last bin is closed.
func histogram(values []float64, lo, hi float64) string {
	counts := make([]int, histBins)
	width := (hi - lo) / histBins
	for _, x := range values {
		b := 0
		if width > 0 {
			b = int((x - lo) / width)
			if b >= histBins {
				b = histBins - 1
			}
		}
		counts[b]++
	}
	var sb strings.Builder
	sb.WriteString(formatG6(lo))
	sb.WriteByte(':')
	sb.WriteString(formatG6(hi))
	sb.WriteByte(':')
	for i, n := range counts {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

type columnStats struct {
	name     string
	count    int64
	sum      float64
	w        welford
	values   []float64
	distinct *keyIndex
	sample   *valueReservoir
}

// Stats summarises every column of the stream at flush, one output row per
// column. Numeric measures are null for columns without numeric values.
// Quantiles are exact over the buffered values.
type Stats struct {
	measures []string
	cols     []*columnStats
	buf      []byte
}

// NewStats creates a stats step.
func NewStats(cfg StatsConfig) (*Stats, error) {
	if len(cfg.Stats) == 0 {
		cfg.Stats = defaultStats
	}
	for _, m := range cfg.Stats {
		if !contains(statMeasures, m) {
			return nil, errors.Newf(errors.ErrorTypeValidation, "stats: unknown measure %q", m)
		}
	}
	return &Stats{measures: cfg.Stats}, nil
}

func (s *Stats) wants(m string) bool { return contains(s.measures, m) }

func (s *Stats) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	if s.cols == nil {
		for c := 0; c < in.NumCols(); c++ {
			cs := &columnStats{name: in.Name(c)}
			if s.wants("distinct") {
				cs.distinct = newKeyIndex()
			}
			if s.wants("sample") {
				cs.sample = newValueReservoir()
			}
			s.cols = append(s.cols, cs)
		}
	}
	for i, cs := range s.cols {
		c := i
		if c >= in.NumCols() || in.Name(c) != cs.name {
			c = in.ColIndex(cs.name)
		}
		if c < 0 {
			continue
		}
		for r := 0; r < in.Rows(); r++ {
			if in.IsNull(r, c) {
				continue
			}
			cs.count++
			if cs.distinct != nil {
				s.buf = append(s.buf[:0], in.Value(r, c).String()...)
				cs.distinct.id(s.buf)
			}
			if x, ok := numeric(in, r, c); ok {
				cs.sum += x
				cs.w.add(x)
				cs.values = append(cs.values, x)
				if cs.sample != nil {
					cs.sample.add(x)
				}
			}
		}
	}
	return nil, nil
}

// quantile interpolates linearly between closest ranks of sorted values.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// moments returns population skewness and excess kurtosis.
func moments(values []float64, mean float64) (skew, kurt float64, ok bool) {
	var m2, m3, m4 float64
	for _, x := range values {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(values))
	m2, m3, m4 = m2/n, m3/n, m4/n
	if m2 == 0 {
		return 0, 0, false
	}
	return m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3, true
}

func (cs *columnStats) measure(m string) columnar.Value {
	switch m {
	case "count":
		return columnar.Int(cs.count)
	case "distinct":
		if cs.distinct == nil {
			return columnar.Null()
		}
		return columnar.Int(int64(cs.distinct.len()))
	}
	if cs.w.n == 0 {
		return columnar.Null()
	}
	switch m {
	case "sum":
		return columnar.Float(cs.sum)
	case "avg":
		return columnar.Float(cs.sum / float64(cs.w.n))
	case "min":
		return columnar.Float(cs.w.min)
	case "max":
		return columnar.Float(cs.w.max)
	case "var", "stddev":
		v, ok := cs.w.sampleVariance()
		if !ok {
			return columnar.Null()
		}
		if m == "stddev" {
			v = math.Sqrt(v)
		}
		return columnar.Float(v)
	case "median", "p25", "p75":
		if !sort.Float64sAreSorted(cs.values) {
			sort.Float64s(cs.values)
		}
		q := map[string]float64{"median": 0.5, "p25": 0.25, "p75": 0.75}[m]
		return columnar.Float(quantile(cs.values, q))
	case "hist":
		if cs.w.n < 2 {
			return columnar.Null()
		}
		return columnar.Str(histogram(cs.values, cs.w.min, cs.w.max))
	case "sample":
		if cs.sample == nil {
			return columnar.Null()
		}
		parts := make([]string, len(cs.sample.values))
		for i, x := range cs.sample.values {
			parts[i] = formatG6(x)
		}
		return columnar.Str(strings.Join(parts, ","))
	case "skewness", "kurtosis":
		skew, kurt, ok := moments(cs.values, cs.w.mean)
		if !ok {
			return columnar.Null()
		}
		if m == "skewness" {
			return columnar.Float(skew)
		}
		return columnar.Float(kurt)
	}
	return columnar.Null()
}

func (s *Stats) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	if len(s.cols) == 0 {
		return nil, nil
	}
	fields := []columnar.Field{{Name: "column", Type: columnar.TypeString}}
	for _, m := range s.measures {
		t := columnar.TypeFloat64
		switch m {
		case "count", "distinct":
			t = columnar.TypeInt64
		case "hist", "sample":
			t = columnar.TypeString
		}
		fields = append(fields, columnar.Field{Name: m, Type: t})
	}
	out := columnar.NewBatchFromFields(fields, len(s.cols))
	row := make([]columnar.Value, len(fields))
	for _, cs := range s.cols {
		row[0] = columnar.Str(cs.name)
		for i, m := range s.measures {
			row[i+1] = cs.measure(m)
		}
		out.AppendValues(row)
	}
	s.cols = nil
	return out, nil
}

func (s *Stats) Close() { s.cols = nil }

// FrequencyConfig configures Frequency.
type FrequencyConfig struct {
	Columns []string `json:"columns"`
}

// Frequency counts distinct values, or combinations of values joined with
// ",", and emits (value, count) rows by descending count. Ties keep first
// appearance order.
type Frequency struct {
	columns []string
	index   *keyIndex
	counts  []int64
	buf     []byte
}

// NewFrequency creates a frequency step. No columns means every column.
func NewFrequency(cfg FrequencyConfig) (*Frequency, error) {
	return &Frequency{columns: cfg.Columns, index: newKeyIndex()}, nil
}

func (s *Frequency) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	cols := keyColumns(in, s.columns)
	for r := 0; r < in.Rows(); r++ {
		s.buf = s.buf[:0]
		for i, c := range cols {
			if i > 0 {
				s.buf = append(s.buf, ',')
			}
			s.buf = append(s.buf, in.Value(r, c).String()...)
		}
		id, added := s.index.id(s.buf)
		if added {
			s.counts = append(s.counts, 0)
		}
		s.counts[id]++
	}
	return nil, nil
}

func (s *Frequency) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	n := s.index.len()
	if n == 0 {
		return nil, nil
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return s.counts[order[a]] > s.counts[order[b]] })
	out := columnar.NewBatchFromFields([]columnar.Field{
		{Name: "value", Type: columnar.TypeString},
		{Name: "count", Type: columnar.TypeInt64},
	}, n)
	for i, id := range order {
		out.SetStr(i, 0, s.index.keys[id])
		out.SetInt64(i, 1, s.counts[id])
	}
	out.SetRows(n)
	s.index, s.counts = newKeyIndex(), nil
	return out, nil
}

func (s *Frequency) Close() { s.index, s.counts = newKeyIndex(), nil }

// Aggregation names one aggregate of a group-agg step.
type Aggregation struct {
	Column string `json:"column"`
	Func   string `json:"func"`
	Name   string `json:"name"`
}

// GroupAggConfig configures GroupAgg.
type GroupAggConfig struct {
	GroupBy []string      `json:"group_by"`
	Aggs    []Aggregation `json:"aggs"`
}

type groupState struct {
	key   []columnar.Value
	accum []welford
	sum   []float64
	count []int64
}

// GroupAgg groups rows by key columns and emits one row per group at flush,
// groups in first-seen order. Key columns keep their input types; count is
// int64 and every other aggregate float64. count counts rows, the others
// skip null and non-numeric cells and are null for a group with none.
type GroupAgg struct {
	groupBy []string
	aggs    []Aggregation
	index   *keyIndex
	groups  []*groupState
	keyType []columnar.Type
	buf     []byte
}

var aggFuncs = []string{"sum", "avg", "count", "min", "max"}

// NewGroupAgg creates a group-agg step.
func NewGroupAgg(cfg GroupAggConfig) (*GroupAgg, error) {
	if len(cfg.Aggs) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "group-agg: aggs is required")
	}
	aggs := make([]Aggregation, len(cfg.Aggs))
	for i, a := range cfg.Aggs {
		a.Func = strings.ToLower(a.Func)
		if !contains(aggFuncs, a.Func) {
			return nil, errors.Newf(errors.ErrorTypeValidation, "group-agg: unknown func %q", a.Func)
		}
		if a.Column == "" && a.Func != "count" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "group-agg: %s needs a column", a.Func)
		}
		if a.Name == "" {
			a.Name = a.Func
			if a.Column != "" {
				a.Name = a.Column + "_" + a.Func
			}
		}
		aggs[i] = a
	}
	return &GroupAgg{groupBy: cfg.GroupBy, aggs: aggs, index: newKeyIndex()}, nil
}

func (s *GroupAgg) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	keyCols := make([]int, len(s.groupBy))
	for i, name := range s.groupBy {
		keyCols[i] = in.ColIndex(name)
	}
	if s.keyType == nil {
		s.keyType = make([]columnar.Type, len(keyCols))
		for i, c := range keyCols {
			s.keyType[i] = in.Type(c)
		}
	}
	aggCols := make([]int, len(s.aggs))
	for i, a := range s.aggs {
		aggCols[i] = in.ColIndex(a.Column)
	}
	for r := 0; r < in.Rows(); r++ {
		s.buf = rowKey(s.buf[:0], in, r, keyCols)
		id, added := s.index.id(s.buf)
		if added {
			g := &groupState{
				key:   make([]columnar.Value, len(keyCols)),
				accum: make([]welford, len(s.aggs)),
				sum:   make([]float64, len(s.aggs)),
				count: make([]int64, len(s.aggs)),
			}
			for i, c := range keyCols {
				g.key[i] = detach(in.Value(r, c))
			}
			s.groups = append(s.groups, g)
		}
		g := s.groups[id]
		for i, a := range s.aggs {
			if a.Func == "count" {
				g.count[i]++
				continue
			}
			if x, ok := numeric(in, r, aggCols[i]); ok {
				g.sum[i] += x
				g.accum[i].add(x)
			}
		}
	}
	return nil, nil
}

func (g *groupState) result(i int, fn string) columnar.Value {
	if fn == "count" {
		return columnar.Int(g.count[i])
	}
	w := &g.accum[i]
	if w.n == 0 {
		if fn == "sum" {
			return columnar.Float(0)
		}
		return columnar.Null()
	}
	switch fn {
	case "sum":
		return columnar.Float(g.sum[i])
	case "avg":
		return columnar.Float(g.sum[i] / float64(w.n))
	case "min":
		return columnar.Float(w.min)
	}
	return columnar.Float(w.max)
}

func (s *GroupAgg) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	if len(s.groups) == 0 {
		return nil, nil
	}
	fields := make([]columnar.Field, 0, len(s.groupBy)+len(s.aggs))
	for i, name := range s.groupBy {
		t := s.keyType[i]
		if t == columnar.TypeNull {
			t = columnar.TypeString
		}
		fields = append(fields, columnar.Field{Name: name, Type: t})
	}
	for _, a := range s.aggs {
		t := columnar.TypeFloat64
		if a.Func == "count" {
			t = columnar.TypeInt64
		}
		fields = append(fields, columnar.Field{Name: a.Name, Type: t})
	}
	out := columnar.NewBatchFromFields(fields, len(s.groups))
	row := make([]columnar.Value, len(fields))
	for _, g := range s.groups {
		copy(row, g.key)
		for i, a := range s.aggs {
			row[len(s.groupBy)+i] = g.result(i, a.Func)
		}
		out.AppendValues(row)
	}
	s.groups, s.index = nil, newKeyIndex()
	return out, nil
}

func (s *GroupAgg) Close() { s.groups, s.index = nil, newKeyIndex() }
