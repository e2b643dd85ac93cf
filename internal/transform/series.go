package transform

import (
	"math"
	"strconv"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// The steps in this file append a float64 (or int64) column computed from a
// numeric source column. Null and non-numeric source cells yield a null
// result and leave the running state untouched.

// appendResult runs fn for every row of in and stores its result in a new
// trailing column. fn sees ok=false for null or non-numeric sources.
func appendResult(in *columnar.Batch, column, result string, t columnar.Type, fn func(v float64, ok bool) columnar.Value) *columnar.Batch {
	out := extend(in, columnar.Field{Name: result, Type: t})
	src := in.ColIndex(column)
	dst := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		v, ok := numeric(in, r, src)
		out.SetValue(r, dst, fn(v, ok))
	}
	return out
}

// RunningConfig configures Running.
type RunningConfig struct {
	Column string `json:"column"`
	Func   string `json:"func"`
	Result string `json:"result"`
}

type runningFunc uint8

const (
	runSum runningFunc = iota
	runAvg
	runMin
	runMax
	runCount
	runDelta
	runLag
	runRatio
)

var runningFuncs = map[string]runningFunc{
	"running-sum":   runSum,
	"cumsum":        runSum,
	"running-avg":   runAvg,
	"cumavg":        runAvg,
	"running-min":   runMin,
	"running-max":   runMax,
	"running-count": runCount,
	"delta":         runDelta,
	"lag":           runLag,
	"ratio":         runRatio,
}

// Running computes cumulative aggregates and row-to-row changes ("step" in
// plans).
type Running struct {
	stateless
	column, result string
	fn             runningFunc

	sum, min, max float64
	count         int
	prev          float64
	hasPrev       bool
}

// NewRunning creates a running step.
func NewRunning(cfg RunningConfig) (*Running, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "step: column is required")
	}
	fn, ok := runningFuncs[cfg.Func]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "step: unknown func %q", cfg.Func)
	}
	return &Running{column: cfg.Column, result: resultName(cfg.Result, cfg.Column, cfg.Func), fn: fn}, nil
}

func (s *Running) next(v float64) columnar.Value {
	switch s.fn {
	case runSum:
		s.sum += v
		return columnar.Float(s.sum)
	case runAvg:
		s.sum += v
		s.count++
		return columnar.Float(s.sum / float64(s.count))
	case runMin:
		if s.count == 0 || v < s.min {
			s.min = v
		}
		s.count++
		return columnar.Float(s.min)
	case runMax:
		if s.count == 0 || v > s.max {
			s.max = v
		}
		s.count++
		return columnar.Float(s.max)
	case runCount:
		s.count++
		return columnar.Float(float64(s.count))
	}

	prev, had := s.prev, s.hasPrev
	s.prev, s.hasPrev = v, true
	if !had {
		return columnar.Null()
	}
	switch s.fn {
	case runDelta:
		return columnar.Float(v - prev)
	case runLag:
		return columnar.Float(prev)
	case runRatio:
		if prev == 0 {
			return columnar.Null()
		}
		return columnar.Float(v / prev)
	}
	return columnar.Null()
}

func (s *Running) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	return appendResult(in, s.column, s.result, columnar.TypeFloat64, func(v float64, ok bool) columnar.Value {
		if !ok {
			return columnar.Null()
		}
		return s.next(v)
	}), nil
}

// EWMAConfig configures EWMA.
type EWMAConfig struct {
	Column string  `json:"column"`
	Alpha  float64 `json:"alpha"`
	Result string  `json:"result"`
}

// EWMA computes an exponentially weighted moving average seeded by the first
// value.
type EWMA struct {
	stateless
	column, result string
	alpha          float64
	value          float64
	seeded         bool
}

// NewEWMA creates an ewma step.
func NewEWMA(cfg EWMAConfig) (*EWMA, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "ewma: column is required")
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return nil, errors.New(errors.ErrorTypeValidation, "ewma: alpha must be in (0, 1]")
	}
	return &EWMA{column: cfg.Column, alpha: cfg.Alpha, result: resultName(cfg.Result, cfg.Column, "ewma")}, nil
}

func (s *EWMA) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	return appendResult(in, s.column, s.result, columnar.TypeFloat64, func(v float64, ok bool) columnar.Value {
		if !ok {
			return columnar.Null()
		}
		if !s.seeded {
			s.value, s.seeded = v, true
		} else {
			s.value = s.alpha*v + (1-s.alpha)*s.value
		}
		return columnar.Float(s.value)
	}), nil
}

// DiffConfig configures Diff.
type DiffConfig struct {
	Column string `json:"column"`
	Order  int    `json:"order"`
	Result string `json:"result"`
}

// Diff computes the k-th order difference sum((-1)^i * C(k,i) * x[t-i]).
// The first k values yield null.
type Diff struct {
	stateless
	column, result string
	order          int
	coef           []float64
	prev           []float64 // most recent first
}

// MaxDiffOrder bounds the order accepted by diff.
const MaxDiffOrder = 8

// NewDiff creates a diff step.
func NewDiff(cfg DiffConfig) (*Diff, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "diff: column is required")
	}
	if cfg.Order == 0 {
		cfg.Order = 1
	}
	if cfg.Order < 1 || cfg.Order > MaxDiffOrder {
		return nil, errors.Newf(errors.ErrorTypeValidation, "diff: order must be between 1 and %d", MaxDiffOrder)
	}
	coef := make([]float64, cfg.Order+1)
	binom, sign := 1, 1
	coef[0] = 1
	for k := 1; k <= cfg.Order; k++ {
		binom = binom * (cfg.Order - k + 1) / k
		sign = -sign
		coef[k] = float64(sign * binom)
	}
	return &Diff{
		column: cfg.Column,
		result: resultName(cfg.Result, cfg.Column, "diff"),
		order:  cfg.Order,
		coef:   coef,
	}, nil
}

func (s *Diff) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	return appendResult(in, s.column, s.result, columnar.TypeFloat64, func(v float64, ok bool) columnar.Value {
		if !ok {
			return columnar.Null()
		}
		if len(s.prev) < s.order {
			s.prev = append([]float64{v}, s.prev...)
			return columnar.Null()
		}
		d := v
		for k := 1; k <= s.order; k++ {
			d += s.coef[k] * s.prev[k-1]
		}
		copy(s.prev[1:], s.prev[:s.order-1])
		s.prev[0] = v
		return columnar.Float(d)
	}), nil
}

// AnomalyConfig configures Anomaly.
type AnomalyConfig struct {
	Column    string   `json:"column"`
	Threshold *float64 `json:"threshold"`
	Result    string   `json:"result"`
}

// Anomaly flags values whose z-score against the running mean and standard
// deviation, both including the value itself, exceeds the threshold.
type Anomaly struct {
	stateless
	column, result string
	threshold      float64

	count int
	mean  float64
	m2    float64
}

// NewAnomaly creates an anomaly step.
func NewAnomaly(cfg AnomalyConfig) (*Anomaly, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "anomaly: column is required")
	}
	threshold := 3.0
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if threshold < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "anomaly: threshold must not be negative")
	}
	return &Anomaly{column: cfg.Column, threshold: threshold, result: resultName(cfg.Result, cfg.Column, "anomaly")}, nil
}

func (s *Anomaly) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	return appendResult(in, s.column, s.result, columnar.TypeInt64, func(v float64, ok bool) columnar.Value {
		if !ok {
			return columnar.Int(0)
		}
		s.count++
		delta := v - s.mean
		s.mean += delta / float64(s.count)
		s.m2 += delta * (v - s.mean)
		if s.count < 2 {
			return columnar.Int(0)
		}
		sd := math.Sqrt(s.m2 / float64(s.count-1))
		if sd > 0 && math.Abs(v-s.mean)/sd > s.threshold {
			return columnar.Int(1)
		}
		return columnar.Int(0)
	}), nil
}

// WindowConfig configures Window.
type WindowConfig struct {
	Column string `json:"column"`
	Size   int    `json:"size"`
	Func   string `json:"func"`
	Result string `json:"result"`
}

// Window aggregates the last size non-null values: avg, sum, min, max or
// count.
type Window struct {
	stateless
	column, result, fn string
	ring               []float64
	head, count        int
}

// NewWindow creates a window step.
func NewWindow(cfg WindowConfig) (*Window, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "window: column is required")
	}
	if cfg.Size <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "window: size must be positive")
	}
	switch cfg.Func {
	case "avg", "sum", "min", "max", "count":
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "window: unknown func %q", cfg.Func)
	}
	return &Window{
		column: cfg.Column,
		fn:     cfg.Func,
		result: resultName(cfg.Result, cfg.Column, cfg.Func+strconv.Itoa(cfg.Size)),
		ring:   make([]float64, cfg.Size),
	}, nil
}

func (s *Window) push(v float64) float64 {
	s.ring[s.head] = v
	s.head = (s.head + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	vals := s.ring[:s.count]
	switch s.fn {
	case "count":
		return float64(s.count)
	case "min", "max":
		best := vals[0]
		for _, x := range vals[1:] {
			if (s.fn == "min" && x < best) || (s.fn == "max" && x > best) {
				best = x
			}
		}
		return best
	}
	sum := 0.0
	for _, x := range vals {
		sum += x
	}
	if s.fn == "avg" {
		return sum / float64(s.count)
	}
	return sum
}

func (s *Window) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	return appendResult(in, s.column, s.result, columnar.TypeFloat64, func(v float64, ok bool) columnar.Value {
		if !ok {
			return columnar.Null()
		}
		return columnar.Float(s.push(v))
	}), nil
}

// LeadConfig configures Lead.
type LeadConfig struct {
	Column string `json:"column"`
	Offset int    `json:"offset"`
	Result string `json:"result"`
}

// Lead attaches the value offset rows ahead. It holds the last offset rows
// back until later rows arrive; Flush emits them with a null lead.
type Lead struct {
	column, result string
	offset         int
	store          rowStore
	pending        [][]columnar.Value
}

// NewLead creates a lead step.
func NewLead(cfg LeadConfig) (*Lead, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "lead: column is required")
	}
	if cfg.Offset <= 0 {
		cfg.Offset = 1
	}
	return &Lead{column: cfg.Column, offset: cfg.Offset, result: resultName(cfg.Result, cfg.Column, "lead")}, nil
}

func (s *Lead) output(capacity int) *columnar.Batch {
	fields := append(append([]columnar.Field(nil), s.store.fields...), columnar.Field{Name: s.result, Type: columnar.TypeFloat64})
	return columnar.NewBatchFromFields(fields, capacity)
}

func (s *Lead) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	s.store.adopt(in)
	src := in.ColIndex(s.column)
	var out *columnar.Batch
	for r := 0; r < in.Rows(); r++ {
		s.pending = append(s.pending, s.store.snapshot(in, r))
		if len(s.pending) <= s.offset {
			continue
		}
		if out == nil {
			out = s.output(in.Rows())
		}
		row := s.pending[0]
		s.pending = s.pending[1:]
		out.AppendValues(row)
		if v, ok := numeric(in, r, src); ok {
			out.SetFloat64(out.Rows()-1, len(s.store.fields), v)
		}
	}
	return out, nil
}

func (s *Lead) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	if len(s.pending) == 0 {
		return nil, nil
	}
	out := s.output(len(s.pending))
	for _, row := range s.pending {
		out.AppendValues(row)
	}
	s.pending = nil
	return out, nil
}

func (s *Lead) Close() { s.pending = nil }

// InterpolateConfig configures Interpolate.
type InterpolateConfig struct {
	Column string `json:"column"`
	Method string `json:"method"`
}

// Interpolate fills nulls in a numeric column. The column is widened to
// float64. Forward fill uses the last known value; backward and linear hold
// null rows until the next known value arrives. At end of stream held rows
// take the last known value when there is one.
type Interpolate struct {
	column  string
	method  string
	last    float64
	hasLast bool
	fields  []columnar.Field
	store   rowStore
	pending [][]columnar.Value
}

// NewInterpolate creates an interpolate step.
func NewInterpolate(cfg InterpolateConfig) (*Interpolate, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "interpolate: column is required")
	}
	switch cfg.Method {
	case "":
		cfg.Method = "linear"
	case "forward", "backward", "linear":
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "interpolate: unknown method %q", cfg.Method)
	}
	return &Interpolate{column: cfg.Column, method: cfg.Method}, nil
}

func (s *Interpolate) schema(in *columnar.Batch) []columnar.Field {
	if s.fields == nil {
		s.fields = in.Fields()
		for i := range s.fields {
			if s.fields[i].Name == s.column && s.fields[i].Type.IsNumeric() {
				s.fields[i].Type = columnar.TypeFloat64
			}
		}
	}
	return s.fields
}

func (s *Interpolate) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	c := in.ColIndex(s.column)
	if c < 0 || !in.Type(c).IsNumeric() {
		return in.Clone(), nil
	}
	out := columnar.NewBatchFromFields(s.schema(in), in.Rows())
	tc := out.ColIndex(s.column)
	for r := 0; r < in.Rows(); r++ {
		v, ok := numeric(in, r, c)
		if !ok {
			switch {
			case s.method == "forward":
				out.AppendRow(in, r)
				if s.hasLast {
					out.SetFloat64(out.Rows()-1, tc, s.last)
				}
			default:
				s.pending = append(s.pending, s.store.snapshot(in, r))
			}
			continue
		}
		for i, row := range s.pending {
			out.AppendValues(row)
			fill := v
			if s.method == "linear" && s.hasLast {
				t := float64(i+1) / float64(len(s.pending)+1)
				fill = s.last + t*(v-s.last)
			}
			out.SetFloat64(out.Rows()-1, tc, fill)
		}
		s.pending = s.pending[:0]
		out.AppendRow(in, r)
		s.last, s.hasLast = v, true
	}
	if out.Rows() == 0 {
		out.Free()
		return nil, nil
	}
	return out, nil
}

func (s *Interpolate) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	if len(s.pending) == 0 {
		return nil, nil
	}
	out := columnar.NewBatchFromFields(s.fields, len(s.pending))
	tc := out.ColIndex(s.column)
	for _, row := range s.pending {
		out.AppendValues(row)
		if s.hasLast {
			out.SetFloat64(out.Rows()-1, tc, s.last)
		}
	}
	s.pending = nil
	return out, nil
}

func (s *Interpolate) Close() { s.pending = nil }
