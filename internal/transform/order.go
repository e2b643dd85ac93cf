package transform

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// compareCells orders two non-null values. Numbers compare numerically
// across int and float, temporals by instant, strings bytewise and bools
// false first. Values of unrelated types order by type.
func compareCells(a, b columnar.Value) int {
	if a.Type == columnar.TypeInt64 && b.Type == columnar.TypeInt64 {
		return cmp3(a.I < b.I, a.I > b.I)
	}
	if fa, ok := a.AsFloat(); ok {
		if fb, ok := b.AsFloat(); ok {
			return cmp3(fa < fb, fa > fb)
		}
	}
	if ma, ok := a.Micros(); ok {
		if mb, ok := b.Micros(); ok {
			return cmp3(ma < mb, ma > mb)
		}
	}
	if a.Type != b.Type {
		return cmp3(a.Type < b.Type, a.Type > b.Type)
	}
	switch a.Type {
	case columnar.TypeString:
		return strings.Compare(a.S, b.S)
	case columnar.TypeBool:
		return cmp3(!a.B && b.B, a.B && !b.B)
	}
	return 0
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// SortKey names one sort column.
type SortKey struct {
	Name string `json:"name"`
	Desc bool   `json:"desc"`
}

// SortConfig configures Sort.
type SortConfig struct {
	Columns []SortKey `json:"columns"`
}

// Sort buffers the whole stream and emits it ordered at flush. Nulls sort
// last in both directions; the sort is stable.
type Sort struct {
	keys  []SortKey
	store rowStore
}

// NewSort creates a sort step.
func NewSort(cfg SortConfig) (*Sort, error) {
	if len(cfg.Columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "sort: columns is required")
	}
	for _, k := range cfg.Columns {
		if k.Name == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "sort: column name is required")
		}
	}
	return &Sort{keys: cfg.Columns}, nil
}

func (s *Sort) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	for r := 0; r < in.Rows(); r++ {
		s.store.add(in, r)
	}
	return nil, nil
}

// rowComparator builds a closure over stored rows for the given keys.
// Keys naming unknown columns are ignored.
func rowComparator(fields []columnar.Field, keys []SortKey, rows [][]columnar.Value) func(i, j int) int {
	type key struct {
		col  int
		desc bool
	}
	var resolved []key
	for _, k := range keys {
		for c, f := range fields {
			if f.Name == k.Name {
				resolved = append(resolved, key{col: c, desc: k.Desc})
				break
			}
		}
	}
	return func(i, j int) int {
		for _, k := range resolved {
			a, b := rows[i][k.col], rows[j][k.col]
			switch {
			case a.IsNull() && b.IsNull():
				continue
			case a.IsNull():
				return 1
			case b.IsNull():
				return -1
			}
			c := compareCells(a, b)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}

func (s *Sort) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	if len(s.store.rows) == 0 {
		return nil, nil
	}
	order := make([]int, len(s.store.rows))
	for i := range order {
		order[i] = i
	}
	cmp := rowComparator(s.store.fields, s.keys, s.store.rows)
	sort.SliceStable(order, func(a, b int) bool { return cmp(order[a], order[b]) < 0 })
	out := s.store.batch(order)
	s.store.reset()
	return out, nil
}

func (s *Sort) Close() { s.store.reset() }

// SampleConfig configures Sample.
type SampleConfig struct {
	N    int    `json:"n"`
	Seed *int64 `json:"seed"`
}

// SampleReport is written to the samples channel when a sample flushes.
type SampleReport struct {
	Op   string `json:"op"`
	Seen int64  `json:"seen"`
	Kept int    `json:"kept"`
}

// Sample keeps a uniform random sample of n rows using reservoir sampling
// (Algorithm R) and emits it at flush.
type Sample struct {
	n     int
	rng   *rand.Rand
	seen  int64
	store rowStore
}

// NewSample creates a sample step. Without a seed the reservoir is seeded
// from the clock.
func NewSample(cfg SampleConfig) (*Sample, error) {
	if cfg.N <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "sample: n must be positive")
	}
	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	return &Sample{n: cfg.N, rng: rand.New(rand.NewSource(seed))}, nil
}

func (s *Sample) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	for r := 0; r < in.Rows(); r++ {
		if len(s.store.rows) < s.n {
			s.store.add(in, r)
		} else if j := s.rng.Int63n(s.seen + 1); j < int64(s.n) {
			s.store.rows[j] = s.store.snapshot(in, r)
		}
		s.seen++
	}
	return nil, nil
}

func (s *Sample) Flush(side *pipeline.SideChannels) (*columnar.Batch, error) {
	side.Sample(SampleReport{Op: "sample", Seen: s.seen, Kept: len(s.store.rows)})
	out := s.store.batch(nil)
	s.store.reset()
	return out, nil
}

func (s *Sample) Close() { s.store.reset() }

// TailConfig configures Tail.
type TailConfig struct {
	N int `json:"n"`
}

// Tail keeps the last n rows in a ring and emits them in arrival order.
type Tail struct {
	n     int
	next  int
	full  bool
	store rowStore
}

// NewTail creates a tail step.
func NewTail(cfg TailConfig) (*Tail, error) {
	if cfg.N <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "tail: n must be positive")
	}
	return &Tail{n: cfg.N}, nil
}

func (s *Tail) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	for r := 0; r < in.Rows(); r++ {
		if !s.full {
			s.store.add(in, r)
			s.full = len(s.store.rows) == s.n
			continue
		}
		s.store.rows[s.next] = s.store.snapshot(in, r)
		s.next = (s.next + 1) % s.n
	}
	return nil, nil
}

func (s *Tail) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	var order []int
	if s.full {
		order = make([]int, s.n)
		for i := range order {
			order[i] = (s.next + i) % s.n
		}
	}
	out := s.store.batch(order)
	s.store.reset()
	return out, nil
}

func (s *Tail) Close() { s.store.reset() }

// TopConfig configures Top.
type TopConfig struct {
	N      int    `json:"n"`
	Column string `json:"column"`
	Desc   *bool  `json:"desc"`
}

// Top keeps the n best rows by one column. Descending (the default) keeps
// the highest values. Nulls rank below every value.
type Top struct {
	n      int
	column string
	desc   bool
	col    int
	store  rowStore
}

// NewTop creates a top step.
func NewTop(cfg TopConfig) (*Top, error) {
	if cfg.N <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "top: n must be positive")
	}
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "top: column is required")
	}
	desc := true
	if cfg.Desc != nil {
		desc = *cfg.Desc
	}
	return &Top{n: cfg.N, column: cfg.Column, desc: desc, col: -1}, nil
}

// rank orders two key values by preference: negative means a is better.
func (s *Top) rank(a, b columnar.Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return 1
	case b.IsNull():
		return -1
	}
	c := compareCells(a, b)
	if s.desc {
		return -c
	}
	return c
}

func (s *Top) key(row []columnar.Value) columnar.Value {
	if s.col < 0 {
		return columnar.Null()
	}
	return row[s.col]
}

func (s *Top) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	if s.store.fields == nil {
		s.store.adopt(in)
		for c, f := range s.store.fields {
			if f.Name == s.column {
				s.col = c
				break
			}
		}
	}
	src := in.ColIndex(s.column)
	for r := 0; r < in.Rows(); r++ {
		if len(s.store.rows) < s.n {
			s.store.add(in, r)
			continue
		}
		worst := 0
		for i := 1; i < len(s.store.rows); i++ {
			if s.rank(s.key(s.store.rows[i]), s.key(s.store.rows[worst])) > 0 {
				worst = i
			}
		}
		if s.rank(in.Value(r, src), s.key(s.store.rows[worst])) < 0 {
			s.store.rows[worst] = s.store.snapshot(in, r)
		}
	}
	return nil, nil
}

func (s *Top) Flush(*pipeline.SideChannels) (*columnar.Batch, error) {
	rows := s.store.rows
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.rank(s.key(rows[order[a]]), s.key(rows[order[b]])) < 0
	})
	out := s.store.batch(order)
	s.store.reset()
	return out, nil
}

func (s *Top) Close() { s.store.reset() }
