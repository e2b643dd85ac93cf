package transform

import (
	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	stringpool "github.com/ajitpratap0/strata/pkg/strings"
)

const (
	keySep    = '\x1f'
	nullToken = '\x00'
)

// LabelEncodeConfig configures LabelEncode.
type LabelEncodeConfig struct {
	Column string `json:"column"`
	Result string `json:"result"`
}

// LabelEncode maps each distinct stringified value to a dense int64 code in
// order of first appearance.
type LabelEncode struct {
	stateless
	column, result string
	codes          map[string]int64
}

// NewLabelEncode creates a label-encode step.
func NewLabelEncode(cfg LabelEncodeConfig) (*LabelEncode, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "label-encode: column is required")
	}
	return &LabelEncode{
		column: cfg.Column,
		result: resultName(cfg.Result, cfg.Column, "encoded"),
		codes:  make(map[string]int64),
	}, nil
}

func (s *LabelEncode) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := extend(in, columnar.Field{Name: s.result, Type: columnar.TypeInt64})
	src := in.ColIndex(s.column)
	dst := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		if in.IsNull(r, src) {
			continue
		}
		key := in.Value(r, src).String()
		code, ok := s.codes[key]
		if !ok {
			code = int64(len(s.codes))
			s.codes[stringpool.Clone(key)] = code
		}
		out.SetInt64(r, dst, code)
	}
	return out, nil
}

// OneHotConfig configures OneHot.
type OneHotConfig struct {
	Column string `json:"column"`
	Drop   bool   `json:"drop"`
}

// OneHot appends one int64 indicator column per category seen so far,
// named <column>_<value>. Categories are discovered as they appear, so the
// schema grows mid-stream; earlier batches never carry later columns.
type OneHot struct {
	stateless
	column string
	drop   bool
	cats   []string
	index  map[string]int
}

// NewOneHot creates a onehot step.
func NewOneHot(cfg OneHotConfig) (*OneHot, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "onehot: column is required")
	}
	return &OneHot{column: cfg.Column, drop: cfg.Drop, index: make(map[string]int)}, nil
}

func (s *OneHot) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	src := in.ColIndex(s.column)
	if src >= 0 {
		for r := 0; r < in.Rows(); r++ {
			if in.IsNull(r, src) {
				continue
			}
			v := in.Value(r, src).String()
			if _, ok := s.index[v]; !ok {
				v = stringpool.Clone(v)
				s.index[v] = len(s.cats)
				s.cats = append(s.cats, v)
			}
		}
	}

	var fields []columnar.Field
	var keep []int
	for c := 0; c < in.NumCols(); c++ {
		if s.drop && c == src {
			continue
		}
		fields = append(fields, columnar.Field{Name: in.Name(c), Type: in.Type(c)})
		keep = append(keep, c)
	}
	base := len(fields)
	for _, cat := range s.cats {
		fields = append(fields, columnar.Field{Name: s.column + "_" + cat, Type: columnar.TypeInt64})
	}

	out := columnar.NewBatchFromFields(fields, in.Rows())
	for i, c := range keep {
		columnar.CopyColumn(out, i, in, c)
	}
	for r := 0; r < in.Rows(); r++ {
		hit := -1
		if src >= 0 && !in.IsNull(r, src) {
			hit = s.index[in.Value(r, src).String()]
		}
		for i := range s.cats {
			var v int64
			if i == hit {
				v = 1
			}
			out.SetInt64(r, base+i, v)
		}
	}
	out.SetRows(in.Rows())
	return out, nil
}

// SplitDataConfig configures SplitData.
type SplitDataConfig struct {
	Ratio  *float64 `json:"ratio"`
	Seed   *int64   `json:"seed"`
	Result string   `json:"result"`
}

// SplitData labels rows "train" or "test" from a deterministic hash of the
// seed and the global row index, so the split does not depend on batching.
type SplitData struct {
	stateless
	ratio  float64
	seed   uint64
	result string
	index  uint64
}

// NewSplitData creates a split-data step.
func NewSplitData(cfg SplitDataConfig) (*SplitData, error) {
	ratio := 0.8
	if cfg.Ratio != nil {
		ratio = *cfg.Ratio
	}
	if ratio < 0 || ratio > 1 {
		return nil, errors.New(errors.ErrorTypeValidation, "split-data: ratio must be within [0, 1]")
	}
	seed := int64(42)
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	if cfg.Result == "" {
		cfg.Result = "_split"
	}
	return &SplitData{ratio: ratio, seed: uint64(seed), result: cfg.Result}, nil
}

// unitHash maps (seed, index) to [0, 1) with a 64-bit LCG mix.
func unitHash(seed, index uint64) float64 {
	const mul, inc = 6364136223846793005, 1442695040888963407
	x := seed ^ (index*mul + inc)
	x = x*mul + inc
	x = x*mul + inc
	return float64(x>>33) / float64(uint64(1)<<31)
}

func (s *SplitData) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := extend(in, columnar.Field{Name: s.result, Type: columnar.TypeString})
	dst := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		label := "test"
		if unitHash(s.seed, s.index) < s.ratio {
			label = "train"
		}
		out.SetStr(r, dst, label)
		s.index++
	}
	return out, nil
}

// rowKey renders the key cells of a row separated by 0x1f. Null cells render
// as a single NUL byte so they differ from empty strings.
func rowKey(dst []byte, b *columnar.Batch, row int, cols []int) []byte {
	for i, c := range cols {
		if i > 0 {
			dst = append(dst, keySep)
		}
		if b.IsNull(row, c) {
			dst = append(dst, nullToken)
			continue
		}
		dst = append(dst, b.Value(row, c).String()...)
	}
	return dst
}

// keyColumns resolves names against b; an empty list means every column.
// Missing names resolve to -1, which reads as null.
func keyColumns(b *columnar.Batch, names []string) []int {
	if len(names) == 0 {
		cols := make([]int, b.NumCols())
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	cols := make([]int, len(names))
	for i, n := range names {
		cols[i] = b.ColIndex(n)
	}
	return cols
}

// HashConfig configures Hash.
type HashConfig struct {
	Columns []string `json:"columns"`
	Result  string   `json:"result"`
}

// Hash appends the xxHash64 of a row's key cells as int64.
type Hash struct {
	stateless
	columns []string
	result  string
	buf     []byte
}

// NewHash creates a hash step.
func NewHash(cfg HashConfig) (*Hash, error) {
	if cfg.Result == "" {
		cfg.Result = "_hash"
	}
	return &Hash{columns: cfg.Columns, result: cfg.Result}, nil
}

func (s *Hash) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := extend(in, columnar.Field{Name: s.result, Type: columnar.TypeInt64})
	cols := keyColumns(in, s.columns)
	dst := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		s.buf = rowKey(s.buf[:0], in, r, cols)
		out.SetInt64(r, dst, int64(xxhash.Sum64(s.buf)))
	}
	return out, nil
}

// UniqueConfig configures Unique.
type UniqueConfig struct {
	Columns []string `json:"columns"`
}

// Unique drops rows whose key has been seen earlier in the stream.
type Unique struct {
	stateless
	columns []string
	seen    *keyIndex
	buf     []byte
}

// NewUnique creates a unique step.
func NewUnique(cfg UniqueConfig) (*Unique, error) {
	return &Unique{columns: cfg.Columns, seen: newKeyIndex()}, nil
}

func (s *Unique) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	cols := keyColumns(in, s.columns)
	return keepRows(in, func(r int) bool {
		s.buf = rowKey(s.buf[:0], in, r, cols)
		_, added := s.seen.id(s.buf)
		return added
	}), nil
}

func (s *Unique) Close() { s.seen = newKeyIndex() }
