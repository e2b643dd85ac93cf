package transform

import (
	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	stringpool "github.com/ajitpratap0/strata/pkg/strings"
)

// stateless supplies the Flush and Close of steps with nothing to release.
type stateless struct{}

func (stateless) Flush(*pipeline.SideChannels) (*columnar.Batch, error) { return nil, nil }

func (stateless) Close() {}

var (
	_ pipeline.Step = (*Select)(nil)
	_ pipeline.Step = (*Sort)(nil)
	_ pipeline.Step = (*Sample)(nil)
)

// extend copies every row of in into a new batch that carries extra
// trailing columns. The extra cells start null.
func extend(in *columnar.Batch, extra ...columnar.Field) *columnar.Batch {
	n := in.NumCols()
	out := columnar.NewBatch(n+len(extra), in.Rows())
	for c := 0; c < n; c++ {
		out.SetSchema(c, in.Name(c), in.Type(c))
	}
	for i, f := range extra {
		out.SetSchema(n+i, f.Name, f.Type)
	}
	for r := 0; r < in.Rows(); r++ {
		columnar.CopyRow(out, r, in, r)
	}
	out.SetRows(in.Rows())
	return out
}

// keepRows copies the rows of in for which keep is true. It returns nil when
// no row survives.
func keepRows(in *columnar.Batch, keep func(row int) bool) *columnar.Batch {
	var out *columnar.Batch
	for r := 0; r < in.Rows(); r++ {
		if !keep(r) {
			continue
		}
		if out == nil {
			out = columnar.NewBatchLike(in, in.Rows()-r)
		}
		out.AppendRow(in, r)
	}
	return out
}

// sliceRows copies rows [from, to) of in. It returns nil for an empty range.
func sliceRows(in *columnar.Batch, from, to int) *columnar.Batch {
	if from < 0 {
		from = 0
	}
	if to > in.Rows() {
		to = in.Rows()
	}
	if from >= to {
		return nil
	}
	out := columnar.NewBatchLike(in, to-from)
	for r := from; r < to; r++ {
		out.AppendRow(in, r)
	}
	return out
}

// rowStore holds detached copies of rows for steps that buffer across
// batches. The schema is taken from the first stored batch.
type rowStore struct {
	fields []columnar.Field
	rows   [][]columnar.Value
}

func (s *rowStore) adopt(in *columnar.Batch) {
	if s.fields == nil {
		s.fields = in.Fields()
	}
}

// snapshot detaches row r of in, mapping columns by name onto the stored
// schema. String payloads are cloned so they outlive the batch.
func (s *rowStore) snapshot(in *columnar.Batch, r int) []columnar.Value {
	s.adopt(in)
	vals := make([]columnar.Value, len(s.fields))
	for c, f := range s.fields {
		src := c
		if c >= in.NumCols() || in.Name(c) != f.Name {
			src = in.ColIndex(f.Name)
		}
		if src < 0 {
			continue
		}
		vals[c] = detach(in.Value(r, src))
	}
	return vals
}

func (s *rowStore) add(in *columnar.Batch, r int) {
	s.rows = append(s.rows, s.snapshot(in, r))
}

func (s *rowStore) batch(order []int) *columnar.Batch {
	if len(s.rows) == 0 || s.fields == nil {
		return nil
	}
	out := columnar.NewBatchFromFields(s.fields, len(s.rows))
	if order == nil {
		for _, row := range s.rows {
			out.AppendValues(row)
		}
		return out
	}
	for _, i := range order {
		out.AppendValues(s.rows[i])
	}
	return out
}

func (s *rowStore) reset() {
	s.rows = nil
}

// detach clones the string payload of v so it no longer points into a
// batch arena.
func detach(v columnar.Value) columnar.Value {
	if v.Type == columnar.TypeString {
		v.S = stringpool.Clone(v.S)
	}
	return v
}

// numeric reads a cell as float64; ok is false for nulls and non-numeric
// columns.
func numeric(b *columnar.Batch, row, col int) (float64, bool) {
	if col < 0 || b.IsNull(row, col) {
		return 0, false
	}
	switch b.Type(col) {
	case columnar.TypeInt64:
		return float64(b.Int64(row, col)), true
	case columnar.TypeFloat64:
		return b.Float64(row, col), true
	}
	return 0, false
}

func resultName(result, column, suffix string) string {
	if result != "" {
		return result
	}
	return column + "_" + suffix
}

// keyIndex assigns dense ids to byte keys in first-seen order. Keys are
// bucketed by xxHash64 and compared exactly within a bucket.
type keyIndex struct {
	buckets map[uint64][]int
	keys    []string
}

func newKeyIndex() *keyIndex {
	return &keyIndex{buckets: make(map[uint64][]int)}
}

// id returns the id of key, adding it when absent. added reports whether the
// key was new.
func (x *keyIndex) id(key []byte) (id int, added bool) {
	h := xxhash.Sum64(key)
	for _, i := range x.buckets[h] {
		if x.keys[i] == string(key) {
			return i, false
		}
	}
	id = len(x.keys)
	x.keys = append(x.keys, string(key))
	x.buckets[h] = append(x.buckets[h], id)
	return id, true
}

func (x *keyIndex) len() int { return len(x.keys) }
