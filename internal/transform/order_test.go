package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	jsonpool "github.com/ajitpratap0/strata/pkg/json"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

func TestCompareCells(t *testing.T) {
	assert.Equal(t, -1, compareCells(columnar.Int(1), columnar.Float(1.5)))
	assert.Equal(t, 0, compareCells(columnar.Int(2), columnar.Float(2)))
	assert.Equal(t, 1, compareCells(columnar.Str("b"), columnar.Str("a")))
	assert.Equal(t, -1, compareCells(columnar.Bool(false), columnar.Bool(true)))
	assert.Equal(t, -1, compareCells(columnar.Date(1), columnar.Timestamp(2*columnar.MicrosPerDay)))
}

func TestSort(t *testing.T) {
	in := table(t,
		[]columnar.Field{{Name: "v", Type: columnar.TypeInt64}, {Name: "tag", Type: columnar.TypeString}},
		[]interface{}{3, "a"}, []interface{}{nil, "b"}, []interface{}{1, "c"}, []interface{}{2, "d"}, []interface{}{1, "e"},
	)
	s, err := NewSort(SortConfig{Columns: []SortKey{{Name: "v"}}})
	require.NoError(t, err)
	out := run(t, s, nil, split(in, 2)...)
	assert.Equal(t, vals(1, 1, 2, 3, nil), testutil.Column(t, out, "v"))
	assert.Equal(t, vals("c", "e", "d", "a", "b"), testutil.Column(t, out, "tag"))

	s, err = NewSort(SortConfig{Columns: []SortKey{{Name: "v", Desc: true}, {Name: "tag", Desc: true}}})
	require.NoError(t, err)
	out = run(t, s, nil, in)
	assert.Equal(t, vals(3, 2, 1, 1, nil), testutil.Column(t, out, "v"))
	assert.Equal(t, vals("a", "d", "e", "c", "b"), testutil.Column(t, out, "tag"))

	_, err = NewSort(SortConfig{})
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	in := column(t, "n", columnar.TypeInt64, 1, 2, 3, 4, 5)
	s, err := NewTail(TailConfig{N: 3})
	require.NoError(t, err)
	assert.Equal(t, vals(3, 4, 5), testutil.Column(t, run(t, s, nil, split(in, 2)...), "n"))

	s, err = NewTail(TailConfig{N: 10})
	require.NoError(t, err)
	assert.Equal(t, vals(1, 2, 3, 4, 5), testutil.Column(t, run(t, s, nil, in), "n"))
}

func TestTop(t *testing.T) {
	in := column(t, "v", columnar.TypeFloat64, 4.0, nil, 9.0, 1.0, 7.0)

	s, err := NewTop(TopConfig{N: 2, Column: "v"})
	require.NoError(t, err)
	assert.Equal(t, vals(9.0, 7.0), testutil.Column(t, run(t, s, nil, split(in, 1)...), "v"))

	asc := false
	s, err = NewTop(TopConfig{N: 2, Column: "v", Desc: &asc})
	require.NoError(t, err)
	assert.Equal(t, vals(1.0, 4.0), testutil.Column(t, run(t, s, nil, in), "v"))

	s, err = NewTop(TopConfig{N: 5, Column: "v", Desc: &asc})
	require.NoError(t, err)
	assert.Equal(t, vals(1.0, 4.0, 7.0, 9.0, nil), testutil.Column(t, run(t, s, nil, in), "v"))
}

func TestSampleReservoir(t *testing.T) {
	const rows, n, trials = 20, 5, 400
	var ns []interface{}
	for i := 0; i < rows; i++ {
		ns = append(ns, i)
	}
	in := column(t, "n", columnar.TypeInt64, ns...)

	hits := make([]int, rows)
	for trial := 0; trial < trials; trial++ {
		seed := int64(trial)
		s, err := NewSample(SampleConfig{N: n, Seed: &seed})
		require.NoError(t, err)
		out := run(t, s, nil, split(in, 3)...)
		require.Equal(t, n, out.Rows())
		for _, v := range testutil.Column(t, out, "n") {
			hits[v.I]++
		}
	}
	// each row is kept with probability n/rows
	for i, h := range hits {
		assert.InDelta(t, trials*n/rows, h, 45, "row %d", i)
	}
}

func TestSampleReport(t *testing.T) {
	side := pipeline.NewSideChannels()
	seed := int64(1)
	s, err := NewSample(SampleConfig{N: 10, Seed: &seed})
	require.NoError(t, err)
	out := run(t, s, side, column(t, "n", columnar.TypeInt64, 1, 2, 3))
	assert.Equal(t, 3, out.Rows())

	var rep SampleReport
	require.NoError(t, jsonpool.Unmarshal(side.Samples.Bytes(), &rep))
	assert.Equal(t, SampleReport{Op: "sample", Seen: 3, Kept: 3}, rep)

	_, err = NewSample(SampleConfig{})
	assert.Error(t, err)
}
