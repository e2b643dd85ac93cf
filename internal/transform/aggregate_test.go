package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

func TestWelford(t *testing.T) {
	var w welford
	_, ok := w.sampleVariance()
	assert.False(t, ok)
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.add(x)
	}
	v, ok := w.sampleVariance()
	require.True(t, ok)
	assert.InDelta(t, 32.0/7, v, 1e-12)
	assert.InDelta(t, 5.0, w.mean, 1e-12)
	assert.Equal(t, 2.0, w.min)
	assert.Equal(t, 9.0, w.max)
}

func TestNormalize(t *testing.T) {
	in := table(t,
		[]columnar.Field{{Name: "k", Type: columnar.TypeString}, {Name: "x", Type: columnar.TypeInt64}},
		[]interface{}{"a", 1}, []interface{}{"b", nil}, []interface{}{"c", 3}, []interface{}{"d", 5},
	)
	s, err := NewNormalize(NormalizeConfig{Columns: []string{"x"}})
	require.NoError(t, err)
	out := run(t, s, nil, split(in, 3)...)
	assert.Equal(t, columnar.TypeFloat64, out.Type(1))
	assert.Equal(t, vals(0.0, nil, 0.5, 1.0), testutil.Column(t, out, "x"))
	assert.Equal(t, vals("a", "b", "c", "d"), testutil.Column(t, out, "k"))

	s, err = NewNormalize(NormalizeConfig{Columns: []string{"x"}, Method: "zscore"})
	require.NoError(t, err)
	out = run(t, s, nil, column(t, "x", columnar.TypeFloat64, 1.0, 2.0, 3.0))
	assert.Equal(t, vals(-1.0, 0.0, 1.0), testutil.Column(t, out, "x"))

	s, err = NewNormalize(NormalizeConfig{Columns: []string{"x"}})
	require.NoError(t, err)
	out = run(t, s, nil, column(t, "x", columnar.TypeFloat64, 4.0, 4.0))
	assert.Equal(t, vals(0.0, 0.0), testutil.Column(t, out, "x"))

	_, err = NewNormalize(NormalizeConfig{Columns: []string{"x"}, Method: "robust"})
	assert.Error(t, err)
}

func TestACF(t *testing.T) {
	in := column(t, "v", columnar.TypeInt64, 1, 2, nil, 3, 4, 5)
	s, err := NewACF(ACFConfig{Column: "v", Lags: 2})
	require.NoError(t, err)
	out := run(t, s, nil, split(in, 2)...)
	require.Equal(t, 3, out.Rows())
	assert.Equal(t, vals(0, 1, 2), testutil.Column(t, out, "lag"))
	acf := testutil.Column(t, out, "acf")
	assert.InDelta(t, 1.0, acf[0].F, 1e-12)
	assert.InDelta(t, 0.4, acf[1].F, 1e-12)
	assert.InDelta(t, -0.1, acf[2].F, 1e-12)

	s, err = NewACF(ACFConfig{Column: "v"})
	require.NoError(t, err)
	assert.Equal(t, 5, run(t, s, nil, in).Rows())

	s, err = NewACF(ACFConfig{Column: "v"})
	require.NoError(t, err)
	assert.Nil(t, run(t, s, nil, column(t, "v", columnar.TypeInt64, 7, 7, 7)))
}

func TestStats(t *testing.T) {
	in := table(t,
		[]columnar.Field{{Name: "x", Type: columnar.TypeInt64}, {Name: "s", Type: columnar.TypeString}},
		[]interface{}{1, "a"}, []interface{}{2, "b"}, []interface{}{nil, "a"}, []interface{}{3, nil}, []interface{}{4, "c"},
	)
	s, err := NewStats(StatsConfig{Stats: []string{"count", "sum", "avg", "median", "p25", "distinct", "var"}})
	require.NoError(t, err)
	out := run(t, s, nil, split(in, 2)...)

	assert.Equal(t, vals("x", "s"), testutil.Column(t, out, "column"))
	assert.Equal(t, vals(4, 4), testutil.Column(t, out, "count"))
	assert.Equal(t, vals(10.0, nil), testutil.Column(t, out, "sum"))
	assert.Equal(t, vals(2.5, nil), testutil.Column(t, out, "avg"))
	assert.Equal(t, vals(2.5, nil), testutil.Column(t, out, "median"))
	assert.Equal(t, vals(1.75, nil), testutil.Column(t, out, "p25"))
	assert.Equal(t, vals(4, 3), testutil.Column(t, out, "distinct"))
	v := testutil.Column(t, out, "var")
	assert.InDelta(t, 5.0/3, v[0].F, 1e-12)

	_, err = NewStats(StatsConfig{Stats: []string{"mode"}})
	assert.Error(t, err)
}

func TestStatsHistAndSample(t *testing.T) {
	in := table(t,
		[]columnar.Field{{Name: "x", Type: columnar.TypeInt64}, {Name: "s", Type: columnar.TypeString}},
		[]interface{}{1, "a"}, []interface{}{2, "b"}, []interface{}{nil, "a"}, []interface{}{3, nil}, []interface{}{4, "c"},
	)
	s, err := NewStats(StatsConfig{Stats: []string{"median", "hist", "sample"}})
	require.NoError(t, err)
	out := run(t, s, nil, split(in, 2)...)

	assert.Equal(t, columnar.TypeString, out.Type(out.ColIndex("hist")))
	counts := make([]string, histBins)
	for i := range counts {
		counts[i] = "0"
	}
	counts[0], counts[10], counts[21], counts[31] = "1", "1", "1", "1"
	assert.Equal(t, vals("1:4:"+strings.Join(counts, ","), nil), testutil.Column(t, out, "hist"))
	assert.Equal(t, vals("1,2,3,4", nil), testutil.Column(t, out, "sample"))
}

func TestValueReservoir(t *testing.T) {
	fill := func() []float64 {
		r := newValueReservoir()
		for i := 1; i <= 1000; i++ {
			r.add(float64(i))
		}
		return r.values
	}
	got := fill()
	require.Len(t, got, reservoirK)
	assert.Equal(t, got, fill())
	for _, x := range got {
		assert.True(t, x >= 1 && x <= 1000)
	}
	assert.NotEqual(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)
}

func TestHistogramSingleValue(t *testing.T) {
	h := histogram([]float64{5, 5, 5}, 5, 5)
	assert.True(t, strings.HasPrefix(h, "5:5:3,0,"), h)
}

func TestMoments(t *testing.T) {
	skew, kurt, ok := moments([]float64{1, 2, 3}, 2)
	require.True(t, ok)
	assert.InDelta(t, 0, skew, 1e-12)
	assert.InDelta(t, -1.5, kurt, 1e-12)

	_, _, ok = moments([]float64{2, 2}, 2)
	assert.False(t, ok)
}

func TestFrequency(t *testing.T) {
	in := table(t,
		[]columnar.Field{{Name: "k", Type: columnar.TypeString}, {Name: "n", Type: columnar.TypeInt64}},
		[]interface{}{"b", 1}, []interface{}{"a", 1}, []interface{}{"a", 2}, []interface{}{"c", 1}, []interface{}{"a", 1}, []interface{}{"b", 1},
	)
	s, err := NewFrequency(FrequencyConfig{Columns: []string{"k"}})
	require.NoError(t, err)
	out := run(t, s, nil, split(in, 4)...)
	assert.Equal(t, vals("a", "b", "c"), testutil.Column(t, out, "value"))
	assert.Equal(t, vals(3, 2, 1), testutil.Column(t, out, "count"))

	s, err = NewFrequency(FrequencyConfig{})
	require.NoError(t, err)
	out = run(t, s, nil, in)
	assert.Equal(t, vals("b,1", "a,1", "a,2", "c,1"), testutil.Column(t, out, "value"))
	assert.Equal(t, vals(2, 2, 1, 1), testutil.Column(t, out, "count"))
}

func TestGroupAgg(t *testing.T) {
	in := table(t,
		[]columnar.Field{{Name: "k", Type: columnar.TypeString}, {Name: "x", Type: columnar.TypeInt64}},
		[]interface{}{"a", 3}, []interface{}{"b", nil}, []interface{}{"a", 1},
		[]interface{}{"c", 7}, []interface{}{"b", 2}, []interface{}{"a", 5}, []interface{}{"d", nil},
	)
	s, err := NewGroupAgg(GroupAggConfig{
		GroupBy: []string{"k"},
		Aggs: []Aggregation{
			{Column: "x", Func: "SUM"},
			{Column: "x", Func: "avg", Name: "mean"},
			{Func: "count"},
			{Column: "x", Func: "min"},
			{Column: "x", Func: "max"},
		},
	})
	require.NoError(t, err)
	out := run(t, s, nil, split(in, 3)...)
	assert.Equal(t, []string{"k", "x_sum", "mean", "count", "x_min", "x_max"}, testutil.Names(out))
	assert.Equal(t, vals("a", "b", "c", "d"), testutil.Column(t, out, "k"))
	assert.Equal(t, vals(9.0, 2.0, 7.0, 0.0), testutil.Column(t, out, "x_sum"))
	assert.Equal(t, vals(3.0, 2.0, 7.0, nil), testutil.Column(t, out, "mean"))
	assert.Equal(t, vals(3, 2, 1, 1), testutil.Column(t, out, "count"))
	assert.Equal(t, vals(1.0, 2.0, 7.0, nil), testutil.Column(t, out, "x_min"))
	assert.Equal(t, vals(5.0, 2.0, 7.0, nil), testutil.Column(t, out, "x_max"))

	s, err = NewGroupAgg(GroupAggConfig{Aggs: []Aggregation{{Func: "count"}}})
	require.NoError(t, err)
	out = run(t, s, nil, in)
	assert.Equal(t, vals(7), testutil.Column(t, out, "count"))

	_, err = NewGroupAgg(GroupAggConfig{Aggs: []Aggregation{{Func: "median", Column: "x"}}})
	assert.Error(t, err)
	_, err = NewGroupAgg(GroupAggConfig{Aggs: []Aggregation{{Func: "sum"}}})
	assert.Error(t, err)
}
