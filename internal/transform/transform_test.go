package transform

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

// val turns a Go literal into a batch value; nil is null.
func val(v interface{}) columnar.Value {
	switch x := v.(type) {
	case nil:
		return columnar.Null()
	case int:
		return columnar.Int(int64(x))
	case int64:
		return columnar.Int(x)
	case float64:
		return columnar.Float(x)
	case string:
		return columnar.Str(x)
	case bool:
		return columnar.Bool(x)
	case columnar.Value:
		return x
	}
	panic(fmt.Sprintf("unsupported literal %T", v))
}

func vals(vs ...interface{}) []columnar.Value {
	out := make([]columnar.Value, len(vs))
	for i, v := range vs {
		out[i] = val(v)
	}
	return out
}

// table builds a batch from literal rows.
func table(t *testing.T, fields []columnar.Field, rows ...[]interface{}) *columnar.Batch {
	t.Helper()
	converted := make([][]columnar.Value, len(rows))
	for i, r := range rows {
		converted[i] = vals(r...)
	}
	return testutil.NewBatch(t, fields, converted...)
}

// column builds a single-column batch.
func column(t *testing.T, name string, typ columnar.Type, vs ...interface{}) *columnar.Batch {
	t.Helper()
	rows := make([][]interface{}, len(vs))
	for i, v := range vs {
		rows[i] = []interface{}{v}
	}
	return table(t, []columnar.Field{{Name: name, Type: typ}}, rows...)
}

// split cuts in into batches of at most size rows.
func split(in *columnar.Batch, size int) []*columnar.Batch {
	var out []*columnar.Batch
	for from := 0; from < in.Rows(); from += size {
		out = append(out, sliceRows(in, from, from+size))
	}
	return out
}

// run pushes batches through s, flushes it and merges every output batch
// into one using the schema of the last output.
func run(t *testing.T, s pipeline.Step, side *pipeline.SideChannels, batches ...*columnar.Batch) *columnar.Batch {
	t.Helper()
	var outs []*columnar.Batch
	for _, b := range batches {
		out, err := s.Process(b, side)
		require.NoError(t, err)
		if out != nil {
			outs = append(outs, out)
		}
	}
	out, err := s.Flush(side)
	require.NoError(t, err)
	if out != nil {
		outs = append(outs, out)
	}
	s.Close()
	s.Close()
	if len(outs) == 0 {
		return nil
	}
	merged := columnar.NewBatchFromFields(outs[len(outs)-1].Fields(), 0)
	for _, b := range outs {
		for r := 0; r < b.Rows(); r++ {
			row := make([]columnar.Value, merged.NumCols())
			for c := range row {
				row[c] = b.Value(r, b.ColIndex(merged.Name(c)))
			}
			merged.AppendValues(row)
		}
	}
	return merged
}

// runSizes runs a fresh step over in cut into batches of 1, 2, 3 and all
// rows, asserts every run agrees and returns the output.
func runSizes(t *testing.T, mk func() (pipeline.Step, error), in *columnar.Batch) *columnar.Batch {
	t.Helper()
	newStep := func() pipeline.Step {
		s, err := mk()
		require.NoError(t, err)
		return s
	}
	want := run(t, newStep(), nil, in)
	for _, size := range []int{1, 2, 3} {
		got := run(t, newStep(), nil, split(in, size)...)
		require.Equal(t, testutil.Rows(want), testutil.Rows(got), "batch size %d", size)
		if want != nil {
			require.Equal(t, want.Fields(), got.Fields(), "batch size %d", size)
		}
	}
	return want
}

func step[S pipeline.Step](s S, err error) (pipeline.Step, error) { return s, err }

func TestBatchBoundaryInvariance(t *testing.T) {
	in := table(t,
		[]columnar.Field{{Name: "k", Type: columnar.TypeString}, {Name: "x", Type: columnar.TypeInt64}},
		[]interface{}{"a", 3}, []interface{}{"b", nil}, []interface{}{"a", 1},
		[]interface{}{"c", 7}, []interface{}{"b", 2}, []interface{}{"a", 5}, []interface{}{"c", nil},
	)
	seed := int64(7)
	cases := map[string]func() (pipeline.Step, error){
		"head":        func() (pipeline.Step, error) { return step(NewHead(HeadConfig{N: 4})) },
		"skip":        func() (pipeline.Step, error) { return step(NewSkip(SkipConfig{N: 2})) },
		"filter":      func() (pipeline.Step, error) { return step(NewFilter(FilterConfig{Expr: "col('x') > 1"})) },
		"cumsum":      func() (pipeline.Step, error) { return step(NewRunning(RunningConfig{Column: "x", Func: "cumsum"})) },
		"ewma":        func() (pipeline.Step, error) { return step(NewEWMA(EWMAConfig{Column: "x", Alpha: 0.3})) },
		"diff":        func() (pipeline.Step, error) { return step(NewDiff(DiffConfig{Column: "x", Order: 2})) },
		"window":      func() (pipeline.Step, error) { return step(NewWindow(WindowConfig{Column: "x", Size: 2, Func: "max"})) },
		"lead":        func() (pipeline.Step, error) { return step(NewLead(LeadConfig{Column: "x", Offset: 2})) },
		"lead-1":      func() (pipeline.Step, error) { return step(NewLead(LeadConfig{Column: "x", Offset: 1})) },
		"interpolate": func() (pipeline.Step, error) { return step(NewInterpolate(InterpolateConfig{Column: "x"})) },
		"interpolate-forward": func() (pipeline.Step, error) {
			return step(NewInterpolate(InterpolateConfig{Column: "x", Method: "forward"}))
		},
		"interpolate-backward": func() (pipeline.Step, error) {
			return step(NewInterpolate(InterpolateConfig{Column: "x", Method: "backward"}))
		},
		"lag":     func() (pipeline.Step, error) { return step(NewRunning(RunningConfig{Column: "x", Func: "lag"})) },
		"ratio":   func() (pipeline.Step, error) { return step(NewRunning(RunningConfig{Column: "x", Func: "ratio"})) },
		"delta":   func() (pipeline.Step, error) { return step(NewRunning(RunningConfig{Column: "x", Func: "delta"})) },
		"anomaly": func() (pipeline.Step, error) { return step(NewAnomaly(AnomalyConfig{Column: "x", Threshold: testutil.F(1)})) },
		"onehot":  func() (pipeline.Step, error) { return step(NewOneHot(OneHotConfig{Column: "k"})) },
		"sample":  func() (pipeline.Step, error) { return step(NewSample(SampleConfig{N: 3, Seed: &seed})) },
		"acf":     func() (pipeline.Step, error) { return step(NewACF(ACFConfig{Column: "x", Lags: 3})) },
		"label":       func() (pipeline.Step, error) { return step(NewLabelEncode(LabelEncodeConfig{Column: "k"})) },
		"split-data":  func() (pipeline.Step, error) { return step(NewSplitData(SplitDataConfig{Seed: &seed})) },
		"unique":      func() (pipeline.Step, error) { return step(NewUnique(UniqueConfig{Columns: []string{"k"}})) },
		"fill-down":   func() (pipeline.Step, error) { return step(NewFillDown(FillDownConfig{})) },
		"sort":        func() (pipeline.Step, error) { return step(NewSort(SortConfig{Columns: []SortKey{{Name: "x"}}})) },
		"tail":        func() (pipeline.Step, error) { return step(NewTail(TailConfig{N: 3})) },
		"top":         func() (pipeline.Step, error) { return step(NewTop(TopConfig{N: 2, Column: "x"})) },
		"normalize":   func() (pipeline.Step, error) { return step(NewNormalize(NormalizeConfig{Columns: []string{"x"}})) },
		"stats":       func() (pipeline.Step, error) { return step(NewStats(StatsConfig{})) },
		"stats-hist-sample": func() (pipeline.Step, error) {
			return step(NewStats(StatsConfig{Stats: []string{"hist", "sample"}}))
		},
		"frequency":   func() (pipeline.Step, error) { return step(NewFrequency(FrequencyConfig{Columns: []string{"k"}})) },
		"group-agg": func() (pipeline.Step, error) {
			return step(NewGroupAgg(GroupAggConfig{GroupBy: []string{"k"}, Aggs: []Aggregation{{Column: "x", Func: "sum"}}}))
		},
		"pivot": func() (pipeline.Step, error) {
			return step(NewPivot(PivotConfig{NameColumn: "k", ValueColumn: "x", Agg: "sum"}))
		},
	}
	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			runSizes(t, mk, in)
		})
	}
}

func TestSelectIsNoOpOnFullProjection(t *testing.T) {
	in := table(t,
		[]columnar.Field{{Name: "a", Type: columnar.TypeInt64}, {Name: "b", Type: columnar.TypeString}},
		[]interface{}{1, "x"}, []interface{}{nil, "y"},
	)
	s, err := NewSelect(SelectConfig{Columns: []string{"a", "b"}})
	require.NoError(t, err)
	out := run(t, s, nil, in)
	assert.Equal(t, in.Fields(), out.Fields())
	assert.Equal(t, testutil.Rows(in), testutil.Rows(out))
}

func TestInterfaceCompliance(t *testing.T) {
	var steps []pipeline.Step
	add := func(s pipeline.Step, err error) {
		require.NoError(t, err)
		steps = append(steps, s)
	}
	add(step(NewRename(RenameConfig{Mapping: map[string]string{"a": "b"}})))
	add(step(NewTrim(TrimConfig{})))
	add(step(NewHash(HashConfig{})))
	add(step(NewACF(ACFConfig{Column: "x"})))
	add(step(NewUnpivot(UnpivotConfig{Columns: []string{"x"}})))
	add(step(NewStack(StackConfig{File: "x.csv"})))
	for _, s := range steps {
		s.Close()
		s.Close()
	}
}
