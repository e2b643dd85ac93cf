package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

func TestFilter(t *testing.T) {
	side := pipeline.NewSideChannels()
	s, err := NewFilter(FilterConfig{Expr: "col('age') >= 30 and col('score') > 1"})
	require.NoError(t, err)
	out := run(t, s, side, people(t))
	assert.Equal(t, vals(30, 41), testutil.Column(t, out, "age"))
	assert.Equal(t, `{"op":"filter","rows_in":3,"rows_out":2}`+"\n", string(side.Stats.Bytes()))

	_, err = NewFilter(FilterConfig{Expr: " "})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	_, err = NewFilter(FilterConfig{Expr: "col('age') >"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFilterDropsEverything(t *testing.T) {
	s, err := NewFilter(FilterConfig{Expr: "col('age') > 100"})
	require.NoError(t, err)
	out, err := s.Process(people(t), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestValidate(t *testing.T) {
	s, err := NewValidate(ValidateConfig{Expr: "col('score') > 5"})
	require.NoError(t, err)
	out := run(t, s, nil, people(t))
	assert.Equal(t, vals(true, false, false), testutil.Column(t, out, "_valid"))
}

func TestGrep(t *testing.T) {
	lines := column(t, "_line", columnar.TypeString, "GET /a", "POST /b", "GET /c", nil)

	s, err := NewGrep(GrepConfig{Pattern: "GET"})
	require.NoError(t, err)
	assert.Equal(t, vals("GET /a", "GET /c"), testutil.Column(t, run(t, s, nil, lines), "_line"))

	s, err = NewGrep(GrepConfig{Pattern: "^GET", Regex: true, Invert: true})
	require.NoError(t, err)
	assert.Equal(t, vals("POST /b", nil), testutil.Column(t, run(t, s, nil, lines), "_line"))

	s, err = NewGrep(GrepConfig{Pattern: "x", Column: "missing"})
	require.NoError(t, err)
	assert.Nil(t, run(t, s, nil, lines))

	s, err = NewGrep(GrepConfig{Pattern: "x", Column: "missing", Invert: true})
	require.NoError(t, err)
	assert.Equal(t, 4, run(t, s, nil, lines).Rows())
}

func TestHeadAndSkip(t *testing.T) {
	in := column(t, "n", columnar.TypeInt64, 1, 2, 3, 4, 5)

	h, err := NewHead(HeadConfig{N: 3})
	require.NoError(t, err)
	assert.Equal(t, vals(1, 2, 3), testutil.Column(t, run(t, h, nil, split(in, 2)...), "n"))

	sk, err := NewSkip(SkipConfig{N: 3})
	require.NoError(t, err)
	assert.Equal(t, vals(4, 5), testutil.Column(t, run(t, sk, nil, split(in, 2)...), "n"))

	sk, err = NewSkip(SkipConfig{N: 0})
	require.NoError(t, err)
	assert.Equal(t, 5, run(t, sk, nil, in).Rows())

	_, err = NewHead(HeadConfig{})
	assert.Error(t, err)
	_, err = NewSkip(SkipConfig{N: -1})
	assert.Error(t, err)
}
