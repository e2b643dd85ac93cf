package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

func sampleBatch(t *testing.T) *columnar.Batch {
	return testutil.NewBatch(t,
		[]columnar.Field{
			{Name: "age", Type: columnar.TypeInt64},
			{Name: "score", Type: columnar.TypeFloat64},
			{Name: "name", Type: columnar.TypeString},
			{Name: "born", Type: columnar.TypeDate},
			{Name: "seen", Type: columnar.TypeTimestamp},
			{Name: "active", Type: columnar.TypeBool},
		},
		[]columnar.Value{
			columnar.Int(30), columnar.Float(2.5), columnar.Str("alice"),
			columnar.Date(columnar.DateFromYMD(1994, 3, 1)),
			columnar.Timestamp(1_700_000_000 * columnar.MicrosPerSecond),
			columnar.Bool(true),
		},
		[]columnar.Value{
			columnar.Null(), columnar.Null(), columnar.Null(),
			columnar.Null(), columnar.Null(), columnar.Null(),
		},
	)
}

func eval(t *testing.T, src string, b *columnar.Batch, row int) columnar.Value {
	t.Helper()
	e, err := Parse(src)
	require.NoError(t, err, src)
	return e.Eval(b, row)
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"age > 3",
		"col('age') >",
		"(col('age')",
		"'unterminated",
		"col('a') > 1 extra",
		"and",
		"upper(col('a'),",
		"col()",
		"#",
	} {
		_, err := Parse(src)
		require.Error(t, err, src)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), src)
	}
}

func TestEval_Comparisons(t *testing.T) {
	b := sampleBatch(t)
	defer b.Free()

	cases := []struct {
		src  string
		row  int
		want bool
	}{
		{"col('age') > 18", 0, true},
		{"col(age) >= 30", 0, true},
		{"col('score') < 3", 0, true},
		{"col('age') == 30.0", 0, true},
		{"col('name') == 'alice'", 0, true},
		{"col('name') > \"al\"", 0, true},
		{"col('name') != 'bob'", 0, true},
		{"col('age') == col('missing')", 0, false},
		{"col('age') != col('missing')", 0, true},
		{"col('age') == col('name')", 0, false},
		{"col('age') != col('name')", 0, true},
		{"col('born') < '2000-01-01'", 0, true},
		{"col('born') == '1994-03-01'", 0, true},
		{"col('seen') > col('born')", 0, true},
		{"col('seen') >= '2023-11-14 22:13:20'", 0, true},
		{"col('age') == col('name')", 1, true},
		{"col('age') > 0", 1, false},
		{"col('age') < 0", 1, false},
		{"col('age') != 1", 1, true},
	}
	for _, c := range cases {
		got := eval(t, c.src, b, c.row)
		assert.Equal(t, columnar.Bool(c.want), got, "%s row %d", c.src, c.row)
	}
}

func TestEval_Logic(t *testing.T) {
	b := sampleBatch(t)
	defer b.Free()

	assert.Equal(t, columnar.Bool(true), eval(t, "col('age') > 1 and col('score') > 1", b, 0))
	assert.Equal(t, columnar.Bool(false), eval(t, "col('age') > 100 and col('score') > 1", b, 0))
	assert.Equal(t, columnar.Bool(true), eval(t, "col('age') > 100 or col('score') > 1", b, 0))
	assert.Equal(t, columnar.Bool(false), eval(t, "not col('active')", b, 0))
	assert.Equal(t, columnar.Bool(true), eval(t, "not not col('active')", b, 0))
	// non-bool operands count as false
	assert.Equal(t, columnar.Bool(false), eval(t, "col('age') and col('active')", b, 0))
	assert.Equal(t, columnar.Bool(true), eval(t, "not col('age')", b, 0))
	// precedence: not binds looser than comparison, and binds tighter than or
	assert.Equal(t, columnar.Bool(true), eval(t, "1 > 2 and 1 > 2 or 2 > 1", b, 0))
	assert.Equal(t, columnar.Bool(true), eval(t, "not 1 > 2", b, 0))
}

func TestEval_Arithmetic(t *testing.T) {
	b := sampleBatch(t)
	defer b.Free()

	cases := []struct {
		src  string
		want columnar.Value
	}{
		{"col('age') + 1", columnar.Int(31)},
		{"col('age') * 2 - 10", columnar.Int(50)},
		{"col('age') / 4", columnar.Float(7.5)},
		{"col('age') / 0", columnar.Null()},
		{"col('score') * 2", columnar.Float(5)},
		{"-col('age')", columnar.Int(-30)},
		{"-2.5", columnar.Float(-2.5)},
		{"1 + 2 * 3", columnar.Int(7)},
		{"(1 + 2) * 3", columnar.Int(9)},
		{"1e3 + 1", columnar.Float(1001)},
		{"col('name') + 1", columnar.Null()},
		{"col('missing') + 1", columnar.Null()},
		{"col('born') + 1", columnar.Date(columnar.DateFromYMD(1994, 3, 2))},
		{"1 + col('born')", columnar.Date(columnar.DateFromYMD(1994, 3, 2))},
		{"col('born') - col('born')", columnar.Int(0)},
		{"col('seen') - col('seen')", columnar.Int(0)},
		{"col('seen') + 1000000", columnar.Timestamp(1_700_000_001 * columnar.MicrosPerSecond)},
		{"col('born') * 2", columnar.Null()},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, eval(t, c.src, b, 0), c.src)
	}
}

func TestEval_StringFunctions(t *testing.T) {
	b := sampleBatch(t)
	defer b.Free()

	cases := []struct {
		src  string
		want columnar.Value
	}{
		{"upper(col('name'))", columnar.Str("ALICE")},
		{"lower('AbC')", columnar.Str("abc")},
		{"upper(12)", columnar.Str("12")},
		{"len(col('name'))", columnar.Int(5)},
		{"length(col('age'))", columnar.Null()},
		{"trim('  x ')", columnar.Str("x")},
		{"trim(3)", columnar.Null()},
		{"starts_with(col('name'), 'al')", columnar.Bool(true)},
		{"ends_with(col('name'), 'x')", columnar.Bool(false)},
		{"contains(col('age'), '3')", columnar.Bool(false)},
		{"contains(col('name'), 'lic')", columnar.Bool(true)},
		{"slice('abcdef', 2)", columnar.Str("cdef")},
		{"substr('abcdef', 1, 3)", columnar.Str("bcd")},
		{"slice('abcdef', -2)", columnar.Str("ef")},
		{"slice('abcdef', -10, 2)", columnar.Str("ab")},
		{"slice('abc', 5)", columnar.Str("")},
		{"concat(col('name'), '-', col('age'), col('missing'))", columnar.Str("alice-30")},
		{"pad_left(col('age'), 5, '0')", columnar.Str("00030")},
		{"rpad('ab', 4)", columnar.Str("ab  ")},
		{"lpad('abcdef', 3)", columnar.Str("abcdef")},
		{"left('abcdef', 2)", columnar.Str("ab")},
		{"right('abcdef', 2)", columnar.Str("ef")},
		{"right('ab', 5)", columnar.Str("ab")},
		{"replace('a.b.c', '.', '/')", columnar.Str("a/b/c")},
		{"replace('abc', '', 'x')", columnar.Str("abc")},
		{"replace('abc', 1, 'x')", columnar.Null()},
		{"initcap('hello wORLD_foo-bar')", columnar.Str("Hello World_Foo-Bar")},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, eval(t, c.src, b, 0), c.src)
	}

	assert.Equal(t, columnar.Null(), eval(t, "upper(col('name'))", b, 1))
	assert.Equal(t, columnar.Null(), eval(t, "starts_with(col('name'), 'a')", b, 1))
}

func TestEval_NumericFunctions(t *testing.T) {
	b := sampleBatch(t)
	defer b.Free()

	cases := []struct {
		src  string
		want columnar.Value
	}{
		{"abs(-3)", columnar.Int(3)},
		{"abs(-2.5)", columnar.Float(2.5)},
		{"abs('x')", columnar.Null()},
		{"round(2.5)", columnar.Int(3)},
		{"round(-2.5)", columnar.Int(-3)},
		{"floor(2.7)", columnar.Int(2)},
		{"ceil(2.1)", columnar.Int(3)},
		{"ceil(7)", columnar.Int(7)},
		{"sign(-4.2)", columnar.Int(-1)},
		{"sign(0)", columnar.Int(0)},
		{"min(3, 1, 2)", columnar.Int(1)},
		{"least(3, 1.5)", columnar.Float(1.5)},
		{"max(3, 1, 2)", columnar.Int(3)},
		{"greatest(1, col('missing'))", columnar.Null()},
		{"max(1)", columnar.Null()},
		{"pow(2, 10)", columnar.Float(1024)},
		{"sqrt(16)", columnar.Float(4)},
		{"sqrt(-1)", columnar.Null()},
		{"log(0)", columnar.Null()},
		{"exp(0)", columnar.Float(1)},
		{"mod(7, 3)", columnar.Int(1)},
		{"mod(7, 0)", columnar.Null()},
		{"mod(7.5, 2)", columnar.Float(1.5)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, eval(t, c.src, b, 0), c.src)
	}
}

func TestEval_ConditionalFunctions(t *testing.T) {
	b := sampleBatch(t)
	defer b.Free()

	assert.Equal(t, columnar.Str("adult"), eval(t, "if(col('age') >= 18, 'adult', 'minor')", b, 0))
	assert.Equal(t, columnar.Str("minor"), eval(t, "if(col('age') >= 18, 'adult', 'minor')", b, 1))
	assert.Equal(t, columnar.Str("yes"), eval(t, "if(col('age'), 'yes', 'no')", b, 0))
	assert.Equal(t, columnar.Str("no"), eval(t, "if(0, 'yes', 'no')", b, 0))
	assert.Equal(t, columnar.Str("anon"), eval(t, "coalesce(col('name'), 'anon')", b, 1))
	assert.Equal(t, columnar.Str("alice"), eval(t, "coalesce(col('name'), 'anon')", b, 0))
	assert.Equal(t, columnar.Null(), eval(t, "nullif(col('age'), 30)", b, 0))
	assert.Equal(t, columnar.Int(30), eval(t, "nullif(col('age'), 31)", b, 0))
	assert.Equal(t, columnar.Null(), eval(t, "nullif('a', 'a')", b, 0))
}

func TestEval_UnknownFunctionAndArity(t *testing.T) {
	b := sampleBatch(t)
	defer b.Free()

	assert.Equal(t, columnar.Null(), eval(t, "frobnicate(1)", b, 0))
	assert.Equal(t, columnar.Null(), eval(t, "upper('a', 'b')", b, 0))
	assert.Equal(t, columnar.Null(), eval(t, "if(true_ish(), 1)", b, 0))
}

func TestTest_Truthiness(t *testing.T) {
	b := sampleBatch(t)
	defer b.Free()

	assert.True(t, MustParse("col('age')").Test(b, 0))
	assert.False(t, MustParse("col('age')").Test(b, 1))
	assert.True(t, MustParse("col('active')").Test(b, 0))
	assert.False(t, MustParse("col('age') > 100").Test(b, 0))
	assert.True(t, Truthy(columnar.Int(0)))
	assert.False(t, Truthy(columnar.Bool(false)))
}

func TestColumns(t *testing.T) {
	e := MustParse("col('a') > 1 and upper(col(b)) == col('a') or col('c')")
	assert.Equal(t, []string{"a", "b", "c"}, e.Columns())
	assert.Equal(t, "col('a') > 1 and upper(col(b)) == col('a') or col('c')", e.String())
}

func TestFunctions(t *testing.T) {
	names := Functions()
	assert.Contains(t, names, "initcap")
	assert.Contains(t, names, "coalesce")
	assert.IsIncreasing(t, names)
}
