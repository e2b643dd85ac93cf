package columnar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch(t *testing.T) *Batch {
	t.Helper()
	b := NewBatchFromFields([]Field{
		{Name: "name", Type: TypeString},
		{Name: "age", Type: TypeInt64},
		{Name: "score", Type: TypeFloat64},
		{Name: "active", Type: TypeBool},
	}, 2)
	b.SetStr(0, 0, "ada")
	b.SetInt64(0, 1, 36)
	b.SetFloat64(0, 2, 9.5)
	b.SetBool(0, 3, true)
	b.SetStr(1, 0, "bob")
	b.SetNull(1, 1)
	b.SetFloat64(1, 2, 7)
	b.SetBool(1, 3, false)
	b.SetRows(2)
	return b
}

func TestBatch_SchemaAndGetters(t *testing.T) {
	b := testBatch(t)

	assert.Equal(t, 4, b.NumCols())
	assert.Equal(t, 2, b.Rows())
	assert.Equal(t, 1, b.ColIndex("age"))
	assert.Equal(t, -1, b.ColIndex("missing"))
	assert.Equal(t, TypeFloat64, b.Type(2))

	assert.Equal(t, "ada", b.Str(0, 0))
	assert.Equal(t, int64(36), b.Int64(0, 1))
	assert.True(t, b.IsNull(1, 1))
	assert.False(t, b.IsNull(1, 2))
	assert.Equal(t, Float(7), b.Value(1, 2))
	assert.Equal(t, Null(), b.Value(1, 1))
}

func TestBatch_SchemaFixedOnce(t *testing.T) {
	b := NewBatch(1, 4)
	b.SetSchema(0, "x", TypeInt64)
	b.SetSchema(0, "y", TypeString)

	assert.Equal(t, "y", b.Name(0))
	assert.Equal(t, TypeInt64, b.Type(0))
}

func TestBatch_OutOfRange(t *testing.T) {
	b := testBatch(t)

	assert.Equal(t, int64(0), b.Int64(100, 1))
	assert.True(t, b.IsNull(100, 1))
	assert.True(t, b.IsNull(0, 99))
	assert.Equal(t, "", b.Str(0, 1), "type mismatch returns zero value")

	b.SetInt64(100, 1, 5)
	b.SetStr(0, 1, "oops")
	assert.Equal(t, int64(36), b.Int64(0, 1))
}

func TestBatch_EnsureCapacity(t *testing.T) {
	b := NewBatchFromFields([]Field{{Name: "v", Type: TypeInt64}}, 0)
	assert.Equal(t, 0, b.Capacity())

	b.EnsureCapacity(1)
	assert.Equal(t, 16, b.Capacity())

	b.SetInt64(3, 0, 9)
	b.EnsureCapacity(40)
	assert.Equal(t, 64, b.Capacity())
	assert.Equal(t, int64(9), b.Int64(3, 0))
	assert.True(t, b.IsNull(50, 0), "grown rows start null")
}

func TestBatch_StringsCopiedIntoArena(t *testing.T) {
	b := NewBatchFromFields([]Field{{Name: "s", Type: TypeString}}, 1)
	src := []byte("abc")
	b.SetStr(0, 0, string(src))
	src[0] = 'z'

	assert.Equal(t, "abc", b.Str(0, 0))
	assert.Greater(t, b.ArenaStats().Used, int64(0))
}

func TestCopyRow(t *testing.T) {
	src := testBatch(t)
	dst := NewBatchLike(src, 0)

	CopyRow(dst, 5, src, 1)
	assert.Equal(t, 0, dst.Rows(), "row count untouched")
	assert.GreaterOrEqual(t, dst.Capacity(), 6)
	assert.Equal(t, "bob", dst.Str(5, 0))
	assert.True(t, dst.IsNull(5, 1))

	src.Free()
	assert.Equal(t, "bob", dst.Str(5, 0))
}

func TestCopyRow_CommonPrefix(t *testing.T) {
	src := testBatch(t)
	dst := NewBatchFromFields([]Field{{Name: "name", Type: TypeString}}, 0)

	dst.AppendRow(src, 0)
	dst.AppendRow(src, 1)
	require.Equal(t, 2, dst.Rows())
	assert.Equal(t, "bob", dst.Str(1, 0))
}

func TestBatch_SetValueConverts(t *testing.T) {
	b := NewBatchFromFields([]Field{
		{Name: "f", Type: TypeFloat64},
		{Name: "s", Type: TypeString},
		{Name: "ts", Type: TypeTimestamp},
	}, 1)

	b.SetValue(0, 0, Int(3))
	b.SetValue(0, 1, Float(2.5))
	b.SetValue(0, 2, Date(1))

	assert.Equal(t, 3.0, b.Float64(0, 0))
	assert.Equal(t, "2.5", b.Str(0, 1))
	assert.Equal(t, MicrosPerDay, b.Timestamp(0, 2))

	b.SetValue(0, 0, Str("nope"))
	assert.True(t, b.IsNull(0, 0))
}

func TestBatch_AppendValuesAndRow(t *testing.T) {
	b := NewBatchFromFields([]Field{
		{Name: "a", Type: TypeInt64},
		{Name: "b", Type: TypeString},
	}, 0)
	b.AppendValues([]Value{Int(1), Str("x")})
	b.AppendValues([]Value{Int(2)})

	require.Equal(t, 2, b.Rows())
	assert.Equal(t, []Value{Int(2), Null()}, b.Row(1))
}

func TestBatch_AddColumnAndNullType(t *testing.T) {
	b := NewBatch(0, 2)
	idx := b.AddColumn("missing", TypeNull)

	assert.Equal(t, 0, idx)
	assert.True(t, b.IsNull(0, idx))
	b.SetValue(0, idx, Int(1))
	assert.True(t, b.IsNull(0, idx))
}

func TestBatch_Clone(t *testing.T) {
	b := testBatch(t)
	c := b.Clone()
	b.Free()

	assert.Equal(t, 2, c.Rows())
	assert.Equal(t, "ada", c.Str(0, 0))
	assert.Equal(t, 0, b.Rows())
}

func TestTemporal(t *testing.T) {
	d := DateFromYMD(2024, time.February, 29)
	assert.Equal(t, "2024-02-29", FormatDate(d))

	parsed, ok := ParseDate("2024-02-29")
	require.True(t, ok)
	assert.Equal(t, d, parsed)

	_, ok = ParseDate("2024-2-29")
	assert.False(t, ok)

	neg := DateFromYMD(1969, time.December, 31)
	assert.Equal(t, int32(-1), neg)

	cases := map[string]string{
		"2024-03-01T12:30:00Z":        "2024-03-01T12:30:00Z",
		"2024-03-01 12:30:00":         "2024-03-01T12:30:00Z",
		"2024-03-01T12:30:00.250":     "2024-03-01T12:30:00.25Z",
		"2024-03-01T14:30:00+02:00":   "2024-03-01T12:30:00Z",
		"2024-03-01":                  "2024-03-01T00:00:00Z",
		"2024-03-01T12:30:00.000001Z": "2024-03-01T12:30:00.000001Z",
	}
	for in, want := range cases {
		us, ok := ParseTimestamp(in)
		require.True(t, ok, in)
		assert.Equal(t, want, FormatTimestamp(us), in)
	}

	_, ok = ParseTimestamp("hello")
	assert.False(t, ok)
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "", Null().String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "-4", Int(-4).String())
	assert.Equal(t, "22.5", Float(22.5).String())
	assert.Equal(t, "3", Float(3).String())
	assert.Equal(t, "1234567", Float(1234567).String())
	assert.Equal(t, "1e+21", Float(1e21).String())
	assert.Equal(t, "1970-01-02", Date(1).String())
}

func TestConvert(t *testing.T) {
	cases := []struct {
		in   Value
		to   Type
		want Value
		ok   bool
	}{
		{Float(3.9), TypeInt64, Int(3), true},
		{Str("42"), TypeInt64, Int(42), true},
		{Str("x"), TypeInt64, Null(), false},
		{Str("false"), TypeBool, Bool(false), true},
		{Str("yes"), TypeBool, Bool(true), true},
		{Str("2024-01-02"), TypeDate, Date(DateFromYMD(2024, 1, 2)), true},
		{Timestamp(MicrosPerDay + 5), TypeDate, Date(1), true},
		{Timestamp(-5), TypeDate, Date(-1), true},
		{Int(7), TypeString, Str("7"), true},
		{Null(), TypeFloat64, Null(), true},
	}
	for _, c := range cases {
		got, ok := Convert(c.in, c.to)
		assert.Equal(t, c.ok, ok, "%v -> %s", c.in, c.to)
		assert.Equal(t, c.want, got, "%v -> %s", c.in, c.to)
	}
}

func TestParseType(t *testing.T) {
	for name, want := range map[string]Type{
		"int": TypeInt64, "float64": TypeFloat64, "str": TypeString,
		"boolean": TypeBool, "datetime": TypeTimestamp, "date": TypeDate,
	} {
		got, ok := ParseType(name)
		assert.True(t, ok)
		assert.Equal(t, want, got, name)
	}
	_, ok := ParseType("decimal")
	assert.False(t, ok)
}
