package columnar

import (
	"math"
	"strconv"
)

// Value is a single cell detached from its batch. The zero Value is null.
type Value struct {
	Type Type
	B    bool
	I    int64 // int64, date (days) and timestamp (micros)
	F    float64
	S    string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a bool value.
func Bool(b bool) Value { return Value{Type: TypeBool, B: b} }

// Int returns an int64 value.
func Int(i int64) Value { return Value{Type: TypeInt64, I: i} }

// Float returns a float64 value.
func Float(f float64) Value { return Value{Type: TypeFloat64, F: f} }

// Str returns a string value.
func Str(s string) Value { return Value{Type: TypeString, S: s} }

// Date returns a date value from days since the epoch.
func Date(days int32) Value { return Value{Type: TypeDate, I: int64(days)} }

// Timestamp returns a timestamp value from microseconds since the epoch.
func Timestamp(us int64) Value { return Value{Type: TypeTimestamp, I: us} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// AsFloat coerces int64 and float64 values to float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.Type {
	case TypeInt64:
		return float64(v.I), true
	case TypeFloat64:
		return v.F, true
	}
	return 0, false
}

// Micros returns a temporal value as microseconds since the epoch.
func (v Value) Micros() (int64, bool) {
	switch v.Type {
	case TypeDate:
		return v.I * MicrosPerDay, true
	case TypeTimestamp:
		return v.I, true
	}
	return 0, false
}

// String renders v in its canonical text form; null renders empty.
func (v Value) String() string {
	switch v.Type {
	case TypeBool:
		return strconv.FormatBool(v.B)
	case TypeInt64:
		return strconv.FormatInt(v.I, 10)
	case TypeFloat64:
		return FormatFloat(v.F)
	case TypeString:
		return v.S
	case TypeDate:
		return FormatDate(int32(v.I))
	case TypeTimestamp:
		return FormatTimestamp(v.I)
	}
	return ""
}

// Equal reports whether two values have the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeNull:
		return true
	case TypeBool:
		return v.B == o.B
	case TypeFloat64:
		return v.F == o.F || (math.IsNaN(v.F) && math.IsNaN(o.F))
	case TypeString:
		return v.S == o.S
	default:
		return v.I == o.I
	}
}

// FormatFloat renders f with the shortest representation that round-trips,
// using exponent notation only for very large or very small magnitudes.
func FormatFloat(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Convert converts v to type t. It returns false when no conversion exists;
// string sources are parsed.
func Convert(v Value, t Type) (Value, bool) {
	if v.IsNull() {
		return Null(), true
	}
	if v.Type == t {
		return v, true
	}
	switch t {
	case TypeNull:
		return Null(), true
	case TypeString:
		return Str(v.String()), true
	case TypeFloat64:
		switch v.Type {
		case TypeInt64:
			return Float(float64(v.I)), true
		case TypeBool:
			return Float(b2f(v.B)), true
		case TypeString:
			f, err := strconv.ParseFloat(v.S, 64)
			if err != nil {
				return Null(), false
			}
			return Float(f), true
		}
	case TypeInt64:
		switch v.Type {
		case TypeFloat64:
			if math.IsNaN(v.F) || math.IsInf(v.F, 0) {
				return Null(), false
			}
			return Int(int64(v.F)), true
		case TypeBool:
			return Int(int64(b2f(v.B))), true
		case TypeString:
			if i, err := strconv.ParseInt(v.S, 10, 64); err == nil {
				return Int(i), true
			}
			if f, err := strconv.ParseFloat(v.S, 64); err == nil {
				return Int(int64(f)), true
			}
			return Null(), false
		case TypeDate, TypeTimestamp:
			return Int(v.I), true
		}
	case TypeBool:
		switch v.Type {
		case TypeInt64:
			return Bool(v.I != 0), true
		case TypeFloat64:
			return Bool(v.F != 0), true
		case TypeString:
			return Bool(v.S != "" && v.S != "false"), true
		}
	case TypeDate:
		switch v.Type {
		case TypeTimestamp:
			return Date(int32(floorDiv(v.I, MicrosPerDay))), true
		case TypeString:
			if d, ok := ParseDate(v.S); ok {
				return Date(d), true
			}
			if us, ok := ParseTimestamp(v.S); ok {
				return Date(int32(floorDiv(us, MicrosPerDay))), true
			}
			return Null(), false
		case TypeInt64:
			return Date(int32(v.I)), true
		}
	case TypeTimestamp:
		switch v.Type {
		case TypeDate:
			return Timestamp(v.I * MicrosPerDay), true
		case TypeString:
			if us, ok := ParseTimestamp(v.S); ok {
				return Timestamp(us), true
			}
			return Null(), false
		case TypeInt64:
			return Timestamp(v.I), true
		}
	}
	return Null(), false
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
