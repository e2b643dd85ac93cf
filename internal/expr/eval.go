package expr

import (
	"strings"

	"github.com/ajitpratap0/strata/pkg/columnar"
)

// compareValues applies op. Null equals only null, and ordering against null
// is false. Strings compare bytewise and numbers as float64. When either side
// is temporal both sides compare as microseconds, with strings parsed as
// dates or timestamps. Any other mix is unequal.
func compareValues(l, r columnar.Value, op cmpOp) bool {
	if l.IsNull() || r.IsNull() {
		both := l.IsNull() && r.IsNull()
		switch op {
		case opEq:
			return both
		case opNe:
			return !both
		}
		return false
	}

	if l.Type == columnar.TypeString && r.Type == columnar.TypeString {
		return ordered(strings.Compare(l.S, r.S), op)
	}

	if lf, ok := l.AsFloat(); ok {
		if rf, ok := r.AsFloat(); ok {
			switch {
			case lf < rf:
				return ordered(-1, op)
			case lf > rf:
				return ordered(1, op)
			case lf == rf:
				return ordered(0, op)
			}
			// NaN compares false except for !=
			return op == opNe
		}
	}

	if l.Type.IsTemporal() || r.Type.IsTemporal() {
		lu, lok := temporalMicros(l)
		ru, rok := temporalMicros(r)
		if lok && rok {
			switch {
			case lu < ru:
				return ordered(-1, op)
			case lu > ru:
				return ordered(1, op)
			}
			return ordered(0, op)
		}
	}

	return op == opNe
}

func ordered(c int, op cmpOp) bool {
	switch op {
	case opEq:
		return c == 0
	case opNe:
		return c != 0
	case opGt:
		return c > 0
	case opGe:
		return c >= 0
	case opLt:
		return c < 0
	case opLe:
		return c <= 0
	}
	return false
}

func temporalMicros(v columnar.Value) (int64, bool) {
	if us, ok := v.Micros(); ok {
		return us, true
	}
	if v.Type != columnar.TypeString {
		return 0, false
	}
	if d, ok := columnar.ParseDate(v.S); ok {
		return int64(d) * columnar.MicrosPerDay, true
	}
	return columnar.ParseTimestamp(v.S)
}

// arithmetic applies + - * /. Null propagates, int op int stays int64 except
// for division, and dividing by zero is null.
func arithmetic(l, r columnar.Value, op byte) columnar.Value {
	if l.IsNull() || r.IsNull() {
		return columnar.Null()
	}
	if l.Type.IsTemporal() || r.Type.IsTemporal() {
		return temporalArithmetic(l, r, op)
	}
	lf, lok := l.AsFloat()
	rf, rok := r.AsFloat()
	if !lok || !rok {
		return columnar.Null()
	}
	if l.Type == columnar.TypeInt64 && r.Type == columnar.TypeInt64 {
		switch op {
		case '+':
			return columnar.Int(l.I + r.I)
		case '-':
			return columnar.Int(l.I - r.I)
		case '*':
			return columnar.Int(l.I * r.I)
		}
	}
	switch op {
	case '+':
		return columnar.Float(lf + rf)
	case '-':
		return columnar.Float(lf - rf)
	case '*':
		return columnar.Float(lf * rf)
	case '/':
		if rf == 0 {
			return columnar.Null()
		}
		return columnar.Float(lf / rf)
	}
	return columnar.Null()
}

// temporalArithmetic covers date - date (days), timestamp - timestamp
// (micros), date +/- int (days) and timestamp +/- int (micros).
func temporalArithmetic(l, r columnar.Value, op byte) columnar.Value {
	switch {
	case l.Type == r.Type && op == '-':
		return columnar.Int(l.I - r.I)
	case l.Type.IsTemporal() && r.Type == columnar.TypeInt64:
		switch op {
		case '+':
			return shift(l, r.I)
		case '-':
			return shift(l, -r.I)
		}
	case l.Type == columnar.TypeInt64 && r.Type.IsTemporal() && op == '+':
		return shift(r, l.I)
	}
	return columnar.Null()
}

func shift(v columnar.Value, n int64) columnar.Value {
	if v.Type == columnar.TypeDate {
		return columnar.Date(int32(v.I + n))
	}
	return columnar.Timestamp(v.I + n)
}
