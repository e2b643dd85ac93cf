package expr

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ajitpratap0/strata/pkg/columnar"
)

// function evaluates a call. It receives every argument already evaluated
// and returns null for arity or type mismatches.
type function func(args []columnar.Value) columnar.Value

var functions = map[string]function{
	"upper":       unary(fnUpper),
	"lower":       unary(fnLower),
	"len":         unary(fnLen),
	"length":      unary(fnLen),
	"trim":        unary(fnTrim),
	"initcap":     unary(fnInitcap),
	"starts_with": binary(stringPredicate(strings.HasPrefix)),
	"ends_with":   binary(stringPredicate(strings.HasSuffix)),
	"contains":    binary(stringPredicate(strings.Contains)),
	"slice":       fnSlice,
	"substr":      fnSlice,
	"concat":      fnConcat,
	"pad_left":    pad(true),
	"lpad":        pad(true),
	"pad_right":   pad(false),
	"rpad":        pad(false),
	"left":        binary(fnLeft),
	"right":       binary(fnRight),
	"replace":     fnReplace,
	"if":          fnIf,
	"coalesce":    fnCoalesce,
	"nullif":      binary(fnNullif),
	"abs":         unary(fnAbs),
	"round":       unary(rounding(math.Round)),
	"floor":       unary(rounding(math.Floor)),
	"ceil":        unary(rounding(math.Ceil)),
	"sign":        unary(fnSign),
	"min":         extreme(-1),
	"least":       extreme(-1),
	"max":         extreme(1),
	"greatest":    extreme(1),
	"pow":         binary(fnPow),
	"sqrt":        unary(floatFunc(func(x float64) (float64, bool) { return math.Sqrt(x), x >= 0 })),
	"log":         unary(floatFunc(func(x float64) (float64, bool) { return math.Log(x), x > 0 })),
	"exp":         unary(floatFunc(func(x float64) (float64, bool) { return math.Exp(x), true })),
	"mod":         binary(fnMod),
}

func lookup(name string) function { return functions[name] }

// Functions lists the names of every built-in function.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unary(fn func(columnar.Value) columnar.Value) function {
	return func(args []columnar.Value) columnar.Value {
		if len(args) != 1 {
			return columnar.Null()
		}
		return fn(args[0])
	}
}

func binary(fn func(a, b columnar.Value) columnar.Value) function {
	return func(args []columnar.Value) columnar.Value {
		if len(args) != 2 {
			return columnar.Null()
		}
		return fn(args[0], args[1])
	}
}

// toInt reads an integral argument, truncating floats. Other types read as 0.
func toInt(v columnar.Value) int64 {
	switch v.Type {
	case columnar.TypeInt64:
		return v.I
	case columnar.TypeFloat64:
		return int64(v.F)
	}
	return 0
}

func fnUpper(v columnar.Value) columnar.Value {
	if v.IsNull() {
		return v
	}
	return columnar.Str(strings.ToUpper(v.String()))
}

func fnLower(v columnar.Value) columnar.Value {
	if v.IsNull() {
		return v
	}
	return columnar.Str(strings.ToLower(v.String()))
}

func fnLen(v columnar.Value) columnar.Value {
	if v.Type != columnar.TypeString {
		return columnar.Null()
	}
	return columnar.Int(int64(len(v.S)))
}

func fnTrim(v columnar.Value) columnar.Value {
	if v.Type != columnar.TypeString {
		return columnar.Null()
	}
	return columnar.Str(strings.TrimSpace(v.S))
}

// fnInitcap title-cases each word, where words are separated by spaces,
// underscores or hyphens.
func fnInitcap(v columnar.Value) columnar.Value {
	if v.IsNull() {
		return v
	}
	s := v.String()
	caser := cases.Title(language.Und)
	var sb strings.Builder
	sb.Grow(len(s))
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && !isWordBreak(s[i]) {
			continue
		}
		sb.WriteString(caser.String(s[start:i]))
		if i < len(s) {
			sb.WriteByte(s[i])
		}
		start = i + 1
	}
	return columnar.Str(sb.String())
}

func isWordBreak(c byte) bool { return isSpace(c) || c == '_' || c == '-' }

func stringPredicate(fn func(s, sub string) bool) func(a, b columnar.Value) columnar.Value {
	return func(a, b columnar.Value) columnar.Value {
		if a.IsNull() || b.IsNull() {
			return columnar.Null()
		}
		if a.Type != columnar.TypeString || b.Type != columnar.TypeString {
			return columnar.Bool(false)
		}
		return columnar.Bool(fn(a.S, b.S))
	}
}

// fnSlice is slice(s, start[, length]). A negative start counts from the end
// and a negative or missing length takes the rest of the string.
func fnSlice(args []columnar.Value) columnar.Value {
	if len(args) < 2 || len(args) > 3 || args[0].Type != columnar.TypeString {
		return columnar.Null()
	}
	s := args[0].S
	start := toInt(args[1])
	n := int64(-1)
	if len(args) == 3 {
		n = toInt(args[2])
	}
	if start < 0 {
		start += int64(len(s))
	}
	if start < 0 {
		start = 0
	}
	if start >= int64(len(s)) {
		return columnar.Str("")
	}
	rest := s[start:]
	if n >= 0 && n < int64(len(rest)) {
		rest = rest[:n]
	}
	return columnar.Str(rest)
}

func fnConcat(args []columnar.Value) columnar.Value {
	var sb strings.Builder
	for _, a := range args {
		if !a.IsNull() {
			sb.WriteString(a.String())
		}
	}
	return columnar.Str(sb.String())
}

func pad(left bool) function {
	return func(args []columnar.Value) columnar.Value {
		if len(args) < 2 || len(args) > 3 || args[0].IsNull() {
			return columnar.Null()
		}
		s := args[0].String()
		width := int(toInt(args[1]))
		fill := " "
		if len(args) == 3 && args[2].Type == columnar.TypeString && args[2].S != "" {
			fill = args[2].S[:1]
		}
		if len(s) >= width {
			return columnar.Str(s)
		}
		padding := strings.Repeat(fill, width-len(s))
		if left {
			return columnar.Str(padding + s)
		}
		return columnar.Str(s + padding)
	}
}

func fnLeft(s, n columnar.Value) columnar.Value {
	if s.Type != columnar.TypeString {
		return columnar.Null()
	}
	k := clampLen(toInt(n), len(s.S))
	return columnar.Str(s.S[:k])
}

func fnRight(s, n columnar.Value) columnar.Value {
	if s.Type != columnar.TypeString {
		return columnar.Null()
	}
	k := clampLen(toInt(n), len(s.S))
	return columnar.Str(s.S[len(s.S)-k:])
}

func clampLen(n int64, max int) int {
	if n < 0 {
		return 0
	}
	if n > int64(max) {
		return max
	}
	return int(n)
}

func fnReplace(args []columnar.Value) columnar.Value {
	if len(args) != 3 {
		return columnar.Null()
	}
	for _, a := range args {
		if a.Type != columnar.TypeString {
			return columnar.Null()
		}
	}
	if args[1].S == "" {
		return args[0]
	}
	return columnar.Str(strings.ReplaceAll(args[0].S, args[1].S, args[2].S))
}

// fnIf is if(cond, then, else). A non-bool condition is true when it is a
// non-null value other than numeric zero.
func fnIf(args []columnar.Value) columnar.Value {
	if len(args) != 3 {
		return columnar.Null()
	}
	cond := args[0]
	var ok bool
	switch cond.Type {
	case columnar.TypeBool:
		ok = cond.B
	case columnar.TypeNull:
		ok = false
	case columnar.TypeInt64:
		ok = cond.I != 0
	case columnar.TypeFloat64:
		ok = cond.F != 0
	default:
		ok = true
	}
	if ok {
		return args[1]
	}
	return args[2]
}

func fnCoalesce(args []columnar.Value) columnar.Value {
	for _, a := range args {
		if !a.IsNull() {
			return a
		}
	}
	return columnar.Null()
}

func fnNullif(a, b columnar.Value) columnar.Value {
	if a.IsNull() || b.IsNull() {
		return a
	}
	if a.Type == columnar.TypeInt64 && b.Type == columnar.TypeInt64 {
		if a.I == b.I {
			return columnar.Null()
		}
		return a
	}
	if af, ok := a.AsFloat(); ok {
		if bf, ok := b.AsFloat(); ok && af == bf {
			return columnar.Null()
		}
		return a
	}
	if a.Type == columnar.TypeString && b.Type == columnar.TypeString && a.S == b.S {
		return columnar.Null()
	}
	return a
}

func fnAbs(v columnar.Value) columnar.Value {
	switch v.Type {
	case columnar.TypeInt64:
		if v.I < 0 {
			return columnar.Int(-v.I)
		}
		return v
	case columnar.TypeFloat64:
		return columnar.Float(math.Abs(v.F))
	}
	return columnar.Null()
}

// rounding passes ints through and turns floats into int64.
func rounding(fn func(float64) float64) func(columnar.Value) columnar.Value {
	return func(v columnar.Value) columnar.Value {
		switch v.Type {
		case columnar.TypeInt64:
			return v
		case columnar.TypeFloat64:
			if math.IsNaN(v.F) || math.IsInf(v.F, 0) {
				return columnar.Null()
			}
			return columnar.Int(int64(fn(v.F)))
		}
		return columnar.Null()
	}
}

func fnSign(v columnar.Value) columnar.Value {
	f, ok := v.AsFloat()
	if !ok {
		return columnar.Null()
	}
	switch {
	case f > 0:
		return columnar.Int(1)
	case f < 0:
		return columnar.Int(-1)
	}
	return columnar.Int(0)
}

// extreme returns min (dir -1) or max (dir 1) of two or more numeric
// arguments. The result is int64 only when every argument is.
func extreme(dir int) function {
	return func(args []columnar.Value) columnar.Value {
		if len(args) < 2 {
			return columnar.Null()
		}
		allInt := true
		best := args[0]
		for _, a := range args {
			if !a.Type.IsNumeric() {
				return columnar.Null()
			}
			allInt = allInt && a.Type == columnar.TypeInt64
		}
		if allInt {
			for _, a := range args[1:] {
				if (dir < 0 && a.I < best.I) || (dir > 0 && a.I > best.I) {
					best = a
				}
			}
			return best
		}
		bf, _ := best.AsFloat()
		for _, a := range args[1:] {
			f, _ := a.AsFloat()
			if (dir < 0 && f < bf) || (dir > 0 && f > bf) {
				bf = f
			}
		}
		return columnar.Float(bf)
	}
}

func fnPow(x, y columnar.Value) columnar.Value {
	xf, ok := x.AsFloat()
	if !ok {
		return columnar.Null()
	}
	yf, ok := y.AsFloat()
	if !ok {
		return columnar.Null()
	}
	return columnar.Float(math.Pow(xf, yf))
}

func floatFunc(fn func(float64) (float64, bool)) func(columnar.Value) columnar.Value {
	return func(v columnar.Value) columnar.Value {
		x, ok := v.AsFloat()
		if !ok {
			return columnar.Null()
		}
		r, ok := fn(x)
		if !ok {
			return columnar.Null()
		}
		return columnar.Float(r)
	}
}

func fnMod(a, b columnar.Value) columnar.Value {
	if a.Type == columnar.TypeInt64 && b.Type == columnar.TypeInt64 {
		if b.I == 0 {
			return columnar.Null()
		}
		return columnar.Int(a.I % b.I)
	}
	af, ok := a.AsFloat()
	if !ok {
		return columnar.Null()
	}
	bf, ok := b.AsFloat()
	if !ok || bf == 0 {
		return columnar.Null()
	}
	return columnar.Float(math.Mod(af, bf))
}
