// Package expr parses and evaluates the row expressions used by the filter,
// validate and derive steps.
//
// Grammar, lowest precedence first:
//
//	expr    = or
//	or      = and ("or" and)*
//	and     = not ("and" not)*
//	not     = "not" not | cmp
//	cmp     = add (("==" | "!=" | ">" | ">=" | "<" | "<=") add)?
//	add     = mul (("+" | "-") mul)*
//	mul     = unary (("*" | "/") unary)*
//	unary   = "-" unary | atom
//	atom    = NUMBER | STRING | "col(" (STRING | IDENT) ")" | IDENT "(" args ")" | "(" expr ")"
//
// Strings are single or double quoted and have no escapes. Bare identifiers
// are not column references; columns are always written col('name').
package expr

import (
	"github.com/ajitpratap0/strata/pkg/columnar"
)

// Expr is a parsed expression. It holds no per-row state and may be
// evaluated against any batch.
type Expr struct {
	src  string
	root node
}

// String returns the source text the expression was parsed from.
func (e *Expr) String() string { return e.src }

// Eval evaluates the expression for one row. Evaluation never fails: type
// mismatches, missing columns and unknown functions produce null.
func (e *Expr) Eval(b *columnar.Batch, row int) columnar.Value {
	return e.root.eval(b, row)
}

// Test evaluates the expression as a predicate.
func (e *Expr) Test(b *columnar.Batch, row int) bool {
	return Truthy(e.root.eval(b, row))
}

// Columns lists the column names referenced by the expression in order of
// first appearance.
func (e *Expr) Columns() []string {
	var names []string
	seen := make(map[string]bool)
	walk(e.root, func(n node) {
		if c, ok := n.(*colRef); ok && !seen[c.name] {
			seen[c.name] = true
			names = append(names, c.name)
		}
	})
	return names
}

// Truthy reports how a value behaves as a predicate: a bool is itself and any
// other non-null value is true.
func Truthy(v columnar.Value) bool {
	if v.Type == columnar.TypeBool {
		return v.B
	}
	return !v.IsNull()
}

type node interface {
	eval(b *columnar.Batch, row int) columnar.Value
}

type literal struct{ v columnar.Value }

func (n *literal) eval(*columnar.Batch, int) columnar.Value { return n.v }

type colRef struct{ name string }

func (n *colRef) eval(b *columnar.Batch, row int) columnar.Value {
	c := b.ColIndex(n.name)
	if c < 0 {
		return columnar.Null()
	}
	return b.Value(row, c)
}

type cmpOp uint8

const (
	opEq cmpOp = iota
	opNe
	opGt
	opGe
	opLt
	opLe
)

var cmpOps = [...]string{opEq: "==", opNe: "!=", opGt: ">", opGe: ">=", opLt: "<", opLe: "<="}

type compare struct {
	op          cmpOp
	left, right node
}

func (n *compare) eval(b *columnar.Batch, row int) columnar.Value {
	return columnar.Bool(compareValues(n.left.eval(b, row), n.right.eval(b, row), n.op))
}

type logical struct {
	and         bool
	left, right node
}

func (n *logical) eval(b *columnar.Batch, row int) columnar.Value {
	l := isTrue(n.left.eval(b, row))
	if n.and && !l {
		return columnar.Bool(false)
	}
	if !n.and && l {
		return columnar.Bool(true)
	}
	return columnar.Bool(isTrue(n.right.eval(b, row)))
}

type not struct{ child node }

func (n *not) eval(b *columnar.Batch, row int) columnar.Value {
	return columnar.Bool(!isTrue(n.child.eval(b, row)))
}

type neg struct{ child node }

func (n *neg) eval(b *columnar.Batch, row int) columnar.Value {
	v := n.child.eval(b, row)
	switch v.Type {
	case columnar.TypeInt64:
		return columnar.Int(-v.I)
	case columnar.TypeFloat64:
		return columnar.Float(-v.F)
	}
	return columnar.Null()
}

type arith struct {
	op          byte
	left, right node
}

func (n *arith) eval(b *columnar.Batch, row int) columnar.Value {
	return arithmetic(n.left.eval(b, row), n.right.eval(b, row), n.op)
}

type call struct {
	name string
	fn   function
	args []node
}

func (n *call) eval(b *columnar.Batch, row int) columnar.Value {
	if n.fn == nil {
		return columnar.Null()
	}
	args := make([]columnar.Value, len(n.args))
	for i, a := range n.args {
		args[i] = a.eval(b, row)
	}
	return n.fn(args)
}

// isTrue is the logical-operator view of a value: only bool true counts.
func isTrue(v columnar.Value) bool {
	return v.Type == columnar.TypeBool && v.B
}

func walk(n node, fn func(node)) {
	fn(n)
	switch t := n.(type) {
	case *compare:
		walk(t.left, fn)
		walk(t.right, fn)
	case *logical:
		walk(t.left, fn)
		walk(t.right, fn)
	case *arith:
		walk(t.left, fn)
		walk(t.right, fn)
	case *not:
		walk(t.child, fn)
	case *neg:
		walk(t.child, fn)
	case *call:
		for _, a := range t.args {
			walk(a, fn)
		}
	}
}
