package expr

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// Parse compiles src. Unknown function names are accepted and evaluate to
// null; malformed syntax and trailing input are validation errors.
func Parse(src string) (*Expr, error) {
	p := &parser{src: src}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return &Expr{src: src, root: root}, nil
}

// MustParse is Parse for expressions known to be valid. It panics on error.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeValidation, format, args...).
		WithDetail("expr", p.src).
		WithDetail("offset", p.pos)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) consume(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) keyword(kw string) bool {
	p.skipSpace()
	end := p.pos + len(kw)
	if end > len(p.src) || p.src[p.pos:end] != kw {
		return false
	}
	if end < len(p.src) && isIdent(p.src[end]) {
		return false
	}
	p.pos = end
	return true
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logical{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logical{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.keyword("not") {
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &not{child: child}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (node, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	op, ok := p.compareOp()
	if !ok {
		return left, nil
	}
	right, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	return &compare{op: op, left: left, right: right}, nil
}

func (p *parser) compareOp() (cmpOp, bool) {
	p.skipSpace()
	rest := p.src[p.pos:]
	for _, op := range []cmpOp{opGe, opLe, opEq, opNe, opGt, opLt} {
		if strings.HasPrefix(rest, cmpOps[op]) {
			p.pos += len(cmpOps[op])
			return op, true
		}
	}
	return 0, false
}

func (p *parser) parseAdd() (node, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c != '+' && c != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = &arith{op: c, left: left, right: right}
	}
}

func (p *parser) parseMul() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c != '*' && c != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &arith{op: c, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if !p.consume('-') {
		return p.parseAtom()
	}
	child, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	// fold negative literals
	if lit, ok := child.(*literal); ok {
		switch lit.v.Type {
		case columnar.TypeInt64:
			return &literal{v: columnar.Int(-lit.v.I)}, nil
		case columnar.TypeFloat64:
			return &literal{v: columnar.Float(-lit.v.F)}, nil
		}
	}
	return &neg{child: child}, nil
}

func (p *parser) parseAtom() (node, error) {
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of expression")
	case c == '(':
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.consume(')') {
			return nil, p.errorf("expected ')'")
		}
		return inner, nil
	case c == '\'' || c == '"':
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return &literal{v: columnar.Str(s)}, nil
	case isDigit(c):
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseIdent()
	}
	return nil, p.errorf("unexpected character %q", c)
}

func (p *parser) parseString() (string, error) {
	quote := p.src[p.pos]
	end := strings.IndexByte(p.src[p.pos+1:], quote)
	if end < 0 {
		return "", p.errorf("unterminated string")
	}
	s := p.src[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return s, nil
}

func (p *parser) parseNumber() (node, error) {
	start := p.pos
	isFloat := false
	p.digits()
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		isFloat = true
		p.pos++
		p.digits()
	}
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		isFloat = true
		p.pos++
		if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
			p.pos++
		}
		p.digits()
	}
	text := p.src[start:p.pos]
	if !isFloat {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &literal{v: columnar.Int(i)}, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("invalid number %q", text)
	}
	return &literal{v: columnar.Float(f)}, nil
}

func (p *parser) digits() {
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && isIdent(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) parseIdent() (node, error) {
	start := p.pos
	name := p.ident()
	switch name {
	case "and", "or", "not":
		p.pos = start
		return nil, p.errorf("unexpected keyword %q", name)
	}
	if !p.consume('(') {
		p.pos = start
		return nil, p.errorf("bare identifier %q, use col('%s')", name, name)
	}

	if name == "col" {
		var col string
		switch c := p.peek(); {
		case c == '\'' || c == '"':
			s, err := p.parseString()
			if err != nil {
				return nil, err
			}
			col = s
		case isIdentStart(c) || isDigit(c):
			col = p.ident()
		default:
			return nil, p.errorf("expected column name")
		}
		if !p.consume(')') {
			return nil, p.errorf("expected ')' after column name")
		}
		return &colRef{name: col}, nil
	}

	var args []node
	if !p.consume(')') {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.consume(',') {
				continue
			}
			if !p.consume(')') {
				return nil, p.errorf("expected ',' or ')' in call to %s", name)
			}
			break
		}
	}
	return &call{name: name, fn: lookup(name), args: args}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool { return isIdentStart(c) || isDigit(c) }
