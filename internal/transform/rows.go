package transform

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/strata/internal/expr"
	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// FilterConfig configures Filter.
type FilterConfig struct {
	Expr string `json:"expr"`
}

// Filter keeps rows whose expression is truthy and reports per-batch row
// counts on the stats channel.
type Filter struct {
	stateless
	expr *expr.Expr
}

// NewFilter parses the expression and creates a filter step.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	e, err := parseExpr("filter", cfg.Expr)
	if err != nil {
		return nil, err
	}
	return &Filter{expr: e}, nil
}

func parseExpr(op, src string) (*expr.Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.Newf(errors.ErrorTypeValidation, "%s: expr is required", op)
	}
	e, err := expr.Parse(src)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, op)
	}
	return e, nil
}

func (s *Filter) Process(in *columnar.Batch, side *pipeline.SideChannels) (*columnar.Batch, error) {
	out := keepRows(in, func(r int) bool { return s.expr.Test(in, r) })
	side.Stat(pipeline.OpStats{Op: "filter", RowsIn: in.Rows(), RowsOut: rowsOf(out)})
	return out, nil
}

func rowsOf(b *columnar.Batch) int {
	if b == nil {
		return 0
	}
	return b.Rows()
}

// ValidateConfig configures Validate.
type ValidateConfig struct {
	Expr string `json:"expr"`
}

// Validate keeps every row and appends a bool _valid column holding the
// expression's truth.
type Validate struct {
	stateless
	expr *expr.Expr
}

// NewValidate parses the expression and creates a validate step.
func NewValidate(cfg ValidateConfig) (*Validate, error) {
	e, err := parseExpr("validate", cfg.Expr)
	if err != nil {
		return nil, err
	}
	return &Validate{expr: e}, nil
}

func (s *Validate) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := extend(in, columnar.Field{Name: "_valid", Type: columnar.TypeBool})
	dst := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		out.SetBool(r, dst, s.expr.Test(in, r))
	}
	return out, nil
}

// GrepConfig configures Grep.
type GrepConfig struct {
	Pattern string `json:"pattern"`
	Column  string `json:"column"`
	Invert  bool   `json:"invert"`
	Regex   bool   `json:"regex"`
}

// Grep keeps rows whose string column contains a substring or matches a
// regular expression. When the column is missing, inverted grep keeps every
// row and plain grep drops them all.
type Grep struct {
	stateless
	cfg GrepConfig
	re  *regexp.Regexp
}

// NewGrep creates a grep step.
func NewGrep(cfg GrepConfig) (*Grep, error) {
	if cfg.Pattern == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "grep: pattern is required")
	}
	if cfg.Column == "" {
		cfg.Column = "_line"
	}
	s := &Grep{cfg: cfg}
	if cfg.Regex {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "grep: invalid pattern")
		}
		s.re = re
	}
	return s, nil
}

func (s *Grep) match(v string) bool {
	if s.re != nil {
		return s.re.MatchString(v)
	}
	return strings.Contains(v, s.cfg.Pattern)
}

func (s *Grep) Process(in *columnar.Batch, side *pipeline.SideChannels) (*columnar.Batch, error) {
	c := in.ColIndex(s.cfg.Column)
	if c < 0 {
		if s.cfg.Invert {
			return in.Clone(), nil
		}
		return nil, nil
	}
	out := keepRows(in, func(r int) bool {
		m := !in.IsNull(r, c) && in.Type(c) == columnar.TypeString && s.match(in.Str(r, c))
		return m != s.cfg.Invert
	})
	side.Stat(pipeline.OpStats{Op: "grep", RowsIn: in.Rows(), RowsOut: rowsOf(out)})
	return out, nil
}

// HeadConfig configures Head.
type HeadConfig struct {
	N int `json:"n"`
}

// Head passes the first n rows of the stream and drops the rest.
type Head struct {
	stateless
	limit, seen int
}

// NewHead creates a head step.
func NewHead(cfg HeadConfig) (*Head, error) {
	if cfg.N <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "head: n must be positive")
	}
	return &Head{limit: cfg.N}, nil
}

func (s *Head) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	take := s.limit - s.seen
	if take <= 0 {
		return nil, nil
	}
	if take > in.Rows() {
		take = in.Rows()
	}
	s.seen += take
	return sliceRows(in, 0, take), nil
}

// SkipConfig configures Skip.
type SkipConfig struct {
	N int `json:"n"`
}

// Skip drops the first n rows of the stream.
type Skip struct {
	stateless
	n, seen int
}

// NewSkip creates a skip step.
func NewSkip(cfg SkipConfig) (*Skip, error) {
	if cfg.N < 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "skip: n must not be negative")
	}
	return &Skip{n: cfg.N}, nil
}

func (s *Skip) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	from := s.n - s.seen
	if from < 0 {
		from = 0
	}
	if from > in.Rows() {
		from = in.Rows()
	}
	s.seen += from
	return sliceRows(in, from, in.Rows()), nil
}
