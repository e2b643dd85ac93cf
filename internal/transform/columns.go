package transform

import (
	"regexp"
	"strings"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// SelectConfig configures Select.
type SelectConfig struct {
	Columns []string `json:"columns"`
}

// Select projects and reorders columns. Unknown columns become null-typed
// all-null columns and are reported once each on the errors channel.
type Select struct {
	stateless
	columns  []string
	reported map[string]bool
}

// NewSelect creates a select step.
func NewSelect(cfg SelectConfig) (*Select, error) {
	if len(cfg.Columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "select: columns must not be empty")
	}
	return &Select{columns: cfg.Columns, reported: make(map[string]bool)}, nil
}

func (s *Select) Process(in *columnar.Batch, side *pipeline.SideChannels) (*columnar.Batch, error) {
	out := columnar.NewBatch(len(s.columns), in.Rows())
	for i, name := range s.columns {
		src := in.ColIndex(name)
		if src < 0 {
			out.SetSchema(i, name, columnar.TypeNull)
			if !s.reported[name] {
				s.reported[name] = true
				side.Errorf("select", "column '%s' not found", name)
			}
			continue
		}
		out.SetSchema(i, name, in.Type(src))
		columnar.CopyColumn(out, i, in, src)
	}
	out.SetRows(in.Rows())
	return out, nil
}

// RenameConfig configures Rename.
type RenameConfig struct {
	Mapping map[string]string `json:"mapping"`
}

// Rename renames columns; values are untouched.
type Rename struct {
	stateless
	mapping map[string]string
}

// NewRename creates a rename step.
func NewRename(cfg RenameConfig) (*Rename, error) {
	if len(cfg.Mapping) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "rename: mapping must not be empty")
	}
	return &Rename{mapping: cfg.Mapping}, nil
}

func (s *Rename) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := in.Clone()
	for c := 0; c < out.NumCols(); c++ {
		if to, ok := s.mapping[out.Name(c)]; ok {
			out.Rename(c, to)
		}
	}
	return out, nil
}

// TrimConfig configures Trim. An empty column list trims every string
// column.
type TrimConfig struct {
	Columns []string `json:"columns"`
}

// Trim strips leading and trailing whitespace from string cells.
type Trim struct {
	stateless
	columns map[string]bool
}

// NewTrim creates a trim step.
func NewTrim(cfg TrimConfig) (*Trim, error) {
	s := &Trim{}
	if len(cfg.Columns) > 0 {
		s.columns = make(map[string]bool, len(cfg.Columns))
		for _, c := range cfg.Columns {
			s.columns[c] = true
		}
	}
	return s, nil
}

func (s *Trim) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := in.Clone()
	for c := 0; c < out.NumCols(); c++ {
		if out.Type(c) != columnar.TypeString {
			continue
		}
		if s.columns != nil && !s.columns[out.Name(c)] {
			continue
		}
		for r := 0; r < out.Rows(); r++ {
			if out.IsNull(r, c) {
				continue
			}
			v := out.Str(r, c)
			if t := strings.TrimSpace(v); len(t) != len(v) {
				out.SetStr(r, c, t)
			}
		}
	}
	return out, nil
}

// ClipConfig configures Clip. Nil bounds are open.
type ClipConfig struct {
	Column string   `json:"column"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
}

// Clip clamps numeric cells into [min, max]. Int columns stay int with the
// bounds truncated.
type Clip struct {
	stateless
	cfg ClipConfig
}

// NewClip creates a clip step.
func NewClip(cfg ClipConfig) (*Clip, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "clip: column is required")
	}
	return &Clip{cfg: cfg}, nil
}

func (s *Clip) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := in.Clone()
	c := out.ColIndex(s.cfg.Column)
	if c < 0 {
		return out, nil
	}
	for r := 0; r < out.Rows(); r++ {
		if out.IsNull(r, c) {
			continue
		}
		switch out.Type(c) {
		case columnar.TypeInt64:
			v := out.Int64(r, c)
			if s.cfg.Min != nil && v < int64(*s.cfg.Min) {
				v = int64(*s.cfg.Min)
			}
			if s.cfg.Max != nil && v > int64(*s.cfg.Max) {
				v = int64(*s.cfg.Max)
			}
			out.SetInt64(r, c, v)
		case columnar.TypeFloat64:
			v := out.Float64(r, c)
			if s.cfg.Min != nil && v < *s.cfg.Min {
				v = *s.cfg.Min
			}
			if s.cfg.Max != nil && v > *s.cfg.Max {
				v = *s.cfg.Max
			}
			out.SetFloat64(r, c, v)
		}
	}
	return out, nil
}

// ReplaceConfig configures Replace.
type ReplaceConfig struct {
	Column      string `json:"column"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Regex       bool   `json:"regex"`
}

// Replace rewrites a string column. Substring mode replaces every
// occurrence; in regex mode '&' in the replacement stands for the match.
type Replace struct {
	stateless
	cfg ReplaceConfig
	re  *regexp.Regexp
}

// NewReplace creates a replace step.
func NewReplace(cfg ReplaceConfig) (*Replace, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "replace: column is required")
	}
	s := &Replace{cfg: cfg}
	if cfg.Regex {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "replace: invalid pattern")
		}
		s.re = re
	}
	return s, nil
}

func (s *Replace) rewrite(v string) string {
	if s.re != nil {
		return s.re.ReplaceAllStringFunc(v, func(m string) string {
			return strings.ReplaceAll(s.cfg.Replacement, "&", m)
		})
	}
	if s.cfg.Pattern == "" {
		return v
	}
	return strings.ReplaceAll(v, s.cfg.Pattern, s.cfg.Replacement)
}

func (s *Replace) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := in.Clone()
	c := out.ColIndex(s.cfg.Column)
	if c < 0 || out.Type(c) != columnar.TypeString {
		return out, nil
	}
	for r := 0; r < out.Rows(); r++ {
		if out.IsNull(r, c) {
			continue
		}
		v := out.Str(r, c)
		if nv := s.rewrite(v); nv != v {
			out.SetStr(r, c, nv)
		}
	}
	return out, nil
}

// SplitConfig configures Split.
type SplitConfig struct {
	Column    string   `json:"column"`
	Delimiter string   `json:"delimiter"`
	Names     []string `json:"names"`
}

// Split appends one string column per name holding successive parts of the
// source column. Missing parts are null.
type Split struct {
	stateless
	cfg SplitConfig
}

// NewSplit creates a split step.
func NewSplit(cfg SplitConfig) (*Split, error) {
	if cfg.Column == "" || len(cfg.Names) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "split: column and names are required")
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = " "
	}
	return &Split{cfg: cfg}, nil
}

func (s *Split) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	extra := make([]columnar.Field, len(s.cfg.Names))
	for i, n := range s.cfg.Names {
		extra[i] = columnar.Field{Name: n, Type: columnar.TypeString}
	}
	out := extend(in, extra...)
	src := in.ColIndex(s.cfg.Column)
	if src < 0 || in.Type(src) != columnar.TypeString {
		return out, nil
	}
	base := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		if in.IsNull(r, src) || in.Str(r, src) == "" {
			continue
		}
		parts := strings.SplitN(in.Str(r, src), s.cfg.Delimiter, len(s.cfg.Names)+1)
		for k := 0; k < len(s.cfg.Names) && k < len(parts); k++ {
			// a delimiter at the very end leaves the next part null
			if parts[k] == "" && k == len(parts)-1 {
				break
			}
			out.SetStr(r, base+k, parts[k])
		}
	}
	return out, nil
}

// ExplodeConfig configures Explode.
type ExplodeConfig struct {
	Column    string `json:"column"`
	Delimiter string `json:"delimiter"`
}

// Explode emits one row per delimited token of a string column, with the
// token trimmed of spaces. Null and non-string cells pass through; an empty
// string emits nothing.
type Explode struct {
	stateless
	cfg ExplodeConfig
}

// NewExplode creates an explode step.
func NewExplode(cfg ExplodeConfig) (*Explode, error) {
	if cfg.Column == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "explode: column is required")
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	return &Explode{cfg: cfg}, nil
}

func (s *Explode) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	c := in.ColIndex(s.cfg.Column)
	out := columnar.NewBatchLike(in, in.Rows())
	for r := 0; r < in.Rows(); r++ {
		if c < 0 || in.IsNull(r, c) || in.Type(c) != columnar.TypeString {
			out.AppendRow(in, r)
			continue
		}
		v := in.Str(r, c)
		if v == "" {
			continue
		}
		toks := strings.Split(v, s.cfg.Delimiter)
		if toks[len(toks)-1] == "" {
			toks = toks[:len(toks)-1]
		}
		for _, tok := range toks {
			out.AppendRow(in, r)
			out.SetStr(out.Rows()-1, c, strings.Trim(tok, " "))
		}
	}
	if out.Rows() == 0 {
		out.Free()
		return nil, nil
	}
	return out, nil
}

// BinConfig configures Bin.
type BinConfig struct {
	Column     string    `json:"column"`
	Boundaries []float64 `json:"boundaries"`
}

// Bin labels a numeric column with the interval it falls in: "<b0",
// "b(i-1)-b(i)" or "bn+".
type Bin struct {
	stateless
	cfg    BinConfig
	result string
}

// NewBin creates a bin step.
func NewBin(cfg BinConfig) (*Bin, error) {
	if cfg.Column == "" || len(cfg.Boundaries) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "bin: column and boundaries are required")
	}
	for i := 1; i < len(cfg.Boundaries); i++ {
		if cfg.Boundaries[i] <= cfg.Boundaries[i-1] {
			return nil, errors.New(errors.ErrorTypeValidation, "bin: boundaries must be increasing")
		}
	}
	return &Bin{cfg: cfg, result: cfg.Column + "_bin"}, nil
}

func (s *Bin) label(v float64) string {
	b := s.cfg.Boundaries
	if v < b[0] {
		return "<" + columnar.FormatFloat(b[0])
	}
	for i := 1; i < len(b); i++ {
		if v < b[i] {
			return columnar.FormatFloat(b[i-1]) + "-" + columnar.FormatFloat(b[i])
		}
	}
	return columnar.FormatFloat(b[len(b)-1]) + "+"
}

func (s *Bin) Process(in *columnar.Batch, _ *pipeline.SideChannels) (*columnar.Batch, error) {
	out := extend(in, columnar.Field{Name: s.result, Type: columnar.TypeString})
	src := in.ColIndex(s.cfg.Column)
	dst := in.NumCols()
	for r := 0; r < in.Rows(); r++ {
		if v, ok := numeric(in, r, src); ok {
			out.SetStr(r, dst, s.label(v))
		}
	}
	return out, nil
}
