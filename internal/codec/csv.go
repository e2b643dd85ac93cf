package codec

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	stringpool "github.com/ajitpratap0/strata/pkg/strings"
)

const csvDecodeOp = "codec.csv.decode"

// CSVDecodeConfig configures CSVDecoder.
type CSVDecodeConfig struct {
	Delimiter string `json:"delimiter"`
	Header    *bool  `json:"header"`
	BatchSize int    `json:"batch_size"`
	Repair    bool   `json:"repair"`
}

func delimiter(s string) (rune, error) {
	if s == "" {
		return ',', nil
	}
	r, n := utf8.DecodeRuneInString(s)
	if n != len(s) || r == '"' || r == '\n' || r == '\r' || r == utf8.RuneError {
		return 0, errors.Newf(errors.ErrorTypeValidation, "invalid delimiter %q", s)
	}
	return r, nil
}

// CSVDecoder parses RFC 4180 records into typed batches. Column types are
// detected over the first batch and frozen afterwards.
type CSVDecoder struct {
	delim  rune
	header bool
	size   int
	repair bool
	side   *pipeline.SideChannels

	pending []byte
	names   []string
	types   []columnar.Type
	frozen  bool
	raw     [][]string
	cur     *columnar.Batch
	out     []*columnar.Batch
}

// NewCSVDecoder creates a CSV decoder. With header false, columns are named
// col1, col2, ... after the width of the first record.
func NewCSVDecoder(cfg CSVDecodeConfig) (*CSVDecoder, error) {
	delim, err := delimiter(cfg.Delimiter)
	if err != nil {
		return nil, err
	}
	header := true
	if cfg.Header != nil {
		header = *cfg.Header
	}
	return &CSVDecoder{
		delim:  delim,
		header: header,
		size:   batchSize(cfg.BatchSize),
		repair: cfg.Repair,
	}, nil
}

func (d *CSVDecoder) BindSideChannels(side *pipeline.SideChannels) { d.side = side }

// recordBoundary returns the length of the longest prefix of data that
// ends with a newline outside of quotes.
func recordBoundary(data []byte) int {
	quoted := false
	end := 0
	for i, c := range data {
		switch c {
		case '"':
			quoted = !quoted
		case '\n':
			if !quoted {
				end = i + 1
			}
		}
	}
	return end
}

func (d *CSVDecoder) Decode(data []byte) ([]*columnar.Batch, error) {
	d.pending = append(d.pending, data...)
	n := recordBoundary(d.pending)
	if n == 0 {
		return nil, nil
	}
	if err := d.parse(d.pending[:n]); err != nil {
		return nil, err
	}
	d.pending = d.pending[:copy(d.pending, d.pending[n:])]
	return d.take(), nil
}

func (d *CSVDecoder) parse(chunk []byte) error {
	r := csv.NewReader(bytes.NewReader(chunk))
	r.Comma = d.delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = d.repair
	r.ReuseRecord = true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		var perr *csv.ParseError
		if stderrors.As(err, &perr) {
			d.side.Errorf(csvDecodeOp, "%v", perr)
			continue
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "csv decode")
		}
		d.record(rec)
	}
}

func trimField(s string) string {
	return strings.Trim(s, " \t")
}

func (d *CSVDecoder) record(rec []string) {
	if d.names == nil {
		d.names = make([]string, len(rec))
		d.types = make([]columnar.Type, len(rec))
		for i, f := range rec {
			if d.header {
				d.names[i] = stringpool.Clone(trimField(f))
			} else {
				d.names[i] = "col" + strconv.Itoa(i+1)
			}
		}
		if d.header {
			return
		}
	}
	if !d.frozen {
		row := make([]string, len(d.names))
		for i := range row {
			if i < len(rec) {
				row[i] = stringpool.Clone(trimField(rec[i]))
				d.types[i] = widenType(d.types[i], detectType(row[i]))
			}
		}
		d.raw = append(d.raw, row)
		if len(d.raw) >= d.size {
			d.freeze()
		}
		return
	}
	if d.cur == nil {
		d.cur = columnar.NewBatchFromFields(d.fields(), d.size)
	}
	row := d.cur.Rows()
	d.cur.SetRows(row + 1)
	for c := range d.names {
		if c < len(rec) {
			parseInto(d.cur, row, c, trimField(rec[c]))
		}
	}
	if d.cur.Rows() >= d.size {
		d.out = append(d.out, d.cur)
		d.cur = nil
	}
}

func (d *CSVDecoder) fields() []columnar.Field {
	fields := make([]columnar.Field, len(d.names))
	for i, n := range d.names {
		fields[i] = columnar.Field{Name: n, Type: d.types[i]}
	}
	return fields
}

// freeze fixes the detected types and converts the buffered rows.
func (d *CSVDecoder) freeze() {
	for i, t := range d.types {
		if t == columnar.TypeNull {
			d.types[i] = columnar.TypeString
		}
	}
	d.frozen = true
	if len(d.raw) == 0 {
		return
	}
	b := columnar.NewBatchFromFields(d.fields(), len(d.raw))
	b.SetRows(len(d.raw))
	for r, row := range d.raw {
		for c, s := range row {
			parseInto(b, r, c, s)
		}
	}
	d.raw = nil
	d.out = append(d.out, b)
}

func (d *CSVDecoder) take() []*columnar.Batch {
	out := d.out
	d.out = nil
	return out
}

// Flush parses an unterminated final record and emits whatever is
// buffered.
func (d *CSVDecoder) Flush() ([]*columnar.Batch, error) {
	if len(bytes.TrimSpace(d.pending)) > 0 {
		if err := d.parse(d.pending); err != nil {
			return nil, err
		}
	}
	d.pending = d.pending[:0]
	if !d.frozen && d.names != nil {
		d.freeze()
	}
	if d.cur != nil && d.cur.Rows() > 0 {
		d.out = append(d.out, d.cur)
	}
	d.cur = nil
	return d.take(), nil
}

func (d *CSVDecoder) Close() {
	d.pending = nil
	d.raw = nil
	d.cur = nil
	d.out = nil
}

func looksNumeric(s string) bool {
	c := s[0]
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

// detectType classifies one field. Empty fields are null.
func detectType(s string) columnar.Type {
	if s == "" {
		return columnar.TypeNull
	}
	if looksNumeric(s) {
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return columnar.TypeInt64
		}
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return columnar.TypeFloat64
		}
	}
	if _, ok := columnar.ParseDate(s); ok {
		return columnar.TypeDate
	}
	if _, ok := columnar.ParseTimestamp(s); ok {
		return columnar.TypeTimestamp
	}
	return columnar.TypeString
}

// widenType merges two detected types: null < int64 < float64, date and
// timestamp meet at timestamp, anything else becomes string.
func widenType(a, b columnar.Type) columnar.Type {
	switch {
	case a == b:
		return a
	case a == columnar.TypeNull:
		return b
	case b == columnar.TypeNull:
		return a
	case a.IsNumeric() && b.IsNumeric():
		return columnar.TypeFloat64
	case a.IsTemporal() && b.IsTemporal():
		return columnar.TypeTimestamp
	}
	return columnar.TypeString
}

// parseInto stores s in b under the column's type, leaving the cell null
// when s is empty or does not parse.
func parseInto(b *columnar.Batch, row, col int, s string) {
	if s == "" {
		return
	}
	switch b.Type(col) {
	case columnar.TypeString:
		b.SetStr(row, col, s)
	case columnar.TypeInt64:
		if looksNumeric(s) {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				b.SetInt64(row, col, i)
			}
		}
	case columnar.TypeFloat64:
		if looksNumeric(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				b.SetFloat64(row, col, f)
			}
		}
	case columnar.TypeDate:
		if days, ok := columnar.ParseDate(s); ok {
			b.SetDate(row, col, days)
		}
	case columnar.TypeTimestamp:
		if us, ok := columnar.ParseTimestamp(s); ok {
			b.SetTimestamp(row, col, us)
		}
	case columnar.TypeBool:
		b.SetBool(row, col, s == "true")
	}
}

// ReadCSVFile decodes a whole CSV file into batches.
func ReadCSVFile(path string, cfg CSVDecodeConfig) ([]*columnar.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read "+path)
	}
	d, err := NewCSVDecoder(cfg)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	out, err := d.Decode(data)
	if err != nil {
		return nil, err
	}
	rest, err := d.Flush()
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

// CSVEncodeConfig configures CSVEncoder.
type CSVEncodeConfig struct {
	Delimiter string `json:"delimiter"`
	Header    *bool  `json:"header"`
}

// CSVEncoder writes RFC 4180 records with a single header line. Nulls are
// empty fields.
type CSVEncoder struct {
	header  bool
	written bool
	sink    sink
	w       *csv.Writer
	record  []string
}

// NewCSVEncoder creates a CSV encoder.
func NewCSVEncoder(cfg CSVEncodeConfig) (*CSVEncoder, error) {
	delim, err := delimiter(cfg.Delimiter)
	if err != nil {
		return nil, err
	}
	e := &CSVEncoder{header: true}
	if cfg.Header != nil {
		e.header = *cfg.Header
	}
	e.w = csv.NewWriter(&e.sink)
	e.w.Comma = delim
	return e, nil
}

func (e *CSVEncoder) Encode(in *columnar.Batch, out *buffer.Buffer) error {
	e.sink.out = out
	if !e.written {
		e.written = true
		if e.header {
			e.record = e.record[:0]
			for c := 0; c < in.NumCols(); c++ {
				e.record = append(e.record, in.Name(c))
			}
			if err := e.w.Write(e.record); err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "csv encode")
			}
		}
	}
	for r := 0; r < in.Rows(); r++ {
		e.record = e.record[:0]
		for c := 0; c < in.NumCols(); c++ {
			if in.IsNull(r, c) {
				e.record = append(e.record, "")
				continue
			}
			e.record = append(e.record, in.Value(r, c).String())
		}
		if err := e.w.Write(e.record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "csv encode")
		}
	}
	e.w.Flush()
	return e.w.Error()
}

func (e *CSVEncoder) Flush(out *buffer.Buffer) error {
	e.sink.out = out
	e.w.Flush()
	return e.w.Error()
}

func (e *CSVEncoder) Close() {
	e.sink.out = nil
	e.record = nil
}
