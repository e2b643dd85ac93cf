package codec

import (
	"bytes"
	"math"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	jsonpool "github.com/ajitpratap0/strata/pkg/json"
	stringpool "github.com/ajitpratap0/strata/pkg/strings"
)

const jsonlDecodeOp = "codec.jsonl.decode"

// JSONLDecodeConfig configures JSONLDecoder.
type JSONLDecodeConfig struct {
	BatchSize int `json:"batch_size"`
}

// JSONLDecoder reads one JSON object per line. The schema comes from the
// keys of the first object in document order; later keys outside it are
// ignored and missing keys are null.
type JSONLDecoder struct {
	size    int
	side    *pipeline.SideChannels
	pending []byte
	line    int64
	fields  []columnar.Field
	index   map[string]int
	cur     *columnar.Batch
	out     []*columnar.Batch
}

// NewJSONLDecoder creates a JSON lines decoder.
func NewJSONLDecoder(cfg JSONLDecodeConfig) (*JSONLDecoder, error) {
	return &JSONLDecoder{size: batchSize(cfg.BatchSize)}, nil
}

func (d *JSONLDecoder) BindSideChannels(side *pipeline.SideChannels) { d.side = side }

func (d *JSONLDecoder) Decode(data []byte) ([]*columnar.Batch, error) {
	d.pending = append(d.pending, data...)
	rest := splitLines(d.pending, d.add)
	d.pending = d.pending[:copy(d.pending, rest)]
	return d.take(), nil
}

// objectKeys returns the top-level keys of a JSON object in document
// order. The input must already be known to be a valid object.
func objectKeys(obj []byte) []string {
	var keys []string
	depth := 0
	expectKey := false
	for i := 0; i < len(obj); i++ {
		switch c := obj[i]; c {
		case '{', '[':
			depth++
			expectKey = depth == 1 && c == '{'
		case '}', ']':
			depth--
		case ',':
			expectKey = depth == 1
		case '"':
			start := i
			for i++; i < len(obj) && obj[i] != '"'; i++ {
				if obj[i] == '\\' {
					i++
				}
			}
			if expectKey {
				var key string
				if err := jsonpool.Unmarshal(obj[start:i+1], &key); err == nil {
					keys = append(keys, key)
				}
				expectKey = false
			}
		}
	}
	return keys
}

// jsonValue maps a decoded JSON value onto a batch value. Nested objects
// and arrays are re-encoded as strings.
func jsonValue(v interface{}) columnar.Value {
	switch x := v.(type) {
	case nil:
		return columnar.Null()
	case bool:
		return columnar.Bool(x)
	case string:
		return columnar.Str(x)
	case gojson.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return columnar.Int(i)
		}
		if f, err := strconv.ParseFloat(string(x), 64); err == nil {
			return columnar.Float(f)
		}
		return columnar.Str(string(x))
	case float64:
		return columnar.Float(x)
	}
	b, err := jsonpool.Marshal(v)
	if err != nil {
		return columnar.Null()
	}
	return columnar.Str(string(b))
}

func (d *JSONLDecoder) add(line []byte) {
	d.line++
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	var obj map[string]interface{}
	if err := jsonpool.NewDecoder(bytes.NewReader(line)).Decode(&obj); err != nil || obj == nil {
		if err == nil {
			d.side.Errorf(jsonlDecodeOp, "line %d: not a JSON object", d.line)
		} else {
			d.side.Errorf(jsonlDecodeOp, "line %d: %v", d.line, err)
		}
		return
	}
	if d.fields == nil {
		d.index = make(map[string]int)
		for _, k := range objectKeys(line) {
			if _, dup := d.index[k]; dup {
				continue
			}
			t := jsonValue(obj[k]).Type
			if t == columnar.TypeNull {
				t = columnar.TypeString
			}
			d.index[stringpool.Clone(k)] = len(d.fields)
			d.fields = append(d.fields, columnar.Field{Name: k, Type: t})
		}
	}
	if d.cur == nil {
		d.cur = columnar.NewBatchFromFields(d.fields, d.size)
	}
	row := d.cur.Rows()
	d.cur.SetRows(row + 1)
	for k, v := range obj {
		if c, ok := d.index[k]; ok {
			d.cur.SetValue(row, c, jsonValue(v))
		}
	}
	if d.cur.Rows() >= d.size {
		d.out = append(d.out, d.cur)
		d.cur = nil
	}
}

func (d *JSONLDecoder) take() []*columnar.Batch {
	out := d.out
	d.out = nil
	return out
}

func (d *JSONLDecoder) Flush() ([]*columnar.Batch, error) {
	if len(d.pending) > 0 {
		d.add(trimCR(d.pending))
		d.pending = d.pending[:0]
	}
	if d.cur != nil && d.cur.Rows() > 0 {
		d.out = append(d.out, d.cur)
	}
	d.cur = nil
	return d.take(), nil
}

func (d *JSONLDecoder) Close() {
	d.pending = nil
	d.cur = nil
	d.out = nil
}

// JSONLEncoder writes one JSON object per row. Dates and timestamps are
// rendered as strings; non-finite floats as null.
type JSONLEncoder struct {
	keys [][]byte
	line []byte
}

// NewJSONLEncoder creates a JSON lines encoder.
func NewJSONLEncoder() (*JSONLEncoder, error) {
	return &JSONLEncoder{}, nil
}

func appendJSONValue(dst []byte, v columnar.Value) []byte {
	switch v.Type {
	case columnar.TypeNull:
		return append(dst, "null"...)
	case columnar.TypeBool:
		return strconv.AppendBool(dst, v.B)
	case columnar.TypeInt64:
		return strconv.AppendInt(dst, v.I, 10)
	case columnar.TypeFloat64:
		if math.IsNaN(v.F) || math.IsInf(v.F, 0) {
			return append(dst, "null"...)
		}
		return append(dst, columnar.FormatFloat(v.F)...)
	}
	return jsonpool.AppendString(dst, v.String())
}

func (e *JSONLEncoder) Encode(in *columnar.Batch, out *buffer.Buffer) error {
	e.keys = e.keys[:0]
	for c := 0; c < in.NumCols(); c++ {
		key := jsonpool.AppendString(nil, in.Name(c))
		e.keys = append(e.keys, append(key, ':'))
	}
	for r := 0; r < in.Rows(); r++ {
		e.line = append(e.line[:0], '{')
		for c, key := range e.keys {
			if c > 0 {
				e.line = append(e.line, ',')
			}
			e.line = append(e.line, key...)
			e.line = appendJSONValue(e.line, in.Value(r, c))
		}
		e.line = append(e.line, '}', '\n')
		if _, err := out.Write(e.line); err != nil {
			return err
		}
	}
	return nil
}

func (e *JSONLEncoder) Flush(*buffer.Buffer) error { return nil }

func (e *JSONLEncoder) Close() {
	e.keys = nil
	e.line = nil
}
