package codec

import (
	"strconv"
	"strings"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	jsonpool "github.com/ajitpratap0/strata/pkg/json"
)

// AvroEncodeConfig configures AvroEncoder.
type AvroEncodeConfig struct {
	Codec string `json:"codec"`
}

// avroName rewrites s into a valid Avro name.
func avroName(s string) string {
	var sb strings.Builder
	for i, r := range s {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
		if !ok {
			if i == 0 && r >= '0' && r <= '9' {
				sb.WriteByte('_')
				sb.WriteRune(r)
				continue
			}
			r = '_'
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

// avroBranch is the union branch name goavro uses for a column type.
func avroBranch(t columnar.Type) string {
	switch t {
	case columnar.TypeBool:
		return "boolean"
	case columnar.TypeInt64:
		return "long"
	case columnar.TypeFloat64:
		return "double"
	case columnar.TypeDate:
		return "int.date"
	case columnar.TypeTimestamp:
		return "long.timestamp-micros"
	}
	return "string"
}

func avroType(t columnar.Type) interface{} {
	switch t {
	case columnar.TypeDate:
		return map[string]string{"type": "int", "logicalType": "date"}
	case columnar.TypeTimestamp:
		return map[string]string{"type": "long", "logicalType": "timestamp-micros"}
	}
	return avroBranch(t)
}

// avroSchema renders a record schema whose fields are ["null", T] unions.
// Field names are sanitised and deduplicated.
func avroSchema(fields []columnar.Field) ([]string, string, error) {
	names := make([]string, len(fields))
	used := make(map[string]bool, len(fields))
	list := make([]map[string]interface{}, len(fields))
	for i, f := range fields {
		name := avroName(f.Name)
		for n := 2; used[name]; n++ {
			name = avroName(f.Name) + "_" + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
		list[i] = map[string]interface{}{
			"name":    name,
			"type":    []interface{}{"null", avroType(f.Type)},
			"default": nil,
		}
	}
	schema, err := jsonpool.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   "Row",
		"fields": list,
	})
	if err != nil {
		return nil, "", err
	}
	return names, string(schema), nil
}

// AvroEncoder writes an Avro object container file with one block per
// batch. All fields are nullable unions.
type AvroEncoder struct {
	compression string
	sink        sink
	fields      []columnar.Field
	names       []string
	w           *goavro.OCFWriter
}

// NewAvroEncoder creates an Avro OCF encoder. Supported codecs are null,
// deflate and snappy.
func NewAvroEncoder(cfg AvroEncodeConfig) (*AvroEncoder, error) {
	switch cfg.Codec {
	case "":
		cfg.Codec = goavro.CompressionNullLabel
	case goavro.CompressionNullLabel, goavro.CompressionDeflateLabel, goavro.CompressionSnappyLabel:
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "codec.avro.encode: unknown codec %q", cfg.Codec)
	}
	return &AvroEncoder{compression: cfg.Codec}, nil
}

func (e *AvroEncoder) open() error {
	names, schema, err := avroSchema(e.fields)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "avro schema")
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "avro codec")
	}
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &e.sink,
		Codec:           codec,
		CompressionName: e.compression,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "avro writer")
	}
	e.names, e.w = names, w
	return nil
}

func avroNative(b *columnar.Batch, row, col int) interface{} {
	if b.IsNull(row, col) {
		return goavro.Union("null", nil)
	}
	t := b.Type(col)
	var v interface{}
	switch t {
	case columnar.TypeBool:
		v = b.Bool(row, col)
	case columnar.TypeInt64:
		v = b.Int64(row, col)
	case columnar.TypeFloat64:
		v = b.Float64(row, col)
	case columnar.TypeDate:
		v = columnar.DateToTime(b.Date(row, col))
	case columnar.TypeTimestamp:
		v = columnar.TimestampToTime(b.Timestamp(row, col))
	default:
		v = b.Value(row, col).String()
	}
	return goavro.Union(avroBranch(t), v)
}

func (e *AvroEncoder) Encode(in *columnar.Batch, out *buffer.Buffer) error {
	e.sink.out = out
	if err := checkSchema("codec.avro.encode", &e.fields, in); err != nil {
		return err
	}
	if e.w == nil {
		if err := e.open(); err != nil {
			return err
		}
	}
	records := make([]interface{}, in.Rows())
	for r := range records {
		rec := make(map[string]interface{}, len(e.names))
		for c, name := range e.names {
			rec[name] = avroNative(in, r, c)
		}
		records[r] = rec
	}
	if err := e.w.Append(records); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "avro append")
	}
	return nil
}

func (e *AvroEncoder) Flush(*buffer.Buffer) error { return nil }

func (e *AvroEncoder) Close() {
	e.sink.out = nil
	e.w = nil
}
