package codec

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

func arrowType(t columnar.Type) arrow.DataType {
	switch t {
	case columnar.TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case columnar.TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case columnar.TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case columnar.TypeDate:
		return arrow.FixedWidthTypes.Date32
	case columnar.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	}
	return arrow.BinaryTypes.String
}

// arrowSchema maps batch fields to a schema of nullable Arrow fields.
// Null-typed columns become all-null strings.
func arrowSchema(fields []columnar.Field) *arrow.Schema {
	out := make([]arrow.Field, len(fields))
	for i, f := range fields {
		out[i] = arrow.Field{Name: f.Name, Type: arrowType(f.Type), Nullable: true}
	}
	return arrow.NewSchema(out, nil)
}

// buildRecord copies b into a new Arrow record. The caller releases it.
func buildRecord(mem memory.Allocator, schema *arrow.Schema, b *columnar.Batch) arrow.Record {
	rb := array.NewRecordBuilder(mem, schema)
	defer rb.Release()
	rb.Reserve(b.Rows())

	for c := 0; c < b.NumCols(); c++ {
		fb := rb.Field(c)
		for r := 0; r < b.Rows(); r++ {
			if b.IsNull(r, c) {
				fb.AppendNull()
				continue
			}
			switch bld := fb.(type) {
			case *array.BooleanBuilder:
				bld.Append(b.Bool(r, c))
			case *array.Int64Builder:
				bld.Append(b.Int64(r, c))
			case *array.Float64Builder:
				bld.Append(b.Float64(r, c))
			case *array.Date32Builder:
				bld.Append(arrow.Date32(b.Date(r, c)))
			case *array.TimestampBuilder:
				bld.Append(arrow.Timestamp(b.Timestamp(r, c)))
			case *array.StringBuilder:
				bld.Append(b.Value(r, c).String())
			default:
				fb.AppendNull()
			}
		}
	}
	return rb.NewRecord()
}

// ArrowEncoder writes an Arrow IPC stream with one record per batch. The
// schema is fixed by the first batch.
type ArrowEncoder struct {
	mem    memory.Allocator
	sink   sink
	fields []columnar.Field
	schema *arrow.Schema
	w      *ipc.Writer
}

// NewArrowEncoder creates an Arrow IPC stream encoder.
func NewArrowEncoder() (*ArrowEncoder, error) {
	return &ArrowEncoder{mem: memory.NewGoAllocator()}, nil
}

// checkSchema fixes the schema on the first call and rejects later
// batches whose fields differ.
func checkSchema(op string, fixed *[]columnar.Field, b *columnar.Batch) error {
	fields := b.Fields()
	if *fixed == nil {
		*fixed = fields
		return nil
	}
	if !sameSchema(*fixed, fields) {
		return errors.Newf(errors.ErrorTypeData, "%s: schema changed mid-stream", op)
	}
	return nil
}

func (e *ArrowEncoder) Encode(in *columnar.Batch, out *buffer.Buffer) error {
	e.sink.out = out
	if err := checkSchema("codec.arrow.encode", &e.fields, in); err != nil {
		return err
	}
	if e.w == nil {
		e.schema = arrowSchema(e.fields)
		e.w = ipc.NewWriter(&e.sink, ipc.WithSchema(e.schema), ipc.WithAllocator(e.mem))
	}
	rec := buildRecord(e.mem, e.schema, in)
	defer rec.Release()
	if err := e.w.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "arrow write")
	}
	return nil
}

// Flush writes the end-of-stream marker.
func (e *ArrowEncoder) Flush(out *buffer.Buffer) error {
	if e.w == nil {
		return nil
	}
	e.sink.out = out
	err := e.w.Close()
	e.w = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "arrow close")
	}
	return nil
}

func (e *ArrowEncoder) Close() {
	e.sink.out = nil
	if e.w != nil {
		_ = e.w.Close()
		e.w = nil
	}
}
