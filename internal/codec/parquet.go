package codec

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// ParquetEncodeConfig configures ParquetEncoder.
type ParquetEncodeConfig struct {
	Compression string `json:"compression"`
}

func parquetCodec(name string) (compress.Compression, bool) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, true
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, true
	case "gzip":
		return compress.Codecs.Gzip, true
	case "zstd":
		return compress.Codecs.Zstd, true
	case "brotli":
		return compress.Codecs.Brotli, true
	}
	return compress.Codecs.Uncompressed, false
}

// ParquetEncoder writes a single Parquet file. Batches are buffered into
// row groups and the footer is written at flush.
type ParquetEncoder struct {
	codec  compress.Compression
	mem    memory.Allocator
	sink   sink
	fields []columnar.Field
	schema *arrow.Schema
	w      *pqarrow.FileWriter
}

// NewParquetEncoder creates a Parquet encoder.
func NewParquetEncoder(cfg ParquetEncodeConfig) (*ParquetEncoder, error) {
	codec, ok := parquetCodec(cfg.Compression)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "codec.parquet.encode: unknown compression %q", cfg.Compression)
	}
	return &ParquetEncoder{codec: codec, mem: memory.NewGoAllocator()}, nil
}

func (e *ParquetEncoder) open() error {
	e.schema = arrowSchema(e.fields)
	props := parquet.NewWriterProperties(
		parquet.WithCompression(e.codec),
		parquet.WithAllocator(e.mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(e.mem))
	w, err := pqarrow.NewFileWriter(e.schema, &e.sink, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "parquet writer")
	}
	e.w = w
	return nil
}

func (e *ParquetEncoder) Encode(in *columnar.Batch, out *buffer.Buffer) error {
	e.sink.out = out
	if err := checkSchema("codec.parquet.encode", &e.fields, in); err != nil {
		return err
	}
	if e.w == nil {
		if err := e.open(); err != nil {
			return err
		}
	}
	rec := buildRecord(e.mem, e.schema, in)
	defer rec.Release()
	if err := e.w.WriteBuffered(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "parquet write")
	}
	return nil
}

// Flush closes the file, writing the footer.
func (e *ParquetEncoder) Flush(out *buffer.Buffer) error {
	if e.w == nil {
		return nil
	}
	e.sink.out = out
	err := e.w.Close()
	e.w = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "parquet close")
	}
	return nil
}

func (e *ParquetEncoder) Close() {
	e.sink.out = nil
	if e.w != nil {
		_ = e.w.Close()
		e.w = nil
	}
}
