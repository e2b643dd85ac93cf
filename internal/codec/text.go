package codec

import (
	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
)

// TextDecodeConfig configures TextDecoder.
type TextDecodeConfig struct {
	BatchSize int `json:"batch_size"`
}

// TextDecoder splits input into lines and emits batches of a single
// string column named _line.
type TextDecoder struct {
	size    int
	pending []byte
	cur     *columnar.Batch
	out     []*columnar.Batch
}

// NewTextDecoder creates a line decoder.
func NewTextDecoder(cfg TextDecodeConfig) (*TextDecoder, error) {
	return &TextDecoder{size: batchSize(cfg.BatchSize)}, nil
}

func (d *TextDecoder) add(line []byte) {
	if d.cur == nil {
		d.cur = columnar.NewBatchFromFields([]columnar.Field{{Name: LineColumn, Type: columnar.TypeString}}, d.size)
	}
	r := d.cur.Rows()
	d.cur.SetRows(r + 1)
	d.cur.SetStr(r, 0, string(line))
	if d.cur.Rows() >= d.size {
		d.out = append(d.out, d.cur)
		d.cur = nil
	}
}

func (d *TextDecoder) Decode(data []byte) ([]*columnar.Batch, error) {
	d.pending = append(d.pending, data...)
	rest := splitLines(d.pending, d.add)
	d.pending = d.pending[:copy(d.pending, rest)]
	return d.take(), nil
}

func (d *TextDecoder) take() []*columnar.Batch {
	out := d.out
	d.out = nil
	return out
}

// Flush emits the trailing line that had no terminator and any partial
// batch.
func (d *TextDecoder) Flush() ([]*columnar.Batch, error) {
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

func (d *TextDecoder) Close() {
	d.pending = nil
	d.cur = nil
	d.out = nil
}

// TextEncoder writes one line per row: the _line column when present,
// otherwise every string column joined by tabs.
type TextEncoder struct{}

// NewTextEncoder creates a line encoder.
func NewTextEncoder() (*TextEncoder, error) {
	return &TextEncoder{}, nil
}

func (e *TextEncoder) Encode(in *columnar.Batch, out *buffer.Buffer) error {
	if line := in.ColIndex(LineColumn); line >= 0 {
		for r := 0; r < in.Rows(); r++ {
			if !in.IsNull(r, line) {
				_, _ = out.WriteString(in.Value(r, line).String())
			}
			_ = out.WriteByte('\n')
		}
		return nil
	}
	for r := 0; r < in.Rows(); r++ {
		for c := 0; c < in.NumCols(); c++ {
			if c > 0 {
				_ = out.WriteByte('\t')
			}
			if in.Type(c) == columnar.TypeString && !in.IsNull(r, c) {
				_, _ = out.WriteString(in.Str(r, c))
			}
		}
		_ = out.WriteByte('\n')
	}
	return nil
}

func (e *TextEncoder) Flush(*buffer.Buffer) error { return nil }

func (e *TextEncoder) Close() {}
