package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
)

// decodeAll feeds chunks to d, flushes it and merges every batch.
func decodeAll(t *testing.T, d pipeline.Decoder, chunks ...string) []*columnar.Batch {
	t.Helper()
	var out []*columnar.Batch
	for _, c := range chunks {
		got, err := d.Decode([]byte(c))
		require.NoError(t, err)
		out = append(out, got...)
	}
	rest, err := d.Flush()
	require.NoError(t, err)
	return append(out, rest...)
}

// bytewise splits s into single-byte chunks.
func bytewise(s string) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s[i : i+1]
	}
	return out
}

func encodeAll(t *testing.T, e pipeline.Encoder, batches ...*columnar.Batch) []byte {
	t.Helper()
	out := buffer.New()
	for _, b := range batches {
		require.NoError(t, e.Encode(b, out))
	}
	require.NoError(t, e.Flush(out))
	e.Close()
	return append([]byte(nil), out.Bytes()...)
}

func totalRows(batches []*columnar.Batch) int {
	n := 0
	for _, b := range batches {
		n += b.Rows()
	}
	return n
}
