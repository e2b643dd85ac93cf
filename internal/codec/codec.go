package codec

import (
	"bytes"
	"io"

	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
)

// DefaultBatchSize is the number of rows a decoder accumulates before it
// emits a batch.
const DefaultBatchSize = 1024

// LineColumn is the single column produced by the text decoder.
const LineColumn = "_line"

func batchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return n
}

// sink is an io.Writer whose target is swapped for the buffer passed to
// each Encode or Flush call.
type sink struct {
	out *buffer.Buffer
}

func (s *sink) Write(p []byte) (int, error) {
	if s.out == nil {
		return 0, io.ErrClosedPipe
	}
	return s.out.Write(p)
}

// sameSchema reports whether two field lists match by name and type.
func sameSchema(a, b []columnar.Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// splitLines calls fn for every complete line in data, with a trailing \r
// stripped, and returns the unconsumed tail.
func splitLines(data []byte, fn func(line []byte)) []byte {
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return data
		}
		fn(trimCR(data[:i]))
		data = data[i+1:]
	}
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
