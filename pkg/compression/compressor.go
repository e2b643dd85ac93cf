// Package compression wraps encoded pipeline output and input in a
// compressed container. Every algorithm is exposed both as a streaming
// io.WriteCloser/io.ReadCloser pair and as one-shot helpers.
//
// # Algorithm Selection
//
//   - Snappy/S2: fast, moderate ratio
//   - LZ4: fastest, decent ratio
//   - Zstd: best ratio, good speed
//   - Gzip/Deflate: widest tool support
//
// # Basic Usage
//
//	w, err := compression.NewWriter(os.Stdout, compression.Zstd, compression.Default)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	runner.Run(ctx, os.Stdin, w)
//
// Compressed input can be sniffed with Detect and opened with NewReader.
package compression

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/strata/pkg/errors"
	stringpool "github.com/ajitpratap0/strata/pkg/strings"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None passes bytes through unchanged
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (snappy-compatible, better ratio)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// Level represents compression level.
type Level int

const (
	// Fastest compression
	Fastest Level = 1
	// Default compression
	Default Level = 5
	// Better compression
	Better Level = 7
	// Best compression
	Best Level = 9
)

var extensions = map[Algorithm]string{
	None:    "",
	Gzip:    ".gz",
	Snappy:  ".sz",
	LZ4:     ".lz4",
	Zstd:    ".zst",
	S2:      ".s2",
	Deflate: ".deflate",
}

// Algorithms lists every supported algorithm in name order.
func Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(extensions))
	for a := range extensions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseAlgorithm resolves a case-insensitive algorithm name. The empty
// string means None.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if a == "" {
		return None, nil
	}
	if _, ok := extensions[a]; !ok {
		return None, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", name)
	}
	return a, nil
}

// Extension returns the conventional file suffix for a, including the dot.
func (a Algorithm) Extension() string { return extensions[a] }

// ValidLevel reports whether l is within [Fastest, Best] or zero (Default).
func ValidLevel(l Level) bool { return l == 0 || (l >= Fastest && l <= Best) }

var magic = []struct {
	algorithm Algorithm
	prefix    []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{LZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
	{Snappy, []byte("\xff\x06\x00\x00sNaPpY")},
	{S2, []byte("\xff\x06\x00\x00S2sTwO")},
}

// Detect identifies a compressed stream by its leading magic bytes. Raw
// deflate carries no header, so it is never detected; unknown data is None.
func Detect(header []byte) Algorithm {
	for _, m := range magic {
		if bytes.HasPrefix(header, m.prefix) {
			return m.algorithm
		}
	}
	return None
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w so that bytes written are compressed with algorithm at
// level. Closing the returned writer flushes the trailer but leaves w open.
func NewWriter(w io.Writer, algorithm Algorithm, level Level) (io.WriteCloser, error) {
	if !ValidLevel(level) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid compression level %d", level)
	}
	switch algorithm {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriterLevel(w, mapGzipLevel(level))
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "lz4 options")
		}
		return lw, nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
	case S2:
		return s2.NewWriter(w, s2Options(level)...), nil
	case Deflate:
		return flate.NewWriter(w, mapDeflateLevel(level))
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", algorithm)
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader wraps r so that reads return the decompressed stream.
func NewReader(r io.Reader, algorithm Algorithm) (io.ReadCloser, error) {
	switch algorithm {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid gzip stream")
		}
		return gr, nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid zstd stream")
		}
		return zstdReadCloser{dec}, nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case Deflate:
		return flate.NewReader(r), nil
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", algorithm)
}

// OpenReader sniffs the head of r and returns a decompressing reader when a
// known container is found, or r unchanged otherwise.
func OpenReader(r io.Reader) (io.ReadCloser, Algorithm, error) {
	br := &peekReader{r: r}
	head, err := br.peek(16)
	if err != nil {
		return nil, None, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input header")
	}
	algorithm := Detect(head)
	rc, err := NewReader(br, algorithm)
	return rc, algorithm, err
}

// peekReader replays a buffered prefix before reading through to r.
type peekReader struct {
	r    io.Reader
	head []byte
}

func (p *peekReader) peek(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(p.r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	p.head = buf[:got]
	return p.head, err
}

func (p *peekReader) Read(b []byte) (int, error) {
	if len(p.head) > 0 {
		n := copy(b, p.head)
		p.head = p.head[n:]
		return n, nil
	}
	return p.r.Read(b)
}

var zstdDecoders = sync.Pool{
	New: func() interface{} {
		dec, _ := zstd.NewReader(nil)
		return dec
	},
}

// Compress compresses data in one shot.
func Compress(data []byte, algorithm Algorithm, level Level) ([]byte, error) {
	switch algorithm {
	case None, "":
		return append([]byte(nil), data...), nil
	case S2:
		if level >= Better {
			return s2.EncodeBetter(nil, data), nil
		}
		return s2.Encode(nil, data), nil
	}

	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	w, err := NewWriter(builder, algorithm, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "compress")
	}

	result := make([]byte, builder.Len())
	copy(result, builder.Bytes())
	return result, nil
}

// Decompress reverses Compress.
func Decompress(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case S2:
		out, err := s2.Decode(nil, data)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid s2 block")
		}
		return out, nil
	case Zstd:
		dec := zstdDecoders.Get().(*zstd.Decoder)
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid zstd stream")
		}
		return out, nil
	}

	r, err := NewReader(bytes.NewReader(data), algorithm)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	builder := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(builder, stringpool.Medium)

	if _, err := io.Copy(builder, r); err != nil { //nolint:gosec // G110: caller controls input size
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decompress")
	}
	result := make([]byte, builder.Len())
	copy(result, builder.Bytes())
	return result, nil
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func s2Options(level Level) []s2.WriterOption {
	switch {
	case level == Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	case level >= Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	}
	return nil
}
