package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/errors"
)

var sample = []byte(strings.Repeat("name,age\nann,31\nbob,42\n", 200))

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"gzip", "GZIP", " zstd ", "lz4", "s2", "snappy", "deflate", "none"} {
		_, err := ParseAlgorithm(name)
		assert.NoError(t, err, name)
	}

	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	_, err = ParseAlgorithm("brotli")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestAlgorithmsSorted(t *testing.T) {
	algs := Algorithms()
	require.Len(t, algs, 7)
	assert.Equal(t, Deflate, algs[0])
	assert.Equal(t, Zstd, algs[len(algs)-1])
	assert.Equal(t, ".zst", Zstd.Extension())
	assert.Equal(t, "", None.Extension())
}

func TestStreamRoundTrip(t *testing.T) {
	for _, alg := range Algorithms() {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(alg), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(&buf, alg, level)
				require.NoError(t, err)
				// several small writes as the pipeline produces them
				for i := 0; i < len(sample); i += 100 {
					end := i + 100
					if end > len(sample) {
						end = len(sample)
					}
					_, err := w.Write(sample[i:end])
					require.NoError(t, err)
				}
				require.NoError(t, w.Close())
				if alg != None {
					assert.Less(t, buf.Len(), len(sample))
				}

				r, err := NewReader(&buf, alg)
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, sample, got)
			})
		}
	}
}

func TestOneShotRoundTrip(t *testing.T) {
	for _, alg := range Algorithms() {
		packed, err := Compress(sample, alg, Better)
		require.NoError(t, err, alg)
		got, err := Decompress(packed, alg)
		require.NoError(t, err, alg)
		assert.Equal(t, sample, got, alg)
	}
}

func TestInvalidLevel(t *testing.T) {
	_, err := NewWriter(io.Discard, Gzip, 12)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.True(t, ValidLevel(0))
}

func TestDetectAndOpen(t *testing.T) {
	for _, alg := range []Algorithm{Gzip, Zstd, LZ4, Snappy, S2} {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, alg, Default)
		require.NoError(t, err)
		_, err = w.Write(sample)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.Equal(t, alg, Detect(buf.Bytes()), alg)

		r, found, err := OpenReader(&buf)
		require.NoError(t, err)
		assert.Equal(t, alg, found)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, sample, got)
	}
}

func TestOpenReaderPlain(t *testing.T) {
	r, found, err := OpenReader(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, None, found)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(got))

	r, found, err = OpenReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, None, found)
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecompressCorrupt(t *testing.T) {
	_, err := Decompress([]byte("not gzip"), Gzip)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func BenchmarkWriter(b *testing.B) {
	for _, alg := range []Algorithm{Gzip, Zstd, LZ4, S2} {
		b.Run(string(alg), func(b *testing.B) {
			b.SetBytes(int64(len(sample)))
			for i := 0; i < b.N; i++ {
				w, _ := NewWriter(io.Discard, alg, Default)
				_, _ = w.Write(sample)
				_ = w.Close()
			}
		})
	}
}
