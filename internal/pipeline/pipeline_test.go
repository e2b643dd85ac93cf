package pipeline

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/testutil"
)

// intDecoder parses one integer per line.
type intDecoder struct {
	partial []byte
	closed  int
}

func (d *intDecoder) batch(lines []string) *columnar.Batch {
	b := columnar.NewBatchFromFields([]columnar.Field{{Name: "n", Type: columnar.TypeInt64}}, len(lines))
	for _, l := range lines {
		v, _ := strconv.ParseInt(l, 10, 64)
		b.AppendValues([]columnar.Value{columnar.Int(v)})
	}
	return b
}

func (d *intDecoder) Decode(data []byte) ([]*columnar.Batch, error) {
	d.partial = append(d.partial, data...)
	i := bytes.LastIndexByte(d.partial, '\n')
	if i < 0 {
		return nil, nil
	}
	lines := strings.Split(string(d.partial[:i]), "\n")
	d.partial = append(d.partial[:0], d.partial[i+1:]...)
	return []*columnar.Batch{d.batch(lines)}, nil
}

func (d *intDecoder) Flush() ([]*columnar.Batch, error) {
	if len(d.partial) == 0 {
		return nil, nil
	}
	return []*columnar.Batch{d.batch([]string{string(d.partial)})}, nil
}

func (d *intDecoder) Close() { d.closed++ }

// intEncoder writes one integer per line and "END" on flush.
type intEncoder struct{ closed int }

func (e *intEncoder) Encode(in *columnar.Batch, out *buffer.Buffer) error {
	for r := 0; r < in.Rows(); r++ {
		_, _ = out.WriteString(in.Value(r, 0).String() + "\n")
	}
	return nil
}

func (e *intEncoder) Flush(out *buffer.Buffer) error {
	_, _ = out.WriteString("END\n")
	return nil
}

func (e *intEncoder) Close() { e.closed++ }

// evenStep keeps even numbers and reports per batch.
type evenStep struct{}

func (evenStep) Process(in *columnar.Batch, side *SideChannels) (*columnar.Batch, error) {
	out := columnar.NewBatchLike(in, in.Rows())
	for r := 0; r < in.Rows(); r++ {
		if in.Int64(r, 0)%2 == 0 {
			out.AppendRow(in, r)
		}
	}
	side.Stat(OpStats{Op: "even", RowsIn: in.Rows(), RowsOut: out.Rows()})
	if out.Rows() == 0 {
		out.Free()
		return nil, nil
	}
	return out, nil
}
func (evenStep) Flush(*SideChannels) (*columnar.Batch, error) { return nil, nil }
func (evenStep) Close()                                      {}

// holdStep buffers everything and releases it on flush.
type holdStep struct {
	held   *columnar.Batch
	closed int
}

func (h *holdStep) Process(in *columnar.Batch, _ *SideChannels) (*columnar.Batch, error) {
	if h.held == nil {
		h.held = columnar.NewBatchLike(in, 0)
	}
	for r := 0; r < in.Rows(); r++ {
		h.held.AppendRow(in, r)
	}
	return nil, nil
}

func (h *holdStep) Flush(*SideChannels) (*columnar.Batch, error) {
	out := h.held
	h.held = nil
	return out, nil
}

func (h *holdStep) Close() { h.closed++ }

// doubleStep multiplies by two.
type doubleStep struct{}

func (doubleStep) Process(in *columnar.Batch, _ *SideChannels) (*columnar.Batch, error) {
	out := columnar.NewBatchLike(in, in.Rows())
	for r := 0; r < in.Rows(); r++ {
		out.AppendValues([]columnar.Value{columnar.Int(in.Int64(r, 0) * 2)})
	}
	return out, nil
}
func (doubleStep) Flush(*SideChannels) (*columnar.Batch, error) { return nil, nil }
func (doubleStep) Close()                                      {}

func newTestPipeline(t *testing.T, stages ...Stage) (*Pipeline, *intDecoder, *intEncoder) {
	dec, enc := &intDecoder{}, &intEncoder{}
	cfg := DefaultConfig()
	cfg.Name = "test_" + strings.ReplaceAll(t.Name(), "/", "_")
	cfg.Logger = testutil.TestLogger(t)
	return New(cfg, dec, enc, stages...), dec, enc
}

func readAll(t *testing.T, p *Pipeline, ch Channel) string {
	var out bytes.Buffer
	_, err := p.Drain(ch, &out)
	require.NoError(t, err)
	return out.String()
}

func TestPipeline_PushFinish(t *testing.T) {
	p, _, _ := newTestPipeline(t, Stage{Op: "even", Step: evenStep{}})
	defer p.Close()

	require.NoError(t, p.Push([]byte("1\n2\n3")))
	require.NoError(t, p.Push([]byte("\n4\n")))
	require.NoError(t, p.Finish())

	assert.Equal(t, "2\n4\nEND\n", readAll(t, p, ChannelMain))
	assert.Equal(t, Stats{RowsIn: 4, RowsOut: 2, BytesIn: 8, BytesOut: 8}, p.Stats())

	stats := strings.Split(strings.TrimSpace(readAll(t, p, ChannelStats)), "\n")
	require.Len(t, stats, 3)
	assert.Equal(t, `{"op":"even","rows_in":2,"rows_out":1}`, stats[0])
	assert.Equal(t, `{"rows_in":4,"rows_out":2,"bytes_in":8,"bytes_out":8}`, stats[2])
}

func TestPipeline_FlushedBatchVisitsLaterStepsOnly(t *testing.T) {
	hold := &holdStep{}
	p, _, _ := newTestPipeline(t,
		Stage{Op: "double", Step: doubleStep{}},
		Stage{Op: "hold", Step: hold},
		Stage{Op: "double", Step: doubleStep{}},
	)
	defer p.Close()

	require.NoError(t, p.Push([]byte("1\n2\n")))
	assert.Equal(t, "", readAll(t, p, ChannelMain))

	require.NoError(t, p.Finish())
	assert.Equal(t, "4\n8\nEND\n", readAll(t, p, ChannelMain))
}

func TestPipeline_DecoderFlushRunsFullChain(t *testing.T) {
	p, _, _ := newTestPipeline(t, Stage{Op: "double", Step: doubleStep{}})
	defer p.Close()

	require.NoError(t, p.Push([]byte("5")))
	require.NoError(t, p.Finish())
	assert.Equal(t, "10\nEND\n", readAll(t, p, ChannelMain))
	assert.Equal(t, int64(1), p.Stats().RowsIn)
}

func TestPipeline_PushAfterFinish(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	defer p.Close()

	require.NoError(t, p.Finish())
	err := p.Push([]byte("1\n"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.Error(t, p.Finish())
}

func TestPipeline_CloseIdempotent(t *testing.T) {
	hold := &holdStep{}
	p, dec, enc := newTestPipeline(t, Stage{Op: "hold", Step: hold})
	p.Close()
	p.Close()

	assert.Equal(t, 1, dec.closed)
	assert.Equal(t, 1, enc.closed)
	assert.Equal(t, 1, hold.closed)
}

func TestPipeline_Pull(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	defer p.Close()
	require.NoError(t, p.Push([]byte("7\n")))

	buf := make([]byte, 1)
	n, err := p.Pull(ChannelMain, buf)
	require.NoError(t, err)
	assert.Equal(t, "7", string(buf[:n]))

	_, err = p.Pull(Channel(42), buf)
	assert.Error(t, err)
}

func TestSideChannels_Errorf(t *testing.T) {
	side := NewSideChannels()
	side.Errorf("select", "column '%s' not found", "x")

	assert.Equal(t, `{"op":"select","error":"column 'x' not found"}`+"\n", string(side.Errors.Bytes()))

	var nilSide *SideChannels
	nilSide.Errorf("op", "ignored")
}

func TestRunner_Run(t *testing.T) {
	p, _, _ := newTestPipeline(t, Stage{Op: "even", Step: evenStep{}})
	defer p.Close()

	var out, stats bytes.Buffer
	cfg := DefaultRunnerConfig()
	cfg.ChunkSize = 3
	cfg.Stats = &stats

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	input := "1\n2\n3\n4\n5\n6\n"
	res, err := NewRunner(p, cfg).Run(ctx, strings.NewReader(input), &out)
	require.NoError(t, err)

	assert.Equal(t, "2\n4\n6\nEND\n", out.String())
	assert.Equal(t, int64(6), res.RowsIn)
	assert.Equal(t, int64(len(input)), res.BytesIn)
	assert.Contains(t, stats.String(), `"rows_out":3`)
}

func TestRunner_Cancelled(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(p, nil).Run(ctx, strings.NewReader("1\n"), &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.False(t, p.Finished())
}

func TestRunner_Progress(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	defer p.Close()

	var seen []int64
	cfg := DefaultRunnerConfig()
	cfg.ChunkSize = 4
	cfg.Progress = func(s Stats) { seen = append(seen, s.BytesIn) }

	input := "1\n2\n3\n4\n"
	_, err := NewRunner(p, cfg).Run(context.Background(), strings.NewReader(input), &bytes.Buffer{})
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	assert.Equal(t, int64(len(input)), seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

// failStep rejects every batch.
type failStep struct{}

func (failStep) Process(*columnar.Batch, *SideChannels) (*columnar.Batch, error) {
	return nil, errors.New(errors.ErrorTypeData, "bad row")
}
func (failStep) Flush(*SideChannels) (*columnar.Batch, error) { return nil, nil }
func (failStep) Close()                                      {}

// stallReader returns its data once and then blocks until release is closed.
type stallReader struct {
	data    []byte
	release chan struct{}
}

func (r *stallReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	<-r.release
	return 0, io.EOF
}

func TestRunner_ReturnsWhileReadBlocked(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	t.Run("step failure", func(t *testing.T) {
		in := &stallReader{data: []byte("1\n2\n"), release: release}
		p, _, _ := newTestPipeline(t, Stage{Op: "fail", Step: failStep{}})
		defer p.Close()

		done := make(chan error, 1)
		go func() {
			_, err := NewRunner(p, nil).Run(context.Background(), in, &bytes.Buffer{})
			done <- err
		}()
		select {
		case err := <-done:
			assert.True(t, errors.IsType(err, errors.ErrorTypeData), "got %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("run did not return while the reader was blocked")
		}
	})

	t.Run("cancel", func(t *testing.T) {
		in := &stallReader{release: release}
		p, _, _ := newTestPipeline(t)
		defer p.Close()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := NewRunner(p, nil).Run(ctx, in, &bytes.Buffer{})
			done <- err
		}()
		cancel()
		select {
		case err := <-done:
			assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout), "got %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("run did not return after cancel")
		}
	})
}
