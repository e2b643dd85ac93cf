package pipeline

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/pool"
)

// RunnerConfig controls how a Runner moves bytes.
type RunnerConfig struct {
	ChunkSize int       // Bytes per read (default 64KB)
	Errors    io.Writer // Receives the errors channel; discarded when nil
	Stats     io.Writer // Receives the stats channel; discarded when nil
	Samples   io.Writer // Receives the samples channel; discarded when nil

	// Progress, when set, is called on the pipeline goroutine after every
	// chunk with the running totals.
	Progress func(Stats)
}

// DefaultRunnerConfig returns a config reading 64KB chunks.
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{ChunkSize: 64 * 1024}
}

// Runner drives a Pipeline from an io.Reader to an io.Writer. Input is read
// on its own goroutine and handed over a channel to the calling goroutine,
// so pipeline calls never overlap.
type Runner struct {
	p      *Pipeline
	config *RunnerConfig
}

// NewRunner creates a runner for p.
func NewRunner(p *Pipeline, config *RunnerConfig) *Runner {
	if config == nil {
		config = DefaultRunnerConfig()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = 64 * 1024
	}
	return &Runner{p: p, config: config}
}

// Run reads in until EOF, pushing every chunk and draining the output
// channels after each one, then finishes the pipeline. Cancelling ctx stops
// the run between chunks.
//
// Run returns as soon as the pipeline fails or ctx is done, even while a
// Read on in is still blocked (a terminal on stdin, say). The reader
// goroutine then exits once that Read returns; it never touches the
// pipeline.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (Stats, error) {
	ctx, span := observability.NewSpan(ctx, "pipeline.run")
	defer span.End()
	span.SetAttribute("pipeline", r.p.Name())

	log := logger.WithContext(ctx).With(zap.String("component", "runner"), zap.String("pipeline", r.p.Name()))
	log.Debug("run started", zap.Int("chunk_size", r.config.ChunkSize))

	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chunks := make(chan []byte, 2)
	readErr := make(chan error, 1)
	go func() { readErr <- r.read(rctx, in, chunks) }()

	err := r.consume(rctx, chunks, out)
	if err == nil {
		// chunks is closed, so the reader has returned
		err = <-readErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = r.p.Finish()
	}
	if err == nil {
		err = r.drain(out)
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		err = errors.Wrap(err, errors.ErrorTypeTimeout, "run cancelled")
	}

	stats := r.p.Stats()
	span.SetAttribute("rows_in", stats.RowsIn)
	span.SetAttribute("rows_out", stats.RowsOut)
	span.SetAttribute("bytes_in", stats.BytesIn)
	span.SetAttribute("bytes_out", stats.BytesOut)
	span.RecordError(err)

	if err != nil {
		log.Error("run failed", errors.Fields(err)...)
		return stats, err
	}
	log.Debug("run completed", zap.Int64("rows_out", stats.RowsOut))
	return stats, nil
}

// read fills pooled buffers from in and sends them on chunks until EOF, a
// read error or ctx is done. It closes chunks on return.
func (r *Runner) read(ctx context.Context, in io.Reader, chunks chan<- []byte) error {
	defer close(chunks)
	for {
		buf := pool.GlobalBufferPool.Get(r.config.ChunkSize)
		n, err := in.Read(buf)
		if n > 0 {
			select {
			case chunks <- buf[:n]:
			case <-ctx.Done():
				pool.GlobalBufferPool.Put(buf)
				return ctx.Err()
			}
		} else {
			pool.GlobalBufferPool.Put(buf)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "read input")
		}
	}
}

// consume pushes chunks into the pipeline until chunks is closed.
func (r *Runner) consume(ctx context.Context, chunks <-chan []byte, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			err := r.p.Push(chunk)
			pool.GlobalBufferPool.Put(chunk)
			if err != nil {
				return err
			}
			if err := r.drain(out); err != nil {
				return err
			}
			if r.config.Progress != nil {
				r.config.Progress(r.p.Stats())
			}
		}
	}
}

func (r *Runner) drain(out io.Writer) error {
	if _, err := r.p.Drain(ChannelMain, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "write output")
	}
	sides := []struct {
		ch Channel
		w  io.Writer
	}{
		{ChannelErrors, r.config.Errors},
		{ChannelStats, r.config.Stats},
		{ChannelSamples, r.config.Samples},
	}
	for _, s := range sides {
		if s.w == nil {
			r.p.Buffer(s.ch).Reset()
			continue
		}
		if _, err := r.p.Drain(s.ch, s.w); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "write "+s.ch.String()+" channel")
		}
	}
	return nil
}
