package pipeline

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/metrics"
)

// Config contains pipeline identification and instrumentation settings.
type Config struct {
	Name   string      // Label for logs and metrics
	Logger *zap.Logger // Defaults to a no-op logger
}

// DefaultConfig returns a config named "strata" with logging disabled.
func DefaultConfig() *Config {
	return &Config{
		Name:   "strata",
		Logger: zap.NewNop(),
	}
}

// Stage pairs a step with the op name it was built from.
type Stage struct {
	Op   string
	Step Step
}

// Stats are the running pipeline counters.
type Stats struct {
	RowsIn   int64 `json:"rows_in"`
	RowsOut  int64 `json:"rows_out"`
	BytesIn  int64 `json:"bytes_in"`
	BytesOut int64 `json:"bytes_out"`
}

// Pipeline wires one decoder, an ordered list of steps and one encoder. It
// serves exactly one input stream and is not safe for concurrent use.
type Pipeline struct {
	name    string
	decoder Decoder
	stages  []Stage
	encoder Encoder

	main *buffer.Buffer
	side *SideChannels

	stats    Stats
	finished bool
	closed   bool

	logger    *zap.Logger
	collector *metrics.Collector
}

// New assembles a pipeline. The pipeline takes ownership of every component
// and closes them in Close.
func New(config *Config, decoder Decoder, encoder Encoder, stages ...Stage) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := config.Name
	if name == "" {
		name = "strata"
	}

	collector := metrics.NewCollector(name)
	side := NewSideChannels()
	side.collector = collector

	p := &Pipeline{
		name:      name,
		decoder:   decoder,
		stages:    stages,
		encoder:   encoder,
		main:      buffer.New(),
		side:      side,
		logger:    logger.With(zap.String("component", "pipeline"), zap.String("pipeline", name)),
		collector: collector,
	}
	if b, ok := decoder.(SideChannelBinder); ok {
		b.BindSideChannels(side)
	}
	if b, ok := encoder.(SideChannelBinder); ok {
		b.BindSideChannels(side)
	}
	return p
}

// Name returns the pipeline label.
func (p *Pipeline) Name() string { return p.name }

// Push feeds a chunk of input bytes. data may be reused once Push returns.
func (p *Pipeline) Push(data []byte) error {
	if p.finished {
		return errors.New(errors.ErrorTypeInternal, "push after finish")
	}
	p.stats.BytesIn += int64(len(data))
	p.collector.AddBytes(metrics.DirectionIn, len(data))

	batches, err := p.decoder.Decode(data)
	if err != nil {
		freeAll(batches)
		return errors.Wrap(err, errors.ErrorTypeData, "decode failed")
	}
	return p.processAll(batches)
}

// Finish flushes the decoder, every step in order and the encoder, then
// writes the summary record to the stats channel.
func (p *Pipeline) Finish() error {
	if p.finished {
		return errors.New(errors.ErrorTypeInternal, "finish called twice")
	}
	p.finished = true

	batches, err := p.decoder.Flush()
	if err != nil {
		freeAll(batches)
		return errors.Wrap(err, errors.ErrorTypeData, "decoder flush failed")
	}
	if err := p.processAll(batches); err != nil {
		return err
	}

	for i, st := range p.stages {
		timer := metrics.NewTimer(st.Op)
		out, err := st.Step.Flush(p.side)
		p.collector.ObserveStep(st.Op, timer.Stop())
		if err != nil {
			out.Free()
			return errors.Wrap(err, errors.ErrorTypeData, st.Op+": flush failed")
		}
		if out == nil {
			continue
		}
		p.logger.Debug("step flushed",
			zap.Int("step", i),
			zap.String("op", st.Op),
			zap.Int("rows", out.Rows()))
		if err := p.run(out, i+1, false); err != nil {
			return err
		}
	}

	before := p.main.Total()
	if err := p.encoder.Flush(p.main); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encoder flush failed")
	}
	p.addBytesOut(before)

	p.side.Stat(p.stats)
	p.logger.Info("pipeline finished",
		zap.Int64("rows_in", p.stats.RowsIn),
		zap.Int64("rows_out", p.stats.RowsOut),
		zap.Int64("bytes_in", p.stats.BytesIn),
		zap.Int64("bytes_out", p.stats.BytesOut))
	return nil
}

func (p *Pipeline) processAll(batches []*columnar.Batch) error {
	for i, b := range batches {
		if err := p.run(b, 0, true); err != nil {
			freeAll(batches[i+1:])
			return err
		}
	}
	return nil
}

// run threads b through stages[from:] and encodes the survivor. The pipeline
// owns b and every intermediate batch.
func (p *Pipeline) run(b *columnar.Batch, from int, countIn bool) error {
	if countIn {
		p.stats.RowsIn += int64(b.Rows())
		p.collector.AddRows(metrics.DirectionIn, b.Rows())
	}

	cur := b
	for _, st := range p.stages[from:] {
		timer := metrics.NewTimer(st.Op)
		out, err := st.Step.Process(cur, p.side)
		p.collector.ObserveStep(st.Op, timer.Stop())
		if out != cur {
			cur.Free()
		}
		if err != nil {
			out.Free()
			return errors.Wrap(err, errors.ErrorTypeData, st.Op+": process failed")
		}
		if out == nil {
			return nil
		}
		cur = out
	}
	defer cur.Free()

	if cur.Rows() == 0 {
		return nil
	}
	p.stats.RowsOut += int64(cur.Rows())
	p.collector.AddRows(metrics.DirectionOut, cur.Rows())

	before := p.main.Total()
	err := p.encoder.Encode(cur, p.main)
	p.addBytesOut(before)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode failed")
	}
	return nil
}

func (p *Pipeline) addBytesOut(before int64) {
	n := p.main.Total() - before
	p.stats.BytesOut += n
	p.collector.AddBytes(metrics.DirectionOut, int(n))
}

// Pull reads from one of the output channels. It returns io.EOF when the
// channel is empty.
func (p *Pipeline) Pull(ch Channel, dst []byte) (int, error) {
	buf := p.Buffer(ch)
	if buf == nil {
		return 0, errors.Newf(errors.ErrorTypeValidation, "unknown channel %d", int(ch))
	}
	return buf.Read(dst)
}

// Drain writes everything readable on a channel to w.
func (p *Pipeline) Drain(ch Channel, w io.Writer) (int64, error) {
	buf := p.Buffer(ch)
	if buf == nil {
		return 0, errors.Newf(errors.ErrorTypeValidation, "unknown channel %d", int(ch))
	}
	return buf.WriteTo(w)
}

// Buffer returns the buffer behind a channel, or nil for an unknown channel.
func (p *Pipeline) Buffer(ch Channel) *buffer.Buffer {
	switch ch {
	case ChannelMain:
		return p.main
	case ChannelErrors:
		return p.side.Errors
	case ChannelStats:
		return p.side.Stats
	case ChannelSamples:
		return p.side.Samples
	}
	return nil
}

// SideChannels exposes the side channels.
func (p *Pipeline) SideChannels() *SideChannels { return p.side }

// Stats returns the current counters.
func (p *Pipeline) Stats() Stats { return p.stats }

// Finished reports whether Finish has been called.
func (p *Pipeline) Finished() bool { return p.finished }

// Close releases the decoder, every step and the encoder. It is idempotent.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true
	start := time.Now()
	if p.decoder != nil {
		p.decoder.Close()
	}
	for _, st := range p.stages {
		if st.Step != nil {
			st.Step.Close()
		}
	}
	if p.encoder != nil {
		p.encoder.Close()
	}
	p.logger.Debug("pipeline closed", zap.Duration("duration", time.Since(start)))
}

func freeAll(batches []*columnar.Batch) {
	for _, b := range batches {
		b.Free()
	}
}
