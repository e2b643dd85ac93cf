package pipeline

import (
	"github.com/ajitpratap0/strata/pkg/buffer"
	"github.com/ajitpratap0/strata/pkg/columnar"
	jsonpool "github.com/ajitpratap0/strata/pkg/json"
	"github.com/ajitpratap0/strata/pkg/metrics"
	stringpool "github.com/ajitpratap0/strata/pkg/strings"
)

// Step transforms batches. Process never takes ownership of in; it returns a
// new batch owned by the caller, or nil when nothing survives. Flush is
// called exactly once after the last Process and may return buffered rows.
// Close releases state and must be idempotent.
type Step interface {
	Process(in *columnar.Batch, side *SideChannels) (*columnar.Batch, error)
	Flush(side *SideChannels) (*columnar.Batch, error)
	Close()
}

// Decoder turns input bytes into batches. It must copy whatever it keeps
// from data; the caller reuses the slice.
type Decoder interface {
	Decode(data []byte) ([]*columnar.Batch, error)
	Flush() ([]*columnar.Batch, error)
	Close()
}

// Encoder renders batches onto the main output channel.
type Encoder interface {
	Encode(in *columnar.Batch, out *buffer.Buffer) error
	Flush(out *buffer.Buffer) error
	Close()
}

// SideChannelBinder is implemented by decoders and encoders that report
// through side channels.
type SideChannelBinder interface {
	BindSideChannels(side *SideChannels)
}

// Channel identifies one of the pipeline outputs.
type Channel int

const (
	ChannelMain Channel = iota
	ChannelErrors
	ChannelStats
	ChannelSamples
)

func (c Channel) String() string {
	switch c {
	case ChannelMain:
		return "main"
	case ChannelErrors:
		return "errors"
	case ChannelStats:
		return "stats"
	case ChannelSamples:
		return "samples"
	}
	return "unknown"
}

// ErrorRecord is written to the errors channel.
type ErrorRecord struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

// OpStats is the per-batch record written by row-dropping steps.
type OpStats struct {
	Op      string `json:"op"`
	RowsIn  int    `json:"rows_in"`
	RowsOut int    `json:"rows_out"`
}

// SideChannels are append-only buffers of newline-delimited JSON records.
// They never influence batch schemas.
type SideChannels struct {
	Errors  *buffer.Buffer
	Stats   *buffer.Buffer
	Samples *buffer.Buffer

	collector *metrics.Collector
}

// NewSideChannels allocates empty side channels.
func NewSideChannels() *SideChannels {
	return &SideChannels{
		Errors:  buffer.New(),
		Stats:   buffer.New(),
		Samples: buffer.New(),
	}
}

func (s *SideChannels) write(ch Channel, buf *buffer.Buffer, v interface{}) {
	if s == nil {
		return
	}
	if err := jsonpool.WriteLine(buf, v); err != nil {
		return
	}
	if s.collector != nil {
		s.collector.SideRecord(ch.String())
	}
}

// Error appends a record to the errors channel.
func (s *SideChannels) Error(v interface{}) {
	if s != nil {
		s.write(ChannelErrors, s.Errors, v)
	}
}

// Errorf appends {"op":op,"error":<formatted>} to the errors channel.
func (s *SideChannels) Errorf(op, format string, args ...interface{}) {
	s.Error(ErrorRecord{Op: op, Error: stringpool.Sprintf(format, args...)})
}

// Stat appends a record to the stats channel.
func (s *SideChannels) Stat(v interface{}) {
	if s != nil {
		s.write(ChannelStats, s.Stats, v)
	}
}

// Sample appends a record to the samples channel.
func (s *SideChannels) Sample(v interface{}) {
	if s != nil {
		s.write(ChannelSamples, s.Samples, v)
	}
}
