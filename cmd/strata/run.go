package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/internal/plan"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/metrics"
	"github.com/ajitpratap0/strata/pkg/mmap"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/performance"
)

// runOptions holds the per-run paths that do not belong in the engine
// config.
type runOptions struct {
	plan    string
	recipe  string
	input   string
	output  string
	errors  string
	stats   string
	samples string
	mmap    bool

	cpuProfile string
	memProfile string
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a transform plan",
		Long: `Run a transform plan over a byte stream. Input defaults to stdin and
output to stdout. Compressed input is detected automatically.

Example:
  strata run --plan clean.json --input events.csv.gz --output events.parquet
  cat data.csv | strata run --plan plan.yaml --compress zstd > out.csv.zst
  strata run --recipe profile < data.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runPlan(cmd.Context(), cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.plan, "plan", "p", "", "Path to plan JSON or YAML file")
	f.StringVarP(&opts.recipe, "recipe", "r", "", "Name of a built-in recipe to run instead of a plan file")
	f.StringVarP(&opts.input, "input", "i", "", "Input file (default stdin)")
	f.StringVarP(&opts.output, "output", "o", "", "Output file (default stdout)")
	f.StringVar(&opts.errors, "errors", "", "File receiving the errors side channel")
	f.StringVar(&opts.stats, "stats", "", "File receiving the stats side channel")
	f.StringVar(&opts.samples, "samples", "", "File receiving the samples side channel")
	f.BoolVar(&opts.mmap, "mmap", false, "Memory-map the input file instead of reading it")
	f.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile of the run to this file")
	f.StringVar(&opts.memProfile, "memprofile", "", "Write a heap profile at the end of the run to this file")

	f.String("name", "", "Pipeline name for logs and metrics")
	f.Int("batch-size", 0, "Default rows per decoded batch")
	f.Int("chunk-size", 0, "Bytes read per input chunk")
	f.String("compress", "", "Compress output (gzip, zstd, lz4, snappy, s2, deflate)")
	f.Int("compress-level", 0, "Compression level 1 (fastest) to 9 (best)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.Bool("trace", false, "Export a trace of the run to stderr")
	for flag, key := range map[string]string{
		"name":           "name",
		"batch-size":     "performance.batch_size",
		"chunk-size":     "performance.chunk_size",
		"compress":       "output.compression",
		"compress-level": "output.compression_level",
		"metrics-addr":   "observability.metrics_addr",
		"trace":          "observability.tracing",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

// sink is a writer opened for one run; close releases it.
type sink struct {
	io.Writer
	close func() error
}

func openSink(path string, stdout io.Writer) (*sink, error) {
	if path == "" || path == "-" {
		return &sink{Writer: stdout, close: func() error { return nil }}, nil
	}
	f, err := os.Create(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create "+path)
	}
	return &sink{Writer: f, close: f.Close}, nil
}

// openSide opens a side channel file; an empty path discards the channel.
func openSide(path string) (io.Writer, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	s, err := openSink(path, nil)
	if err != nil {
		return nil, nil, err
	}
	return s.Writer, s.close, nil
}

func openInput(path string, useMmap bool, stdin io.Reader) (io.ReadCloser, compression.Algorithm, error) {
	var r io.Reader = stdin
	var file io.Closer
	if path != "" && path != "-" {
		if useMmap {
			m, err := mmap.NewReader(path)
			if err != nil {
				return nil, compression.None, err
			}
			r, file = m, m
		} else {
			f, err := os.Open(path) //nolint:gosec // G304: path comes from the command line
			if err != nil {
				return nil, compression.None, errors.Wrap(err, errors.ErrorTypeFile, "failed to open "+path)
			}
			r, file = f, f
		}
	}
	rc, algorithm, err := compression.OpenReader(r)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, compression.None, err
	}
	if file == nil {
		return rc, algorithm, nil
	}
	return &fileReader{ReadCloser: rc, file: file}, algorithm, nil
}

// fileReader closes the decompressor and then the file beneath it.
type fileReader struct {
	io.ReadCloser
	file io.Closer
}

func (r *fileReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func runPlan(ctx context.Context, cfg *config.EngineConfig, opts runOptions, stdin io.Reader, stdout io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, label, err := loadDocument(opts.plan, opts.recipe)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	ctx = context.WithValue(ctx, logger.PlanKey, label)
	log := logger.WithContext(ctx)
	defer func() { _ = logger.Sync() }()

	if cfg.Observability.Tracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		if err := observability.InitTracing(tc); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialise tracing")
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := observability.Shutdown(sctx); serr != nil {
				log.Warn("trace shutdown failed", zap.Error(serr))
			}
		}()
	}

	stopProfiling, err := startProfiling(opts.cpuProfile, opts.memProfile)
	if err != nil {
		return err
	}
	defer func() {
		if perr := stopProfiling(); err == nil && perr != nil {
			err = perr
		}
	}()

	columnar.SetArenaBlockSize(cfg.Performance.ArenaBlockSize)

	name := doc.Name
	if name == "" {
		name = cfg.Name
	}
	ctx = context.WithValue(ctx, logger.PipelineKey, name)
	log = logger.WithContext(ctx)

	p, err := plan.Build(doc, plan.Options{
		Name:     name,
		Logger:   log,
		Defaults: map[string]interface{}{"batch_size": cfg.Performance.BatchSize},
	})
	if err != nil {
		return err
	}
	defer p.Close()

	in, inputAlgorithm, err := openInput(opts.input, opts.mmap, stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openSink(opts.output, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output")
		}
	}()

	algorithm, err := cfg.Output.Algorithm()
	if err != nil {
		return err
	}
	cw, err := compression.NewWriter(out, algorithm, compression.Level(cfg.Output.CompressionLevel))
	if err != nil {
		return err
	}

	runnerCfg := &pipeline.RunnerConfig{ChunkSize: cfg.Performance.ChunkSize}
	var closers []func() error
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()
	for _, side := range []struct {
		path string
		dst  *io.Writer
	}{
		{opts.errors, &runnerCfg.Errors},
		{opts.stats, &runnerCfg.Stats},
		{opts.samples, &runnerCfg.Samples},
	} {
		w, c, err := openSide(side.path)
		if err != nil {
			return err
		}
		*side.dst = w
		closers = append(closers, c)
	}

	tracker := metrics.NewThroughputTracker(name)
	var lastRows int64
	runnerCfg.Progress = func(s pipeline.Stats) {
		tracker.Increment(s.RowsIn - lastRows)
		lastRows = s.RowsIn
	}

	log.Info("run started",
		zap.String("input", displayPath(opts.input)),
		zap.String("input_compression", string(inputAlgorithm)),
		zap.String("output", displayPath(opts.output)),
		zap.String("output_compression", string(algorithm)))
	timer := metrics.NewTimer("run")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		g.Go(func() error { return serveMetrics(gctx, addr, log) })
	}
	rm, rmErr := performance.NewResourceMonitor()
	if rmErr != nil {
		log.Debug("resource monitor unavailable", zap.Error(rmErr))
	}
	g.Go(func() error {
		monitor(gctx, tracker, rm, time.Second)
		return nil
	})

	var stats pipeline.Stats
	g.Go(func() error {
		defer cancel()
		var rerr error
		stats, rerr = pipeline.NewRunner(p, runnerCfg).Run(gctx, in, cw)
		if rerr != nil {
			return rerr
		}
		if cerr := cw.Close(); cerr != nil {
			return errors.Wrap(cerr, errors.ErrorTypeFile, "failed to finish compressed output")
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		return err
	}

	elapsed := timer.Stop()
	fields := []zap.Field{
		zap.Int64("rows_in", stats.RowsIn),
		zap.Int64("rows_out", stats.RowsOut),
		zap.Int64("bytes_in", stats.BytesIn),
		zap.Int64("bytes_out", stats.BytesOut),
		zap.Duration("duration", elapsed),
	}
	if rm != nil {
		fields = append(fields, rm.Sample().Fields()...)
	}
	log.Info("run completed", fields...)
	return nil
}

func displayPath(path string) string {
	if path == "" || path == "-" {
		return "-"
	}
	return path
}
