// Package pipeline provides the execution engine for strata: a decoder, an
// ordered chain of steps and an encoder driven synchronously over an input
// byte stream.
//
// # Overview
//
// The pipeline package provides:
//   - The Step, Decoder and Encoder protocols every operator implements
//   - Pipeline, which pushes input chunks through the chain and collects
//     encoded output on the main channel
//   - SideChannels for newline-delimited JSON errors, stats and samples
//   - Runner, which drives a Pipeline from an io.Reader to an io.Writer
//
// # Execution
//
// Each Push decodes a chunk into batches. Every batch visits the steps in
// order; a step returning nil ends that batch's journey. Non-empty survivors
// go to the encoder. Finish flushes the decoder, then each step in order,
// sending a step's flushed batch through the remaining steps, and finally the
// encoder. A summary record is then appended to the stats channel:
//
//	{"rows_in":1000,"rows_out":12,"bytes_in":48211,"bytes_out":512}
//
// # Basic Usage
//
//	p := pipeline.New(pipeline.DefaultConfig(), dec, enc,
//	    pipeline.Stage{Op: "filter", Step: filterStep},
//	)
//	defer p.Close()
//
//	runner := pipeline.NewRunner(p, pipeline.DefaultRunnerConfig())
//	stats, err := runner.Run(ctx, os.Stdin, os.Stdout)
//
// # Concurrency
//
// A Pipeline is single threaded and must not be shared. Runner reads input on
// a separate goroutine and feeds one consumer goroutine, so pipeline calls
// are strictly sequential.
package pipeline
