// Package strata is a streaming columnar transform engine. A byte stream is
// decoded into bounded columnar batches, passed through an ordered chain of
// transform steps, and encoded back to bytes, with side channels for
// per-op errors, statistics and sampling reports.
//
// # Architecture
//
// The engine is layered leaf to root:
//
//   - pkg/pool, pkg/buffer: arena and growable byte buffer
//   - pkg/columnar: typed column vectors with null masks (Batch)
//   - internal/pipeline: Step/Decoder/Encoder protocol, Pipeline and Runner
//   - internal/expr: filter and derive expressions
//   - internal/transform: the transform ops
//   - internal/codec: text, CSV, JSON Lines, table, Arrow, Parquet and Avro
//   - internal/plan: JSON/YAML plan documents and the op registry
//   - cmd/strata: the CLI
//
// # Quick Start
//
// Build a pipeline from a plan and run it over stdin:
//
//	doc, err := plan.Parse([]byte(`{"steps":[
//	    {"op":"codec.csv.decode"},
//	    {"op":"filter","args":{"expr":"col('age') >= 18"}},
//	    {"op":"codec.jsonl.encode"}]}`), plan.FormatJSON)
//	if err != nil {
//	    return err
//	}
//	p, err := plan.Build(doc, plan.Options{})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	stats, err := pipeline.NewRunner(p, nil).Run(ctx, os.Stdin, os.Stdout)
//
// Or from the command line:
//
//	strata run --plan adults.json < people.csv
//	strata ops -v
package strata
