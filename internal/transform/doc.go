// Package transform implements the steps a plan chains between its decoder
// and its encoder.
//
// Every step owns its state in its own struct and implements
// pipeline.Step. Steps fall into four groups:
//
//   - per-batch steps whose output depends only on the current batch
//     (select, rename, trim, clip, replace, split, explode, bin, filter,
//     validate, grep, cast, fill-null, hash, derive, datetime, date-trunc,
//     unpivot) plus the counting head and skip
//   - streaming steps carrying a small amount of state across batches
//     (step, ewma, diff, anomaly, window, lead, interpolate, label-encode,
//     onehot, split-data, fill-down, unique, join, stack)
//   - bounded steps holding at most n rows (sample, tail, top)
//   - materialising steps that buffer the whole stream and emit on Flush
//     (sort, normalize, acf, stats, frequency, group-agg, pivot)
//
// All of them produce identical output regardless of where batch boundaries
// fall.
package transform
