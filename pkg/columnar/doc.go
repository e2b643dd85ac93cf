// Package columnar defines the record batch that flows through a strata
// pipeline.
//
// # Overview
//
// A Batch holds up to Capacity() rows of which Rows() are valid. Each column
// has a name, a Type fixed at schema time, a native Go vector of that type
// and one null byte per row. Nulls are orthogonal to types: any cell of any
// column may be null, and a TypeNull column is null everywhere.
//
//	b := columnar.NewBatchFromFields([]columnar.Field{
//		{Name: "city", Type: columnar.TypeString},
//		{Name: "temp", Type: columnar.TypeFloat64},
//	}, 0)
//	b.EnsureCapacity(1)
//	b.SetStr(0, 0, "Lisbon")
//	b.SetFloat64(0, 1, 21.5)
//	b.SetRows(1)
//
// # Ownership
//
// Every string written to a batch is copied into the batch's pool.Arena, and
// Free releases the arena together with the vectors. Steps never take
// ownership of an input batch; they build and return new ones.
//
// # Temporal values
//
// Dates are int32 days since 1970-01-01 and timestamps are int64 microseconds
// since the epoch in UTC. ParseDate, ParseTimestamp, FormatDate and
// FormatTimestamp convert to and from ISO 8601 text.
package columnar
