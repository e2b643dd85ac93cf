// Package pool implements the memory management primitives shared by the
// engine.
//
// # Arena
//
// Arena is a bump allocator over 64 KiB blocks (configurable). Each
// columnar.Batch owns one arena and deep-copies every string cell into it, so
// a batch and all of its string payloads are released together by a single
// Free call:
//
//	a := pool.NewArena(0)
//	s := a.AllocString(line) // independent of line's backing array
//	...
//	a.Free()
//
// Allocations are 8-byte aligned and zeroed. Requests larger than the block
// size get a dedicated block. Reset keeps the first block for reuse.
//
// # Pool and BufferPool
//
// Pool[T] is a typed wrapper around sync.Pool with allocation statistics.
// BufferPool buckets byte slices by size; the pipeline runner draws its read
// chunks from GlobalBufferPool.
package pool
