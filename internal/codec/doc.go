// Package codec converts between byte streams and columnar batches.
//
// Decoders are incremental: Decode may be called with arbitrary chunk
// boundaries and buffers partial records until the next call or Flush.
// Encoders write to the pipeline's main buffer; binary formats that need a
// persistent io.Writer hold a sink that is re-pointed at that buffer on
// every call.
package codec
