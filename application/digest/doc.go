// Package digest computes several hash digests over one chunked data
// source.
//
// Two strategies produce identical output. Interleaved pulls every chunk
// once and feeds it to all accumulators before pulling the next; it works
// with any source. Sequential traverses the source once per algorithm and
// needs a source that implements ports.Rewinder.
//
// Digests are returned as upper-case hex, one per distinct algorithm, in
// the order each algorithm first appears in the request.
package digest
