// Package metrics provides lock-free counters and latency histograms for
// session parsing and credential refresh.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. Histograms use 8 fixed buckets (≤5ms … +Inf). Both are
// allocation-free on the write path, and a nil *Metrics is a valid no-op.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import dashAuth or any sibling package.
//   - Expose global metric registries.
package metrics
