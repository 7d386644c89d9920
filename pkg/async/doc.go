// Package async provides the concurrency primitives used to pace work
// against the upstream APIs: a bounded-concurrency gate with an optional
// inter-slot delay, a key-deduplicating action queue built on a single-slot
// gate, and a panic-safe goroutine helper.
package async
