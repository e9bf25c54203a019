// Package engine is the filedb façade: an in-memory State guarded by one
// lock, persisted through an adapter according to a sync policy.
//
// ARCHITECTURE:
//
// One DB owns one state.State. Every CRUD call, reads included, takes the
// same mutex for the duration of the in-memory operation. There is no
// reader/writer split; the engine targets small datasets and low
// concurrency.
//
// Sync Policies:
//   - Manual: mutations mark the DB dirty; only Flush and Close write.
//   - EveryWrite: each changing mutation persists the whole state before
//     returning. The write happens under the state lock, so a slow disk
//     delays every other caller.
//   - Periodic(d): mutations mark the DB dirty; a background flusher
//     persists every d, only when dirty.
//
// Flush Ordering:
//
// Persists are serialized by a flush mutex that is always acquired before
// the state mutex. A flush clears the dirty flag and clones the state in
// one critical section, releases the state lock, and writes the clone.
// A mutation racing with the write re-marks the DB dirty on its own. A
// failed write restores the dirty flag.
//
// Lifetime:
//
// The background flusher holds only a weak pointer to its DB and exits
// when the DB is gone. Close stops it (signal plus wait) and performs a
// final flush when dirty. A DB dropped without Close gets the same
// treatment from a runtime cleanup.
package engine
