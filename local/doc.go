// Package local provides the in-memory reference implementation of
// docsync.Local.
//
// A local collection keeps three maps:
// the live documents, the pending upserts and the pending removes, all keyed
// by id. An id is either live or pending removal, never both, and a pending
// upsert only exists for a live id.
//
// Writes (Upsert, Remove) apply immediately and are queued as pending changes
// until a hybrid collection uploads them and resolves the queue entries.
// Cache, CacheList and Seed store documents from the remote side without
// queueing anything, and never overwrite pending local changes.
//
// Safety
//
// With SafetyClone (the default), every document going in or out is deep
// copied. With SafetyFreeze, cached and returned documents are shared, which
// is cheaper but the caller must not modify them. Upserted documents are
// always copied.
//
// Concurrency
//
// Every operation is atomic with regard to the other operations of the same
// collection. Find evaluates the query in its own goroutine and delivers the
// result on the returned stream.
package local
