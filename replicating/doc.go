// Package replicating provides a docsync.Local that writes into two local
// collections, a master and a replica, assumed identical when opened.
//
// Reads only go to the master. Every change goes to the master first, then to
// the replica, and only succeeds when both do.
// If the replica fails after the master succeeded the error is returned and
// the two collections have diverged. It's the caller's call to rebuild the
// replica (for example with hybrid.Clone).
//
// A typical setup is a fast in-memory master with a durable replica.
package replicating
