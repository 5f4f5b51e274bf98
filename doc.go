// Package docsync defines the interfaces of docsync collections,
// and provides the types shared by its implementations.
//
// A docsync collection stores Documents, structured records identified by
// their "_id" field. All implementations share the Collection interface:
//
//     local       in-memory store tracking pending changes (Local interface)
//     remote      HTTP transport to an authoritative store
//     hybrid      local first, remote eventually, with Upload
//     replicating master and replica kept in sync
//
// Reads return a Stream, which delivers at most two results:
// a hybrid collection answers from local data first,
// then again when the remote data differs.
// Writes are plain blocking calls.
//
// Selector matching, sorting and projection are delegated to a Matcher.
// Package selector provides a small default implementation.
package docsync
