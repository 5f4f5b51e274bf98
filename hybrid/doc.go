// Package hybrid provides a hybrid docsync collection.
//
// A hybrid collection is backed by a local collection (docsync.Local) and a
// remote collection.
// All writes go to the local collection and are queued there as pending
// changes. Upload drains the queue to the remote collection.
// Reads check the local collection first, then refresh from the remote
// collection.
//
// Find
//
// The find process is:
//     1. Find from the local collection.
//     2. If interim is on, emit the local result.
//     3. Find from the remote collection, passing the local result along so
//        transports can use the quickfind protocol.
//     4. On success, cache the remote result locally and find from the local
//        collection again (or, with caching off, merge pending local changes
//        into the remote result). Emit it if interim is off or it differs
//        from the interim result.
//     5. On failure, with interim off, emit the local result or the error
//        depending on UseLocalOnRemoteError. With interim on the failure is
//        dropped, the interim result already answered.
// With a timeout set, a remote find not done in time is handled as a
// failure. Its result is still cached when it eventually arrives, but never
// emitted.
//
// Upload
//
// Pending upserts are uploaded one at a time, in queue order, because the
// outcome of one change may depend on the previous one having landed.
// Then pending removes are uploaded the same way.
//
// A remote "410 Gone" means the document was already deleted: it's removed
// locally and the upload continues without error.
// A remote "403 Forbidden" also removes the document locally and continues,
// but the error is returned at the end.
// Any other error stops the upload and leaves the remaining changes queued
// for the next one. When several errors happened they come back as an
// *UploadError.
//
// Options
//
// The options passed to Open apply to every call. FindWith and FindOneWith
// take replacement options for a single call, and NewDBFunc chooses options
// per collection.
//
// Concurrency
//
// Upload must not be called concurrently with itself on the same collection.
// Local edits made while an upload of the same document is in flight are kept:
// resolving the upload rebases them instead of clearing them.
package hybrid
