// Package remote provides a docsync.Collection over http,
// and the http.Handler serving it.
//
// Query parameters carry the find: selector, sort and fields as JSON
// (sort also in the compact "-priority,name" form),
// limit and skip as numbers, plus the client id.
// Documents travel as JSON bodies. Bodies over a size threshold are gzipped,
// in both directions.
//
// Non-2xx responses are returned as *docsync.TransportError, so the hybrid
// upload can tell "410 Gone" and "403 Forbidden" apart from other failures.
package remote
