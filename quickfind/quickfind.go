// Package quickfind implements the quickfind diff protocol.
//
// Quickfind lets a client that already holds a possibly stale copy of a query
// result refresh it while only transferring the rows that changed.
//
// The protocol has 3 steps:
//
//     EncodeRequest   client: shard rows by the first 2 characters of their id,
//                     digest each shard over its id-sorted "id:rev|" pairs.
//     EncodeResponse  server: shard the full result the same way,
//                     return the complete rows of every shard whose digest
//                     differs (including shards that became empty).
//     DecodeResponse  client: replace changed shards, keep the others,
//                     then sort.
//
// Interaction with query options:
//
//     fields without _rev   digests can't be computed, do not use quickfind
//     limit without sort    results are unstable, do not use quickfind
//     sort                  decoded rows are re-sorted with it
//     no sort               decoded rows are sorted by id
package quickfind

import (
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/selector"
)

// ShardLength is the number of id characters used as shard key.
const ShardLength = 2

// DigestSize is the size of a shard digest in bytes (80 bits).
const DigestSize = 10

// Request is the encoded client request: shard key -> digest.
type Request map[string]string

// Response is the encoded server response: shard key -> complete rows of the
// changed shards.
type Response map[string][]docsync.Document

// Eligible reports whether a query with opts can use quickfind.
func Eligible(opts *docsync.FindOptions) bool {
	if opts == nil {
		return true
	}
	if len(opts.Fields) > 0 && !opts.Fields.Has(docsync.RevField) {
		return false
	}
	if opts.Limit > 0 && len(opts.Sort) == 0 {
		return false
	}
	return true
}

// ShardKey returns the shard key of an id.
func ShardKey(id string) string {
	if len(id) <= ShardLength {
		return id
	}
	return id[:ShardLength]
}

// EncodeRequest summarizes the rows the client holds.
func EncodeRequest(rows []docsync.Document) Request {
	shards := shard(rows)
	req := make(Request, len(shards))
	for key, rows := range shards {
		req[key] = Digest(rows)
	}
	return req
}

// EncodeResponse creates the response for req given the full server result.
func EncodeResponse(rows []docsync.Document, req Request) Response {
	shards := shard(rows)
	for key := range req {
		if _, ok := shards[key]; !ok {
			shards[key] = []docsync.Document{}
		}
	}
	resp := make(Response)
	for key, rows := range shards {
		if digest, ok := req[key]; ok && digest == Digest(rows) {
			continue
		}
		resp[key] = rows
	}
	return resp
}

// DecodeResponse recreates the full server result from resp and the rows the
// client holds.
//
// compare sorts the result. When it's nil the result is sorted by id.
func DecodeResponse(
	resp Response,
	rows []docsync.Document,
	compare func(a, b docsync.Document) int,
) []docsync.Document {
	shards := shard(rows)
	for key, rows := range resp {
		shards[key] = rows
	}
	var ret []docsync.Document
	for _, rows := range shards {
		ret = append(ret, rows...)
	}
	if ret == nil {
		ret = []docsync.Document{}
	}
	if compare == nil {
		compare = selector.CompareByID
	}
	slices.SortStableFunc(ret, compare)
	return ret
}

// Digest computes the digest of a shard.
func Digest(rows []docsync.Document) string {
	sorted := slices.Clone(rows)
	slices.SortFunc(sorted, selector.CompareByID)
	h := blake3.New()
	for _, row := range sorted {
		rev := ""
		if r := row.Rev(); r != nil {
			rev = fmt.Sprint(r)
		}
		h.Write([]byte(row.ID() + ":" + rev + "|"))
	}
	return hex.EncodeToString(h.Sum(nil)[:DigestSize])
}

func shard(rows []docsync.Document) map[string][]docsync.Document {
	shards := make(map[string][]docsync.Document)
	for _, row := range rows {
		key := ShardKey(row.ID())
		shards[key] = append(shards[key], row)
	}
	return shards
}
