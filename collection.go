package docsync

import (
	"context"
)

// Selector selects documents. Its language is defined by the Matcher in use.
type Selector map[string]any

// SortField is one key of a sort specification.
type SortField struct {
	Field string `json:"field" yaml:"field"`
	Desc  bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Fields is a field projection specification.
//
// If any value is true, only the fields set to true (plus IDField) are
// returned. Otherwise the fields set to false are excluded.
// Dotted paths address nested fields.
type Fields map[string]bool

// Has reports whether field survives the projection.
func (f Fields) Has(field string) bool {
	if len(f) == 0 {
		return true
	}
	if f.Inclusive() {
		return field == IDField || f[field]
	}
	include, ok := f[field]
	return !ok || include
}

// Inclusive reports whether it's an inclusion projection.
func (f Fields) Inclusive() bool {
	for _, include := range f {
		if include {
			return true
		}
	}
	return false
}

// FindOptions defines the window and shape of a find.
//
// A nil *FindOptions is valid and means no sort, skip, limit or projection.
type FindOptions struct {
	Sort   []SortField
	Skip   int
	Limit  int
	Fields Fields

	// LocalData is the candidate set the caller already holds for this query.
	//
	// Transports supporting the quickfind protocol use it to only transfer
	// the rows that changed. Other implementations ignore it.
	LocalData []Document
}

// Copy returns a shallow copy of opts.
//
// It never returns nil.
func (opts *FindOptions) Copy() *FindOptions {
	if opts == nil {
		return new(FindOptions)
	}
	ret := *opts
	return &ret
}

// Upsert is a pending local change.
//
// Base is the snapshot the edit started from,
// nil for the insert of a fresh document.
type Upsert struct {
	Doc  Document `json:"doc"`
	Base Document `json:"base"`
}

// Collection is the capability every collection implementation
// (local, remote, hybrid and replicating) provides.
type Collection interface {
	// Name returns the name of the collection.
	Name() string

	// Find finds the documents matching selector, sorted, skipped, limited and
	// projected according to opts.
	//
	// It never blocks. The results are delivered on the returned Stream.
	Find(ctx context.Context, selector Selector, opts *FindOptions) Stream[[]Document]

	// FindOne is like Find but delivers the first document only,
	// or nil if nothing matched.
	FindOne(ctx context.Context, selector Selector, opts *FindOptions) Stream[Document]

	// Upsert inserts or updates documents.
	//
	// bases[i] is the base of docs[i]. bases can be nil or shorter than docs,
	// and a nil base means none was supplied.
	//
	// Documents without IDField get a new id assigned in place.
	// A base without id, or with an id different from its document,
	// returns a ValidationError and nothing is applied.
	//
	// It returns the applied documents.
	Upsert(ctx context.Context, docs []Document, bases []Document) ([]Document, error)

	// Remove removes a document by id.
	Remove(ctx context.Context, id string) error

	// RemoveMatching finds the documents matching selector and removes them one
	// at a time.
	RemoveMatching(ctx context.Context, selector Selector) error
}

// Local defines extra interface for a collection tracking pending changes,
// used as the local side of a hybrid collection.
type Local interface {
	Collection

	// Cache reconciles docs, the authoritative result of the query defined by
	// selector and opts, into the collection.
	//
	// Documents are merged with CacheList,
	// then previously cached documents matching the same query but absent from
	// docs are evicted, unless they have pending upserts or Evictable says
	// their absence carries no information.
	Cache(ctx context.Context, docs []Document, selector Selector, opts *FindOptions) error

	// CacheOne is CacheList with a single document.
	CacheOne(ctx context.Context, doc Document) error

	// CacheList inserts or updates documents without recording changes.
	//
	// It never overwrites an id with a pending upsert or remove,
	// and never replaces a document with one of equal or lower revision.
	CacheList(ctx context.Context, docs []Document) error

	// Seed inserts documents that are neither present nor pending removal.
	Seed(ctx context.Context, docs []Document) error

	// PendingUpserts returns the pending upserts in queue order.
	PendingUpserts(ctx context.Context) ([]Upsert, error)

	// PendingRemoves returns the ids pending removal in queue order.
	PendingRemoves(ctx context.Context) ([]string, error)

	// ResolveUpserts marks upserts as confirmed by the remote side.
	//
	// An entry is only cleared if its document is still equal to the one
	// resolved. Otherwise its base is moved to the resolved document,
	// keeping the newer local edit pending.
	ResolveUpserts(ctx context.Context, upserts []Upsert) error

	// ResolveRemove marks a pending remove as confirmed.
	ResolveRemove(ctx context.Context, id string) error

	// Uncache removes cached documents matching selector,
	// except ones with pending upserts.
	Uncache(ctx context.Context, selector Selector) error

	// UncacheList removes cached documents by id,
	// except ones with pending upserts.
	UncacheList(ctx context.Context, ids []string) error
}

// Uploader is implemented by collections that can push their pending changes
// to a remote collection.
type Uploader interface {
	Upload(ctx context.Context) error
}

// Matcher is the selector-matching capability collections depend on.
type Matcher interface {
	// Match reports whether doc matches selector.
	Match(selector Selector, doc Document) bool

	// Compare returns a comparator for the sort specification.
	// It returns nil for an empty specification.
	Compare(sort []SortField) func(a, b Document) int

	// Project returns a projection function for the field specification.
	// It returns nil for an empty specification.
	Project(fields Fields) func(doc Document) Document
}
