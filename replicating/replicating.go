package replicating

import (
	"context"

	"github.com/fishy/docsync"
)

// Make sure *Collection satisfies docsync.Local interface.
var _ docsync.Local = (*Collection)(nil)

// Collection is a replicating docsync.Local.
type Collection struct {
	master  docsync.Local
	replica docsync.Local
	opts    Options
}

// Open creates a replicating collection.
//
// master and replica must hold the same data.
func Open(master, replica docsync.Local, opts Options) *Collection {
	return &Collection{
		master:  master,
		replica: replica,
		opts:    opts,
	}
}

// NewDB creates a docsync.Database of replicating collections.
//
// Adding a collection named n adds n to both masterDB and replicaDB,
// and both must create docsync.Local collections.
func NewDB(masterDB, replicaDB *docsync.Database, opts Options) *docsync.Database {
	return docsync.NewDatabase(func(name string) (docsync.Collection, error) {
		master, err := addLocal(masterDB, name)
		if err != nil {
			return nil, err
		}
		replica, err := addLocal(replicaDB, name)
		if err != nil {
			return nil, err
		}
		return Open(master, replica, opts), nil
	})
}

func addLocal(db *docsync.Database, name string) (docsync.Local, error) {
	col, err := db.AddCollection(name)
	if err != nil {
		return nil, err
	}
	local, ok := col.(docsync.Local)
	if !ok {
		return nil, &notLocalError{name: name, col: col}
	}
	return local, nil
}

// Name returns the name of the master collection.
func (c *Collection) Name() string {
	return c.master.Name()
}

// Find finds documents from the master collection.
func (c *Collection) Find(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[[]docsync.Document] {
	return c.master.Find(ctx, selector, opts)
}

// FindOne finds a document from the master collection.
func (c *Collection) FindOne(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[docsync.Document] {
	return c.master.FindOne(ctx, selector, opts)
}

// Upsert upserts into master, then replica.
//
// New ids are assigned before either write, so both get the same ids.
// It returns the documents applied to master.
func (c *Collection) Upsert(
	ctx context.Context,
	docs []docsync.Document,
	bases []docsync.Document,
) ([]docsync.Document, error) {
	upserts, err := docsync.NormalizeUpserts(docs, bases)
	if err != nil {
		return nil, err
	}
	docs, bases = docsync.Docs(upserts), docsync.Bases(upserts)
	ret, err := c.master.Upsert(ctx, docs, bases)
	if err != nil {
		return nil, err
	}
	if _, err := c.replica.Upsert(ctx, docs, bases); err != nil {
		return nil, c.diverged(ctx, "upsert", err)
	}
	return ret, nil
}

// Remove removes from master, then replica.
func (c *Collection) Remove(ctx context.Context, id string) error {
	return c.both(ctx, "remove", func(col docsync.Local) error {
		return col.Remove(ctx, id)
	})
}

// RemoveMatching finds matching documents from master and removes them one at
// a time.
func (c *Collection) RemoveMatching(
	ctx context.Context,
	selector docsync.Selector,
) error {
	docs, err := c.master.Find(ctx, selector, nil).Last()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := c.Remove(ctx, doc.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Cache computes the documents to cache and to evict against master only,
// then applies the same changes to master and replica.
func (c *Collection) Cache(
	ctx context.Context,
	docs []docsync.Document,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) error {
	query := opts.Copy()
	query.Fields = nil
	query.LocalData = nil
	results, err := c.master.Find(ctx, selector, query).Last()
	if err != nil {
		return err
	}

	matcher := c.opts.GetMatcher()
	compare := matcher.Compare(query.Sort)
	inDocs := docsync.IndexByID(docs)
	inResults := docsync.IndexByID(results)

	var toCache []docsync.Document
	for _, doc := range docs {
		existing, ok := inResults[doc.ID()]
		if !ok {
			toCache = append(toCache, doc)
			continue
		}
		if !docsync.Supersedes(doc, existing) {
			continue
		}
		if !docsync.Equal(doc, existing) {
			toCache = append(toCache, doc)
		}
	}

	var toUncache []string
	for _, result := range results {
		if _, ok := inDocs[result.ID()]; ok {
			continue
		}
		if docsync.Evictable(compare, docs, query, result) {
			toUncache = append(toUncache, result.ID())
		}
	}

	if len(toCache) > 0 {
		if err := c.CacheList(ctx, toCache); err != nil {
			return err
		}
	}
	if len(toUncache) > 0 {
		if err := c.UncacheList(ctx, toUncache); err != nil {
			return err
		}
	}
	if logger := c.opts.GetLogger(); logger != nil {
		logger.DebugContext(
			ctx,
			"cached into master and replica",
			"collection", c.Name(),
			"cached", len(toCache),
			"uncached", len(toUncache),
		)
	}
	return nil
}

// CacheOne caches a document into master, then replica.
func (c *Collection) CacheOne(ctx context.Context, doc docsync.Document) error {
	return c.both(ctx, "cache", func(col docsync.Local) error {
		return col.CacheOne(ctx, doc)
	})
}

// CacheList caches documents into master, then replica.
func (c *Collection) CacheList(ctx context.Context, docs []docsync.Document) error {
	return c.both(ctx, "cache", func(col docsync.Local) error {
		return col.CacheList(ctx, docs)
	})
}

// Seed seeds master, then replica.
func (c *Collection) Seed(ctx context.Context, docs []docsync.Document) error {
	return c.both(ctx, "seed", func(col docsync.Local) error {
		return col.Seed(ctx, docs)
	})
}

// PendingUpserts returns the pending upserts of master.
func (c *Collection) PendingUpserts(ctx context.Context) ([]docsync.Upsert, error) {
	return c.master.PendingUpserts(ctx)
}

// PendingRemoves returns the pending removes of master.
func (c *Collection) PendingRemoves(ctx context.Context) ([]string, error) {
	return c.master.PendingRemoves(ctx)
}

// ResolveUpserts resolves upserts in master, then replica.
func (c *Collection) ResolveUpserts(ctx context.Context, upserts []docsync.Upsert) error {
	return c.both(ctx, "resolve", func(col docsync.Local) error {
		return col.ResolveUpserts(ctx, upserts)
	})
}

// ResolveRemove resolves a remove in master, then replica.
func (c *Collection) ResolveRemove(ctx context.Context, id string) error {
	return c.both(ctx, "resolve", func(col docsync.Local) error {
		return col.ResolveRemove(ctx, id)
	})
}

// Uncache uncaches from master, then replica.
func (c *Collection) Uncache(ctx context.Context, selector docsync.Selector) error {
	return c.both(ctx, "uncache", func(col docsync.Local) error {
		return col.Uncache(ctx, selector)
	})
}

// UncacheList uncaches from master, then replica.
func (c *Collection) UncacheList(ctx context.Context, ids []string) error {
	return c.both(ctx, "uncache", func(col docsync.Local) error {
		return col.UncacheList(ctx, ids)
	})
}

// both runs f against master, then replica.
func (c *Collection) both(ctx context.Context, op string, f func(docsync.Local) error) error {
	if err := f(c.master); err != nil {
		return err
	}
	if err := f(c.replica); err != nil {
		return c.diverged(ctx, op, err)
	}
	return nil
}

func (c *Collection) diverged(ctx context.Context, op string, err error) error {
	if logger := c.opts.GetLogger(); logger != nil {
		logger.WarnContext(
			ctx,
			"replica failed after master succeeded",
			"collection", c.Name(),
			"op", op,
			"err", err,
		)
	}
	return &ReplicaError{Op: op, Err: err}
}
