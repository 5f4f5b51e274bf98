package local

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/fishy/docsync"
)

// Make sure *Collection satisfies docsync.Local interface.
var _ docsync.Local = (*Collection)(nil)

type pendingUpsert struct {
	docsync.Upsert

	seq uint64
}

// Collection is an in-memory docsync.Local.
type Collection struct {
	name    string
	opts    Options
	matcher docsync.Matcher

	lock    sync.RWMutex
	seq     uint64
	items   map[string]docsync.Document
	upserts map[string]*pendingUpsert
	removes map[string]uint64
}

// Open creates an empty local collection with the given options.
//
// There's no need to close it.
//
// It panics if the options carry an unsupported Safety.
func Open(name string, opts Options) *Collection {
	switch opts.GetSafety() {
	case SafetyClone, SafetyFreeze:
	default:
		panic("local: unsupported safety " + opts.GetSafety().String())
	}
	return &Collection{
		name:    name,
		opts:    opts,
		matcher: opts.GetMatcher(),
		items:   make(map[string]docsync.Document),
		upserts: make(map[string]*pendingUpsert),
		removes: make(map[string]uint64),
	}
}

// NewDB creates a docsync.Database of local collections sharing opts.
func NewDB(opts Options) *docsync.Database {
	return docsync.NewDatabase(func(name string) (docsync.Collection, error) {
		return Open(name, opts), nil
	})
}

// Name returns the name of the collection.
func (c *Collection) Name() string {
	return c.name
}

// Find finds documents.
func (c *Collection) Find(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[[]docsync.Document] {
	e := docsync.NewEmitter[[]docsync.Document]()
	go func() {
		defer e.Close()

		select {
		default:
		case <-ctx.Done():
			e.Fail(ctx.Err())
			return
		}

		e.Emit(c.find(selector, opts))
	}()
	return e.Stream()
}

// FindOne finds the first matching document.
func (c *Collection) FindOne(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[docsync.Document] {
	e := docsync.NewEmitter[docsync.Document]()
	go func() {
		defer e.Close()

		docs, err := c.Find(ctx, selector, opts).Last()
		if err != nil {
			e.Fail(err)
			return
		}
		if len(docs) == 0 {
			e.Emit(nil)
			return
		}
		e.Emit(docs[0])
	}()
	return e.Stream()
}

func (c *Collection) find(
	selector docsync.Selector,
	opts *docsync.FindOptions,
) []docsync.Document {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.out(docsync.ProcessFind(c.matcher, c.sortedItems(), selector, opts))
}

// sortedItems returns the live documents ordered by id.
//
// The caller must hold the lock.
func (c *Collection) sortedItems() []docsync.Document {
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ret := make([]docsync.Document, len(ids))
	for i, id := range ids {
		ret[i] = c.items[id]
	}
	return ret
}

// Upsert inserts or updates documents and queues them as pending upserts.
//
// When no base is supplied for a document,
// the base of its existing pending upsert is kept,
// or the current live document becomes the base.
func (c *Collection) Upsert(
	ctx context.Context,
	docs []docsync.Document,
	bases []docsync.Document,
) ([]docsync.Document, error) {
	select {
	default:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	upserts, err := docsync.NormalizeUpserts(docs, bases)
	if err != nil {
		return nil, err
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	ret := make([]docsync.Document, len(upserts))
	for i, u := range upserts {
		doc := u.Doc.Clone()
		base := u.Base.Clone()
		id := doc.ID()
		if base == nil {
			if existing, ok := c.upserts[id]; ok {
				base = existing.Base
			} else {
				base = c.items[id].Clone()
			}
		}

		c.items[id] = doc
		delete(c.removes, id)
		if existing, ok := c.upserts[id]; ok {
			existing.Doc = doc
			existing.Base = base
		} else {
			c.seq++
			c.upserts[id] = &pendingUpsert{
				Upsert: docsync.Upsert{Doc: doc, Base: base},
				seq:    c.seq,
			}
		}
		ret[i] = c.outOne(doc)
	}
	return ret, nil
}

// Remove removes a document and queues the id as a pending remove.
//
// Unknown ids are queued as well.
func (c *Collection) Remove(ctx context.Context, id string) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.remove(id)
	return nil
}

// remove moves id to the remove queue. The caller must hold the lock.
func (c *Collection) remove(id string) {
	delete(c.items, id)
	delete(c.upserts, id)
	if _, ok := c.removes[id]; !ok {
		c.seq++
		c.removes[id] = c.seq
	}
}

// RemoveMatching removes the documents matching selector, one at a time.
func (c *Collection) RemoveMatching(
	ctx context.Context,
	selector docsync.Selector,
) error {
	docs, err := c.Find(ctx, selector, nil).Last()
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

// Cache reconciles the authoritative result docs of a query into the
// collection.
func (c *Collection) Cache(
	ctx context.Context,
	docs []docsync.Document,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.cacheList(docs)

	// Projection would drop the fields the window check compares on.
	query := opts.Copy()
	query.Fields = nil
	query.LocalData = nil

	compare := c.matcher.Compare(query.Sort)
	inDocs := docsync.IndexByID(docs)
	var evicted []string
	for _, doc := range docsync.ProcessFind(c.matcher, c.sortedItems(), selector, query) {
		id := doc.ID()
		if _, ok := inDocs[id]; ok {
			continue
		}
		if _, ok := c.upserts[id]; ok {
			continue
		}
		if !docsync.Evictable(compare, docs, query, doc) {
			continue
		}
		delete(c.items, id)
		evicted = append(evicted, id)
	}
	if logger := c.opts.GetLogger(); logger != nil && len(evicted) > 0 {
		logger.DebugContext(
			ctx,
			"evicted documents absent from authoritative result",
			"collection", c.name,
			"cached", len(docs),
			"evicted", strings.Join(evicted, ","),
		)
	}
	return nil
}

// CacheOne caches a single document.
func (c *Collection) CacheOne(ctx context.Context, doc docsync.Document) error {
	return c.CacheList(ctx, []docsync.Document{doc})
}

// CacheList caches documents without queueing them.
func (c *Collection) CacheList(ctx context.Context, docs []docsync.Document) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.cacheList(docs)
	return nil
}

// cacheList is CacheList without locking. The caller must hold the lock.
func (c *Collection) cacheList(docs []docsync.Document) {
	for _, doc := range docs {
		id := doc.ID()
		if id == "" {
			continue
		}
		if _, ok := c.upserts[id]; ok {
			continue
		}
		if _, ok := c.removes[id]; ok {
			continue
		}
		if docsync.Supersedes(doc, c.items[id]) {
			c.items[id] = c.in(doc)
		}
	}
}

// Seed inserts documents that are neither live nor pending removal.
func (c *Collection) Seed(ctx context.Context, docs []docsync.Document) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	for _, doc := range docs {
		id := doc.ID()
		if id == "" {
			continue
		}
		if _, ok := c.items[id]; ok {
			continue
		}
		if _, ok := c.removes[id]; ok {
			continue
		}
		c.items[id] = c.in(doc)
	}
	return nil
}

// PendingUpserts returns the pending upserts in queue order.
func (c *Collection) PendingUpserts(ctx context.Context) ([]docsync.Upsert, error) {
	select {
	default:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.lock.RLock()
	defer c.lock.RUnlock()
	pending := make([]*pendingUpsert, 0, len(c.upserts))
	for _, u := range c.upserts {
		pending = append(pending, u)
	}
	slices.SortFunc(pending, func(a, b *pendingUpsert) int {
		return compareSeq(a.seq, b.seq)
	})
	ret := make([]docsync.Upsert, len(pending))
	for i, u := range pending {
		ret[i] = docsync.Upsert{
			Doc:  c.outOne(u.Doc),
			Base: c.outOne(u.Base),
		}
	}
	return ret, nil
}

// PendingRemoves returns the ids pending removal in queue order.
func (c *Collection) PendingRemoves(ctx context.Context) ([]string, error) {
	select {
	default:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.lock.RLock()
	defer c.lock.RUnlock()
	ids := make([]string, 0, len(c.removes))
	for id := range c.removes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return compareSeq(c.removes[a], c.removes[b])
	})
	return ids, nil
}

// ResolveUpserts marks upserts as confirmed.
func (c *Collection) ResolveUpserts(ctx context.Context, upserts []docsync.Upsert) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	for _, u := range upserts {
		id := u.Doc.ID()
		existing, ok := c.upserts[id]
		if !ok {
			continue
		}
		if docsync.Equal(u.Doc, existing.Doc) {
			delete(c.upserts, id)
			continue
		}
		// Edited again while the upload was in flight,
		// the newer edit now starts from the uploaded document.
		existing.Base = u.Doc.Clone()
	}
	return nil
}

// ResolveRemove marks a pending remove as confirmed.
func (c *Collection) ResolveRemove(ctx context.Context, id string) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.removes, id)
	return nil
}

// Uncache removes cached documents matching selector,
// except those with pending upserts.
func (c *Collection) Uncache(ctx context.Context, selector docsync.Selector) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	for id, doc := range c.items {
		if _, ok := c.upserts[id]; ok {
			continue
		}
		if c.matcher.Match(selector, doc) {
			delete(c.items, id)
		}
	}
	return nil
}

// UncacheList removes cached documents by id,
// except those with pending upserts.
func (c *Collection) UncacheList(ctx context.Context, ids []string) error {
	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	for _, id := range ids {
		if _, ok := c.upserts[id]; ok {
			continue
		}
		delete(c.items, id)
	}
	return nil
}

// in isolates an incoming document according to safety.
func (c *Collection) in(doc docsync.Document) docsync.Document {
	if c.opts.GetSafety() == SafetyClone {
		return doc.Clone()
	}
	return doc
}

// outOne isolates an outgoing document according to safety.
func (c *Collection) outOne(doc docsync.Document) docsync.Document {
	if c.opts.GetSafety() == SafetyClone {
		return doc.Clone()
	}
	return doc
}

// out isolates outgoing documents according to safety.
func (c *Collection) out(docs []docsync.Document) []docsync.Document {
	for i, doc := range docs {
		docs[i] = c.outOne(doc)
	}
	return docs
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
