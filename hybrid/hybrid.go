package hybrid

import (
	"context"
	"time"

	"github.com/fishy/docsync"
)

// Make sure *Collection satisfies docsync.Collection and docsync.Uploader
// interfaces.
var (
	_ docsync.Collection = (*Collection)(nil)
	_ docsync.Uploader   = (*Collection)(nil)
)

// Collection is a hybrid collection,
// backed by a local collection and a remote collection.
type Collection struct {
	local  docsync.Local
	remote docsync.Collection
	opts   Options
}

// Open creates a hybrid collection.
//
// There's no need to close it.
func Open(local docsync.Local, remote docsync.Collection, opts Options) *Collection {
	return &Collection{
		local:  local,
		remote: remote,
		opts:   opts,
	}
}

// Local returns the local collection backing c.
func (c *Collection) Local() docsync.Local {
	return c.local
}

// Remote returns the remote collection backing c.
func (c *Collection) Remote() docsync.Collection {
	return c.remote
}

// Options returns the options of the collection.
func (c *Collection) Options() Options {
	return c.opts
}

// Name returns the name of the collection.
func (c *Collection) Name() string {
	return c.local.Name()
}

// Find finds documents, see package doc for the process.
//
// The returned stream delivers one or two results.
func (c *Collection) Find(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[[]docsync.Document] {
	return c.FindWith(ctx, selector, opts, c.opts)
}

// FindWith is Find with hopts replacing the collection options for this call.
//
// Use CopyOptions(c.Options()) to only override some of them.
func (c *Collection) FindWith(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
	hopts Options,
) docsync.Stream[[]docsync.Document] {
	return c.find(ctx, selector, opts, newFindConfig(hopts))
}

func (c *Collection) find(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
	cfg findConfig,
) docsync.Stream[[]docsync.Document] {
	opts = opts.Copy()
	e := docsync.NewEmitter[[]docsync.Document]()
	go func() {
		defer e.Close()
		c.fetch(ctx, selector, opts, cfg, e)
	}()
	return e.Stream()
}

func (c *Collection) fetch(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
	cfg findConfig,
	e *docsync.Emitter[[]docsync.Document],
) {
	localDocs, err := c.local.Find(ctx, selector, opts).Last()
	if err != nil {
		e.Fail(err)
		return
	}
	if cfg.interim {
		e.Emit(localDocs)
	}

	remoteOpts := opts.Copy()
	remoteOpts.LocalData = nil
	if cfg.cache {
		// Cached documents must be complete.
		remoteOpts.Fields = nil
	}
	if len(opts.Fields) == 0 || !cfg.cache {
		remoteOpts.LocalData = localDocs
	}

	results := make(chan docsync.Result[[]docsync.Document], 1)
	go func() {
		docs, err := c.remote.Find(ctx, selector, remoteOpts).Last()
		results <- docsync.Result[[]docsync.Document]{Value: docs, Err: err}
	}()

	var timeout <-chan time.Time
	if cfg.timeout > 0 {
		timer := time.NewTimer(cfg.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var r docsync.Result[[]docsync.Document]
	select {
	case r = <-results:
	case <-timeout:
		if cfg.cache {
			go c.cacheLate(context.WithoutCancel(ctx), selector, remoteOpts, results)
		}
		c.timedOut(ctx, selector, opts, cfg, e)
		return
	}

	if r.Err != nil {
		c.logDebug(ctx, "remote find failed", "err", r.Err)
		if cfg.interim {
			return
		}
		if cfg.useLocalOnRemoteError {
			e.Emit(localDocs)
			return
		}
		e.Fail(r.Err)
		return
	}

	var docs []docsync.Document
	if cfg.cache {
		docs, err = c.cacheAndFind(ctx, r.Value, selector, opts, remoteOpts)
	} else {
		docs, err = c.merge(ctx, cfg.matcher, r.Value, selector, opts)
	}
	if err != nil {
		if cfg.interim {
			c.logDebug(ctx, "refresh after remote find failed", "err", err)
			return
		}
		e.Fail(err)
		return
	}
	if !cfg.interim || !docsync.EqualLists(localDocs, docs) {
		e.Emit(docs)
	}
}

// timedOut answers a find whose remote side missed the deadline.
func (c *Collection) timedOut(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
	cfg findConfig,
	e *docsync.Emitter[[]docsync.Document],
) {
	c.logDebug(ctx, "remote find timed out", "timeout", cfg.timeout)
	if cfg.interim {
		return
	}
	if !cfg.useLocalOnRemoteError {
		e.Fail(&docsync.TimeoutError{Timeout: cfg.timeout})
		return
	}
	docs, err := c.local.Find(ctx, selector, opts).Last()
	if err != nil {
		e.Fail(err)
		return
	}
	e.Emit(docs)
}

// cacheLate caches the result of a remote find that missed its deadline.
// Errors are ignored.
func (c *Collection) cacheLate(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
	results <-chan docsync.Result[[]docsync.Document],
) {
	r := <-results
	if r.Err != nil {
		return
	}
	opts = opts.Copy()
	opts.LocalData = nil
	if err := c.local.Cache(ctx, r.Value, selector, opts); err != nil {
		c.logDebug(ctx, "caching late remote result failed", "err", err)
	}
}

func (c *Collection) cacheAndFind(
	ctx context.Context,
	remoteDocs []docsync.Document,
	selector docsync.Selector,
	opts *docsync.FindOptions,
	remoteOpts *docsync.FindOptions,
) ([]docsync.Document, error) {
	cacheOpts := remoteOpts.Copy()
	cacheOpts.LocalData = nil
	if err := c.local.Cache(ctx, remoteDocs, selector, cacheOpts); err != nil {
		return nil, err
	}
	return c.local.Find(ctx, selector, opts).Last()
}

// merge lays the pending local changes over a remote result.
//
// Pending removes are dropped, pending upserts replace their remote versions
// and are added when the remote result lacks them.
func (c *Collection) merge(
	ctx context.Context,
	matcher docsync.Matcher,
	remoteDocs []docsync.Document,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) ([]docsync.Document, error) {
	removes, err := c.local.PendingRemoves(ctx)
	if err != nil {
		return nil, err
	}
	upserts, err := c.local.PendingUpserts(ctx)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(removes)+len(upserts))
	for _, id := range removes {
		skip[id] = true
	}
	for _, u := range upserts {
		skip[u.Doc.ID()] = true
	}
	docs := make([]docsync.Document, 0, len(remoteDocs)+len(upserts))
	for _, doc := range remoteDocs {
		if !skip[doc.ID()] {
			docs = append(docs, doc)
		}
	}
	if len(upserts) == 0 {
		return docs, nil
	}
	docs = append(docs, docsync.Docs(upserts)...)

	// The remote side already skipped.
	query := opts.Copy()
	query.Skip = 0
	query.LocalData = nil
	return docsync.ProcessFind(matcher, docs, selector, query), nil
}

// FindOne finds the first matching document.
//
// With interim or shortcut, a local match is delivered first.
// The remote answer is delivered only when it differs from the local one,
// nil when nothing matched at all.
func (c *Collection) FindOne(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[docsync.Document] {
	return c.FindOneWith(ctx, selector, opts, c.opts)
}

// FindOneWith is FindOne with hopts replacing the collection options for this
// call.
func (c *Collection) FindOneWith(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
	hopts Options,
) docsync.Stream[docsync.Document] {
	opts = opts.Copy()
	e := docsync.NewEmitter[docsync.Document]()
	go func() {
		defer e.Close()

		var localDoc docsync.Document
		if hopts.GetInterim() || hopts.GetShortcut() {
			doc, err := c.local.FindOne(ctx, selector, opts).Last()
			if err != nil {
				e.Fail(err)
				return
			}
			if doc != nil {
				e.Emit(doc)
				if hopts.GetShortcut() {
					return
				}
			}
			localDoc = doc
		}

		cfg := newFindConfig(hopts)
		cfg.interim = false
		cfg.cache = hopts.GetCacheFindOne()
		query := opts.Copy()
		if _, ok := selector[docsync.IDField]; ok {
			query.Limit = 1
		} else {
			// Without an id, a limited remote result may be entirely shadowed by
			// local changes.
			query.Limit = 0
		}
		docs, err := c.find(ctx, selector, query, cfg).Last()
		switch {
		case err != nil:
			e.Fail(err)
		case len(docs) == 0:
			e.Emit(nil)
		case !docsync.Equal(localDoc, docs[0]):
			e.Emit(docs[0])
		}
	}()
	return e.Stream()
}

// Upsert upserts documents into the local collection,
// to be uploaded by Upload.
func (c *Collection) Upsert(
	ctx context.Context,
	docs []docsync.Document,
	bases []docsync.Document,
) ([]docsync.Document, error) {
	return c.local.Upsert(ctx, docs, bases)
}

// Remove removes a document from the local collection,
// to be uploaded by Upload.
func (c *Collection) Remove(ctx context.Context, id string) error {
	return c.local.Remove(ctx, id)
}

// RemoveMatching removes the documents matching selector from the local
// collection, one at a time.
func (c *Collection) RemoveMatching(
	ctx context.Context,
	selector docsync.Selector,
) error {
	return c.local.RemoveMatching(ctx, selector)
}

func (c *Collection) logDebug(ctx context.Context, msg string, args ...any) {
	if logger := c.opts.GetLogger(); logger != nil {
		logger.DebugContext(ctx, msg, append([]any{"collection", c.Name()}, args...)...)
	}
}
