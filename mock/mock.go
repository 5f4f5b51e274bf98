// Package mock provides a mock remote collection for testing,
// backed by a local collection.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/local"
)

// Make sure *Remote satisfies docsync.Collection interface.
var _ docsync.Collection = (*Remote)(nil)

// Op is a kind of remote operation.
type Op string

// Operations counted and delayed by Remote.
const (
	OpFind   Op = "find"
	OpUpsert Op = "upsert"
	OpRemove Op = "remove"
)

// OperationDelay defines the delay before and after an operation.
// It's useful to mimic network latency in tests.
type OperationDelay struct {
	// Before is the delay between the function call and the actual operation.
	Before time.Duration

	// After is the delay between the actual operation completes and the function
	// returns.
	After time.Duration
}

// Remote is a mock implementation of a remote docsync.Collection.
//
// The exported fields must be set before the Remote is used.
type Remote struct {
	store *local.Collection

	FindDelay   OperationDelay
	UpsertDelay OperationDelay
	RemoveDelay OperationDelay

	// Fail, if non-nil, is called before every operation with the id involved
	// ("" for finds). A non-nil return value fails the operation.
	Fail func(op Op, id string) error

	// Canonical, if non-nil, maps every upserted document to the one returned
	// to the caller, like a server stamping a new revision.
	// Returning nil reports the document as deleted on the remote side.
	Canonical func(doc docsync.Document) docsync.Document

	lock  sync.Mutex
	calls map[Op]int
	last  map[Op]docsync.FindOptions
}

// New creates a new empty mock Remote.
func New(name string) *Remote {
	return &Remote{
		store: local.Open(name, local.NewDefaultOptions()),
		calls: make(map[Op]int),
		last:  make(map[Op]docsync.FindOptions),
	}
}

// Store returns the local collection holding the remote data,
// for seeding and inspection.
func (m *Remote) Store() *local.Collection {
	return m.store
}

// Calls returns the number of times op was called.
func (m *Remote) Calls(op Op) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.calls[op]
}

// LastFindOptions returns the options of the latest find.
func (m *Remote) LastFindOptions() docsync.FindOptions {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.last[OpFind]
}

func (m *Remote) count(op Op, opts *docsync.FindOptions) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.calls[op]++
	if opts != nil {
		m.last[op] = *opts
	}
}

func (m *Remote) fail(op Op, id string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, id)
}

// Name returns the name of the collection.
func (m *Remote) Name() string {
	return m.store.Name()
}

// Find finds documents from the backing store.
func (m *Remote) Find(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[[]docsync.Document] {
	m.count(OpFind, opts.Copy())
	e := docsync.NewEmitter[[]docsync.Document]()
	go func() {
		defer e.Close()
		if err := sleep(ctx, m.FindDelay.Before); err != nil {
			e.Fail(err)
			return
		}
		if err := m.fail(OpFind, ""); err != nil {
			e.Fail(err)
			return
		}
		docs, err := m.store.Find(ctx, selector, opts).Last()
		if err == nil {
			err = sleep(ctx, m.FindDelay.After)
		}
		if err != nil {
			e.Fail(err)
			return
		}
		e.Emit(docs)
	}()
	return e.Stream()
}

// FindOne finds the first matching document from the backing store.
func (m *Remote) FindOne(
	ctx context.Context,
	selector docsync.Selector,
	opts *docsync.FindOptions,
) docsync.Stream[docsync.Document] {
	e := docsync.NewEmitter[docsync.Document]()
	go func() {
		defer e.Close()
		opts := opts.Copy()
		opts.Limit = 1
		docs, err := m.Find(ctx, selector, opts).Last()
		switch {
		case err != nil:
			e.Fail(err)
		case len(docs) == 0:
			e.Emit(nil)
		default:
			e.Emit(docs[0])
		}
	}()
	return e.Stream()
}

// Upsert writes documents into the backing store.
//
// Bases are only validated, the mock never detects conflicts.
func (m *Remote) Upsert(
	ctx context.Context,
	docs []docsync.Document,
	bases []docsync.Document,
) ([]docsync.Document, error) {
	m.count(OpUpsert, nil)
	if err := sleep(ctx, m.UpsertDelay.Before); err != nil {
		return nil, err
	}
	upserts, err := docsync.NormalizeUpserts(docs, bases)
	if err != nil {
		return nil, err
	}
	ret := make([]docsync.Document, len(upserts))
	for i, u := range upserts {
		if err := m.fail(OpUpsert, u.Doc.ID()); err != nil {
			return nil, err
		}
		doc := u.Doc.Clone()
		if m.Canonical != nil {
			doc = m.Canonical(doc)
		}
		if doc == nil {
			if err := m.store.Remove(ctx, u.Doc.ID()); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := m.store.Upsert(ctx, []docsync.Document{doc}, nil); err != nil {
			return nil, err
		}
		ret[i] = doc
	}
	if err := sleep(ctx, m.UpsertDelay.After); err != nil {
		return nil, err
	}
	return ret, nil
}

// Remove removes a document from the backing store.
func (m *Remote) Remove(ctx context.Context, id string) error {
	m.count(OpRemove, nil)
	if err := sleep(ctx, m.RemoveDelay.Before); err != nil {
		return err
	}
	if err := m.fail(OpRemove, id); err != nil {
		return err
	}
	if err := m.store.Remove(ctx, id); err != nil {
		return err
	}
	return sleep(ctx, m.RemoveDelay.After)
}

// RemoveMatching removes matching documents from the backing store,
// one at a time.
func (m *Remote) RemoveMatching(ctx context.Context, selector docsync.Selector) error {
	docs, err := m.store.Find(ctx, selector, nil).Last()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := m.Remove(ctx, doc.ID()); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Status returns a Fail function failing every op on id with status.
func Status(op Op, id string, status int) func(Op, string) error {
	return func(o Op, i string) error {
		if o == op && i == id {
			return &docsync.TransportError{Status: status}
		}
		return nil
	}
}
