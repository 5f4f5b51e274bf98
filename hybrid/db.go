package hybrid

import (
	"context"
	"fmt"

	"github.com/fishy/docsync"
)

// NewDB creates a docsync.Database of hybrid collections.
//
// Adding a collection named n adds n to both localDB and remoteDB,
// and the collection from localDB must implement docsync.Local.
func NewDB(localDB, remoteDB *docsync.Database, opts Options) *docsync.Database {
	return NewDBFunc(localDB, remoteDB, func(string) Options {
		return opts
	})
}

// NewDBFunc is NewDB with the options of every collection returned by opts,
// called with the collection name.
func NewDBFunc(localDB, remoteDB *docsync.Database, opts func(name string) Options) *docsync.Database {
	return docsync.NewDatabase(func(name string) (docsync.Collection, error) {
		lc, err := localDB.AddCollection(name)
		if err != nil {
			return nil, err
		}
		local, ok := lc.(docsync.Local)
		if !ok {
			return nil, fmt.Errorf("hybrid: local collection %q is %T, not a docsync.Local", name, lc)
		}
		remote, err := remoteDB.AddCollection(name)
		if err != nil {
			return nil, err
		}
		return Open(local, remote, opts(name)), nil
	})
}

// Migrate moves the pending changes of from into to,
// as if to was the remote side of from.
//
// It's useful when switching local storage backends.
func Migrate(ctx context.Context, from, to docsync.Local) error {
	return Open(from, to, NewDefaultOptions()).Upload(ctx)
}

// Clone copies everything from one local collection into another:
// the documents (as seeded, not pending), the pending upserts with their bases
// and the pending removes.
func Clone(ctx context.Context, from, to docsync.Local) error {
	upserts, err := from.PendingUpserts(ctx)
	if err != nil {
		return err
	}
	pending := docsync.IndexByID(docsync.Docs(upserts))

	docs, err := from.Find(ctx, nil, nil).Last()
	if err != nil {
		return err
	}
	seeds := make([]docsync.Document, 0, len(docs))
	for _, doc := range docs {
		// Seeding them would turn their bases into the pending documents.
		if _, ok := pending[doc.ID()]; !ok {
			seeds = append(seeds, doc)
		}
	}
	if err := to.Seed(ctx, seeds); err != nil {
		return err
	}

	if len(upserts) > 0 {
		if _, err := to.Upsert(ctx, docsync.Docs(upserts), docsync.Bases(upserts)); err != nil {
			return err
		}
	}

	removes, err := from.PendingRemoves(ctx)
	if err != nil {
		return err
	}
	for _, id := range removes {
		if err := to.Remove(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
