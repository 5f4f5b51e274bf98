package docsync

import (
	"context"
	"sort"
	"sync"

	"github.com/fishy/rowlock"
)

// Factory creates the named collection of a Database.
type Factory func(name string) (Collection, error)

// Database is a named registry of collections.
//
// It's created at startup and discarded with the owning session.
// There's no need to close it.
type Database struct {
	factory Factory

	lock        sync.RWMutex
	collections map[string]Collection

	uploads *rowlock.RowLock
}

// NewDatabase creates a Database creating its collections with factory.
func NewDatabase(factory Factory) *Database {
	return &Database{
		factory:     factory,
		collections: make(map[string]Collection),
		uploads:     rowlock.NewRowLock(rowlock.MutexNewLocker),
	}
}

// AddCollection creates the named collection,
// or returns the existing one if it was already added.
func (db *Database) AddCollection(name string) (Collection, error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	if col, ok := db.collections[name]; ok {
		return col, nil
	}
	col, err := db.factory(name)
	if err != nil {
		return nil, err
	}
	db.collections[name] = col
	return col, nil
}

// Collection returns the named collection.
func (db *Database) Collection(name string) (Collection, bool) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	col, ok := db.collections[name]
	return col, ok
}

// RemoveCollection forgets the named collection.
//
// The underlying storage, if any, is not touched.
func (db *Database) RemoveCollection(name string) {
	db.lock.Lock()
	defer db.lock.Unlock()
	delete(db.collections, name)
}

// CollectionNames returns the names of all collections, sorted.
func (db *Database) CollectionNames() []string {
	db.lock.RLock()
	defer db.lock.RUnlock()
	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upload uploads the pending changes of every collection implementing
// Uploader, one collection at a time in name order.
//
// It stops at the first collection returning an error.
// Concurrent Upload calls never upload the same collection at the same time.
func (db *Database) Upload(ctx context.Context) error {
	for _, name := range db.CollectionNames() {
		select {
		default:
		case <-ctx.Done():
			return ctx.Err()
		}

		col, ok := db.Collection(name)
		if !ok {
			continue
		}
		uploader, ok := col.(Uploader)
		if !ok {
			continue
		}
		if err := db.upload(ctx, name, uploader); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) upload(ctx context.Context, name string, u Uploader) error {
	db.uploads.Lock(name)
	defer db.uploads.Unlock(name)
	return u.Upload(ctx)
}
