package docsync_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/local"
)

// uploading is a local collection counting its uploads.
type uploading struct {
	*local.Collection

	err      error
	running  atomic.Int32
	overlaps atomic.Int32
	uploads  atomic.Int32
}

func (u *uploading) Upload(ctx context.Context) error {
	if u.running.Add(1) > 1 {
		u.overlaps.Add(1)
	}
	defer u.running.Add(-1)
	time.Sleep(time.Millisecond)
	u.uploads.Add(1)
	return u.err
}

func TestDatabase(t *testing.T) {
	var created []string
	db := docsync.NewDatabase(func(name string) (docsync.Collection, error) {
		if name == "bad" {
			return nil, errors.New("foobar")
		}
		created = append(created, name)
		return local.Open(name, local.NewDefaultOptions()), nil
	})

	b, err := db.AddCollection("b")
	require.NoError(t, err)
	_, err = db.AddCollection("a")
	require.NoError(t, err)
	again, err := db.AddCollection("b")
	require.NoError(t, err)
	assert.Same(t, b, again)
	assert.Equal(t, []string{"b", "a"}, created)

	_, err = db.AddCollection("bad")
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, db.CollectionNames())

	col, ok := db.Collection("a")
	assert.True(t, ok)
	assert.Equal(t, "a", col.Name())

	db.RemoveCollection("a")
	_, ok = db.Collection("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, db.CollectionNames())

	// Local collections are not uploaders.
	assert.NoError(t, db.Upload(context.Background()))
}

func TestDatabaseUpload(t *testing.T) {
	cols := make(map[string]*uploading)
	db := docsync.NewDatabase(func(name string) (docsync.Collection, error) {
		u := &uploading{Collection: local.Open(name, local.NewDefaultOptions())}
		cols[name] = u
		return u, nil
	})
	for _, name := range []string{"a", "b", "c"} {
		_, err := db.AddCollection(name)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, db.Upload(context.Background()))
		}()
	}
	wg.Wait()
	for name, u := range cols {
		assert.Equal(t, int32(4), u.uploads.Load(), name)
		assert.Zero(t, u.overlaps.Load(), name)
	}

	// Stops at the first error.
	want := errors.New("foobar")
	cols["b"].err = want
	err := db.Upload(context.Background())
	assert.ErrorIs(t, err, want)
	assert.Equal(t, int32(5), cols["a"].uploads.Load())
	assert.Equal(t, int32(5), cols["b"].uploads.Load())
	assert.Equal(t, int32(4), cols["c"].uploads.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, db.Upload(ctx), context.Canceled)
}
