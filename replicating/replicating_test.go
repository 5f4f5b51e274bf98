package replicating_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/hybrid"
	"github.com/fishy/docsync/local"
	"github.com/fishy/docsync/mock"
	"github.com/fishy/docsync/replicating"
)

const name = "things"

func doc(id string, kv ...any) docsync.Document {
	d := docsync.Document{docsync.IDField: id}
	for i := 0; i+1 < len(kv); i += 2 {
		d[kv[i].(string)] = kv[i+1]
	}
	return d
}

func open() (*replicating.Collection, *local.Collection, *local.Collection) {
	master := local.Open(name, local.NewDefaultOptions())
	replica := local.Open(name, local.NewDefaultOptions())
	return replicating.Open(master, replica, replicating.NewDefaultOptions()), master, replica
}

func ids(t *testing.T, col docsync.Collection) []string {
	t.Helper()
	docs, err := col.Find(context.Background(), nil, nil).Last()
	require.NoError(t, err)
	return docsync.IDs(docs)
}

var errBroken = errors.New("broken")

// brokenUpsert is a local collection failing every upsert.
type brokenUpsert struct {
	*local.Collection
}

func (brokenUpsert) Upsert(context.Context, []docsync.Document, []docsync.Document) ([]docsync.Document, error) {
	return nil, errBroken
}

func TestReadsFromMaster(t *testing.T) {
	ctx := context.Background()
	c, master, replica := open()
	require.NoError(t, master.Seed(ctx, []docsync.Document{doc("m")}))
	require.NoError(t, replica.Seed(ctx, []docsync.Document{doc("r")}))

	assert.Equal(t, []string{"m"}, ids(t, c))
	got, err := c.FindOne(ctx, nil, nil).Last()
	require.NoError(t, err)
	assert.Equal(t, "m", got.ID())
}

func TestWritesBoth(t *testing.T) {
	ctx := context.Background()
	c, master, replica := open()

	docs, err := c.Upsert(ctx, []docsync.Document{{"x": 1}, doc("b")}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	id := docs[0].ID()
	require.NotEmpty(t, id)

	for _, col := range []*local.Collection{master, replica} {
		assert.ElementsMatch(t, []string{id, "b"}, ids(t, col))
		upserts, err := col.PendingUpserts(ctx)
		require.NoError(t, err)
		assert.Len(t, upserts, 2)
	}

	require.NoError(t, c.Remove(ctx, "b"))
	require.NoError(t, c.RemoveMatching(ctx, docsync.Selector{"x": 1}))
	for _, col := range []*local.Collection{master, replica} {
		assert.Empty(t, ids(t, col))
		removes, err := col.PendingRemoves(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{id, "b"}, removes)
	}
}

func TestReplicaFailure(t *testing.T) {
	ctx := context.Background()
	master := local.Open(name, local.NewDefaultOptions())
	replica := brokenUpsert{local.Open(name, local.NewDefaultOptions())}
	c := replicating.Open(master, replica, replicating.NewDefaultOptions())

	_, err := c.Upsert(ctx, []docsync.Document{doc("a")}, nil)
	require.Error(t, err)
	assert.True(t, replicating.IsReplicaError(err), "%v", err)
	assert.ErrorIs(t, err, errBroken)

	// The master already applied it.
	assert.Equal(t, []string{"a"}, ids(t, master))
	assert.Empty(t, ids(t, replica))
}

func TestUpsertValidation(t *testing.T) {
	c, master, _ := open()
	_, err := c.Upsert(
		context.Background(),
		[]docsync.Document{doc("a")},
		[]docsync.Document{doc("b")},
	)
	assert.True(t, docsync.IsValidationError(err), "%v", err)
	assert.Empty(t, ids(t, master))
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	c, master, replica := open()
	require.NoError(t, c.Seed(ctx, []docsync.Document{
		doc("a", "x", 1),
		doc("b", "x", 1),
		doc("c", "x", 1),
	}))
	_, err := c.Upsert(ctx, []docsync.Document{doc("p", "x", 1)}, nil)
	require.NoError(t, err)

	require.NoError(t, c.Cache(
		ctx,
		[]docsync.Document{doc("a", "x", 1, "y", 2), doc("c", "x", 1), doc("d", "x", 1)},
		docsync.Selector{"x": 1},
		nil,
	))

	for _, col := range []*local.Collection{master, replica} {
		assert.Equal(t, []string{"a", "c", "d", "p"}, ids(t, col))
		got, err := col.FindOne(ctx, docsync.Selector{docsync.IDField: "a"}, nil).Last()
		require.NoError(t, err)
		assert.Equal(t, 2, got["y"])
	}
}

func TestCacheWindow(t *testing.T) {
	ctx := context.Background()
	c, master, replica := open()
	require.NoError(t, c.Seed(ctx, []docsync.Document{
		doc("a", "n", 1),
		doc("b", "n", 2),
		doc("c", "n", 3),
		doc("d", "n", 4),
	}))

	opts := &docsync.FindOptions{
		Sort:  []docsync.SortField{{Field: "n"}},
		Limit: 2,
	}
	require.NoError(t, c.Cache(ctx, []docsync.Document{doc("a", "n", 1), doc("c", "n", 3)}, nil, opts))

	// b was inside the window, d beyond it.
	for _, col := range []*local.Collection{master, replica} {
		assert.Equal(t, []string{"a", "c", "d"}, ids(t, col))
	}
}

func TestCacheRevision(t *testing.T) {
	ctx := context.Background()
	c, master, replica := open()
	require.NoError(t, c.Seed(ctx, []docsync.Document{doc("a", docsync.RevField, 2, "v", "new")}))

	require.NoError(t, c.Cache(ctx, []docsync.Document{doc("a", docsync.RevField, 1, "v", "old")}, nil, nil))
	for _, col := range []*local.Collection{master, replica} {
		got, err := col.FindOne(ctx, nil, nil).Last()
		require.NoError(t, err)
		assert.Equal(t, "new", got["v"])
	}

	require.NoError(t, c.Cache(ctx, []docsync.Document{doc("a", docsync.RevField, 3, "v", "newer")}, nil, nil))
	for _, col := range []*local.Collection{master, replica} {
		got, err := col.FindOne(ctx, nil, nil).Last()
		require.NoError(t, err)
		assert.Equal(t, "newer", got["v"])
	}
}

func TestHybridOverReplicating(t *testing.T) {
	ctx := context.Background()
	c, master, replica := open()
	remote := mock.New(name)
	h := hybrid.Open(c, remote, hybrid.NewDefaultOptions())

	_, err := h.Upsert(ctx, []docsync.Document{doc("a")}, nil)
	require.NoError(t, err)
	require.NoError(t, h.Remove(ctx, "b"))
	require.NoError(t, h.Upload(ctx))

	for _, col := range []*local.Collection{master, replica} {
		assert.Equal(t, []string{"a"}, ids(t, col))
		upserts, err := col.PendingUpserts(ctx)
		require.NoError(t, err)
		assert.Empty(t, upserts)
		removes, err := col.PendingRemoves(ctx)
		require.NoError(t, err)
		assert.Empty(t, removes)
	}
}

func TestNewDB(t *testing.T) {
	db := replicating.NewDB(
		local.NewDB(local.NewDefaultOptions()),
		local.NewDB(local.NewDefaultOptions()),
		replicating.NewDefaultOptions(),
	)
	col, err := db.AddCollection(name)
	require.NoError(t, err)
	_, ok := col.(docsync.Local)
	assert.True(t, ok)

	bad := replicating.NewDB(
		local.NewDB(local.NewDefaultOptions()),
		docsync.NewDatabase(func(name string) (docsync.Collection, error) {
			return mock.New(name), nil
		}),
		replicating.NewDefaultOptions(),
	)
	_, err = bad.AddCollection(name)
	assert.Error(t, err)
}
