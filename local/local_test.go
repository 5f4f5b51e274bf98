package local_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/local"
)

func doc(id string, kv ...any) docsync.Document {
	d := docsync.Document{docsync.IDField: id}
	for i := 0; i+1 < len(kv); i += 2 {
		d[kv[i].(string)] = kv[i+1]
	}
	return d
}

func open() *local.Collection {
	return local.Open("test", local.NewDefaultOptions())
}

func find(t *testing.T, col docsync.Collection, selector docsync.Selector, opts *docsync.FindOptions) []docsync.Document {
	t.Helper()
	docs, err := col.Find(context.Background(), selector, opts).Last()
	require.NoError(t, err)
	return docs
}

func TestUpsertFindRemove(t *testing.T) {
	ctx := context.Background()
	col := open()

	docs, err := col.Upsert(ctx, []docsync.Document{doc("b", "n", 2), doc("a", "n", 1), {"n": 3}}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	created := docs[2].ID()
	assert.NotEmpty(t, created)

	assert.ElementsMatch(t, []string{"a", "b", created}, docsync.IDs(find(t, col, nil, nil)))
	assert.Equal(
		t,
		[]string{created, "b"},
		docsync.IDs(find(t, col, docsync.Selector{"n": docsync.Selector{"$gte": 2}}, &docsync.FindOptions{
			Sort: []docsync.SortField{{Field: "n", Desc: true}},
		})),
	)

	one, err := col.FindOne(ctx, docsync.Selector{"n": 1}, nil).Last()
	require.NoError(t, err)
	assert.Equal(t, "a", one.ID())
	none, err := col.FindOne(ctx, docsync.Selector{"n": 10}, nil).Last()
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, col.Remove(ctx, "a"))
	require.NoError(t, col.RemoveMatching(ctx, docsync.Selector{"n": 2}))
	assert.Equal(t, []string{created}, docsync.IDs(find(t, col, nil, nil)))

	removes, err := col.PendingRemoves(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, removes)
	upserts, err := col.PendingUpserts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{created}, docsync.IDs(docsync.Docs(upserts)))
}

func TestUnsortedFindOrder(t *testing.T) {
	ctx := context.Background()
	col := open()
	require.NoError(t, col.Seed(ctx, []docsync.Document{doc("c"), doc("a"), doc("b")}))
	assert.Equal(t, []string{"a", "b", "c"}, docsync.IDs(find(t, col, nil, nil)))
}

func TestUpsertValidation(t *testing.T) {
	ctx := context.Background()
	col := open()

	_, err := col.Upsert(
		ctx,
		[]docsync.Document{doc("a"), doc("b")},
		[]docsync.Document{nil, doc("c")},
	)
	assert.True(t, docsync.IsValidationError(err), "%v", err)
	assert.Empty(t, find(t, col, nil, nil))
}

func TestUpsertBase(t *testing.T) {
	ctx := context.Background()
	col := open()
	require.NoError(t, col.CacheOne(ctx, doc("a", "n", 0)))

	// Without a base, the cached document becomes the base.
	_, err := col.Upsert(ctx, []docsync.Document{doc("a", "n", 1)}, nil)
	require.NoError(t, err)
	// The first base is kept across edits.
	_, err = col.Upsert(ctx, []docsync.Document{doc("a", "n", 2)}, nil)
	require.NoError(t, err)

	upserts, err := col.PendingUpserts(ctx)
	require.NoError(t, err)
	require.Len(t, upserts, 1)
	assert.Equal(t, doc("a", "n", 2), upserts[0].Doc)
	assert.Equal(t, doc("a", "n", 0), upserts[0].Base)

	// An explicit base wins.
	_, err = col.Upsert(ctx, []docsync.Document{doc("a", "n", 3)}, []docsync.Document{doc("a", "n", 2)})
	require.NoError(t, err)
	upserts, err = col.PendingUpserts(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc("a", "n", 2), upserts[0].Base)

	// Fresh documents have no base.
	_, err = col.Upsert(ctx, []docsync.Document{doc("b")}, nil)
	require.NoError(t, err)
	upserts, err = col.PendingUpserts(ctx)
	require.NoError(t, err)
	require.Len(t, upserts, 2)
	assert.Equal(t, "b", upserts[1].Doc.ID())
	assert.Nil(t, upserts[1].Base)
}

func TestUpsertAfterRemove(t *testing.T) {
	ctx := context.Background()
	col := open()

	require.NoError(t, col.Remove(ctx, "a"))
	_, err := col.Upsert(ctx, []docsync.Document{doc("a")}, nil)
	require.NoError(t, err)

	removes, err := col.PendingRemoves(ctx)
	require.NoError(t, err)
	assert.Empty(t, removes)
	assert.Equal(t, []string{"a"}, docsync.IDs(find(t, col, nil, nil)))

	// And the other way around.
	require.NoError(t, col.Remove(ctx, "a"))
	upserts, err := col.PendingUpserts(ctx)
	require.NoError(t, err)
	assert.Empty(t, upserts)
	removes, err = col.PendingRemoves(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, removes)
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("evict", func(t *testing.T) {
		col := open()
		require.NoError(t, col.CacheList(ctx, []docsync.Document{doc("a"), doc("b"), doc("c")}))
		require.NoError(t, col.Cache(ctx, []docsync.Document{doc("a"), doc("c")}, nil, nil))
		assert.Equal(t, []string{"a", "c"}, docsync.IDs(find(t, col, nil, nil)))
	})

	t.Run("selector", func(t *testing.T) {
		col := open()
		require.NoError(t, col.CacheList(ctx, []docsync.Document{
			doc("a", "k", 1),
			doc("b", "k", 1),
			doc("c", "k", 2),
		}))
		require.NoError(t, col.Cache(ctx, []docsync.Document{doc("a", "k", 1)}, docsync.Selector{"k": 1}, nil))
		assert.Equal(t, []string{"a", "c"}, docsync.IDs(find(t, col, nil, nil)))
	})

	t.Run("pending", func(t *testing.T) {
		col := open()
		require.NoError(t, col.CacheList(ctx, []docsync.Document{doc("a"), doc("b")}))
		_, err := col.Upsert(ctx, []docsync.Document{doc("b", "n", 1)}, nil)
		require.NoError(t, err)
		require.NoError(t, col.Cache(ctx, []docsync.Document{doc("a")}, nil, nil))
		docs := find(t, col, nil, nil)
		assert.Equal(t, []string{"a", "b"}, docsync.IDs(docs))
		assert.Equal(t, 1, docs[1]["n"])
	})

	t.Run("sorted-window", func(t *testing.T) {
		col := open()
		require.NoError(t, col.CacheList(ctx, []docsync.Document{
			doc("a", "n", 1),
			doc("b", "n", 2),
			doc("c", "n", 3),
			doc("d", "n", 4),
		}))
		// Remote says the first 2 are a and c: b is gone, d is just beyond the
		// window.
		require.NoError(t, col.Cache(
			ctx,
			[]docsync.Document{doc("a", "n", 1), doc("c", "n", 3)},
			nil,
			&docsync.FindOptions{Sort: []docsync.SortField{{Field: "n"}}, Limit: 2},
		))
		assert.Equal(t, []string{"a", "c", "d"}, docsync.IDs(find(t, col, nil, nil)))
	})

	t.Run("projected", func(t *testing.T) {
		col := open()
		require.NoError(t, col.CacheList(ctx, []docsync.Document{doc("a", "n", 1, "x", 1), doc("b", "n", 2)}))
		require.NoError(t, col.Cache(
			ctx,
			[]docsync.Document{doc("a", "n", 1)},
			nil,
			&docsync.FindOptions{Fields: docsync.Fields{"n": true}},
		))
		assert.Equal(t, []string{"a"}, docsync.IDs(find(t, col, nil, nil)))
	})
}

func TestCacheList(t *testing.T) {
	ctx := context.Background()
	col := open()

	require.NoError(t, col.CacheList(ctx, []docsync.Document{
		doc("a", docsync.RevField, 2, "v", "a2"),
		doc("b", "v", "b"),
		{"v": "no id"},
	}))
	assert.Equal(t, []string{"a", "b"}, docsync.IDs(find(t, col, nil, nil)))

	// Equal or lower revisions are ignored.
	require.NoError(t, col.CacheOne(ctx, doc("a", docsync.RevField, 2, "v", "a2-again")))
	require.NoError(t, col.CacheOne(ctx, doc("a", docsync.RevField, 1, "v", "a1")))
	one, err := col.FindOne(ctx, docsync.Selector{docsync.IDField: "a"}, nil).Last()
	require.NoError(t, err)
	assert.Equal(t, "a2", one["v"])

	require.NoError(t, col.CacheOne(ctx, doc("a", docsync.RevField, 3, "v", "a3")))
	one, err = col.FindOne(ctx, docsync.Selector{docsync.IDField: "a"}, nil).Last()
	require.NoError(t, err)
	assert.Equal(t, "a3", one["v"])

	// Pending removes are not resurrected.
	require.NoError(t, col.Remove(ctx, "b"))
	require.NoError(t, col.CacheOne(ctx, doc("b", "v", "b2")))
	assert.Equal(t, []string{"a"}, docsync.IDs(find(t, col, nil, nil)))

	// Nor are pending upserts overwritten.
	_, err = col.Upsert(ctx, []docsync.Document{doc("c", "v", "mine")}, nil)
	require.NoError(t, err)
	require.NoError(t, col.CacheOne(ctx, doc("c", "v", "theirs")))
	one, err = col.FindOne(ctx, docsync.Selector{docsync.IDField: "c"}, nil).Last()
	require.NoError(t, err)
	assert.Equal(t, "mine", one["v"])
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	col := open()

	require.NoError(t, col.CacheOne(ctx, doc("a", "v", "cached")))
	require.NoError(t, col.Remove(ctx, "b"))
	require.NoError(t, col.Seed(ctx, []docsync.Document{
		doc("a", "v", "seed"),
		doc("b", "v", "seed"),
		doc("c", "v", "seed"),
	}))

	docs := find(t, col, nil, nil)
	assert.Equal(t, []string{"a", "c"}, docsync.IDs(docs))
	assert.Equal(t, "cached", docs[0]["v"])

	upserts, err := col.PendingUpserts(ctx)
	require.NoError(t, err)
	assert.Empty(t, upserts)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	col := open()

	_, err := col.Upsert(ctx, []docsync.Document{doc("a", "n", 1), doc("b", "n", 1)}, nil)
	require.NoError(t, err)
	uploading, err := col.PendingUpserts(ctx)
	require.NoError(t, err)

	// b is edited again while uploading.
	_, err = col.Upsert(ctx, []docsync.Document{doc("b", "n", 2)}, nil)
	require.NoError(t, err)
	require.NoError(t, col.ResolveUpserts(ctx, uploading))

	upserts, err := col.PendingUpserts(ctx)
	require.NoError(t, err)
	require.Len(t, upserts, 1)
	assert.Equal(t, doc("b", "n", 2), upserts[0].Doc)
	assert.Equal(t, doc("b", "n", 1), upserts[0].Base)

	// Unknown ids are ignored.
	require.NoError(t, col.ResolveUpserts(ctx, []docsync.Upsert{{Doc: doc("z")}}))

	require.NoError(t, col.Remove(ctx, "a"))
	require.NoError(t, col.ResolveRemove(ctx, "a"))
	removes, err := col.PendingRemoves(ctx)
	require.NoError(t, err)
	assert.Empty(t, removes)
}

func TestUncache(t *testing.T) {
	ctx := context.Background()
	col := open()

	require.NoError(t, col.CacheList(ctx, []docsync.Document{
		doc("a", "k", 1),
		doc("b", "k", 1),
		doc("c", "k", 2),
		doc("d", "k", 2),
	}))
	_, err := col.Upsert(ctx, []docsync.Document{doc("b", "k", 1, "mine", true)}, nil)
	require.NoError(t, err)

	require.NoError(t, col.Uncache(ctx, docsync.Selector{"k": 1}))
	assert.Equal(t, []string{"b", "c", "d"}, docsync.IDs(find(t, col, nil, nil)))

	require.NoError(t, col.UncacheList(ctx, []string{"b", "c", "z"}))
	assert.Equal(t, []string{"b", "d"}, docsync.IDs(find(t, col, nil, nil)))
}

func TestSafety(t *testing.T) {
	ctx := context.Background()

	t.Run("clone", func(t *testing.T) {
		col := open()
		input := doc("a", "tags", []any{"x"})
		require.NoError(t, col.CacheOne(ctx, input))
		input["tags"].([]any)[0] = "changed"

		docs := find(t, col, nil, nil)
		assert.Equal(t, "x", docs[0]["tags"].([]any)[0])
		docs[0]["tags"].([]any)[0] = "changed"
		assert.Equal(t, "x", find(t, col, nil, nil)[0]["tags"].([]any)[0])
	})

	t.Run("freeze", func(t *testing.T) {
		col := local.Open("test", local.NewDefaultOptions().SetSafety(local.SafetyFreeze))
		input := doc("a")
		require.NoError(t, col.CacheOne(ctx, input))
		input["shared"] = true
		assert.Equal(t, true, find(t, col, nil, nil)[0]["shared"])
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Panics(t, func() {
			local.Open("test", local.NewDefaultOptions().SetSafety(local.Safety(42)))
		})
	})
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	col := open()

	_, err := col.Find(ctx, nil, nil).Last()
	assert.ErrorIs(t, err, context.Canceled)
	_, err = col.Upsert(ctx, []docsync.Document{doc("a")}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, col.Remove(ctx, "a"), context.Canceled)
	assert.ErrorIs(t, col.CacheOne(ctx, doc("a")), context.Canceled)
}

func TestNewDB(t *testing.T) {
	db := local.NewDB(local.NewDefaultOptions())
	col, err := db.AddCollection("things")
	require.NoError(t, err)
	assert.Equal(t, "things", col.Name())
	_, ok := col.(docsync.Local)
	assert.True(t, ok)
}
