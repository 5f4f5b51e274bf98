package mock_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/mock"
)

func TestRemote(t *testing.T) {
	ctx := context.Background()
	m := mock.New("things")
	assert.Equal(t, "things", m.Name())

	docs, err := m.Upsert(ctx, []docsync.Document{{docsync.IDField: "a", "n": 1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, docsync.IDs(docs))

	opts := &docsync.FindOptions{Sort: []docsync.SortField{{Field: "n"}}, Limit: 5}
	found, err := m.Find(ctx, nil, opts).Last()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, docsync.IDs(found))
	assert.Equal(t, 5, m.LastFindOptions().Limit)

	one, err := m.FindOne(ctx, docsync.Selector{"n": 1}, nil).Last()
	require.NoError(t, err)
	assert.Equal(t, "a", one.ID())
	assert.Equal(t, 1, m.LastFindOptions().Limit)

	require.NoError(t, m.RemoveMatching(ctx, docsync.Selector{"n": 1}))
	found, err = m.Store().Find(ctx, nil, nil).Last()
	require.NoError(t, err)
	assert.Empty(t, found)

	assert.Equal(t, 2, m.Calls(mock.OpFind))
	assert.Equal(t, 1, m.Calls(mock.OpUpsert))
	assert.Equal(t, 1, m.Calls(mock.OpRemove))
}

func TestFail(t *testing.T) {
	ctx := context.Background()
	m := mock.New("things")
	m.Fail = mock.Status(mock.OpUpsert, "b", http.StatusForbidden)

	_, err := m.Upsert(ctx, []docsync.Document{{docsync.IDField: "a"}}, nil)
	require.NoError(t, err)
	_, err = m.Upsert(ctx, []docsync.Document{{docsync.IDField: "b"}}, nil)
	assert.True(t, docsync.IsForbidden(err), "%v", err)
	assert.NoError(t, m.Remove(ctx, "b"))
}

func TestCanonical(t *testing.T) {
	ctx := context.Background()
	m := mock.New("things")
	m.Canonical = func(doc docsync.Document) docsync.Document {
		if doc.ID() == "deleted" {
			return nil
		}
		doc[docsync.RevField] = 1
		return doc
	}

	docs, err := m.Upsert(
		ctx,
		[]docsync.Document{{docsync.IDField: "a"}, {docsync.IDField: "deleted"}},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, docs[0][docsync.RevField])
	assert.Nil(t, docs[1])

	found, err := m.Store().Find(ctx, nil, nil).Last()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, docsync.IDs(found))
}

func TestDelay(t *testing.T) {
	m := mock.New("things")
	m.FindDelay = mock.OperationDelay{Before: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Find(ctx, nil, nil).Last()
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	m = mock.New("things")
	m.UpsertDelay = mock.OperationDelay{After: 20 * time.Millisecond}
	start := time.Now()
	_, err = m.Upsert(context.Background(), []docsync.Document{{docsync.IDField: "a"}}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
