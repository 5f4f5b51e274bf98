package quickfind_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fishy/docsync"
	"github.com/fishy/docsync/quickfind"
	"github.com/fishy/docsync/selector"
)

func row(id string, rev int, kv ...any) docsync.Document {
	doc := docsync.Document{docsync.IDField: id, docsync.RevField: rev}
	for i := 0; i+1 < len(kv); i += 2 {
		doc[kv[i].(string)] = kv[i+1]
	}
	return doc
}

func TestRoundTrip(t *testing.T) {
	server := []docsync.Document{
		row("aa1", 1),
		row("aa2", 2),
		row("bb1", 1),
		row("cc1", 1),
		row("x", 1),
	}

	for _, c := range []struct {
		label   string
		client  []docsync.Document
		changed []string
	}{
		{
			label:   "empty-client",
			client:  nil,
			changed: []string{"aa", "bb", "cc", "x"},
		},
		{
			label:   "up-to-date",
			client:  server,
			changed: []string{},
		},
		{
			label: "stale",
			client: []docsync.Document{
				row("aa1", 1),
				row("aa2", 1),
				row("bb1", 1),
				row("dd1", 1),
				row("x", 1),
			},
			changed: []string{"aa", "cc", "dd"},
		},
	} {
		t.Run(c.label, func(t *testing.T) {
			resp := quickfind.EncodeResponse(server, quickfind.EncodeRequest(c.client))
			keys := make([]string, 0, len(resp))
			for key := range resp {
				keys = append(keys, key)
			}
			assert.ElementsMatch(t, c.changed, keys)

			decoded := quickfind.DecodeResponse(resp, c.client, nil)
			assert.Equal(t, docsync.IDs(server), docsync.IDs(decoded))
			for i := range server {
				assert.True(t, docsync.Equal(server[i], decoded[i]), "%v != %v", server[i], decoded[i])
			}
		})
	}
}

func TestDecodeSorted(t *testing.T) {
	server := []docsync.Document{
		row("aa1", 1, "n", 3),
		row("bb1", 1, "n", 1),
		row("cc1", 1, "n", 2),
	}
	client := []docsync.Document{row("bb1", 1, "n", 1)}
	compare := selector.New().Compare([]docsync.SortField{{Field: "n"}})

	resp := quickfind.EncodeResponse(server, quickfind.EncodeRequest(client))
	decoded := quickfind.DecodeResponse(resp, client, compare)
	assert.Equal(t, []string{"bb1", "cc1", "aa1"}, docsync.IDs(decoded))

	assert.Equal(t, []docsync.Document{}, quickfind.DecodeResponse(nil, nil, nil))
}

func TestDigest(t *testing.T) {
	a := []docsync.Document{row("aa1", 1), row("aa2", 2)}
	b := []docsync.Document{row("aa2", 2), row("aa1", 1, "ignored", true)}
	assert.Equal(t, quickfind.Digest(a), quickfind.Digest(b))
	assert.Len(t, quickfind.Digest(a), quickfind.DigestSize*2)

	c := []docsync.Document{row("aa1", 1), row("aa2", 3)}
	assert.NotEqual(t, quickfind.Digest(a), quickfind.Digest(c))

	// Revision renders the same regardless of numeric type after JSON decoding.
	d := []docsync.Document{
		{docsync.IDField: "aa1", docsync.RevField: float64(1)},
		{docsync.IDField: "aa2", docsync.RevField: float64(2)},
	}
	assert.Equal(t, quickfind.Digest(a), quickfind.Digest(d))
}

func TestShardKey(t *testing.T) {
	for _, c := range []struct {
		id, expect string
	}{
		{"abc", "ab"},
		{"ab", "ab"},
		{"a", "a"},
		{"", ""},
	} {
		t.Run(fmt.Sprintf("%q", c.id), func(t *testing.T) {
			assert.Equal(t, c.expect, quickfind.ShardKey(c.id))
		})
	}
}

func TestEligible(t *testing.T) {
	assert.True(t, quickfind.Eligible(nil))
	assert.True(t, quickfind.Eligible(&docsync.FindOptions{}))
	assert.True(t, quickfind.Eligible(&docsync.FindOptions{
		Sort:  []docsync.SortField{{Field: "n"}},
		Limit: 10,
	}))
	assert.False(t, quickfind.Eligible(&docsync.FindOptions{Limit: 10}))
	assert.False(t, quickfind.Eligible(&docsync.FindOptions{Fields: docsync.Fields{"n": true}}))
	assert.True(t, quickfind.Eligible(&docsync.FindOptions{
		Fields: docsync.Fields{"n": true, docsync.RevField: true},
	}))
	assert.True(t, quickfind.Eligible(&docsync.FindOptions{Fields: docsync.Fields{"n": false}}))
	assert.False(t, quickfind.Eligible(&docsync.FindOptions{
		Fields: docsync.Fields{docsync.RevField: false},
	}))
}
