package docsync

import (
	"slices"
)

// ProcessFind filters, sorts, skips, limits and projects docs.
//
// docs itself is not modified, but unprojected results share the documents
// with it.
func ProcessFind(
	m Matcher,
	docs []Document,
	selector Selector,
	opts *FindOptions,
) []Document {
	ret := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if m.Match(selector, doc) {
			ret = append(ret, doc)
		}
	}
	if opts == nil {
		return ret
	}

	if compare := m.Compare(opts.Sort); compare != nil {
		slices.SortStableFunc(ret, compare)
	}
	if opts.Skip > 0 {
		if opts.Skip >= len(ret) {
			ret = ret[:0]
		} else {
			ret = ret[opts.Skip:]
		}
	}
	if opts.Limit > 0 && len(ret) > opts.Limit {
		ret = ret[:opts.Limit]
	}
	if project := m.Project(opts.Fields); project != nil {
		for i, doc := range ret {
			ret[i] = project(doc)
		}
	}
	return ret
}

// Evictable reports whether candidate, a cached document matching a query
// whose authoritative result is docs but absent from docs,
// can be evicted from the cache.
//
// When the authoritative window is full (limit set and reached),
// absence beyond its end carries no information:
// for a sorted window, only candidates sorting at or before the last element
// of docs are evicted.
// An unsorted limited window is unstable anyway, so it evicts liberally.
func Evictable(
	compare func(a, b Document) int,
	docs []Document,
	opts *FindOptions,
	candidate Document,
) bool {
	if opts == nil || opts.Limit <= 0 || len(docs) < opts.Limit {
		return true
	}
	if len(opts.Sort) == 0 || compare == nil || len(docs) == 0 {
		return true
	}
	return compare(candidate, docs[len(docs)-1]) <= 0
}

// IndexByID indexes docs by their ids.
func IndexByID(docs []Document) map[string]Document {
	ret := make(map[string]Document, len(docs))
	for _, doc := range docs {
		ret[doc.ID()] = doc
	}
	return ret
}
