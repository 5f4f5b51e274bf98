package selector

import (
	"strings"

	"github.com/fishy/docsync"
)

// Project returns a projection function for the field specification,
// or nil if fields is empty.
//
// An inclusion projection builds new documents sharing nested values with the
// source. An exclusion projection works on a deep copy.
func (Matcher) Project(fields docsync.Fields) func(doc docsync.Document) docsync.Document {
	if len(fields) == 0 {
		return nil
	}
	if fields.Inclusive() {
		paths := []string{docsync.IDField}
		for field, in := range fields {
			if in && field != docsync.IDField {
				paths = append(paths, field)
			}
		}
		return func(doc docsync.Document) docsync.Document {
			return include(doc, paths)
		}
	}
	var paths []string
	for field := range fields {
		paths = append(paths, field)
	}
	return func(doc docsync.Document) docsync.Document {
		return exclude(doc, paths)
	}
}

func include(doc docsync.Document, paths []string) docsync.Document {
	ret := make(docsync.Document)
	for _, path := range paths {
		value, ok := Lookup(doc, path)
		if !ok || value == nil {
			continue
		}
		elems := strings.Split(path, ".")
		to := map[string]any(ret)
		for _, elem := range elems[:len(elems)-1] {
			next, ok := to[elem].(map[string]any)
			if !ok {
				next = make(map[string]any)
				to[elem] = next
			}
			to = next
		}
		to[elems[len(elems)-1]] = value
	}
	return ret
}

func exclude(doc docsync.Document, paths []string) docsync.Document {
	ret := doc.Clone()
	for _, path := range paths {
		elems := strings.Split(path, ".")
		var obj any = map[string]any(ret)
		if len(elems) > 1 {
			parent, ok := Lookup(ret, strings.Join(elems[:len(elems)-1], "."))
			if !ok {
				continue
			}
			obj = parent
		}
		if m, ok := asSelector(obj); ok && m != nil {
			delete(m, elems[len(elems)-1])
		}
	}
	return ret
}
