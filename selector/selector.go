// Package selector provides a small docsync.Matcher.
//
// It's not a query language. Supported selectors:
//
//     {"field": value}                   equality, or membership if the field is an array
//     {"a.b": value}                     dotted paths into nested documents
//     {"field": {"$op": value, ...}}     $eq $ne $gt $gte $lt $lte $in $nin $exists
//     {"$and": [sel, ...]}               all selectors match
//     {"$or": [sel, ...]}                any selector matches
//
// An empty or nil selector matches everything.
// Unknown operators never match.
package selector

import (
	"strings"

	"github.com/fishy/docsync"
)

// Make sure Matcher satisfies docsync.Matcher interface.
var _ docsync.Matcher = Matcher{}

// Matcher is the default docsync.Matcher.
type Matcher struct{}

// New returns the default Matcher.
func New() Matcher {
	return Matcher{}
}

// Match reports whether doc matches selector.
func (Matcher) Match(selector docsync.Selector, doc docsync.Document) bool {
	return match(selector, doc)
}

func match(selector map[string]any, doc docsync.Document) bool {
	for key, cond := range selector {
		switch key {
		case "$and":
			for _, sub := range subSelectors(cond) {
				if !match(sub, doc) {
					return false
				}
			}
		case "$or":
			found := false
			for _, sub := range subSelectors(cond) {
				if match(sub, doc) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			value, exists := Lookup(doc, key)
			if !matchValue(cond, value, exists) {
				return false
			}
		}
	}
	return true
}

func subSelectors(v any) []map[string]any {
	var ret []map[string]any
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if m, ok := asSelector(e); ok {
				ret = append(ret, m)
			}
		}
	case []docsync.Selector:
		for _, e := range t {
			ret = append(ret, e)
		}
	case []map[string]any:
		ret = t
	}
	return ret
}

func asSelector(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case docsync.Selector:
		return t, true
	case docsync.Document:
		return t, true
	default:
		return nil, false
	}
}

func matchValue(cond, value any, exists bool) bool {
	if ops, ok := asSelector(cond); ok && isOperatorMap(ops) {
		for op, arg := range ops {
			if !matchOperator(op, arg, value, exists) {
				return false
			}
		}
		return true
	}
	return equals(cond, value)
}

func isOperatorMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// equals reports whether value equals cond,
// or contains cond when value is an array.
func equals(cond, value any) bool {
	if docsync.ValueEqual(cond, value) {
		return true
	}
	if arr, ok := value.([]any); ok {
		for _, e := range arr {
			if docsync.ValueEqual(cond, e) {
				return true
			}
		}
	}
	return false
}

func matchOperator(op string, arg, value any, exists bool) bool {
	switch op {
	case "$eq":
		return equals(arg, value)
	case "$ne":
		return !equals(arg, value)
	case "$gt", "$gte", "$lt", "$lte":
		if !exists || !comparable(arg, value) {
			return false
		}
		c := docsync.CompareValues(value, arg)
		switch op {
		case "$gt":
			return c > 0
		case "$gte":
			return c >= 0
		case "$lt":
			return c < 0
		default:
			return c <= 0
		}
	case "$in":
		for _, e := range asList(arg) {
			if equals(e, value) {
				return true
			}
		}
		return false
	case "$nin":
		for _, e := range asList(arg) {
			if equals(e, value) {
				return false
			}
		}
		return true
	case "$exists":
		want, _ := arg.(bool)
		return exists == want
	default:
		return false
	}
}

// comparable reports whether range operators can order a against b.
// Values of different kinds never satisfy a range operator.
func comparable(a, b any) bool {
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	default:
		return docsync.IsNumber(a) && docsync.IsNumber(b)
	}
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		ret := make([]any, len(t))
		for i, s := range t {
			ret[i] = s
		}
		return ret
	default:
		return nil
	}
}

// Lookup returns the value at the dotted path in doc.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, elem := range strings.Split(path, ".") {
		m, ok := asSelector(cur)
		if !ok || m == nil {
			return nil, false
		}
		cur, ok = m[elem]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
