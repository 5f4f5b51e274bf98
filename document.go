package docsync

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Reserved field names.
const (
	// IDField is the mandatory unique identifier of a document.
	IDField = "_id"

	// RevField is the optional revision marker of a document.
	//
	// Revisions are only used to avoid overwriting newer cached data with older
	// data. They are never used to detect conflicts.
	RevField = "_rev"
)

// Document is a structured record.
//
// Values are the ones produced by decoding JSON into a map[string]any
// (nil, bool, numbers, string, []any, map[string]any), although any numeric Go
// type is accepted.
type Document map[string]any

// ID returns the identifier of the document, or "" if it has none.
func (doc Document) ID() string {
	id, _ := doc[IDField].(string)
	return id
}

// Rev returns the revision of the document, or nil if it has none.
func (doc Document) Rev() any {
	return doc[RevField]
}

// Clone returns a deep copy of the document.
//
// Clone of a nil document is nil.
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}
	ret := make(Document, len(doc))
	for k, v := range doc {
		ret[k] = cloneValue(v)
	}
	return ret
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case []any:
		if t == nil {
			return t
		}
		ret := make([]any, len(t))
		for i, e := range t {
			ret[i] = cloneValue(e)
		}
		return ret
	case []Document:
		return CloneList(t)
	default:
		return v
	}
}

// CloneList deep copies a list of documents.
func CloneList(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	ret := make([]Document, len(docs))
	for i, doc := range docs {
		ret[i] = doc.Clone()
	}
	return ret
}

// IDs returns the identifiers of docs, in order.
func IDs(docs []Document) []string {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID()
	}
	return ids
}

// NewID creates a new random document identifier.
//
// It's 32 lowercase hex characters.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Equal compares two documents deeply.
//
// Numbers are compared by value, regardless of their Go type,
// so a document compares equal to itself after a JSON round trip.
func Equal(a, b Document) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return mapEqual(a, b)
}

// EqualLists compares two lists of documents deeply, in order.
func EqualLists(a, b []Document) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func mapEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !ValueEqual(va, vb) {
			return false
		}
	}
	return true
}

// ValueEqual compares two document values deeply.
func ValueEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch ta := a.(type) {
	case nil:
		return b == nil
	case Document, map[string]any:
		mb, ok := asMap(b)
		if !ok {
			return false
		}
		ma, _ := asMap(ta)
		return mapEqual(ma, mb)
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !ValueEqual(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	default:
		return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}

// IsNumber reports whether v is of a Go numeric type.
func IsNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CompareValues defines a total order over document values.
//
// Values of different kinds are ordered as
// nil < numbers < strings < bools < everything else.
// Numbers compare numerically, strings lexically, false < true.
// Everything else is ordered by its formatted representation.
func CompareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNil:
		return 0
	case rankNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return compareOrdered(fa, fb)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case bb:
			return -1
		default:
			return 1
		}
	default:
		return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
	}
}

const (
	rankNil = iota
	rankNumber
	rankString
	rankBool
	rankOther
)

func rank(v any) int {
	if v == nil {
		return rankNil
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case bool:
		return rankBool
	default:
		return rankOther
	}
}

func compareOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Supersedes reports whether incoming may replace existing in a cache.
//
// It returns false only when both documents carry a revision and the incoming
// revision is lower than or equal to the existing one.
func Supersedes(incoming, existing Document) bool {
	if existing == nil {
		return true
	}
	in, ex := incoming.Rev(), existing.Rev()
	if in == nil || ex == nil {
		return true
	}
	return CompareValues(in, ex) > 0
}
