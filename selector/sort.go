package selector

import (
	"strings"

	"github.com/fishy/docsync"
)

// Compare returns a comparator for the sort specification,
// or nil if sort is empty.
//
// Missing fields sort as nil, before any other value.
func (Matcher) Compare(sort []docsync.SortField) func(a, b docsync.Document) int {
	if len(sort) == 0 {
		return nil
	}
	fields := append([]docsync.SortField(nil), sort...)
	return func(a, b docsync.Document) int {
		for _, f := range fields {
			va, _ := Lookup(a, f.Field)
			vb, _ := Lookup(b, f.Field)
			c := docsync.CompareValues(va, vb)
			if c == 0 {
				continue
			}
			if f.Desc {
				return -c
			}
			return c
		}
		return 0
	}
}

// CompareByID is the comparator ordering documents by id.
func CompareByID(a, b docsync.Document) int {
	return strings.Compare(a.ID(), b.ID())
}

// ParseSort parses a compact sort specification,
// a comma separated list of fields, each optionally prefixed with "-" for
// descending order. For example "-priority,name".
func ParseSort(spec string) []docsync.SortField {
	var ret []docsync.SortField
	for _, f := range strings.Split(spec, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.HasPrefix(f, "-") {
			ret = append(ret, docsync.SortField{Field: f[1:], Desc: true})
			continue
		}
		ret = append(ret, docsync.SortField{Field: strings.TrimPrefix(f, "+")})
	}
	return ret
}
