package docsync

import (
	"fmt"
)

// NormalizeUpserts pairs docs with their bases, validates them and assigns
// new ids to documents without one.
//
// Validation happens before any id is assigned,
// so docs are untouched when an error is returned.
func NormalizeUpserts(docs []Document, bases []Document) ([]Upsert, error) {
	if len(bases) > len(docs) {
		return nil, &ValidationError{
			Msg: fmt.Sprintf("%d bases for %d documents", len(bases), len(docs)),
		}
	}
	ret := make([]Upsert, len(docs))
	for i, doc := range docs {
		if doc == nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("document #%d is nil", i)}
		}
		ret[i].Doc = doc
		if i >= len(bases) || bases[i] == nil {
			continue
		}
		base := bases[i]
		if base.ID() == "" {
			return nil, &ValidationError{Msg: "base needs " + IDField}
		}
		if base.ID() != doc.ID() {
			return nil, &ValidationError{
				Msg: fmt.Sprintf(
					"base %s %q does not match document %s %q",
					IDField,
					base.ID(),
					IDField,
					doc.ID(),
				),
			}
		}
		ret[i].Base = base
	}
	for _, u := range ret {
		if u.Doc.ID() == "" {
			u.Doc[IDField] = NewID()
		}
	}
	return ret, nil
}

// Docs returns the documents of upserts.
func Docs(upserts []Upsert) []Document {
	ret := make([]Document, len(upserts))
	for i, u := range upserts {
		ret[i] = u.Doc
	}
	return ret
}

// Bases returns the bases of upserts.
func Bases(upserts []Upsert) []Document {
	ret := make([]Document, len(upserts))
	for i, u := range upserts {
		ret[i] = u.Base
	}
	return ret
}
