// Package store defines the document collection handle the sync engine
// works against, plus an in-memory implementation.
//
// A Collection supports whole-collection reads and single-field equality
// updates. Implementations:
//   - Memory: in-process, also backs JSON snapshot files
//   - sqlitestore.Collection: documents stored as extended JSON in SQLite
//   - mongostore.Collection: MongoDB via the official driver
//
// Writes are independent: nothing here spans more than one document per
// UpdateOne call, and no implementation promises atomicity across calls.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/idsync/internal/doc"
)

var (
	// ErrUnavailable wraps connection failures (store cannot be reached).
	ErrUnavailable = errors.New("store unavailable")

	// ErrNoDocument is returned by FindOne when no document matches.
	ErrNoDocument = errors.New("no document matches filter")
)

// Collection is a handle on one collection of documents.
type Collection interface {
	// FindAll returns every document in store order.
	FindAll(ctx context.Context) ([]doc.Object, error)

	// FindOne returns the first document matching f, or ErrNoDocument.
	FindOne(ctx context.Context, f Filter) (doc.Object, error)

	// UpdateOne applies p to the first document matching f.
	UpdateOne(ctx context.Context, f Filter, p Patch) (UpdateResult, error)

	// UpdateMany applies p to every document matching f.
	UpdateMany(ctx context.Context, f Filter, p Patch) (UpdateResult, error)
}

// Inserter is implemented by collections that can load documents, used when
// a snapshot is re-read into a store.
type Inserter interface {
	InsertMany(ctx context.Context, docs []doc.Object) (int, error)
}

// Filter is an equality predicate on one field (dot path allowed).
type Filter struct {
	Field string
	Value doc.Value
}

// Eq creates a Filter matching documents whose field equals v.
func Eq(field string, v doc.Value) Filter {
	return Filter{Field: field, Value: v}
}

// Matches reports whether o satisfies the filter.
func (f Filter) Matches(o doc.Object) bool {
	v, ok := o.Lookup(f.Field)
	if !ok {
		return false
	}
	return doc.Equal(v, f.Value)
}

func (f Filter) String() string {
	text, ok := doc.Text(f.Value)
	if !ok {
		text = doc.Kind(f.Value)
	}
	return fmt.Sprintf("%s=%s", f.Field, text)
}

// Patch sets fields (dot paths allowed) on matched documents.
type Patch struct {
	Set doc.Object
}

// SetField creates a Patch setting a single field.
func SetField(path string, v doc.Value) Patch {
	return Patch{Set: doc.Object{doc.F(path, v)}}
}

// Apply returns a copy of o with the patch applied and whether any field changed.
func (p Patch) Apply(o doc.Object) (doc.Object, bool) {
	out := o.Clone()
	modified := false
	for _, f := range p.Set {
		if cur, ok := out.Lookup(f.Key); ok && doc.Equal(cur, f.Value) {
			continue
		}
		out.SetPath(f.Key, doc.Clone(f.Value))
		modified = true
	}
	return out, modified
}

// UpdateResult reports the outcome of an update call.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}
