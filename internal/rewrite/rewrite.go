// Package rewrite replaces tracked identifier values wherever they occur in a document.
package rewrite

import (
	"fmt"

	"github.com/roach88/idsync/internal/doc"
)

// FieldSet names the keys whose values may be rewritten.
type FieldSet map[string]struct{}

// NewFieldSet creates a FieldSet from field names.
func NewFieldSet(names ...string) FieldSet {
	fs := make(FieldSet, len(names))
	for _, n := range names {
		fs[n] = struct{}{}
	}
	return fs
}

// Has reports whether name is tracked.
func (fs FieldSet) Has(name string) bool {
	_, ok := fs[name]
	return ok
}

// Change records one replaced value.
type Change struct {
	Path string `json:"path"`
	Old  string `json:"old"`
	New  string `json:"new"`
}

// Rewrite returns a copy of v in which every tracked key whose value is a
// String (or an ObjectID, compared by its string form) found in mapping holds
// the mapped value instead. The replacement keeps the original variant.
//
// Arrays are walked element-wise and objects key-wise at any depth. Nothing
// is shared with v, and v itself is never modified. changed reports whether
// at least one value was replaced.
func Rewrite(v doc.Value, fields FieldSet, mapping map[string]string) (out doc.Value, changed bool) {
	w := walker{fields: fields, mapping: mapping}
	out = w.value(v, "$")
	return out, len(w.changes) > 0
}

// Trace is Rewrite that also returns the individual changes in document order.
func Trace(v doc.Value, fields FieldSet, mapping map[string]string) (doc.Value, []Change) {
	w := walker{fields: fields, mapping: mapping}
	out := w.value(v, "$")
	return out, w.changes
}

type walker struct {
	fields  FieldSet
	mapping map[string]string
	changes []Change
}

func (w *walker) value(v doc.Value, path string) doc.Value {
	switch val := v.(type) {
	case doc.Array:
		out := make(doc.Array, len(val))
		for i, elem := range val {
			out[i] = w.value(elem, fmt.Sprintf("%s[%d]", path, i))
		}
		return out
	case doc.Object:
		out := make(doc.Object, len(val))
		for i, f := range val {
			fieldPath := path + "." + f.Key
			if w.fields.Has(f.Key) {
				if replaced, ok := w.replace(f.Value, fieldPath); ok {
					out[i] = doc.Field{Key: f.Key, Value: replaced}
					continue
				}
			}
			out[i] = doc.Field{Key: f.Key, Value: w.value(f.Value, fieldPath)}
		}
		return out
	default:
		return v
	}
}

// replace maps a tracked scalar. Containers under a tracked key are not
// replaced here; the caller keeps walking into them.
func (w *walker) replace(v doc.Value, path string) (doc.Value, bool) {
	var old string
	switch val := v.(type) {
	case doc.String:
		old = string(val)
	case doc.ObjectID:
		old = string(val)
	default:
		return nil, false
	}

	next, ok := w.mapping[old]
	if !ok {
		return nil, false
	}
	w.changes = append(w.changes, Change{Path: path, Old: old, New: next})

	if _, isOID := v.(doc.ObjectID); isOID {
		return doc.ObjectID(next), true
	}
	return doc.String(next), true
}
