package doc

import "strings"

// Field is one key/value entry of an Object.
type Field struct {
	Key   string
	Value Value
}

// Object represents a mapping whose field order is significant.
// Keys are unique; Set replaces an existing key in place.
type Object []Field

func (Object) docValue() {}

// F is a shorthand for Field for ergonomic construction.
// Example: doc.Object{doc.F("OrderID", doc.String("O1")), doc.F("total", doc.Int(5))}
func F(key string, value Value) Field {
	return Field{Key: key, Value: value}
}

// Get returns the value stored under key.
func (o Object) Get(key string) (Value, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in field order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, f := range o {
		keys[i] = f.Key
	}
	return keys
}

// Set stores v under key, keeping the key's position if it already exists
// and appending it otherwise.
func (o *Object) Set(key string, v Value) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = v
			return
		}
	}
	*o = append(*o, Field{Key: key, Value: v})
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	for i := range *o {
		if (*o)[i].Key == key {
			*o = append((*o)[:i], (*o)[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the object.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for i, f := range o {
		out[i] = Field{Key: f.Key, Value: Clone(f.Value)}
	}
	return out
}

// Lookup resolves a dot-separated path ("shippingInfo.phone") through nested objects.
// Path segments never index into arrays.
func (o Object) Lookup(path string) (Value, bool) {
	if path == "" {
		return nil, false
	}
	var cur Value = o
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(Object)
		if !ok {
			return nil, false
		}
		cur, ok = obj.Get(seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath stores v at a dot-separated path, creating intermediate objects as needed.
// An intermediate value that is not an object is replaced.
func (o *Object) SetPath(path string, v Value) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		o.Set(head, v)
		return
	}
	child, _ := o.Get(head)
	obj, ok := child.(Object)
	if !ok {
		obj = Object{}
	} else {
		obj = obj.Clone()
	}
	obj.SetPath(rest, v)
	o.Set(head, obj)
}
