package doc

import (
	"strconv"
	"time"
)

// Value is a sealed interface representing a document node.
// Only Null, String, Int, Float, Bool, Array, Object, ObjectID and Timestamp implement it.
type Value interface {
	docValue() // Sealed - only these types implement it
}

// Null represents a JSON null (or a missing store value).
type Null struct{}

func (Null) docValue() {}

// String represents a string value.
type String string

func (String) docValue() {}

// Int represents an integer value. JSON numbers without a fraction or
// exponent decode to Int so large identifiers keep full precision.
type Int int64

func (Int) docValue() {}

// Float represents a non-integer number.
type Float float64

func (Float) docValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) docValue() {}

// Array represents an ordered sequence of values.
type Array []Value

func (Array) docValue() {}

// ObjectID is the string form of a store-assigned unique document identifier.
// The form is opaque here: it is usually 24 hex characters but nothing relies on that.
type ObjectID string

func (ObjectID) docValue() {}

// Timestamp is a store-native instant.
type Timestamp time.Time

func (Timestamp) docValue() {}

// Time returns the instant as a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// NewTimestamp creates a Timestamp normalized to UTC and truncated to
// milliseconds, the precision of BSON dates and of $date text.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Truncate(time.Millisecond))
}

// Kind returns a short name for the value's variant. Used in error messages.
func Kind(v Value) string {
	switch v.(type) {
	case nil:
		return "missing"
	case Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Array:
		return "array"
	case Object:
		return "object"
	case ObjectID:
		return "objectid"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Text returns the string form of a scalar value and whether it has one.
// Strings and object ids return themselves, numbers their decimal form.
// Null, missing values and containers have no text.
func Text(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case ObjectID:
		return string(val), true
	case Int:
		return strconv.FormatInt(int64(val), 10), true
	case Float:
		return strconv.FormatFloat(float64(val), 'f', -1, 64), true
	case Bool:
		return strconv.FormatBool(bool(val)), true
	case Timestamp:
		return val.Time().UTC().Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

// Clone returns a deep copy of v. Scalars are immutable and returned as is.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Array:
		if val == nil {
			return Array(nil)
		}
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		return val.Clone()
	default:
		return v
	}
}

// Equal reports whether a and b are deeply equal.
// Objects compare field by field in order; timestamps compare by instant.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Key != bv[i].Key || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case Timestamp:
		bv, ok := b.(Timestamp)
		return ok && av.Time().Equal(bv.Time())
	default:
		return a == b
	}
}
