// Package extjson converts documents between their store-native form and the
// JSON-safe extended form written to snapshot files.
//
// Encoding rules:
//
//	doc.ObjectID  -> {"$oid": "<string form>"}
//	doc.Timestamp -> {"$date": "2006-01-02T15:04:05.000Z"} (UTC, millisecond precision)
//	arrays and objects are encoded element-wise, keys and order unchanged
//	scalars pass through
//
// Decode is the structural inverse. Only single-key objects are treated as
// tags; anything else passes through untouched.
package extjson

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/idsync/internal/doc"
)

// Tag names recognized by the codec.
const (
	TagOID        = "$oid"
	TagDate       = "$date"
	TagNumberLong = "$numberLong"
)

// DateLayout is the timestamp layout written under $date.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrMalformed matches every *MalformedError via errors.Is.
var ErrMalformed = errors.New("malformed extended value")

// MalformedError reports a tagged value whose payload does not match its tag.
type MalformedError struct {
	// Path locates the tagged object, e.g. "$[3].updatedAt".
	Path string

	// Tag is the offending tag ("$oid" or "$date").
	Tag string

	// Reason describes what was wrong with the payload.
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed extended value at %s: %s: %s", e.Path, e.Tag, e.Reason)
}

// Is makes errors.Is(err, ErrMalformed) hold for any MalformedError.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// Encode returns the extended form of v. The input is not modified.
func Encode(v doc.Value) doc.Value {
	switch val := v.(type) {
	case doc.ObjectID:
		return doc.Object{doc.F(TagOID, doc.String(string(val)))}
	case doc.Timestamp:
		return doc.Object{doc.F(TagDate, doc.String(FormatDate(val.Time())))}
	case doc.Array:
		out := make(doc.Array, len(val))
		for i, elem := range val {
			out[i] = Encode(elem)
		}
		return out
	case doc.Object:
		return EncodeObject(val)
	default:
		return v
	}
}

// EncodeObject is Encode for a single document.
func EncodeObject(o doc.Object) doc.Object {
	out := make(doc.Object, len(o))
	for i, f := range o {
		out[i] = doc.Field{Key: f.Key, Value: Encode(f.Value)}
	}
	return out
}

// FormatDate renders t the way Encode writes $date values.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Decode returns the native form of an extended value. On a malformed tag it
// returns a *MalformedError and no value; v itself is never modified.
func Decode(v doc.Value) (doc.Value, error) {
	return decode(v, "$")
}

// DecodeObject is Decode for a single document.
func DecodeObject(o doc.Object) (doc.Object, error) {
	v, err := decode(o, "$")
	if err != nil {
		return nil, err
	}
	return v.(doc.Object), nil
}

func decode(v doc.Value, path string) (doc.Value, error) {
	switch val := v.(type) {
	case doc.Array:
		out := make(doc.Array, len(val))
		for i, elem := range val {
			dec, err := decode(elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	case doc.Object:
		if len(val) == 1 {
			switch val[0].Key {
			case TagOID:
				return decodeOID(val[0].Value, path)
			case TagDate:
				return decodeDate(val[0].Value, path)
			}
		}
		out := make(doc.Object, len(val))
		for i, f := range val {
			dec, err := decode(f.Value, path+"."+f.Key)
			if err != nil {
				return nil, err
			}
			out[i] = doc.Field{Key: f.Key, Value: dec}
		}
		return out, nil
	default:
		return v, nil
	}
}

func decodeOID(payload doc.Value, path string) (doc.Value, error) {
	s, ok := payload.(doc.String)
	if !ok {
		return nil, &MalformedError{Path: path, Tag: TagOID, Reason: "expected string, got " + doc.Kind(payload)}
	}
	if s == "" {
		return nil, &MalformedError{Path: path, Tag: TagOID, Reason: "empty identifier"}
	}
	return doc.ObjectID(s), nil
}

func decodeDate(payload doc.Value, path string) (doc.Value, error) {
	switch p := payload.(type) {
	case doc.String:
		t, err := time.Parse(time.RFC3339Nano, string(p))
		if err != nil {
			return nil, &MalformedError{Path: path, Tag: TagDate, Reason: err.Error()}
		}
		return doc.NewTimestamp(t), nil
	case doc.Int:
		return doc.NewTimestamp(time.UnixMilli(int64(p))), nil
	case doc.Object:
		// canonical extended JSON: {"$date": {"$numberLong": "<millis>"}}
		if len(p) == 1 && p[0].Key == TagNumberLong {
			if s, ok := p[0].Value.(doc.String); ok {
				ms, err := strconv.ParseInt(string(s), 10, 64)
				if err != nil {
					return nil, &MalformedError{Path: path, Tag: TagDate, Reason: "invalid $numberLong: " + err.Error()}
				}
				return doc.NewTimestamp(time.UnixMilli(ms)), nil
			}
		}
		return nil, &MalformedError{Path: path, Tag: TagDate, Reason: "unsupported object payload"}
	default:
		return nil, &MalformedError{Path: path, Tag: TagDate, Reason: "expected string or integer, got " + doc.Kind(payload)}
	}
}

// Marshal encodes v and writes it as compact JSON.
func Marshal(v doc.Value) ([]byte, error) {
	return doc.Marshal(Encode(v))
}

// MarshalIndent encodes v and writes it as indented JSON.
func MarshalIndent(v doc.Value, indent string) ([]byte, error) {
	return doc.MarshalIndent(Encode(v), indent)
}

// Unmarshal parses extended JSON and decodes it to native form.
func Unmarshal(data []byte) (doc.Value, error) {
	v, err := doc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse extended json: %w", err)
	}
	return Decode(v)
}
