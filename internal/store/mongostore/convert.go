package mongostore

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/idsync/internal/doc"
)

// FromBSON converts a decoded BSON document to a doc.Object, keeping field order.
func FromBSON(d bson.D) (doc.Object, error) {
	return fromD(d, "$")
}

func fromD(d bson.D, path string) (doc.Object, error) {
	out := make(doc.Object, 0, len(d))
	for _, e := range d {
		v, err := fromValue(e.Value, path+"."+e.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.F(e.Key, v))
	}
	return out, nil
}

func fromValue(v any, path string) (doc.Value, error) {
	switch val := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return doc.Null{}, nil
	case string:
		return doc.String(val), nil
	case bool:
		return doc.Bool(val), nil
	case int32:
		return doc.Int(val), nil
	case int64:
		return doc.Int(val), nil
	case int:
		return doc.Int(val), nil
	case float64:
		return doc.Float(val), nil
	case primitive.Decimal128:
		return doc.String(val.String()), nil
	case primitive.ObjectID:
		return doc.ObjectID(val.Hex()), nil
	case primitive.DateTime:
		return doc.NewTimestamp(val.Time()), nil
	case time.Time:
		return doc.NewTimestamp(val), nil
	case primitive.D:
		return fromD(val, path)
	case primitive.M:
		return fromD(mapToD(val), path)
	case primitive.A:
		return fromArray(val, path)
	case []any:
		return fromArray(val, path)
	default:
		return nil, fmt.Errorf("%s: unsupported bson type %T", path, v)
	}
}

func fromArray(a []any, path string) (doc.Array, error) {
	out := make(doc.Array, len(a))
	for i, e := range a {
		v, err := fromValue(e, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// mapToD orders map keys so conversion stays deterministic.
func mapToD(m primitive.M) primitive.D {
	out := make(primitive.D, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, primitive.E{Key: k, Value: m[k]})
	}
	return out
}

// ToBSON converts a doc.Object to a BSON document, keeping field order.
//
// ObjectID values that are valid 24-digit hex become BSON object ids; any
// other string form is written as a plain string.
func ToBSON(o doc.Object) bson.D {
	out := make(bson.D, 0, len(o))
	for _, f := range o {
		out = append(out, bson.E{Key: f.Key, Value: ToBSONValue(f.Value)})
	}
	return out
}

// ToBSONValue converts a single value.
func ToBSONValue(v doc.Value) any {
	switch val := v.(type) {
	case nil, doc.Null:
		return nil
	case doc.String:
		return string(val)
	case doc.Int:
		return int64(val)
	case doc.Float:
		return float64(val)
	case doc.Bool:
		return bool(val)
	case doc.ObjectID:
		if oid, err := primitive.ObjectIDFromHex(string(val)); err == nil {
			return oid
		}
		return string(val)
	case doc.Timestamp:
		return primitive.NewDateTimeFromTime(val.Time())
	case doc.Array:
		out := make(bson.A, len(val))
		for i, e := range val {
			out[i] = ToBSONValue(e)
		}
		return out
	case doc.Object:
		return ToBSON(val)
	default:
		return nil
	}
}
