package harness

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/idsync/internal/doc"
)

// Document is a YAML mapping decoded into a doc.Object with its key order
// intact. Two local tags are understood:
//
//	_id: !oid 65a000000000000000000001
//	createdAt: !date 2024-01-02T03:04:05.678Z
type Document struct {
	doc.Object
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	v, err := nodeValue(node, "$")
	if err != nil {
		return err
	}
	obj, ok := v.(doc.Object)
	if !ok {
		return fmt.Errorf("line %d: document is %s, want mapping", node.Line, doc.Kind(v))
	}
	d.Object = obj
	return nil
}

// Objects unwraps a document list.
func Objects(docs []Document) []doc.Object {
	out := make([]doc.Object, len(docs))
	for i, d := range docs {
		out[i] = d.Object
	}
	return out
}

func nodeValue(node *yaml.Node, path string) (doc.Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return doc.Null{}, nil
		}
		return nodeValue(node.Content[0], path)
	case yaml.AliasNode:
		return nodeValue(node.Alias, path)
	case yaml.SequenceNode:
		arr := make(doc.Array, len(node.Content))
		for i, child := range node.Content {
			v, err := nodeValue(child, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case yaml.MappingNode:
		obj := make(doc.Object, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: %s: mapping key must be a scalar", key.Line, path)
			}
			v, err := nodeValue(node.Content[i+1], path+"."+key.Value)
			if err != nil {
				return nil, err
			}
			obj.Set(key.Value, v)
		}
		return obj, nil
	case yaml.ScalarNode:
		return scalarValue(node, path)
	default:
		return nil, fmt.Errorf("line %d: %s: unsupported yaml node kind %d", node.Line, path, node.Kind)
	}
}

func scalarValue(node *yaml.Node, path string) (doc.Value, error) {
	switch tag := node.ShortTag(); tag {
	case "!oid":
		return doc.ObjectID(node.Value), nil
	case "!date":
		t, err := time.Parse(time.RFC3339Nano, node.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: !date: %w", node.Line, path, err)
		}
		return doc.NewTimestamp(t), nil
	case "!!null":
		return doc.Null{}, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", node.Line, path, err)
		}
		return doc.Bool(b), nil
	case "!!int":
		var n int64
		if err := node.Decode(&n); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", node.Line, path, err)
		}
		return doc.Int(n), nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", node.Line, path, err)
		}
		return doc.Float(f), nil
	case "!!str", "!!timestamp":
		return doc.String(node.Value), nil
	default:
		return nil, fmt.Errorf("line %d: %s: unknown tag %s", node.Line, path, tag)
	}
}
