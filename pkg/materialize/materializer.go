// Package materialize converts untyped documents into typed object graphs,
// guided only by the attribute descriptors of a schema.Source.
package materialize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
	"github.com/novelcore/kubecore-object-client/pkg/schema"
)

// Materializer builds typed values from generic ones
type Materializer struct {
	source schema.Source
}

// New creates a materializer reading descriptors from source
func New(source schema.Source) *Materializer {
	return &Materializer{source: source}
}

// Materialize converts value into an instance of typeName. Arrays keep their
// order, maps keep their keys, nominal types become *Object and Date values
// become metav1.Time or metav1.MicroTime. Values of the untyped object type
// pass through untouched.
func (m *Materializer) Materialize(typeName string, value interface{}) (interface{}, error) {
	return m.materialize(typeName, value, "")
}

// Document materializes a top-level resource document
func (m *Materializer) Document(typeName string, doc map[string]interface{}) (*Object, error) {
	v, err := m.materialize(typeName, doc, "")
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, clienterrors.UnknownType(typeName)
	}
	return obj, nil
}

func (m *Materializer) materialize(typeName string, value interface{}, path string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	elem, isArray, err := schema.ElementType(typeName)
	if err != nil {
		return nil, withPath(err, path)
	}
	if isArray {
		return m.materializeArray(elem, value, path)
	}

	valueType, isMap, err := schema.ValueType(typeName)
	if err != nil {
		return nil, withPath(err, path)
	}
	if isMap {
		return m.materializeMap(valueType, value, path)
	}

	if typeName == schema.TypeDate {
		return toDate(value, path)
	}

	if schema.IsPrimitive(typeName) {
		switch value.(type) {
		case map[string]interface{}, []interface{}:
			return nil, invalid(path, fmt.Sprintf("expected %s, got %T", typeName, value))
		}
		return value, nil
	}

	doc, nested := value.(map[string]interface{})
	if !nested || typeName == schema.TypeObject {
		return value, nil
	}

	return m.materializeObject(typeName, doc, path)
}

func (m *Materializer) materializeArray(elem string, value interface{}, path string) (interface{}, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, invalid(path, fmt.Sprintf("expected a list, got %T", value))
	}

	out := make([]interface{}, len(items))
	for i, item := range items {
		v, err := m.materialize(elem, item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *Materializer) materializeMap(valueType string, value interface{}, path string) (interface{}, error) {
	entries, ok := value.(map[string]interface{})
	if !ok {
		return nil, invalid(path, fmt.Sprintf("expected a map, got %T", value))
	}

	out := make(map[string]interface{}, len(entries))
	for _, key := range sortedKeys(entries) {
		v, err := m.materialize(valueType, entries[key], path+"["+key+"]")
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (m *Materializer) materializeObject(typeName string, doc map[string]interface{}, path string) (*Object, error) {
	attrs, ok := m.source.Attributes(typeName)
	if !ok {
		return nil, withPath(clienterrors.UnknownType(typeName), path)
	}

	declared := make(map[string]string, len(attrs))
	for _, a := range attrs {
		declared[a.Name] = a.Type
	}

	extensible := m.source.Extensible(typeName)

	obj := NewObject(typeName)
	for _, key := range sortedKeys(doc) {
		attrType, ok := declared[key]
		if !ok {
			if !extensible {
				return nil, withPath(clienterrors.UnknownAttribute(typeName, key), path)
			}
			attrType = schema.TypeObject
		}
		v, err := m.materialize(attrType, doc[key], joinPath(path, key))
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)
	}
	return obj, nil
}

// toDate parses a timestamp. Timestamps written with a fractional second
// become metav1.MicroTime so they render back with microsecond precision.
func toDate(value interface{}, path string) (interface{}, error) {
	switch t := value.(type) {
	case metav1.Time, metav1.MicroTime:
		return t, nil
	case time.Time:
		return metav1.NewTime(t), nil
	case string:
		if t == "" {
			return t, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, withPath(clienterrors.InvalidInput(fmt.Sprintf("invalid timestamp %q", t)).WithCause(err), path)
		}
		if strings.Contains(t, ".") {
			return metav1.NewMicroTime(parsed), nil
		}
		return metav1.NewTime(parsed), nil
	}
	return value, nil
}

func invalid(path, message string) error {
	return withPath(clienterrors.InvalidInput(message), path)
}

func withPath(err error, path string) error {
	if ce, ok := err.(*clienterrors.ClientError); ok && path != "" {
		return ce.WithContext("path", path)
	}
	return err
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
