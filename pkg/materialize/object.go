package materialize

import (
	"sort"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Object is one node of a materialized graph: an instance of a nominal type
// whose attributes were checked against the type's descriptor. Attribute
// values are scalars, metav1.Time, metav1.MicroTime, []interface{},
// map[string]interface{} or *Object.
type Object struct {
	typeName string
	fields   map[string]interface{}
}

// NewObject creates an empty instance of typeName
func NewObject(typeName string) *Object {
	return &Object{
		typeName: typeName,
		fields:   make(map[string]interface{}),
	}
}

// TypeName returns the nominal type this object instantiates
func (o *Object) TypeName() string {
	return o.typeName
}

// Get returns an attribute value
func (o *Object) Get(attribute string) (interface{}, bool) {
	v, ok := o.fields[attribute]
	return v, ok
}

// Set assigns an attribute value
func (o *Object) Set(attribute string, value interface{}) {
	o.fields[attribute] = value
}

// Attributes returns the names of the assigned attributes, sorted
func (o *Object) Attributes() []string {
	names := make([]string, 0, len(o.fields))
	for name := range o.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetString returns a string attribute, or "" when absent or not a string
func (o *Object) GetString(attribute string) string {
	s, _ := o.fields[attribute].(string)
	return s
}

// GetObject returns a nested typed attribute
func (o *Object) GetObject(attribute string) (*Object, bool) {
	obj, ok := o.fields[attribute].(*Object)
	return obj, ok
}

// Kind returns the kind attribute
func (o *Object) Kind() string {
	return o.GetString("kind")
}

// APIVersion returns the apiVersion attribute
func (o *Object) APIVersion() string {
	return o.GetString("apiVersion")
}

// Metadata returns the metadata attribute, if typed
func (o *Object) Metadata() (*Object, bool) {
	return o.GetObject("metadata")
}

// Name returns metadata.name
func (o *Object) Name() string {
	if md, ok := o.Metadata(); ok {
		return md.GetString("name")
	}
	return ""
}

// Namespace returns metadata.namespace
func (o *Object) Namespace() string {
	if md, ok := o.Metadata(); ok {
		return md.GetString("namespace")
	}
	return ""
}

// Map converts the object back into a generic document
func (o *Object) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(o.fields))
	for k, v := range o.fields {
		out[k] = toGeneric(v)
	}
	return out
}

// Unstructured converts the object into a document the dynamic client accepts
func (o *Object) Unstructured() *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: o.Map()}
}

func toGeneric(v interface{}) interface{} {
	switch t := v.(type) {
	case *Object:
		return t.Map()
	case metav1.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case metav1.MicroTime:
		if t.Nanosecond()%int(time.Microsecond) != 0 {
			return t.UTC().Format(time.RFC3339Nano)
		}
		return t.UTC().Format(metav1.RFC3339Micro)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = toGeneric(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = toGeneric(e)
		}
		return out
	}
	return v
}
