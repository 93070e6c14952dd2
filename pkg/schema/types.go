// Package schema holds the attribute descriptors that tell the materializer how
// to build a typed object from a generic document.
package schema

import (
	"regexp"
	"strings"

	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
)

// Primitive, temporal and untyped type names.
const (
	TypeString      = "string"
	TypeInteger     = "integer"
	TypeNumber      = "number"
	TypeBoolean     = "boolean"
	TypeIntOrString = "IntOrString"
	TypeQuantity    = "Quantity"

	// TypeDate values are RFC 3339 timestamps.
	TypeDate = "Date"

	// TypeObject is the untyped sentinel: values of this type are never
	// attribute-checked.
	TypeObject = "object"
)

// Attribute describes one attribute of a nominal type
type Attribute struct {
	Name string
	Type string
}

// Source exposes attribute descriptors per type name
type Source interface {
	// Attributes returns the ordered attributes of a nominal type
	Attributes(typeName string) ([]Attribute, bool)

	// Extensible reports whether instances of a nominal type may carry
	// undeclared attributes, which are then left untyped
	Extensible(typeName string) bool

	// TypeNames returns every nominal type name the source describes
	TypeNames() []string
}

var (
	arrayPattern = regexp.MustCompile(`^Array<(.+)>$`)
	mapPattern   = regexp.MustCompile(`^map\[string\](.+)$`)
)

// ArrayOf returns the array type name for elem
func ArrayOf(elem string) string {
	return "Array<" + elem + ">"
}

// MapOf returns the string-keyed map type name for value
func MapOf(value string) string {
	return "map[string]" + value
}

// ElementType returns the element type of an array type name. ok is false when
// typeName is not array-shaped.
func ElementType(typeName string) (elem string, ok bool, err error) {
	if !strings.HasPrefix(typeName, "Array<") {
		return "", false, nil
	}
	m := arrayPattern.FindStringSubmatch(typeName)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", true, clienterrors.MalformedTypeName(typeName)
	}
	return strings.TrimSpace(m[1]), true, nil
}

// ValueType returns the value type of a map type name. ok is false when
// typeName is not map-shaped.
func ValueType(typeName string) (value string, ok bool, err error) {
	if !strings.HasPrefix(typeName, "map[") {
		return "", false, nil
	}
	m := mapPattern.FindStringSubmatch(typeName)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", true, clienterrors.MalformedTypeName(typeName)
	}
	return strings.TrimSpace(m[1]), true, nil
}

// IsPrimitive reports whether typeName names a scalar type
func IsPrimitive(typeName string) bool {
	switch typeName {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeIntOrString, TypeQuantity:
		return true
	}
	return false
}
