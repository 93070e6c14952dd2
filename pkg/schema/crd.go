package schema

import (
	"sort"

	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"

	"github.com/novelcore/kubecore-object-client/pkg/kinds"
)

// ObjectMetaType is the nominal type every custom resource's metadata uses
const ObjectMetaType = "V1ObjectMeta"

// AddCRD registers descriptors for every served version of crd and returns the
// root type names added. Nested objects become synthesized nominal types named
// after their path, e.g. V1alpha1GitHubProjectSpec.
func (t *Table) AddCRD(crd *apiextv1.CustomResourceDefinition) []string {
	var roots []string

	for i := range crd.Spec.Versions {
		v := &crd.Spec.Versions[i]
		if !v.Served {
			continue
		}

		root := upperFirst(v.Name) + crd.Spec.Names.Kind
		if t.Has(root) {
			root = kinds.GroupPrefix(crd.Spec.Group) + root
			if t.Has(root) {
				continue
			}
		}

		props := &apiextv1.JSONSchemaProps{Type: "object"}
		if v.Schema != nil && v.Schema.OpenAPIV3Schema != nil {
			props = v.Schema.OpenAPIV3Schema
		}

		attrs := []Attribute{
			{Name: "apiVersion", Type: TypeString},
			{Name: "kind", Type: TypeString},
			{Name: "metadata", Type: ObjectMetaType},
		}
		for _, name := range sortedProperties(props.Properties) {
			switch name {
			case "apiVersion", "kind", "metadata":
				continue
			}
			prop := props.Properties[name]
			attrs = append(attrs, Attribute{Name: name, Type: t.crdType(root+upperFirst(name), &prop)})
		}

		add := t.Add
		if preservesUnknownFields(props) {
			add = t.AddExtensible
		}
		if add(root, attrs...) {
			roots = append(roots, root)
		}
	}

	return roots
}

// crdType returns the type name for s, registering a nominal type when s is an
// object with declared properties. name is a suggestion; the registered name
// may carry a suffix when another type already holds it.
func (t *Table) crdType(name string, s *apiextv1.JSONSchemaProps) string {
	if s.XIntOrString {
		return TypeIntOrString
	}
	if preservesUnknownFields(s) {
		return TypeObject
	}

	switch s.Type {
	case "string":
		if s.Format == "date-time" {
			return TypeDate
		}
		return TypeString
	case "integer":
		return TypeInteger
	case "number":
		return TypeNumber
	case "boolean":
		return TypeBoolean
	case "array":
		if s.Items == nil || s.Items.Schema == nil {
			return ArrayOf(TypeObject)
		}
		return ArrayOf(t.crdType(name+"Item", s.Items.Schema))
	case "object", "":
		if len(s.Properties) > 0 {
			return t.addCRDObject(name, s)
		}
		if s.AdditionalProperties != nil && s.AdditionalProperties.Schema != nil {
			return MapOf(t.crdType(name+"Value", s.AdditionalProperties.Schema))
		}
	}

	return TypeObject
}

// addCRDObject registers s under name, or under name plus as many
// collisionSuffix as it takes to find a free one, and returns the name used.
// The suffix keeps the synthesized type's canonical kind apart from the kind
// that owns the taken name.
func (t *Table) addCRDObject(name string, s *apiextv1.JSONSchemaProps) string {
	for t.Has(name) {
		name += collisionSuffix
	}

	attrs := make([]Attribute, 0, len(s.Properties))
	for _, prop := range sortedProperties(s.Properties) {
		p := s.Properties[prop]
		attrs = append(attrs, Attribute{Name: prop, Type: t.crdType(name+upperFirst(prop), &p)})
	}
	t.Add(name, attrs...)
	return name
}

const collisionSuffix = "Fields"

func preservesUnknownFields(s *apiextv1.JSONSchemaProps) bool {
	return s.XPreserveUnknownFields != nil && *s.XPreserveUnknownFields
}

func sortedProperties(props map[string]apiextv1.JSONSchemaProps) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
