package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/crossplane/function-sdk-go/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsfake "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/fake"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
)

func TestElementAndValueType(t *testing.T) {
	tests := []struct {
		name      string
		typeName  string
		array     bool
		elem      string
		mapShaped bool
		value     string
		malformed bool
	}{
		{name: "array", typeName: "Array<V1ServicePort>", array: true, elem: "V1ServicePort"},
		{name: "nested array", typeName: "Array<Array<string>>", array: true, elem: "Array<string>"},
		{name: "map", typeName: "map[string]string", mapShaped: true, value: "string"},
		{name: "map of arrays", typeName: "map[string]Array<integer>", mapShaped: true, value: "Array<integer>"},
		{name: "nominal", typeName: "V1Service"},
		{name: "unterminated array", typeName: "Array<V1Service", array: true, malformed: true},
		{name: "empty array", typeName: "Array<>", array: true, malformed: true},
		{name: "int keyed map", typeName: "map[int]string", mapShaped: true, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elem, isArray, err := ElementType(tt.typeName)
			assert.Equal(t, tt.array, isArray)
			if tt.array {
				if tt.malformed {
					assert.True(t, clienterrors.IsErrorCode(err, clienterrors.ErrorCodeMalformedTypeName))
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.elem, elem)
			}

			value, isMap, err := ValueType(tt.typeName)
			assert.Equal(t, tt.mapShaped, isMap)
			if tt.mapShaped {
				if tt.malformed {
					assert.True(t, clienterrors.IsErrorCode(err, clienterrors.ErrorCodeMalformedTypeName))
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.value, value)
			}
		})
	}
}

func TestTableFirstRegistrationWins(t *testing.T) {
	table := NewTable()

	assert.True(t, table.Add("V1Thing", Attribute{Name: "a", Type: TypeString}))
	assert.False(t, table.Add("V1Thing", Attribute{Name: "b", Type: TypeInteger}))

	attrs, ok := table.Attributes("V1Thing")
	require.True(t, ok)
	assert.Equal(t, []Attribute{{Name: "a", Type: TypeString}}, attrs)

	typ, ok := table.AttributeType("V1Thing", "a")
	assert.True(t, ok)
	assert.Equal(t, TypeString, typ)

	_, ok = table.AttributeType("V1Thing", "b")
	assert.False(t, ok)

	_, ok = table.Attributes("V1Other")
	assert.False(t, ok)
	assert.Equal(t, []string{"V1Thing"}, table.TypeNames())
	assert.Equal(t, 1, table.Size())
}

func TestAddScheme(t *testing.T) {
	table := NewTable()
	added := table.AddScheme(clientgoscheme.Scheme)
	assert.Greater(t, added, 100)

	tests := []struct {
		typeName  string
		attribute string
		want      string
	}{
		{typeName: "V1Service", attribute: "apiVersion", want: TypeString},
		{typeName: "V1Service", attribute: "kind", want: TypeString},
		{typeName: "V1Service", attribute: "metadata", want: "V1ObjectMeta"},
		{typeName: "V1Service", attribute: "spec", want: "V1ServiceSpec"},
		{typeName: "V1ServiceSpec", attribute: "ports", want: "Array<V1ServicePort>"},
		{typeName: "V1ServiceSpec", attribute: "selector", want: "map[string]string"},
		{typeName: "V1ServicePort", attribute: "port", want: TypeInteger},
		{typeName: "V1ServicePort", attribute: "targetPort", want: TypeIntOrString},
		{typeName: "V1ObjectMeta", attribute: "creationTimestamp", want: TypeDate},
		{typeName: "V1ObjectMeta", attribute: "labels", want: "map[string]string"},
		{typeName: "V1ObjectMeta", attribute: "managedFields", want: "Array<V1ManagedFieldsEntry>"},
		{typeName: "V1ManagedFieldsEntry", attribute: "fieldsV1", want: TypeObject},
		{typeName: "V1Secret", attribute: "data", want: "map[string]string"},
		{typeName: "V1Deployment", attribute: "spec", want: "V1DeploymentSpec"},
		{typeName: "V1DeploymentSpec", attribute: "replicas", want: TypeInteger},
		{typeName: "V1ResourceRequirements", attribute: "limits", want: "map[string]Quantity"},
		{typeName: "V1Role", attribute: "rules", want: "Array<V1PolicyRule>"},
		{typeName: "EventsV1Event", attribute: "eventTime", want: TypeDate},
	}

	for _, tt := range tests {
		t.Run(tt.typeName+"."+tt.attribute, func(t *testing.T) {
			got, ok := table.AttributeType(tt.typeName, tt.attribute)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := table.AttributeType("V1Service", "TypeMeta")
	assert.False(t, ok, "inline fields are flattened")
}

func testCRD() *apiextv1.CustomResourceDefinition {
	return &apiextv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: "githubprojects.github.platform.kubecore.io"},
		Spec: apiextv1.CustomResourceDefinitionSpec{
			Group: "github.platform.kubecore.io",
			Names: apiextv1.CustomResourceDefinitionNames{Kind: "GitHubProject", Plural: "githubprojects"},
			Scope: apiextv1.NamespaceScoped,
			Versions: []apiextv1.CustomResourceDefinitionVersion{
				{
					Name:   "v1alpha1",
					Served: true,
					Schema: &apiextv1.CustomResourceValidation{
						OpenAPIV3Schema: &apiextv1.JSONSchemaProps{
							Type: "object",
							Properties: map[string]apiextv1.JSONSchemaProps{
								"spec": {
									Type: "object",
									Properties: map[string]apiextv1.JSONSchemaProps{
										"name":      {Type: "string"},
										"private":   {Type: "boolean"},
										"createdAt": {Type: "string", Format: "date-time"},
										"port":      {XIntOrString: true},
										"topics":    {Type: "array", Items: &apiextv1.JSONSchemaPropsOrArray{Schema: &apiextv1.JSONSchemaProps{Type: "string"}}},
										"teams": {Type: "array", Items: &apiextv1.JSONSchemaPropsOrArray{Schema: &apiextv1.JSONSchemaProps{
											Type:       "object",
											Properties: map[string]apiextv1.JSONSchemaProps{"name": {Type: "string"}, "permission": {Type: "string"}},
										}}},
										"settings": {Type: "object", AdditionalProperties: &apiextv1.JSONSchemaPropsOrBool{
											Schema: &apiextv1.JSONSchemaProps{Type: "integer"},
										}},
										"extra": {Type: "object", XPreserveUnknownFields: ptrTo(true)},
									},
								},
								"status": {Type: "object"},
							},
						},
					},
				},
				{Name: "v1alpha0", Served: false},
			},
		},
	}
}

func ptrTo[T any](v T) *T { return &v }

func TestAddCRD(t *testing.T) {
	table := NewTable()
	roots := table.AddCRD(testCRD())
	assert.Equal(t, []string{"V1alpha1GitHubProject"}, roots)

	tests := []struct {
		typeName  string
		attribute string
		want      string
	}{
		{typeName: "V1alpha1GitHubProject", attribute: "metadata", want: ObjectMetaType},
		{typeName: "V1alpha1GitHubProject", attribute: "spec", want: "V1alpha1GitHubProjectSpec"},
		{typeName: "V1alpha1GitHubProject", attribute: "status", want: TypeObject},
		{typeName: "V1alpha1GitHubProjectSpec", attribute: "createdAt", want: TypeDate},
		{typeName: "V1alpha1GitHubProjectSpec", attribute: "private", want: TypeBoolean},
		{typeName: "V1alpha1GitHubProjectSpec", attribute: "port", want: TypeIntOrString},
		{typeName: "V1alpha1GitHubProjectSpec", attribute: "topics", want: "Array<string>"},
		{typeName: "V1alpha1GitHubProjectSpec", attribute: "teams", want: "Array<V1alpha1GitHubProjectSpecTeamsItem>"},
		{typeName: "V1alpha1GitHubProjectSpecTeamsItem", attribute: "permission", want: TypeString},
		{typeName: "V1alpha1GitHubProjectSpec", attribute: "settings", want: "map[string]integer"},
		{typeName: "V1alpha1GitHubProjectSpec", attribute: "extra", want: TypeObject},
	}

	for _, tt := range tests {
		t.Run(tt.typeName+"."+tt.attribute, func(t *testing.T) {
			got, ok := table.AttributeType(tt.typeName, tt.attribute)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.False(t, table.Has("V1alpha0GitHubProject"), "unserved versions are skipped")
}

func TestAddCRDCollisionUsesGroupPrefix(t *testing.T) {
	table := NewTable()
	table.Add("V1alpha1GitHubProject")

	roots := table.AddCRD(testCRD())
	assert.Equal(t, []string{"GithubV1alpha1GitHubProject"}, roots)
}

func simpleCRD(group, kind string, root *apiextv1.JSONSchemaProps) *apiextv1.CustomResourceDefinition {
	return &apiextv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: strings.ToLower(kind) + "s." + group},
		Spec: apiextv1.CustomResourceDefinitionSpec{
			Group: group,
			Names: apiextv1.CustomResourceDefinitionNames{Kind: kind, Plural: strings.ToLower(kind) + "s"},
			Scope: apiextv1.NamespaceScoped,
			Versions: []apiextv1.CustomResourceDefinitionVersion{{
				Name:   "v1",
				Served: true,
				Schema: &apiextv1.CustomResourceValidation{OpenAPIV3Schema: root},
			}},
		},
	}
}

func TestAddCRDPreserveUnknownFields(t *testing.T) {
	table := NewTable()
	roots := table.AddCRD(simpleCRD("example.com", "Bag", &apiextv1.JSONSchemaProps{
		Type: "object",
		Properties: map[string]apiextv1.JSONSchemaProps{
			"spec": {
				Type:                   "object",
				XPreserveUnknownFields: ptrTo(true),
				Properties:             map[string]apiextv1.JSONSchemaProps{"size": {Type: "integer"}},
			},
			"items": {Type: "array", Items: &apiextv1.JSONSchemaPropsOrArray{Schema: &apiextv1.JSONSchemaProps{
				Type:                   "object",
				XPreserveUnknownFields: ptrTo(true),
				Properties:             map[string]apiextv1.JSONSchemaProps{"id": {Type: "string"}},
			}}},
		},
	}))
	assert.Equal(t, []string{"V1Bag"}, roots)

	spec, _ := table.AttributeType("V1Bag", "spec")
	assert.Equal(t, TypeObject, spec)
	assert.False(t, table.Has("V1BagSpec"))

	items, _ := table.AttributeType("V1Bag", "items")
	assert.Equal(t, ArrayOf(TypeObject), items)
	assert.False(t, table.Extensible("V1Bag"))
}

func TestAddCRDPreserveUnknownFieldsAtRoot(t *testing.T) {
	table := NewTable()
	roots := table.AddCRD(simpleCRD("example.com", "Blob", &apiextv1.JSONSchemaProps{
		Type:                   "object",
		XPreserveUnknownFields: ptrTo(true),
		Properties: map[string]apiextv1.JSONSchemaProps{
			"spec": {Type: "object", Properties: map[string]apiextv1.JSONSchemaProps{"size": {Type: "integer"}}},
		},
	}))
	assert.Equal(t, []string{"V1Blob"}, roots)
	assert.True(t, table.Extensible("V1Blob"))
	assert.False(t, table.Extensible("V1BlobSpec"), "only the flagged level is open")

	spec, _ := table.AttributeType("V1Blob", "spec")
	assert.Equal(t, "V1BlobSpec", spec)
}

func TestAddCRDNestedNameTakenByAnotherRoot(t *testing.T) {
	fooBar := simpleCRD("a.com", "FooBar", &apiextv1.JSONSchemaProps{
		Type: "object",
		Properties: map[string]apiextv1.JSONSchemaProps{
			"spec": {Type: "object", Properties: map[string]apiextv1.JSONSchemaProps{"size": {Type: "integer"}}},
		},
	})
	foo := simpleCRD("a.com", "Foo", &apiextv1.JSONSchemaProps{
		Type: "object",
		Properties: map[string]apiextv1.JSONSchemaProps{
			"bar": {Type: "object", Properties: map[string]apiextv1.JSONSchemaProps{
				"color": {Type: "string"},
				"shade": {Type: "object", Properties: map[string]apiextv1.JSONSchemaProps{"level": {Type: "integer"}}},
			}},
		},
	})

	table := NewTable()
	assert.Equal(t, []string{"V1FooBar"}, table.AddCRD(fooBar))
	assert.Equal(t, []string{"V1Foo"}, table.AddCRD(foo))

	bar, _ := table.AttributeType("V1Foo", "bar")
	assert.Equal(t, "V1FooBarFields", bar)

	color, ok := table.AttributeType(bar, "color")
	require.True(t, ok)
	assert.Equal(t, TypeString, color)

	shade, _ := table.AttributeType(bar, "shade")
	assert.Equal(t, "V1FooBarFieldsShade", shade)

	spec, ok := table.AttributeType("V1FooBar", "spec")
	require.True(t, ok, "the other root keeps its own descriptor")
	assert.Equal(t, "V1FooBarSpec", spec)
	_, ok = table.AttributeType("V1FooBar", "color")
	assert.False(t, ok)
}

func TestTableExtensible(t *testing.T) {
	table := NewTable()
	assert.True(t, table.AddExtensible("Open", Attribute{Name: "a", Type: TypeString}))
	assert.False(t, table.AddExtensible("Open"), "first registration wins")
	table.Add("Closed")

	assert.True(t, table.Extensible("Open"))
	assert.False(t, table.Extensible("Closed"))
	assert.False(t, table.Extensible("Missing"))
}

func TestCRDLoader(t *testing.T) {
	other := testCRD()
	other.Name = "widgets.example.com"
	other.Spec.Group = "example.com"
	other.Spec.Names.Kind = "Widget"

	client := apiextensionsfake.NewSimpleClientset(testCRD(), other)
	loader := NewCRDLoader(client, logging.NewNopLogger(), func(group string) bool {
		return group != "example.com"
	})

	table := NewTable()
	stats, err := loader.Load(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalCRDs)
	assert.Equal(t, 1, stats.MatchedCRDs)
	assert.Equal(t, 1, stats.RootTypes)
	assert.True(t, table.Has("V1alpha1GitHubProject"))
	assert.False(t, table.Has("V1alpha1Widget"))
}
