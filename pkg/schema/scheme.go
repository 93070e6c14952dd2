package schema

import (
	"encoding/json"
	"path"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sschema "k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/novelcore/kubecore-object-client/pkg/kinds"
)

var (
	versionPattern = regexp.MustCompile(`^v[0-9]+((alpha|beta)[0-9]+)?$`)

	timeType        = reflect.TypeOf(metav1.Time{})
	microTimeType   = reflect.TypeOf(metav1.MicroTime{})
	quantityType    = reflect.TypeOf(resource.Quantity{})
	intOrStringType = reflect.TypeOf(intstr.IntOrString{})
	marshalerType   = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// AddScheme registers a descriptor for every external kind known to s and for
// every versioned struct reachable from one. Go types are inspected once, here;
// the resulting table is purely declarative. It returns the number of types
// added.
func (t *Table) AddScheme(s *runtime.Scheme) int {
	known := s.AllKnownTypes()

	gvks := make([]k8sschema.GroupVersionKind, 0, len(known))
	for gvk := range known {
		if gvk.Version == runtime.APIVersionInternal {
			continue
		}
		gvks = append(gvks, gvk)
	}
	sort.Slice(gvks, func(i, j int) bool {
		a, b := gvks[i], gvks[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Kind < b.Kind
	})

	w := &walker{
		table:  t,
		groups: make(map[string]string),
		names:  make(map[reflect.Type]string),
		owners: make(map[string]reflect.Type),
		done:   make(map[reflect.Type]bool),
	}

	for _, gvk := range gvks {
		typ := known[gvk]
		if _, ok := w.groups[typ.PkgPath()]; !ok {
			w.groups[typ.PkgPath()] = gvk.Group
		}
	}

	for _, gvk := range gvks {
		typ := known[gvk]
		if typ.Kind() != reflect.Struct || typ.Name() != gvk.Kind {
			continue
		}
		w.describe(typ)
	}

	return w.added
}

type walker struct {
	table *Table

	// package path -> API group, learned from the scheme's root kinds
	groups map[string]string
	names  map[reflect.Type]string
	owners map[string]reflect.Type
	done   map[reflect.Type]bool
	added  int
}

func (w *walker) describe(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case timeType, microTimeType:
		return TypeDate
	case quantityType:
		return TypeQuantity
	case intOrStringType:
		return TypeIntOrString
	}

	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeString
		}
		return ArrayOf(w.describe(t.Elem()))
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return TypeObject
		}
		return MapOf(w.describe(t.Elem()))
	case reflect.Struct:
		if t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType) {
			return TypeObject
		}
		name := w.nameFor(t)
		if name == "" {
			return TypeObject
		}
		w.addStruct(name, t)
		return name
	}

	return TypeObject
}

// nameFor returns <Version><TypeName> for structs of versioned API packages,
// group-prefixed when another type already owns that name.
func (w *walker) nameFor(t reflect.Type) string {
	if name, ok := w.names[t]; ok {
		return name
	}

	version := path.Base(t.PkgPath())
	if !versionPattern.MatchString(version) || t.Name() == "" {
		return ""
	}

	name := upperFirst(version) + t.Name()
	if w.taken(name, t) {
		name = kinds.GroupPrefix(w.groups[t.PkgPath()]) + name
		if w.taken(name, t) {
			return ""
		}
	}

	w.names[t] = name
	w.owners[name] = t
	return name
}

func (w *walker) taken(name string, t reflect.Type) bool {
	if owner, ok := w.owners[name]; ok {
		return owner != t
	}
	return w.table.Has(name)
}

func (w *walker) addStruct(name string, t reflect.Type) {
	if w.done[t] {
		return
	}
	w.done[t] = true

	if w.table.Add(name, w.fields(t)...) {
		w.added++
	}
}

func (w *walker) fields(t reflect.Type) []Attribute {
	var attrs []Attribute

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if (f.Anonymous && name == "") || strings.Contains(opts, "inline") {
			ft := f.Type
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				attrs = append(attrs, w.fields(ft)...)
				continue
			}
		}

		if name == "" {
			name = f.Name
		}
		attrs = append(attrs, Attribute{Name: name, Type: w.describe(f.Type)})
	}

	return attrs
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
