package schema

import (
	"sort"
	"sync"
)

type descriptor struct {
	attributes []Attribute
	byName     map[string]string
	extensible bool
}

// Table is an in-memory Source. Type names are registered once; the first
// registration of a name wins.
type Table struct {
	mu    sync.RWMutex
	types map[string]*descriptor
}

// NewTable creates an empty descriptor table
func NewTable() *Table {
	return &Table{
		types: make(map[string]*descriptor),
	}
}

// Add registers typeName with its attributes. It reports false when typeName
// is already registered, leaving the existing descriptor untouched.
func (t *Table) Add(typeName string, attributes ...Attribute) bool {
	return t.add(typeName, false, attributes)
}

// AddExtensible registers typeName like Add, but undeclared attributes of its
// instances are accepted as untyped objects.
func (t *Table) AddExtensible(typeName string, attributes ...Attribute) bool {
	return t.add(typeName, true, attributes)
}

func (t *Table) add(typeName string, extensible bool, attributes []Attribute) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.types[typeName]; exists {
		return false
	}

	d := &descriptor{
		attributes: append([]Attribute(nil), attributes...),
		byName:     make(map[string]string, len(attributes)),
		extensible: extensible,
	}
	for _, a := range attributes {
		d.byName[a.Name] = a.Type
	}
	t.types[typeName] = d
	return true
}

// Has reports whether typeName is registered
func (t *Table) Has(typeName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.types[typeName]
	return ok
}

// Attributes implements Source
func (t *Table) Attributes(typeName string) ([]Attribute, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.types[typeName]
	if !ok {
		return nil, false
	}
	return append([]Attribute(nil), d.attributes...), true
}

// Extensible implements Source
func (t *Table) Extensible(typeName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.types[typeName]
	return ok && d.extensible
}

// AttributeType returns the declared type of one attribute
func (t *Table) AttributeType(typeName, attribute string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.types[typeName]
	if !ok {
		return "", false
	}
	typ, ok := d.byName[attribute]
	return typ, ok
}

// TypeNames implements Source
func (t *Table) TypeNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.types))
	for name := range t.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of registered types
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.types)
}
