package kinds

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
)

// TypeNamer enumerates every version-qualified type name known to the type
// system.
type TypeNamer interface {
	TypeNames() []string
}

// Entry groups the type names that share one canonical kind.
type Entry struct {
	Kind      string
	TypeNames []string
}

// Registry indexes type names by lower-cased canonical kind. The index is
// built once, on first use, and is read-only afterwards.
type Registry struct {
	source TypeNamer
	policy Policy

	once    sync.Once
	entries map[string]*Entry
}

// Option configures a Registry
type Option func(*Registry)

// WithPolicy selects the version stripping policy
func WithPolicy(p Policy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// NewRegistry creates a registry over the type names exposed by source
func NewRegistry(source TypeNamer, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		policy: LastDigitPolicy,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) index() map[string]*Entry {
	r.once.Do(func() {
		r.entries = buildIndex(r.source.TypeNames(), r.policy)
	})
	return r.entries
}

func buildIndex(typeNames []string, policy Policy) map[string]*Entry {
	names := append([]string(nil), typeNames...)
	sort.Strings(names)

	entries := make(map[string]*Entry)
	for _, name := range names {
		kind := policy(name)
		key := strings.ToLower(kind)
		e, ok := entries[key]
		if !ok {
			e = &Entry{Kind: kind}
			entries[key] = e
		}
		if n := len(e.TypeNames); n > 0 && e.TypeNames[n-1] == name {
			continue
		}
		e.TypeNames = append(e.TypeNames, name)
	}
	return entries
}

// Canonical returns the registered canonical spelling of kind. Unknown kinds
// come back version-stripped but otherwise verbatim.
func (r *Registry) Canonical(kind string) string {
	stripped := r.policy(kind)
	if e, ok := r.index()[strings.ToLower(stripped)]; ok {
		return e.Kind
	}
	return stripped
}

// Lookup returns the entry for kind, if any
func (r *Registry) Lookup(kind string) (*Entry, bool) {
	e, ok := r.index()[strings.ToLower(r.policy(kind))]
	return e, ok
}

// Resolve returns the canonical kind, failing when the type system knows no
// type for it.
func (r *Registry) Resolve(kind string) (string, error) {
	if kind == "" {
		return "", clienterrors.InvalidInput("kind is required")
	}
	e, ok := r.Lookup(kind)
	if !ok {
		return "", clienterrors.UnsupportedKind(kind)
	}
	return e.Kind, nil
}

// TypeName returns the type name that describes kind at apiVersion, e.g.
// ("CronJob", "batch/v1beta1") -> "V1beta1CronJob". Group-prefixed names such
// as EventsV1Event win over plain ones for their group. The kind's own spelling
// is matched before its canonical one, so S3Bucket and Bucket stay apart.
func (r *Registry) TypeName(kind, apiVersion string) (string, error) {
	e, ok := r.Lookup(kind)
	if !ok {
		return "", clienterrors.UnsupportedKind(kind)
	}

	group, version := "", apiVersion
	if i := strings.LastIndex(apiVersion, "/"); i >= 0 {
		group, version = apiVersion[:i], apiVersion[i+1:]
	}

	var prefixes []string
	if p := GroupPrefix(group); p != "" {
		prefixes = append(prefixes, p+version)
	}
	prefixes = append(prefixes, version)

	spellings := []string{e.Kind}
	if !strings.EqualFold(kind, e.Kind) {
		spellings = []string{kind, e.Kind}
	}

	for _, prefix := range prefixes {
		for _, spelling := range spellings {
			for _, name := range e.TypeNames {
				if strings.EqualFold(name, prefix+spelling) {
					return name, nil
				}
			}
		}
	}
	for _, prefix := range prefixes {
		for _, name := range e.TypeNames {
			if hasVersionPrefix(name, prefix) {
				return name, nil
			}
		}
	}

	return "", clienterrors.UnsupportedKind(kind).WithContext("apiVersion", apiVersion)
}

// GroupPrefix derives the type name prefix used to tell apart same-named types
// of different API groups: "events.k8s.io" -> "Events". The core group has none.
func GroupPrefix(group string) string {
	label := group
	if i := strings.Index(group, "."); i >= 0 {
		label = group[:i]
	}
	if label == "" {
		return ""
	}
	runes := []rune(label)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// hasVersionPrefix reports whether name starts with prefix followed by the
// upper-case start of a type name, so V1 matches V1Service but not V1beta1Foo.
func hasVersionPrefix(name, prefix string) bool {
	if prefix == "" || len(name) <= len(prefix) {
		return false
	}
	if !strings.EqualFold(name[:len(prefix)], prefix) {
		return false
	}
	next := []rune(name[len(prefix):])[0]
	return unicode.IsUpper(next)
}

// Kinds returns every canonical kind, sorted
func (r *Registry) Kinds() []string {
	idx := r.index()
	out := make([]string, 0, len(idx))
	for _, e := range idx {
		out = append(out, e.Kind)
	}
	sort.Strings(out)
	return out
}
