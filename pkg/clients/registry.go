package clients

import (
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/runtime"

	"github.com/novelcore/kubecore-object-client/pkg/broadcast"
	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
	"github.com/novelcore/kubecore-object-client/pkg/kinds"
)

// Registry indexes handles by group-version and by the kinds they serve
type Registry struct {
	canonical kinds.Policy

	mu             sync.RWMutex
	handles        []*Handle
	byGroupVersion map[string]*Handle
	byKind         map[string][]*Handle
}

// NewRegistry creates an empty registry. nil canonical selects
// kinds.Canonicalize.
func NewRegistry(canonical kinds.Policy) *Registry {
	if canonical == nil {
		canonical = kinds.Canonicalize
	}
	return &Registry{
		canonical:      canonical,
		byGroupVersion: make(map[string]*Handle),
		byKind:         make(map[string][]*Handle),
	}
}

// Add registers h under its own group-version. Adding a second handle for the
// same group-version is a no-op.
func (r *Registry) Add(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(h.APIVersion())
	if _, ok := r.byGroupVersion[key]; ok {
		return
	}
	r.byGroupVersion[key] = h
	r.handles = append(r.handles, h)
}

// RegisterKind records that h serves kind
func (r *Registry) RegisterKind(kind string, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(r.canonical(kind))
	for _, existing := range r.byKind[key] {
		if existing == h {
			return
		}
	}
	r.byKind[key] = append(r.byKind[key], h)
}

// Handles returns every handle in registration order
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Handle(nil), r.handles...)
}

// HandleFor returns the handle serving apiVersion. An unregistered
// apiVersion is a not found error.
func (r *Registry) HandleFor(apiVersion string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.byGroupVersion[strings.ToLower(apiVersion)]
	if !ok {
		return nil, clienterrors.NotFound(clienterrors.ResourceRef{Kind: "APIVersion", APIVersion: apiVersion})
	}
	return h, nil
}

// HandlesFor returns the handles serving kind, possibly none
func (r *Registry) HandlesFor(kind string) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Handle(nil), r.byKind[strings.ToLower(r.canonical(kind))]...)
}

// Strategies binds verb on kind across every handle that serves the kind.
// Handles that do not expose the verb contribute nothing; when none does the
// result is an unsupported operation error.
func (r *Registry) Strategies(kind string, verb Verb, req Request) ([]broadcast.Strategy[runtime.Unstructured], error) {
	handles := r.HandlesFor(kind)
	if len(handles) == 0 {
		return nil, clienterrors.UnsupportedKind(kind)
	}

	var strategies []broadcast.Strategy[runtime.Unstructured]
	for _, h := range handles {
		if s, ok := h.Bind(kind, verb, req); ok {
			strategies = append(strategies, s)
		}
	}
	if len(strategies) == 0 {
		return nil, clienterrors.UnsupportedOperation(kind, string(verb))
	}
	return strategies, nil
}

// Namespaced reports whether any handle serves kind as a namespaced resource
func (r *Registry) Namespaced(kind string) bool {
	for _, h := range r.HandlesFor(kind) {
		if c, ok := h.Capability(kind); ok && c.Namespaced {
			return true
		}
	}
	return false
}
