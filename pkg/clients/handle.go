// Package clients holds one API client handle per served group-version and
// indexes the handles by the kinds they serve.
package clients

import (
	"context"
	"sort"
	"strings"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"

	"github.com/novelcore/kubecore-object-client/pkg/broadcast"
	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
	"github.com/novelcore/kubecore-object-client/pkg/kinds"
)

// Verb is an operation a handle may expose for a kind
type Verb string

const (
	VerbCreate Verb = "create"
	VerbGet    Verb = "get"
	VerbPatch  Verb = "patch"
	VerbList   Verb = "list"
	VerbDelete Verb = "delete"
)

var supportedVerbs = []Verb{VerbCreate, VerbGet, VerbPatch, VerbList, VerbDelete}

// Capability describes how a handle serves one kind
type Capability struct {
	// Kind is the canonical kind
	Kind string
	// ServedKind is the kind as the API server spells it
	ServedKind string
	// Resource is the plural resource name used in request paths
	Resource   string
	Namespaced bool
	Verbs      map[Verb]bool
}

// Request carries the arguments of one verb call
type Request struct {
	Name      string
	Namespace string
	// Object is the body of create and patch calls
	Object *unstructured.Unstructured
}

// Handle is the API client for one group-version
type Handle struct {
	gv        schema.GroupVersion
	discovery discovery.DiscoveryInterface
	dynamic   dynamic.Interface
	canonical kinds.Policy

	mu           sync.RWMutex
	capabilities map[string]*Capability
}

// NewHandle creates a handle for gv. canonical maps served kinds to canonical
// kinds; nil selects kinds.Canonicalize.
func NewHandle(gv schema.GroupVersion, disco discovery.DiscoveryInterface, dyn dynamic.Interface, canonical kinds.Policy) *Handle {
	if canonical == nil {
		canonical = kinds.Canonicalize
	}
	return &Handle{
		gv:           gv,
		discovery:    disco,
		dynamic:      dyn,
		canonical:    canonical,
		capabilities: make(map[string]*Capability),
	}
}

// GroupVersion returns the group-version this handle serves
func (h *Handle) GroupVersion() schema.GroupVersion {
	return h.gv
}

// APIVersion returns the group-version in apiVersion spelling
func (h *Handle) APIVersion() string {
	return h.gv.String()
}

// Resources fetches the handle's resource-list catalog
func (h *Handle) Resources(ctx context.Context) (*metav1.APIResourceList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list, err := h.discovery.ServerResourcesForGroupVersion(h.APIVersion())
	if err != nil {
		return nil, clienterrors.Wrapf(err, "failed to fetch resources for %s", h.APIVersion())
	}
	return list, nil
}

// Group fetches the handle's group catalog. The core group has none and
// reports not found.
func (h *Handle) Group(ctx context.Context) (*metav1.APIGroup, error) {
	if h.gv.Group == "" {
		return nil, clienterrors.NotFound(clienterrors.ResourceRef{Kind: "APIGroup", APIVersion: h.APIVersion()})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups, err := h.discovery.ServerGroups()
	if err != nil {
		return nil, clienterrors.Wrapf(err, "failed to fetch group %s", h.gv.Group)
	}
	for i := range groups.Groups {
		if groups.Groups[i].Name == h.gv.Group {
			return &groups.Groups[i], nil
		}
	}
	return nil, clienterrors.NotFound(clienterrors.ResourceRef{Kind: "APIGroup", Name: h.gv.Group})
}

// Register records the capabilities listed in a resource-list catalog and
// returns the canonical kinds it registered, sorted. Subresources are skipped.
func (h *Handle) Register(list *metav1.APIResourceList) []string {
	if list == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var registered []string
	for _, res := range list.APIResources {
		if res.Kind == "" || strings.Contains(res.Name, "/") {
			continue
		}

		verbs := make(map[Verb]bool)
		for _, v := range res.Verbs {
			for _, supported := range supportedVerbs {
				if v == string(supported) {
					verbs[supported] = true
				}
			}
		}

		kind := h.canonical(res.Kind)
		key := strings.ToLower(kind)
		if _, ok := h.capabilities[key]; !ok {
			registered = append(registered, kind)
		}
		h.capabilities[key] = &Capability{
			Kind:       kind,
			ServedKind: res.Kind,
			Resource:   res.Name,
			Namespaced: res.Namespaced,
			Verbs:      verbs,
		}
	}

	sort.Strings(registered)
	return registered
}

// Capability returns how this handle serves kind
func (h *Handle) Capability(kind string) (*Capability, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.capabilities[strings.ToLower(h.canonical(kind))]
	return c, ok
}

// Bind returns a strategy performing verb on kind, or false when this handle
// does not expose the verb for the kind. Create, get and patch yield the
// stored object; list yields an *unstructured.UnstructuredList whose items
// carry their kind and apiVersion; delete yields a stub naming the deleted
// object.
func (h *Handle) Bind(kind string, verb Verb, req Request) (broadcast.Strategy[runtime.Unstructured], bool) {
	c, ok := h.Capability(kind)
	if !ok || !c.Verbs[verb] {
		return nil, false
	}

	gvr := h.gv.WithResource(c.Resource)
	resource := func() dynamic.ResourceInterface {
		if c.Namespaced && req.Namespace != "" {
			return h.dynamic.Resource(gvr).Namespace(req.Namespace)
		}
		return h.dynamic.Resource(gvr)
	}

	switch verb {
	case VerbCreate:
		return func(ctx context.Context) (runtime.Unstructured, error) {
			return resource().Create(ctx, h.body(c, req.Object), metav1.CreateOptions{})
		}, true

	case VerbGet:
		return func(ctx context.Context) (runtime.Unstructured, error) {
			return resource().Get(ctx, req.Name, metav1.GetOptions{})
		}, true

	case VerbPatch:
		return func(ctx context.Context) (runtime.Unstructured, error) {
			data, err := h.body(c, req.Object).MarshalJSON()
			if err != nil {
				return nil, clienterrors.InvalidInput("cannot encode patch body").WithCause(err)
			}
			return resource().Patch(ctx, req.Name, types.MergePatchType, data, metav1.PatchOptions{})
		}, true

	case VerbList:
		return func(ctx context.Context) (runtime.Unstructured, error) {
			list, err := resource().List(ctx, metav1.ListOptions{})
			if err != nil {
				return nil, err
			}
			for i := range list.Items {
				list.Items[i].SetAPIVersion(h.APIVersion())
				list.Items[i].SetKind(c.ServedKind)
			}
			return list, nil
		}, true

	case VerbDelete:
		return func(ctx context.Context) (runtime.Unstructured, error) {
			if err := resource().Delete(ctx, req.Name, metav1.DeleteOptions{}); err != nil {
				return nil, err
			}
			stub := &unstructured.Unstructured{}
			stub.SetAPIVersion(h.APIVersion())
			stub.SetKind(c.ServedKind)
			stub.SetName(req.Name)
			if c.Namespaced {
				stub.SetNamespace(req.Namespace)
			}
			return stub, nil
		}, true
	}

	return nil, false
}

// body returns a copy of obj addressed to this handle's group-version
func (h *Handle) body(c *Capability, obj *unstructured.Unstructured) *unstructured.Unstructured {
	out := &unstructured.Unstructured{Object: map[string]interface{}{}}
	if obj != nil {
		out = obj.DeepCopy()
	}
	out.SetAPIVersion(h.APIVersion())
	out.SetKind(c.ServedKind)
	if !c.Namespaced {
		out.SetNamespace("")
	}
	return out
}
