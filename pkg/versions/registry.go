// Package versions tracks which group-versions serve each kind and which
// version the cluster prefers for every API group.
package versions

import (
	"strings"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/novelcore/kubecore-object-client/internal/cache"
	"github.com/novelcore/kubecore-object-client/pkg/kinds"
)

// Registry is filled by the two discovery passes and read afterwards. The
// apiVersion memo is the only state that keeps growing after init.
type Registry struct {
	canonical kinds.Policy

	mu sync.RWMutex
	// lower-cased canonical kind -> group-versions in observation order
	kindToGroupVersions map[string][]string
	// lower-cased group-version -> preferred group-version
	preferred map[string]string

	memo *cache.MemoryCache[string, string]
}

// NewRegistry creates an empty registry. canonical maps resource kinds to
// canonical kinds; nil selects kinds.Canonicalize.
func NewRegistry(canonical kinds.Policy) *Registry {
	if canonical == nil {
		canonical = kinds.Canonicalize
	}
	return &Registry{
		canonical:           canonical,
		kindToGroupVersions: make(map[string][]string),
		preferred:           make(map[string]string),
		memo:                cache.NewMemo[string, string](),
	}
}

func (r *Registry) key(kind string) string {
	return strings.ToLower(r.canonical(kind))
}

// ObserveResources records the kinds listed in a resource-list catalog under
// groupVersion and seeds the group-version as its own preferred version.
func (r *Registry) ObserveResources(groupVersion string, list *metav1.APIResourceList) {
	if list == nil {
		return
	}
	if groupVersion == "" {
		groupVersion = list.GroupVersion
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	gvKey := strings.ToLower(groupVersion)
	if _, ok := r.preferred[gvKey]; !ok {
		r.preferred[gvKey] = groupVersion
	}

	for _, res := range list.APIResources {
		if res.Kind == "" || strings.Contains(res.Name, "/") {
			continue
		}
		k := r.key(res.Kind)
		if !containsFold(r.kindToGroupVersions[k], groupVersion) {
			r.kindToGroupVersions[k] = append(r.kindToGroupVersions[k], groupVersion)
		}
	}
}

// ObserveGroup applies a group catalog entry: every version of the group now
// prefers the group's preferred version.
func (r *Registry) ObserveGroup(group *metav1.APIGroup) {
	if group == nil || group.PreferredVersion.GroupVersion == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range group.Versions {
		r.preferred[strings.ToLower(v.GroupVersion)] = group.PreferredVersion.GroupVersion
	}
}

// GroupVersions returns every group-version known to serve kind
func (r *Registry) GroupVersions(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.kindToGroupVersions[r.key(kind)]...)
}

// PreferredAPIVersions maps each group-version serving kind to its group's
// preferred version. A preferred version that does not serve the kind falls
// back to the group-version itself. The result is ordered and free of
// duplicates.
func (r *Registry) PreferredAPIVersions(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	served := r.kindToGroupVersions[r.key(kind)]
	out := make([]string, 0, len(served))
	for _, gv := range served {
		pref, ok := r.preferred[strings.ToLower(gv)]
		if !ok || !containsFold(served, pref) {
			pref = gv
		}
		if !containsFold(out, pref) {
			out = append(out, pref)
		}
	}
	return out
}

// InferAPIVersion returns the first preferred version of kind, falling back to
// the last apiVersion observed on an object of that kind.
func (r *Registry) InferAPIVersion(kind string) (string, bool) {
	if prefs := r.PreferredAPIVersions(kind); len(prefs) > 0 {
		return prefs[0], true
	}
	return r.memo.Get(r.key(kind))
}

// Observe memoizes the apiVersion seen on an object of kind
func (r *Registry) Observe(kind, apiVersion string) {
	if kind == "" || apiVersion == "" {
		return
	}
	r.memo.Set(r.key(kind), apiVersion)
}

// Kinds returns the number of kinds with at least one group-version
func (r *Registry) Kinds() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kindToGroupVersions)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
