package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func resources(gv string, kinds ...string) *metav1.APIResourceList {
	list := &metav1.APIResourceList{GroupVersion: gv}
	for _, k := range kinds {
		list.APIResources = append(list.APIResources, metav1.APIResource{Name: k + "s", Kind: k})
	}
	return list
}

func group(name, preferred string, versions ...string) *metav1.APIGroup {
	g := &metav1.APIGroup{
		Name:             name,
		PreferredVersion: metav1.GroupVersionForDiscovery{GroupVersion: name + "/" + preferred, Version: preferred},
	}
	for _, v := range versions {
		g.Versions = append(g.Versions, metav1.GroupVersionForDiscovery{GroupVersion: name + "/" + v, Version: v})
	}
	return g
}

func TestResourcePassSeedsSelfPreference(t *testing.T) {
	r := NewRegistry(nil)
	r.ObserveResources("v1", resources("v1", "Service", "ConfigMap"))
	r.ObserveResources("batch/v1", resources("batch/v1", "CronJob"))
	r.ObserveResources("batch/v1beta1", resources("batch/v1beta1", "CronJob"))

	assert.Equal(t, []string{"v1"}, r.PreferredAPIVersions("Service"))
	assert.Equal(t, []string{"batch/v1", "batch/v1beta1"}, r.PreferredAPIVersions("CronJob"))
	assert.Equal(t, 3, r.Kinds())
}

func TestGroupPassOverwritesPreference(t *testing.T) {
	r := NewRegistry(nil)
	r.ObserveResources("v1", resources("v1", "Service"))
	r.ObserveResources("batch/v1", resources("batch/v1", "CronJob"))
	r.ObserveResources("batch/v1beta1", resources("batch/v1beta1", "CronJob"))

	r.ObserveGroup(group("batch", "v1", "v1", "v1beta1"))

	assert.Equal(t, []string{"batch/v1"}, r.PreferredAPIVersions("CronJob"))
	assert.Equal(t, []string{"v1"}, r.PreferredAPIVersions("Service"), "core group keeps its self-preference")
}

func TestPreferredVersionMustServeKind(t *testing.T) {
	r := NewRegistry(nil)
	r.ObserveResources("flowcontrol.apiserver.k8s.io/v1beta3", resources("flowcontrol.apiserver.k8s.io/v1beta3", "FlowSchema", "Legacy"))
	r.ObserveResources("flowcontrol.apiserver.k8s.io/v1", resources("flowcontrol.apiserver.k8s.io/v1", "FlowSchema"))
	r.ObserveGroup(group("flowcontrol.apiserver.k8s.io", "v1", "v1", "v1beta3"))

	assert.Equal(t, []string{"flowcontrol.apiserver.k8s.io/v1"}, r.PreferredAPIVersions("FlowSchema"))
	assert.Equal(t, []string{"flowcontrol.apiserver.k8s.io/v1beta3"}, r.PreferredAPIVersions("Legacy"))
}

func TestKindLookupIsCanonical(t *testing.T) {
	r := NewRegistry(nil)
	r.ObserveResources("apps/v1", resources("apps/v1", "Deployment"))

	assert.Equal(t, []string{"apps/v1"}, r.PreferredAPIVersions("V1Deployment"))
	assert.Equal(t, []string{"apps/v1"}, r.PreferredAPIVersions("deployment"))
	assert.Equal(t, []string{"apps/v1"}, r.GroupVersions("Deployment"))
	assert.Empty(t, r.PreferredAPIVersions("Widget"))
}

func TestSubresourcesAreIgnored(t *testing.T) {
	r := NewRegistry(nil)
	list := &metav1.APIResourceList{
		GroupVersion: "autoscaling/v1",
		APIResources: []metav1.APIResource{{Name: "deployments/scale", Kind: "Scale"}},
	}
	r.ObserveResources("autoscaling/v1", list)

	assert.Empty(t, r.PreferredAPIVersions("Scale"))
}

func TestInferAPIVersion(t *testing.T) {
	r := NewRegistry(nil)
	r.ObserveResources("v1", resources("v1", "Service"))

	v, ok := r.InferAPIVersion("Service")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	_, ok = r.InferAPIVersion("Widget")
	assert.False(t, ok)

	r.Observe("Widget", "example.com/v1")
	v, ok = r.InferAPIVersion("Widget")
	assert.True(t, ok)
	assert.Equal(t, "example.com/v1", v, "falls back to the memo")

	r.Observe("Service", "v2")
	v, _ = r.InferAPIVersion("Service")
	assert.Equal(t, "v1", v, "preferred versions win over the memo")
}

func TestGroupCatalogBeforeResourceCatalog(t *testing.T) {
	onlyResources := NewRegistry(nil)
	onlyResources.ObserveResources("batch/v1beta1", resources("batch/v1beta1", "CronJob"))
	onlyResources.ObserveResources("batch/v1", resources("batch/v1", "CronJob"))
	assert.Equal(t, []string{"batch/v1beta1", "batch/v1"}, onlyResources.PreferredAPIVersions("CronJob"))

	inOrder := NewRegistry(nil)
	inOrder.ObserveResources("batch/v1beta1", resources("batch/v1beta1", "CronJob"))
	inOrder.ObserveResources("batch/v1", resources("batch/v1", "CronJob"))
	inOrder.ObserveGroup(group("batch", "v1", "v1", "v1beta1"))
	assert.Equal(t, []string{"batch/v1"}, inOrder.PreferredAPIVersions("CronJob"))

	groupFirst := NewRegistry(nil)
	groupFirst.ObserveGroup(group("batch", "v1", "v1", "v1beta1"))
	groupFirst.ObserveResources("batch/v1beta1", resources("batch/v1beta1", "CronJob"))
	groupFirst.ObserveResources("batch/v1", resources("batch/v1", "CronJob"))
	assert.Equal(t, []string{"batch/v1"}, groupFirst.PreferredAPIVersions("CronJob"), "seeding never replaces a group preference")
}
