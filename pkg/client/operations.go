package client

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/novelcore/kubecore-object-client/pkg/broadcast"
	"github.com/novelcore/kubecore-object-client/pkg/clients"
	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
	"github.com/novelcore/kubecore-object-client/pkg/materialize"
)

// target is a resolved manifest: a private copy carrying the inferred
// apiVersion and namespace, plus its materialized body.
type target struct {
	kind       string
	apiVersion string
	name       string
	namespace  string
	body       *unstructured.Unstructured
}

func (t *target) ref() clienterrors.ResourceRef {
	return clienterrors.ResourceRef{Kind: t.kind, APIVersion: t.apiVersion, Name: t.name, Namespace: t.namespace}
}

func (t *target) request() clients.Request {
	return clients.Request{Name: t.name, Namespace: t.namespace, Object: t.body}
}

// resolve validates manifest, infers what it omits and materializes it. The
// caller's manifest is never modified.
func (c *Client) resolve(manifest *unstructured.Unstructured) (*target, error) {
	if manifest == nil {
		return nil, clienterrors.InvalidInput("manifest is required")
	}
	obj := manifest.DeepCopy()

	kind, err := c.kinds.Resolve(obj.GetKind())
	if err != nil {
		return nil, err
	}

	apiVersion := obj.GetAPIVersion()
	if apiVersion == "" {
		inferred, ok := c.versions.InferAPIVersion(kind)
		if !ok {
			return nil, clienterrors.InvalidInput("apiVersion is required: no served version is known").
				WithResource(clienterrors.ResourceRef{Kind: kind, Name: obj.GetName()})
		}
		apiVersion = inferred
		obj.SetAPIVersion(apiVersion)
	} else if _, err := c.clients.HandleFor(apiVersion); err != nil {
		return nil, err
	}

	if obj.GetName() == "" {
		return nil, clienterrors.InvalidInput("metadata.name is required").
			WithResource(clienterrors.ResourceRef{Kind: kind, APIVersion: apiVersion})
	}

	if c.clients.Namespaced(kind) {
		if obj.GetNamespace() == "" {
			obj.SetNamespace(c.DefaultNamespace())
		}
	} else {
		obj.SetNamespace("")
	}

	typeName, err := c.kinds.TypeName(obj.GetKind(), apiVersion)
	if err != nil {
		return nil, err
	}
	typed, err := c.materializer.Document(typeName, obj.Object)
	if err != nil {
		return nil, clienterrors.Wrapf(err, "failed to materialize %s %s", kind, obj.GetName())
	}

	return &target{
		kind:       kind,
		apiVersion: apiVersion,
		name:       obj.GetName(),
		namespace:  obj.GetNamespace(),
		body:       typed.Unstructured(),
	}, nil
}

// typed materializes a cluster response against its own apiVersion and
// records the apiVersion in the memo
func (c *Client) typed(u *unstructured.Unstructured) (*materialize.Object, error) {
	typeName, err := c.kinds.TypeName(u.GetKind(), u.GetAPIVersion())
	if err != nil {
		return nil, err
	}
	obj, err := c.materializer.Document(typeName, u.Object)
	if err != nil {
		return nil, clienterrors.Wrapf(err, "failed to materialize response for %s %s", u.GetKind(), u.GetName())
	}
	c.versions.Observe(u.GetKind(), u.GetAPIVersion())
	return obj, nil
}

// broadcast dispatches verb to every handle serving kind
func (c *Client) broadcast(ctx context.Context, kind string, verb clients.Verb, req clients.Request, wrap func(broadcast.Strategy[runtime.Unstructured]) broadcast.Strategy[runtime.Unstructured]) ([]runtime.Unstructured, error) {
	strategies, err := c.clients.Strategies(kind, verb, req)
	if err != nil {
		return nil, err
	}
	if wrap != nil {
		for i := range strategies {
			strategies[i] = wrap(strategies[i])
		}
	}

	results, summary, err := broadcast.ExecuteWithSummary(ctx, strategies)
	c.logger.Debug("Broadcast completed",
		"kind", kind,
		"verb", string(verb),
		"handles", summary.Dispatched,
		"results", summary.Succeeded,
		"notFound", summary.NotFound,
		"skipped", summary.Skipped)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// pick returns the result whose apiVersion matches apiVersion, else the first
func pick(results []runtime.Unstructured, apiVersion string) *unstructured.Unstructured {
	var first *unstructured.Unstructured
	for _, r := range results {
		u, ok := r.(*unstructured.Unstructured)
		if !ok {
			continue
		}
		if first == nil {
			first = u
		}
		if apiVersion != "" && u.GetAPIVersion() == apiVersion {
			return u
		}
	}
	return first
}

func (c *Client) namespaceFor(kind, namespace string) string {
	if !c.clients.Namespaced(kind) {
		return ""
	}
	if namespace == "" {
		return c.DefaultNamespace()
	}
	return namespace
}

func (c *Client) preferredVersion(kind string) string {
	if v, ok := c.versions.InferAPIVersion(kind); ok {
		return v
	}
	return ""
}

// Exists reports whether the named object is present. Only a not found
// outcome yields false; other failures propagate.
func (c *Client) Exists(ctx context.Context, kind, name, namespace string) (bool, error) {
	_, err := c.Get(ctx, kind, name, namespace)
	if clienterrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get reads the named object. An empty namespace selects the default
// namespace for namespaced kinds.
func (c *Client) Get(ctx context.Context, kind, name, namespace string) (*materialize.Object, error) {
	resolved, err := c.kinds.Resolve(kind)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, clienterrors.InvalidInput("name is required").WithResource(clienterrors.ResourceRef{Kind: resolved})
	}
	ns := c.namespaceFor(resolved, namespace)
	return c.get(ctx, resolved, name, ns, c.preferredVersion(resolved))
}

func (c *Client) get(ctx context.Context, kind, name, namespace, apiVersion string) (*materialize.Object, error) {
	results, err := c.broadcast(ctx, kind, clients.VerbGet, clients.Request{Name: name, Namespace: namespace}, nil)
	if err != nil {
		return nil, err
	}
	u := pick(results, apiVersion)
	if u == nil {
		return nil, clienterrors.NotFound(clienterrors.ResourceRef{Kind: kind, APIVersion: apiVersion, Name: name, Namespace: namespace})
	}
	return c.typed(u)
}

// Create persists manifest. A create colliding with an existing object is
// not an error: the persisted object is read back and returned instead.
func (c *Client) Create(ctx context.Context, manifest *unstructured.Unstructured) (*materialize.Object, error) {
	t, err := c.resolve(manifest)
	if err != nil {
		return nil, err
	}

	results, err := c.broadcast(ctx, t.kind, clients.VerbCreate, t.request(), broadcast.SkipAlreadyExists[runtime.Unstructured])
	if err != nil {
		return nil, clienterrors.Wrapf(err, "failed to create %s", t.ref())
	}

	if u := pick(results, t.apiVersion); u != nil {
		return c.typed(u)
	}

	c.logger.Info("Resource already exists, returning the persisted object",
		"kind", t.kind,
		"apiVersion", t.apiVersion,
		"name", t.name,
		"namespace", t.namespace)

	obj, err := c.get(ctx, t.kind, t.name, t.namespace, t.apiVersion)
	if clienterrors.IsNotFound(err) {
		return nil, clienterrors.NotFound(t.ref())
	}
	return obj, err
}

// Patch merge-patches the object named by manifest with its content
func (c *Client) Patch(ctx context.Context, manifest *unstructured.Unstructured) (*materialize.Object, error) {
	t, err := c.resolve(manifest)
	if err != nil {
		return nil, err
	}
	return c.patch(ctx, t)
}

func (c *Client) patch(ctx context.Context, t *target) (*materialize.Object, error) {
	results, err := c.broadcast(ctx, t.kind, clients.VerbPatch, t.request(), nil)
	if err != nil {
		return nil, clienterrors.Wrapf(err, "failed to patch %s", t.ref())
	}
	u := pick(results, t.apiVersion)
	if u == nil {
		return nil, clienterrors.NotFound(t.ref())
	}
	return c.typed(u)
}

// Apply creates manifest when absent and patches it otherwise. The existence
// check and the write are separate calls; an object deleted in between makes
// the patch fail with not found.
func (c *Client) Apply(ctx context.Context, manifest *unstructured.Unstructured) (*materialize.Object, error) {
	t, err := c.resolve(manifest)
	if err != nil {
		return nil, err
	}

	_, err = c.get(ctx, t.kind, t.name, t.namespace, t.apiVersion)
	switch {
	case clienterrors.IsNotFound(err):
		return c.Create(ctx, manifest)
	case err != nil:
		return nil, err
	}
	return c.patch(ctx, t)
}

// Delete removes the object named by manifest. Handles that do not have it
// are ignored.
func (c *Client) Delete(ctx context.Context, manifest *unstructured.Unstructured) error {
	t, err := c.resolve(manifest)
	if err != nil {
		return err
	}
	if _, err := c.broadcast(ctx, t.kind, clients.VerbDelete, t.request(), nil); err != nil {
		return clienterrors.Wrapf(err, "failed to delete %s", t.ref())
	}
	return nil
}

// List returns every object of kind in namespace. An empty namespace selects
// the default namespace for namespaced kinds. Items from all handles serving
// the kind are concatenated in handle order.
func (c *Client) List(ctx context.Context, kind, namespace string) ([]*materialize.Object, error) {
	resolved, err := c.kinds.Resolve(kind)
	if err != nil {
		return nil, err
	}
	return c.list(ctx, resolved, c.namespaceFor(resolved, namespace))
}

// ListAllNamespaces returns every object of kind across all namespaces
func (c *Client) ListAllNamespaces(ctx context.Context, kind string) ([]*materialize.Object, error) {
	resolved, err := c.kinds.Resolve(kind)
	if err != nil {
		return nil, err
	}
	return c.list(ctx, resolved, "")
}

func (c *Client) list(ctx context.Context, kind, namespace string) ([]*materialize.Object, error) {
	results, err := c.broadcast(ctx, kind, clients.VerbList, clients.Request{Namespace: namespace}, nil)
	if err != nil {
		return nil, err
	}

	var out []*materialize.Object
	for _, r := range results {
		list, ok := r.(*unstructured.UnstructuredList)
		if !ok {
			continue
		}
		for i := range list.Items {
			obj, err := c.typed(&list.Items[i])
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// CreateAll creates manifests one at a time in order, stopping at the first
// failure
func (c *Client) CreateAll(ctx context.Context, manifests []*unstructured.Unstructured) ([]*materialize.Object, error) {
	return each(manifests, func(m *unstructured.Unstructured) (*materialize.Object, error) {
		return c.Create(ctx, m)
	})
}

// ApplyAll applies manifests one at a time in order, stopping at the first
// failure
func (c *Client) ApplyAll(ctx context.Context, manifests []*unstructured.Unstructured) ([]*materialize.Object, error) {
	return each(manifests, func(m *unstructured.Unstructured) (*materialize.Object, error) {
		return c.Apply(ctx, m)
	})
}

// DeleteAll deletes manifests one at a time in order, stopping at the first
// failure
func (c *Client) DeleteAll(ctx context.Context, manifests []*unstructured.Unstructured) error {
	_, err := each(manifests, func(m *unstructured.Unstructured) (struct{}, error) {
		return struct{}{}, c.Delete(ctx, m)
	})
	return err
}

func each[T any](manifests []*unstructured.Unstructured, fn func(*unstructured.Unstructured) (T, error)) ([]T, error) {
	out := make([]T, 0, len(manifests))
	for i, m := range manifests {
		v, err := fn(m)
		if err != nil {
			return out, clienterrors.Wrapf(err, "manifest %d", i)
		}
		out = append(out, v)
	}
	return out, nil
}
