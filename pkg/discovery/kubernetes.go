// Package discovery builds the client and version registries from the
// cluster's discovery catalogs.
package discovery

import (
	"context"
	"time"

	"github.com/crossplane/function-sdk-go/logging"
	"golang.org/x/sync/errgroup"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8sdiscovery "k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"

	"github.com/novelcore/kubecore-object-client/pkg/clients"
	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
	"github.com/novelcore/kubecore-object-client/pkg/kinds"
	"github.com/novelcore/kubecore-object-client/pkg/versions"
)

// Result holds the registries produced by one discovery run
type Result struct {
	Clients  *clients.Registry
	Versions *versions.Registry
	Summary  Summary
}

// Summary contains statistics about a discovery run
type Summary struct {
	Handles          int
	ResourceCatalogs int
	GroupCatalogs    int
	CatalogMisses    int
	Kinds            int
	Duration         time.Duration
}

// KubernetesEngine runs discovery against a cluster
type KubernetesEngine struct {
	discovery     k8sdiscovery.DiscoveryInterface
	dynamic       dynamic.Interface
	logger        logging.Logger
	canonical     kinds.Policy
	allowed       func(group string) bool
	maxConcurrent int
}

// Option configures a KubernetesEngine
type Option func(*KubernetesEngine)

// WithConcurrency limits concurrent catalog fetches within a pass
func WithConcurrency(n int) Option {
	return func(e *KubernetesEngine) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithGroupFilter restricts discovery to the API groups allowed returns true for
func WithGroupFilter(allowed func(group string) bool) Option {
	return func(e *KubernetesEngine) {
		if allowed != nil {
			e.allowed = allowed
		}
	}
}

// WithPolicy selects the kind canonicalization policy
func WithPolicy(p kinds.Policy) Option {
	return func(e *KubernetesEngine) {
		if p != nil {
			e.canonical = p
		}
	}
}

// NewKubernetesEngine creates a new discovery engine
func NewKubernetesEngine(disco k8sdiscovery.DiscoveryInterface, dyn dynamic.Interface, logger logging.Logger, opts ...Option) *KubernetesEngine {
	e := &KubernetesEngine{
		discovery:     disco,
		dynamic:       dyn,
		logger:        logger,
		canonical:     kinds.Canonicalize,
		allowed:       func(string) bool { return true },
		maxConcurrent: 5,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Discover enumerates every served group-version into a handle and then runs
// the two catalog passes. The resource-list pass completes before the group
// pass starts; within a pass catalogs are fetched concurrently and applied in
// handle order.
func (e *KubernetesEngine) Discover(ctx context.Context) (*Result, error) {
	startTime := time.Now()

	result := &Result{
		Clients:  clients.NewRegistry(e.canonical),
		Versions: versions.NewRegistry(e.canonical),
	}

	groups, err := e.discovery.ServerGroups()
	if err != nil {
		return nil, clienterrors.KubernetesClient("failed to enumerate API groups").WithCause(err)
	}
	for _, g := range groups.Groups {
		if !e.allowed(g.Name) {
			continue
		}
		for _, v := range g.Versions {
			gv := schema.GroupVersion{Group: g.Name, Version: v.Version}
			result.Clients.Add(clients.NewHandle(gv, e.discovery, e.dynamic, e.canonical))
		}
	}

	handles := result.Clients.Handles()
	result.Summary.Handles = len(handles)

	lists, err := fetchAll(ctx, e, handles, (*clients.Handle).Resources)
	if err != nil {
		return nil, clienterrors.Wrap(err, "resource catalog pass failed")
	}
	for i, h := range handles {
		if lists[i] == nil {
			result.Summary.CatalogMisses++
			continue
		}
		result.Summary.ResourceCatalogs++
		for _, kind := range h.Register(lists[i]) {
			result.Clients.RegisterKind(kind, h)
		}
		result.Versions.ObserveResources(h.APIVersion(), lists[i])
	}

	e.logger.Info("Resource catalog pass completed",
		"handles", len(handles),
		"catalogs", result.Summary.ResourceCatalogs)

	apiGroups, err := fetchAll(ctx, e, handles, (*clients.Handle).Group)
	if err != nil {
		return nil, clienterrors.Wrap(err, "group catalog pass failed")
	}
	for i := range handles {
		if apiGroups[i] == nil {
			result.Summary.CatalogMisses++
			continue
		}
		result.Summary.GroupCatalogs++
		result.Versions.ObserveGroup(apiGroups[i])
	}

	result.Summary.Kinds = result.Versions.Kinds()
	result.Summary.Duration = time.Since(startTime)

	e.logger.Info("Discovery completed",
		"handles", result.Summary.Handles,
		"groupCatalogs", result.Summary.GroupCatalogs,
		"misses", result.Summary.CatalogMisses,
		"kinds", result.Summary.Kinds,
		"duration", result.Summary.Duration)

	return result, nil
}

// catalog is one of the two per-handle discovery documents
type catalog interface {
	*metav1.APIResourceList | *metav1.APIGroup
}

// fetchAll fetches one catalog per handle concurrently. A handle whose
// catalog does not exist leaves a nil slot; any other failure aborts.
func fetchAll[T catalog](ctx context.Context, e *KubernetesEngine, handles []*clients.Handle,
	fetch func(*clients.Handle, context.Context) (T, error)) ([]T, error) {
	slots := make([]T, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			v, err := fetch(h, gctx)
			if clienterrors.IsNotFound(err) {
				e.logger.Debug("Catalog not found", "apiVersion", h.APIVersion())
				return nil
			}
			if err != nil {
				return err
			}
			slots[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}
