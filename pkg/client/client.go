// Package client is the typed resource client: it resolves kinds and
// apiVersions, materializes manifests against the type descriptors and
// broadcasts every operation to the API clients serving the kind.
package client

import (
	"context"
	"sync"

	"github.com/crossplane/function-sdk-go/logging"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	k8sdiscovery "k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	"github.com/novelcore/kubecore-object-client/internal/config"
	"github.com/novelcore/kubecore-object-client/pkg/clients"
	"github.com/novelcore/kubecore-object-client/pkg/discovery"
	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
	"github.com/novelcore/kubecore-object-client/pkg/kinds"
	"github.com/novelcore/kubecore-object-client/pkg/materialize"
	"github.com/novelcore/kubecore-object-client/pkg/schema"
	"github.com/novelcore/kubecore-object-client/pkg/versions"
)

// FallbackNamespace applies when neither the manifest, the configuration nor
// the kubeconfig context names a namespace
const FallbackNamespace = "default"

// Clients are the cluster collaborators a Client is built from
type Clients struct {
	Discovery k8sdiscovery.DiscoveryInterface
	Dynamic   dynamic.Interface
	// Extensions lists CRDs for their schemas. Optional.
	Extensions apiextensionsclientset.Interface
	// Scheme supplies built-in type descriptors. Defaults to the client-go
	// scheme plus apiextensions/v1.
	Scheme *runtime.Scheme
}

type options struct {
	logger           logging.Logger
	defaultNamespace string
	groupAllowed     func(group string) bool
	concurrency      int
	loadCRDs         bool
	policy           kinds.Policy
}

// Option configures a Client
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDefaultNamespace sets the namespace used when a manifest has none
func WithDefaultNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.defaultNamespace = ns
		}
	}
}

// WithGroupFilter restricts discovery and CRD loading to allowed API groups
func WithGroupFilter(allowed func(group string) bool) Option {
	return func(o *options) { o.groupAllowed = allowed }
}

// WithDiscoveryConcurrency bounds concurrent catalog fetches during init
func WithDiscoveryConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithCRDSchemas toggles loading type descriptors from CRDs
func WithCRDSchemas(enabled bool) Option {
	return func(o *options) { o.loadCRDs = enabled }
}

// WithKindPolicy selects the kind canonicalization policy
func WithKindPolicy(p kinds.Policy) Option {
	return func(o *options) { o.policy = p }
}

// Client is the resource client facade. Its registries are fixed once
// construction returns; only the apiVersion memo and the default namespace
// change afterwards.
type Client struct {
	logger       logging.Logger
	types        *schema.Table
	kinds        *kinds.Registry
	materializer *materialize.Materializer
	clients      *clients.Registry
	versions     *versions.Registry
	summary      discovery.Summary

	mu               sync.RWMutex
	defaultNamespace string
}

// New connects to the cluster described by cfg and initializes a Client. A
// nil cfg reads the configuration from the environment.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	restConfig, namespace, err := RESTConfig(cfg)
	if err != nil {
		return nil, err
	}

	disco, err := k8sdiscovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, clienterrors.KubernetesClient("failed to create discovery client").WithCause(err)
	}
	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, clienterrors.KubernetesClient("failed to create dynamic client").WithCause(err)
	}

	c := Clients{
		Discovery: memory.NewMemCacheClient(disco),
		Dynamic:   dyn,
	}
	if cfg.LoadCRDSchemas {
		ext, err := apiextensionsclientset.NewForConfig(restConfig)
		if err != nil {
			return nil, clienterrors.KubernetesClient("failed to create apiextensions client").WithCause(err)
		}
		c.Extensions = ext
	}

	initCtx := ctx
	if cfg.DiscoveryTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, cfg.DiscoveryTimeout)
		defer cancel()
	}

	return NewForClients(initCtx, c,
		WithLogger(log),
		WithDefaultNamespace(namespace),
		WithGroupFilter(cfg.GroupAllowed),
		WithDiscoveryConcurrency(cfg.DiscoveryConcurrency),
		WithCRDSchemas(cfg.LoadCRDSchemas),
	)
}

// NewForClients initializes a Client over pre-built collaborators: it builds
// the type descriptor table, then runs discovery.
func NewForClients(ctx context.Context, c Clients, opts ...Option) (*Client, error) {
	o := &options{
		logger:           logging.NewNopLogger(),
		defaultNamespace: FallbackNamespace,
		loadCRDs:         true,
		policy:           kinds.Canonicalize,
	}
	for _, fn := range opts {
		fn(o)
	}

	if c.Discovery == nil || c.Dynamic == nil {
		return nil, clienterrors.InvalidInput("discovery and dynamic clients are required")
	}

	s := c.Scheme
	if s == nil {
		s = defaultScheme()
	}

	table := schema.NewTable()
	added := table.AddScheme(s)
	o.logger.Debug("Registered built-in type descriptors", "types", added)

	if c.Extensions != nil && o.loadCRDs {
		loader := schema.NewCRDLoader(c.Extensions, o.logger, o.groupAllowed)
		if _, err := loader.Load(ctx, table); err != nil {
			return nil, clienterrors.Wrap(err, "failed to load CRD schemas")
		}
	}

	engine := discovery.NewKubernetesEngine(c.Discovery, c.Dynamic, o.logger,
		discovery.WithConcurrency(o.concurrency),
		discovery.WithGroupFilter(o.groupAllowed),
		discovery.WithPolicy(o.policy))

	result, err := engine.Discover(ctx)
	if err != nil {
		return nil, clienterrors.Wrap(err, "discovery failed")
	}

	return &Client{
		logger:           o.logger,
		types:            table,
		kinds:            kinds.NewRegistry(table, kinds.WithPolicy(o.policy)),
		materializer:     materialize.New(table),
		clients:          result.Clients,
		versions:         result.Versions,
		summary:          result.Summary,
		defaultNamespace: o.defaultNamespace,
	}, nil
}

func defaultScheme() *runtime.Scheme {
	s := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(s))
	utilruntime.Must(apiextensionsv1.AddToScheme(s))
	return s
}

// DefaultNamespace returns the namespace applied to namespaced manifests
// that carry none
func (c *Client) DefaultNamespace() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultNamespace
}

// SetDefaultNamespace changes the default namespace
func (c *Client) SetDefaultNamespace(ns string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultNamespace = ns
}

// PreferredAPIVersions returns the preferred group-versions serving kind
func (c *Client) PreferredAPIVersions(kind string) []string {
	return c.versions.PreferredAPIVersions(kind)
}

// Kinds returns every kind the type descriptors know, sorted
func (c *Client) Kinds() []string {
	return c.kinds.Kinds()
}

// DiscoverySummary returns the statistics of the discovery run
func (c *Client) DiscoverySummary() discovery.Summary {
	return c.summary
}
