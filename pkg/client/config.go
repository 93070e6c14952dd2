package client

import (
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/novelcore/kubecore-object-client/internal/config"
	clienterrors "github.com/novelcore/kubecore-object-client/pkg/errors"
)

// RESTConfig builds the cluster connection described by cfg and returns it
// with the namespace new manifests default to.
func RESTConfig(cfg *config.Config) (*rest.Config, string, error) {
	if cfg.InClusterConfig {
		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return nil, "", clienterrors.KubernetesClient("failed to load in-cluster config").WithCause(err)
		}
		return restConfig, namespaceOr(cfg.DefaultNamespace, FallbackNamespace), nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.KubeConfigPath != "" {
		rules.ExplicitPath = cfg.KubeConfigPath
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.KubeContext}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, "", clienterrors.KubernetesClient("failed to load kubeconfig").WithCause(err)
	}

	namespace := cfg.DefaultNamespace
	if namespace == "" {
		if ns, _, err := clientConfig.Namespace(); err == nil {
			namespace = ns
		}
	}
	return restConfig, namespaceOr(namespace, FallbackNamespace), nil
}

func namespaceOr(ns, fallback string) string {
	if ns == "" {
		return fallback
	}
	return ns
}
