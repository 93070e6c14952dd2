package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the resource client
type Config struct {
	// Kubernetes client settings
	InClusterConfig bool
	KubeConfigPath  string
	KubeContext     string

	// DefaultNamespace applies to namespaced operations that name none. Empty
	// means the kubeconfig context namespace, else "default".
	DefaultNamespace string

	// Discovery settings
	APIGroupPatterns     []string
	DiscoveryConcurrency int
	DiscoveryTimeout     time.Duration
	LoadCRDSchemas       bool

	// Logging settings
	Debug bool
}

// New creates a new configuration with defaults
func New() *Config {
	return &Config{
		InClusterConfig:      getEnvBool("IN_CLUSTER_CONFIG", false),
		KubeConfigPath:       getEnv("KUBECONFIG_PATH", ""),
		KubeContext:          getEnv("KUBE_CONTEXT", ""),
		DefaultNamespace:     getEnv("DEFAULT_NAMESPACE", ""),
		APIGroupPatterns:     getEnvList("API_GROUP_PATTERNS", nil),
		DiscoveryConcurrency: getEnvInt("DISCOVERY_CONCURRENCY", 5),
		DiscoveryTimeout:     getEnvDuration("DISCOVERY_TIMEOUT", 30*time.Second),
		LoadCRDSchemas:       getEnvBool("LOAD_CRD_SCHEMAS", true),
		Debug:                getEnvBool("DEBUG_ENABLED", false),
	}
}

// GroupAllowed reports whether an API group passes the configured patterns.
// The core group and an empty pattern list allow everything.
func (c *Config) GroupAllowed(group string) bool {
	if group == "" || len(c.APIGroupPatterns) == 0 {
		return true
	}
	return MatchesAnyPattern(group, c.APIGroupPatterns)
}

// MatchesAnyPattern checks if value matches any of the given glob patterns
func MatchesAnyPattern(value string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, value); err == nil && matched {
			return true
		}
		// Also try exact match for non-wildcard patterns
		if strings.EqualFold(pattern, value) {
			return true
		}
	}
	return false
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
