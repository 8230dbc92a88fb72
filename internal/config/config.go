// Package config resolves the controller's process configuration once at
// startup. Components receive the resolved values through their
// constructors; nothing reads the environment after Load returns.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kufefe/kufefe/pkg/durations"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// DefaultNamespace is where issued service accounts and token
	// secrets are created when NAMESPACE is not set.
	DefaultNamespace = "default"

	// providerClusterNamespace is where provider API registrations keep
	// their Cluster objects.
	providerClusterNamespace = "default"
)

// providerClusterGVK identifies the cluster API objects some providers
// (GKE on-prem, Anthos) install, which carry the external API endpoint.
var providerClusterGVK = schema.GroupVersionKind{
	Group:   "cluster.k8s.io",
	Version: "v1alpha1",
	Kind:    "ClusterList",
}

// Config carries the resolved process configuration.
type Config struct {
	// ClusterURL is the API server endpoint written into issued
	// kubeconfigs.
	ClusterURL string

	// Namespace holds the issued service accounts and token secrets.
	Namespace string

	// TTL is the lifetime of issued credentials.
	TTL time.Duration
}

// Load resolves the configuration from the environment. When CLUSTER_URL is
// unset it discovers the endpoint, first from provider Cluster objects,
// then from the connection's own host. The reader must bypass the manager
// cache, Load runs before the manager starts.
func Load(ctx context.Context, reader client.Reader, restCfg *rest.Config) (*Config, error) {
	logger := log.FromContext(ctx).WithName("config")

	namespace := os.Getenv("NAMESPACE")
	if namespace == "" {
		namespace = DefaultNamespace
	}

	ttl := durations.DefaultRequestTTL
	if d := os.Getenv("EXPIRE_MINUTES"); d != "" {
		minutes, err := strconv.Atoi(d)
		if err != nil || minutes <= 0 {
			logger.Info("failed to parse EXPIRE_MINUTES, using default", "value", d, "default", ttl)
		} else {
			ttl = time.Duration(minutes) * time.Minute
		}
	}

	url := os.Getenv("CLUSTER_URL")
	if url == "" {
		logger.Info("cluster URL not explicitly set, attempting to find it automatically")

		var err error
		url, err = discoverClusterURL(ctx, reader, os.Getenv("CLUSTER_NAME"))
		if err != nil {
			logger.Info("no provider cluster endpoint found, falling back to connection host", "reason", err.Error())
			url = restCfg.Host
		}
	}
	if url == "" {
		return nil, fmt.Errorf("cluster URL could not be resolved, set CLUSTER_URL")
	}

	logger.Info("resolved configuration", "clusterURL", url, "namespace", namespace, "ttl", ttl)

	return &Config{
		ClusterURL: url,
		Namespace:  namespace,
		TTL:        ttl,
	}, nil
}

// discoverClusterURL lists provider Cluster objects and returns the API
// endpoint host of the matching one. With several clusters present,
// clusterName picks one by name; an unset clusterName is an error then.
// A named cluster that does not exist falls back to the first item, like a
// single-cluster listing does.
func discoverClusterURL(ctx context.Context, reader client.Reader, clusterName string) (string, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(providerClusterGVK)
	if err := reader.List(ctx, list, client.InNamespace(providerClusterNamespace)); err != nil {
		return "", fmt.Errorf("listing provider clusters: %w", err)
	}

	if len(list.Items) == 0 {
		return "", fmt.Errorf("no provider cluster resources found")
	}

	if len(list.Items) > 1 {
		if clusterName == "" {
			return "", fmt.Errorf("found %d provider clusters, set CLUSTER_NAME to choose one", len(list.Items))
		}
		for i := range list.Items {
			if list.Items[i].GetName() == clusterName {
				return endpointHost(&list.Items[i])
			}
		}
	}

	return endpointHost(&list.Items[0])
}

// endpointHost extracts status.apiEndpoints[0].host.
func endpointHost(cluster *unstructured.Unstructured) (string, error) {
	endpoints, found, err := unstructured.NestedSlice(cluster.Object, "status", "apiEndpoints")
	if err != nil || !found || len(endpoints) == 0 {
		return "", fmt.Errorf("provider cluster %s has no API endpoints", cluster.GetName())
	}

	endpoint, ok := endpoints[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("provider cluster %s has a malformed API endpoint", cluster.GetName())
	}
	host, ok := endpoint["host"].(string)
	if !ok || host == "" {
		return "", fmt.Errorf("provider cluster %s has no API endpoint host", cluster.GetName())
	}

	return host, nil
}
