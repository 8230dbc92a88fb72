package resources

import (
	"context"
	"fmt"

	"github.com/kufefe/kufefe/internal/metadata"
	"github.com/kufefe/kufefe/internal/metrics"
	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Creator issues the objects granted for a request. Service accounts and
// token secrets land in the configured namespace, bindings are
// cluster-scoped.
type Creator struct {
	client.Client
	Meta      *metadata.Factory
	Namespace string
}

// CreateServiceAccount issues the identity of a request. The token
// controller needs automounting enabled to populate the account's token
// secret.
func (c *Creator) CreateServiceAccount(ctx context.Context, name string, req *v1.Request) (*corev1.ServiceAccount, error) {
	sa := &corev1.ServiceAccount{
		ObjectMeta:                   c.Meta.ObjectMeta(name, c.Namespace, req),
		AutomountServiceAccountToken: ptr.To(true),
	}

	if err := c.Create(ctx, sa); err != nil {
		return nil, fmt.Errorf("creating service account %s: %w", name, err)
	}
	log.FromContext(ctx).Info("Created ServiceAccount", "name", name)
	metrics.IssuedObjects.WithLabelValues("ServiceAccount").Inc()

	return sa, nil
}

// ServiceAccountTaken probes whether a service account with the candidate
// name already exists in the issue namespace.
func (c *Creator) ServiceAccountTaken(ctx context.Context, name string) (bool, error) {
	return c.taken(ctx, client.ObjectKey{Namespace: c.Namespace, Name: name}, &corev1.ServiceAccount{})
}

func (c *Creator) taken(ctx context.Context, key client.ObjectKey, obj client.Object) (bool, error) {
	err := c.Get(ctx, key, obj)
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
