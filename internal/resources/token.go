package resources

import (
	"context"
	"fmt"

	"github.com/kufefe/kufefe/internal/metrics"
	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// CreateTokenSecret issues the token secret of a service account. The secret
// is created empty, kube-controller-manager populates ca.crt and token
// asynchronously once it observes the service account annotation.
func (c *Creator) CreateTokenSecret(ctx context.Context, name, serviceAccount string, req *v1.Request) (*corev1.Secret, error) {
	meta := c.Meta.ObjectMeta(name, c.Namespace, req)
	meta.Annotations[corev1.ServiceAccountNameKey] = serviceAccount

	secret := &corev1.Secret{
		ObjectMeta: meta,
		Type:       corev1.SecretTypeServiceAccountToken,
	}

	if err := c.Create(ctx, secret); err != nil {
		return nil, fmt.Errorf("creating token secret %s: %w", name, err)
	}
	log.FromContext(ctx).Info("Created Secret", "name", name)
	metrics.IssuedObjects.WithLabelValues("Secret").Inc()

	return secret, nil
}

// TokenSecretTaken probes whether a secret with the candidate name already
// exists in the issue namespace.
func (c *Creator) TokenSecretTaken(ctx context.Context, name string) (bool, error) {
	return c.taken(ctx, client.ObjectKey{Namespace: c.Namespace, Name: name}, &corev1.Secret{})
}
