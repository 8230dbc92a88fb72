package resources

import (
	"context"
	"fmt"

	"github.com/kufefe/kufefe/internal/metrics"

	rbacv1 "k8s.io/api/rbac/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// CreateClusterRoleBinding grants the requested cluster role to the service
// account. The binding is cluster-scoped and carries no owner reference, its
// cleanup is the reaper's job.
func (c *Creator) CreateClusterRoleBinding(ctx context.Context, name, serviceAccount, role string) (*rbacv1.ClusterRoleBinding, error) {
	binding := &rbacv1.ClusterRoleBinding{
		ObjectMeta: c.Meta.ObjectMeta(name, "", nil),
		Subjects: []rbacv1.Subject{
			{
				Kind:      rbacv1.ServiceAccountKind,
				Name:      serviceAccount,
				Namespace: c.Namespace,
			},
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     role,
		},
	}

	if err := c.Create(ctx, binding); err != nil {
		return nil, fmt.Errorf("creating cluster role binding %s: %w", name, err)
	}
	log.FromContext(ctx).Info("Created ClusterRoleBinding", "name", name)
	metrics.IssuedObjects.WithLabelValues("ClusterRoleBinding").Inc()

	return binding, nil
}

// ClusterRoleBindingTaken probes whether a cluster role binding with the
// candidate name already exists.
func (c *Creator) ClusterRoleBindingTaken(ctx context.Context, name string) (bool, error) {
	return c.taken(ctx, client.ObjectKey{Name: name}, &rbacv1.ClusterRoleBinding{})
}
