// Package resources verifies the requested cluster role and issues the
// objects granted for a request: the service account, its token secret and
// the cluster role binding.
package resources

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"

	rbacv1 "k8s.io/api/rbac/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrRoleNotEligible is returned for cluster roles that exist but lack the
// eligibility annotation.
var ErrRoleNotEligible = errors.New("not eligible for issuance")

// EligibleClusterRole fetches the named cluster role and verifies it is
// annotated as issuable. It runs before anything is created, a bad request
// must not leave objects behind.
func EligibleClusterRole(ctx context.Context, c client.Client, name string) (*rbacv1.ClusterRole, error) {
	var role rbacv1.ClusterRole
	if err := c.Get(ctx, client.ObjectKey{Name: name}, &role); err != nil {
		return nil, fmt.Errorf("fetching cluster role %s: %w", name, err)
	}

	if role.Annotations[v1.EligibleRoleAnnotation] != "true" {
		return nil, fmt.Errorf("cluster role %s is %w, annotate it with %s=true", name, ErrRoleNotEligible, v1.EligibleRoleAnnotation)
	}

	return &role, nil
}
