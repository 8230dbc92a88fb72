// Package reaper deletes issued objects once their expiry has passed. It is
// the only cleanup authority: bindings are cluster-scoped and escape owner
// cascade, and partially issued bundles of failed requests have no other
// collector.
package reaper

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/kufefe/kufefe/internal/metadata"
	"github.com/kufefe/kufefe/internal/metrics"
	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Reaper sweeps all four kinds the controller leaves on the cluster:
// requests and the three issued object kinds. It implements quartz.Job and
// runs on the operator's scheduler.
type Reaper struct {
	client.Client

	// Namespace is where issued service accounts and token secrets live.
	Namespace string
}

// Execute runs one sweep. Per-item failures are logged and skipped, the
// next tick retries them. The four kinds are swept independently, any
// interleaving with running reconciles is tolerated.
func (r *Reaper) Execute(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("reaper")
	now := time.Now()

	r.sweepRequests(ctx, logger, now)

	managed := client.MatchingLabelsSelector{Selector: metadata.ManagedSelector()}

	saList := &corev1.ServiceAccountList{}
	if err := r.List(ctx, saList, client.InNamespace(r.Namespace), managed); err != nil {
		logger.Error(err, "Failed to list service accounts")
	} else {
		for i := range saList.Items {
			r.reap(ctx, logger, &saList.Items[i], "ServiceAccount", now)
		}
	}

	secretList := &corev1.SecretList{}
	if err := r.List(ctx, secretList, client.InNamespace(r.Namespace), managed); err != nil {
		logger.Error(err, "Failed to list token secrets")
	} else {
		for i := range secretList.Items {
			r.reap(ctx, logger, &secretList.Items[i], "Secret", now)
		}
	}

	rbList := &rbacv1.ClusterRoleBindingList{}
	if err := r.List(ctx, rbList, managed); err != nil {
		logger.Error(err, "Failed to list cluster role bindings")
	} else {
		for i := range rbList.Items {
			r.reap(ctx, logger, &rbList.Items[i], "ClusterRoleBinding", now)
		}
	}

	return nil
}

// Description implements quartz.Job.
func (r *Reaper) Description() string {
	return "expired-resource-reaper"
}

// sweepRequests deletes requests past their status expiry. Requests are the
// controller's own resource and are listed without the managed-by filter.
func (r *Reaper) sweepRequests(ctx context.Context, logger logr.Logger, now time.Time) {
	requestList := &v1.RequestList{}
	if err := r.List(ctx, requestList); err != nil {
		logger.Error(err, "Failed to list requests")
		return
	}

	for i := range requestList.Items {
		request := &requestList.Items[i]
		expiresAt := request.Status.ExpiresAt
		if expiresAt == nil || *expiresAt >= now.Unix() {
			continue
		}

		if err := client.IgnoreNotFound(r.Delete(ctx, request)); err != nil {
			logger.Error(err, "Failed to delete expired Request", "name", request.Name)
			continue
		}

		logger.Info("Deleted expired Request", "name", request.Name)
		metrics.ReapedObjects.WithLabelValues("Request").Inc()
		metrics.RequestCollector.Delete(request.Name)
	}
}

// reap deletes one issued object if its expire-by stamp has passed. A 404
// is fine, someone else got there first.
func (r *Reaper) reap(ctx context.Context, logger logr.Logger, obj client.Object, kind string, now time.Time) {
	if !metadata.Expired(obj, now) {
		return
	}

	if err := client.IgnoreNotFound(r.Delete(ctx, obj)); err != nil {
		logger.Error(err, "Failed to delete expired object", "kind", kind, "name", obj.GetName())
		return
	}

	logger.Info("Deleted expired object", "kind", kind, "name", obj.GetName())
	metrics.ReapedObjects.WithLabelValues(kind).Inc()
}
