// Package reconciler drives a Request from its submission to a rendered
// kubeconfig, or to a terminal failure.
package reconciler

import (
	"context"
	"time"

	"github.com/kufefe/kufefe/internal/metrics"
	"github.com/kufefe/kufefe/internal/names"
	"github.com/kufefe/kufefe/internal/resources"
	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"
	"github.com/kufefe/kufefe/pkg/durations"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/util/workqueue"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// KubeconfigRenderer resolves the issued token secret into a serialized
// kubeconfig.
type KubeconfigRenderer interface {
	Render(ctx context.Context, serviceAccount, tokenSecret string) (string, error)
}

// RequestReconciler issues the credential bundle for a Request: a service
// account, its token secret and a cluster role binding, then renders the
// kubeconfig into the status. A request is handled at most once per
// controller lifetime; failures are terminal until a restart.
type RequestReconciler struct {
	client.Client
	Scheme *runtime.Scheme

	Creator  *resources.Creator
	Renderer KubeconfigRenderer

	Workers int
}

// +kubebuilder:rbac:groups=kufefe.io,resources=requests,verbs=get;list;watch;delete
// +kubebuilder:rbac:groups=kufefe.io,resources=requests/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=serviceaccounts,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups=rbac.authorization.k8s.io,resources=clusterroles,verbs=get
// +kubebuilder:rbac:groups=rbac.authorization.k8s.io,resources=clusterrolebindings,verbs=get;list;watch;create;delete

// Reconcile handles a single Request. The create steps are sequential and
// are not rolled back on failure, partially issued objects expire and are
// collected by the reaper.
func (r *RequestReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithValues("request", req.Name)
	ctx = log.IntoContext(ctx, logger)

	request := &v1.Request{}
	if err := r.Get(ctx, req.NamespacedName, request); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	if request.Status.Ready {
		return ctrl.Result{}, nil
	}

	logger.Info("Processing request", "role", request.Spec.Role)

	expiresAt := r.Creator.Meta.ExpiresAt(time.Now())

	saName, err := names.Generate(ctx, r.Creator.ServiceAccountTaken)
	if err != nil {
		return ctrl.Result{}, err
	}
	tokenName, err := names.Generate(ctx, r.Creator.TokenSecretTaken)
	if err != nil {
		return ctrl.Result{}, err
	}
	rbName, err := names.Generate(ctx, r.Creator.ClusterRoleBindingTaken)
	if err != nil {
		return ctrl.Result{}, err
	}

	err = NewStatus(request).
		Ready(false).
		Failed(false).
		Message("Generated names").
		ArtifactNames(saName, tokenName, rbName).
		ExpiresAt(expiresAt).
		Apply(ctx, r.Client, request)
	if err != nil {
		return ctrl.Result{}, err
	}

	if _, err := resources.EligibleClusterRole(ctx, r.Client, request.Spec.Role); err != nil {
		return r.fail(ctx, request, err)
	}

	if _, err := r.Creator.CreateServiceAccount(ctx, saName, request); err != nil {
		return r.fail(ctx, request, err)
	}
	if _, err := r.Creator.CreateTokenSecret(ctx, tokenName, saName, request); err != nil {
		return r.fail(ctx, request, err)
	}
	if _, err := r.Creator.CreateClusterRoleBinding(ctx, rbName, saName, request.Spec.Role); err != nil {
		return r.fail(ctx, request, err)
	}

	kubeconfig, err := r.Renderer.Render(ctx, saName, tokenName)
	if err != nil {
		return r.fail(ctx, request, err)
	}

	err = NewStatus(request).
		Ready(true).
		Failed(false).
		Message("Completed").
		Kubeconfig(kubeconfig).
		Apply(ctx, r.Client, request)
	if err != nil {
		return ctrl.Result{}, err
	}

	metrics.RequestCollector.Collect(ctx, request)
	logger.Info("Request completed", "serviceAccount", saName)

	return ctrl.Result{}, nil
}

// fail records a terminal failure on the request's status. The underlying
// error is not returned, a failed request must not be requeued.
func (r *RequestReconciler) fail(ctx context.Context, request *v1.Request, cause error) (ctrl.Result, error) {
	logger := log.FromContext(ctx)
	logger.Error(cause, "Request failed")

	err := NewStatus(request).
		Ready(false).
		Failed(true).
		Message(cause.Error()).
		Apply(ctx, r.Client, request)
	if err != nil && !apierrors.IsConflict(err) {
		return ctrl.Result{}, err
	}

	metrics.RequestCollector.Collect(ctx, request)

	return ctrl.Result{}, nil
}

// SetupWithManager sets up the controller with the Manager. Events are
// gated so a request is dispatched when it has not been completed yet:
// live submissions always arrive with an empty status, the informer's
// startup replay additionally re-dispatches unready leftovers from a
// previous run. Status updates and other modifications are ignored, a
// request is handled at most once per controller lifetime.
func (r *RequestReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&v1.Request{}, builder.WithPredicates(predicate.Funcs{
			CreateFunc: func(e event.CreateEvent) bool {
				request, ok := e.Object.(*v1.Request)
				if !ok {
					return false
				}
				return !request.Status.Ready
			},
			UpdateFunc: func(e event.UpdateEvent) bool {
				return false
			},
			DeleteFunc: func(e event.DeleteEvent) bool {
				// Cascade deletion plus the reaper handle cleanup.
				ctrl.Log.WithName("request").V(1).Info("Request deleted", "name", e.Object.GetName())
				return false
			},
			GenericFunc: func(e event.GenericEvent) bool {
				return false
			},
		})).
		WithOptions(controller.Options{
			MaxConcurrentReconciles: r.Workers,
			RateLimiter: workqueue.NewTypedItemExponentialFailureRateLimiter[reconcile.Request](
				durations.FailureRateLimiterBase,
				durations.FailureRateLimiterMax,
			),
		}).
		Complete(r)
}
