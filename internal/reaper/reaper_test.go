package reaper

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"
)

func stamp(expiresAt time.Time) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Namespace: "default",
		Labels:    map[string]string{v1.ManagedByLabel: v1.ManagedByValue},
		Annotations: map[string]string{
			v1.ExpireByAnnotation: strconv.FormatInt(expiresAt.Unix(), 10),
		},
	}
}

func newReaper(t *testing.T, objs ...client.Object) *Reaper {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))
	require.NoError(t, v1.AddToScheme(scheme))

	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...).Build()
	return &Reaper{Client: c, Namespace: "default"}
}

func TestReaperDeletesExpiredObjects(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	expiredSA := &corev1.ServiceAccount{ObjectMeta: stamp(past)}
	expiredSA.Name = "kufefe-generated-dead01"
	liveSA := &corev1.ServiceAccount{ObjectMeta: stamp(future)}
	liveSA.Name = "kufefe-generated-live01"

	expiredSecret := &corev1.Secret{ObjectMeta: stamp(past), Type: corev1.SecretTypeServiceAccountToken}
	expiredSecret.Name = "kufefe-generated-dead02"
	liveSecret := &corev1.Secret{ObjectMeta: stamp(future), Type: corev1.SecretTypeServiceAccountToken}
	liveSecret.Name = "kufefe-generated-live02"

	expiredRB := &rbacv1.ClusterRoleBinding{ObjectMeta: stamp(past)}
	expiredRB.Name = "kufefe-generated-dead03"
	expiredRB.Namespace = ""
	liveRB := &rbacv1.ClusterRoleBinding{ObjectMeta: stamp(future)}
	liveRB.Name = "kufefe-generated-live03"
	liveRB.Namespace = ""

	pastUnix := past.Unix()
	futureUnix := future.Unix()
	expiredRequest := &v1.Request{
		ObjectMeta: metav1.ObjectMeta{Name: "r-dead"},
		Status:     v1.RequestStatus{Ready: true, ExpiresAt: &pastUnix},
	}
	liveRequest := &v1.Request{
		ObjectMeta: metav1.ObjectMeta{Name: "r-live"},
		Status:     v1.RequestStatus{Ready: true, ExpiresAt: &futureUnix},
	}
	pendingRequest := &v1.Request{
		ObjectMeta: metav1.ObjectMeta{Name: "r-pending"},
	}

	r := newReaper(t,
		expiredSA, liveSA,
		expiredSecret, liveSecret,
		expiredRB, liveRB,
		expiredRequest, liveRequest, pendingRequest,
	)

	require.NoError(t, r.Execute(context.Background()))

	ctx := context.Background()
	gone := func(obj client.Object, key types.NamespacedName) {
		err := r.Get(ctx, key, obj)
		assert.True(t, apierrors.IsNotFound(err), "expected %s to be deleted", key.Name)
	}
	kept := func(obj client.Object, key types.NamespacedName) {
		assert.NoError(t, r.Get(ctx, key, obj))
	}

	gone(&corev1.ServiceAccount{}, types.NamespacedName{Namespace: "default", Name: "kufefe-generated-dead01"})
	kept(&corev1.ServiceAccount{}, types.NamespacedName{Namespace: "default", Name: "kufefe-generated-live01"})

	gone(&corev1.Secret{}, types.NamespacedName{Namespace: "default", Name: "kufefe-generated-dead02"})
	kept(&corev1.Secret{}, types.NamespacedName{Namespace: "default", Name: "kufefe-generated-live02"})

	gone(&rbacv1.ClusterRoleBinding{}, types.NamespacedName{Name: "kufefe-generated-dead03"})
	kept(&rbacv1.ClusterRoleBinding{}, types.NamespacedName{Name: "kufefe-generated-live03"})

	gone(&v1.Request{}, types.NamespacedName{Name: "r-dead"})
	kept(&v1.Request{}, types.NamespacedName{Name: "r-live"})
	// No expiry recorded yet, nothing to enforce.
	kept(&v1.Request{}, types.NamespacedName{Name: "r-pending"})
}

func TestReaperIgnoresUnmanagedObjects(t *testing.T) {
	past := time.Now().Add(-time.Minute)

	unmanaged := &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: "default",
			Name:      "someone-elses",
			Annotations: map[string]string{
				v1.ExpireByAnnotation: strconv.FormatInt(past.Unix(), 10),
			},
		},
	}

	r := newReaper(t, unmanaged)
	require.NoError(t, r.Execute(context.Background()))

	var sa corev1.ServiceAccount
	assert.NoError(t, r.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "someone-elses"}, &sa))
}

func TestReaperSkipsUnparseableStamps(t *testing.T) {
	sa := &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Namespace:   "default",
			Name:        "kufefe-generated-odd001",
			Labels:      map[string]string{v1.ManagedByLabel: v1.ManagedByValue},
			Annotations: map[string]string{v1.ExpireByAnnotation: "soon"},
		},
	}

	r := newReaper(t, sa)
	require.NoError(t, r.Execute(context.Background()))

	var stored corev1.ServiceAccount
	assert.NoError(t, r.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "kufefe-generated-odd001"}, &stored))
}
