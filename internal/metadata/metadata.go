// Package metadata stamps the shared metadata every issued object carries:
// the managed-by label the reaper filters on, the expire-by annotation it
// acts on, and a back-reference to the owning request where scope permits.
package metadata

import (
	"strconv"
	"time"

	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
)

// Factory produces the object metadata of issued resources. TTL is fixed at
// startup from the process configuration.
type Factory struct {
	TTL time.Duration
}

// ObjectMeta returns the stamped metadata for an issued object. The owner
// reference is only added once the request is persisted, a request without
// a UID cannot be referenced. Cluster-scoped objects pass an empty
// namespace.
func (f *Factory) ObjectMeta(name, namespace string, owner *v1.Request) metav1.ObjectMeta {
	meta := metav1.ObjectMeta{
		Name:      name,
		Namespace: namespace,
		Labels: map[string]string{
			v1.ManagedByLabel: v1.ManagedByValue,
		},
		Annotations: map[string]string{
			v1.ExpireByAnnotation: strconv.FormatInt(f.ExpiresAt(time.Now()), 10),
		},
	}

	if owner != nil && owner.UID != "" {
		meta.OwnerReferences = []metav1.OwnerReference{
			{
				APIVersion: v1.SchemeGroupVersion.String(),
				Kind:       "Request",
				Name:       owner.Name,
				UID:        owner.UID,
			},
		}
	}

	return meta
}

// ExpiresAt returns the unix timestamp at which objects created now expire.
func (f *Factory) ExpiresAt(now time.Time) int64 {
	return now.Add(f.TTL).Unix()
}

// ManagedSelector matches every object this controller issued.
func ManagedSelector() labels.Selector {
	return labels.SelectorFromSet(labels.Set{v1.ManagedByLabel: v1.ManagedByValue})
}

// ExpireBy parses the expire-by annotation of an object. It returns false
// when the annotation is absent or not a unix timestamp.
func ExpireBy(meta metav1.Object) (int64, bool) {
	raw, ok := meta.GetAnnotations()[v1.ExpireByAnnotation]
	if !ok {
		return 0, false
	}
	at, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return at, true
}

// Expired reports whether the object's expire-by stamp lies before now.
// Objects without a parseable stamp never expire.
func Expired(meta metav1.Object, now time.Time) bool {
	at, ok := ExpireBy(meta)
	if !ok {
		return false
	}
	return at < now.Unix()
}
