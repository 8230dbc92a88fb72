package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// ManagedByLabel marks every object issued for a Request. The reaper
	// only ever deletes objects carrying this label.
	ManagedByLabel = "app.kubernetes.io/managed-by"

	// ManagedByValue is the controller's name, used as the value of
	// ManagedByLabel.
	ManagedByValue = "kufefe"

	// ExpireByAnnotation holds the unix timestamp (seconds) after which
	// the annotated object may be deleted by the reaper.
	ExpireByAnnotation = "kufefe.io/expire-by"

	// EligibleRoleAnnotation marks a ClusterRole as issuable. A Request
	// may only name ClusterRoles annotated with the value "true".
	EligibleRoleAnnotation = "kufefe.io/role"
)

func init() {
	InternalSchemeBuilder.Register(&Request{}, &RequestList{})
}

// +genclient
// +genclient:nonNamespaced
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:printcolumn:name="Role",type=string,JSONPath=`.spec.role`
// +kubebuilder:printcolumn:name="Ready",type=boolean,JSONPath=`.status.ready`
// +kubebuilder:printcolumn:name="Failed",type=boolean,JSONPath=`.status.failed`

// Request asks the controller to issue a time-bounded kubeconfig scoped to
// an eligible ClusterRole. The controller provisions a service account, a
// token secret and a cluster role binding, then renders the kubeconfig into
// the status.
type Request struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   RequestSpec   `json:"spec,omitempty"`
	Status RequestStatus `json:"status,omitempty"`
}

type RequestSpec struct {
	// Role is the name of the ClusterRole to grant. The ClusterRole must
	// carry the eligibility annotation `kufefe.io/role: "true"`.
	Role string `json:"role"`
}

type RequestStatus struct {
	// ServiceAccountName is the name of the generated service account.
	ServiceAccountName string `json:"serviceAccountName,omitempty"`
	// TokenName is the name of the generated token secret.
	TokenName string `json:"tokenName,omitempty"`
	// RolebindingName is the name of the generated cluster role binding.
	RolebindingName string `json:"rolebindingName,omitempty"`
	// Kubeconfig is the rendered client configuration for the issued
	// credentials. Only set once the request is ready.
	Kubeconfig string `json:"kubeconfig,omitempty"`
	// Ready is true once the kubeconfig has been issued.
	Ready bool `json:"ready,omitempty"`
	// Failed is true if the request could not be fulfilled. Failed
	// requests are not retried until the controller restarts.
	Failed bool `json:"failed,omitempty"`
	// Message is a human readable record of the last reconcile event.
	Message string `json:"message,omitempty"`
	// ExpiresAt is the unix timestamp (seconds) at which the request and
	// its issued objects expire.
	ExpiresAt *int64 `json:"expiresAt,omitempty"`
}

// +kubebuilder:object:root=true

// RequestList contains a list of Request
type RequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Request `json:"items"`
}
