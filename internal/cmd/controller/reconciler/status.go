package reconciler

import (
	"context"

	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"

	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Status is a chainable recorder over a request's status. Mutators only
// touch their field, repeated application is idempotent. Apply replaces the
// whole status subresource, the controller is its only writer.
type Status struct {
	status v1.RequestStatus
}

// NewStatus starts from the request's current status.
func NewStatus(req *v1.Request) *Status {
	return &Status{status: req.Status}
}

func (s *Status) Ready(ready bool) *Status {
	s.status.Ready = ready
	return s
}

func (s *Status) Failed(failed bool) *Status {
	s.status.Failed = failed
	return s
}

func (s *Status) Message(message string) *Status {
	s.status.Message = message
	return s
}

// ArtifactNames records the names of the three issued objects.
func (s *Status) ArtifactNames(serviceAccount, token, rolebinding string) *Status {
	s.status.ServiceAccountName = serviceAccount
	s.status.TokenName = token
	s.status.RolebindingName = rolebinding
	return s
}

func (s *Status) ExpiresAt(at int64) *Status {
	s.status.ExpiresAt = &at
	return s
}

func (s *Status) Kubeconfig(kubeconfig string) *Status {
	s.status.Kubeconfig = kubeconfig
	return s
}

// Apply writes the recorded status back to the request's status
// subresource. The write is a full replace, re-fetched and retried on
// version conflicts.
func (s *Status) Apply(ctx context.Context, c client.Client, req *v1.Request) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if err := c.Get(ctx, client.ObjectKeyFromObject(req), req); err != nil {
			return err
		}
		req.Status = s.status
		return c.Status().Update(ctx, req)
	})
}
