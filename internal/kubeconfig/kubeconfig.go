// Package kubeconfig renders the client configuration returned in a
// request's status, resolving the issued token secret against the delay of
// asynchronous token population.
package kubeconfig

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/kufefe/kufefe/pkg/durations"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// contextName names the single cluster and context of a rendered
// kubeconfig. The user entry is named after the service account.
const contextName = "kubernetes"

// Assembler renders kubeconfigs for issued credentials. The zero Backoff
// means PopulateBackoff.
type Assembler struct {
	client.Reader
	ClusterURL string
	Namespace  string
	Backoff    wait.Backoff
}

// PopulateBackoff is the wait for kube-controller-manager to fill in a
// fresh token secret. The first retry comes quickly, later ones are capped
// at a minute.
func PopulateBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: durations.TokenPopulateBase,
		Factor:   1000,
		Cap:      durations.TokenPopulateMax,
		Steps:    durations.TokenPopulateSteps,
	}
}

// Render resolves the token secret and returns the serialized kubeconfig.
// Both payload fields are read with the populate backoff; a secret that
// never fills in surfaces the last missing-field error.
func (a *Assembler) Render(ctx context.Context, serviceAccount, tokenSecret string) (string, error) {
	ca, err := a.secretField(ctx, tokenSecret, corev1.ServiceAccountRootCAKey)
	if err != nil {
		return "", err
	}

	token, err := a.secretField(ctx, tokenSecret, corev1.ServiceAccountTokenKey)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(token) {
		return "", fmt.Errorf("secret %s/%s: token data is not valid UTF-8", a.Namespace, tokenSecret)
	}

	raw, err := clientcmd.Write(clientcmdapi.Config{
		Clusters: map[string]*clientcmdapi.Cluster{
			contextName: {
				Server:                   a.ClusterURL,
				CertificateAuthorityData: ca,
			},
		},
		Contexts: map[string]*clientcmdapi.Context{
			contextName: {
				Cluster:  contextName,
				AuthInfo: serviceAccount,
			},
		},
		AuthInfos: map[string]*clientcmdapi.AuthInfo{
			serviceAccount: {
				Token: string(token),
			},
		},
		CurrentContext: contextName,
	})
	if err != nil {
		return "", fmt.Errorf("serializing kubeconfig: %w", err)
	}

	return string(raw), nil
}

// secretField reads one payload field, retrying while the field is still
// missing. API errors other than NotFound abort the wait, the secret was
// created by this controller moments ago.
func (a *Assembler) secretField(ctx context.Context, name, key string) ([]byte, error) {
	logger := log.FromContext(ctx)
	backoff := a.Backoff
	if backoff.Steps == 0 {
		backoff = PopulateBackoff()
	}

	var value []byte
	err := retry.OnError(backoff, isNotPopulated, func() error {
		logger.V(1).Info("Attempting to read token secret field", "secret", name, "key", key)

		var secret corev1.Secret
		if err := a.Get(ctx, client.ObjectKey{Namespace: a.Namespace, Name: name}, &secret); err != nil {
			return err
		}

		v, ok := secret.Data[key]
		if !ok || len(v) == 0 {
			return &notPopulatedError{namespace: a.Namespace, name: name, key: key}
		}
		value = v

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolving token secret: %w", err)
	}

	return value, nil
}

type notPopulatedError struct {
	namespace, name, key string
}

func (e *notPopulatedError) Error() string {
	return fmt.Sprintf("secret %s/%s has no %q data yet", e.namespace, e.name, e.key)
}

// isNotPopulated also covers NotFound, a freshly created secret may not
// have reached the cache yet.
func isNotPopulated(err error) bool {
	if _, ok := err.(*notPopulatedError); ok {
		return true
	}
	return apierrors.IsNotFound(err)
}
