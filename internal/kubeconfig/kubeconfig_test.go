package kubeconfig

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/wait"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/yaml"
)

// quickBackoff keeps the populate wait out of test runtime.
func quickBackoff(steps int) wait.Backoff {
	return wait.Backoff{Duration: time.Millisecond, Factor: 1, Steps: steps}
}

func newAssembler(t *testing.T, steps int, objs ...client.Object) *Assembler {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, clientgoscheme.AddToScheme(scheme))

	return &Assembler{
		Reader:     fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...).Build(),
		ClusterURL: "https://api.example:6443",
		Namespace:  "default",
		Backoff:    quickBackoff(steps),
	}
}

func tokenSecret(data map[string][]byte) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "kufefe-generated-tok123"},
		Type:       corev1.SecretTypeServiceAccountToken,
		Data:       data,
	}
}

func TestRender(t *testing.T) {
	secret := tokenSecret(map[string][]byte{
		corev1.ServiceAccountRootCAKey: []byte("-----BEGIN CERTIFICATE-----\nabc\n-----END CERTIFICATE-----"),
		corev1.ServiceAccountTokenKey:  []byte("sometoken"),
	})
	a := newAssembler(t, 1, secret)

	raw, err := a.Render(context.Background(), "kufefe-generated-abc123", "kufefe-generated-tok123")
	require.NoError(t, err)

	// The document must be a plain v1 Config.
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "v1", doc["apiVersion"])
	assert.Equal(t, "Config", doc["kind"])

	cfg, err := clientcmd.Load([]byte(raw))
	require.NoError(t, err)

	require.Len(t, cfg.Clusters, 1)
	require.Len(t, cfg.Contexts, 1)
	require.Len(t, cfg.AuthInfos, 1)

	cluster := cfg.Clusters["kubernetes"]
	require.NotNil(t, cluster)
	assert.Equal(t, "https://api.example:6443", cluster.Server)
	assert.Equal(t, secret.Data[corev1.ServiceAccountRootCAKey], cluster.CertificateAuthorityData)

	assert.Equal(t, "kubernetes", cfg.CurrentContext)
	kubeContext := cfg.Contexts["kubernetes"]
	require.NotNil(t, kubeContext)
	assert.Equal(t, "kubernetes", kubeContext.Cluster)
	assert.Equal(t, "kufefe-generated-abc123", kubeContext.AuthInfo)

	user := cfg.AuthInfos["kufefe-generated-abc123"]
	require.NotNil(t, user)
	assert.Equal(t, "sometoken", user.Token)
}

func TestRenderWaitsForPopulation(t *testing.T) {
	// An empty secret never fills in; the retry budget must surface the
	// missing field.
	a := newAssembler(t, 3, tokenSecret(nil))

	_, err := a.Render(context.Background(), "kufefe-generated-abc123", "kufefe-generated-tok123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no "ca.crt" data yet`)
}

func TestRenderMissingTokenField(t *testing.T) {
	secret := tokenSecret(map[string][]byte{
		corev1.ServiceAccountRootCAKey: []byte("ca-bytes"),
	})
	a := newAssembler(t, 2, secret)

	_, err := a.Render(context.Background(), "kufefe-generated-abc123", "kufefe-generated-tok123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no "token" data yet`)
}

func TestRenderRejectsBinaryToken(t *testing.T) {
	secret := tokenSecret(map[string][]byte{
		corev1.ServiceAccountRootCAKey: []byte("ca-bytes"),
		corev1.ServiceAccountTokenKey:  {0xff, 0xfe, 0x00},
	})
	a := newAssembler(t, 1, secret)

	_, err := a.Render(context.Background(), "kufefe-generated-abc123", "kufefe-generated-tok123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")
}

func TestRenderMissingSecret(t *testing.T) {
	a := newAssembler(t, 2)

	_, err := a.Render(context.Background(), "kufefe-generated-abc123", "kufefe-generated-tok123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolving token secret")
}
