// Package metrics exposes the controller's Prometheus metrics through the
// controller-runtime registry.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const metricPrefix = "kufefe"

var (
	// IssuedObjects counts every object created for a request, by kind.
	IssuedObjects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricPrefix,
			Name:      "issued_objects_total",
			Help:      "Total number of objects issued for requests.",
		},
		[]string{"kind"},
	)

	// ReapedObjects counts every expired object the reaper deleted, by
	// kind.
	ReapedObjects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricPrefix,
			Name:      "reaped_objects_total",
			Help:      "Total number of expired objects deleted by the reaper.",
		},
		[]string{"kind"},
	)

	objMetrics = []prometheus.Collector{
		IssuedObjects,
		ReapedObjects,
	}
)

// RegisterMetrics registers all collectors with the controller-runtime
// registry, so they are served by the manager's metrics endpoint.
func RegisterMetrics() {
	RequestCollector.Register()

	for _, metric := range objMetrics {
		metrics.Registry.MustRegister(metric)
	}
}

// CollectorCollection implements the generic methods `Delete` and `Register`
// for a collection of Prometheus collectors. It is used to manage the
// lifecycle of per-object metrics.
type CollectorCollection struct {
	subsystem string
	metrics   map[string]prometheus.Collector
	collector func(obj any, metrics map[string]prometheus.Collector)
}

// Collect collects the metrics for the given object. Existing metrics of
// the object are deleted first, their label values may have changed and
// stale series must not linger.
func (c *CollectorCollection) Collect(ctx context.Context, obj metav1.ObjectMetaAccessor) {
	logger := log.FromContext(ctx).WithName("metrics")
	defer func() {
		if r := recover(); r != nil {
			logger.Error(errors.New("error collecting metrics"), "observed panic", "panic", r)
		}
	}()
	c.Delete(obj.GetObjectMeta().GetName())
	c.collector(obj, c.metrics)
}

// Delete deletes the metrics matching the given name label. It returns the
// number of metrics deleted.
func (c *CollectorCollection) Delete(name string) (deleted int) {
	identityLabels := prometheus.Labels{"name": name}
	for _, collector := range c.metrics {
		switch metric := collector.(type) {
		case *prometheus.CounterVec:
			deleted += metric.DeletePartialMatch(identityLabels)
		case *prometheus.GaugeVec:
			deleted += metric.DeletePartialMatch(identityLabels)
		default:
			panic("unexpected metric type")
		}
	}

	return deleted
}

// Register registers the collection with the controller-runtime registry.
func (c *CollectorCollection) Register() {
	for _, metric := range c.metrics {
		metrics.Registry.MustRegister(metric)
	}
}
