package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	v1 "github.com/kufefe/kufefe/pkg/apis/kufefe.io/v1"
)

var (
	requestSubsystem = "request"
	requestLabels    = []string{"name", "role"}

	// RequestCollector publishes the per-request state gauges.
	RequestCollector = CollectorCollection{
		requestSubsystem,
		requestMetrics,
		collectRequestMetrics,
	}

	requestMetrics = map[string]prometheus.Collector{
		"ready": promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricPrefix,
				Subsystem: requestSubsystem,
				Name:      "ready",
				Help:      "1 if the request has been completed and its kubeconfig issued.",
			},
			requestLabels,
		),
		"failed": promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricPrefix,
				Subsystem: requestSubsystem,
				Name:      "failed",
				Help:      "1 if the request terminally failed.",
			},
			requestLabels,
		),
		"expires_at": promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricPrefix,
				Subsystem: requestSubsystem,
				Name:      "expires_at",
				Help:      "Unix timestamp at which the request and its issued objects expire.",
			},
			requestLabels,
		),
	}
)

func collectRequestMetrics(obj any, metrics map[string]prometheus.Collector) {
	request, ok := obj.(*v1.Request)
	if !ok {
		panic("unexpected object type")
	}

	labels := prometheus.Labels{
		"name": request.Name,
		"role": request.Spec.Role,
	}

	metrics["ready"].(*prometheus.GaugeVec).With(labels).Set(boolToFloat(request.Status.Ready))
	metrics["failed"].(*prometheus.GaugeVec).With(labels).Set(boolToFloat(request.Status.Failed))

	if request.Status.ExpiresAt != nil {
		metrics["expires_at"].(*prometheus.GaugeVec).With(labels).Set(float64(*request.Status.ExpiresAt))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
