package component

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "component",
		Name:      "requests_total",
		Help:      "Number of requests sent to a component",
	}, []string{"component", "transport"})
	failureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "component",
		Name:      "client_failures_total",
		Help:      "Number of requests that failed in the transport",
	}, []string{"component", "kind"})
	retryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "component",
		Name:      "remote_retries_total",
		Help:      "Number of retried remote requests",
	}, []string{"component"})
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "component",
		Name:      "request_latency_seconds",
		Help:      "Latency of component requests as seen by the client",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	}, []string{"component", "transport"})
)

func observeFailure(component string, err error) {
	kind := "context"
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		kind = clientErr.Kind.String()
	}
	failureCounter.WithLabelValues(component, kind).Inc()
}
