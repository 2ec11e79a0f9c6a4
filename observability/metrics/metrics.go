package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veritasor",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "RPC requests partitioned by method and outcome.",
	}, []string{"method", "outcome"})

	rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "veritasor",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "RPC request handling latency by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	redemptionsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "veritasor",
		Subsystem: "bonds",
		Name:      "redemptions_settled_total",
		Help:      "Bond redemption records written.",
	})

	attestationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "veritasor",
		Subsystem: "attest",
		Name:      "attestations_submitted_total",
		Help:      "Revenue attestations accepted into the registry.",
	})
)

// ObserveRPC records one RPC request. Outcome should be "ok" or "error".
func ObserveRPC(method, outcome string, elapsed time.Duration) {
	method = strings.TrimSpace(method)
	if method == "" {
		method = "unknown"
	}
	rpcRequests.WithLabelValues(method, outcome).Inc()
	rpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RedemptionSettled bumps the redemption counter.
func RedemptionSettled() { redemptionsSettled.Inc() }

// AttestationSubmitted bumps the attestation counter.
func AttestationSubmitted() { attestationsSubmitted.Inc() }

// Handler exposes the process metrics in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
