// Package metrics exposes the gateway's Prometheus counters and gauges,
// replacing the hand-rolled text exporter the teacher used.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestsTotal counts every request the pipeline completes, labeled by
// status class and whether it was authenticated.
var RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_requests_total",
	Help: "Total requests processed by the gateway pipeline.",
}, []string{"status_class", "authenticated"})

// RateLimitRejectionsTotal counts admission rejections, labeled by scope:
// "global" for the global ceiling, "tier" for the per-tier limit.
var RateLimitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gateway_rate_limit_rejections_total",
	Help: "Total requests rejected by the rate-limiting engine.",
}, []string{"scope"})

// ActiveDevices reports the device registry's live active-device count.
var ActiveDevices = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "gateway_active_devices",
	Help: "Number of active, unexpired registered devices.",
})
