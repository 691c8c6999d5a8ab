package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchRequests *prometheus.CounterVec
	dispatchLatency  prometheus.Histogram
	unmetDemand      prometheus.Gauge
	setpointSuccess  prometheus.Counter
	setpointFailure  prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Gauge, prometheus.Counter, prometheus.Counter) {
	req := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpp_dispatch_requests_total",
			Help: "Number of dispatch requests by outcome",
		},
		[]string{"outcome"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vpp_dispatch_duration_seconds",
			Help:    "Time spent computing and recording a dispatch",
			Buckets: prometheus.DefBuckets,
		},
	)
	unmet := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vpp_dispatch_unmet_demand_kw",
			Help: "Unmet demand of the last dispatch in kW",
		},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vpp_setpoint_publish_success_total",
			Help: "Number of setpoints published to plants",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vpp_setpoint_publish_failure_total",
			Help: "Number of setpoints that could not be published",
		},
	)
	return req, lat, unmet, suc, fail
}

func init() {
	dispatchRequests, dispatchLatency, unmetDemand, setpointSuccess, setpointFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchRequests, dispatchLatency, unmetDemand, setpointSuccess, setpointFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchRequests, dispatchLatency, unmetDemand, setpointSuccess, setpointFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
