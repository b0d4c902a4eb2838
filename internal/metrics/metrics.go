package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovery",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	ProviderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "provider_calls_total",
		Help:      "Total place-provider calls by stream kind and result status.",
	}, []string{"stream_kind", "status"})

	ProviderCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discovery",
		Name:      "provider_call_duration_seconds",
		Help:      "Place-provider call duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"stream_kind"})

	ProviderConsecutiveFailures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "discovery",
		Name:      "provider_consecutive_failures",
		Help:      "Current run of consecutive failed provider calls, by stream kind.",
	}, []string{"stream_kind"})

	RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "rejections_total",
		Help:      "Places rejected by the filter pipeline, by reason.",
	}, []string{"reason"})

	CursorServesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discovery",
		Name:      "cursor_serves_total",
		Help:      "Pages served, split by first page vs continuation.",
	}, []string{"page_kind"})

	ActiveSearches = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "discovery",
		Name:      "active_searches",
		Help:      "Search cursors currently alive in the state store.",
	})

	HydrationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "discovery",
		Name:      "hydration_duration_seconds",
		Help:      "Duration of the promo hydration and sort pass.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderCallsTotal,
		ProviderCallDuration,
		ProviderConsecutiveFailures,
		RejectionsTotal,
		CursorServesTotal,
		ActiveSearches,
		HydrationDuration,
	)
}
