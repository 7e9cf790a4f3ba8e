// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenav_provider_requests_total",
			Help: "Calls to the maps provider by operation and outcome",
		},
		[]string{"operation", "transport", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carenav_provider_request_duration_seconds",
			Help:    "Duration of maps provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "transport"},
	)

	FacilitiesFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenav_places_results_total",
			Help: "Raw places results by post-filter decision",
		},
		[]string{"decision"},
	)

	SupersededResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carenav_superseded_responses_total",
			Help: "Search responses discarded because a newer request was issued",
		},
	)

	ScoreVectors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenav_score_vectors_total",
			Help: "Classification score vectors received by delivery outcome",
		},
		[]string{"outcome"},
	)

	RecommendationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenav_recommendations_emitted_total",
			Help: "Recommendations that replaced the displayed one, by label",
		},
		[]string{"label"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carenav_active_sessions",
			Help: "Sessions currently held in process",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carenav_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carenav_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
