package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atamind_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	AgentCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atamind_agent_call_duration_seconds",
			Help:    "Duration of content generation calls per agent",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	AgentCallTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atamind_agent_call_total",
			Help: "Content generation calls per agent and outcome",
		},
		[]string{"agent", "outcome"},
	)

	PipelineStateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atamind_pipeline_state_total",
			Help: "Story pipeline state transitions",
		},
		[]string{"state"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atamind_pipeline_duration_seconds",
			Help:    "End to end story pipeline duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 240},
		},
		[]string{"outcome"},
	)

	StoryRegenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atamind_story_regenerations_total",
			Help: "Stories regenerated after a failed safety validation",
		},
	)

	MediaFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atamind_media_failures_total",
			Help: "Media generation failures by kind",
		},
		[]string{"kind"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atamind_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	RatingsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atamind_activity_ratings_total",
			Help: "Activity ratings recorded",
		},
	)

	ReportsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atamind_reports_generated_total",
			Help: "Biweekly reports generated",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestDuration,
		AgentCallDuration,
		AgentCallTotal,
		PipelineStateTotal,
		PipelineDuration,
		StoryRegenerations,
		MediaFailures,
		BreakerState,
		RatingsRecorded,
		ReportsGenerated,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAgentCall records one content generation call.
func ObserveAgentCall(agent string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	AgentCallDuration.WithLabelValues(agent).Observe(time.Since(start).Seconds())
	AgentCallTotal.WithLabelValues(agent, outcome).Inc()
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
