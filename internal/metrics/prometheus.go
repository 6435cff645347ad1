package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Provider metrics
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_provider_calls_total",
			Help: "Total number of provider calls",
		},
		[]string{"provider", "operation", "status"}, // status: success|error|rate_limited
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_provider_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	ProviderTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_provider_tokens_total",
			Help: "Total tokens consumed per provider and model",
		},
		[]string{"provider", "model", "type"}, // type: input|output
	)

	ProviderCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_provider_cost_usd",
			Help: "Estimated provider cost in USD",
		},
		[]string{"provider", "model"},
	)

	// Streaming metrics
	StreamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_stream_events_total",
			Help: "Total streaming events relayed to clients",
		},
		[]string{"provider", "type"}, // type: chunk|done|error
	)

	// Rate limit metrics
	RateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_ratelimit_rejections_total",
			Help: "Total calls rejected by per-provider rate limits",
		},
		[]string{"provider"},
	)

	// Circuit breaker metrics
	CircuitTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_circuit_trips_total",
			Help: "Total number of provider circuit breaker activations",
		},
		[]string{"provider"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hermes_circuit_state",
			Help: "Provider circuit state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Validation metrics
	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_validation_failures_total",
			Help: "Structured outputs that failed schema validation",
		},
		[]string{"provider"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"path", "method", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"path", "method"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	// Provider metrics
	prometheus.MustRegister(ProviderCalls)
	prometheus.MustRegister(ProviderLatency)
	prometheus.MustRegister(ProviderTokens)
	prometheus.MustRegister(ProviderCost)

	// Streaming metrics
	prometheus.MustRegister(StreamEvents)

	// Rate limit metrics
	prometheus.MustRegister(RateLimitRejections)

	// Circuit breaker metrics
	prometheus.MustRegister(CircuitTrips)
	prometheus.MustRegister(CircuitState)

	// Validation metrics
	prometheus.MustRegister(ValidationFailures)

	// HTTP metrics
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordProviderCall records one provider invocation
func RecordProviderCall(provider, operation string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ProviderCalls.WithLabelValues(provider, operation, status).Inc()
	ProviderLatency.WithLabelValues(provider, operation).Observe(latency.Seconds())
}

// RecordRateLimited counts a call rejected before reaching the provider
func RecordRateLimited(provider, operation string) {
	ProviderCalls.WithLabelValues(provider, operation, "rate_limited").Inc()
	RateLimitRejections.WithLabelValues(provider).Inc()
}

// RecordUsage records token consumption and estimated cost
func RecordUsage(provider, model string, inputTokens, outputTokens int64, costUSD float64) {
	if inputTokens > 0 {
		ProviderTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		ProviderTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
	if costUSD > 0 {
		ProviderCost.WithLabelValues(provider, model).Add(costUSD)
	}
}

// RecordStreamEvent counts one relayed streaming event
func RecordStreamEvent(provider, eventType string) {
	StreamEvents.WithLabelValues(provider, eventType).Inc()
}

// RecordCircuitState mirrors a breaker state change into the gauge
func RecordCircuitState(provider string, state float64) {
	CircuitState.WithLabelValues(provider).Set(state)
}

// RecordCircuitTrip counts a closed-to-open transition
func RecordCircuitTrip(provider string) {
	CircuitTrips.WithLabelValues(provider).Inc()
	CircuitState.WithLabelValues(provider).Set(2)
}

// RecordValidationFailure counts a structured output that missed its schema
func RecordValidationFailure(provider string) {
	ValidationFailures.WithLabelValues(provider).Inc()
}

// RecordHTTPRequest records one served request
func RecordHTTPRequest(path, method string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(path, method, httpStatusClass(status)).Inc()
	HTTPDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

func httpStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
