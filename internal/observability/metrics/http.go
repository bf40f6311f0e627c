package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal            *prometheus.CounterVec
	askDuration         *prometheus.HistogramVec
	askCandidates       *prometheus.HistogramVec
	askConfidence       *prometheus.HistogramVec
	rerankDegradedTotal *prometheus.CounterVec
	fallbackTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docanalyst",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docanalyst",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docanalyst",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docanalyst",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total answered questions by retrieval outcome.",
		},
		[]string{"service", "outcome"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docanalyst",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "End-to-end question answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	askCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docanalyst",
			Subsystem: "ask",
			Name:      "candidates",
			Help:      "Candidate counts per question by retrieval stage.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55},
		},
		[]string{"service", "stage"},
	)
	askConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docanalyst",
			Subsystem: "ask",
			Name:      "confidence_score",
			Help:      "Distribution of reported confidence scores.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	rerankDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docanalyst",
			Subsystem: "ask",
			Name:      "rerank_degraded_total",
			Help:      "Total questions answered with pass-through reranking.",
		},
		[]string{"service"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docanalyst",
			Subsystem: "ask",
			Name:      "fallback_answers_total",
			Help:      "Total questions answered by the extractive fallback.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askTotal,
		askDuration,
		askCandidates,
		askConfidence,
		rerankDegradedTotal,
		fallbackTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		askTotal:            askTotal,
		askDuration:         askDuration,
		askCandidates:       askCandidates,
		askConfidence:       askConfidence,
		rerankDegradedTotal: rerankDegradedTotal,
		fallbackTotal:       fallbackTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordAskObservation captures the retrieval shape of one answered question.
func (m *HTTPServerMetrics) RecordAskObservation(
	service string,
	vectorCandidates, lexicalCandidates, mergedCandidates int,
	rerankDegraded bool,
	retrievalFailed bool,
	confidence float64,
	duration time.Duration,
) {
	outcome := "ok"
	if retrievalFailed {
		outcome = "retrieval_failed"
	}
	m.askTotal.WithLabelValues(service, outcome).Inc()
	m.askDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.askCandidates.WithLabelValues(service, "vector").Observe(float64(vectorCandidates))
	m.askCandidates.WithLabelValues(service, "lexical").Observe(float64(lexicalCandidates))
	m.askCandidates.WithLabelValues(service, "merged").Observe(float64(mergedCandidates))
	m.askConfidence.WithLabelValues(service).Observe(confidence)
	if rerankDegraded {
		m.rerankDegradedTotal.WithLabelValues(service).Inc()
	}
}

// RecordFallbackAnswer counts answers produced without the generation model.
func (m *HTTPServerMetrics) RecordFallbackAnswer(service string) {
	m.fallbackTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
