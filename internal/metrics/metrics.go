// Package metrics exposes Prometheus instrumentation for the lecturer backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors, registered on a private registry so that
// tests can build as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	CompletionsTotal  *prometheus.CounterVec
	ProviderDuration  *prometheus.HistogramVec
	HTTPRequestsTotal *prometheus.CounterVec
	UploadsTotal      *prometheus.CounterVec
	TurnsRecorded     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CompletionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentora_completions_total",
				Help: "Completion requests by kind (chat, story), outcome and fallback reason",
			},
			[]string{"kind", "outcome", "reason"},
		),
		ProviderDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mentora_provider_request_duration_seconds",
				Help:    "Latency of calls to the AI completion provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentora_http_requests_total",
				Help: "HTTP requests by method, route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
		UploadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentora_uploads_total",
				Help: "Uploaded files by extraction method",
			},
			[]string{"extraction"},
		),
		TurnsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "mentora_conversation_turns_recorded_total",
			Help: "Conversation turns appended to the conversation store",
		}),
	}
}

func (m *Metrics) ObserveCompletion(kind, outcome, reason string) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(kind, outcome, reason).Inc()
}

func (m *Metrics) ObserveProvider(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
}

func (m *Metrics) ObserveUpload(extraction string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(extraction).Inc()
}

func (m *Metrics) ObserveTurns(n int) {
	if m == nil {
		return
	}
	m.TurnsRecorded.Add(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
