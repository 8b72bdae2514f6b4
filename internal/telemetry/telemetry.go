// Package telemetry owns the Prometheus collectors exported at /metrics.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"net/http"
	"time"

	"github.com/dpolishuk/coderag/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry      *prometheus.Registry
	ingests       *prometheus.CounterVec
	filesParsed   *prometheus.CounterVec
	embeddings    *prometheus.CounterVec
	chats         *prometheus.CounterVec
	searchSeconds prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coderag_ingests_total",
			Help: "Finished ingests by final status.",
		}, []string{"status"}),
		filesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coderag_files_parsed_total",
			Help: "Parsed source files by result.",
		}, []string{"result"}),
		embeddings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coderag_embeddings_written_total",
			Help: "Embedding records written by element kind.",
		}, []string{"kind"}),
		chats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coderag_chat_requests_total",
			Help: "Chat provider calls by provider and result.",
		}, []string{"provider", "result"}),
		searchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coderag_search_duration_seconds",
			Help:    "Time spent ranking embedding records.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.ingests,
		m.filesParsed,
		m.embeddings,
		m.chats,
		m.searchSeconds,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IngestFinished(status models.Status) {
	if m == nil {
		return
	}
	m.ingests.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) FileParsed(ok bool) {
	if m == nil {
		return
	}
	m.filesParsed.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) EmbeddingWritten(kind models.ElementKind) {
	if m == nil {
		return
	}
	m.embeddings.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ChatRequest(provider string, ok bool) {
	if m == nil {
		return
	}
	m.chats.WithLabelValues(provider, result(ok)).Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.searchSeconds.Observe(d.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
