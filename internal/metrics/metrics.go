// Package metrics exposes Prometheus collectors for the pipelines, the LLM
// backends and the HTTP API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/prepwise/internal/llm"
	"github.com/abhisek/prepwise/internal/quiz"
)

const namespace = "prepwise"

// Pipeline labels.
const (
	PipelineGeneration = "generation"
	PipelineEvaluation = "evaluation"
)

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	results         *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec
	secondaryWrites *prometheus.CounterVec

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_attempts_total",
			Help:      "Pipeline attempts by outcome.",
		}, []string{"pipeline", "outcome"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_results_total",
			Help:      "Finished pipeline calls by result.",
		}, []string{"pipeline", "result"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of a pipeline call including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"pipeline"}),
		secondaryWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secondary_write_failures_total",
			Help:      "Best-effort writes that failed and were dropped.",
		}, []string{"write"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM backend calls.",
		}, []string{"purpose", "model", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Latency of LLM backend calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"purpose"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by LLM calls.",
		}, []string{"purpose", "direction"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 30},
		}, []string{"method", "endpoint"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.attempts, m.results, m.pipelineLatency, m.secondaryWrites,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Attempt counts one failed or successful pipeline attempt. A nil err is
// recorded as "success", otherwise as the error's kind.
func (m *Metrics) Attempt(pipeline string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = quiz.KindOf(err).String()
	}
	m.attempts.WithLabelValues(pipeline, outcome).Inc()
}

// Result records the end of a pipeline call.
func (m *Metrics) Result(pipeline string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	switch {
	case quiz.IsExhausted(err):
		result = "exhausted"
	case err != nil:
		result = "error"
	}
	m.results.WithLabelValues(pipeline, result).Inc()
	m.pipelineLatency.WithLabelValues(pipeline).Observe(d.Seconds())
}

// SecondaryWriteFailed counts a dropped best-effort write.
func (m *Metrics) SecondaryWriteFailed(write string) {
	if m == nil {
		return
	}
	m.secondaryWrites.WithLabelValues(write).Inc()
}

// LLMObserver returns an llm.Observer feeding the LLM collectors.
func (m *Metrics) LLMObserver() llm.Observer {
	if m == nil {
		return nil
	}
	return func(purpose, model string, latency time.Duration, usage llm.Usage, err error) {
		m.llmRequests.WithLabelValues(purpose, model, llmStatus(err)).Inc()
		m.llmLatency.WithLabelValues(purpose).Observe(latency.Seconds())
		m.llmTokens.WithLabelValues(purpose, "input").Add(float64(usage.InputTokens))
		m.llmTokens.WithLabelValues(purpose, "output").Add(float64(usage.OutputTokens))
	}
}

func llmStatus(err error) string {
	var (
		rl      *llm.ErrRateLimit
		unavail *llm.ErrProviderUnavailable
		maxTok  *llm.ErrMaxTokensExceeded
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.As(err, &unavail):
		return "unavailable"
	case errors.As(err, &maxTok):
		return "truncated"
	}
	return "error"
}

// Middleware records request count and duration per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
