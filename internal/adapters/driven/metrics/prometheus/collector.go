// Package prometheus records specfrag operational metrics with the
// Prometheus client library and serves them over HTTP.
package prometheus

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "specfrag"

// Ensure Collector implements the interface.
var _ driven.Metrics = (*Collector)(nil)

// Collector implements driven.Metrics.
type Collector struct {
	registry *prometheus.Registry

	fragmentLookups     *prometheus.CounterVec
	fragmentsStored     *prometheus.CounterVec
	intentSearches      *prometheus.CounterVec
	interpretations     *prometheus.CounterVec
	interpretConfidence *prometheus.HistogramVec
	llmRequests         *prometheus.CounterVec
	llmRequestDuration  *prometheus.HistogramVec
	cleanupDeleted      prometheus.Counter
	researchRejections  *prometheus.CounterVec
	storeErrors         *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers all metrics on a fresh registry, together with
// the Go runtime and process collectors.
func NewCollector(namespace string, log *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if log == nil {
		log = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   log.With(zap.String("component", "metrics")),
	}

	c.fragmentLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragment_lookups_total",
			Help:      "Direct fragment lookups by outcome",
		},
		[]string{"result"}, // hit, miss
	)

	c.fragmentsStored = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_stored_total",
			Help:      "Fragments written per API",
		},
		[]string{"api_id"},
	)

	c.intentSearches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_searches_total",
			Help:      "Intent searches by whether any fragment matched",
		},
		[]string{"result"}, // match, empty
	)

	c.interpretations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interpretations_total",
			Help:      "Produced call plans by interpretation path",
		},
		[]string{"source"},
	)

	c.interpretConfidence = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interpretation_confidence",
			Help:      "Confidence of produced call plans",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 1},
		},
		[]string{"source"},
	)

	c.llmRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Model requests by outcome",
		},
		[]string{"model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "status"},
	)

	c.cleanupDeleted = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted_fragments_total",
			Help:      "Fragments removed by retention sweeps",
		},
	)

	c.researchRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_rejections_total",
			Help:      "Research calls rejected or flagged by the call guard",
		},
		[]string{"reason"},
	)

	c.storeErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Fragment store failures by operation",
		},
		[]string{"op"},
	)

	return c
}

// FragmentLookup counts a direct lookup.
func (c *Collector) FragmentLookup(hit bool) {
	c.fragmentLookups.WithLabelValues(outcome(hit, "hit", "miss")).Inc()
}

// FragmentsStored counts fragments written for an API.
func (c *Collector) FragmentsStored(apiID string, n int) {
	if n <= 0 {
		return
	}
	c.fragmentsStored.WithLabelValues(apiID).Add(float64(n))
}

// IntentSearch counts an intent search.
func (c *Collector) IntentSearch(matched bool) {
	c.intentSearches.WithLabelValues(outcome(matched, "match", "empty")).Inc()
}

// Interpretation observes a produced plan.
func (c *Collector) Interpretation(source string, confidence float64) {
	c.interpretations.WithLabelValues(source).Inc()
	c.interpretConfidence.WithLabelValues(source).Observe(confidence)
}

// LLMRequest observes a model call.
func (c *Collector) LLMRequest(model string, ok bool, elapsed time.Duration) {
	status := outcome(ok, "success", "error")
	c.llmRequests.WithLabelValues(model, status).Inc()
	c.llmRequestDuration.WithLabelValues(model, status).Observe(elapsed.Seconds())

	if !ok {
		c.logger.Debug("llm request failed",
			zap.String("model", model),
			zap.Duration("elapsed", elapsed),
		)
	}
}

// CleanupDeleted counts fragments removed by retention.
func (c *Collector) CleanupDeleted(n int) {
	if n <= 0 {
		return
	}
	c.cleanupDeleted.Add(float64(n))
}

// ResearchRejected counts a call guard failure.
func (c *Collector) ResearchRejected(reason string) {
	c.researchRejections.WithLabelValues(reason).Inc()
}

// StoreError counts a store failure.
func (c *Collector) StoreError(op string) {
	c.storeErrors.WithLabelValues(op).Inc()
}

// Registry returns the registry holding every metric.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
