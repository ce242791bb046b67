package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace-service/models"
)

const namespace = "marketplace"

// Registry owns the service's Prometheus collectors. It uses its own registry
// so tests can create as many as they like.
type Registry struct {
	reg *prometheus.Registry

	Requests         *prometheus.CounterVec
	LatencyMS        *prometheus.HistogramVec
	Checkouts        *prometheus.CounterVec
	CheckoutItems    prometheus.Counter
	FailedIncrements prometheus.Counter
}

func NewRegistry(service string) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Completed checkouts by outcome.",
		}, []string{"outcome"}),
		CheckoutItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "checkout_items_total",
			Help:      "Line items processed by checkouts.",
		}),
		FailedIncrements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "checkout_failed_increments_total",
			Help:      "Counter increments skipped because the target was missing.",
		}),
	}
	r.reg.MustRegister(
		r.Requests, r.LatencyMS, r.Checkouts, r.CheckoutItems, r.FailedIncrements,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveCheckout implements services.CheckoutRecorder.
func (r *Registry) ObserveCheckout(summary *models.CheckoutSummary) {
	outcome := "complete"
	if summary.Partial {
		outcome = "partial"
	}
	r.Checkouts.WithLabelValues(outcome).Inc()
	r.CheckoutItems.Add(float64(summary.ItemsProcessed))
	r.FailedIncrements.Add(float64(summary.FailedIncrements))
}

// Middleware records request count and latency per route template.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		r.Requests.WithLabelValues(handler, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		r.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
