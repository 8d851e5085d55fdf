package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type Recorder interface {
	IncRequestsTotal(path string, status int)
	ObserveRequestDuration(path string, duration time.Duration)
	IncRegistrations()
	IncDeregistrations(amount decimal.Decimal)
	SetViolationsReported(count int)
	AddObservationsUploaded(count int)
	IncCacheHits()
	IncCacheMisses()
	IncReportsArchived()
}

type PrometheusRecorder struct {
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	registrations        prometheus.Counter
	deregistrations      prometheus.Counter
	feeAmount            prometheus.Counter
	violationsReported   prometheus.Gauge
	observationsUploaded prometheus.Counter
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	reportsArchived      prometheus.Counter
}

func NewRecorder(enabled bool, reg *prometheus.Registry) Recorder {
	if !enabled || reg == nil {
		return Noop{}
	}

	factory := promauto.With(reg)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parking_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),

		registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_registrations_total",
			Help: "Total number of successful registrations",
		}),

		deregistrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_deregistrations_total",
			Help: "Total number of successful de-registrations",
		}),

		feeAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_fee_amount_total",
			Help: "Sum of computed parking fees in currency units",
		}),

		violationsReported: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parking_violations_reported",
			Help: "Number of entries in the most recent violation report",
		}),

		observationsUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_observations_uploaded_total",
			Help: "Total number of stored monitoring observations",
		}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_rate_cache_hits_total",
			Help: "Total number of rate table cache hits",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_rate_cache_misses_total",
			Help: "Total number of rate table cache misses",
		}),

		reportsArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_reports_archived_total",
			Help: "Total number of violation reports uploaded to object storage",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (m *PrometheusRecorder) IncRequestsTotal(path string, status int) {
	m.requestsTotal.WithLabelValues(path, httpStatusBucket(status)).Inc()
}

func (m *PrometheusRecorder) ObserveRequestDuration(path string, duration time.Duration) {
	m.requestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

func (m *PrometheusRecorder) IncRegistrations() {
	m.registrations.Inc()
}

func (m *PrometheusRecorder) IncDeregistrations(amount decimal.Decimal) {
	m.deregistrations.Inc()
	if amount.IsPositive() {
		m.feeAmount.Add(amount.InexactFloat64())
	}
}

func (m *PrometheusRecorder) SetViolationsReported(count int) {
	m.violationsReported.Set(float64(count))
}

func (m *PrometheusRecorder) AddObservationsUploaded(count int) {
	m.observationsUploaded.Add(float64(count))
}

func (m *PrometheusRecorder) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *PrometheusRecorder) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *PrometheusRecorder) IncReportsArchived() {
	m.reportsArchived.Inc()
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Noop is used when metrics are disabled.
type Noop struct{}

func (Noop) IncRequestsTotal(_ string, _ int)                 {}
func (Noop) ObserveRequestDuration(_ string, _ time.Duration) {}
func (Noop) IncRegistrations()                                {}
func (Noop) IncDeregistrations(_ decimal.Decimal)             {}
func (Noop) SetViolationsReported(_ int)                      {}
func (Noop) AddObservationsUploaded(_ int)                    {}
func (Noop) IncCacheHits()                                    {}
func (Noop) IncCacheMisses()                                  {}
func (Noop) IncReportsArchived()                              {}
