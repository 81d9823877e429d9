package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domrepo "PriceFusion/internal/domain/repository"
)

var _ domrepo.Metrics = (*Recorder)(nil)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fusions    *prometheus.CounterVec
	rejections *prometheus.CounterVec
	outliers   prometheus.Counter
	cache      *prometheus.CounterVec
	providers  *prometheus.CounterVec
	errorsTot  *prometheus.CounterVec
	lastPrice  *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
}

// New creates a recorder registered on reg; nil means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		fusions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricefusion_fusions_total",
				Help: "Fusion attempts by outcome",
			},
			[]string{"outcome"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricefusion_quote_rejections_total",
				Help: "Quotes rejected before fusion by reason",
			},
			[]string{"reason"},
		),
		outliers: f.NewCounter(
			prometheus.CounterOpts{
				Name: "pricefusion_outliers_total",
				Help: "Quotes dropped as statistical outliers",
			},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricefusion_cache_requests_total",
				Help: "Fused price cache lookups by result",
			},
			[]string{"result"},
		),
		providers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricefusion_provider_calls_total",
				Help: "Quote provider calls by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		errorsTot: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricefusion_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricefusion_last_fused_price",
				Help: "Last fused price for a product",
			},
			[]string{"product"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricefusion_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordFusion(outcome string) {
	r.fusions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordOutliers(n int) {
	r.outliers.Add(float64(n))
}

func (r *Recorder) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordProvider(source, outcome string) {
	r.providers.WithLabelValues(source, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTot.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last fused price for a product.
func (r *Recorder) RecordLastPrice(productKey string, price float64) {
	r.lastPrice.WithLabelValues(productKey).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
