package metrics

import (
	"net/http"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ application.Recorder = (*Registry)(nil)

// Registry holds the detection engine's Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	QuoteRequests      *prometheus.CounterVec
	Passes             prometheus.Counter
	InstrumentsSkipped prometheus.Counter
	PassDuration       prometheus.Histogram
	LastOpportunities  prometheus.Gauge
	LastMaxPercentage  prometheus.Gauge
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		QuoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbitrage_quote_requests_total",
				Help: "Quote request transitions by exchange and outcome (succeeded, retrying, skipped)",
			},
			[]string{"exchange", "outcome"},
		),
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbitrage_detection_passes_total",
			Help: "Completed detection passes",
		}),
		InstrumentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbitrage_instruments_skipped_total",
			Help: "Instruments skipped because of fetch failures or unusable quotes",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbitrage_detection_pass_duration_seconds",
			Help:    "Wall time of a detection pass",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastOpportunities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbitrage_last_pass_opportunities",
			Help: "Opportunities reported by the most recent pass",
		}),
		LastMaxPercentage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbitrage_last_pass_max_difference_percentage",
			Help: "Largest difference percentage in the most recent pass",
		}),
	}
	r.reg.MustRegister(
		r.QuoteRequests,
		r.Passes,
		r.InstrumentsSkipped,
		r.PassDuration,
		r.LastOpportunities,
		r.LastMaxPercentage,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Registry) ObserveRequest(exchange domain.Exchange, outcome string) {
	r.QuoteRequests.WithLabelValues(exchange.String(), outcome).Inc()
}

func (r *Registry) ObservePass(res domain.DetectionResult, took time.Duration) {
	r.Passes.Inc()
	r.InstrumentsSkipped.Add(float64(res.Skipped))
	r.PassDuration.Observe(took.Seconds())
	s := res.Summary()
	r.LastOpportunities.Set(float64(s.Count))
	r.LastMaxPercentage.Set(s.Max.InexactFloat64())
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
