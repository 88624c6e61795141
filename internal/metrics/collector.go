package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/hamed0406/sitecheck/internal/batch"
	"github.com/hamed0406/sitecheck/internal/domain"
)

// Module provides the metrics collector
var Module = fx.Options(
	fx.Provide(NewCollector),
	fx.Provide(func(c *Collector) batch.Metrics { return c }),
)

var _ batch.Metrics = (*Collector)(nil)

type Collector struct {
	registry      *prometheus.Registry
	probesTotal   *prometheus.CounterVec
	probeDuration prometheus.Histogram
	inFlight      prometheus.Gauge
	statusCodes   *prometheus.CounterVec
	batchesTotal  *prometheus.CounterVec
	batchDuration prometheus.Histogram
}

// NewCollector registers on a private registry so collectors from several
// tests or servers never collide.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		probesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecheck_probes_total",
				Help: "Total number of probes performed",
			},
			[]string{"outcome", "kind"},
		),
		probeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitecheck_probe_duration_seconds",
				Help:    "Round-trip latency of probes",
				Buckets: prometheus.DefBuckets,
			},
		),
		inFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitecheck_probes_in_flight",
				Help: "Number of probes currently running",
			},
		),
		statusCodes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecheck_status_codes_total",
				Help: "Completed exchanges by status class",
			},
			[]string{"class"},
		),
		batchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecheck_batches_total",
				Help: "Total number of batches run",
			},
			[]string{"result"},
		),
		batchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitecheck_batch_duration_seconds",
				Help:    "Wall time of whole batches",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (c *Collector) ProbeInFlight(delta float64) {
	c.inFlight.Add(delta)
}

func (c *Collector) ObserveProbe(res domain.CheckResult) {
	c.probeDuration.Observe(res.Latency.Seconds())
	if res.Outcome.OK() {
		c.probesTotal.WithLabelValues("success", "").Inc()
		c.statusCodes.WithLabelValues(res.Outcome.StatusClass()).Inc()
		return
	}
	c.probesTotal.WithLabelValues("failure", string(res.Outcome.Kind())).Inc()
}

func (c *Collector) ObserveBatch(b *domain.Batch) {
	s := b.Summary()
	result := "clean"
	if s.Failed > 0 {
		result = "with_failures"
	}
	c.batchesTotal.WithLabelValues(result).Inc()
	c.batchDuration.Observe(s.Elapsed.Seconds())
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
