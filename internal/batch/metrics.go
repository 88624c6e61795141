package batch

import "github.com/hamed0406/sitecheck/internal/domain"

// Metrics receives probe and batch observations.
type Metrics interface {
	ProbeInFlight(delta float64)
	ObserveProbe(res domain.CheckResult)
	ObserveBatch(b *domain.Batch)
}

type nopMetrics struct{}

func (nopMetrics) ProbeInFlight(float64) {}
func (nopMetrics) ObserveProbe(domain.CheckResult) {}
func (nopMetrics) ObserveBatch(*domain.Batch) {}
