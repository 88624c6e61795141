package probe

import (
	"context"

	"github.com/hamed0406/sitecheck/internal/domain"
)

// Prober performs a single check against one URL.
//
// Implementations never return an error and never panic on network
// conditions: transport failures are reported as a domain.Failure outcome.
type Prober interface {
	Probe(ctx context.Context, url string) domain.CheckResult
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, url string) domain.CheckResult

func (f ProberFunc) Probe(ctx context.Context, url string) domain.CheckResult {
	return f(ctx, url)
}
