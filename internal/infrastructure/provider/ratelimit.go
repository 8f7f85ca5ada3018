package provider

import (
	"context"
	"fmt"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"

	"golang.org/x/time/rate"
)

var _ application.QuoteProvider = (*RateLimited)(nil)

// RateLimited holds every request to a shared token bucket before delegating.
type RateLimited struct {
	next    application.QuoteProvider
	limiter *rate.Limiter
}

func NewRateLimited(next application.QuoteProvider, rps float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (p *RateLimited) GetQuote(ctx context.Context, instrument domain.Instrument, exchange domain.Exchange) (domain.Quote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.Quote{}, callerAbort{err: fmt.Errorf("rate limiter: %v: %w", err, domain.ErrQuoteTimeout)}
	}
	return p.next.GetQuote(ctx, instrument, exchange)
}
