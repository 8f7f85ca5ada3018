package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var _ application.QuoteProvider = (*CircuitBreaker)(nil)

type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// CircuitBreaker keeps one breaker per exchange so an unhealthy venue fails
// fast without affecting the other.
type CircuitBreaker struct {
	next     application.QuoteProvider
	breakers map[domain.Exchange]*gobreaker.CircuitBreaker
}

func NewCircuitBreaker(next application.QuoteProvider, s BreakerSettings, log *zap.Logger) *CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	cb := &CircuitBreaker{next: next, breakers: map[domain.Exchange]*gobreaker.CircuitBreaker{}}
	for _, ex := range domain.Exchanges() {
		cb.breakers[ex] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "quotes-" + ex.String(),
			MaxRequests: s.HalfOpenRequests,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= s.ConsecutiveFailures
			},
			// A missing symbol or an aborted caller says nothing about venue health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domain.ErrQuoteNotFound) || isCallerAbort(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("provider.breaker_state", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}
	return cb
}

func (p *CircuitBreaker) GetQuote(ctx context.Context, instrument domain.Instrument, exchange domain.Exchange) (domain.Quote, error) {
	b, ok := p.breakers[exchange]
	if !ok {
		return p.next.GetQuote(ctx, instrument, exchange)
	}
	out, err := b.Execute(func() (interface{}, error) {
		q, err := p.next.GetQuote(ctx, instrument, exchange)
		if err != nil && (abortedByCaller(ctx) || errors.Is(err, context.Canceled)) {
			return q, callerAbort{err: err}
		}
		return q, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Quote{}, fmt.Errorf("%s breaker: %v: %w", exchange, err, domain.ErrQuoteSourceError)
	}
	if err != nil {
		return domain.Quote{}, err
	}
	return out.(domain.Quote), nil
}

// State exposes the breaker state for an exchange, mainly for readiness checks.
func (p *CircuitBreaker) State(exchange domain.Exchange) gobreaker.State {
	if b, ok := p.breakers[exchange]; ok {
		return b.State()
	}
	return gobreaker.StateClosed
}
