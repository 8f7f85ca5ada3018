package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"arbitrage-detector/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrRepo = errors.New("repo error")
)

type step struct {
	price   string
	err     error
	hang    bool
	invalid bool
}

func ok(price string) step         { return step{price: price} }
func stale(price string) step      { return step{price: price, invalid: true} }
func fail(err error) step          { return step{err: err} }
func hang() step                   { return step{hang: true} }
func timeoutErr() error            { return fmt.Errorf("upstream: %w", domain.ErrQuoteTimeout) }
func sourceErr() error             { return fmt.Errorf("upstream: %w", domain.ErrQuoteSourceError) }
func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type quoteKey struct {
	inst domain.Instrument
	ex   domain.Exchange
}

// scriptedProvider replays a per-venue script; the last step repeats.
type scriptedProvider struct {
	mu          sync.Mutex
	scripts     map[quoteKey][]step
	calls       map[quoteKey]int
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{scripts: map[quoteKey][]step{}, calls: map[quoteKey]int{}}
}

func (p *scriptedProvider) on(inst domain.Instrument, ex domain.Exchange, steps ...step) *scriptedProvider {
	p.scripts[quoteKey{inst, ex}] = steps
	return p
}

func (p *scriptedProvider) both(inst domain.Instrument, primary, secondary string) *scriptedProvider {
	return p.on(inst, domain.ExchangePrimary, ok(primary)).on(inst, domain.ExchangeSecondary, ok(secondary))
}

func (p *scriptedProvider) callCount(inst domain.Instrument, ex domain.Exchange) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[quoteKey{inst, ex}]
}

func (p *scriptedProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *scriptedProvider) peakInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}

func (p *scriptedProvider) GetQuote(ctx context.Context, inst domain.Instrument, ex domain.Exchange) (domain.Quote, error) {
	p.mu.Lock()
	k := quoteKey{inst, ex}
	n := p.calls[k]
	p.calls[k]++
	steps := p.scripts[k]
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if len(steps) == 0 {
		return domain.Quote{}, fmt.Errorf("%s %s: %w", inst, ex, domain.ErrQuoteNotFound)
	}
	s := steps[len(steps)-1]
	if n < len(steps) {
		s = steps[n]
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return domain.Quote{}, ctx.Err()
		}
	}
	if s.hang {
		<-ctx.Done()
		return domain.Quote{}, ctx.Err()
	}
	if s.err != nil {
		return domain.Quote{}, s.err
	}
	return domain.Quote{
		Instrument: inst,
		Exchange:   ex,
		Price:      dec(s.price),
		AsOf:       time.Now().UTC(),
		Valid:      !s.invalid,
	}, nil
}

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type fakeIDGen struct{ id string }

func (f fakeIDGen) NewID() string { return f.id }

type fakeDetectionRepo struct {
	mu   sync.Mutex
	last *domain.DetectionResult
	err  error
}

func (f *fakeDetectionRepo) Save(_ context.Context, r domain.DetectionResult) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &r
	return nil
}

func (f *fakeDetectionRepo) GetLast(context.Context) (domain.DetectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.DetectionResult{}, f.err
	}
	if f.last == nil {
		return domain.DetectionResult{}, ErrNotFound
	}
	return *f.last, nil
}

type fakeIdem struct{ seen map[string]bool }

func (f *fakeIdem) TryReserve(_ context.Context, k string) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	return true, nil
}

type countingRecorder struct {
	mu       sync.Mutex
	requests map[string]int
	passes   int
}

func (c *countingRecorder) ObserveRequest(_ domain.Exchange, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requests == nil {
		c.requests = map[string]int{}
	}
	c.requests[outcome]++
}

func (c *countingRecorder) ObservePass(domain.DetectionResult, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes++
}
