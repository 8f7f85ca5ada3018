package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"arbitrage-detector/internal/domain"

	"github.com/stretchr/testify/require"
)

func fastConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxInFlight:       4,
		MaxRetries:        1,
		RetryBackoff:      2 * time.Millisecond,
		RequestTimeout:    50 * time.Millisecond,
		InstrumentTimeout: time.Second,
	}
}

func TestFetchAll_PairsBothVenues(t *testing.T) {
	t.Parallel()
	p := newScriptedProvider().both("ABC", "100.00", "102.00")
	o := NewFetchOrchestrator(p, fastConfig(), nil, nil)

	out := o.FetchAll(context.Background(), []domain.Instrument{"ABC"})
	require.Len(t, out, 1)
	require.True(t, out[0].OK)
	require.Equal(t, domain.Instrument("ABC"), out[0].Pair.Instrument)
	require.True(t, out[0].Pair.Primary.Price.Equal(dec("100")))
	require.True(t, out[0].Pair.Secondary.Price.Equal(dec("102")))
}

func TestFetchAll_RetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()
	p := newScriptedProvider().
		on("ABC", domain.ExchangePrimary, fail(sourceErr()), ok("10")).
		on("ABC", domain.ExchangeSecondary, ok("11"))
	rec := &countingRecorder{}
	o := NewFetchOrchestrator(p, fastConfig(), nil, rec)

	out := o.FetchAll(context.Background(), []domain.Instrument{"ABC"})
	require.True(t, out[0].OK)
	require.Equal(t, 2, p.callCount("ABC", domain.ExchangePrimary))
	require.Equal(t, 1, p.callCount("ABC", domain.ExchangeSecondary))
	require.Equal(t, 1, rec.requests["retrying"])
	require.Equal(t, 2, rec.requests["succeeded"])
}

func TestFetchAll_SecondFailureSkipsOnlyThatVenue(t *testing.T) {
	t.Parallel()
	p := newScriptedProvider().
		on("XYZ", domain.ExchangePrimary, ok("50")).
		on("XYZ", domain.ExchangeSecondary, hang())
	o := NewFetchOrchestrator(p, fastConfig(), nil, nil)

	out := o.FetchAll(context.Background(), []domain.Instrument{"XYZ"})
	require.False(t, out[0].OK)
	require.Len(t, out[0].Failures, 1)
	f := out[0].Failures[0]
	require.Equal(t, domain.ExchangeSecondary, f.Exchange)
	require.Equal(t, 2, f.Attempts)
	require.ErrorIs(t, f.Err, domain.ErrQuoteTimeout)
	require.Equal(t, 1, p.callCount("XYZ", domain.ExchangePrimary))
	require.Equal(t, 2, p.callCount("XYZ", domain.ExchangeSecondary))
	require.Contains(t, out[0].Reason(), "secondary")
}

func TestFetchAll_NotFoundIsNotRetried(t *testing.T) {
	t.Parallel()
	p := newScriptedProvider().on("ABC", domain.ExchangePrimary, ok("1"))
	o := NewFetchOrchestrator(p, fastConfig(), nil, nil)

	out := o.FetchAll(context.Background(), []domain.Instrument{"ABC"})
	require.False(t, out[0].OK)
	require.ErrorIs(t, out[0].Failures[0].Err, domain.ErrQuoteNotFound)
	require.Equal(t, 1, p.callCount("ABC", domain.ExchangeSecondary))
}

func TestFetchAll_ZeroRetries(t *testing.T) {
	t.Parallel()
	p := newScriptedProvider().
		on("ABC", domain.ExchangePrimary, fail(timeoutErr()), ok("1")).
		on("ABC", domain.ExchangeSecondary, ok("1"))
	cfg := fastConfig()
	cfg.MaxRetries = 0
	o := NewFetchOrchestrator(p, cfg, nil, nil)

	out := o.FetchAll(context.Background(), []domain.Instrument{"ABC"})
	require.False(t, out[0].OK)
	require.Equal(t, 1, p.callCount("ABC", domain.ExchangePrimary))
}

func TestFetchAll_RespectsInFlightLimit(t *testing.T) {
	t.Parallel()
	p := newScriptedProvider()
	p.delay = 5 * time.Millisecond
	var instruments []domain.Instrument
	for i := 0; i < 30; i++ {
		inst := domain.Instrument(fmt.Sprintf("T%02d", i))
		instruments = append(instruments, inst)
		p.both(inst, "10", "10.5")
	}
	cfg := fastConfig()
	cfg.MaxInFlight = 3
	o := NewFetchOrchestrator(p, cfg, nil, nil)

	out := o.FetchAll(context.Background(), instruments)
	require.Len(t, out, 30)
	for i, r := range out {
		require.True(t, r.OK)
		require.Equal(t, instruments[i], r.Instrument, "outcomes keep input order")
	}
	require.LessOrEqual(t, p.peakInFlight(), 3)
	require.Equal(t, 60, p.totalCalls())
}

func TestFetchAll_InstrumentDeadline(t *testing.T) {
	t.Parallel()
	p := newScriptedProvider().
		on("SLOW", domain.ExchangePrimary, hang()).
		on("SLOW", domain.ExchangeSecondary, hang())
	cfg := fastConfig()
	cfg.RequestTimeout = 5 * time.Second
	cfg.InstrumentTimeout = 30 * time.Millisecond
	o := NewFetchOrchestrator(p, cfg, nil, nil)

	start := time.Now()
	out := o.FetchAll(context.Background(), []domain.Instrument{"SLOW"})
	require.Less(t, time.Since(start), time.Second)
	require.False(t, out[0].OK)
	require.Len(t, out[0].Failures, 2)
	for _, f := range out[0].Failures {
		require.ErrorIs(t, f.Err, domain.ErrQuoteTimeout)
	}
}

// contextDeafProvider never returns until released, regardless of ctx.
type contextDeafProvider struct{ release chan struct{} }

func (p *contextDeafProvider) GetQuote(context.Context, domain.Instrument, domain.Exchange) (domain.Quote, error) {
	<-p.release
	return domain.Quote{}, domain.ErrQuoteSourceError
}

func TestFetchAll_ProviderIgnoringContextStillTimesOut(t *testing.T) {
	t.Parallel()
	p := &contextDeafProvider{release: make(chan struct{})}
	t.Cleanup(func() { close(p.release) })
	cfg := fastConfig()
	cfg.RequestTimeout = 10 * time.Millisecond
	o := NewFetchOrchestrator(p, cfg, nil, nil)

	start := time.Now()
	out := o.FetchAll(context.Background(), []domain.Instrument{"ABC"})
	require.Less(t, time.Since(start), time.Second)
	require.False(t, out[0].OK)
	require.ErrorIs(t, out[0].Failures[0].Err, domain.ErrQuoteTimeout)
}

// liveCountingProvider ignores ctx and counts calls that have not returned yet.
type liveCountingProvider struct {
	mu      sync.Mutex
	live    int
	peak    int
	release chan struct{}
}

func (p *liveCountingProvider) GetQuote(context.Context, domain.Instrument, domain.Exchange) (domain.Quote, error) {
	p.mu.Lock()
	p.live++
	if p.live > p.peak {
		p.peak = p.live
	}
	p.mu.Unlock()
	<-p.release
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
	return domain.Quote{}, domain.ErrQuoteSourceError
}

func TestFetchAll_AbandonedCallsKeepTheirSlot(t *testing.T) {
	t.Parallel()
	p := &liveCountingProvider{release: make(chan struct{})}
	cfg := fastConfig()
	cfg.MaxInFlight = 2
	cfg.RequestTimeout = 10 * time.Millisecond
	cfg.InstrumentTimeout = 100 * time.Millisecond
	o := NewFetchOrchestrator(p, cfg, nil, nil)

	out := o.FetchAll(context.Background(), []domain.Instrument{"A", "B", "C"})
	close(p.release)
	for _, r := range out {
		require.False(t, r.OK)
		require.ErrorIs(t, r.Failures[0].Err, domain.ErrQuoteTimeout)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	require.LessOrEqual(t, p.peak, 2, "timed-out calls still count against MaxInFlight")
}

type wrongInstrumentProvider struct{}

func (wrongInstrumentProvider) GetQuote(_ context.Context, _ domain.Instrument, ex domain.Exchange) (domain.Quote, error) {
	return domain.Quote{Instrument: "OTHER", Exchange: ex, Price: dec("1"), Valid: true}, nil
}

func TestFetchAll_RejectsQuoteForAnotherInstrument(t *testing.T) {
	t.Parallel()
	o := NewFetchOrchestrator(wrongInstrumentProvider{}, fastConfig(), nil, nil)

	out := o.FetchAll(context.Background(), []domain.Instrument{"ABC"})
	require.False(t, out[0].OK)
	require.ErrorIs(t, out[0].Failures[0].Err, domain.ErrQuoteSourceError)
}

func TestQuoteRequest_StateMachine(t *testing.T) {
	r := newQuoteRequest("ABC", domain.ExchangePrimary)
	require.Equal(t, "requested", r.state.String())

	require.True(t, r.fail(timeoutErr(), time.Millisecond))
	require.Equal(t, stateRetrying, r.state)
	require.False(t, r.done())

	r.succeed(domain.Quote{Instrument: "ABC"})
	require.Equal(t, stateSucceeded, r.state)
	require.True(t, r.done())
	require.NoError(t, r.err)

	r2 := newQuoteRequest("ABC", domain.ExchangeSecondary)
	require.False(t, r2.fail(fmt.Errorf("x: %w", domain.ErrQuoteNotFound), time.Millisecond))
	require.Equal(t, "skipped", r2.state.String())
}
