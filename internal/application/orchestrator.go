package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arbitrage-detector/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type OrchestratorConfig struct {
	MaxInFlight       int
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestTimeout    time.Duration
	InstrumentTimeout time.Duration
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 8
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 3 * time.Second
	}
	if c.InstrumentTimeout <= 0 {
		c.InstrumentTimeout = 10 * time.Second
	}
	return c
}

// RequestFailure explains why one venue's quote was abandoned.
type RequestFailure struct {
	Exchange domain.Exchange
	Attempts int
	Err      error
}

// FetchOutcome is the resolved state of one instrument: either a pair or failures.
type FetchOutcome struct {
	Instrument domain.Instrument
	Pair       domain.QuotePair
	OK         bool
	Failures   []RequestFailure
}

func (o FetchOutcome) Reason() string {
	if o.OK || len(o.Failures) == 0 {
		return ""
	}
	f := o.Failures[0]
	if f.Exchange == "" {
		return f.Err.Error()
	}
	return fmt.Sprintf("%s: %v", f.Exchange, f.Err)
}

// FetchOrchestrator drives quote acquisition for a whole instrument universe.
// The in-flight limiter is shared by every pass run through the same orchestrator.
type FetchOrchestrator struct {
	provider QuoteProvider
	cfg      OrchestratorConfig
	sem      *semaphore.Weighted
	log      *zap.Logger
	rec      Recorder
}

func NewFetchOrchestrator(provider QuoteProvider, cfg OrchestratorConfig, log *zap.Logger, rec Recorder) *FetchOrchestrator {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &FetchOrchestrator{
		provider: provider,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		log:      log,
		rec:      rec,
	}
}

// FetchAll resolves every instrument and returns outcomes in input order.
// It returns only once each instrument has a pair or has been skipped.
func (o *FetchOrchestrator) FetchAll(ctx context.Context, instruments []domain.Instrument) []FetchOutcome {
	outcomes := make([]FetchOutcome, len(instruments))
	var g errgroup.Group
	// Each admitted instrument holds at most two requests.
	g.SetLimit((o.cfg.MaxInFlight + 1) / 2)
	for i, inst := range instruments {
		i, inst := i, inst
		g.Go(func() error {
			outcomes[i] = o.fetchInstrument(ctx, inst)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *FetchOrchestrator) fetchInstrument(ctx context.Context, inst domain.Instrument) FetchOutcome {
	ictx, cancel := context.WithTimeout(ctx, o.cfg.InstrumentTimeout)
	defer cancel()

	exchanges := domain.Exchanges()
	var reqs [2]*quoteRequest
	var g errgroup.Group
	for idx, ex := range exchanges {
		r := newQuoteRequest(inst, ex)
		reqs[idx] = r
		g.Go(func() error {
			o.drive(ictx, r)
			return nil
		})
	}
	_ = g.Wait()

	out := FetchOutcome{Instrument: inst}
	for _, r := range reqs {
		if r.state != stateSucceeded {
			out.Failures = append(out.Failures, RequestFailure{Exchange: r.exchange, Attempts: r.attempts, Err: r.err})
		}
	}
	if len(out.Failures) > 0 {
		return out
	}
	pair, err := domain.NewQuotePair(reqs[0].quote, reqs[1].quote)
	if err != nil {
		out.Failures = append(out.Failures, RequestFailure{Err: fmt.Errorf("%w: %v", domain.ErrQuoteSourceError, err)})
		return out
	}
	out.Pair, out.OK = pair, true
	return out
}

func (o *FetchOrchestrator) drive(ctx context.Context, r *quoteRequest) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.cfg.RetryBackoff), uint64(o.cfg.MaxRetries)),
		ctx,
	)
	log := o.log.With(zap.String("instrument", r.instrument.String()), zap.String("exchange", r.exchange.String()))

	for !r.done() {
		q, err := o.attempt(ctx, r)
		if err == nil {
			r.succeed(q)
			o.rec.ObserveRequest(r.exchange, stateSucceeded.String())
			return
		}
		wait := policy.NextBackOff()
		if !r.fail(err, wait) {
			log.Debug("fetch.request_skipped", zap.Int("attempts", r.attempts), zap.Error(err))
			o.rec.ObserveRequest(r.exchange, stateSkipped.String())
			return
		}
		log.Debug("fetch.request_retrying", zap.Int("attempts", r.attempts), zap.Duration("wait", wait), zap.Error(err))
		o.rec.ObserveRequest(r.exchange, stateRetrying.String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.abandon(classify(ctx, ctx.Err()))
			o.rec.ObserveRequest(r.exchange, stateSkipped.String())
			return
		case <-timer.C:
		}
	}
}

type attemptResult struct {
	quote domain.Quote
	err   error
}

func (o *FetchOrchestrator) attempt(ctx context.Context, r *quoteRequest) (domain.Quote, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return domain.Quote{}, classify(ctx, err)
	}
	r.attempts++

	// The cause tells decorators this deadline is the venue's own, unlike a
	// cancelled or expired pass.
	actx, cancel := context.WithTimeoutCause(ctx, o.cfg.RequestTimeout, domain.ErrQuoteTimeout)
	defer cancel()

	// The provider is untrusted for latency; a call that ignores its context
	// still cannot hold the request past its timeout. Its slot stays taken
	// until the call really returns, so MaxInFlight bounds live upstream calls.
	ch := make(chan attemptResult, 1)
	go func() {
		defer o.sem.Release(1)
		q, err := o.provider.GetQuote(actx, r.instrument, r.exchange)
		ch <- attemptResult{quote: q, err: err}
	}()

	var res attemptResult
	select {
	case res = <-ch:
	case <-actx.Done():
		return domain.Quote{}, classify(actx, actx.Err())
	}
	if res.err != nil {
		return domain.Quote{}, classify(actx, res.err)
	}
	if res.quote.Instrument != r.instrument || res.quote.Exchange != r.exchange {
		return domain.Quote{}, fmt.Errorf("%w: provider answered for %s/%s", domain.ErrQuoteSourceError, res.quote.Instrument, res.quote.Exchange)
	}
	return res.quote, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrQuoteNotFound),
		errors.Is(err, domain.ErrQuoteTimeout),
		errors.Is(err, domain.ErrQuoteSourceError):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrQuoteTimeout, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrQuoteSourceError, err)
	}
}
