package application

import (
	"time"

	"arbitrage-detector/internal/domain"

	"github.com/cenkalti/backoff/v4"
)

// requestState tracks one quote request: Requested -> Retrying -> Succeeded | Skipped.
type requestState int

const (
	stateRequested requestState = iota
	stateRetrying
	stateSucceeded
	stateSkipped
)

func (s requestState) String() string {
	switch s {
	case stateRequested:
		return "requested"
	case stateRetrying:
		return "retrying"
	case stateSucceeded:
		return "succeeded"
	default:
		return "skipped"
	}
}

type quoteRequest struct {
	instrument domain.Instrument
	exchange   domain.Exchange
	state      requestState
	attempts   int
	quote      domain.Quote
	err        error
}

func newQuoteRequest(instrument domain.Instrument, exchange domain.Exchange) *quoteRequest {
	return &quoteRequest{instrument: instrument, exchange: exchange, state: stateRequested}
}

func (r *quoteRequest) done() bool {
	return r.state == stateSucceeded || r.state == stateSkipped
}

func (r *quoteRequest) succeed(q domain.Quote) {
	r.quote, r.err = q, nil
	r.state = stateSucceeded
}

// fail records a failed attempt. next is the delay the retry policy grants;
// backoff.Stop or a non-retryable error ends the request as skipped.
func (r *quoteRequest) fail(err error, next time.Duration) bool {
	r.err = err
	if next == backoff.Stop || !domain.IsRetryable(err) {
		r.state = stateSkipped
		return false
	}
	r.state = stateRetrying
	return true
}

// abandon ends a request whose deadline expired while waiting to retry.
func (r *quoteRequest) abandon(err error) {
	if r.err == nil {
		r.err = err
	}
	r.state = stateSkipped
}
