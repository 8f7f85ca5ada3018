package provider

import (
	"context"
	"errors"

	"arbitrage-detector/internal/domain"
)

// callerAbort marks a failure caused by the caller giving up or by local
// throttling. It says nothing about venue health.
type callerAbort struct{ err error }

func (e callerAbort) Error() string { return e.err.Error() }
func (e callerAbort) Unwrap() error { return e.err }

func isCallerAbort(err error) bool {
	var ca callerAbort
	return errors.As(err, &ca)
}

// abortedByCaller reports whether ctx ended for a reason other than the
// request's own deadline, which carries domain.ErrQuoteTimeout as its cause.
func abortedByCaller(ctx context.Context) bool {
	return ctx.Err() != nil && !errors.Is(context.Cause(ctx), domain.ErrQuoteTimeout)
}
