package domain

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrQuoteNotFound    = errors.New("quote not found")
	ErrQuoteTimeout     = errors.New("quote timeout")
	ErrQuoteSourceError = errors.New("quote source error")

	ErrStaleOrInvalidPrice = errors.New("stale or invalid price")
)

// IsRetryable reports whether a failed quote request may be attempted again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrQuoteTimeout) || errors.Is(err, ErrQuoteSourceError)
}
