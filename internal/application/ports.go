package application

import (
	"context"
	"time"

	"arbitrage-detector/internal/domain"
)

// QuoteProvider fetches one venue's price for one instrument. Implementations
// make a single upstream call, must not retry and must be safe for concurrent use.
// Failures wrap domain.ErrQuoteNotFound, domain.ErrQuoteTimeout or domain.ErrQuoteSourceError.
type QuoteProvider interface {
	GetQuote(ctx context.Context, instrument domain.Instrument, exchange domain.Exchange) (domain.Quote, error)
}

type DetectionRepo interface {
	Save(ctx context.Context, r domain.DetectionResult) error
	GetLast(ctx context.Context) (domain.DetectionResult, error)
}

// Recorder receives pass and request level measurements.
type Recorder interface {
	ObserveRequest(exchange domain.Exchange, outcome string)
	ObservePass(r domain.DetectionResult, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(domain.Exchange, string)            {}
func (nopRecorder) ObservePass(domain.DetectionResult, time.Duration) {}
