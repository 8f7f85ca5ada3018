package provider

import (
	"context"
	"hash/fnv"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"

	"github.com/shopspring/decimal"
)

// Ensure Fake implements application.QuoteProvider.
var _ application.QuoteProvider = (*Fake)(nil)

// Fake quotes a stable price per instrument with a small per-venue skew of up
// to ±MaxSkewBps basis points, so local runs surface a few opportunities.
type Fake struct {
	MaxSkewBps int64
}

func NewFake(maxSkewBps int64) *Fake { return &Fake{MaxSkewBps: maxSkewBps} }

func (f *Fake) GetQuote(ctx context.Context, instrument domain.Instrument, exchange domain.Exchange) (domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, err
	}
	base := decimal.NewFromInt(int64(100 + hash(string(instrument))%1900))
	price := base
	if f.MaxSkewBps > 0 {
		span := 2*f.MaxSkewBps + 1
		bps := int64(hash(string(instrument)+"|"+string(exchange))%uint32(span)) - f.MaxSkewBps
		price = base.Add(base.Mul(decimal.New(bps, -4))).Round(2)
	}
	return domain.Quote{
		Instrument: instrument,
		Exchange:   exchange,
		Price:      price,
		AsOf:       time.Now().UTC(),
		Valid:      true,
	}, nil
}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
