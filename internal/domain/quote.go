package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Quote struct {
	Instrument Instrument
	Exchange   Exchange
	Price      decimal.Decimal
	AsOf       time.Time
	Valid      bool
}

// Usable reports whether the quote can take part in a spread comparison.
func (q Quote) Usable() bool {
	return q.Valid && q.Price.IsPositive()
}

// QuotePair holds both venues' quotes for one instrument.
type QuotePair struct {
	Instrument Instrument
	Primary    Quote
	Secondary  Quote
}

func NewQuotePair(primary, secondary Quote) (QuotePair, error) {
	if primary.Exchange != ExchangePrimary || secondary.Exchange != ExchangeSecondary {
		return QuotePair{}, fmt.Errorf("quote pair: unexpected exchanges %s/%s", primary.Exchange, secondary.Exchange)
	}
	if primary.Instrument != secondary.Instrument {
		return QuotePair{}, fmt.Errorf("quote pair: instrument mismatch %s/%s", primary.Instrument, secondary.Instrument)
	}
	return QuotePair{Instrument: primary.Instrument, Primary: primary, Secondary: secondary}, nil
}
