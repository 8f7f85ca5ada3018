package application

import (
	"fmt"

	"arbitrage-detector/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidateThreshold accepts strictly positive percentage points.
func ValidateThreshold(threshold decimal.Decimal) error {
	if !threshold.IsPositive() {
		return fmt.Errorf("%w: threshold must be > 0, got %s", domain.ErrInvalidInput, threshold)
	}
	return nil
}

// Evaluate compares both venues of one instrument. It reports ok=false when the
// spread is zero or below threshold, and domain.ErrStaleOrInvalidPrice when
// either quote cannot be compared.
func Evaluate(pair domain.QuotePair, threshold decimal.Decimal) (domain.Opportunity, bool, error) {
	for _, q := range []domain.Quote{pair.Primary, pair.Secondary} {
		if !q.Usable() {
			return domain.Opportunity{}, false, fmt.Errorf("%w: %s %s price=%s valid=%t",
				domain.ErrStaleOrInvalidPrice, q.Exchange, q.Instrument, q.Price, q.Valid)
		}
	}

	buy, sell := pair.Primary, pair.Secondary
	switch pair.Primary.Price.Cmp(pair.Secondary.Price) {
	case 0:
		return domain.Opportunity{}, false, nil
	case 1:
		buy, sell = pair.Secondary, pair.Primary
	}

	diff := sell.Price.Sub(buy.Price)
	pct := diff.Div(buy.Price).Mul(hundred)
	if pct.LessThan(threshold) {
		return domain.Opportunity{}, false, nil
	}
	return domain.Opportunity{
		Instrument:           pair.Instrument,
		BuyExchange:          buy.Exchange,
		SellExchange:         sell.Exchange,
		BuyPrice:             buy.Price,
		SellPrice:            sell.Price,
		PriceDifference:      diff,
		DifferencePercentage: pct,
	}, true, nil
}
