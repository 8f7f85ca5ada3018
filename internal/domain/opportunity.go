package domain

import "github.com/shopspring/decimal"

// Opportunity proposes buying on the cheaper venue and selling on the dearer one.
type Opportunity struct {
	Instrument           Instrument      `json:"instrument"`
	BuyExchange          Exchange        `json:"buy_exchange"`
	SellExchange         Exchange        `json:"sell_exchange"`
	BuyPrice             decimal.Decimal `json:"buy_price"`
	SellPrice            decimal.Decimal `json:"sell_price"`
	PriceDifference      decimal.Decimal `json:"price_difference"`
	DifferencePercentage decimal.Decimal `json:"difference_percentage"`
}
