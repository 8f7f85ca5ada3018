package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SkippedInstrument struct {
	Instrument Instrument
	Reason     string
}

type DetectionResult struct {
	ID                 string
	Threshold          decimal.Decimal
	Opportunities      []Opportunity
	Attempted          int
	Skipped            int
	SkippedInstruments []SkippedInstrument
	StartedAt          time.Time
	CompletedAt        time.Time
}

type Summary struct {
	Count int
	Mean  decimal.Decimal
	Max   decimal.Decimal
}

// Summary is derived from Opportunities on every call.
func (r DetectionResult) Summary() Summary {
	if len(r.Opportunities) == 0 {
		return Summary{Mean: decimal.Zero, Max: decimal.Zero}
	}
	sum := decimal.Zero
	top := r.Opportunities[0].DifferencePercentage
	for _, o := range r.Opportunities {
		sum = sum.Add(o.DifferencePercentage)
		if o.DifferencePercentage.GreaterThan(top) {
			top = o.DifferencePercentage
		}
	}
	return Summary{
		Count: len(r.Opportunities),
		Mean:  sum.Div(decimal.NewFromInt(int64(len(r.Opportunities)))),
		Max:   top,
	}
}
