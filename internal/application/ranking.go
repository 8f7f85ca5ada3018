package application

import (
	"slices"
	"strings"

	"arbitrage-detector/internal/domain"
)

// Rank orders by difference percentage descending, then instrument ascending.
// The input slice is left untouched.
func Rank(opps []domain.Opportunity) []domain.Opportunity {
	out := slices.Clone(opps)
	if out == nil {
		out = []domain.Opportunity{}
	}
	slices.SortStableFunc(out, func(a, b domain.Opportunity) int {
		if c := b.DifferencePercentage.Cmp(a.DifferencePercentage); c != 0 {
			return c
		}
		return strings.Compare(string(a.Instrument), string(b.Instrument))
	})
	return out
}
