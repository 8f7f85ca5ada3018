package domain

// Exchange is one of the two venues every pass compares.
type Exchange string

const (
	ExchangePrimary   Exchange = "primary"
	ExchangeSecondary Exchange = "secondary"
)

// Exchanges returns both venues, primary first.
func Exchanges() [2]Exchange {
	return [2]Exchange{ExchangePrimary, ExchangeSecondary}
}

func (e Exchange) Valid() bool {
	return e == ExchangePrimary || e == ExchangeSecondary
}

func (e Exchange) String() string { return string(e) }
