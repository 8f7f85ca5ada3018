package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"
	"arbitrage-detector/internal/infrastructure/memstore"

	"github.com/shopspring/decimal"
)

var _ application.QuoteProvider = (*priceTable)(nil)

// priceTable quotes fixed prices keyed by instrument; missing venues fail
// with a source error.
type priceTable map[domain.Instrument][2]string

func (p priceTable) GetQuote(_ context.Context, inst domain.Instrument, ex domain.Exchange) (domain.Quote, error) {
	prices, ok := p[inst]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrQuoteNotFound, inst)
	}
	raw := prices[0]
	if ex == domain.ExchangeSecondary {
		raw = prices[1]
	}
	if raw == "" {
		return domain.Quote{}, fmt.Errorf("%w: upstream 503", domain.ErrQuoteSourceError)
	}
	return domain.Quote{
		Instrument: inst,
		Exchange:   ex,
		Price:      decimal.RequireFromString(raw),
		AsOf:       time.Now().UTC(),
		Valid:      true,
	}, nil
}

type memIdem struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memIdem) TryReserve(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

type failingRepo struct{}

func (failingRepo) Save(context.Context, domain.DetectionResult) error {
	return errors.New("disk full")
}
func (failingRepo) GetLast(context.Context) (domain.DetectionResult, error) {
	return domain.DetectionResult{}, errors.New("disk full")
}

var testPrices = priceTable{
	"RELIANCE": {"2500", "2512.5"},
	"TCS":      {"3900", "3880"},
	"INFY":     {"1500", "1500.5"},
	"WIPRO":    {"450", ""},
}

var testUniverse = []domain.Instrument{"RELIANCE", "TCS", "INFY", "WIPRO"}

func newTestService(repo application.DetectionRepo) *application.DetectionService {
	det := application.NewDetector(testPrices, application.DetectorConfig{
		OrchestratorConfig: application.OrchestratorConfig{
			MaxInFlight:    4,
			MaxRetries:     1,
			RetryBackoff:   time.Millisecond,
			RequestTimeout: time.Second,
		},
		PassTimeout: 5 * time.Second,
	})
	return application.NewDetectionService(det, repo, &memIdem{}, testUniverse, decimal.RequireFromString("0.5"), nil)
}

func setup() http.Handler {
	srv := NewServer(newTestService(memstore.NewDetectionRepo()))
	srv.SetExchangeLabels(map[domain.Exchange]string{
		domain.ExchangePrimary:   "NSE",
		domain.ExchangeSecondary: "BSE",
	})
	return NewRouter(srv)
}
