package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"
	"arbitrage-detector/internal/infrastructure/httpx"

	"github.com/shopspring/decimal"
)

const (
	yahooChartPath = "/v8/finance/chart/"
)

// YahooChartProvider reads the last traded price from the Yahoo Finance chart
// endpoint. Each exchange is addressed by a ticker suffix (".NS", ".BO").
type YahooChartProvider struct {
	BaseURL  string
	Suffixes map[domain.Exchange]string
	// MaxAge marks quotes older than this as invalid; zero disables the check.
	MaxAge time.Duration
	Client *httpx.Client
	Now    func() time.Time
}

var _ application.QuoteProvider = (*YahooChartProvider)(nil)

type chartResp struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string          `json:"symbol"`
				RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
				RegularMarketTime  int64           `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *YahooChartProvider) Symbol(instrument domain.Instrument, exchange domain.Exchange) (string, error) {
	if instrument == "" {
		return "", fmt.Errorf("yahoo: empty instrument")
	}
	suffix, ok := p.Suffixes[exchange]
	if !ok {
		return "", fmt.Errorf("yahoo: no suffix configured for exchange %q", exchange)
	}
	return string(instrument) + suffix, nil
}

func (p *YahooChartProvider) GetQuote(ctx context.Context, instrument domain.Instrument, exchange domain.Exchange) (domain.Quote, error) {
	if p.BaseURL == "" {
		return domain.Quote{}, fmt.Errorf("%w: yahoo: missing base url", domain.ErrQuoteSourceError)
	}
	symbol, err := p.Symbol(instrument, exchange)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %v", domain.ErrQuoteSourceError, err)
	}

	u := strings.TrimRight(p.BaseURL, "/") + yahooChartPath + url.PathEscape(symbol) + "?interval=1d&range=1d"
	client := p.Client
	if client == nil {
		client = &httpx.Client{}
	}
	var body chartResp
	if err := client.GetJSON(ctx, u, &body); err != nil {
		return domain.Quote{}, mapErr(ctx, symbol, err)
	}
	if body.Chart.Error != nil {
		if strings.EqualFold(body.Chart.Error.Code, "Not Found") {
			return domain.Quote{}, fmt.Errorf("yahoo %s: %w", symbol, domain.ErrQuoteNotFound)
		}
		return domain.Quote{}, fmt.Errorf("yahoo %s: %s %s: %w", symbol, body.Chart.Error.Code, body.Chart.Error.Description, domain.ErrQuoteSourceError)
	}
	if len(body.Chart.Result) == 0 {
		return domain.Quote{}, fmt.Errorf("yahoo %s: empty result: %w", symbol, domain.ErrQuoteNotFound)
	}

	meta := body.Chart.Result[0].Meta
	if meta.Symbol != "" && !strings.EqualFold(meta.Symbol, symbol) {
		return domain.Quote{}, fmt.Errorf("yahoo %s: answered for %s: %w", symbol, meta.Symbol, domain.ErrQuoteSourceError)
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	asOf := now().UTC()
	if meta.RegularMarketTime > 0 {
		asOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	valid := meta.RegularMarketPrice.IsPositive()
	if p.MaxAge > 0 && now().Sub(asOf) > p.MaxAge {
		valid = false
	}
	return domain.Quote{
		Instrument: instrument,
		Exchange:   exchange,
		Price:      meta.RegularMarketPrice,
		AsOf:       asOf,
		Valid:      valid,
	}, nil
}

func mapErr(ctx context.Context, symbol string, err error) error {
	var se *httpx.StatusError
	var ne net.Error
	switch {
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		return fmt.Errorf("yahoo %s: %w", symbol, domain.ErrQuoteNotFound)
	case errors.As(err, &se):
		return fmt.Errorf("yahoo %s: %v: %w", symbol, se, domain.ErrQuoteSourceError)
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return fmt.Errorf("yahoo %s: %v: %w", symbol, err, domain.ErrQuoteTimeout)
	case errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("yahoo %s: %v: %w", symbol, err, domain.ErrQuoteTimeout)
	default:
		return fmt.Errorf("yahoo %s: %v: %w", symbol, err, domain.ErrQuoteSourceError)
	}
}
