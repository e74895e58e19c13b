package quote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/ops"
	"main/pkg/exception"
)

const defaultAlphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantage serves the GLOBAL_QUOTE endpoint. The free tier throttles
// aggressively; throttle responses come back 200 with a Note field, so
// they are mapped to errors here to let the cascade move on.
type AlphaVantage struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAlphaVantage(cfg ops.ResolvedProvider, client *http.Client) *AlphaVantage {
	base := cfg.BaseURL
	if base == "" {
		base = defaultAlphaVantageBaseURL
	}
	return &AlphaVantage{
		name:    cfg.Name,
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (a *AlphaVantage) Name() string { return a.name }

func (a *AlphaVantage) Fetch(ctx context.Context, symbol string) (model.Quote, error) {
	query := url.Values{}
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", wireSymbol(symbol))
	query.Set("apikey", a.apiKey)

	var payload struct {
		GlobalQuote struct {
			Price decimal.Decimal `json:"05. price"`
		} `json:"Global Quote"`
		Note        string `json:"Note"`
		Information string `json:"Information"`
	}
	if err := getJSON(ctx, a.client, a.baseURL+"/query?"+query.Encode(), &payload); err != nil {
		return model.Quote{}, err
	}
	if payload.Note != "" || payload.Information != "" {
		return model.Quote{}, errors.Wrap(exception.ErrProviderStatus, "throttled")
	}
	price, err := strconv.ParseFloat(payload.GlobalQuote.Price.String(), 64)
	if err != nil || price <= 0 {
		return model.Quote{}, errors.Wrap(exception.ErrInvalidQuote, "bad price field").
			With("price", payload.GlobalQuote.Price.String())
	}

	bid, ask := syntheticBand(price)
	quote := model.Quote{
		Symbol:     symbol,
		Price:      price,
		Bid:        bid,
		Ask:        ask,
		Source:     a.name,
		ObservedAt: time.Now().UTC(),
	}
	return quote, quote.Validate()
}
