package quote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/ops"
	"main/pkg/exception"
)

const defaultFinnhubBaseURL = "https://finnhub.io/api/v1"

// Finnhub serves last-trade quotes with a synthetic bid/ask band.
type Finnhub struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFinnhub(cfg ops.ResolvedProvider, client *http.Client) *Finnhub {
	base := cfg.BaseURL
	if base == "" {
		base = defaultFinnhubBaseURL
	}
	return &Finnhub{
		name:    cfg.Name,
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (f *Finnhub) Name() string { return f.name }

func (f *Finnhub) Fetch(ctx context.Context, symbol string) (model.Quote, error) {
	query := url.Values{}
	query.Set("symbol", wireSymbol(symbol))
	query.Set("token", f.apiKey)

	// Payload fields: c current, h high, l low, o open, pc previous close.
	var payload struct {
		Current float64 `json:"c"`
	}
	if err := getJSON(ctx, f.client, f.baseURL+"/quote?"+query.Encode(), &payload); err != nil {
		return model.Quote{}, err
	}
	if payload.Current <= 0 {
		return model.Quote{}, errors.Wrap(exception.ErrInvalidQuote, "non-positive last price").
			With("price", payload.Current)
	}

	bid, ask := syntheticBand(payload.Current)
	quote := model.Quote{
		Symbol:     symbol,
		Price:      payload.Current,
		Bid:        bid,
		Ask:        ask,
		Source:     f.name,
		ObservedAt: time.Now().UTC(),
	}
	return quote, quote.Validate()
}
