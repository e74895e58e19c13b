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

const defaultTwelveDataBaseURL = "https://api.twelvedata.com"

// TwelveData serves last prices as decimal strings.
type TwelveData struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewTwelveData(cfg ops.ResolvedProvider, client *http.Client) *TwelveData {
	base := cfg.BaseURL
	if base == "" {
		base = defaultTwelveDataBaseURL
	}
	return &TwelveData{
		name:    cfg.Name,
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (t *TwelveData) Name() string { return t.name }

func (t *TwelveData) Fetch(ctx context.Context, symbol string) (model.Quote, error) {
	query := url.Values{}
	query.Set("symbol", wireSymbol(symbol))
	query.Set("apikey", t.apiKey)

	var payload struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := getJSON(ctx, t.client, t.baseURL+"/price?"+query.Encode(), &payload); err != nil {
		return model.Quote{}, err
	}
	price, err := strconv.ParseFloat(payload.Price.String(), 64)
	if err != nil || price <= 0 {
		return model.Quote{}, errors.Wrap(exception.ErrInvalidQuote, "bad price field").
			With("price", payload.Price.String())
	}

	bid, ask := syntheticBand(price)
	quote := model.Quote{
		Symbol:     symbol,
		Price:      price,
		Bid:        bid,
		Ask:        ask,
		Source:     t.name,
		ObservedAt: time.Now().UTC(),
	}
	return quote, quote.Validate()
}
