package quote

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/ops"
	"main/pkg/exception"
)

// syntheticSpreadFraction reconstructs a bid/ask band around sources that
// only report a last price. Half the spread goes to each side.
const syntheticSpreadFraction = 0.0005

// Provider fetches a quote for one symbol from an external source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (model.Quote, error)
}

// BuildProviders constructs the configured provider chain in priority
// order. Providers with a configured but empty credential are skipped so
// a missing key degrades the cascade instead of failing it.
func BuildProviders(cfgs []ops.ResolvedProvider, client *http.Client) ([]Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	ordered := make([]ops.ResolvedProvider, len(cfgs))
	copy(ordered, cfgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	providers := make([]Provider, 0, len(ordered))
	for _, cfg := range ordered {
		if cfg.APIKeyEnv != "" && cfg.APIKey == "" {
			continue
		}
		switch cfg.Kind {
		case "finnhub":
			providers = append(providers, NewFinnhub(cfg, client))
		case "twelvedata":
			providers = append(providers, NewTwelveData(cfg, client))
		case "alphavantage":
			providers = append(providers, NewAlphaVantage(cfg, client))
		default:
			return nil, fmt.Errorf("quote: unknown provider kind %s", cfg.Kind)
		}
	}
	return providers, nil
}

// wireSymbol strips the dash convention used internally ("BTC-USD") down
// to the form the vendor APIs expect.
func wireSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "-", "")
}

// syntheticBand derives bid and ask around a last price.
func syntheticBand(price float64) (bid, ask float64) {
	half := syntheticSpreadFraction / 2
	return price * (1 - half), price * (1 + half)
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrap(exception.ErrProviderStatus, resp.Status)
	}
	return sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out)
}
