package model

import (
	"time"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// Quote is an immutable validated price observation for one symbol.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observedAt"`

	// Divergent marks a quote whose price disagrees with the previously
	// cached observation from another source beyond the configured
	// threshold. The quote is still usable; callers should log it.
	Divergent bool `json:"divergent,omitempty"`
}

// Age returns how old the quote is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}

// Mid returns the bid/ask midpoint, falling back to the last price.
func (q Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Price
}

// Validate checks price sanity. Bid/ask bounds only apply when both sides
// are present; single-sided sources report zero for the missing side.
func (q Quote) Validate() error {
	if q.Symbol == "" {
		return errors.Wrap(exception.ErrInvalidQuote, "empty symbol")
	}
	if q.Price <= 0 {
		return errors.Wrap(exception.ErrInvalidQuote, "price must be > 0").With("price", q.Price)
	}
	if q.Bid > 0 && q.Ask > 0 {
		if q.Bid > q.Price || q.Price > q.Ask {
			return errors.Wrap(exception.ErrInvalidQuote, "price outside bid/ask band").
				With("band", []float64{q.Bid, q.Price, q.Ask})
		}
	}
	if q.ObservedAt.IsZero() {
		return errors.Wrap(exception.ErrInvalidQuote, "missing observation time")
	}
	return nil
}
