package model

import (
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model/enum"
	"main/pkg/exception"
)

// Fill is a single simulated trade execution. Fills are append-only: once
// recorded they are never mutated.
type Fill struct {
	Symbol    string    `json:"symbol"`
	Side      enum.Side `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Fee       float64   `json:"fee"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate rejects malformed fills instead of coercing them.
func (f Fill) Validate() error {
	if f.Symbol == "" {
		return errors.Wrap(exception.ErrInvalidFill, "empty symbol")
	}
	if !f.Side.IsAvailable() {
		return errors.Wrap(exception.ErrInvalidFill, "side must be buy or sell").With("side", f.Side)
	}
	if f.Quantity <= 0 {
		return errors.Wrap(exception.ErrInvalidFill, "quantity must be > 0").With("quantity", f.Quantity)
	}
	if f.Price <= 0 {
		return errors.Wrap(exception.ErrInvalidFill, "price must be > 0").With("price", f.Price)
	}
	if f.Fee < 0 {
		return errors.Wrap(exception.ErrInvalidFill, "fee must be >= 0").With("fee", f.Fee)
	}
	if f.Timestamp.IsZero() {
		return errors.Wrap(exception.ErrInvalidFill, "missing timestamp")
	}
	return nil
}

// SignedQuantity is positive for buys and negative for sells.
func (f Fill) SignedQuantity() float64 {
	if f.Side == enum.SideSell {
		return -f.Quantity
	}
	return f.Quantity
}

// Notional is quantity times price, fee excluded.
func (f Fill) Notional() float64 {
	return f.Quantity * f.Price
}
