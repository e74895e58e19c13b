package exception

import "github.com/yanun0323/errors"

// Quote resolver errors.
var (
	ErrNoQuoteAvailable = errors.New("quote: all providers and cache exhausted")
	ErrStaleQuote       = errors.New("quote: observed time outside max age")
	ErrInvalidQuote     = errors.New("quote: validation failed")
	ErrProviderCooldown = errors.New("quote: provider in cooldown")
	ErrProviderStatus   = errors.New("quote: unexpected provider status code")
)
