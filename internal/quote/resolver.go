package quote

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/pkg/backoff"
	"main/pkg/exception"
)

// Resolver serves validated quotes from a cascading provider chain with
// a freshness cache. Providers that keep failing are put on an
// exponential cooldown so one dead vendor cannot slow every lookup.
//
// The mutex guards the cache and health maps only; network calls run
// unlocked, so concurrent lookups for different symbols do not serialize
// behind a slow provider.
type Resolver struct {
	cfg       ops.QuoteSettings
	providers []Provider
	metrics   *obs.Metrics
	cooldown  backoff.Backoff
	now       func() time.Time

	mu     sync.Mutex
	cache  map[string]model.Quote
	health map[string]*providerHealth
}

type providerHealth struct {
	consecutiveFailures int
	cooldownUntil       time.Time
	lastError           string
	lastSuccess         time.Time
	successes           uint64
	failures            uint64
}

// ProviderStatus is a point-in-time view of one provider's health.
type ProviderStatus struct {
	Name                string    `json:"name"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	CooldownUntil       time.Time `json:"cooldownUntil,omitzero"`
	LastError           string    `json:"lastError,omitempty"`
	LastSuccess         time.Time `json:"lastSuccess,omitzero"`
	Successes           uint64    `json:"successes"`
	Failures            uint64    `json:"failures"`
}

// NewResolver builds a resolver over the given provider chain.
func NewResolver(cfg ops.QuoteSettings, providers []Provider, metrics *obs.Metrics) *Resolver {
	return &Resolver{
		cfg:       cfg,
		providers: providers,
		metrics:   metrics,
		cooldown: backoff.Backoff{
			Min:    cfg.CooldownMin,
			Max:    cfg.CooldownMax,
			Factor: 2,
			Jitter: 0.2,
		},
		now:    time.Now,
		cache:  make(map[string]model.Quote),
		health: make(map[string]*providerHealth),
	}
}

// GetQuote returns a quote for symbol no older than the configured
// freshness window, walking the provider chain on a cache miss. When
// every provider fails, a cached quote within the stale tolerance is
// returned as a degraded answer; otherwise ErrNoQuoteAvailable, or
// ErrProviderCooldown when the whole chain is cooling down.
func (r *Resolver) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	now := r.now()

	r.mu.Lock()
	if cached, ok := r.cache[symbol]; ok && cached.Age(now) <= r.cfg.Freshness {
		r.mu.Unlock()
		r.metrics.IncCacheHit()
		return cached, nil
	}
	r.mu.Unlock()

	attempted := false
	for _, provider := range r.providers {
		if !r.attemptAllowed(provider.Name(), now) {
			continue
		}
		attempted = true

		fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		start := r.now()
		fetched, err := provider.Fetch(fetchCtx, symbol)
		cancel()
		elapsed := r.now().Sub(start)

		// A provider handing back an observation older than the
		// freshness window counts as a failure, not an answer.
		if err == nil && fetched.Age(now) > r.cfg.Freshness {
			err = errors.Wrap(exception.ErrStaleQuote, provider.Name())
		}

		if err != nil {
			r.metrics.ObserveQuoteFetch(provider.Name(), "error", elapsed)
			r.recordFailure(provider.Name(), err)
			logs.Warnf("quote: %s failed for %s: %v", provider.Name(), symbol, err)
			continue
		}

		r.metrics.ObserveQuoteFetch(provider.Name(), "ok", elapsed)
		quote := r.accept(symbol, fetched)
		return quote, nil
	}

	// Degraded path: relax the freshness window up to the stale
	// tolerance before reporting an outage.
	r.mu.Lock()
	cached, ok := r.cache[symbol]
	r.mu.Unlock()
	if ok && cached.Age(now) <= r.cfg.StaleTolerance {
		r.metrics.IncStaleFallback()
		logs.Warnf("quote: serving stale %s from %s, age %s", symbol, cached.Source, cached.Age(now).Truncate(time.Second))
		return cached, nil
	}
	if ok {
		return model.Quote{}, exception.ErrStaleQuote
	}
	if !attempted && len(r.providers) > 0 {
		return model.Quote{}, exception.ErrProviderCooldown
	}
	return model.Quote{}, exception.ErrNoQuoteAvailable
}

// Invalidate drops the cached quote for symbol, forcing the next lookup
// to hit the provider chain.
func (r *Resolver) Invalidate(symbol string) {
	r.mu.Lock()
	delete(r.cache, symbol)
	r.mu.Unlock()
}

// Providers reports the health of every provider in chain order.
func (r *Resolver) Providers() []ProviderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]ProviderStatus, 0, len(r.providers))
	for _, provider := range r.providers {
		status := ProviderStatus{Name: provider.Name()}
		if h, ok := r.health[provider.Name()]; ok {
			status.ConsecutiveFailures = h.consecutiveFailures
			status.CooldownUntil = h.cooldownUntil
			status.LastError = h.lastError
			status.LastSuccess = h.lastSuccess
			status.Successes = h.successes
			status.Failures = h.failures
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (r *Resolver) attemptAllowed(name string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[name]
	if !ok {
		return true
	}
	return !now.Before(h.cooldownUntil)
}

func (r *Resolver) recordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.healthLocked(name)
	h.consecutiveFailures++
	h.failures++
	h.lastError = err.Error()
	if h.consecutiveFailures >= r.cfg.FailureThreshold {
		attempt := h.consecutiveFailures - r.cfg.FailureThreshold
		h.cooldownUntil = r.now().Add(r.cooldown.Next(attempt))
	}
}

// accept records a successful fetch, flags divergence against the prior
// cached observation, and updates the cache.
func (r *Resolver) accept(symbol string, quote model.Quote) model.Quote {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.healthLocked(quote.Source)
	h.consecutiveFailures = 0
	h.cooldownUntil = time.Time{}
	h.lastError = ""
	h.lastSuccess = r.now()
	h.successes++

	if prev, ok := r.cache[symbol]; ok && prev.Source != quote.Source && prev.Price > 0 {
		deviation := math.Abs(quote.Price-prev.Price) / prev.Price
		if deviation > r.cfg.DivergenceFraction {
			quote.Divergent = true
			logs.Warnf("quote: %s diverges %.2f%% between %s and %s", symbol, deviation*100, prev.Source, quote.Source)
		}
	}

	r.cache[symbol] = quote
	return quote
}

func (r *Resolver) healthLocked(name string) *providerHealth {
	h, ok := r.health[name]
	if !ok {
		h = &providerHealth{}
		r.health[name] = h
	}
	return h
}
