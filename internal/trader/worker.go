package trader

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/ledger"
	"main/internal/model"
	"main/internal/ops"
	"main/internal/quote"
	"main/internal/state"
	"main/pkg/exception"
)

// Strategy decides whether to trade a symbol given the current quote and
// book state. Returning false means no order this cycle.
type Strategy interface {
	Decide(symbol string, q model.Quote, pos model.Position, cash float64) (model.Fill, bool)
}

// Config wires the trading worker.
type Config struct {
	Trader   ops.TraderSettings
	Resolver *quote.Resolver
	Ledger   *ledger.Ledger
	Strategy Strategy
	Bus      *bus.Bus
}

// Worker runs the trading cycle: quote, decide, record, recompute risk,
// snapshot. The guardrail pause arrives over the bus and is honored at
// the top of the next cycle.
type Worker struct {
	cfg    Config
	paused atomic.Bool
	now    func() time.Time
}

// New creates a trading worker.
func New(cfg Config) *Worker {
	return &Worker{cfg: cfg, now: time.Now}
}

// Run executes cycles until the context is done. The first cycle fires
// immediately so a restart publishes a fresh snapshot without waiting a
// full interval.
func (w *Worker) Run(ctx context.Context) {
	if w.cfg.Bus != nil {
		go w.cfg.Bus.Run(ctx, w.onSignal)
	}

	w.cycle(ctx)

	ticker := time.NewTicker(w.cfg.Trader.CycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *Worker) onSignal(s bus.Signal) {
	switch s.Kind {
	case bus.KindPauseTrading:
		if w.paused.CompareAndSwap(false, true) {
			logs.Warnf("trader: pausing new orders: %s", s.Reason)
		}
	case bus.KindResumeTrading:
		if w.paused.CompareAndSwap(true, false) {
			logs.Infof("trader: resuming orders")
		}
	}
}

// cycle runs one pass over the configured symbols.
func (w *Worker) cycle(ctx context.Context) {
	now := w.now()
	marks := make(map[string]float64, len(w.cfg.Trader.Symbols))
	quotes := make(map[string]model.Quote, len(w.cfg.Trader.Symbols))

	for _, symbol := range w.cfg.Trader.Symbols {
		q, err := w.cfg.Resolver.GetQuote(ctx, symbol)
		if err != nil {
			if errors.Is(err, exception.ErrNoQuoteAvailable) ||
				errors.Is(err, exception.ErrStaleQuote) ||
				errors.Is(err, exception.ErrProviderCooldown) {
				logs.Warnf("trader: no quote for %s, skipping: %v", symbol, err)
				continue
			}
			logs.Errorf("trader: quote lookup for %s: %v", symbol, err)
			continue
		}
		marks[symbol] = q.Price
		quotes[symbol] = q
	}

	if !w.paused.Load() && w.cfg.Strategy != nil {
		w.trade(ctx, quotes)
	}

	snapshot := w.cfg.Ledger.ComputeRisk(marks, now)
	w.cfg.Ledger.EvaluateGuardrail(snapshot)
	w.writeSnapshot(now, snapshot)
}

func (w *Worker) trade(ctx context.Context, quotes map[string]model.Quote) {
	positions := make(map[string]model.Position)
	for _, pos := range w.cfg.Ledger.Positions() {
		positions[pos.Symbol] = pos
	}

	for _, symbol := range w.cfg.Trader.Symbols {
		q, ok := quotes[symbol]
		if !ok {
			continue
		}
		if q.Divergent {
			logs.Warnf("trader: skipping %s on divergent quote from %s", symbol, q.Source)
			continue
		}
		fill, ok := w.cfg.Strategy.Decide(symbol, q, positions[symbol], w.cfg.Ledger.Cash())
		if !ok {
			continue
		}
		if err := w.cfg.Ledger.RecordFill(ctx, fill); err != nil {
			logs.Errorf("trader: record fill for %s: %v", symbol, err)
		}
	}
}

func (w *Worker) writeSnapshot(now time.Time, risk model.RiskSnapshot) {
	if w.cfg.Trader.SnapshotPath == "" {
		return
	}
	paused, reason := w.cfg.Ledger.Paused()
	snap := state.Build(
		now,
		w.cfg.Ledger.Cash(),
		w.cfg.Ledger.RealizedPnL(),
		w.cfg.Ledger.Positions(),
		risk,
		paused,
		reason,
	)
	if err := state.Write(w.cfg.Trader.SnapshotPath, snap); err != nil {
		logs.Errorf("trader: write snapshot: %v", err)
	}
}
