package ledger

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/journal"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/ops"
	"main/pkg/exception"
)

const quantityEpsilon = 1e-9

// Config wires the ledger's collaborators. Journal, Store, Bus, and
// Metrics are all optional; a nil collaborator disables that concern
// without changing the accounting.
type Config struct {
	Risk    ops.RiskConfig
	Journal *journal.Writer
	Store   *Store
	Bus     *bus.Bus
	Metrics *obs.Metrics
}

// Ledger is the append-only book of record for simulated trading. Fills
// mutate cash and positions under one lock; everything derived (equity,
// risk, guardrail state) is recomputed from the fill history rather than
// patched incrementally.
type Ledger struct {
	cfg Config

	mu          sync.RWMutex
	fills       []model.Fill
	positions   map[string]*model.Position
	cash        float64
	realized    float64
	paused      bool
	pauseReason string
	riskHistory []model.RiskSnapshot
}

// New creates a ledger seeded with the configured starting cash.
func New(cfg Config) *Ledger {
	return &Ledger{
		cfg:       cfg,
		positions: make(map[string]*model.Position),
		cash:      cfg.Risk.StartingCash,
	}
}

// Restore replays previously journaled fills into a fresh ledger. The
// fills must be in record order; invalid entries fail the restore since
// a partially applied book is worse than none.
func Restore(cfg Config, fills []model.Fill) (*Ledger, error) {
	l := New(cfg)
	for i, fill := range fills {
		if err := l.apply(fill); err != nil {
			return nil, errors.Wrap(err, "restore").With("index", i)
		}
	}
	return l, nil
}

// RecordFill validates and applies one fill, then journals and announces
// it. Journal and mirror failures are reported but never roll back the
// in-memory book; the fill already happened.
func (l *Ledger) RecordFill(ctx context.Context, fill model.Fill) error {
	if err := fill.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	if err := l.applyLocked(fill); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	l.cfg.Metrics.IncFillRecorded()

	if l.cfg.Journal != nil {
		if err := l.cfg.Journal.TryAppend(fill); err != nil {
			l.cfg.Metrics.IncJournalDrop()
			logs.Errorf("ledger: journal append failed: %v", err)
		}
	}
	if l.cfg.Store != nil {
		if err := l.cfg.Store.SaveFill(ctx, fill); err != nil {
			logs.Warnf("ledger: postgres mirror failed: %v", err)
		}
	}
	if l.cfg.Bus != nil {
		err := l.cfg.Bus.TryPublish(bus.Signal{
			Kind:   bus.KindFillRecorded,
			Symbol: fill.Symbol,
			At:     fill.Timestamp,
		})
		if err != nil {
			l.cfg.Metrics.IncBusDrop()
		}
	}
	return nil
}

func (l *Ledger) apply(fill model.Fill) error {
	if err := fill.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyLocked(fill)
}

// applyLocked runs the accounting. Buys fold into the weighted average
// cost; sells realize PnL against it and release the average when the
// position empties.
func (l *Ledger) applyLocked(fill model.Fill) error {
	pos, ok := l.positions[fill.Symbol]
	if !ok {
		pos = &model.Position{Symbol: fill.Symbol}
	}

	switch fill.Side {
	case enum.SideBuy:
		total := pos.Quantity + fill.Quantity
		pos.AverageCost = (pos.Quantity*pos.AverageCost + fill.Notional()) / total
		pos.Quantity = total
		l.cash -= fill.Notional() + fill.Fee
	case enum.SideSell:
		if fill.Quantity > pos.Quantity+quantityEpsilon {
			return errors.Wrap(exception.ErrInvalidFill, "sell exceeds position").
				With("have", pos.Quantity)
		}
		l.realized += (fill.Price-pos.AverageCost)*fill.Quantity - fill.Fee
		l.cash += fill.Notional() - fill.Fee
		pos.Quantity -= fill.Quantity
		if math.Abs(pos.Quantity) <= quantityEpsilon {
			delete(l.positions, fill.Symbol)
			l.fills = append(l.fills, fill)
			return nil
		}
	}

	l.positions[fill.Symbol] = pos
	l.fills = append(l.fills, fill)
	return nil
}

// Fills returns a copy of the fill history in record order.
func (l *Ledger) Fills() []model.Fill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// Positions returns a copy of the open positions.
func (l *Ledger) Positions() []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// RealizedPnL returns cumulative realized profit net of fees.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realized
}

// Equity marks the book with the given prices. A symbol missing from
// marks is valued at its average cost rather than dropped.
func (l *Ledger) Equity(marks map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.equityLocked(marks)
}

func (l *Ledger) equityLocked(marks map[string]float64) float64 {
	equity := l.cash
	for symbol, pos := range l.positions {
		mark, ok := marks[symbol]
		if !ok {
			mark = pos.AverageCost
		}
		equity += pos.MarketValue(mark)
	}
	return equity
}

// Paused reports the guardrail state.
func (l *Ledger) Paused() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paused, l.pauseReason
}

// RiskHistory returns the recorded risk snapshots, oldest first.
func (l *Ledger) RiskHistory() []model.RiskSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.RiskSnapshot, len(l.riskHistory))
	copy(out, l.riskHistory)
	return out
}

// LatestRisk returns the most recent risk snapshot, if any.
func (l *Ledger) LatestRisk() (model.RiskSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.riskHistory) == 0 {
		return model.RiskSnapshot{}, false
	}
	return l.riskHistory[len(l.riskHistory)-1], true
}

func (l *Ledger) recordRisk(snapshot model.RiskSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.riskHistory = append(l.riskHistory, snapshot)
	if limit := l.cfg.Risk.HistoryLimit; limit > 0 && len(l.riskHistory) > limit {
		l.riskHistory = l.riskHistory[len(l.riskHistory)-limit:]
	}
}

func (l *Ledger) setPaused(paused bool, reason string, at time.Time) bool {
	l.mu.Lock()
	changed := l.paused != paused
	l.paused = paused
	l.pauseReason = reason
	l.mu.Unlock()

	if !changed {
		return false
	}
	l.cfg.Metrics.SetPaused(paused)
	if l.cfg.Bus != nil {
		kind := bus.KindResumeTrading
		if paused {
			kind = bus.KindPauseTrading
		}
		if err := l.cfg.Bus.TryPublish(bus.Signal{Kind: kind, Reason: reason, At: at}); err != nil {
			l.cfg.Metrics.IncBusDrop()
		}
	}
	return true
}
