package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/ops"
	"main/pkg/exception"
)

func testRiskConfig() ops.RiskConfig {
	return ops.RiskConfig{
		StartingCash:         100_000,
		DrawdownThresholdPct: 15,
		MinSampleSize:        5,
		HistoryLimit:         256,
	}
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(Config{Risk: testRiskConfig()})
}

func fillAt(side enum.Side, qty, price float64, sec int) model.Fill {
	return model.Fill{
		Symbol:    "BTC-USD",
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Fee:       1,
		Timestamp: time.Date(2026, 1, 1, 0, 0, sec, 0, time.UTC),
	}
}

func TestRecordFillBuyAveragesCost(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 1, 100, 0)))
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 1, 200, 1)))

	positions := l.Positions()
	require.Len(t, positions, 1)
	require.InDelta(t, 150, positions[0].AverageCost, 1e-9)
	require.InDelta(t, 2, positions[0].Quantity, 1e-9)
	require.InDelta(t, 100_000-100-200-2, l.Cash(), 1e-9)
}

func TestRecordFillSellRealizesPnL(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 2, 100, 0)))
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideSell, 1, 120, 1)))

	// (120 - 100) * 1 - 1 fee
	require.InDelta(t, 19, l.RealizedPnL(), 1e-9)
	positions := l.Positions()
	require.Len(t, positions, 1)
	require.InDelta(t, 1, positions[0].Quantity, 1e-9)
	require.InDelta(t, 100, positions[0].AverageCost, 1e-9)
}

func TestRecordFillSellClosesPosition(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 2, 100, 0)))
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideSell, 2, 110, 1)))

	require.Empty(t, l.Positions())
	// Fees on both legs.
	require.InDelta(t, 100_000+20-2, l.Cash(), 1e-9)
}

func TestRecordFillRejectsOversell(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 1, 100, 0)))
	err := l.RecordFill(ctx, fillAt(enum.SideSell, 2, 100, 1))
	require.ErrorIs(t, err, exception.ErrInvalidFill)

	// Rejected fills leave the book untouched.
	require.Len(t, l.Fills(), 1)
}

func TestRecordFillRejectsInvalid(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	bad := fillAt(enum.SideBuy, 0, 100, 0)
	require.ErrorIs(t, l.RecordFill(ctx, bad), exception.ErrInvalidFill)
	require.Empty(t, l.Fills())
}

func TestRecordFillPublishesSignal(t *testing.T) {
	b := bus.New(4)
	defer b.Close()
	l := New(Config{Risk: testRiskConfig(), Bus: b})

	require.NoError(t, l.RecordFill(context.Background(), fillAt(enum.SideBuy, 1, 100, 0)))

	done := make(chan bus.Signal, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go b.Run(ctx, func(s bus.Signal) {
		select {
		case done <- s:
		default:
		}
	})

	select {
	case s := <-done:
		require.Equal(t, bus.KindFillRecorded, s.Kind)
		require.Equal(t, "BTC-USD", s.Symbol)
	case <-time.After(time.Second):
		t.Fatal("no fill signal")
	}
}

func TestRestoreReplaysFills(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 2, 100, 0)))
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideSell, 1, 120, 1)))

	restored, err := Restore(Config{Risk: testRiskConfig()}, l.Fills())
	require.NoError(t, err)
	require.InDelta(t, l.Cash(), restored.Cash(), 1e-9)
	require.InDelta(t, l.RealizedPnL(), restored.RealizedPnL(), 1e-9)
	require.Equal(t, l.Positions(), restored.Positions())
}

func TestEquityIncludesPositions(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 2, 100, 0)))

	// Cash dropped by the buy, but the position value keeps equity whole
	// apart from the fee.
	marks := map[string]float64{"BTC-USD": 100}
	require.InDelta(t, 100_000-1, l.Equity(marks), 1e-9)

	// Marking higher lifts equity; cash alone would miss this entirely.
	marks["BTC-USD"] = 150
	require.InDelta(t, 100_000-1+100, l.Equity(marks), 1e-9)
}

func TestEquityCurvePureReplay(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 2, 100, 0)))
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 1, 110, 1)))
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideSell, 3, 120, 2)))

	first := l.RebuildEquityCurve(nil)
	second := l.RebuildEquityCurve(nil)
	require.Equal(t, first, second)
	require.Len(t, first, 3)

	// Each point carries cash plus marked position value.
	require.InDelta(t, first[0].Cash+first[0].MarketValue, first[0].Equity, 1e-9)
	require.InDelta(t, 2*100, first[0].MarketValue, 1e-9)
	require.InDelta(t, 3*110, first[1].MarketValue, 1e-9)
	require.InDelta(t, 0, first[2].MarketValue, 1e-9)
}

func TestEquityCurveFinalMarks(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordFill(ctx, fillAt(enum.SideBuy, 1, 100, 0)))

	curve := l.RebuildEquityCurve(map[string]float64{"BTC-USD": 130})
	require.Len(t, curve, 1)
	require.InDelta(t, 130, curve[0].MarketValue, 1e-9)
}

func TestScenarioHundredFills(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// 100 one-unit fills alternating buy and sell of a single symbol over
	// a price path that climbs to a peak and then gives back ten percent.
	prices := make([]float64, 100)
	for i := 0; i < 50; i++ {
		prices[i] = 100 + 0.2*float64(i)
	}
	for i := 50; i < 100; i++ {
		prices[i] = 109.8 - 0.22*float64(i-49)
	}

	for i, price := range prices {
		side := enum.SideBuy
		if i%2 == 1 {
			side = enum.SideSell
		}
		fill := model.Fill{
			Symbol:    "X",
			Side:      side,
			Quantity:  1,
			Price:     price,
			Timestamp: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		}
		require.NoError(t, l.RecordFill(ctx, fill))
	}

	require.Len(t, l.Fills(), 100)
	// Every buy was matched by a sell, so the position is flat.
	require.Empty(t, l.Positions())

	// Replay the same path with plain arithmetic for the expected curve
	// and its maximum drawdown.
	cash, qty := 100_000.0, 0.0
	peak, maxDD := 0.0, 0.0
	expected := make([]float64, 0, len(prices))
	for i, price := range prices {
		if i%2 == 0 {
			cash -= price
			qty++
		} else {
			cash += price
			qty--
		}
		equity := cash + qty*price
		expected = append(expected, equity)
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}

	curve := l.RebuildEquityCurve(nil)
	require.Len(t, curve, 100)
	for i, point := range curve {
		require.InDelta(t, expected[i], point.Equity, 1e-9)
	}

	snapshot := l.ComputeRisk(nil, time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC))
	require.Greater(t, snapshot.MaxDrawdown, 0.0)
	require.InDelta(t, maxDD, snapshot.MaxDrawdown, 1e-9)
	require.GreaterOrEqual(t, snapshot.CVaR95, snapshot.VaR95)

	// Restoring from the fill log reproduces the book exactly.
	restored, err := Restore(Config{Risk: testRiskConfig()}, l.Fills())
	require.NoError(t, err)
	require.InDelta(t, l.Cash(), restored.Cash(), 1e-9)
	require.InDelta(t, l.RealizedPnL(), restored.RealizedPnL(), 1e-9)
	require.Equal(t, curve, restored.RebuildEquityCurve(nil))
}
