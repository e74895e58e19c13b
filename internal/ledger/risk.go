package ledger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/model"
)

// cvarCap normalizes the tail-loss term of the risk score; anything at
// or beyond a 50% expected shortfall saturates the term.
const cvarCap = 0.50

// ComputeRisk rebuilds the equity curve, derives the risk measures from
// it, and appends the snapshot to the risk history. The snapshot is a
// pure function of the fill history plus marks; nothing is patched in
// place.
func (l *Ledger) ComputeRisk(marks map[string]float64, now time.Time) model.RiskSnapshot {
	curve := l.RebuildEquityCurve(marks)
	returns := equityReturns(curve)
	current, max := drawdowns(curve)

	snapshot := model.RiskSnapshot{
		VaR95:           valueAtRisk(returns, 0.95),
		VaR99:           valueAtRisk(returns, 0.99),
		CVaR95:          conditionalVaR(returns, 0.95),
		CVaR99:          conditionalVaR(returns, 0.99),
		CurrentDrawdown: current,
		MaxDrawdown:     max,
		SampleSize:      len(l.Fills()),
		ComputedAt:      now,
	}
	snapshot.RiskScore = riskScore(snapshot)
	snapshot.Approved = snapshot.CurrentDrawdown <= l.cfg.Risk.DrawdownThresholdPct

	l.recordRisk(snapshot)
	l.cfg.Metrics.SetDrawdown(snapshot.CurrentDrawdown)
	return snapshot
}

// EvaluateGuardrail decides whether trading should pause. The pause
// needs both a breached drawdown threshold and enough fills to trust the
// measurement; a two-trade account down 20% is noise, not a drawdown.
func (l *Ledger) EvaluateGuardrail(snapshot model.RiskSnapshot) model.Directive {
	threshold := l.cfg.Risk.DrawdownThresholdPct
	breached := snapshot.CurrentDrawdown > threshold
	sampled := snapshot.SampleSize >= l.cfg.Risk.MinSampleSize

	if breached && sampled {
		reason := fmt.Sprintf("drawdown %.2f%% exceeds %.2f%% over %d fills",
			snapshot.CurrentDrawdown, threshold, snapshot.SampleSize)
		if l.setPaused(true, reason, snapshot.ComputedAt) {
			logs.Warnf("ledger: guardrail pause: %s", reason)
		}
		return model.Directive{Pause: true, Reason: reason}
	}

	if paused, _ := l.Paused(); paused {
		if l.setPaused(false, "", snapshot.ComputedAt) {
			logs.Infof("ledger: guardrail resume, drawdown %.2f%%", snapshot.CurrentDrawdown)
		}
	}
	return model.Directive{}
}

// equityReturns converts an equity curve into period returns.
func equityReturns(curve []model.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

// valueAtRisk is historical-simulation VaR at the given confidence,
// returned as a positive loss fraction.
func valueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	index := int(float64(len(sorted)) * (1 - confidence))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	if index < 0 {
		index = 0
	}
	return math.Max(0, -sorted[index])
}

// conditionalVaR is the expected shortfall: the mean of returns at or
// beyond the VaR threshold. The tail mean can only be as bad or worse
// than the cut itself, so the result is never below the matching VaR.
func conditionalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	threshold := valueAtRisk(returns, confidence)

	sum, count := 0.0, 0
	for _, r := range returns {
		if r <= -threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return threshold
	}
	return math.Abs(sum / float64(count))
}

// drawdowns walks the equity curve against its running peak and returns
// the current and maximum drawdown in percent, both clamped to [0,100].
func drawdowns(curve []model.EquityPoint) (current, max float64) {
	if len(curve) == 0 {
		return 0, 0
	}
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := clampPct((peak - point.Equity) / peak * 100)
		if dd > max {
			max = dd
		}
		current = dd
	}
	return current, max
}

// riskScore blends drawdown and tail loss into a [0,1] severity figure.
func riskScore(s model.RiskSnapshot) float64 {
	ddPart := math.Min(s.CurrentDrawdown/100, 1)
	tailPart := math.Min(s.CVaR95/cvarCap, 1)
	return math.Min(0.6*ddPart+0.4*tailPart, 1)
}

func clampPct(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}
