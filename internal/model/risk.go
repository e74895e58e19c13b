package model

import "time"

// EquityPoint is one sample of the reconstructed account value curve.
// Equity is always cash plus mark-to-market position value, never cash
// alone.
type EquityPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Cash        float64   `json:"cash"`
	MarketValue float64   `json:"marketValue"`
	Equity      float64   `json:"equity"`
}

// RiskSnapshot is a point-in-time view of portfolio risk, recomputed from
// the fill history and appended to the risk log, never patched in place.
type RiskSnapshot struct {
	VaR95           float64   `json:"var95"`
	VaR99           float64   `json:"var99"`
	CVaR95          float64   `json:"cvar95"`
	CVaR99          float64   `json:"cvar99"`
	CurrentDrawdown float64   `json:"currentDrawdown"`
	MaxDrawdown     float64   `json:"maxDrawdown"`
	RiskScore       float64   `json:"riskScore"`
	Approved        bool      `json:"approved"`
	SampleSize      int       `json:"sampleSize"`
	ComputedAt      time.Time `json:"computedAt"`
}

// Directive tells the trading worker whether to halt new orders.
type Directive struct {
	Pause  bool   `json:"pause"`
	Reason string `json:"reason,omitempty"`
}
