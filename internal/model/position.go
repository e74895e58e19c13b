package model

// Position is the running holding for one symbol, derived from fills.
// Quantity reaching zero resets the average cost.
type Position struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	AverageCost float64 `json:"averageCost"`
}

// MarketValue is the position marked at the given price.
func (p Position) MarketValue(mark float64) float64 {
	return p.Quantity * mark
}
