package ledger

import (
	"main/internal/model"
	"main/internal/model/enum"
)

// RebuildEquityCurve replays the fill history from starting cash and
// returns one equity point per fill. Positions are marked at the last
// traded price seen during the replay, so the curve is a pure function
// of the fills. When marks is non-nil the final point is re-marked with
// those prices to reflect the live book.
func (l *Ledger) RebuildEquityCurve(marks map[string]float64) []model.EquityPoint {
	fills := l.Fills()
	if len(fills) == 0 {
		return nil
	}

	cash := l.cfg.Risk.StartingCash
	quantities := make(map[string]float64)
	lastPrice := make(map[string]float64)
	curve := make([]model.EquityPoint, 0, len(fills))

	for _, fill := range fills {
		switch fill.Side {
		case enum.SideBuy:
			cash -= fill.Notional() + fill.Fee
			quantities[fill.Symbol] += fill.Quantity
		case enum.SideSell:
			cash += fill.Notional() - fill.Fee
			quantities[fill.Symbol] -= fill.Quantity
		}
		lastPrice[fill.Symbol] = fill.Price

		value := 0.0
		for symbol, qty := range quantities {
			value += qty * lastPrice[symbol]
		}
		curve = append(curve, model.EquityPoint{
			Timestamp:   fill.Timestamp,
			Cash:        cash,
			MarketValue: value,
			Equity:      cash + value,
		})
	}

	if marks != nil {
		value := 0.0
		for symbol, qty := range quantities {
			mark, ok := marks[symbol]
			if !ok {
				mark = lastPrice[symbol]
			}
			value += qty * mark
		}
		last := &curve[len(curve)-1]
		last.MarketValue = value
		last.Equity = last.Cash + value
	}
	return curve
}
