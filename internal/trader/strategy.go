package trader

import (
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// ThresholdStrategy is a minimal take-profit/stop-loss strategy: enter a
// fixed notional when flat, exit when the price moves past either band.
// It exists to exercise the pipeline; real strategies plug in through
// the Strategy interface.
type ThresholdStrategy struct {
	OrderNotional float64
	TakeProfitPct float64
	StopLossPct   float64
	FeePerOrder   float64

	now func() time.Time
}

// NewThresholdStrategy applies sane defaults for zero fields.
func NewThresholdStrategy(notional, takeProfitPct, stopLossPct float64) *ThresholdStrategy {
	if takeProfitPct <= 0 {
		takeProfitPct = 2
	}
	if stopLossPct <= 0 {
		stopLossPct = 1
	}
	return &ThresholdStrategy{
		OrderNotional: notional,
		TakeProfitPct: takeProfitPct,
		StopLossPct:   stopLossPct,
		now:           time.Now,
	}
}

func (s *ThresholdStrategy) Decide(symbol string, q model.Quote, pos model.Position, cash float64) (model.Fill, bool) {
	if pos.Quantity > 0 {
		take := pos.AverageCost * (1 + s.TakeProfitPct/100)
		stop := pos.AverageCost * (1 - s.StopLossPct/100)
		if q.Price >= take || q.Price <= stop {
			return model.Fill{
				Symbol:    symbol,
				Side:      enum.SideSell,
				Quantity:  pos.Quantity,
				Price:     q.Price,
				Fee:       s.FeePerOrder,
				Timestamp: s.now().UTC(),
			}, true
		}
		return model.Fill{}, false
	}

	cost := s.OrderNotional + s.FeePerOrder
	if s.OrderNotional <= 0 || cash < cost || q.Price <= 0 {
		return model.Fill{}, false
	}
	return model.Fill{
		Symbol:    symbol,
		Side:      enum.SideBuy,
		Quantity:  s.OrderNotional / q.Price,
		Price:     q.Price,
		Fee:       s.FeePerOrder,
		Timestamp: s.now().UTC(),
	}, true
}
