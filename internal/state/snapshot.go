package state

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/model"
)

const compareEpsilon = 1e-9

// Snapshot captures the portfolio at a point in time. It is written
// after every trading cycle so a restarted worker can report state
// before its first cycle completes, and so the supervisor can embed it
// in health responses.
type Snapshot struct {
	Timestamp   time.Time          `json:"timestamp"`
	Cash        float64            `json:"cash"`
	RealizedPnL float64            `json:"realizedPnl"`
	Positions   []model.Position   `json:"positions"`
	Risk        model.RiskSnapshot `json:"risk"`
	Paused      bool               `json:"paused"`
	PauseReason string             `json:"pauseReason,omitempty"`
}

// Build assembles a snapshot with positions in symbol order.
func Build(at time.Time, cash, realized float64, positions []model.Position, risk model.RiskSnapshot, paused bool, pauseReason string) Snapshot {
	sorted := make([]model.Position, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Symbol < sorted[j].Symbol
	})
	return Snapshot{
		Timestamp:   at,
		Cash:        cash,
		RealizedPnL: realized,
		Positions:   sorted,
		Risk:        risk,
		Paused:      paused,
		PauseReason: pauseReason,
	}
}

// Write persists the snapshot atomically: a temp file in the same
// directory is renamed over the target so readers never see a torn file.
func Write(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Read loads a snapshot from disk.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Compare checks that two snapshots describe the same portfolio.
func Compare(expected, actual Snapshot) error {
	if math.Abs(expected.Cash-actual.Cash) > compareEpsilon {
		return fmt.Errorf("snapshot cash mismatch: expected=%f actual=%f", expected.Cash, actual.Cash)
	}
	if math.Abs(expected.RealizedPnL-actual.RealizedPnL) > compareEpsilon {
		return fmt.Errorf("snapshot realized pnl mismatch: expected=%f actual=%f", expected.RealizedPnL, actual.RealizedPnL)
	}
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot position count mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[string]model.Position, len(expected.Positions))
	for _, pos := range expected.Positions {
		expectedMap[pos.Symbol] = pos
	}
	for _, pos := range actual.Positions {
		want, ok := expectedMap[pos.Symbol]
		if !ok {
			return fmt.Errorf("snapshot missing symbol: %s", pos.Symbol)
		}
		if math.Abs(want.Quantity-pos.Quantity) > compareEpsilon {
			return fmt.Errorf("snapshot qty mismatch: symbol=%s expected=%f actual=%f", pos.Symbol, want.Quantity, pos.Quantity)
		}
		if math.Abs(want.AverageCost-pos.AverageCost) > compareEpsilon {
			return fmt.Errorf("snapshot cost mismatch: symbol=%s expected=%f actual=%f", pos.Symbol, want.AverageCost, pos.AverageCost)
		}
	}
	return nil
}
