package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/model"
)

func testSnapshot() Snapshot {
	return Build(
		time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		95_000, 250,
		[]model.Position{
			{Symbol: "ETH-USD", Quantity: 2, AverageCost: 2500},
			{Symbol: "BTC-USD", Quantity: 0.5, AverageCost: 60_000},
		},
		model.RiskSnapshot{CurrentDrawdown: 3.5, SampleSize: 12},
		false, "",
	)
}

func TestBuildSortsPositions(t *testing.T) {
	snap := testSnapshot()
	require.Equal(t, "BTC-USD", snap.Positions[0].Symbol)
	require.Equal(t, "ETH-USD", snap.Positions[1].Symbol)
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portfolio.json")
	snap := testSnapshot()

	require.NoError(t, Write(path, snap))
	loaded, err := Read(path)
	require.NoError(t, err)
	require.NoError(t, Compare(snap, loaded))
	require.Equal(t, snap.Risk.SampleSize, loaded.Risk.SampleSize)
}

func TestWriteReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	first := testSnapshot()
	require.NoError(t, Write(path, first))

	second := first
	second.Cash = 90_000
	require.NoError(t, Write(path, second))

	loaded, err := Read(path)
	require.NoError(t, err)
	require.InDelta(t, 90_000, loaded.Cash, 1e-9)
}

func TestCompareDetectsDrift(t *testing.T) {
	snap := testSnapshot()

	drifted := snap
	drifted.Cash += 10
	require.Error(t, Compare(snap, drifted))

	drifted = snap
	drifted.Positions = append([]model.Position(nil), snap.Positions...)
	drifted.Positions[0].Quantity += 1
	require.Error(t, Compare(snap, drifted))

	require.NoError(t, Compare(snap, snap))
}
