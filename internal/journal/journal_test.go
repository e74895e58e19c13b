package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

func testFill(i int) model.Fill {
	side := enum.SideBuy
	if i%2 == 1 {
		side = enum.SideSell
	}
	return model.Fill{
		Symbol:    "BTC-USD",
		Side:      side,
		Quantity:  1,
		Price:     100 + float64(i),
		Fee:       0.1,
		Timestamp: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestWriteAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, w.TryAppend(testFill(i)))
	}
	require.NoError(t, w.Close())

	fills, err := Replay(dir)
	require.NoError(t, err)
	require.Len(t, fills, n)
	for i, fill := range fills {
		require.Equal(t, testFill(i), fill)
	}
}

func TestTryAppendAfterClose(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Close())

	require.ErrorIs(t, w.TryAppend(testFill(0)), exception.ErrJournalClosed)
}

func TestStartTwice(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	require.ErrorIs(t, w.Start(context.Background()), exception.ErrJournalStarted)
}

func TestTryAppendFullQueue(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.QueueSize = 1
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	// Not started: the queue fills without being drained.
	require.NoError(t, w.TryAppend(testFill(0)))
	require.ErrorIs(t, w.TryAppend(testFill(1)), exception.ErrJournalFull)
}

func TestReplayToleratesTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for i := 0; i < 3; i++ {
		require.NoError(t, w.TryAppend(testFill(i)))
	}
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Simulate a crash mid-write by appending a truncated record.
	path := filepath.Join(dir, entries[0].Name())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"symbol":"BTC-USD","si`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fills, err := Replay(dir)
	require.NoError(t, err)
	require.Len(t, fills, 3)
}

func TestReplayMissingDir(t *testing.T) {
	fills, err := Replay(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.Empty(t, fills)
}
