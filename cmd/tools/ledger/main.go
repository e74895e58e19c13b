package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"main/internal/journal"
	"main/internal/ledger"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/ops"
)

// A small offline companion for inspecting and extending a fill journal
// without running the trading worker.
func main() {
	journalDir := flag.String("journal-dir", "state/journal", "Fill journal directory")
	mode := flag.String("mode", "risk", "Mode: record | equity | risk")
	startingCash := flag.Float64("starting-cash", 100_000, "Starting cash for replay")

	symbol := flag.String("symbol", "", "Fill symbol (record mode)")
	side := flag.String("side", "buy", "Fill side: buy | sell (record mode)")
	qty := flag.Float64("qty", 0, "Fill quantity (record mode)")
	price := flag.Float64("price", 0, "Fill price (record mode)")
	fee := flag.Float64("fee", 0, "Fill fee (record mode)")
	flag.Parse()

	cfg := ledger.Config{Risk: ops.RiskConfig{
		StartingCash:         *startingCash,
		DrawdownThresholdPct: 15,
		MinSampleSize:        5,
		HistoryLimit:         1,
	}}

	fills, err := journal.Replay(*journalDir)
	if err != nil {
		log.Fatalf("journal replay failed: %v", err)
	}
	book, err := ledger.Restore(cfg, fills)
	if err != nil {
		log.Fatalf("ledger restore failed: %v", err)
	}

	switch *mode {
	case "record":
		runRecord(book, *journalDir, model.Fill{
			Symbol:    *symbol,
			Side:      enum.ParseSide(*side),
			Quantity:  *qty,
			Price:     *price,
			Fee:       *fee,
			Timestamp: time.Now().UTC(),
		})
	case "equity":
		printJSON(book.RebuildEquityCurve(nil))
	case "risk":
		snapshot := book.ComputeRisk(nil, time.Now().UTC())
		directive := book.EvaluateGuardrail(snapshot)
		printJSON(struct {
			Risk      model.RiskSnapshot `json:"risk"`
			Directive model.Directive    `json:"directive"`
			Cash      float64            `json:"cash"`
			Realized  float64            `json:"realizedPnl"`
			Positions []model.Position   `json:"positions"`
		}{snapshot, directive, book.Cash(), book.RealizedPnL(), book.Positions()})
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
}

func runRecord(book *ledger.Ledger, dir string, fill model.Fill) {
	ctx := context.Background()

	writer, err := journal.NewWriter(journal.DefaultConfig(dir))
	if err != nil {
		log.Fatalf("journal setup failed: %v", err)
	}
	if err := writer.Start(ctx); err != nil {
		log.Fatalf("journal start failed: %v", err)
	}

	// Validate against the replayed book before persisting.
	if err := book.RecordFill(ctx, fill); err != nil {
		log.Fatalf("fill rejected: %v", err)
	}
	if err := writer.TryAppend(fill); err != nil {
		log.Fatalf("journal append failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		log.Fatalf("journal close failed: %v", err)
	}
	fmt.Printf("recorded %s %s %g @ %g\n", fill.Side, fill.Symbol, fill.Quantity, fill.Price)
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		log.Fatalf("encode failed: %v", err)
	}
}
