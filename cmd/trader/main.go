package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/journal"
	"main/internal/ledger"
	"main/internal/ops"
	"main/internal/quote"
	"main/internal/trader"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	orderNotional := flag.Float64("order-notional", 1000, "Notional per entry order")
	takeProfitPct := flag.Float64("take-profit-pct", 2, "Take profit threshold in percent")
	stopLossPct := flag.Float64("stop-loss-pct", 1, "Stop loss threshold in percent")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if len(cfg.Trader.Symbols) == 0 {
		log.Fatalf("no symbols configured")
	}

	if profiler := startProfiler(cfg.Pyroscope, "botctl-trader"); profiler != nil {
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	journalCfg := journal.DefaultConfig(cfg.Journal.Dir)
	journalCfg.QueueSize = cfg.Journal.QueueSize

	// Replay before the writer opens a new segment so the book picks up
	// where the last run stopped.
	replayed, err := journal.Replay(cfg.Journal.Dir)
	if err != nil {
		log.Fatalf("journal replay failed: %v", err)
	}

	writer, err := journal.NewWriter(journalCfg)
	if err != nil {
		log.Fatalf("journal setup failed: %v", err)
	}
	if err := writer.Start(ctx); err != nil {
		log.Fatalf("journal start failed: %v", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logs.Warnf("trader: journal close: %v", err)
		}
	}()

	var store *ledger.Store
	if cfg.Postgres != nil {
		client, err := conn.Connect(conn.Options{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			// Mirror only: the journal stays authoritative.
			logs.Warnf("trader: postgres unavailable, mirroring disabled: %v", err)
		} else {
			defer func() {
				_ = client.Close()
			}()
			store, err = ledger.NewStore(client.DB())
			if err != nil {
				logs.Warnf("trader: postgres migrate failed, mirroring disabled: %v", err)
				store = nil
			}
		}
	}

	signals := bus.New(256)
	defer signals.Close()

	book, err := ledger.Restore(ledger.Config{
		Risk:    cfg.Risk,
		Journal: writer,
		Store:   store,
		Bus:     signals,
	}, replayed)
	if err != nil {
		log.Fatalf("ledger restore failed: %v", err)
	}
	logs.Infof("trader: restored %d journaled fills, cash %.2f", len(replayed), book.Cash())

	providers, err := quote.BuildProviders(cfg.Quotes.Providers, &http.Client{Timeout: cfg.Quotes.Timeout})
	if err != nil {
		log.Fatalf("provider setup failed: %v", err)
	}
	if len(providers) == 0 {
		logs.Warnf("trader: no quote providers configured, running on cache only")
	}
	resolver := quote.NewResolver(cfg.Quotes, providers, nil)

	worker := trader.New(trader.Config{
		Trader:   cfg.Trader,
		Resolver: resolver,
		Ledger:   book,
		Strategy: trader.NewThresholdStrategy(*orderNotional, *takeProfitPct, *stopLossPct),
		Bus:      signals,
	})

	go func() {
		<-sys.Shutdown()
		logs.Info("trader: shutting down")
		cancel()
	}()

	worker.Run(ctx)
}

func startProfiler(cfg ops.PyroscopeConfig, defaultName string) *pyroscope.Profiler {
	if cfg.ServerAddress == "" {
		return nil
	}
	name := cfg.Application
	if name == "" {
		name = defaultName
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		Logger:          emptyLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		log.Fatalf("pyroscope start failed: %v", err)
	}
	return profiler
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
