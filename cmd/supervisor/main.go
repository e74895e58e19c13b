package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/obs"
	"main/internal/ops"
	"main/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if profiler := startProfiler(cfg.Pyroscope, "botctl-supervisor"); profiler != nil {
		defer func() {
			_ = profiler.Stop()
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := obs.NewMetrics(registry)

	sup, err := supervisor.New(cfg.Supervisor, metrics)
	if err != nil {
		log.Fatalf("supervisor setup failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sup.StartAll(ctx); err != nil {
		log.Fatalf("fleet start failed: %v", err)
	}

	server := supervisor.NewServer(sup, supervisor.ServerConfig{
		Port:         cfg.Server.Port,
		SnapshotPath: cfg.Trader.SnapshotPath,
		Registry:     registry,
	})
	server.Start()

	<-sys.Shutdown()
	logs.Info("supervisor: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logs.Warnf("supervisor: server shutdown: %v", err)
	}
	sup.StopAll()

	if err := sup.Err(); err != nil {
		logs.Errorf("supervisor: fleet finished degraded: %v", err)
	}
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
