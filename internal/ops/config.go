package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/yanun0323/errors"
)

// FileConfig mirrors the JSON config layout. Durations are expressed in
// seconds (or milliseconds where noted) to keep the file hand-editable.
type FileConfig struct {
	Server     ServerConfig     `json:"server"`
	Supervisor SupervisorConfig `json:"supervisor"`
	Quotes     QuotesConfig     `json:"quotes"`
	Risk       RiskConfig       `json:"risk"`
	Journal    JournalConfig    `json:"journal"`
	Trader     TraderConfig     `json:"trader"`
	Postgres   *PostgresConfig  `json:"postgres,omitempty"`
	Pyroscope  PyroscopeConfig  `json:"pyroscope"`
}

// ServerConfig describes the supervisor health endpoint.
type ServerConfig struct {
	Port int `json:"port"`
}

// SupervisorConfig describes the managed fleet.
type SupervisorConfig struct {
	PollIntervalMs    int            `json:"pollIntervalMs"`
	StopGraceSec      int            `json:"stopGraceSec"`
	StartStaggerMs    int            `json:"startStaggerMs"`
	RestartBackoffSec int            `json:"restartBackoffSec"`
	RestartBackoffMax int            `json:"restartBackoffMaxSec"`
	Workers           []WorkerConfig `json:"workers"`
}

// WorkerConfig is one managed worker definition.
type WorkerConfig struct {
	Name        string            `json:"name"`
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Priority    int               `json:"priority"`
	Required    bool              `json:"required"`
	MaxRestarts int               `json:"maxRestarts"`
	Env         map[string]string `json:"env,omitempty"`
}

// QuotesConfig describes the resolver and its provider chain.
type QuotesConfig struct {
	TimeoutSec          int              `json:"timeoutSec"`
	FreshnessSec        int              `json:"freshnessSec"`
	StaleToleranceSec   int              `json:"staleToleranceSec"`
	DivergenceFraction  float64          `json:"divergenceFraction"`
	FailureThreshold    int              `json:"failureThreshold"`
	CooldownSec         int              `json:"cooldownSec"`
	CooldownMaxSec      int              `json:"cooldownMaxSec"`
	Providers           []ProviderConfig `json:"providers"`
}

// ProviderConfig is one external price source. Credentials are looked up
// through the named environment variable so the config file stays free of
// secrets.
type ProviderConfig struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	BaseURL   string `json:"baseUrl,omitempty"`
	APIKeyEnv string `json:"apiKeyEnv,omitempty"`
	Priority  int    `json:"priority"`
}

// RiskConfig carries the guardrail settings. The original system hard-coded
// different paper/live constants; here both are plain validated inputs.
type RiskConfig struct {
	StartingCash         float64 `json:"startingCash"`
	DrawdownThresholdPct float64 `json:"drawdownThresholdPct"`
	MinSampleSize        int     `json:"minSampleSize"`
	HistoryLimit         int     `json:"historyLimit"`
}

// JournalConfig controls the on-disk fill journal.
type JournalConfig struct {
	Dir       string `json:"dir"`
	QueueSize int    `json:"queueSize"`
}

// TraderConfig drives the trading worker loop.
type TraderConfig struct {
	Symbols          []string `json:"symbols"`
	CycleIntervalSec int      `json:"cycleIntervalSec"`
	SnapshotPath     string   `json:"snapshotPath"`
}

// PostgresConfig enables the optional fill mirror.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// PyroscopeConfig enables continuous profiling when ServerAddress is set.
type PyroscopeConfig struct {
	ServerAddress string `json:"serverAddress"`
	Application   string `json:"application"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Server     ServerConfig
	Supervisor SupervisorSettings
	Quotes     QuoteSettings
	Risk       RiskConfig
	Journal    JournalConfig
	Trader     TraderSettings
	Postgres   *PostgresConfig
	Pyroscope  PyroscopeConfig
}

// SupervisorSettings is SupervisorConfig with durations resolved.
type SupervisorSettings struct {
	PollInterval      time.Duration
	StopGrace         time.Duration
	StartStagger      time.Duration
	RestartBackoffMin time.Duration
	RestartBackoffMax time.Duration
	Workers           []WorkerConfig
}

// QuoteSettings is QuotesConfig with durations and credentials resolved.
type QuoteSettings struct {
	Timeout            time.Duration
	Freshness          time.Duration
	StaleTolerance     time.Duration
	DivergenceFraction float64
	FailureThreshold   int
	CooldownMin        time.Duration
	CooldownMax        time.Duration
	Providers          []ResolvedProvider
}

// ResolvedProvider carries the provider definition plus its credential.
type ResolvedProvider struct {
	ProviderConfig
	APIKey string
}

// TraderSettings is TraderConfig with durations resolved.
type TraderSettings struct {
	Symbols       []string
	CycleInterval time.Duration
	SnapshotPath  string
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}
	cfg = cfg.withDefaults()
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Loaded{}, err
	}
	return cfg.resolve(), nil
}

func (c FileConfig) withDefaults() FileConfig {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Supervisor.PollIntervalMs == 0 {
		c.Supervisor.PollIntervalMs = 2000
	}
	if c.Supervisor.StopGraceSec == 0 {
		c.Supervisor.StopGraceSec = 10
	}
	if c.Supervisor.RestartBackoffSec == 0 {
		c.Supervisor.RestartBackoffSec = 10
	}
	if c.Supervisor.RestartBackoffMax == 0 {
		c.Supervisor.RestartBackoffMax = 300
	}
	if c.Quotes.TimeoutSec == 0 {
		c.Quotes.TimeoutSec = 5
	}
	if c.Quotes.FreshnessSec == 0 {
		c.Quotes.FreshnessSec = 60
	}
	if c.Quotes.StaleToleranceSec == 0 {
		c.Quotes.StaleToleranceSec = 900
	}
	if c.Quotes.DivergenceFraction == 0 {
		c.Quotes.DivergenceFraction = 0.05
	}
	if c.Quotes.FailureThreshold == 0 {
		c.Quotes.FailureThreshold = 3
	}
	if c.Quotes.CooldownSec == 0 {
		c.Quotes.CooldownSec = 30
	}
	if c.Quotes.CooldownMaxSec == 0 {
		c.Quotes.CooldownMaxSec = 900
	}
	if c.Risk.StartingCash == 0 {
		c.Risk.StartingCash = 100_000
	}
	if c.Risk.DrawdownThresholdPct == 0 {
		c.Risk.DrawdownThresholdPct = 15
	}
	if c.Risk.MinSampleSize == 0 {
		c.Risk.MinSampleSize = 5
	}
	if c.Risk.HistoryLimit == 0 {
		c.Risk.HistoryLimit = 256
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "state/journal"
	}
	if c.Journal.QueueSize == 0 {
		c.Journal.QueueSize = 1024
	}
	if c.Trader.CycleIntervalSec == 0 {
		c.Trader.CycleIntervalSec = 30
	}
	if c.Trader.SnapshotPath == "" {
		c.Trader.SnapshotPath = "state/portfolio.json"
	}
	return c
}

func applyEnvOverrides(cfg *FileConfig) {
	if port := os.Getenv("BOT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dir := os.Getenv("BOT_JOURNAL_DIR"); dir != "" {
		cfg.Journal.Dir = dir
	}
	if path := os.Getenv("BOT_SNAPSHOT_PATH"); path != "" {
		cfg.Trader.SnapshotPath = path
	}
	if threshold := os.Getenv("BOT_MAX_DRAWDOWN_PCT"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Risk.DrawdownThresholdPct = v
		}
	}
}

// Validate checks the configured ranges before anything starts.
func (c FileConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Supervisor.Workers))
	for _, w := range c.Supervisor.Workers {
		if w.Name == "" {
			return errors.New("config: worker name is empty")
		}
		if w.Command == "" {
			return fmt.Errorf("config: worker %s has no command", w.Name)
		}
		if w.MaxRestarts < 0 {
			return fmt.Errorf("config: worker %s maxRestarts must be >= 0", w.Name)
		}
		if _, ok := seen[w.Name]; ok {
			return fmt.Errorf("config: duplicate worker name %s", w.Name)
		}
		seen[w.Name] = struct{}{}
	}
	if c.Supervisor.RestartBackoffSec > c.Supervisor.RestartBackoffMax {
		return errors.New("config: restartBackoffSec must be <= restartBackoffMaxSec")
	}
	for _, p := range c.Quotes.Providers {
		if p.Name == "" {
			return errors.New("config: provider name is empty")
		}
		if p.Kind == "" {
			return fmt.Errorf("config: provider %s has no kind", p.Name)
		}
	}
	if c.Quotes.DivergenceFraction < 0 || c.Quotes.DivergenceFraction > 1 {
		return errors.New("config: divergenceFraction must be within [0,1]")
	}
	if c.Quotes.CooldownSec > c.Quotes.CooldownMaxSec {
		return errors.New("config: cooldownSec must be <= cooldownMaxSec")
	}
	if c.Risk.DrawdownThresholdPct <= 0 || c.Risk.DrawdownThresholdPct > 100 {
		return errors.New("config: drawdownThresholdPct must be within (0,100]")
	}
	if c.Risk.MinSampleSize < 1 {
		return errors.New("config: minSampleSize must be >= 1")
	}
	if c.Risk.StartingCash <= 0 {
		return errors.New("config: startingCash must be > 0")
	}
	return nil
}

func (c FileConfig) resolve() Loaded {
	providers := make([]ResolvedProvider, 0, len(c.Quotes.Providers))
	for _, p := range c.Quotes.Providers {
		resolved := ResolvedProvider{ProviderConfig: p}
		if p.APIKeyEnv != "" {
			resolved.APIKey = os.Getenv(p.APIKeyEnv)
		}
		providers = append(providers, resolved)
	}
	return Loaded{
		Server: c.Server,
		Supervisor: SupervisorSettings{
			PollInterval:      time.Duration(c.Supervisor.PollIntervalMs) * time.Millisecond,
			StopGrace:         time.Duration(c.Supervisor.StopGraceSec) * time.Second,
			StartStagger:      time.Duration(c.Supervisor.StartStaggerMs) * time.Millisecond,
			RestartBackoffMin: time.Duration(c.Supervisor.RestartBackoffSec) * time.Second,
			RestartBackoffMax: time.Duration(c.Supervisor.RestartBackoffMax) * time.Second,
			Workers:           c.Supervisor.Workers,
		},
		Quotes: QuoteSettings{
			Timeout:            time.Duration(c.Quotes.TimeoutSec) * time.Second,
			Freshness:          time.Duration(c.Quotes.FreshnessSec) * time.Second,
			StaleTolerance:     time.Duration(c.Quotes.StaleToleranceSec) * time.Second,
			DivergenceFraction: c.Quotes.DivergenceFraction,
			FailureThreshold:   c.Quotes.FailureThreshold,
			CooldownMin:        time.Duration(c.Quotes.CooldownSec) * time.Second,
			CooldownMax:        time.Duration(c.Quotes.CooldownMaxSec) * time.Second,
			Providers:          providers,
		},
		Risk:    c.Risk,
		Journal: c.Journal,
		Trader: TraderSettings{
			Symbols:       c.Trader.Symbols,
			CycleInterval: time.Duration(c.Trader.CycleIntervalSec) * time.Second,
			SnapshotPath:  c.Trader.SnapshotPath,
		},
		Postgres:  c.Postgres,
		Pyroscope: c.Pyroscope,
	}
}
