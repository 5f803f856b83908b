package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	ChainAudit ChainAuditConfig `yaml:"chainaudit"`
}

// ChainAuditConfig is the project configuration.
type ChainAuditConfig struct {
	Input     InputConfig     `yaml:"input"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Detection DetectionConfig `yaml:"detection"`
	History   HistoryConfig   `yaml:"history"`
	Chain     ChainConfig     `yaml:"chain"`
	Rules     RulesConfig     `yaml:"rules"`
	Output    OutputConfig    `yaml:"output"`
	Events    EventsConfig    `yaml:"events"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InputConfig controls the outcome intake reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig controls Redis queue access.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// PipelineConfig controls detection pipeline behavior.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DetectionConfig controls classification thresholds and score weights.
// Zero values use the engine defaults.
type DetectionConfig struct {
	DOSComputeCritical  int64    `yaml:"dos_compute_critical"`
	DOSAccountsCritical int      `yaml:"dos_accounts_critical"`
	DOSTransactionsHigh int      `yaml:"dos_transactions_high"`
	DOSDataSizeHigh     int64    `yaml:"dos_data_size_high"`
	DOSComputeMedium    int64    `yaml:"dos_compute_medium"`
	AdminRoles          []string `yaml:"admin_roles"`
}

// HistoryConfig controls historical analysis.
type HistoryConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	MaxTransactions int           `yaml:"max_transactions"`
	FetchInterval   time.Duration `yaml:"fetch_interval"`
	PatternMinRate  float64       `yaml:"pattern_min_rate"`
	CacheSize       int           `yaml:"cache_size"`
	EventLogSize    int           `yaml:"event_log_size"`
}

// ChainConfig controls the JSON-RPC chain provider.
type ChainConfig struct {
	RPCURL  string            `yaml:"rpc_url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// RulesConfig controls Sigma log-tagging rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputConfig controls the detection report sink.
type OutputConfig struct {
	Mode string           `yaml:"mode"` // file|http|nats
	File FileOutputConfig `yaml:"file"`
	HTTP HTTPOutputConfig `yaml:"http"`
	NATS NATSOutputConfig `yaml:"nats"`
}

// EventsConfig controls the attack-timeline sink for historical scans.
type EventsConfig struct {
	Mode       string                 `yaml:"mode"` // file|clickhouse
	File       FileOutputConfig       `yaml:"file"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse"`
}

// StateConfig controls the per-program audit-state index.
type StateConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// NATSOutputConfig config for NATS publishing.
type NATSOutputConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
