package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chainaudit/config"
	"chainaudit/internal/chain"
	"chainaudit/internal/history"
	"chainaudit/internal/logger"
	"chainaudit/internal/metrics"
	"chainaudit/internal/output/eventclickhouse"
	"chainaudit/internal/output/eventjson"
	"chainaudit/internal/pipeline"
	"chainaudit/internal/rules"
	"chainaudit/pkg/models"
)

func main() {
	program := flag.String("program", "", "Program address to analyze (required)")
	windowHours := flag.Int("window", 24, "Lookback window in hours")
	configPath := flag.String("config", "", "Optional YAML config path")
	rpcURL := flag.String("rpc-url", "", "Chain JSON-RPC endpoint (overrides config)")
	output := flag.String("output", "output/historical_report.json", "Historical report output path")
	withTimeline := flag.Bool("timeline", true, "Include the attack-event timeline in the report")
	flag.Parse()

	if strings.TrimSpace(*program) == "" {
		fmt.Fprintln(os.Stderr, "missing required -program flag")
		os.Exit(2)
	}

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := logger.Init(cfg.ChainAudit.Logging.Enabled, cfg.ChainAudit.Logging.Level, cfg.ChainAudit.Logging.File, cfg.ChainAudit.Logging.Console); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	endpoint := cfg.ChainAudit.Chain.RPCURL
	if *rpcURL != "" {
		endpoint = *rpcURL
	}
	provider, err := chain.NewRPCProvider(chain.RPCConfig{
		URL:     endpoint,
		Timeout: cfg.ChainAudit.Chain.Timeout,
		Headers: cfg.ChainAudit.Chain.Headers,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create chain provider: %v\n", err)
		os.Exit(1)
	}

	var engine rules.Engine
	if cfg.ChainAudit.Rules.Enabled && strings.TrimSpace(cfg.ChainAudit.Rules.Path) != "" {
		sigmaEngine, stats, err := rules.NewSigmaEngine(cfg.ChainAudit.Rules.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load Sigma rules: %v\n", err)
			os.Exit(1)
		}
		engine = sigmaEngine
		logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
			stats.Loaded, stats.SkippedComplex, stats.SkippedInvalid, stats.TotalFiles)
	}

	analyzer, err := history.NewAnalyzer(provider, engine, history.Config{
		BatchSize:       cfg.ChainAudit.History.BatchSize,
		MaxTransactions: cfg.ChainAudit.History.MaxTransactions,
		FetchInterval:   cfg.ChainAudit.History.FetchInterval,
		PatternMinRate:  cfg.ChainAudit.History.PatternMinRate,
		CacheSize:       cfg.ChainAudit.History.CacheSize,
		EventLogSize:    cfg.ChainAudit.History.EventLogSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create analyzer: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	report, err := analyzer.Analyze(ctx, *program, time.Duration(*windowHours)*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "historical analysis failed: %v\n", err)
		os.Exit(1)
	}
	metrics.HistoricalScans.Inc()

	if !*withTimeline {
		report.Timeline = nil
	}

	if err := writeReport(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		os.Exit(1)
	}

	if err := pushEvents(cfg, report.Timeline); err != nil {
		fmt.Fprintf(os.Stderr, "failed to push timeline events: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("analyzed program=%s transactions=%d patterns=%d risk=%d output=%s\n",
		report.Program, report.TotalTransactions, len(report.Patterns), report.RiskScore, *output)
}

func writeReport(path string, report *models.HistoricalReport) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func pushEvents(cfg *config.Config, events []models.AttackEvent) error {
	if len(events) == 0 {
		return nil
	}

	var (
		w   pipeline.EventWriter
		err error
	)
	switch cfg.ChainAudit.Events.Mode {
	case "", "none":
		return nil
	case "file":
		path := cfg.ChainAudit.Events.File.Path
		if path == "" {
			path = "output/attack_events.jsonl"
		}
		w, err = eventjson.NewWriter(path)
	case "clickhouse":
		w, err = eventclickhouse.NewWriter(eventclickhouse.Config{
			URL:      cfg.ChainAudit.Events.ClickHouse.URL,
			Database: cfg.ChainAudit.Events.ClickHouse.Database,
			Table:    cfg.ChainAudit.Events.ClickHouse.Table,
			Username: cfg.ChainAudit.Events.ClickHouse.Username,
			Password: cfg.ChainAudit.Events.ClickHouse.Password,
			Timeout:  cfg.ChainAudit.Events.ClickHouse.Timeout,
			Headers:  cfg.ChainAudit.Events.ClickHouse.Headers,
		})
	default:
		return fmt.Errorf("unknown events output mode: %s", cfg.ChainAudit.Events.Mode)
	}
	if err != nil {
		return err
	}
	defer w.Close()
	return w.WriteEvents(events)
}
