package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chainaudit/config"
	"chainaudit/internal/auditstate"
	"chainaudit/internal/detect"
	inputredis "chainaudit/internal/input/redis"
	"chainaudit/internal/logger"
	"chainaudit/internal/metrics"
	"chainaudit/internal/output/reporthttp"
	"chainaudit/internal/output/reportjson"
	"chainaudit/internal/output/reportnats"
	"chainaudit/internal/pipeline"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("chainaudit.yml"); err == nil {
		return "chainaudit.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "chainaudit.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "chainaudit.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.ChainAudit.Input.Redis.Addr == "" {
		cfg.ChainAudit.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.ChainAudit.Input.Redis.Key == "" {
		cfg.ChainAudit.Input.Redis.Key = "attack_outcomes"
	}
	if cfg.ChainAudit.Input.Redis.BlockTimeout == 0 {
		cfg.ChainAudit.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if cfg.ChainAudit.Pipeline.Workers <= 0 {
		cfg.ChainAudit.Pipeline.Workers = 8
	}
	if cfg.ChainAudit.Pipeline.BatchSize <= 0 {
		cfg.ChainAudit.Pipeline.BatchSize = 100
	}
	if cfg.ChainAudit.Pipeline.FlushInterval <= 0 {
		cfg.ChainAudit.Pipeline.FlushInterval = 2 * time.Second
	}

	if cfg.ChainAudit.Output.Mode == "" {
		cfg.ChainAudit.Output.Mode = "file"
	}
	if cfg.ChainAudit.Output.File.Path == "" {
		cfg.ChainAudit.Output.File.Path = "output/reports.jsonl"
	}

	if cfg.ChainAudit.State.Addr == "" {
		cfg.ChainAudit.State.Addr = cfg.ChainAudit.Input.Redis.Addr
	}

	if cfg.ChainAudit.Metrics.Addr == "" {
		cfg.ChainAudit.Metrics.Addr = "127.0.0.1:9464"
	}

	if cfg.ChainAudit.Logging.Level == "" {
		cfg.ChainAudit.Logging.Level = "info"
	}
}

// runState lists program audit states updated within the lookback, one
// JSON object per line.
func runState(args []string) int {
	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	configArg := fs.String("config", "", "YAML config path")
	sinceHours := fs.Int("since-hours", 24, "List programs updated within this many hours")
	limit := fs.Int64("limit", 1000, "Maximum number of programs to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig(findConfigFile(*configArg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	applyDefaults(cfg)

	store, err := auditstate.NewRedisStore(auditstate.RedisConfig{
		Addr:      cfg.ChainAudit.State.Addr,
		Password:  cfg.ChainAudit.State.Password,
		DB:        cfg.ChainAudit.State.DB,
		KeyPrefix: cfg.ChainAudit.State.KeyPrefix,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open audit-state store: %v\n", err)
		return 1
	}
	defer store.Close()

	since := time.Now().Add(-time.Duration(*sinceHours) * time.Hour)
	states, err := store.FetchDirtySince(since, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch audit states: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	for _, state := range states {
		if err := enc.Encode(state); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode state: %v\n", err)
			return 1
		}
	}
	fmt.Fprintf(os.Stderr, "programs=%d since=%dh\n", len(states), *sinceHours)
	return 0
}

func runService(args []string) {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.ChainAudit.Logging.Enabled, cfg.ChainAudit.Logging.Level, cfg.ChainAudit.Logging.File, cfg.ChainAudit.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("ChainAudit starting")
	logger.Infof("Config loaded from: %s", configPath)

	if cfg.ChainAudit.Metrics.Enabled {
		go func() {
			logger.Infof("Metrics endpoint listening on %s", cfg.ChainAudit.Metrics.Addr)
			if err := metrics.Serve(cfg.ChainAudit.Metrics.Addr); err != nil {
				logger.Errorf("Metrics endpoint failed: %v", err)
			}
		}()
	}

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         cfg.ChainAudit.Input.Redis.Addr,
		Password:     cfg.ChainAudit.Input.Redis.Password,
		DB:           cfg.ChainAudit.Input.Redis.DB,
		Key:          cfg.ChainAudit.Input.Redis.Key,
		BlockTimeout: cfg.ChainAudit.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}

	engine := detect.NewEngine(detect.Config{
		DOSComputeCritical:  cfg.ChainAudit.Detection.DOSComputeCritical,
		DOSAccountsCritical: cfg.ChainAudit.Detection.DOSAccountsCritical,
		DOSTransactionsHigh: cfg.ChainAudit.Detection.DOSTransactionsHigh,
		DOSDataSizeHigh:     cfg.ChainAudit.Detection.DOSDataSizeHigh,
		DOSComputeMedium:    cfg.ChainAudit.Detection.DOSComputeMedium,
		AdminRoles:          cfg.ChainAudit.Detection.AdminRoles,
	})

	var reportWriter pipeline.ReportWriter
	switch cfg.ChainAudit.Output.Mode {
	case "file":
		w, err := reportjson.NewWriter(cfg.ChainAudit.Output.File.Path)
		if err != nil {
			logger.Errorf("Failed to create report file writer: %v", err)
			log.Fatalf("Failed to create report file writer: %v", err)
		}
		reportWriter = w
		logger.Infof("Output mode: file (%s)", cfg.ChainAudit.Output.File.Path)
	case "http":
		w, err := reporthttp.NewWriter(reporthttp.Config{
			URL:     cfg.ChainAudit.Output.HTTP.URL,
			Timeout: cfg.ChainAudit.Output.HTTP.Timeout,
			Headers: cfg.ChainAudit.Output.HTTP.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create report HTTP writer: %v", err)
			log.Fatalf("Failed to create report HTTP writer: %v", err)
		}
		reportWriter = w
		logger.Infof("Output mode: http (%s)", cfg.ChainAudit.Output.HTTP.URL)
	case "nats":
		w, err := reportnats.NewWriter(reportnats.Config{
			URL:     cfg.ChainAudit.Output.NATS.URL,
			Subject: cfg.ChainAudit.Output.NATS.Subject,
		})
		if err != nil {
			logger.Errorf("Failed to create report NATS writer: %v", err)
			log.Fatalf("Failed to create report NATS writer: %v", err)
		}
		reportWriter = w
		logger.Infof("Output mode: nats (%s subject=%s)", cfg.ChainAudit.Output.NATS.URL, cfg.ChainAudit.Output.NATS.Subject)
	default:
		log.Fatalf("Unknown output mode: %s", cfg.ChainAudit.Output.Mode)
	}

	var stateWriter pipeline.StateWriter
	if cfg.ChainAudit.State.Enabled {
		store, err := auditstate.NewRedisStore(auditstate.RedisConfig{
			Addr:      cfg.ChainAudit.State.Addr,
			Password:  cfg.ChainAudit.State.Password,
			DB:        cfg.ChainAudit.State.DB,
			KeyPrefix: cfg.ChainAudit.State.KeyPrefix,
		})
		if err != nil {
			logger.Errorf("Failed to create audit-state store: %v", err)
			log.Fatalf("Failed to create audit-state store: %v", err)
		}
		stateWriter = store
		logger.Infof("Audit-state index enabled (%s)", cfg.ChainAudit.State.Addr)
	}

	pipe := pipeline.NewDetectionPipeline(
		consumer,
		engine,
		reportWriter,
		stateWriter,
		cfg.ChainAudit.Pipeline.Workers,
		cfg.ChainAudit.Pipeline.BatchSize,
		cfg.ChainAudit.Pipeline.FlushInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}

	logger.Infof("ChainAudit stopped")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runService(os.Args[2:])
			return
		case "state":
			os.Exit(runState(os.Args[2:]))
		default:
			// Backward-compatible mode: first arg is config path.
			runService(os.Args[1:])
			return
		}
	}

	runService(nil)
}
