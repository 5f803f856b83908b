// Package history analyzes a time window of past on-chain transactions
// for recurring attack patterns, anomalies and trends.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"chainaudit/internal/catalog"
	"chainaudit/internal/chain"
	"chainaudit/internal/logger"
	"chainaudit/internal/metrics"
	"chainaudit/internal/rules"
	"chainaudit/pkg/models"
)

// Config controls historical analysis. Zero values fall back to the
// documented defaults; the thresholds are policy, kept adjustable so
// boundary values can be probed precisely.
type Config struct {
	BatchSize       int           // signatures fetched and analyzed per batch
	MaxTransactions int           // hard cap on transactions per scan
	FetchInterval   time.Duration // minimum spacing between batches

	PatternMinRate    float64 // share of transactions for an attack pattern
	HourlySpikeFactor float64 // multiple of the flat hourly average
	AccountSuspiciousRate float64
	AccountSuspiciousMin  int

	PredictionMinPeriods int
	SuspiciousHighAvg    float64
	SuspiciousMediumAvg  float64
	PredictionConfidence float64
	FallbackConfidence   float64
	AnomalyConfidence    float64

	CacheSize    int
	EventLogSize int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxTransactions <= 0 {
		c.MaxTransactions = 10_000
	}
	if c.FetchInterval <= 0 {
		c.FetchInterval = 500 * time.Millisecond
	}
	if c.PatternMinRate <= 0 {
		c.PatternMinRate = 0.01
	}
	if c.HourlySpikeFactor <= 0 {
		c.HourlySpikeFactor = 2.0
	}
	if c.AccountSuspiciousRate <= 0 {
		c.AccountSuspiciousRate = 0.5
	}
	if c.AccountSuspiciousMin <= 0 {
		c.AccountSuspiciousMin = 5
	}
	if c.PredictionMinPeriods <= 0 {
		c.PredictionMinPeriods = 3
	}
	if c.SuspiciousHighAvg <= 0 {
		c.SuspiciousHighAvg = 10
	}
	if c.SuspiciousMediumAvg <= 0 {
		c.SuspiciousMediumAvg = 5
	}
	if c.PredictionConfidence <= 0 {
		c.PredictionConfidence = 0.7
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = 0.3
	}
	if c.AnomalyConfidence <= 0 {
		c.AnomalyConfidence = 0.7
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 4096
	}
	if c.EventLogSize <= 0 {
		c.EventLogSize = 10_000
	}
	return c
}

// Analyzer runs historical scans against an explicit chain provider.
// One analyzer owns one attack-event log for its process lifetime.
type Analyzer struct {
	provider chain.Provider
	engine   rules.Engine
	cfg      Config
	limiter  *rate.Limiter
	cache    *lru.Cache[string, *models.TransactionAnalysis]
	events   *EventLog
	now      func() time.Time
}

// NewAnalyzer creates an analyzer. The provider is required; engine may
// be nil to disable rule tagging.
func NewAnalyzer(provider chain.Provider, engine rules.Engine, cfg Config) (*Analyzer, error) {
	if provider == nil {
		return nil, fmt.Errorf("chain provider is required")
	}
	cfg = cfg.withDefaults()
	if engine == nil {
		engine = &rules.NoopEngine{}
	}

	cache, err := lru.New[string, *models.TransactionAnalysis](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create analysis cache: %w", err)
	}

	return &Analyzer{
		provider: provider,
		engine:   engine,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(cfg.FetchInterval), 1),
		cache:    cache,
		events:   NewEventLog(cfg.EventLogSize),
		now:      time.Now,
	}, nil
}

// Events returns the analyzer's attack-event history.
func (a *Analyzer) Events() *EventLog {
	return a.events
}

// Analyze scans the lookback window for one program and produces a
// historical report. The scan aborts only if the initial signature page
// cannot be fetched; later fetch failures degrade to partial results.
func (a *Analyzer) Analyze(ctx context.Context, program string, window time.Duration) (*models.HistoricalReport, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	end := a.now().UTC()
	start := end.Add(-window)

	analyses, err := a.fetchAnalyses(ctx, program, start)
	if err != nil {
		return nil, err
	}
	logger.Infof("historical scan of %s: %d transactions in window", program, len(analyses))

	// Rule tags are merged into per-scan copies; the analyses also live in
	// the shared cache and writing through those pointers would re-append
	// the same vectors on every later scan of a cached signature.
	for i, tx := range analyses {
		if extra := a.engine.Apply(tx); len(extra) > 0 {
			tagged := *tx
			tagged.Vectors = append(append([]models.VectorGuess(nil), tx.Vectors...), extra...)
			tagged.Suspicious = true
			analyses[i] = &tagged
		}
	}

	patterns := a.detectPatterns(analyses, start, end)
	patterns = append(patterns, a.hourlyAnomalies(analyses, start, end)...)
	patterns = append(patterns, a.accountAnomalies(analyses, start, end)...)

	trends := a.computeTrends(analyses, window)
	events := buildEvents(analyses)
	score := a.riskScore(patterns, trends.Metrics, events)

	report := &models.HistoricalReport{
		Program:           program,
		WindowStart:       start,
		WindowEnd:         end,
		TotalTransactions: len(analyses),
		Patterns:          patterns,
		Trends:            trends,
		RiskScore:         score,
		Recommendations:   historicalRecommendations(patterns, score),
		Timeline:          events,
	}

	// History is appended only after the scan completes so concurrent
	// batch workers never touch the shared log.
	a.events.Append(events)

	return report, nil
}

// fetchAnalyses pages signatures backward in time and analyzes each
// batch concurrently, awaiting every batch before starting the next.
func (a *Analyzer) fetchAnalyses(ctx context.Context, program string, windowStart time.Time) ([]*models.TransactionAnalysis, error) {
	analyses := make([]*models.TransactionAnalysis, 0, a.cfg.BatchSize)
	before := ""
	firstPage := true

	for len(analyses) < a.cfg.MaxTransactions {
		page, err := a.provider.Signatures(ctx, program, before, a.cfg.BatchSize)
		if err != nil {
			metrics.ProviderErrors.Inc()
			if firstPage {
				return nil, fmt.Errorf("initial signature fetch for %s: %w", program, err)
			}
			logger.Warnf("signature page after %s failed, using partial results: %v", before, err)
			break
		}
		firstPage = false
		if len(page) == 0 {
			break
		}
		before = page[len(page)-1].Signature

		inWindow := page[:0]
		reachedStart := false
		for _, sig := range page {
			if !sig.BlockTime.IsZero() && sig.BlockTime.Before(windowStart) {
				reachedStart = true
				continue
			}
			inWindow = append(inWindow, sig)
		}

		analyses = append(analyses, a.analyzeBatch(ctx, program, inWindow)...)

		if reachedStart || len(page) < a.cfg.BatchSize {
			break
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limit: %w", err)
		}
	}

	if len(analyses) > a.cfg.MaxTransactions {
		analyses = analyses[:a.cfg.MaxTransactions]
	}
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].Timestamp.Before(analyses[j].Timestamp)
	})
	return analyses, nil
}

// analyzeBatch issues per-transaction analyses concurrently within one
// batch. Individual failures are logged and skipped.
func (a *Analyzer) analyzeBatch(ctx context.Context, program string, sigs []models.SignatureInfo) []*models.TransactionAnalysis {
	results := make([]*models.TransactionAnalysis, len(sigs))
	var wg sync.WaitGroup

	for i, sig := range sigs {
		if cached, ok := a.cache.Get(sig.Signature); ok {
			results[i] = cached
			continue
		}
		wg.Add(1)
		go func(i int, sig models.SignatureInfo) {
			defer wg.Done()
			analysis, err := a.provider.AnalyzeTransaction(ctx, program, sig)
			if err != nil {
				metrics.ProviderErrors.Inc()
				logger.Warnf("analyze %s failed: %v", sig.Signature, err)
				return
			}
			results[i] = analysis
		}(i, sig)
	}
	wg.Wait()

	out := make([]*models.TransactionAnalysis, 0, len(sigs))
	for _, analysis := range results {
		if analysis == nil {
			continue
		}
		a.cache.Add(analysis.Signature, analysis)
		out = append(out, analysis)
	}
	return out
}

// detectPatterns counts (vector type, confidence) pairs; any pair seen
// in at least PatternMinRate of analyzed transactions becomes an attack
// pattern whose confidence is its occurrence rate.
func (a *Analyzer) detectPatterns(analyses []*models.TransactionAnalysis, start, end time.Time) []models.HistoricalPattern {
	total := len(analyses)
	if total == 0 {
		return nil
	}

	type pairStat struct {
		count    int
		programs map[string]struct{}
	}
	pairs := make(map[string]*pairStat, 16)

	for _, tx := range analyses {
		for _, v := range tx.Vectors {
			key := fmt.Sprintf("%s@%.2f", v.Type, v.Confidence)
			stat := pairs[key]
			if stat == nil {
				stat = &pairStat{programs: make(map[string]struct{}, 2)}
				pairs[key] = stat
			}
			stat.count++
			if tx.Program != "" {
				stat.programs[tx.Program] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(pairs))
	for key := range pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []models.HistoricalPattern
	for _, key := range keys {
		stat := pairs[key]
		ratio := float64(stat.count) / float64(total)
		if ratio < a.cfg.PatternMinRate {
			continue
		}
		programs := make([]string, 0, len(stat.programs))
		for p := range stat.programs {
			programs = append(programs, p)
		}
		sort.Strings(programs)
		out = append(out, models.HistoricalPattern{
			Type:             models.PatternTypeAttack,
			Pattern:          key,
			Frequency:        stat.count,
			TimeRange:        models.TimeRange{Start: start, End: end},
			AffectedPrograms: programs,
			Confidence:       ratio,
			Details:          fmt.Sprintf("%d of %d transactions (%.1f%%)", stat.count, total, ratio*100),
		})
	}
	return out
}

// hourlyAnomalies flags hours of day whose transaction count exceeds the
// spike factor times the flat average total/24.
func (a *Analyzer) hourlyAnomalies(analyses []*models.TransactionAnalysis, start, end time.Time) []models.HistoricalPattern {
	total := len(analyses)
	if total == 0 {
		return nil
	}

	var perHour [24]int
	for _, tx := range analyses {
		if tx.Timestamp.IsZero() {
			continue
		}
		perHour[tx.Timestamp.UTC().Hour()]++
	}
	average := float64(total) / 24.0

	var out []models.HistoricalPattern
	for hour, count := range perHour {
		if float64(count) <= average*a.cfg.HourlySpikeFactor {
			continue
		}
		out = append(out, models.HistoricalPattern{
			Type:       models.PatternTypeAnomaly,
			Pattern:    fmt.Sprintf("hourly-spike-%02d", hour),
			Frequency:  count,
			TimeRange:  models.TimeRange{Start: start, End: end},
			Confidence: a.cfg.AnomalyConfidence,
			Details:    fmt.Sprintf("%d transactions at hour %02d UTC against an average of %.1f", count, hour, average),
		})
	}
	return out
}

// accountAnomalies flags accounts whose suspicious-transaction rate and
// absolute suspicious count both exceed their thresholds.
func (a *Analyzer) accountAnomalies(analyses []*models.TransactionAnalysis, start, end time.Time) []models.HistoricalPattern {
	type acctStat struct {
		total      int
		suspicious int
	}
	accounts := make(map[string]*acctStat, 64)

	for _, tx := range analyses {
		for _, acct := range tx.Accounts {
			stat := accounts[acct]
			if stat == nil {
				stat = &acctStat{}
				accounts[acct] = stat
			}
			stat.total++
			if tx.Suspicious {
				stat.suspicious++
			}
		}
	}

	names := make([]string, 0, len(accounts))
	for acct := range accounts {
		names = append(names, acct)
	}
	sort.Strings(names)

	var out []models.HistoricalPattern
	for _, acct := range names {
		stat := accounts[acct]
		rate := float64(stat.suspicious) / float64(stat.total)
		if rate <= a.cfg.AccountSuspiciousRate || stat.suspicious < a.cfg.AccountSuspiciousMin {
			continue
		}
		out = append(out, models.HistoricalPattern{
			Type:       models.PatternTypeAnomaly,
			Pattern:    "account-" + acct,
			Frequency:  stat.suspicious,
			TimeRange:  models.TimeRange{Start: start, End: end},
			Confidence: rate,
			Details:    fmt.Sprintf("%d of %d transactions suspicious", stat.suspicious, stat.total),
		})
	}
	return out
}

// buildEvents emits one attack event per (transaction, vector) pair,
// ordered by timestamp. Severity comes from the catalog entry for the
// vector when one exists, otherwise from the vector confidence.
func buildEvents(analyses []*models.TransactionAnalysis) []models.AttackEvent {
	var events []models.AttackEvent
	for _, tx := range analyses {
		for _, v := range tx.Vectors {
			events = append(events, models.AttackEvent{
				Timestamp:   tx.Timestamp,
				Type:        v.Type,
				Severity:    vectorSeverity(v),
				Program:     tx.Program,
				Signature:   tx.Signature,
				Description: fmt.Sprintf("%s detected with confidence %.2f", v.Type, v.Confidence),
			})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func vectorSeverity(v models.VectorGuess) string {
	if pat, ok := catalog.Lookup(v.Type); ok {
		return pat.Severity
	}
	switch {
	case v.Confidence >= 0.9:
		return models.SeverityCritical
	case v.Confidence >= 0.7:
		return models.SeverityHigh
	case v.Confidence >= 0.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// riskScore is the historical scale: attack-pattern frequency weighs
// double, anomalies single, recent error rate up to 50 points, plus the
// severe attack events, clamped to [0,100]. It is intentionally a
// different scale from the per-run detection score.
func (a *Analyzer) riskScore(patterns []models.HistoricalPattern, metrics []models.PeriodMetrics, events []models.AttackEvent) int {
	score := 0.0
	for _, p := range patterns {
		switch p.Type {
		case models.PatternTypeAttack:
			score += float64(p.Frequency) * 2
		case models.PatternTypeAnomaly:
			score += float64(p.Frequency)
		}
	}

	score += avgRecentErrorRate(metrics, a.cfg.PredictionMinPeriods) * 50

	for _, ev := range events {
		switch ev.Severity {
		case models.SeverityCritical:
			score += 10
		case models.SeverityHigh:
			score += 5
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return int(score)
}

func historicalRecommendations(patterns []models.HistoricalPattern, score int) []string {
	out := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	add := func(msg string) {
		if _, ok := seen[msg]; ok {
			return
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}

	if score >= 70 {
		add("historical risk is elevated; schedule a full audit of the affected programs")
	}
	for _, p := range patterns {
		switch p.Type {
		case models.PatternTypeAttack:
			add("recurring attack vectors detected; review the flagged instructions and add monitoring alerts")
		case models.PatternTypeAnomaly:
			add("anomalous activity windows detected; investigate the flagged hours and accounts")
		}
	}
	if len(out) == 0 {
		add("no recurring attack patterns in this window; maintain the current monitoring cadence")
	}
	return out
}
