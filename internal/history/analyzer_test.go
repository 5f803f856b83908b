package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainaudit/pkg/models"
)

type fakeProvider struct {
	pages    [][]models.SignatureInfo
	analyses map[string]*models.TransactionAnalysis

	pageCalls       int
	failFromPage    int  // 1-based; 0 disables
	repeatFirstPage bool // serve pages[0] on every call, for repeat scans
	failAnalyses    map[string]bool
}

func (f *fakeProvider) Signatures(ctx context.Context, program, before string, limit int) ([]models.SignatureInfo, error) {
	f.pageCalls++
	if f.failFromPage > 0 && f.pageCalls >= f.failFromPage {
		return nil, fmt.Errorf("rpc unavailable")
	}
	if f.repeatFirstPage && len(f.pages) > 0 {
		return f.pages[0], nil
	}
	if f.pageCalls > len(f.pages) {
		return nil, nil
	}
	return f.pages[f.pageCalls-1], nil
}

func (f *fakeProvider) AnalyzeTransaction(ctx context.Context, program string, sig models.SignatureInfo) (*models.TransactionAnalysis, error) {
	if f.failAnalyses[sig.Signature] {
		return nil, fmt.Errorf("transaction not found")
	}
	if a, ok := f.analyses[sig.Signature]; ok {
		return a, nil
	}
	return &models.TransactionAnalysis{
		Signature: sig.Signature,
		Timestamp: sig.BlockTime,
		Program:   program,
		Success:   true,
	}, nil
}

func testConfig() Config {
	return Config{FetchInterval: time.Millisecond}
}

func newTestAnalyzer(t *testing.T, provider *fakeProvider, cfg Config) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(provider, nil, cfg)
	require.NoError(t, err)
	return a
}

func txAt(ts time.Time, sig string, vectors ...models.VectorGuess) *models.TransactionAnalysis {
	return &models.TransactionAnalysis{
		Signature:  sig,
		Timestamp:  ts,
		Program:    "defai_swap",
		Success:    true,
		Suspicious: len(vectors) > 0,
		Vectors:    vectors,
	}
}

func TestDetectPatternsOnePercentBoundary(t *testing.T) {
	a := newTestAnalyzer(t, &fakeProvider{}, testConfig())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	build := func(hits int) []*models.TransactionAnalysis {
		analyses := make([]*models.TransactionAnalysis, 0, 1000)
		for i := 0; i < 1000; i++ {
			ts := base.Add(time.Duration(i) * time.Minute)
			if i < hits {
				analyses = append(analyses, txAt(ts, fmt.Sprintf("sig-%d", i),
					models.VectorGuess{Type: "double-spend", Confidence: 0.9}))
			} else {
				analyses = append(analyses, txAt(ts, fmt.Sprintf("sig-%d", i)))
			}
		}
		return analyses
	}

	// 10 of 1000 is exactly 1.0%: pattern present.
	patterns := a.detectPatterns(build(10), base, base.Add(24*time.Hour))
	require.Len(t, patterns, 1)
	assert.Equal(t, models.PatternTypeAttack, patterns[0].Type)
	assert.Equal(t, 10, patterns[0].Frequency)
	assert.InDelta(t, 0.01, patterns[0].Confidence, 1e-9)

	// 9 of 1000 is 0.9%: no pattern.
	assert.Empty(t, a.detectPatterns(build(9), base, base.Add(24*time.Hour)))
}

func TestHourlyAnomalyRequiresDoubleTheFlatAverage(t *testing.T) {
	a := newTestAnalyzer(t, &fakeProvider{}, testConfig())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// 36 transactions average 1.5/hour; hour 03 gets 13 and is the only
	// hour above twice that average.
	var analyses []*models.TransactionAnalysis
	for i := 0; i < 24; i++ {
		analyses = append(analyses, txAt(base.Add(time.Duration(i)*time.Hour), fmt.Sprintf("even-%d", i)))
	}
	for i := 0; i < 12; i++ {
		analyses = append(analyses, txAt(base.Add(3*time.Hour+time.Duration(i)*time.Minute), fmt.Sprintf("spike-%d", i)))
	}

	patterns := a.hourlyAnomalies(analyses, base, base.Add(24*time.Hour))
	require.Len(t, patterns, 1)
	assert.Equal(t, "hourly-spike-03", patterns[0].Pattern)
	assert.Equal(t, models.PatternTypeAnomaly, patterns[0].Type)
	assert.InDelta(t, 0.7, patterns[0].Confidence, 1e-9)
	assert.Equal(t, 13, patterns[0].Frequency)
}

func TestAccountAnomalyNeedsRateAndAbsoluteCount(t *testing.T) {
	a := newTestAnalyzer(t, &fakeProvider{}, testConfig())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mkTx := func(sig string, suspicious bool, account string) *models.TransactionAnalysis {
		return &models.TransactionAnalysis{
			Signature:  sig,
			Timestamp:  base,
			Program:    "defai_swap",
			Success:    true,
			Suspicious: suspicious,
			Accounts:   []string{account},
		}
	}

	var analyses []*models.TransactionAnalysis
	// hot account: 6 of 8 suspicious (rate 0.75, count 6) -> anomaly.
	for i := 0; i < 6; i++ {
		analyses = append(analyses, mkTx(fmt.Sprintf("hot-s-%d", i), true, "AttackerWallet111"))
	}
	for i := 0; i < 2; i++ {
		analyses = append(analyses, mkTx(fmt.Sprintf("hot-c-%d", i), false, "AttackerWallet111"))
	}
	// high rate but below the absolute minimum: 4 of 5 suspicious.
	for i := 0; i < 4; i++ {
		analyses = append(analyses, mkTx(fmt.Sprintf("low-s-%d", i), true, "SmallWallet222"))
	}
	analyses = append(analyses, mkTx("low-c-0", false, "SmallWallet222"))
	// busy but clean account.
	for i := 0; i < 10; i++ {
		analyses = append(analyses, mkTx(fmt.Sprintf("clean-%d", i), false, "CleanWallet333"))
	}

	patterns := a.accountAnomalies(analyses, base, base.Add(time.Hour))
	require.Len(t, patterns, 1)
	assert.Equal(t, "account-AttackerWallet111", patterns[0].Pattern)
	assert.InDelta(t, 0.75, patterns[0].Confidence, 1e-9)
}

func TestPredictFallbackWithFewerThanThreePeriods(t *testing.T) {
	a := newTestAnalyzer(t, &fakeProvider{}, testConfig())

	metrics := []models.PeriodMetrics{
		{TransactionVolume: 40, SuspiciousActivity: 30},
		{TransactionVolume: 55, SuspiciousActivity: 30},
	}
	p := a.predict(metrics)
	assert.Equal(t, 55, p.NextPeriodVolume)
	assert.Equal(t, models.RiskMedium, p.RiskLevel)
	assert.InDelta(t, 0.3, p.Confidence, 1e-9)
}

func TestPredictAveragesLastThreePeriods(t *testing.T) {
	a := newTestAnalyzer(t, &fakeProvider{}, testConfig())

	metrics := []models.PeriodMetrics{
		{TransactionVolume: 999, SuspiciousActivity: 0},
		{TransactionVolume: 30, SuspiciousActivity: 12},
		{TransactionVolume: 60, SuspiciousActivity: 11},
		{TransactionVolume: 90, SuspiciousActivity: 13},
	}
	p := a.predict(metrics)
	assert.Equal(t, 60, p.NextPeriodVolume)
	assert.Equal(t, models.RiskHigh, p.RiskLevel)
	assert.InDelta(t, 0.7, p.Confidence, 1e-9)

	quiet := []models.PeriodMetrics{
		{TransactionVolume: 10, SuspiciousActivity: 1},
		{TransactionVolume: 10, SuspiciousActivity: 2},
		{TransactionVolume: 10, SuspiciousActivity: 0},
	}
	p = a.predict(quiet)
	assert.Equal(t, models.RiskLow, p.RiskLevel)
}

func TestPeriodForWindowSize(t *testing.T) {
	cases := []struct {
		window time.Duration
		want   string
	}{
		{6 * time.Hour, models.PeriodHourly},
		{24 * time.Hour, models.PeriodHourly},
		{48 * time.Hour, models.PeriodDaily},
		{168 * time.Hour, models.PeriodDaily},
		{720 * time.Hour, models.PeriodWeekly},
	}
	for _, tc := range cases {
		period, _ := periodFor(tc.window)
		assert.Equal(t, tc.want, period, "window %s", tc.window)
	}
}

func TestAnalyzeAbortsWhenInitialSignatureFetchFails(t *testing.T) {
	provider := &fakeProvider{failFromPage: 1}
	a := newTestAnalyzer(t, provider, testConfig())

	_, err := a.Analyze(context.Background(), "defai_swap", 24*time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial signature fetch")
}

func TestAnalyzeKeepsPartialResultsWhenLaterPageFails(t *testing.T) {
	now := time.Now().UTC()
	page1 := make([]models.SignatureInfo, 3)
	for i := range page1 {
		page1[i] = models.SignatureInfo{
			Signature: fmt.Sprintf("sig-%d", i),
			BlockTime: now.Add(-time.Duration(i) * time.Minute),
		}
	}

	provider := &fakeProvider{pages: [][]models.SignatureInfo{page1}, failFromPage: 2}
	cfg := testConfig()
	cfg.BatchSize = 3 // full page forces a second fetch, which fails
	a := newTestAnalyzer(t, provider, cfg)

	report, err := a.Analyze(context.Background(), "defai_swap", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalTransactions)
}

func TestAnalyzeBuildsTimelineAndAppendsEventsAfterScan(t *testing.T) {
	now := time.Now().UTC()
	sigs := []models.SignatureInfo{
		{Signature: "sig-attack", BlockTime: now.Add(-2 * time.Hour)},
		{Signature: "sig-clean", BlockTime: now.Add(-1 * time.Hour)},
	}
	provider := &fakeProvider{
		pages: [][]models.SignatureInfo{sigs},
		analyses: map[string]*models.TransactionAnalysis{
			"sig-attack": txAt(now.Add(-2*time.Hour), "sig-attack",
				models.VectorGuess{Type: "double-spend", Confidence: 0.9},
				models.VectorGuess{Type: "reentrancy", Confidence: 0.8}),
		},
	}
	a := newTestAnalyzer(t, provider, testConfig())

	report, err := a.Analyze(context.Background(), "defai_swap", 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalTransactions)
	require.Len(t, report.Timeline, 2) // one event per detected vector
	assert.Equal(t, 2, a.Events().Len())
	assert.NotEmpty(t, report.Recommendations)
	assert.GreaterOrEqual(t, report.RiskScore, 0)
	assert.LessOrEqual(t, report.RiskScore, 100)
}

type staticTagEngine struct {
	vector models.VectorGuess
}

func (e *staticTagEngine) Apply(analysis *models.TransactionAnalysis) []models.VectorGuess {
	return []models.VectorGuess{e.vector}
}

func TestRepeatScansOverCachedTransactionsAreStable(t *testing.T) {
	now := time.Now().UTC()
	sigs := []models.SignatureInfo{
		{Signature: "sig-cached", BlockTime: now.Add(-time.Hour)},
	}
	provider := &fakeProvider{
		pages:           [][]models.SignatureInfo{sigs},
		repeatFirstPage: true,
	}
	engine := &staticTagEngine{vector: models.VectorGuess{Type: "reentrancy", Confidence: 0.8}}
	a, err := NewAnalyzer(provider, engine, testConfig())
	require.NoError(t, err)

	first, err := a.Analyze(context.Background(), "defai_swap", 24*time.Hour)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), "defai_swap", 24*time.Hour)
	require.NoError(t, err)

	// The second scan serves the transaction from the cache; tagging must
	// not accumulate on the cached record across scans.
	require.Len(t, first.Timeline, 1)
	require.Len(t, second.Timeline, 1)
	assert.Equal(t, first.RiskScore, second.RiskScore)
	require.Len(t, second.Patterns, len(first.Patterns))
	for i := range first.Patterns {
		assert.Equal(t, first.Patterns[i].Frequency, second.Patterns[i].Frequency)
	}

	cached, ok := a.cache.Get("sig-cached")
	require.True(t, ok)
	assert.Empty(t, cached.Vectors)
	assert.False(t, cached.Suspicious)
}

func TestAnalyzeSkipsFailedTransactionAnalyses(t *testing.T) {
	now := time.Now().UTC()
	sigs := []models.SignatureInfo{
		{Signature: "sig-ok", BlockTime: now.Add(-2 * time.Hour)},
		{Signature: "sig-broken", BlockTime: now.Add(-1 * time.Hour)},
	}
	provider := &fakeProvider{
		pages:        [][]models.SignatureInfo{sigs},
		failAnalyses: map[string]bool{"sig-broken": true},
	}
	a := newTestAnalyzer(t, provider, testConfig())

	report, err := a.Analyze(context.Background(), "defai_swap", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalTransactions)
}

func TestEventLogEvictsOldestBeyondCapacity(t *testing.T) {
	log := NewEventLog(3)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var events []models.AttackEvent
	for i := 0; i < 5; i++ {
		events = append(events, models.AttackEvent{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Type:      fmt.Sprintf("vector-%d", i),
		})
	}
	log.Append(events)

	snap := log.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "vector-2", snap[0].Type)
	assert.Equal(t, "vector-4", snap[2].Type)
}

func TestComputeTrendsBucketsMetrics(t *testing.T) {
	a := newTestAnalyzer(t, &fakeProvider{}, testConfig())
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	analyses := []*models.TransactionAnalysis{
		{Signature: "a", Timestamp: base.Add(5 * time.Minute), Program: "defai_swap", Success: true, Accounts: []string{"w1"}},
		{Signature: "b", Timestamp: base.Add(20 * time.Minute), Program: "defai_swap", Success: false, Accounts: []string{"w1", "w2"}},
		{Signature: "c", Timestamp: base.Add(70 * time.Minute), Program: "defai_swap", Success: true, Suspicious: true,
			Vectors: []models.VectorGuess{{Type: "reentrancy", Confidence: 0.8}}, Accounts: []string{"w3"}},
	}

	trends := a.computeTrends(analyses, 6*time.Hour)
	assert.Equal(t, models.PeriodHourly, trends.Period)
	require.Len(t, trends.Metrics, 2)

	first := trends.Metrics[0]
	assert.Equal(t, 2, first.TransactionVolume)
	assert.InDelta(t, 0.5, first.ErrorRate, 1e-9)
	assert.Equal(t, 2, first.UniqueAccounts)

	second := trends.Metrics[1]
	assert.Equal(t, 1, second.SuspiciousActivity)
	assert.Equal(t, 1, second.AttackAttempts)
}
