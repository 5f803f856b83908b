package history

import (
	"sort"
	"time"

	"chainaudit/pkg/models"
)

// periodFor picks the trend bucket size from the window: up to a day
// hourly, up to a week daily, weekly beyond that.
func periodFor(window time.Duration) (string, time.Duration) {
	switch {
	case window <= 24*time.Hour:
		return models.PeriodHourly, time.Hour
	case window <= 168*time.Hour:
		return models.PeriodDaily, 24 * time.Hour
	default:
		return models.PeriodWeekly, 168 * time.Hour
	}
}

// computeTrends buckets analyses into periods and derives per-period
// metrics plus the next-period prediction.
func (a *Analyzer) computeTrends(analyses []*models.TransactionAnalysis, window time.Duration) models.TrendAnalysis {
	period, bucket := periodFor(window)

	type agg struct {
		volume     int
		failures   int
		suspicious int
		attacks    int
		accounts   map[string]struct{}
	}
	buckets := make(map[time.Time]*agg, 32)

	for _, tx := range analyses {
		if tx.Timestamp.IsZero() {
			continue
		}
		start := tx.Timestamp.UTC().Truncate(bucket)
		b := buckets[start]
		if b == nil {
			b = &agg{accounts: make(map[string]struct{}, 8)}
			buckets[start] = b
		}
		b.volume++
		if !tx.Success {
			b.failures++
		}
		if tx.Suspicious {
			b.suspicious++
		}
		if len(tx.Vectors) > 0 {
			b.attacks++
		}
		for _, acct := range tx.Accounts {
			b.accounts[acct] = struct{}{}
		}
	}

	starts := make([]time.Time, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	metrics := make([]models.PeriodMetrics, 0, len(starts))
	for _, start := range starts {
		b := buckets[start]
		errorRate := 0.0
		if b.volume > 0 {
			errorRate = float64(b.failures) / float64(b.volume)
		}
		metrics = append(metrics, models.PeriodMetrics{
			PeriodStart:        start,
			TransactionVolume:  b.volume,
			ErrorRate:          errorRate,
			SuspiciousActivity: b.suspicious,
			AttackAttempts:     b.attacks,
			UniqueAccounts:     len(b.accounts),
		})
	}

	return models.TrendAnalysis{
		Period:      period,
		Metrics:     metrics,
		Predictions: a.predict(metrics),
	}
}

// predict averages the last three periods. With fewer than three periods
// there is not enough signal; fall back to the last observed volume with
// medium risk and low confidence.
func (a *Analyzer) predict(metrics []models.PeriodMetrics) models.TrendPrediction {
	if len(metrics) < a.cfg.PredictionMinPeriods {
		last := 0
		if len(metrics) > 0 {
			last = metrics[len(metrics)-1].TransactionVolume
		}
		return models.TrendPrediction{
			NextPeriodVolume: last,
			RiskLevel:        models.RiskMedium,
			Confidence:       a.cfg.FallbackConfidence,
		}
	}

	recent := metrics[len(metrics)-a.cfg.PredictionMinPeriods:]
	volumeSum := 0
	suspiciousSum := 0
	for _, m := range recent {
		volumeSum += m.TransactionVolume
		suspiciousSum += m.SuspiciousActivity
	}
	avgVolume := volumeSum / len(recent)
	avgSuspicious := float64(suspiciousSum) / float64(len(recent))

	risk := models.RiskLow
	switch {
	case avgSuspicious > a.cfg.SuspiciousHighAvg:
		risk = models.RiskHigh
	case avgSuspicious > a.cfg.SuspiciousMediumAvg:
		risk = models.RiskMedium
	}

	return models.TrendPrediction{
		NextPeriodVolume: avgVolume,
		RiskLevel:        risk,
		Confidence:       a.cfg.PredictionConfidence,
	}
}

// avgRecentErrorRate averages the error rate of the most recent periods.
func avgRecentErrorRate(metrics []models.PeriodMetrics, n int) float64 {
	if len(metrics) == 0 || n <= 0 {
		return 0
	}
	if len(metrics) < n {
		n = len(metrics)
	}
	recent := metrics[len(metrics)-n:]
	sum := 0.0
	for _, m := range recent {
		sum += m.ErrorRate
	}
	return sum / float64(n)
}
