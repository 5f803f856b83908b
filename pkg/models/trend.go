package models

import "time"

// Trend periods, chosen from the analysis window size.
const (
	PeriodHourly = "hourly"
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
)

// Prediction risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// PeriodMetrics aggregates one trend period.
type PeriodMetrics struct {
	PeriodStart        time.Time `json:"period_start"`
	TransactionVolume  int       `json:"transaction_volume"`
	ErrorRate          float64   `json:"error_rate"`
	SuspiciousActivity int       `json:"suspicious_activity"`
	AttackAttempts     int       `json:"attack_attempts"`
	UniqueAccounts     int       `json:"unique_accounts"`
}

// TrendPrediction is the near-term outlook derived from recent periods.
type TrendPrediction struct {
	NextPeriodVolume int     `json:"next_period_volume"`
	RiskLevel        string  `json:"risk_level"` // low, medium, high
	Confidence       float64 `json:"confidence"`
}

// TrendAnalysis is the ordered per-period metric sequence plus the
// prediction for the next period.
type TrendAnalysis struct {
	Period      string          `json:"period"` // hourly, daily, weekly
	Metrics     []PeriodMetrics `json:"metrics"`
	Predictions TrendPrediction `json:"predictions"`
}
