package models

import "time"

// DetectionReport is the output of one detection run. It is assembled
// once and never mutated afterwards.
type DetectionReport struct {
	ReportID                string    `json:"report_id"`
	Program                 string    `json:"program"`
	Timestamp               time.Time `json:"timestamp"`
	VulnerabilitiesFound    int       `json:"vulnerabilities_found"`
	CriticalVulnerabilities int       `json:"critical_vulnerabilities"`
	Findings                []Finding `json:"findings"`
	Recommendations         []string  `json:"recommendations"`
	RiskScore               int       `json:"risk_score"`
	RiskLevel               string    `json:"risk_level"`
}

// HistoricalReport summarizes one historical analysis window.
type HistoricalReport struct {
	Program           string              `json:"program"`
	WindowStart       time.Time           `json:"window_start"`
	WindowEnd         time.Time           `json:"window_end"`
	TotalTransactions int                 `json:"total_transactions"`
	Patterns          []HistoricalPattern `json:"patterns"`
	Trends            TrendAnalysis       `json:"trends"`
	RiskScore         int                 `json:"risk_score"`
	Recommendations   []string            `json:"recommendations"`
	Timeline          []AttackEvent       `json:"timeline,omitempty"`
}
