package models

import "time"

// VulnerabilityPattern is one static catalog entry. Indicators are
// substrings matched against transaction or simulation logs.
type VulnerabilityPattern struct {
	Pattern    string   `json:"pattern"`
	Severity   string   `json:"severity"`
	Category   string   `json:"category"`
	Indicators []string `json:"indicators"`
}

// Historical pattern types.
const (
	PatternTypeAttack  = "attack"
	PatternTypeAnomaly = "anomaly"
	PatternTypeNormal  = "normal"
)

// TimeRange bounds one observation window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// HistoricalPattern is one recurring or anomalous pattern detected over
// an analysis window.
type HistoricalPattern struct {
	Type             string    `json:"type"` // attack, anomaly, normal
	Pattern          string    `json:"pattern"`
	Frequency        int       `json:"frequency"`
	TimeRange        TimeRange `json:"time_range"`
	AffectedPrograms []string  `json:"affected_programs,omitempty"`
	Confidence       float64   `json:"confidence"`
	Details          string    `json:"details,omitempty"`
}

// AttackEvent is one (transaction, detected-vector) pair on the attack
// timeline, ordered by timestamp.
type AttackEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Program     string    `json:"program"`
	Signature   string    `json:"signature,omitempty"`
	Description string    `json:"description,omitempty"`
}
