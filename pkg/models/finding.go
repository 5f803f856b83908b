package models

// Severity levels for findings, lowest to highest.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Finding is one classified vulnerability. Findings have no identity
// beyond their contents; a run may legitimately contain duplicates.
type Finding struct {
	Category       string `json:"category"`
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	TargetFunction string `json:"target_function"`
	Success        bool   `json:"success"`
	Details        string `json:"details,omitempty"`
}
