// Package catalog holds the static vulnerability-pattern reference data
// used for classification and log scanning.
package catalog

import (
	"strings"

	"chainaudit/pkg/models"
)

var patterns = []models.VulnerabilityPattern{
	{
		Pattern:    "integer-overflow",
		Severity:   models.SeverityCritical,
		Category:   "arithmetic",
		Indicators: []string{"overflow", "arithmetic operation overflowed", "checked_add", "wrapping"},
	},
	{
		Pattern:    "integer-underflow",
		Severity:   models.SeverityCritical,
		Category:   "arithmetic",
		Indicators: []string{"underflow", "subtract with overflow", "checked_sub"},
	},
	{
		Pattern:    "reentrancy",
		Severity:   models.SeverityCritical,
		Category:   "reentrancy",
		Indicators: []string{"reentran", "cross-program invocation", "invoke_signed", "recursive call"},
	},
	{
		Pattern:    "missing-signer-check",
		Severity:   models.SeverityCritical,
		Category:   "access-control",
		Indicators: []string{"missing required signature", "signer", "unauthorized"},
	},
	{
		Pattern:    "missing-owner-check",
		Severity:   models.SeverityHigh,
		Category:   "access-control",
		Indicators: []string{"owner mismatch", "account owned by wrong program", "constraint has_one"},
	},
	{
		Pattern:    "unchecked-input",
		Severity:   models.SeverityHigh,
		Category:   "input-validation",
		Indicators: []string{"invalid instruction data", "deserialize", "out of bounds"},
	},
	{
		Pattern:    "double-spend",
		Severity:   models.SeverityCritical,
		Category:   "double-spend",
		Indicators: []string{"already claimed", "already processed", "duplicate spend", "replay"},
	},
	{
		Pattern:    "compute-exhaustion",
		Severity:   models.SeverityHigh,
		Category:   "dos",
		Indicators: []string{"exceeded maximum number of instructions", "compute budget", "program failed to complete"},
	},
	{
		Pattern:    "account-spam",
		Severity:   models.SeverityMedium,
		Category:   "dos",
		Indicators: []string{"account already in use", "createaccount", "rent-exempt"},
	},
	// Recovered from the audited programs' surface: VRF-backed randomness
	// and PDA derivation are recurring weak spots.
	{
		Pattern:    "randomness-manipulation",
		Severity:   models.SeverityHigh,
		Category:   "randomness",
		Indicators: []string{"vrf", "randomness", "slot_hashes", "recent_blockhash"},
	},
	{
		Pattern:    "pda-seed-collision",
		Severity:   models.SeverityHigh,
		Category:   "access-control",
		Indicators: []string{"seeds constraint", "bump", "invalid program derived address"},
	},
}

// All returns the full catalog. The slice is shared; callers must not
// mutate it.
func All() []models.VulnerabilityPattern {
	return patterns
}

// Lookup returns the catalog entry for a pattern identifier.
func Lookup(pattern string) (models.VulnerabilityPattern, bool) {
	for _, p := range patterns {
		if p.Pattern == pattern {
			return p, true
		}
	}
	return models.VulnerabilityPattern{}, false
}

// MatchLogs returns every pattern with at least one indicator appearing
// as a case-insensitive substring of any log line.
func MatchLogs(logs []string) []models.VulnerabilityPattern {
	if len(logs) == 0 {
		return nil
	}
	lowered := make([]string, len(logs))
	for i, line := range logs {
		lowered[i] = strings.ToLower(line)
	}

	var matched []models.VulnerabilityPattern
	for _, p := range patterns {
		if matchesAny(p.Indicators, lowered) {
			matched = append(matched, p)
		}
	}
	return matched
}

func matchesAny(indicators, lowered []string) bool {
	for _, ind := range indicators {
		ind = strings.ToLower(ind)
		for _, line := range lowered {
			if strings.Contains(line, ind) {
				return true
			}
		}
	}
	return false
}
