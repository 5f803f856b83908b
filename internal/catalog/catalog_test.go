package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainaudit/pkg/models"
)

func TestLookupKnownPattern(t *testing.T) {
	p, ok := Lookup("integer-overflow")
	require.True(t, ok)
	assert.Equal(t, "arithmetic", p.Category)
	assert.Equal(t, models.SeverityCritical, p.Severity)
	assert.NotEmpty(t, p.Indicators)
}

func TestLookupUnknownPattern(t *testing.T) {
	_, ok := Lookup("no-such-pattern")
	assert.False(t, ok)
}

func TestMatchLogsIsCaseInsensitive(t *testing.T) {
	logs := []string{
		"Program log: Instruction: ClaimToken",
		"Program log: Error: arithmetic operation OVERFLOWED",
	}
	matched := MatchLogs(logs)
	require.NotEmpty(t, matched)

	found := false
	for _, p := range matched {
		if p.Pattern == "integer-overflow" {
			found = true
		}
	}
	assert.True(t, found, "expected integer-overflow to match")
}

func TestMatchLogsEmptyInput(t *testing.T) {
	assert.Nil(t, MatchLogs(nil))
}

func TestCatalogEntriesAreWellFormed(t *testing.T) {
	for _, p := range All() {
		assert.NotEmpty(t, p.Pattern)
		assert.NotEmpty(t, p.Category)
		assert.NotEmpty(t, p.Indicators, "pattern %s has no indicators", p.Pattern)
		assert.Contains(t, []string{
			models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical,
		}, p.Severity, "pattern %s has unknown severity", p.Pattern)
	}
}
