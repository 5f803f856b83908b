package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainaudit/pkg/models"
)

const overflowRule = `title: Arithmetic Overflow In Logs
id: ca-001
level: high
detection:
  selection:
    Logs|contains: 'arithmetic operation overflowed'
  condition: selection
`

const failedAdminRule = `title: Failed Privileged Call
id: ca-002
level: medium
detection:
  selection:
    Success: false
    Logs|contains: 'update_platform_settings'
  condition: selection
`

func writeRules(t *testing.T, rules map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range rules {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestNewSigmaEngineLoadsRulesFromDirectory(t *testing.T) {
	dir := writeRules(t, map[string]string{
		"overflow.yml": overflowRule,
		"admin.yaml":   failedAdminRule,
		"notes.txt":    "not a rule",
	})

	engine, stats, err := NewSigmaEngine(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 2, stats.Loaded)
	require.NotNil(t, engine)
}

func TestSigmaEngineTagsMatchingAnalyses(t *testing.T) {
	dir := writeRules(t, map[string]string{"overflow.yml": overflowRule})
	engine, _, err := NewSigmaEngine(dir)
	require.NoError(t, err)

	hit := &models.TransactionAnalysis{
		Signature: "sig-1",
		Program:   "defai_swap",
		Success:   false,
		Logs:      []string{"Program log: Error: arithmetic operation overflowed"},
	}
	vectors := engine.Apply(hit)
	require.Len(t, vectors, 1)
	assert.Equal(t, "arithmetic-overflow-in-logs", vectors[0].Type)
	assert.InDelta(t, 0.8, vectors[0].Confidence, 1e-9)

	miss := &models.TransactionAnalysis{
		Signature: "sig-2",
		Program:   "defai_swap",
		Success:   true,
		Logs:      []string{"Program log: Instruction: Swap"},
	}
	assert.Empty(t, engine.Apply(miss))
}

func TestNoopEngineReturnsNothing(t *testing.T) {
	var e NoopEngine
	assert.Nil(t, e.Apply(&models.TransactionAnalysis{Signature: "x"}))
}
