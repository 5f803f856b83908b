package rules

import "chainaudit/pkg/models"

// Engine tags transaction analyses with additional attack vectors.
type Engine interface {
	Apply(analysis *models.TransactionAnalysis) []models.VectorGuess
}

// NoopEngine returns no vectors.
type NoopEngine struct{}

// Apply returns an empty vector list.
func (n *NoopEngine) Apply(analysis *models.TransactionAnalysis) []models.VectorGuess {
	return nil
}
