package detect

import "chainaudit/pkg/models"

// Risk levels for detection reports, derived from the bounded score.
const (
	LevelMinimal  = "minimal"
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// Scorer reduces findings to a bounded 0-100 risk score.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer with defaults applied.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg.withDefaults()}
}

// Score is additive then clamped. The base term caps at BaseCap so the
// severity-weighted terms dominate once more than four vulnerabilities
// are present, and the clamp keeps runs comparable.
func (s *Scorer) Score(findings []models.Finding) int {
	base := len(findings) * s.cfg.BaseWeight
	if base > s.cfg.BaseCap {
		base = s.cfg.BaseCap
	}

	score := base
	for _, f := range findings {
		if f.Severity == models.SeverityCritical {
			score += s.cfg.CriticalWeight
		}
		score += s.severityWeight(f.Severity)
	}

	if score > s.cfg.ScoreCap {
		score = s.cfg.ScoreCap
	}
	return score
}

// Level buckets a score into a discrete risk level.
func (s *Scorer) Level(score int) string {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	case score >= 20:
		return LevelLow
	default:
		return LevelMinimal
	}
}

func (s *Scorer) severityWeight(severity string) int {
	if w, ok := s.cfg.SeverityWeights[severity]; ok {
		return w
	}
	return s.cfg.SeverityWeights[models.SeverityLow]
}
