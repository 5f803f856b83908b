package detect

import (
	"testing"

	"chainaudit/pkg/models"
)

func TestScoreEmptyFindingsIsZero(t *testing.T) {
	s := NewScorer(Config{})
	if got := s.Score(nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestScoreAdditiveFormula(t *testing.T) {
	s := NewScorer(Config{})

	// 2 findings: base 20, one critical (20+15), one medium (5) = 60.
	findings := []models.Finding{
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityMedium},
	}
	if got := s.Score(findings); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
}

func TestScoreBaseTermCapsAtForty(t *testing.T) {
	s := NewScorer(Config{})

	// 6 low findings: base min(60,40)=40 + 6*2 = 52.
	findings := make([]models.Finding, 6)
	for i := range findings {
		findings[i] = models.Finding{Severity: models.SeverityLow}
	}
	if got := s.Score(findings); got != 52 {
		t.Fatalf("expected 52, got %d", got)
	}
}

func TestScoreIsMonotonicAndBounded(t *testing.T) {
	s := NewScorer(Config{})

	severities := []string{
		models.SeverityLow, models.SeverityCritical, models.SeverityMedium,
		models.SeverityHigh, models.SeverityCritical, models.SeverityCritical,
		models.SeverityLow, models.SeverityHigh, models.SeverityCritical,
	}

	var findings []models.Finding
	prev := 0
	for _, sev := range severities {
		findings = append(findings, models.Finding{Severity: sev})
		got := s.Score(findings)
		if got < prev {
			t.Fatalf("score decreased from %d to %d after appending %s", prev, got, sev)
		}
		if got < 0 || got > 100 {
			t.Fatalf("score %d out of [0,100]", got)
		}
		prev = got
	}
	if prev != 100 {
		t.Fatalf("expected saturation at 100, got %d", prev)
	}
}

func TestLevelBuckets(t *testing.T) {
	s := NewScorer(Config{})
	cases := []struct {
		score int
		want  string
	}{
		{100, LevelCritical},
		{80, LevelCritical},
		{79, LevelHigh},
		{60, LevelHigh},
		{59, LevelMedium},
		{40, LevelMedium},
		{39, LevelLow},
		{20, LevelLow},
		{19, LevelMinimal},
		{0, LevelMinimal},
	}
	for _, tc := range cases {
		if got := s.Level(tc.score); got != tc.want {
			t.Fatalf("score %d: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}
