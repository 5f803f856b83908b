package detect

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"chainaudit/pkg/models"
)

// Engine folds the classifier, correlator, scorer and recommendation
// generator into detection reports. It is pure over in-memory data and
// safe for concurrent use.
type Engine struct {
	classifier *Classifier
	scorer     *Scorer
	now        func() time.Time
}

// NewEngine creates a detection engine with defaults applied.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		classifier: NewClassifier(cfg),
		scorer:     NewScorer(cfg),
		now:        time.Now,
	}
}

// BuildReport classifies every outcome, appends batch-level correlation
// findings, scores the result and attaches recommendations. Malformed
// outcomes degrade to fewer findings; they never fail the run.
func (e *Engine) BuildReport(program string, outcomes []models.AttackOutcome) models.DetectionReport {
	findings := make([]models.Finding, 0, len(outcomes))
	for _, o := range outcomes {
		if f, ok := e.classifier.Classify(o); ok {
			findings = append(findings, f)
		}
	}
	findings = append(findings, Correlate(outcomes)...)

	critical := 0
	for _, f := range findings {
		if f.Severity == models.SeverityCritical {
			critical++
		}
	}

	score := e.scorer.Score(findings)
	return models.DetectionReport{
		ReportID:                uuid.NewString(),
		Program:                 program,
		Timestamp:               e.now().UTC(),
		VulnerabilitiesFound:    len(findings),
		CriticalVulnerabilities: critical,
		Findings:                findings,
		Recommendations:         Recommend(findings),
		RiskScore:               score,
		RiskLevel:               e.scorer.Level(score),
	}
}

// ExecutiveSummary renders a short operator-facing summary: risk level,
// counts, top recommendations and a per-category tally of successful
// findings.
func ExecutiveSummary(report models.DetectionReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Security audit of %s: %s risk (score %d/100)\n",
		report.Program, strings.ToUpper(report.RiskLevel), report.RiskScore)
	fmt.Fprintf(&b, "Vulnerabilities: %d total, %d critical\n",
		report.VulnerabilitiesFound, report.CriticalVulnerabilities)

	byCategory := make(map[string]int)
	for _, f := range report.Findings {
		if f.Success {
			byCategory[f.Category]++
		}
	}
	if len(byCategory) > 0 {
		categories := make([]string, 0, len(byCategory))
		for c := range byCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		b.WriteString("By category:\n")
		for _, c := range categories {
			fmt.Fprintf(&b, "  %s: %d\n", c, byCategory[c])
		}
	}

	top := report.Recommendations
	if len(top) > 3 {
		top = top[:3]
	}
	if len(top) > 0 {
		b.WriteString("Recommended actions:\n")
		for i, rec := range top {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, rec)
		}
	}

	return b.String()
}
