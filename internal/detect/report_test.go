package detect

import (
	"strings"
	"testing"

	"chainaudit/pkg/models"
)

func TestBuildReportCountsMatchFindings(t *testing.T) {
	e := NewEngine(Config{})
	outcomes := []models.AttackOutcome{
		{
			Family: models.FamilyAccessControl, Success: true, TargetFunction: "emergency_unlock",
			AccessControl: &models.AccessControlDetails{AttackerRole: "user", RequiredRole: "owner"},
		},
		{
			Family: models.FamilyDOS, Success: true, TargetFunction: "scan_estate_assets",
			DOS: &models.DOSDetails{Resources: models.ResourceUsage{ComputeUnits: 600_000}},
		},
		{
			Family: models.FamilyOverflow, Success: false,
			Overflow: &models.OverflowDetails{AttemptedValue: "1"},
		},
	}

	report := e.BuildReport("defai_swap", outcomes)

	if report.VulnerabilitiesFound != len(report.Findings) {
		t.Fatalf("vulnerabilities_found=%d but %d findings", report.VulnerabilitiesFound, len(report.Findings))
	}
	critical := 0
	for _, f := range report.Findings {
		if f.Severity == models.SeverityCritical {
			critical++
		}
	}
	if report.CriticalVulnerabilities != critical {
		t.Fatalf("critical count %d, expected %d", report.CriticalVulnerabilities, critical)
	}
	if report.ReportID == "" {
		t.Fatalf("expected a report id")
	}
	if report.Program != "defai_swap" {
		t.Fatalf("unexpected program: %s", report.Program)
	}
}

func TestBuildReportEndToEndBasicProtectionsScenario(t *testing.T) {
	e := NewEngine(Config{})
	outcomes := []models.AttackOutcome{
		{
			Family: models.FamilyOverflow, Success: true, TargetFunction: "purchase_app_access",
			Overflow: &models.OverflowDetails{AttemptedValue: "18446744073709551615", Operation: "add"},
		},
		{
			Family: models.FamilyReentrancy, Success: true, TargetFunction: "claim_token",
			Reentrancy: &models.ReentrancyDetails{Depth: 2, CrossProgram: true},
		},
	}

	report := e.BuildReport("defai_app_factory", outcomes)

	// Classifier contributes overflow + reentrancy, correlator adds
	// no-basic-protections; all three critical.
	if report.VulnerabilitiesFound != 3 {
		t.Fatalf("expected 3 findings, got %d", report.VulnerabilitiesFound)
	}
	if report.CriticalVulnerabilities != 3 {
		t.Fatalf("expected 3 critical findings, got %d", report.CriticalVulnerabilities)
	}
	// min(3*10,40) + 3*20 + 3*15 = 135 clamped to 100.
	if report.RiskScore != 100 {
		t.Fatalf("expected score 100, got %d", report.RiskScore)
	}
	if report.RiskLevel != LevelCritical {
		t.Fatalf("expected critical risk level, got %s", report.RiskLevel)
	}
	if len(report.Recommendations) == 0 || report.Recommendations[0] != ImmediateActionMessage {
		t.Fatalf("expected immediate-action recommendation first, got %v", report.Recommendations)
	}
}

func TestBuildReportEmptyBatch(t *testing.T) {
	e := NewEngine(Config{})
	report := e.BuildReport("defai_swap", nil)

	if report.VulnerabilitiesFound != 0 || report.RiskScore != 0 {
		t.Fatalf("unexpected report for empty batch: %+v", report)
	}
	if report.RiskLevel != LevelMinimal {
		t.Fatalf("expected minimal risk, got %s", report.RiskLevel)
	}
	if len(report.Recommendations) != 1 || report.Recommendations[0] != NoFindingsMessage {
		t.Fatalf("unexpected recommendations: %v", report.Recommendations)
	}
}

func TestExecutiveSummaryContainsLevelCountsAndTopRecommendations(t *testing.T) {
	e := NewEngine(Config{})
	outcomes := []models.AttackOutcome{
		{
			Family: models.FamilyDoubleSpend, Success: true, TargetFunction: "claim_inheritance",
			DoubleSpend: &models.DoubleSpendDetails{AttemptedSpends: 2, SuccessfulSpends: 2},
		},
	}
	report := e.BuildReport("defai_app_factory", outcomes)

	summary := ExecutiveSummary(report)
	if !strings.Contains(summary, strings.ToUpper(report.RiskLevel)) {
		t.Fatalf("summary missing risk level: %s", summary)
	}
	if !strings.Contains(summary, "1 total, 1 critical") {
		t.Fatalf("summary missing counts: %s", summary)
	}
	if !strings.Contains(summary, "double-spend: 1") {
		t.Fatalf("summary missing category tally: %s", summary)
	}
	if !strings.Contains(summary, "1. "+ImmediateActionMessage) {
		t.Fatalf("summary missing top recommendation: %s", summary)
	}
}
