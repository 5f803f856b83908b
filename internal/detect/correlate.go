package detect

import (
	"fmt"

	"chainaudit/pkg/models"
)

// Correlate scans a full run of outcomes for systemic issues invisible
// from any single result. The three checks are independent; every
// applicable one fires in the same run.
func Correlate(outcomes []models.AttackOutcome) []models.Finding {
	var (
		inputValidation int
		accessControl   bool
		doubleSpend     bool
		reentrancy      bool
		overflow        bool
	)

	for _, o := range outcomes {
		if !o.Success || !o.Payload() {
			continue
		}
		switch o.Family {
		case models.FamilyInputValidation:
			inputValidation++
		case models.FamilyAccessControl:
			accessControl = true
		case models.FamilyDoubleSpend:
			doubleSpend = true
		case models.FamilyReentrancy:
			reentrancy = true
		case models.FamilyOverflow:
			overflow = true
		}
	}

	var findings []models.Finding

	if inputValidation >= 2 {
		findings = append(findings, models.Finding{
			Category:       "input-validation",
			Type:           "multiple-input-validation",
			Severity:       models.SeverityHigh,
			TargetFunction: "multiple",
			Success:        true,
			Details:        fmt.Sprintf("%d input-validation attacks succeeded; validation is systemically missing", inputValidation),
		})
	}

	if accessControl && doubleSpend {
		findings = append(findings, models.Finding{
			Category:       "combined",
			Type:           "access-control-double-spend",
			Severity:       models.SeverityCritical,
			TargetFunction: "multiple",
			Success:        true,
			Details:        "access-control bypass and double-spend are combinable into fund theft",
		})
	}

	if reentrancy && overflow {
		findings = append(findings, models.Finding{
			Category:       "systemic",
			Type:           "no-basic-protections",
			Severity:       models.SeverityCritical,
			TargetFunction: "program-wide",
			Success:        true,
			Details:        "both reentrancy guards and arithmetic checks are absent",
		})
	}

	return findings
}
