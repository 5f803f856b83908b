package detect

import (
	"fmt"
	"strings"

	"chainaudit/pkg/models"
)

// Config controls classification thresholds and scoring weights. Zero
// values fall back to the documented defaults.
type Config struct {
	// DOS thresholds, checked in this order; first match wins.
	DOSComputeCritical  int64
	DOSAccountsCritical int
	DOSTransactionsHigh int
	DOSDataSizeHigh     int64
	DOSComputeMedium    int64
	// Roles whose bypass upgrades an access-control finding to critical.
	AdminRoles []string

	// Scoring weights.
	BaseWeight      int
	BaseCap         int
	CriticalWeight  int
	SeverityWeights map[string]int
	ScoreCap        int
}

func (c Config) withDefaults() Config {
	if c.DOSComputeCritical <= 0 {
		c.DOSComputeCritical = 1_000_000
	}
	if c.DOSAccountsCritical <= 0 {
		c.DOSAccountsCritical = 50
	}
	if c.DOSTransactionsHigh <= 0 {
		c.DOSTransactionsHigh = 100
	}
	if c.DOSDataSizeHigh <= 0 {
		c.DOSDataSizeHigh = 100_000
	}
	if c.DOSComputeMedium <= 0 {
		c.DOSComputeMedium = 500_000
	}
	if len(c.AdminRoles) == 0 {
		c.AdminRoles = []string{"admin", "owner", "authority", "upgrade-authority"}
	}
	if c.BaseWeight <= 0 {
		c.BaseWeight = 10
	}
	if c.BaseCap <= 0 {
		c.BaseCap = 40
	}
	if c.CriticalWeight <= 0 {
		c.CriticalWeight = 20
	}
	if len(c.SeverityWeights) == 0 {
		c.SeverityWeights = map[string]int{
			models.SeverityCritical: 15,
			models.SeverityHigh:     10,
			models.SeverityMedium:   5,
			models.SeverityLow:      2,
		}
	}
	if c.ScoreCap <= 0 {
		c.ScoreCap = 100
	}
	return c
}

// Classifier turns single attack outcomes into findings.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier with defaults applied.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg.withDefaults()}
}

// Classify inspects one outcome and returns its finding, if any. Failed
// attacks, unknown families and outcomes missing their family payload
// yield no finding; they are never an error.
func (c *Classifier) Classify(o models.AttackOutcome) (models.Finding, bool) {
	if !o.Success || !o.Payload() {
		return models.Finding{}, false
	}

	switch o.Family {
	case models.FamilyOverflow:
		return c.classifyOverflow(o), true
	case models.FamilyReentrancy:
		return c.classifyReentrancy(o), true
	case models.FamilyAccessControl:
		return c.classifyAccessControl(o), true
	case models.FamilyInputValidation:
		return c.classifyInputValidation(o), true
	case models.FamilyDoubleSpend:
		return c.classifyDoubleSpend(o), true
	case models.FamilyDOS:
		return c.classifyDOS(o), true
	default:
		return models.Finding{}, false
	}
}

// Arithmetic safety is zero-tolerance: any successful overflow is critical.
func (c *Classifier) classifyOverflow(o models.AttackOutcome) models.Finding {
	return models.Finding{
		Category:       "arithmetic",
		Type:           "overflow",
		Severity:       models.SeverityCritical,
		TargetFunction: o.TargetFunction,
		Success:        true,
		Details:        fmt.Sprintf("arithmetic check bypassed with value %s", o.Overflow.AttemptedValue),
	}
}

func (c *Classifier) classifyReentrancy(o models.AttackOutcome) models.Finding {
	severity := models.SeverityHigh
	details := fmt.Sprintf("reentrant call accepted at depth %d", o.Reentrancy.Depth)
	if o.Reentrancy.CrossProgram {
		severity = models.SeverityCritical
		details = fmt.Sprintf("cross-program reentrancy accepted at depth %d", o.Reentrancy.Depth)
	}
	return models.Finding{
		Category:       "reentrancy",
		Type:           "reentrancy",
		Severity:       severity,
		TargetFunction: o.TargetFunction,
		Success:        true,
		Details:        details,
	}
}

func (c *Classifier) classifyAccessControl(o models.AttackOutcome) models.Finding {
	severity := models.SeverityHigh
	if c.isAdminRole(o.AccessControl.RequiredRole) {
		severity = models.SeverityCritical
	}
	return models.Finding{
		Category:       "access-control",
		Type:           "unauthorized-access",
		Severity:       severity,
		TargetFunction: o.TargetFunction,
		Success:        true,
		Details: fmt.Sprintf("role %q performed an action requiring role %q",
			o.AccessControl.AttackerRole, o.AccessControl.RequiredRole),
	}
}

func (c *Classifier) classifyInputValidation(o models.AttackOutcome) models.Finding {
	severity := models.SeverityHigh
	if o.InputValidation.TestType == "boundary" {
		severity = models.SeverityMedium
	}
	return models.Finding{
		Category:       "input-validation",
		Type:           o.InputValidation.TestType,
		Severity:       severity,
		TargetFunction: o.TargetFunction,
		Success:        true,
		Details:        fmt.Sprintf("%s input accepted without validation", o.InputValidation.TestType),
	}
}

func (c *Classifier) classifyDoubleSpend(o models.AttackOutcome) models.Finding {
	return models.Finding{
		Category:       "double-spend",
		Type:           "double-spend",
		Severity:       models.SeverityCritical,
		TargetFunction: o.TargetFunction,
		Success:        true,
		Details: fmt.Sprintf("%d of %d duplicate spends landed",
			o.DoubleSpend.SuccessfulSpends, o.DoubleSpend.AttemptedSpends),
	}
}

func (c *Classifier) classifyDOS(o models.AttackOutcome) models.Finding {
	r := o.DOS.Resources
	return models.Finding{
		Category:       "dos",
		Type:           "resource-exhaustion",
		Severity:       c.dosSeverity(r),
		TargetFunction: o.TargetFunction,
		Success:        true,
		Details: fmt.Sprintf("consumed cu=%d accounts=%d txs=%d bytes=%d",
			r.ComputeUnits, r.AccountsCreated, r.TransactionsSent, r.DataSize),
	}
}

// dosSeverity is a pure function of the four resource counters. Threshold
// order matters; the first match wins.
func (c *Classifier) dosSeverity(r models.ResourceUsage) string {
	switch {
	case r.ComputeUnits > c.cfg.DOSComputeCritical:
		return models.SeverityCritical
	case r.AccountsCreated > c.cfg.DOSAccountsCritical:
		return models.SeverityCritical
	case r.TransactionsSent > c.cfg.DOSTransactionsHigh:
		return models.SeverityHigh
	case r.DataSize > c.cfg.DOSDataSizeHigh:
		return models.SeverityHigh
	case r.ComputeUnits > c.cfg.DOSComputeMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func (c *Classifier) isAdminRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, admin := range c.cfg.AdminRoles {
		if role == admin {
			return true
		}
	}
	return false
}
