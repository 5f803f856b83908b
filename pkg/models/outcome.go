package models

// Family discriminates attack-outcome variants. Exactly one payload field
// on AttackOutcome is non-nil and it must match the Family tag.
type Family string

const (
	FamilyOverflow        Family = "overflow"
	FamilyReentrancy      Family = "reentrancy"
	FamilyAccessControl   Family = "access-control"
	FamilyInputValidation Family = "input-validation"
	FamilyDoubleSpend     Family = "double-spend"
	FamilyDOS             Family = "dos"
)

// AttackOutcome is the result record returned by one attack-execution
// routine. Outcomes are immutable once produced and consumed exactly once
// by the classifier.
type AttackOutcome struct {
	Family         Family   `json:"family"`
	Success        bool     `json:"success"`
	TargetFunction string   `json:"target_function"`
	Program        string   `json:"program"`
	Signature      string   `json:"signature,omitempty"`
	Logs           []string `json:"logs,omitempty"`
	Error          string   `json:"error,omitempty"`

	Overflow        *OverflowDetails        `json:"overflow,omitempty"`
	Reentrancy      *ReentrancyDetails      `json:"reentrancy,omitempty"`
	AccessControl   *AccessControlDetails   `json:"access_control,omitempty"`
	InputValidation *InputValidationDetails `json:"input_validation,omitempty"`
	DoubleSpend     *DoubleSpendDetails     `json:"double_spend,omitempty"`
	DOS             *DOSDetails             `json:"dos,omitempty"`
}

// OverflowDetails describes an arithmetic overflow or underflow attempt.
type OverflowDetails struct {
	AttemptedValue string `json:"attempted_value"`
	Operation      string `json:"operation,omitempty"` // add, sub, mul
}

// ReentrancyDetails describes a reentrant-call attempt.
type ReentrancyDetails struct {
	Depth        int  `json:"depth"`
	CrossProgram bool `json:"cross_program"`
}

// AccessControlDetails describes an access-control bypass attempt.
type AccessControlDetails struct {
	AttackerRole string `json:"attacker_role"`
	RequiredRole string `json:"required_role"`
}

// InputValidationDetails describes an input-validation probe.
type InputValidationDetails struct {
	TestType string `json:"test_type"` // boundary, malformed, injection
	Input    string `json:"input,omitempty"`
}

// DoubleSpendDetails describes a double-spend attempt.
type DoubleSpendDetails struct {
	AttemptedSpends  int `json:"attempted_spends"`
	SuccessfulSpends int `json:"successful_spends"`
}

// DOSDetails describes a denial-of-service attempt with the resources the
// attack managed to consume. Zero counters mean "not measured".
type DOSDetails struct {
	Resources ResourceUsage `json:"resources"`
}

// ResourceUsage records resources consumed by a DOS attack.
type ResourceUsage struct {
	ComputeUnits     int64 `json:"compute_units,omitempty"`
	AccountsCreated  int   `json:"accounts_created,omitempty"`
	TransactionsSent int   `json:"transactions_sent,omitempty"`
	DataSize         int64 `json:"data_size,omitempty"`
}

// Payload returns whether the outcome carries the payload matching its
// Family tag. Outcomes failing this check are malformed and classify to
// no finding.
func (o *AttackOutcome) Payload() bool {
	switch o.Family {
	case FamilyOverflow:
		return o.Overflow != nil
	case FamilyReentrancy:
		return o.Reentrancy != nil
	case FamilyAccessControl:
		return o.AccessControl != nil
	case FamilyInputValidation:
		return o.InputValidation != nil
	case FamilyDoubleSpend:
		return o.DoubleSpend != nil
	case FamilyDOS:
		return o.DOS != nil
	default:
		return false
	}
}
