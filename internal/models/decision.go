// internal/models/decision.go
package models

// Outcome is the final disposition of a decision verdict.
type Outcome string

const (
	OutcomeApprove      Outcome = "approve"
	OutcomeReject       Outcome = "reject"
	OutcomeManualReview Outcome = "manual_review"
)

// Verdict is the structured output of the decision engine. Reasons records
// every fired rule in evaluation order, regardless of the final outcome.
type Verdict struct {
	Outcome      Outcome  `json:"outcome"`
	Reasons      []string `json:"reasons"`
	AnomalyFlags []string `json:"anomalyFlags"`
}

// SalaryEstimate is the scored result of document salary extraction.
// Amount is a currency-agnostic minor-unit integer.
type SalaryEstimate struct {
	Amount          int64   `json:"amount"`
	Confidence      float64 `json:"confidence"`
	SourceHeuristic string  `json:"sourceHeuristic"`
}

// IdentityResult is the outcome band of the identity verification check.
type IdentityResult string

const (
	IdentityMatched       IdentityResult = "matched"
	IdentityLowConfidence IdentityResult = "low_confidence"
	IdentityNoMatch       IdentityResult = "no_match"
)

// ApplicantFacts is the full input to the decision engine. All monetary
// values are minor-unit integers.
type ApplicantFacts struct {
	CreditScore          int             `json:"creditScore"`
	RequestedAmountMinor int64           `json:"requestedAmountMinor"`
	MonthlyEMIMinor      int64           `json:"monthlyEmiMinor"`
	DeclaredSalaryMinor  int64           `json:"declaredSalaryMinor"`
	SalaryEstimate       *SalaryEstimate `json:"salaryEstimate,omitempty"`
	PreApprovedMinor     *int64          `json:"preApprovedMinor,omitempty"`
	IdentityResult       IdentityResult  `json:"identityResult"`
}
