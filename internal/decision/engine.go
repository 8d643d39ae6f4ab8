// internal/decision/engine.go
package decision

import (
	"github.com/shopspring/decimal"

	"loan-pipeline/internal/common/config"
	"loan-pipeline/internal/models"
)

// Rule identifiers, named by what fired. Every fired rule is recorded in
// Verdict.Reasons in evaluation order; anomaly rules additionally appear in
// Verdict.AnomalyFlags.
const (
	ReasonCreditScoreBelowMinimum     = "creditScoreBelowMinimum"
	ReasonWithinPreApprovedLimit      = "withinPreApprovedLimit"
	ReasonAmountExceedsPreApprovedCap = "amountExceedsPreApprovedCap"
	ReasonEMIRatioExceedsLimit        = "emiRatioExceedsLimit"
	ReasonEMIRatioElevated            = "emiRatioElevated"

	FlagSalaryMismatch   = "salaryMismatch"
	FlagLowOCRConfidence = "lowOcrConfidence"
	FlagSalaryUnverified = "salaryUnverified"
	FlagIdentityMismatch = "identityMismatch"
)

// Engine evaluates applicant facts against the configured credit policy.
// Decide is pure and side-effect-free; all thresholds come from config.
type Engine struct {
	cfg config.UnderwritingConfig
}

func NewEngine(cfg config.UnderwritingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Decide runs the rules in their fixed order:
//
//  1. credit-score minimum (strictly below rejects; a score equal to the
//     configured minimum passes) — terminal, short-circuits everything else
//  2. pre-approved limit: fast-track signal when within limit, reject when
//     the requested amount exceeds the configured cap multiple of the limit
//  3. EMI-to-salary ratio severity bands
//  4. salary consistency between the OCR estimate and the declared salary
//  5. identity verification result
//
// Combination: any reject rule wins outright; otherwise any anomaly flag or
// elevated-ratio reason resolves to manual review; otherwise approve.
func (e *Engine) Decide(facts models.ApplicantFacts) models.Verdict {
	reasons := []string{}
	flags := []string{}

	// Rule 1: credit-score minimum, terminal.
	if facts.CreditScore < e.cfg.MinCreditScore {
		return models.Verdict{
			Outcome:      models.OutcomeReject,
			Reasons:      []string{ReasonCreditScoreBelowMinimum},
			AnomalyFlags: flags,
		}
	}

	reject := false
	needsReview := false

	// Rule 2: pre-approved limit.
	if facts.PreApprovedMinor != nil {
		limit := *facts.PreApprovedMinor
		hardCap := decimal.NewFromInt(limit).Mul(decimal.NewFromFloat(e.cfg.PreApprovedCapMultiplier))
		switch {
		case facts.RequestedAmountMinor <= limit:
			reasons = append(reasons, ReasonWithinPreApprovedLimit)
		case decimal.NewFromInt(facts.RequestedAmountMinor).GreaterThan(hardCap):
			reasons = append(reasons, ReasonAmountExceedsPreApprovedCap)
			reject = true
		}
	}

	// Rule 3: EMI-to-salary ratio bands.
	ratio := emiRatio(facts.MonthlyEMIMinor, facts.DeclaredSalaryMinor)
	switch {
	case ratio.GreaterThan(decimal.NewFromFloat(e.cfg.EMIRatioRejectBound)):
		reasons = append(reasons, ReasonEMIRatioExceedsLimit)
		reject = true
	case ratio.GreaterThan(decimal.NewFromFloat(e.cfg.EMIRatioReviewBound)):
		reasons = append(reasons, ReasonEMIRatioElevated)
		needsReview = true
	}

	// Rule 4: salary consistency.
	if facts.SalaryEstimate == nil {
		reasons = append(reasons, FlagSalaryUnverified)
		flags = append(flags, FlagSalaryUnverified)
	} else {
		if facts.SalaryEstimate.Confidence < e.cfg.OCRConfidenceFloor {
			reasons = append(reasons, FlagLowOCRConfidence)
			flags = append(flags, FlagLowOCRConfidence)
		}
		if salaryDeviation(facts.SalaryEstimate.Amount, facts.DeclaredSalaryMinor).
			GreaterThan(decimal.NewFromFloat(e.cfg.SalaryMismatchTolerance)) {
			reasons = append(reasons, FlagSalaryMismatch)
			flags = append(flags, FlagSalaryMismatch)
		}
	}

	// Rule 5: identity verification.
	if facts.IdentityResult != models.IdentityMatched {
		reasons = append(reasons, FlagIdentityMismatch)
		flags = append(flags, FlagIdentityMismatch)
	}

	outcome := models.OutcomeApprove
	switch {
	case reject:
		outcome = models.OutcomeReject
	case len(flags) > 0 || needsReview:
		outcome = models.OutcomeManualReview
	}

	return models.Verdict{
		Outcome:      outcome,
		Reasons:      reasons,
		AnomalyFlags: flags,
	}
}

// emiRatio treats a missing declared salary as unaffordable rather than
// dividing by zero.
func emiRatio(emiMinor, declaredMinor int64) decimal.Decimal {
	if declaredMinor <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(emiMinor).Div(decimal.NewFromInt(declaredMinor))
}

func salaryDeviation(estimateMinor, declaredMinor int64) decimal.Decimal {
	if declaredMinor <= 0 {
		return decimal.NewFromInt(1)
	}
	diff := estimateMinor - declaredMinor
	if diff < 0 {
		diff = -diff
	}
	return decimal.NewFromInt(diff).Div(decimal.NewFromInt(declaredMinor))
}
