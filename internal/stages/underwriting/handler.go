// internal/stages/underwriting/handler.go
package underwriting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"loan-pipeline/internal/common/config"
	stderrors "loan-pipeline/internal/common/errors"
	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/common/metrics"
	"loan-pipeline/internal/decision"
	"loan-pipeline/internal/external"
	"loan-pipeline/internal/models"
	"loan-pipeline/internal/salary"
)

const (
	StageName = "underwriting"
)

type Handler struct {
	config *Config
	policy config.UnderwritingConfig
	ocr    external.OCRClient
	bureau external.CreditBureauClient
	engine *decision.Engine
	logger logger.Logger
}

func NewHandler(config *Config, policy config.UnderwritingConfig, ocr external.OCRClient, bureau external.CreditBureauClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		policy: policy,
		ocr:    ocr,
		bureau: bureau,
		engine: decision.NewEngine(policy),
		logger: log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

// Handle gathers the underwriting evidence and records the verdict. The
// flow is: salary slip OCR, salary extraction, bureau lookup, EMI
// computation, then one pass through the decision engine. The verdict is
// written to the session exactly once; the transition follows the
// outcome.
func (h *Handler) Handle(ctx context.Context, session *models.Session, input *models.TurnInput) (*models.StageResult, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	if input.DocumentRef != "" {
		session.SetField(FieldSalaryDocumentRef, input.DocumentRef)
	}
	docRef, ok := session.Field(FieldSalaryDocumentRef)
	if !ok {
		return models.ContinueWith(promptNeedDocument), nil
	}

	estimate, err := h.extractSalary(ctx, session, docRef)
	if err != nil {
		return nil, err
	}

	report, err := h.bureau.Lookup(ctx, session.CustomerRef)
	if err != nil {
		h.logger.Error("bureau lookup failed", map[string]interface{}{
			"sessionId": session.SessionID,
			"error":     err.Error(),
		})
		return nil, err
	}

	facts, err := h.assembleFacts(session, report, estimate)
	if err != nil {
		return nil, err
	}

	verdict := h.engine.Decide(*facts)
	if err := session.RecordDecision(&verdict); err != nil {
		return nil, stderrors.NewDecisionAlreadyRecordedError(session.SessionID)
	}
	metrics.DecisionsTotal.WithLabelValues(string(verdict.Outcome)).Inc()

	h.logger.Info("verdict recorded", map[string]interface{}{
		"sessionId": session.SessionID,
		"outcome":   string(verdict.Outcome),
		"reasons":   verdict.Reasons,
		"flags":     verdict.AnomalyFlags,
	})

	switch verdict.Outcome {
	case models.OutcomeApprove:
		return models.Advance(), nil
	case models.OutcomeReject:
		return models.TerminalWith(models.StageRejected, "We are unable to approve this application."), nil
	default:
		return models.TerminalWith(models.StageManualReview, "Your application needs a closer look. Our team will contact you."), nil
	}
}

// extractSalary runs OCR over the salary slip and scores the text. A
// document with no usable salary figure is not an error; the engine
// treats the missing estimate as its own signal.
func (h *Handler) extractSalary(ctx context.Context, session *models.Session, docRef string) (*models.SalaryEstimate, error) {
	rawText, err := h.ocr.ExtractText(ctx, docRef)
	if err != nil {
		h.logger.Error("ocr extraction failed", map[string]interface{}{
			"sessionId":   session.SessionID,
			"documentRef": docRef,
			"error":       err.Error(),
		})
		return nil, err
	}

	estimate, err := salary.Extract(rawText)
	if err != nil {
		if errors.Is(err, salary.ErrNotFound) {
			h.logger.Warn("no salary figure found in document", map[string]interface{}{
				"sessionId":   session.SessionID,
				"documentRef": docRef,
			})
			return nil, nil
		}
		return nil, err
	}

	session.SetField(FieldSalaryEstimate, strconv.FormatInt(estimate.Amount, 10))
	session.SetField(FieldSalaryConfidence, strconv.FormatFloat(estimate.Confidence, 'f', -1, 64))
	session.SetField(FieldSalaryHeuristic, estimate.SourceHeuristic)
	return estimate, nil
}

func (h *Handler) assembleFacts(session *models.Session, report *models.BureauReport, estimate *models.SalaryEstimate) (*models.ApplicantFacts, error) {
	requested, err := requiredInt64Field(session, fieldRequestedAmount)
	if err != nil {
		return nil, err
	}
	tenure, err := requiredIntField(session, fieldTenureMonths)
	if err != nil {
		return nil, err
	}
	declared, err := requiredInt64Field(session, fieldDeclaredSalary)
	if err != nil {
		return nil, err
	}

	rate := h.policy.StandardRateAnnual
	if report.PreApprovedLimitMinor != nil && requested <= *report.PreApprovedLimitMinor {
		rate = h.policy.FastTrackRateAnnual
	}

	emi := computeMonthlyEMI(requested, rate, tenure)
	session.SetField(FieldMonthlyEMI, strconv.FormatInt(emi, 10))
	session.SetField(FieldAnnualRate, strconv.FormatFloat(rate, 'f', 2, 64))

	identityRaw, _ := session.Field(fieldIdentityResult)

	return &models.ApplicantFacts{
		CreditScore:          report.CreditScore,
		RequestedAmountMinor: requested,
		MonthlyEMIMinor:      emi,
		DeclaredSalaryMinor:  declared,
		SalaryEstimate:       estimate,
		PreApprovedMinor:     report.PreApprovedLimitMinor,
		IdentityResult:       models.IdentityResult(identityRaw),
	}, nil
}

// computeMonthlyEMI applies the standard amortization formula
// P*r*(1+r)^n / ((1+r)^n - 1) with r as the monthly rate fraction,
// rounded to the nearest minor unit.
func computeMonthlyEMI(principalMinor int64, annualRatePercent float64, tenureMonths int) int64 {
	if tenureMonths <= 0 {
		return principalMinor
	}
	r := annualRatePercent / 12.0 / 100.0
	if r == 0 {
		return (principalMinor + int64(tenureMonths) - 1) / int64(tenureMonths)
	}
	pow := math.Pow(1+r, float64(tenureMonths))
	emi := float64(principalMinor) * r * pow / (pow - 1)
	return int64(math.Round(emi))
}

func requiredInt64Field(session *models.Session, name string) (int64, error) {
	raw, ok := session.Field(name)
	if !ok {
		return 0, fmt.Errorf("session %s reached underwriting without field %s", session.SessionID, name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("session %s has invalid %s: %q", session.SessionID, name, raw)
	}
	return v, nil
}

func requiredIntField(session *models.Session, name string) (int, error) {
	v, err := requiredInt64Field(session, name)
	return int(v), err
}
