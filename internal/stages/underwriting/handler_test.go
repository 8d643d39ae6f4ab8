// internal/stages/underwriting/handler_test.go
package underwriting

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-pipeline/internal/common/config"
	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) ExtractText(ctx context.Context, documentRef string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeBureau struct {
	report *models.BureauReport
	err    error
}

func (f *fakeBureau) Lookup(ctx context.Context, customerRef string) (*models.BureauReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func createTestPolicy() config.UnderwritingConfig {
	return config.UnderwritingConfig{
		MinCreditScore:           700,
		EMIRatioReviewBound:      0.40,
		EMIRatioRejectBound:      0.50,
		OCRConfidenceFloor:       0.45,
		SalaryMismatchTolerance:  0.20,
		PreApprovedCapMultiplier: 2.0,
		FastTrackRateAnnual:      12.0,
		StandardRateAnnual:       14.0,
		ProcessingFeeMinor:       500000,
	}
}

func createTestHandler(t *testing.T, ocr *fakeOCR, bureau *fakeBureau) *Handler {
	t.Helper()
	return NewHandler(LoadConfig(), createTestPolicy(), ocr, bureau, logger.NewTestLogger(t))
}

// createUnderwritingSession has intake and verification complete: a 5 lakh
// request over 60 months against a 45,000/month declared salary.
func createUnderwritingSession() *models.Session {
	session := models.NewSession("+919000000001")
	session.Stage = models.StageUnderwriting
	session.SetField(fieldRequestedAmount, "50000000")
	session.SetField(fieldTenureMonths, "60")
	session.SetField(fieldDeclaredSalary, "4500000")
	session.SetField(fieldIdentityResult, "matched")
	return session
}

func createCleanReport() *models.BureauReport {
	return &models.BureauReport{
		CustomerID:        "CUST-1001",
		Name:              "Asha Rao",
		CreditScore:       780,
		AnnualIncomeMinor: 54000000,
	}
}

func docTurn(ref string) *models.TurnInput {
	return &models.TurnInput{CustomerRef: "+919000000001", DocumentRef: ref}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Handle_CleanApplicationAdvances(t *testing.T) {
	ocr := &fakeOCR{text: "ACME Corp Payslip\nNet Pay: 45,000\n"}
	bureau := &fakeBureau{report: createCleanReport()}
	h := createTestHandler(t, ocr, bureau)
	session := createUnderwritingSession()

	result, err := h.Handle(context.Background(), session, docTurn("doc-123"))
	require.NoError(t, err)

	assert.Equal(t, models.StageAdvance, result.Outcome)

	require.NotNil(t, session.DecisionRecord)
	assert.Equal(t, models.OutcomeApprove, session.DecisionRecord.Outcome)
	assert.Empty(t, session.DecisionRecord.AnomalyFlags)

	// Derived fields are persisted for the sanction stage.
	emiRaw, ok := session.Field(FieldMonthlyEMI)
	require.True(t, ok)
	emi, err := strconv.ParseInt(emiRaw, 10, 64)
	require.NoError(t, err)
	assert.Greater(t, emi, int64(0))

	rate, _ := session.Field(FieldAnnualRate)
	assert.Equal(t, "14.00", rate)

	estimate, _ := session.Field(FieldSalaryEstimate)
	assert.Equal(t, "4500000", estimate)
}

func TestHandler_Handle_LowCreditScoreRejects(t *testing.T) {
	ocr := &fakeOCR{text: "Net Pay: 45,000\n"}
	report := createCleanReport()
	report.CreditScore = 650
	h := createTestHandler(t, ocr, &fakeBureau{report: report})
	session := createUnderwritingSession()

	result, err := h.Handle(context.Background(), session, docTurn("doc-123"))
	require.NoError(t, err)

	assert.Equal(t, models.StageTerminal, result.Outcome)
	assert.Equal(t, models.StageRejected, result.Terminal)

	require.NotNil(t, session.DecisionRecord)
	assert.Equal(t, models.OutcomeReject, session.DecisionRecord.Outcome)
	assert.Equal(t, []string{"creditScoreBelowMinimum"}, session.DecisionRecord.Reasons)
}

func TestHandler_Handle_SalaryMismatchGoesToManualReview(t *testing.T) {
	// Slip shows 30,000 against a declared 45,000: a 33% shortfall.
	ocr := &fakeOCR{text: "Net Pay: 30,000\n"}
	h := createTestHandler(t, ocr, &fakeBureau{report: createCleanReport()})
	session := createUnderwritingSession()

	result, err := h.Handle(context.Background(), session, docTurn("doc-123"))
	require.NoError(t, err)

	assert.Equal(t, models.StageTerminal, result.Outcome)
	assert.Equal(t, models.StageManualReview, result.Terminal)

	require.NotNil(t, session.DecisionRecord)
	assert.Equal(t, models.OutcomeManualReview, session.DecisionRecord.Outcome)
	assert.Contains(t, session.DecisionRecord.AnomalyFlags, "salaryMismatch")
}

func TestHandler_Handle_UnreadableSlipGoesToManualReview(t *testing.T) {
	ocr := &fakeOCR{text: "scanned page, no figures present"}
	h := createTestHandler(t, ocr, &fakeBureau{report: createCleanReport()})
	session := createUnderwritingSession()

	result, err := h.Handle(context.Background(), session, docTurn("doc-123"))
	require.NoError(t, err)

	assert.Equal(t, models.StageTerminal, result.Outcome)
	assert.Equal(t, models.StageManualReview, result.Terminal)
	assert.Contains(t, session.DecisionRecord.AnomalyFlags, "salaryUnverified")
}

func TestHandler_Handle_FastTrackRateWithinPreApprovedLimit(t *testing.T) {
	ocr := &fakeOCR{text: "Net Pay: 45,000\n"}
	report := createCleanReport()
	limit := int64(60000000)
	report.PreApprovedLimitMinor = &limit
	h := createTestHandler(t, ocr, &fakeBureau{report: report})
	session := createUnderwritingSession()

	result, err := h.Handle(context.Background(), session, docTurn("doc-123"))
	require.NoError(t, err)

	assert.Equal(t, models.StageAdvance, result.Outcome)
	rate, _ := session.Field(FieldAnnualRate)
	assert.Equal(t, "12.00", rate)
	assert.Contains(t, session.DecisionRecord.Reasons, "withinPreApprovedLimit")
}

// ==========================
// Failure Propagation
// ==========================

func TestHandler_Handle_OCRErrorPropagates(t *testing.T) {
	ocr := &fakeOCR{err: assert.AnError}
	h := createTestHandler(t, ocr, &fakeBureau{report: createCleanReport()})
	session := createUnderwritingSession()

	_, err := h.Handle(context.Background(), session, docTurn("doc-123"))
	assert.Error(t, err)
	assert.Nil(t, session.DecisionRecord, "no verdict may be recorded on a failed turn")
}

func TestHandler_Handle_BureauErrorPropagates(t *testing.T) {
	ocr := &fakeOCR{text: "Net Pay: 45,000\n"}
	h := createTestHandler(t, ocr, &fakeBureau{err: assert.AnError})
	session := createUnderwritingSession()

	_, err := h.Handle(context.Background(), session, docTurn("doc-123"))
	assert.Error(t, err)
	assert.Nil(t, session.DecisionRecord)
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Handle_MissingDocumentPrompts(t *testing.T) {
	ocr := &fakeOCR{text: "Net Pay: 45,000\n"}
	h := createTestHandler(t, ocr, &fakeBureau{report: createCleanReport()})
	session := createUnderwritingSession()

	result, err := h.Handle(context.Background(), session, &models.TurnInput{CustomerRef: session.CustomerRef})
	require.NoError(t, err)

	assert.Equal(t, models.StageContinue, result.Outcome)
	assert.Equal(t, promptNeedDocument, result.Prompt)
	assert.Equal(t, 0, ocr.calls)
}

func TestHandler_Handle_DocumentRefIsRemembered(t *testing.T) {
	ocr := &fakeOCR{text: "Net Pay: 45,000\n"}
	h := createTestHandler(t, ocr, &fakeBureau{report: createCleanReport()})
	session := createUnderwritingSession()

	_, err := h.Handle(context.Background(), session, docTurn("doc-123"))
	require.NoError(t, err)

	ref, ok := session.Field(FieldSalaryDocumentRef)
	require.True(t, ok)
	assert.Equal(t, "doc-123", ref)
}

func TestComputeMonthlyEMI(t *testing.T) {
	// 1,00,000 at 12% over 12 months is the textbook 8,884.88 EMI.
	emi := computeMonthlyEMI(10000000, 12.0, 12)
	assert.InDelta(t, 888488, emi, 1)

	// Zero rate falls back to straight division, rounded up.
	assert.Equal(t, int64(100), computeMonthlyEMI(1200, 0, 12))
	assert.Equal(t, int64(101), computeMonthlyEMI(1201, 0, 12))
}
