// internal/stages/sanction/handler.go
package sanction

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"loan-pipeline/internal/common/config"
	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/external"
	"loan-pipeline/internal/models"
)

const (
	StageName = "sanction"
)

type Handler struct {
	config   *Config
	policy   config.UnderwritingConfig
	renderer external.RenderClient
	logger   logger.Logger

	// now is swappable so tests get stable application IDs.
	now func() time.Time
}

func NewHandler(config *Config, policy config.UnderwritingConfig, renderer external.RenderClient, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		policy:   policy,
		renderer: renderer,
		logger:   log.WithFields(map[string]interface{}{"stage": StageName}),
		now:      time.Now,
	}
}

// Handle assembles the sanction letter from the figures underwriting
// persisted and sends it to the renderer. A render failure leaves the
// session in this stage so the turn can be retried; success closes the
// pipeline with an approval.
func (h *Handler) Handle(ctx context.Context, session *models.Session, input *models.TurnInput) (*models.StageResult, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	letter, err := h.buildLetter(session)
	if err != nil {
		return nil, err
	}

	if _, err := h.renderer.Render(ctx, letter); err != nil {
		h.logger.Error("sanction letter rendering failed", map[string]interface{}{
			"sessionId":     session.SessionID,
			"applicationId": letter.ApplicationID,
			"error":         err.Error(),
		})
		return nil, err
	}

	session.SetField(FieldApplicationID, letter.ApplicationID)

	h.logger.Info("sanction letter issued", map[string]interface{}{
		"sessionId":         session.SessionID,
		"applicationId":     letter.ApplicationID,
		"totalPayableMinor": letter.TotalPayableMinor,
	})

	prompt := fmt.Sprintf("Congratulations! Your loan %s is approved. Your sanction letter is on its way.", letter.ApplicationID)
	return models.TerminalWith(models.StageApproved, prompt), nil
}

func (h *Handler) buildLetter(session *models.Session) (*models.SanctionLetter, error) {
	customerName, ok := session.Field(fieldCustomerName)
	if !ok {
		return nil, fmt.Errorf("session %s reached sanction without field %s", session.SessionID, fieldCustomerName)
	}

	principal, err := requiredInt64Field(session, fieldRequestedAmount)
	if err != nil {
		return nil, err
	}
	tenure, err := requiredInt64Field(session, fieldTenureMonths)
	if err != nil {
		return nil, err
	}
	emi, err := requiredInt64Field(session, fieldMonthlyEMI)
	if err != nil {
		return nil, err
	}

	rateRaw, ok := session.Field(fieldAnnualRate)
	if !ok {
		return nil, fmt.Errorf("session %s reached sanction without field %s", session.SessionID, fieldAnnualRate)
	}
	rate, err := strconv.ParseFloat(rateRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s has invalid %s: %q", session.SessionID, fieldAnnualRate, rateRaw)
	}

	totalInterest := emi*tenure - principal
	if totalInterest < 0 {
		totalInterest = 0
	}

	// The processing fee applies only to standard-rate sanctions; the
	// fast-track rate waives it.
	var fee int64
	if rate > h.policy.FastTrackRateAnnual {
		fee = h.policy.ProcessingFeeMinor
	}

	issuedAt := h.now().UTC()
	return &models.SanctionLetter{
		ApplicationID:      fmt.Sprintf("LOAN%d", issuedAt.UnixMilli()),
		CustomerRef:        session.CustomerRef,
		CustomerName:       customerName,
		PrincipalMinor:     principal,
		TenureMonths:       int(tenure),
		AnnualRatePercent:  rate,
		MonthlyEMIMinor:    emi,
		TotalInterestMinor: totalInterest,
		ProcessingFeeMinor: fee,
		TotalPayableMinor:  emi*tenure + fee,
		IssuedAt:           issuedAt,
	}, nil
}

func requiredInt64Field(session *models.Session, name string) (int64, error) {
	raw, ok := session.Field(name)
	if !ok {
		return 0, fmt.Errorf("session %s reached sanction without field %s", session.SessionID, name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("session %s has invalid %s: %q", session.SessionID, name, raw)
	}
	return v, nil
}
