// internal/stages/verification/handler.go
package verification

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/external"
	"loan-pipeline/internal/models"
)

const (
	StageName = "verification"
)

type Handler struct {
	identity external.IdentityClient
	config   *Config
	logger   logger.Logger
}

func NewHandler(config *Config, identity external.IdentityClient, log logger.Logger) *Handler {
	return &Handler{
		identity: identity,
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

// Handle runs the KYC identity check against the claimed name. A matched
// band advances immediately. Weaker bands give the customer a bounded
// number of chances to restate the name; once those are spent the band is
// recorded as-is and the pipeline moves on, leaving the mismatch for
// underwriting to weigh. Service failures propagate to the caller, which
// owns retry and escalation.
func (h *Handler) Handle(ctx context.Context, session *models.Session, input *models.TurnInput) (*models.StageResult, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	name := h.claimedName(session, input)
	if name == "" {
		return models.ContinueWith(promptMissingName), nil
	}

	result, err := h.identity.Verify(ctx, session.CustomerRef, name)
	if err != nil {
		h.logger.Error("identity verification failed", map[string]interface{}{
			"sessionId": session.SessionID,
			"error":     err.Error(),
		})
		return nil, err
	}

	h.logger.Info("identity check complete", map[string]interface{}{
		"sessionId": session.SessionID,
		"result":    string(result),
	})

	if result == models.IdentityMatched {
		session.SetField(FieldIdentityResult, string(models.IdentityMatched))
		return models.Advance(), nil
	}

	attempts := h.bumpNameAttempts(session)
	if attempts <= h.config.MaxNameRetries {
		return models.ContinueWith(promptRetryName), nil
	}

	session.SetField(FieldIdentityResult, string(result))
	return models.Advance(), nil
}

// claimedName prefers a freshly restated name over the one collected at
// intake, so a retry turn actually changes the input to the KYC check.
func (h *Handler) claimedName(session *models.Session, input *models.TurnInput) string {
	if text := strings.TrimSpace(input.Text); text != "" {
		if name, ok := sanitizeName(text); ok {
			session.SetField(fieldCustomerName, name)
			return name
		}
	}
	name, _ := session.Field(fieldCustomerName)
	return name
}

func (h *Handler) bumpNameAttempts(session *models.Session) int {
	attempts := 0
	if raw, ok := session.Field(FieldNameAttempts); ok {
		attempts, _ = strconv.Atoi(raw)
	}
	attempts++
	session.SetField(FieldNameAttempts, strconv.Itoa(attempts))
	return attempts
}

var (
	nameCollapseRegex = regexp.MustCompile(`\s+`)
	nameStripRegex    = regexp.MustCompile(`[^a-zA-Z\s\-\.']`)
	nameValidRegex    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z\s\-\.']{1,99}$`)
)

func sanitizeName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	name = nameCollapseRegex.ReplaceAllString(name, " ")
	name = nameStripRegex.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if !nameValidRegex.MatchString(name) {
		return "", false
	}
	return name, true
}
