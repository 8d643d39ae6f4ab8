// internal/stages/intake/handler.go
package intake

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/common/validation"
	"loan-pipeline/internal/external"
	"loan-pipeline/internal/models"
)

const (
	StageName = "intake"
)

var (
	ErrAmountLooksLikePhone = errors.New("AMOUNT_LOOKS_LIKE_PHONE_NUMBER")
	ErrNoAmountFound        = errors.New("NO_AMOUNT_FOUND")
)

type Handler struct {
	config   *Config
	dialogue external.DialogueClient
	logger   logger.Logger
}

func NewHandler(config *Config, dialogue external.DialogueClient, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		dialogue: dialogue,
		logger:   log.WithFields(map[string]interface{}{"stage": StageName}),
	}
}

// Handle collects the required application fields one prompt at a time.
// The dialogue service is consulted for slot extraction when available,
// with local parsing as the fallback, so a dialogue outage degrades the
// experience without blocking the turn.
func (h *Handler) Handle(ctx context.Context, session *models.Session, input *models.TurnInput) (*models.StageResult, error) {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	h.logger.Info("processing turn", map[string]interface{}{
		"sessionId": session.SessionID,
		"hasText":   input.Text != "",
	})

	h.applyStructuredFields(session, input.Fields)

	awaiting := h.firstMissingField(session)
	if awaiting != "" && strings.TrimSpace(input.Text) != "" {
		h.applyUtterance(ctx, session, awaiting, input.Text)
	}

	if missing := h.firstMissingField(session); missing != "" {
		return models.ContinueWith(fieldPrompts[missing]), nil
	}

	h.logger.Info("intake complete", map[string]interface{}{
		"sessionId": session.SessionID,
	})
	return models.Advance(), nil
}

// applyStructuredFields accepts pre-parsed fields from the edge. The batch
// is checked against the structured-fields schema first; fields that fail
// are skipped individually so one bad value does not discard the rest.
func (h *Handler) applyStructuredFields(session *models.Session, fields map[string]string) {
	if len(fields) == 0 {
		return
	}

	doc := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		doc[name] = value
	}
	checked := validation.ValidateInput(doc, structuredFieldsSchema)
	if !checked.Valid {
		h.logger.Warn("structured fields failed validation", map[string]interface{}{
			"sessionId": session.SessionID,
			"errors":    checked.GetErrorMessages(),
		})
	}

	for name, value := range fields {
		if checked.HasErrors(name) {
			continue
		}
		switch name {
		case FieldCustomerName:
			if sanitized, ok := sanitizeName(value); ok {
				session.SetField(name, sanitized)
			}
		case FieldRequestedAmount, FieldDeclaredSalary:
			if v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && v > 0 {
				session.SetField(name, strconv.FormatInt(v, 10))
			}
		case FieldTenureMonths:
			if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v >= 1 && v <= 480 {
				session.SetField(name, strconv.Itoa(v))
			}
		}
	}
}

// applyUtterance fills fields from free text. Dialogue slots are applied
// first; the awaited field then falls back to local parsing if still unset.
func (h *Handler) applyUtterance(ctx context.Context, session *models.Session, awaiting, text string) {
	interpretation, err := h.dialogue.Interpret(ctx, StageName+":"+awaiting, text)
	if err != nil {
		h.logger.Warn("dialogue unavailable, using local parsing", map[string]interface{}{
			"sessionId": session.SessionID,
			"error":     err.Error(),
		})
	} else {
		for slot, value := range interpretation.Slots {
			field, ok := slotToField[slot]
			if !ok {
				continue
			}
			h.parseAndSet(session, field, value)
		}
	}

	if _, ok := session.Field(awaiting); !ok {
		h.parseAndSet(session, awaiting, text)
	}
}

func (h *Handler) parseAndSet(session *models.Session, field, raw string) {
	switch field {
	case FieldCustomerName:
		if sanitized, ok := sanitizeName(raw); ok {
			session.SetField(field, sanitized)
		}
	case FieldRequestedAmount, FieldDeclaredSalary:
		minor, err := parseAmountMinor(raw)
		if err != nil {
			h.logger.Debug("amount parse failed", map[string]interface{}{
				"field": field,
				"error": err.Error(),
			})
			return
		}
		session.SetField(field, strconv.FormatInt(minor, 10))
	case FieldTenureMonths:
		months, ok := parseTenureMonths(raw)
		if !ok {
			return
		}
		session.SetField(field, strconv.Itoa(months))
	}
}

func (h *Handler) firstMissingField(session *models.Session) string {
	for _, field := range requiredFields {
		if _, ok := session.Field(field); !ok {
			return field
		}
	}
	return ""
}

// sanitizeName trims, collapses whitespace and strips characters that are
// not part of a plausible name.
func sanitizeName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	name = regexp.MustCompile(`\s+`).ReplaceAllString(name, " ")
	name = regexp.MustCompile(`[^a-zA-Z\s\-\.']`).ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if !nameRegex.MatchString(name) {
		return "", false
	}
	return name, true
}

// parseAmountMinor reads an amount from free text and converts it to
// minor units. Indian shorthand units (lakh, crore, k) are applied in
// rupees before the minor-unit conversion. A bare run of ten or more
// digits is rejected as a likely phone number rather than an amount.
func parseAmountMinor(text string) (int64, error) {
	matches := amountRegex.FindAllStringSubmatch(text, -1)
	sawPhoneLike := false

	for _, match := range matches {
		numStr := strings.ReplaceAll(match[1], ",", "")
		unit := strings.ToLower(strings.TrimSpace(match[2]))

		if unit == "" && phoneLikeRegex.MatchString(numStr) {
			sawPhoneLike = true
			continue
		}

		value, err := decimal.NewFromString(numStr)
		if err != nil {
			continue
		}

		var rupeeMultiplier int64
		switch {
		case strings.HasPrefix(unit, "lakh"), strings.HasPrefix(unit, "lac"):
			rupeeMultiplier = 100_000
		case strings.HasPrefix(unit, "crore"), unit == "cr":
			rupeeMultiplier = 10_000_000
		case unit == "k":
			rupeeMultiplier = 1_000
		default:
			rupeeMultiplier = 1
		}

		minor := value.Mul(decimal.NewFromInt(rupeeMultiplier)).Mul(decimal.NewFromInt(100)).IntPart()
		if minor <= 0 {
			continue
		}
		return minor, nil
	}

	if sawPhoneLike {
		return 0, fmt.Errorf("%w: digit run of 10+ without a unit", ErrAmountLooksLikePhone)
	}
	return 0, ErrNoAmountFound
}

// parseTenureMonths reads a repayment period from free text. Year units
// convert at 12 months per year; a bare number is taken as months.
func parseTenureMonths(text string) (int, bool) {
	match := tenureRegex.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}

	n, err := strconv.Atoi(match[1])
	if err != nil || n <= 0 {
		return 0, false
	}

	unit := strings.ToLower(match[2])
	months := n
	if strings.HasPrefix(unit, "y") {
		months = n * 12
	}
	if months < 1 || months > 480 {
		return 0, false
	}
	return months, true
}
