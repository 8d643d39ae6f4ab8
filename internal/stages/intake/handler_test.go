// internal/stages/intake/handler_test.go
package intake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-pipeline/internal/common/logger"
	"loan-pipeline/internal/external"
	"loan-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeDialogue struct {
	interpretation *external.Interpretation
	err            error
	calls          int
	hadDeadline    bool
}

func (f *fakeDialogue) Interpret(ctx context.Context, conversationContext, userText string) (*external.Interpretation, error) {
	f.calls++
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	if f.interpretation != nil {
		return f.interpretation, nil
	}
	return &external.Interpretation{Intent: "unknown", Slots: map[string]string{}}, nil
}

func createTestHandler(t *testing.T, dialogue external.DialogueClient) *Handler {
	t.Helper()
	if dialogue == nil {
		dialogue = &fakeDialogue{}
	}
	return NewHandler(LoadConfig(), dialogue, logger.NewTestLogger(t))
}

func turnWithText(text string) *models.TurnInput {
	return &models.TurnInput{CustomerRef: "+919000000001", Text: text}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Handle_PromptsForFirstMissingField(t *testing.T) {
	h := createTestHandler(t, nil)
	session := models.NewSession("+919000000001")

	result, err := h.Handle(context.Background(), session, turnWithText(""))
	require.NoError(t, err)

	assert.Equal(t, models.StageContinue, result.Outcome)
	assert.Equal(t, fieldPrompts[FieldCustomerName], result.Prompt)
}

func TestHandler_Handle_CollectsFieldsOneTurnAtATime(t *testing.T) {
	h := createTestHandler(t, nil)
	session := models.NewSession("+919000000001")
	ctx := context.Background()

	turns := []struct {
		text       string
		wantField  string
		wantValue  string
		wantPrompt string
	}{
		{text: "Asha Rao", wantField: FieldCustomerName, wantValue: "Asha Rao", wantPrompt: fieldPrompts[FieldRequestedAmount]},
		{text: "I need 5 lakh", wantField: FieldRequestedAmount, wantValue: "50000000", wantPrompt: fieldPrompts[FieldTenureMonths]},
		{text: "5 years", wantField: FieldTenureMonths, wantValue: "60", wantPrompt: fieldPrompts[FieldDeclaredSalary]},
	}

	for _, turn := range turns {
		result, err := h.Handle(ctx, session, turnWithText(turn.text))
		require.NoError(t, err)

		value, ok := session.Field(turn.wantField)
		require.True(t, ok, "field %s should be collected", turn.wantField)
		assert.Equal(t, turn.wantValue, value)
		assert.Equal(t, models.StageContinue, result.Outcome)
		assert.Equal(t, turn.wantPrompt, result.Prompt)
	}

	// Final field completes intake.
	result, err := h.Handle(ctx, session, turnWithText("45,000 per month"))
	require.NoError(t, err)

	salary, _ := session.Field(FieldDeclaredSalary)
	assert.Equal(t, "4500000", salary)
	assert.Equal(t, models.StageAdvance, result.Outcome)
}

func TestHandler_Handle_DialogueSlotsFillMultipleFields(t *testing.T) {
	dialogue := &fakeDialogue{
		interpretation: &external.Interpretation{
			Intent: "apply_loan",
			Slots: map[string]string{
				"customer_name":    "Asha Rao",
				"requested_amount": "3.5 lakh",
				"tenure":           "36 months",
				"declared_salary":  "45000",
			},
		},
	}
	h := createTestHandler(t, dialogue)
	session := models.NewSession("+919000000001")

	result, err := h.Handle(context.Background(), session, turnWithText("I am Asha Rao, I need 3.5 lakh for 36 months, salary 45000"))
	require.NoError(t, err)

	assert.Equal(t, models.StageAdvance, result.Outcome)

	amount, _ := session.Field(FieldRequestedAmount)
	assert.Equal(t, "35000000", amount)
	tenure, _ := session.Field(FieldTenureMonths)
	assert.Equal(t, "36", tenure)
	salary, _ := session.Field(FieldDeclaredSalary)
	assert.Equal(t, "4500000", salary)
}

func TestHandler_Handle_DialogueFailureFallsBackToLocalParsing(t *testing.T) {
	dialogue := &fakeDialogue{err: assert.AnError}
	h := createTestHandler(t, dialogue)
	session := models.NewSession("+919000000001")

	result, err := h.Handle(context.Background(), session, turnWithText("Asha Rao"))
	require.NoError(t, err)
	assert.Equal(t, 1, dialogue.calls)

	name, ok := session.Field(FieldCustomerName)
	require.True(t, ok)
	assert.Equal(t, "Asha Rao", name)
	assert.Equal(t, models.StageContinue, result.Outcome)
}

func TestHandler_Handle_StructuredFieldsSkipParsing(t *testing.T) {
	h := createTestHandler(t, nil)
	session := models.NewSession("+919000000001")

	result, err := h.Handle(context.Background(), session, &models.TurnInput{
		CustomerRef: "+919000000001",
		Fields: map[string]string{
			FieldCustomerName:    "Asha Rao",
			FieldRequestedAmount: "50000000",
			FieldTenureMonths:    "60",
			FieldDeclaredSalary:  "4500000",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StageAdvance, result.Outcome)
}

func TestHandler_Handle_StructuredFieldsSchemaSkipsInvalidValues(t *testing.T) {
	h := createTestHandler(t, nil)
	session := models.NewSession("+919000000001")

	result, err := h.Handle(context.Background(), session, &models.TurnInput{
		CustomerRef: "+919000000001",
		Fields: map[string]string{
			FieldCustomerName:    "Asha Rao",
			FieldRequestedAmount: "5 lakh", // not a minor-unit digit string
			"loyalty_tier":       "gold",   // not in the schema
		},
	})
	require.NoError(t, err)

	name, ok := session.Field(FieldCustomerName)
	require.True(t, ok, "the valid field must still be applied")
	assert.Equal(t, "Asha Rao", name)

	_, ok = session.Field(FieldRequestedAmount)
	assert.False(t, ok, "a schema-invalid amount must not be stored")
	_, ok = session.Field("loyalty_tier")
	assert.False(t, ok)

	assert.Equal(t, models.StageContinue, result.Outcome)
	assert.Equal(t, fieldPrompts[FieldRequestedAmount], result.Prompt)
}

func TestHandler_Handle_StageTimeoutBoundsDialogueCalls(t *testing.T) {
	dialogue := &fakeDialogue{}
	h := createTestHandler(t, dialogue)
	session := models.NewSession("+919000000001")

	_, err := h.Handle(context.Background(), session, turnWithText("Asha Rao"))
	require.NoError(t, err)

	require.Equal(t, 1, dialogue.calls)
	assert.True(t, dialogue.hadDeadline, "the configured stage timeout must bound the dialogue call")
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Handle_PhoneLikeAmountRejected(t *testing.T) {
	h := createTestHandler(t, nil)
	session := models.NewSession("+919000000001")
	session.SetField(FieldCustomerName, "Asha Rao")

	result, err := h.Handle(context.Background(), session, turnWithText("9876543210"))
	require.NoError(t, err)

	_, ok := session.Field(FieldRequestedAmount)
	assert.False(t, ok, "a phone-like digit run must not be accepted as an amount")
	assert.Equal(t, models.StageContinue, result.Outcome)
	assert.Equal(t, fieldPrompts[FieldRequestedAmount], result.Prompt)
}

func TestParseAmountMinor(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int64
		wantErr bool
	}{
		{name: "plain rupees with commas", text: "₹3,50,000", want: 35000000},
		{name: "lakh shorthand", text: "5 lakh", want: 50000000},
		{name: "fractional lakh", text: "3.5 lakhs", want: 35000000},
		{name: "crore shorthand", text: "1 crore", want: 1000000000},
		{name: "k shorthand", text: "45k", want: 4500000},
		{name: "phone number", text: "9876543210", wantErr: true},
		{name: "no number at all", text: "as soon as possible", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmountMinor(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTenureMonths(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{text: "5 years", want: 60, ok: true},
		{text: "3 yrs", want: 36, ok: true},
		{text: "36 months", want: 36, ok: true},
		{text: "24", want: 24, ok: true},
		{text: "no number", ok: false},
	}

	for _, tt := range tests {
		got, ok := parseTenureMonths(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.text)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	name, ok := sanitizeName("  Asha   Rao!! ")
	require.True(t, ok)
	assert.Equal(t, "Asha Rao", name)

	_, ok = sanitizeName("42")
	assert.False(t, ok)
}
