// internal/stages/intake/models.go
package intake

import (
	"regexp"

	"loan-pipeline/internal/common/validation"
)

// Field names written into the session's collected fields.
const (
	FieldCustomerName    = "customer_name"
	FieldRequestedAmount = "requested_amount_minor"
	FieldTenureMonths    = "tenure_months"
	FieldDeclaredSalary  = "declared_salary_minor"
)

// requiredFields lists the intake fields in collection order. The first
// missing one drives the next prompt.
var requiredFields = []string{
	FieldCustomerName,
	FieldRequestedAmount,
	FieldTenureMonths,
	FieldDeclaredSalary,
}

var fieldPrompts = map[string]string{
	FieldCustomerName:    "Please share your full name as per your ID.",
	FieldRequestedAmount: "How much would you like to borrow? You can say something like '5 lakh' or '₹3,50,000'.",
	FieldTenureMonths:    "Over what period would you like to repay? For example '5 years' or '36 months'.",
	FieldDeclaredSalary:  "What is your monthly take-home salary?",
}

// structuredFieldsSchemaJSON validates pre-parsed fields arriving from the
// edge. Monetary and tenure values must already be plain digit strings;
// anything else goes through the utterance parsers instead.
const structuredFieldsSchemaJSON = `{
	"type": "object",
	"properties": {
		"customer_name":          {"type": "string", "minLength": 2, "maxLength": 100},
		"requested_amount_minor": {"type": "string", "pattern": "^[0-9]+$"},
		"tenure_months":          {"type": "string", "pattern": "^[0-9]+$"},
		"declared_salary_minor":  {"type": "string", "pattern": "^[0-9]+$"}
	},
	"additionalProperties": false
}`

var structuredFieldsSchema = mustStructuredFieldsSchema()

func mustStructuredFieldsSchema() validation.JSONSchema {
	schema, err := validation.GetSchemaFromJSON(structuredFieldsSchemaJSON)
	if err != nil {
		panic(err)
	}
	return schema
}

// Slot names the dialogue service may return, mapped to session fields.
var slotToField = map[string]string{
	"customer_name":    FieldCustomerName,
	"requested_amount": FieldRequestedAmount,
	"tenure":           FieldTenureMonths,
	"declared_salary":  FieldDeclaredSalary,
}

// Predefined patterns
var (
	// Amount with an optional Indian unit suffix. Commas and a decimal part
	// are tolerated because utterances arrive unnormalized.
	amountRegex = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*(lakhs?|lacs?|crores?|cr\b|k\b)?`)

	// Bare digit runs of 10 or more read like phone numbers, not amounts.
	phoneLikeRegex = regexp.MustCompile(`^[0-9]{10,}$`)

	tenureRegex = regexp.MustCompile(`(?i)([0-9]+)\s*(years?|yrs?|months?|mos?)?`)

	nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z\s\-\.']{1,99}$`)
)
