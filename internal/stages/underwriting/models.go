// internal/stages/underwriting/models.go
package underwriting

// Field names written into the session's collected fields.
const (
	FieldSalaryDocumentRef = "salary_document_ref"
	FieldMonthlyEMI        = "monthly_emi_minor"
	FieldAnnualRate        = "annual_rate_percent"
	FieldSalaryEstimate    = "salary_estimate_minor"
	FieldSalaryConfidence  = "salary_estimate_confidence"
	FieldSalaryHeuristic   = "salary_estimate_heuristic"

	// Read from fields collected in earlier stages.
	fieldRequestedAmount = "requested_amount_minor"
	fieldTenureMonths    = "tenure_months"
	fieldDeclaredSalary  = "declared_salary_minor"
	fieldIdentityResult  = "identity_result"
)

const (
	promptNeedDocument = "Please upload your latest salary slip so we can assess your application."
)
