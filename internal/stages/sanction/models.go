// internal/stages/sanction/models.go
package sanction

// Field names written into the session's collected fields.
const (
	FieldApplicationID = "application_id"

	// Read from fields collected in earlier stages.
	fieldCustomerName    = "customer_name"
	fieldRequestedAmount = "requested_amount_minor"
	fieldTenureMonths    = "tenure_months"
	fieldMonthlyEMI      = "monthly_emi_minor"
	fieldAnnualRate      = "annual_rate_percent"
)
