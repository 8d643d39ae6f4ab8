// internal/stages/verification/models.go
package verification

// Field names written into the session's collected fields.
const (
	FieldIdentityResult = "identity_result"
	FieldNameAttempts   = "identity_name_attempts"

	// Read from fields collected during intake.
	fieldCustomerName = "customer_name"
)

const (
	promptMissingName = "Please share your full name as per your ID so we can verify it."
	promptRetryName   = "We could not verify your identity with that name. Please re-enter your full name exactly as it appears on your ID."
)
