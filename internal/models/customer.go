// internal/models/customer.go
package models

// BureauReport is the credit bureau's view of a customer. Monetary values
// are minor-unit integers.
type BureauReport struct {
	CustomerID               string `json:"customerId"`
	Name                     string `json:"name"`
	Age                      int    `json:"age,omitempty"`
	City                     string `json:"city,omitempty"`
	Phone                    string `json:"phone,omitempty"`
	Email                    string `json:"email,omitempty"`
	EmploymentType           string `json:"employmentType,omitempty"`
	AnnualIncomeMinor        int64  `json:"annualIncomeMinor"`
	CreditScore              int    `json:"creditScore"`
	PreApprovedLimitMinor    *int64 `json:"preApprovedLimitMinor,omitempty"`
	ExistingObligationsMinor int64  `json:"existingObligationsMinor"`
}
