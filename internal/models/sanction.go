// internal/models/sanction.go
package models

import "time"

// SanctionLetter is the data rendered into the final approval document.
// Monetary values are minor-unit integers.
type SanctionLetter struct {
	ApplicationID      string    `json:"applicationId"`
	CustomerRef        string    `json:"customerRef"`
	CustomerName       string    `json:"customerName"`
	PrincipalMinor     int64     `json:"principalMinor"`
	TenureMonths       int       `json:"tenureMonths"`
	AnnualRatePercent  float64   `json:"annualRatePercent"`
	MonthlyEMIMinor    int64     `json:"monthlyEmiMinor"`
	TotalInterestMinor int64     `json:"totalInterestMinor"`
	ProcessingFeeMinor int64     `json:"processingFeeMinor"`
	TotalPayableMinor  int64     `json:"totalPayableMinor"`
	IssuedAt           time.Time `json:"issuedAt"`
}
