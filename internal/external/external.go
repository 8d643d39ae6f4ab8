// internal/external/external.go

// Package external holds the narrow contracts for every collaborator the
// pipeline calls over the network, plus their HTTP implementations. Stage
// handlers depend on the interfaces only.
package external

import (
	"context"

	"loan-pipeline/internal/models"
)

// Interpretation is the dialogue service's reading of one user utterance.
type Interpretation struct {
	Intent string            `json:"intent"`
	Slots  map[string]string `json:"slots"`
}

// DialogueClient is the slot-extraction oracle. It never drives control
// flow; handlers validate everything it returns.
type DialogueClient interface {
	Interpret(ctx context.Context, conversationContext, userText string) (*Interpretation, error)
}

// OCRClient turns a stored document reference into raw text.
type OCRClient interface {
	ExtractText(ctx context.Context, documentRef string) (string, error)
}

// CreditBureauClient looks up a customer's bureau record.
type CreditBureauClient interface {
	Lookup(ctx context.Context, customerRef string) (*models.BureauReport, error)
}

// IdentityClient runs the KYC identity check for a customer.
type IdentityClient interface {
	Verify(ctx context.Context, customerRef, claimedName string) (models.IdentityResult, error)
}

// RenderClient renders a sanction letter into a final document.
type RenderClient interface {
	Render(ctx context.Context, letter *models.SanctionLetter) ([]byte, error)
}
