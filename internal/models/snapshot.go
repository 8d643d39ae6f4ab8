// internal/models/snapshot.go
package models

import "time"

// ManualReviewSnapshot is the durable, append-only record written when an
// application resolves to manual review.
type ManualReviewSnapshot struct {
	SnapshotID      string            `json:"snapshotId"`
	SessionID       string            `json:"sessionId"`
	CustomerRef     string            `json:"customerRef"`
	CollectedFields map[string]string `json:"collectedFields"`
	Reasons         []string          `json:"reasons"`
	AnomalyFlags    []string          `json:"anomalyFlags"`
	CreatedAt       time.Time         `json:"createdAt"`
}
